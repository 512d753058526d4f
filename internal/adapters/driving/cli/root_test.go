package cli

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

func TestRootCmd_RegistersCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"auth", "jobs", "parse", "settings", "mcp", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("data-dir"))
}

func TestFormatError(t *testing.T) {
	assert.Equal(t, "plain", FormatError(errors.New("plain")))
	assert.Equal(t,
		"job_not_found: Job not found: abc",
		FormatError(domain.NewJobError(domain.CodeJobNotFound, "Job not found: abc")))
}

func TestCommands_WithoutServices(t *testing.T) {
	setupServices(t, &Services{})

	for _, args := range [][]string{
		{"auth", "status"},
		{"jobs", "list"},
		{"parse", "cv.pdf"},
		{"settings", "show"},
	} {
		_, err := runCommand(t, "", args...)
		assert.ErrorIs(t, err, errNotConfigured, "%v", args)
	}
}

func TestExecute_WiresServices(t *testing.T) {
	setupServices(t, &Services{})
	resetFlags(rootCmd)
	t.Cleanup(func() {
		wiring = nil
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	jobs := &mockJobService{ids: []string{}}
	var gotOpts Options
	cleaned := false
	wire := func(_ context.Context, opts Options) (*Services, func(), error) {
		gotOpts = opts
		return &Services{Jobs: jobs}, func() { cleaned = true }, nil
	}

	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"--data-dir", "/tmp/sourcestack-test", "jobs", "list"})

	require.NoError(t, Execute(context.Background(), wire))
	assert.Equal(t, "/tmp/sourcestack-test", gotOpts.DataDir)
	assert.True(t, cleaned)
	assert.Same(t, jobs, jobService)
}

func TestExecute_WiringError(t *testing.T) {
	setupServices(t, &Services{})
	resetFlags(rootCmd)
	t.Cleanup(func() {
		wiring = nil
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	boom := errors.New("boom")
	wire := func(_ context.Context, _ Options) (*Services, func(), error) {
		return nil, nil, boom
	}
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"jobs", "list"})

	assert.ErrorIs(t, Execute(context.Background(), wire), boom)
}

func TestExecute_VersionSkipsWiring(t *testing.T) {
	resetFlags(rootCmd)
	t.Cleanup(func() {
		wiring = nil
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})

	wire := func(_ context.Context, _ Options) (*Services, func(), error) {
		t.Fatal("wiring must not run for version")
		return nil, nil, nil
	}
	rootCmd.SetOut(io.Discard)
	rootCmd.SetArgs([]string{"version"})

	require.NoError(t, Execute(context.Background(), wire))
}

package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
	"github.com/custodia-labs/sourcestack/internal/core/ports/driving"
)

// =============================================================================
// Mock services
// =============================================================================

type mockAuthService struct {
	signIn    *domain.SignInResult
	challenge *domain.ManualAuthChallenge
	status    *domain.AuthStatus
	err       error

	signedOut    bool
	lastSession  string
	lastCallback string
}

var _ driving.AuthService = (*mockAuthService)(nil)

func (m *mockAuthService) SignIn(_ context.Context) (*domain.SignInResult, error) {
	return m.signIn, m.err
}

func (m *mockAuthService) BeginManualSignIn(_ context.Context) (*domain.ManualAuthChallenge, error) {
	return m.challenge, m.err
}

func (m *mockAuthService) CompleteManualSignIn(_ context.Context, sessionID, input string) (*domain.AuthStatus, error) {
	m.lastSession, m.lastCallback = sessionID, input
	return m.status, m.err
}

func (m *mockAuthService) AccessToken(_ context.Context) (string, error) {
	return "token", m.err
}

func (m *mockAuthService) SignOut(_ context.Context) error {
	m.signedOut = true
	return m.err
}

func (m *mockAuthService) Status(_ context.Context) (*domain.AuthStatus, error) {
	return m.status, m.err
}

type mockJobService struct {
	mu sync.Mutex

	candidate *domain.ParsedCandidate
	results   []domain.ParsedCandidate
	ids       []string
	jobID     string
	err       error

	// statuses are returned in order; the last one repeats.
	statuses  []*domain.JobStatus
	statusIdx int
	cancelled bool

	// revokeOnCancel makes every status after CancelJob report revoked.
	revokeOnCancel bool

	cancelCalls []string
	lastRequest domain.BatchParseRequest
	parsedName  string
	parsedData  []byte
}

var _ driving.JobService = (*mockJobService)(nil)

func (m *mockJobService) ParseSingle(_ context.Context, fileName string, data []byte) (*domain.ParsedCandidate, error) {
	m.parsedName, m.parsedData = fileName, data
	return m.candidate, m.err
}

func (m *mockJobService) StartBatchJob(_ context.Context, req domain.BatchParseRequest) (string, error) {
	m.lastRequest = req
	return m.jobID, m.err
}

func (m *mockJobService) JobStatus(_ context.Context, jobID string) (*domain.JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if len(m.statuses) == 0 {
		return nil, domain.NewJobError(domain.CodeJobNotFound, "Job not found: "+jobID)
	}
	status := m.statuses[min(m.statusIdx, len(m.statuses)-1)]
	m.statusIdx++
	return status, nil
}

func (m *mockJobService) JobResults(_ context.Context, _ string) ([]domain.ParsedCandidate, error) {
	return m.results, m.err
}

func (m *mockJobService) ListJobs(_ context.Context) ([]string, error) {
	return m.ids, m.err
}

func (m *mockJobService) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelCalls = append(m.cancelCalls, jobID)
	if m.revokeOnCancel {
		m.statuses = []*domain.JobStatus{{JobID: jobID, State: domain.JobStateRevoked}}
		m.statusIdx = 0
	}
	return m.cancelled
}

type mockSettingsService struct {
	settings domain.Settings
	err      error

	updates []domain.SettingsUpdate
}

var _ driving.SettingsService = (*mockSettingsService)(nil)

func (m *mockSettingsService) Settings(_ context.Context) (domain.Settings, error) {
	return m.settings, m.err
}

func (m *mockSettingsService) View(_ context.Context) (domain.SettingsView, error) {
	return m.settings.View(), m.err
}

func (m *mockSettingsService) Update(_ context.Context, update domain.SettingsUpdate) (domain.SettingsView, error) {
	if m.err != nil {
		return domain.SettingsView{}, m.err
	}
	m.updates = append(m.updates, update)
	m.settings = update.Apply(m.settings)
	return m.settings.View(), nil
}

// =============================================================================
// Helpers
// =============================================================================

// setupServices installs the given services and restores the previous
// ones when the test ends.
func setupServices(t *testing.T, s *Services) {
	t.Helper()
	old := &Services{Auth: authService, Jobs: jobService, Settings: settingsService, Recover: recoverJobs}
	SetServices(s)
	t.Cleanup(func() { SetServices(old) })
}

// runCommand executes rootCmd with args and stdin, returning everything
// written to stdout and stderr.
func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default so values do not leak
// between executions of the shared command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

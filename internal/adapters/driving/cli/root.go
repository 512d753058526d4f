// Package cli provides the sourcestack command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
	"github.com/custodia-labs/sourcestack/internal/core/ports/driving"
	"github.com/custodia-labs/sourcestack/internal/logger"
)

// version is set by SetVersion from the build.
var version = "dev"

// Services wired by the composition root. Tests replace them directly.
var (
	authService     driving.AuthService
	jobService      driving.JobService
	settingsService driving.SettingsService

	// recoverJobs re-queues work left by a previous process. Nil when the
	// composition root has no orchestrator.
	recoverJobs func(ctx context.Context) (requeued, failed int, err error)
)

// Services groups the driving ports the commands call.
type Services struct {
	Auth     driving.AuthService
	Jobs     driving.JobService
	Settings driving.SettingsService
	Recover  func(ctx context.Context) (requeued, failed int, err error)
}

// Options are the global flags resolved before any command runs.
type Options struct {
	DataDir string
	Verbose bool
}

// Wiring builds the services for one invocation. The returned cleanup runs
// after the command finishes.
type Wiring func(ctx context.Context, opts Options) (*Services, func(), error)

var (
	wiring  Wiring
	cleanup func()
	flags   Options
)

var errNotConfigured = errors.New("services not configured")

var rootCmd = &cobra.Command{
	Use:   "sourcestack",
	Short: "Extract candidate contact details from resumes",
	Long: `sourcestack parses PDF and DOCX resumes into candidate contact records.

Single files are parsed locally. Whole Google Drive folders are processed as
background jobs that write their results to a Google Sheet.

Getting started:
  sourcestack settings set --client-id <id>
  sourcestack settings secret
  sourcestack auth signin
  sourcestack jobs start <folder-id>`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flags.DataDir, "data-dir", "", "data directory (default $SOURCESTACK_HOME or ~/.sourcestack)")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetServices installs already-built services.
func SetServices(s *Services) {
	authService = s.Auth
	jobService = s.Jobs
	settingsService = s.Settings
	recoverJobs = s.Recover
}

// Execute runs the root command. wire is invoked once the global flags are
// parsed, before the selected command runs.
func Execute(ctx context.Context, wire Wiring) error {
	wiring = wire
	defer func() {
		if cleanup != nil {
			cleanup()
			cleanup = nil
		}
	}()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		rootCmd.PrintErrln("Error:", FormatError(err))
	}
	return err
}

// FormatError renders core errors as "code: message".
func FormatError(err error) string {
	if code := domain.CodeOf(err); code != "" {
		return fmt.Sprintf("%s: %v", code, err)
	}
	return err.Error()
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(flags.Verbose)
	if wiring == nil || cmd == versionCmd {
		return nil
	}

	services, done, err := wiring(cmd.Context(), flags)
	if err != nil {
		return err
	}
	SetServices(services)
	cleanup = done
	return nil
}

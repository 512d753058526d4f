// Command sourcestack parses resumes locally and from Google Drive folders.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/custodia-labs/sourcestack/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sourcestack/internal/adapters/driven/google"
	oauthclient "github.com/custodia-labs/sourcestack/internal/adapters/driven/oauth"
	"github.com/custodia-labs/sourcestack/internal/adapters/driven/parser"
	"github.com/custodia-labs/sourcestack/internal/adapters/driven/secrets"
	"github.com/custodia-labs/sourcestack/internal/adapters/driven/storage/jobstore"
	"github.com/custodia-labs/sourcestack/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sourcestack/internal/adapters/driving/cli"
	"github.com/custodia-labs/sourcestack/internal/adapters/driving/oauth"
	"github.com/custodia-labs/sourcestack/internal/core/domain"
	"github.com/custodia-labs/sourcestack/internal/core/ports/driven"
	"github.com/custodia-labs/sourcestack/internal/core/services"
	"github.com/custodia-labs/sourcestack/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	envHome     = "SOURCESTACK_HOME"
	envClientID = "SOURCESTACK_GOOGLE_CLIENT_ID"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// A second interrupt kills the process.
		<-ctx.Done()
		stop()
	}()

	cli.SetVersion(version)
	if err := cli.Execute(ctx, wire); err != nil {
		stop()
		os.Exit(1)
	}
}

// wire builds every adapter and service for one invocation.
func wire(ctx context.Context, opts cli.Options) (*cli.Services, func(), error) {
	dataDir, err := resolveDataDir(opts.DataDir)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("data directory: %s", dataDir)

	configStore, err := file.NewConfigStore(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open config: %w", err)
	}

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("cleanup: %v", err)
			}
		}
	}

	backend, closeBackend, err := openSecretBackend(dataDir, services.ConfiguredSecretBackend(configStore))
	if err != nil {
		return nil, nil, err
	}
	if closeBackend != nil {
		closers = append(closers, closeBackend)
	}

	settingsService := services.NewSettingsService(
		configStore,
		backend.Entry(driven.SecretGoogleClientSecret),
		os.Getenv(envClientID),
	)

	authService := services.NewAuthService(
		settingsService,
		oauthclient.NewGoogleClient(),
		backend.Entry(driven.SecretGoogleToken),
		oauth.Listen,
		oauth.NewBrowser(),
	)

	documentParser := parser.New(parser.WithOCRConfig(func(ctx context.Context) parser.OCRConfig {
		settings, err := settingsService.Settings(ctx)
		if err != nil {
			settings = domain.DefaultSettings()
		}
		return parser.OCRConfig{TesseractPath: settings.TesseractPath, Timeout: settings.OCRTimeout()}
	}))

	jobStore, err := jobstore.New(filepath.Join(dataDir, "jobs"))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("open job store: %w", err)
	}

	orchestrator := services.NewJobOrchestrator(
		settingsService,
		authService,
		google.NewDriveClient(),
		google.NewSheetsClient(),
		documentParser,
		jobStore,
	)
	// Jobs are cancelled through CancelJob, never by the interrupt itself.
	orchestrator.Start(context.WithoutCancel(ctx))
	closers = append(closers, func() error {
		orchestrator.Stop()
		return nil
	})

	return &cli.Services{
		Auth:     authService,
		Jobs:     orchestrator,
		Settings: settingsService,
		Recover:  orchestrator.RecoverInterrupted,
	}, cleanup, nil
}

// resolveDataDir picks the flag, then $SOURCESTACK_HOME, then ~/.sourcestack.
func resolveDataDir(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv(envHome); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".sourcestack"), nil
}

// openSecretBackend opens the configured backend and seals it with the
// identity kept in the data directory.
func openSecretBackend(dataDir string, kind domain.SecretBackend) (driven.SecretBackend, func() error, error) {
	identity, err := secrets.LoadOrCreateIdentity(filepath.Join(dataDir, secrets.IdentityFileName))
	if err != nil {
		return nil, nil, fmt.Errorf("load secret identity: %w", err)
	}

	switch kind {
	case domain.SecretBackendSQLite:
		store, err := sqlite.NewStore(dataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open secret database: %w", err)
		}
		return secrets.NewSealer(store, identity), store.Close, nil
	case domain.SecretBackendFile:
		store, err := secrets.NewFileBackend(filepath.Join(dataDir, "secrets"))
		if err != nil {
			return nil, nil, fmt.Errorf("open secret directory: %w", err)
		}
		return secrets.NewSealer(store, identity), nil, nil
	default:
		return nil, nil, errors.New("unknown secret backend: " + string(kind))
	}
}

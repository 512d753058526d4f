package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change the Google client, OCR and job settings.

The client secret is kept in the secret store, never in config.toml.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change one or more settings",
	Long: `Change settings. Only the flags given are updated; out of range numbers
are clamped.

Examples:
  sourcestack settings set --client-id 123.apps.googleusercontent.com
  sourcestack settings set --max-concurrent 4 --batch-size 50
  sourcestack settings set --secret-backend sqlite`,
	Args: cobra.NoArgs,
	RunE: runSettingsSet,
}

var settingsSecretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Set the Google client secret",
	Long:  `Prompt for the Google OAuth client secret. An empty answer clears it.`,
	Args:  cobra.NoArgs,
	RunE:  runSettingsSecret,
}

func init() {
	f := settingsSetCmd.Flags()
	f.String("client-id", "", "Google OAuth client id")
	f.String("tesseract-path", "", "tesseract executable")
	f.Int("ocr-timeout", 0, "OCR timeout in seconds")
	f.Int("max-concurrent", 0, "files downloaded and parsed at once")
	f.Int("batch-size", 0, "files per spreadsheet append")
	f.Int("max-retries", 0, "attempts per Drive download")
	f.Float64("retry-delay", 0, "base retry delay in seconds")
	f.Int("retention-hours", 0, "hours finished jobs are kept")
	f.Int("request-timeout", 0, "timeout of each Google API call in seconds")
	f.String("secret-backend", "", "where credentials are stored: file or sqlite")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsSecretCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured
	}
	view, err := settingsService.View(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	printSettings(cmd, view)
	return nil
}

func printSettings(cmd *cobra.Command, view domain.SettingsView) {
	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Google]")
	if view.GoogleClientID != "" {
		cmd.Printf("  Client ID: %s\n", view.GoogleClientID)
	} else {
		cmd.Println("  Client ID: (not set)")
	}
	if view.HasClientSecret {
		cmd.Println("  Client secret: set")
	} else {
		cmd.Println("  Client secret: (not set)")
	}
	cmd.Println()

	cmd.Println("[Parser]")
	cmd.Printf("  Tesseract: %s\n", view.TesseractPath)
	cmd.Printf("  OCR timeout: %ds\n", view.OCRTimeoutSeconds)
	cmd.Println()

	cmd.Println("[Jobs]")
	cmd.Printf("  Max concurrent requests: %d\n", view.MaxConcurrentRequests)
	cmd.Printf("  Spreadsheet batch size: %d\n", view.SpreadsheetBatchSize)
	cmd.Printf("  Max retries: %d\n", view.MaxRetries)
	cmd.Printf("  Retry delay: %gs\n", view.RetryDelaySeconds)
	cmd.Printf("  Retention: %dh\n", view.JobRetentionHours)
	cmd.Printf("  Request timeout: %ds\n", view.RequestTimeoutSeconds)
	cmd.Println()

	cmd.Println("[Secrets]")
	cmd.Printf("  Backend: %s\n", view.SecretBackend)
}

func runSettingsSet(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured
	}

	update, err := settingsUpdateFromFlags(cmd)
	if err != nil {
		return err
	}
	if update == (domain.SettingsUpdate{}) {
		return cmd.Help()
	}

	view, err := settingsService.Update(cmd.Context(), update)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	cmd.Println("Settings saved.")
	if update.SecretBackend != nil {
		cmd.Println("The new secret backend is used from the next run; sign in again and re-enter the client secret.")
	}
	cmd.Println()
	printSettings(cmd, view)
	return nil
}

//nolint:gocyclo // one branch per flag
func settingsUpdateFromFlags(cmd *cobra.Command) (domain.SettingsUpdate, error) {
	var update domain.SettingsUpdate
	f := cmd.Flags()

	if f.Changed("client-id") {
		v, _ := f.GetString("client-id")
		update.GoogleClientID = &v
	}
	if f.Changed("tesseract-path") {
		v, _ := f.GetString("tesseract-path")
		update.TesseractPath = &v
	}
	if f.Changed("ocr-timeout") {
		v, _ := f.GetInt("ocr-timeout")
		update.OCRTimeoutSeconds = &v
	}
	if f.Changed("max-concurrent") {
		v, _ := f.GetInt("max-concurrent")
		update.MaxConcurrentRequests = &v
	}
	if f.Changed("batch-size") {
		v, _ := f.GetInt("batch-size")
		update.SpreadsheetBatchSize = &v
	}
	if f.Changed("max-retries") {
		v, _ := f.GetInt("max-retries")
		update.MaxRetries = &v
	}
	if f.Changed("retry-delay") {
		v, _ := f.GetFloat64("retry-delay")
		update.RetryDelaySeconds = &v
	}
	if f.Changed("retention-hours") {
		v, _ := f.GetInt("retention-hours")
		update.JobRetentionHours = &v
	}
	if f.Changed("request-timeout") {
		v, _ := f.GetInt("request-timeout")
		update.RequestTimeoutSeconds = &v
	}
	if f.Changed("secret-backend") {
		v, _ := f.GetString("secret-backend")
		backend := domain.SecretBackend(v)
		if !backend.IsValid() {
			return update, fmt.Errorf("unknown secret backend %q (use %s or %s)",
				v, domain.SecretBackendFile, domain.SecretBackendSQLite)
		}
		update.SecretBackend = &backend
	}
	return update, nil
}

func runSettingsSecret(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured
	}

	cmd.Print("Google client secret: ")
	secret, err := readSecret(cmd)
	if err != nil {
		return err
	}

	if _, err := settingsService.Update(cmd.Context(), domain.SettingsUpdate{GoogleClientSecret: &secret}); err != nil {
		return fmt.Errorf("failed to save client secret: %w", err)
	}
	if secret == "" {
		cmd.Println("Client secret cleared.")
	} else {
		cmd.Println("Client secret saved.")
	}
	return nil
}

// readSecret reads a line without echo when stdin is a terminal.
func readSecret(cmd *cobra.Command) (string, error) {
	if cmd.InOrStdin() == os.Stdin && term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		cmd.Println()
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return string(b), nil
	}
	return readLine(cmd)
}

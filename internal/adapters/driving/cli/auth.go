package cli

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Google sign-in",
	Long: `Sign in with Google so batch jobs can read Drive folders and write Sheets.

The interactive flow opens a browser and waits for the redirect on a local
port. When that is not possible (remote shells, blocked ports) the manual
flow prints a URL to open anywhere and asks for the redirect URL back.

Examples:
  sourcestack auth signin
  sourcestack auth manual
  sourcestack auth status`,
}

var authSignInCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in with Google",
	RunE:  runAuthSignIn,
}

var authManualCmd = &cobra.Command{
	Use:   "manual",
	Short: "Sign in by pasting the redirect URL",
	RunE:  runAuthManual,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored Google credential",
	RunE:  runAuthStatus,
}

var authSignOutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Delete the stored Google credential",
	RunE:  runAuthSignOut,
}

func init() {
	authCmd.AddCommand(authSignInCmd)
	authCmd.AddCommand(authManualCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authSignOutCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthSignIn(cmd *cobra.Command, _ []string) error {
	if authService == nil {
		return errNotConfigured
	}

	cmd.Println("Opening your browser to sign in with Google...")
	result, err := authService.SignIn(cmd.Context())
	if err != nil {
		return err
	}

	if result.State == domain.SignInStateSignedIn {
		printSignedIn(cmd, result.Status)
		return nil
	}

	cmd.Printf("Browser sign-in could not complete (%s).\n", result.Reason)
	if result.Message != "" {
		cmd.Println(result.Message)
	}
	cmd.Println("Continuing with manual sign-in.")
	cmd.Println()
	return manualSignIn(cmd)
}

func runAuthManual(cmd *cobra.Command, _ []string) error {
	if authService == nil {
		return errNotConfigured
	}
	return manualSignIn(cmd)
}

func manualSignIn(cmd *cobra.Command) error {
	ctx := cmd.Context()
	challenge, err := authService.BeginManualSignIn(ctx)
	if err != nil {
		return err
	}

	cmd.Println("1. Open this URL in any browser and approve access:")
	cmd.Println()
	cmd.Printf("   %s\n", challenge.AuthorizeURL)
	cmd.Println()
	cmd.Printf("2. The browser is then sent to %s, which will fail to load.\n", challenge.RedirectURI)
	cmd.Println("   Copy the full URL from the address bar.")
	cmd.Printf("   This session expires at %s.\n", challenge.ExpiresAt.Local().Format(time.Kitchen))
	cmd.Println()
	cmd.Print("Paste the URL (or the code): ")

	input, err := readLine(cmd)
	if err != nil {
		return err
	}

	status, err := authService.CompleteManualSignIn(ctx, challenge.SessionID, input)
	if err != nil {
		return err
	}
	printSignedIn(cmd, status)
	return nil
}

func runAuthStatus(cmd *cobra.Command, _ []string) error {
	if authService == nil {
		return errNotConfigured
	}

	status, err := authService.Status(cmd.Context())
	if err != nil {
		return err
	}
	if !status.SignedIn {
		cmd.Println("Not signed in. Run 'sourcestack auth signin'.")
		return nil
	}

	cmd.Println("Signed in")
	if status.Email != "" {
		cmd.Printf("  Account: %s\n", status.Email)
	}
	if status.ExpiresAt != nil {
		cmd.Printf("  Access token expires: %s\n", status.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

func runAuthSignOut(cmd *cobra.Command, _ []string) error {
	if authService == nil {
		return errNotConfigured
	}
	if err := authService.SignOut(cmd.Context()); err != nil {
		return err
	}
	cmd.Println("Signed out.")
	return nil
}

func printSignedIn(cmd *cobra.Command, status *domain.AuthStatus) {
	if status != nil && status.Email != "" {
		cmd.Printf("Signed in as %s.\n", status.Email)
		return
	}
	cmd.Println("Signed in.")
}

// readLine reads one trimmed line from the command's input.
func readLine(cmd *cobra.Command) (string, error) {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return line, nil
}


package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a single resume file",
	Long: `Extract contact details from a local .pdf, .docx or .txt resume.

PDFs with little embedded text are passed through OCR when tesseract is
installed.`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().Bool("json", false, "print the candidate as JSON")
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	if jobService == nil {
		return errNotConfigured
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return fmt.Errorf("getting json flag: %w", err)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	candidate, err := jobService.ParseSingle(cmd.Context(), filepath.Base(args[0]), data)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(candidate)
	}
	printCandidate(cmd, candidate)
	return nil
}

func printCandidate(cmd *cobra.Command, c *domain.ParsedCandidate) {
	cmd.Printf("File:        %s\n", c.SourceFile)
	cmd.Printf("Name:        %s\n", dash(c.Name))
	cmd.Printf("Email:       %s\n", dash(c.Email))
	cmd.Printf("Phone:       %s\n", dash(c.Phone))
	cmd.Printf("LinkedIn:    %s\n", dash(c.LinkedIn))
	cmd.Printf("GitHub:      %s\n", dash(c.GitHub))
	cmd.Printf("Confidence:  %.2f\n", c.Confidence)
	if c.OCRUsed {
		cmd.Println("OCR:         used")
	}
	for _, e := range c.Errors {
		cmd.Printf("Error:       %s\n", e)
	}
}

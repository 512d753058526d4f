package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sourcestack/internal/adapters/driven/export"
	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

// pollInterval is how often a followed job is polled.
var pollInterval = 500 * time.Millisecond

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run and inspect Drive folder jobs",
	Long: `Parse every PDF and DOCX resume in a Google Drive folder into a Google Sheet.

Jobs run in the background of the current process. 'jobs start' follows the
job until it finishes; Ctrl-C cancels it at the next batch boundary.

Examples:
  sourcestack jobs start 1AbCdEfGh
  sourcestack jobs start 1AbCdEfGh --spreadsheet-id 1XyZ
  sourcestack jobs results <job-id> --json
  sourcestack jobs export <job-id> -o candidates.xlsx`,
}

var jobsStartCmd = &cobra.Command{
	Use:   "start <folder-id>",
	Short: "Start a job for a Drive folder and follow it",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStart,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the status of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

var jobsResultsCmd = &cobra.Command{
	Use:   "results <job-id>",
	Short: "Show the candidates extracted by a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsResults,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List retained jobs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJobsList,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a running job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCancel,
}

var jobsExportCmd = &cobra.Command{
	Use:   "export <job-id>",
	Short: "Export a job's candidates to an XLSX file",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsExport,
}

var jobsRecoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Resume jobs interrupted by a previous process",
	Long: `Re-queue pending jobs left by a process that has exited and run them to
completion. Jobs that were already processing are marked failed, since their
sheet may hold partial rows. Jobs still owned by a running process are left
alone.`,
	Args: cobra.NoArgs,
	RunE: runJobsRecover,
}

func init() {
	jobsStartCmd.Flags().String("spreadsheet-id", "", "append to this spreadsheet instead of creating one")
	jobsStartCmd.Flags().Bool("detach", false, "print the job id and return without following")
	jobsResultsCmd.Flags().Bool("json", false, "print results as JSON")
	jobsExportCmd.Flags().StringP("output", "o", "", "destination .xlsx file")
	_ = jobsExportCmd.MarkFlagRequired("output")

	jobsCmd.AddCommand(jobsStartCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsResultsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	jobsCmd.AddCommand(jobsExportCmd)
	jobsCmd.AddCommand(jobsRecoverCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobsStart(cmd *cobra.Command, args []string) error {
	if jobService == nil {
		return errNotConfigured
	}
	spreadsheetID, err := cmd.Flags().GetString("spreadsheet-id")
	if err != nil {
		return fmt.Errorf("getting spreadsheet-id flag: %w", err)
	}
	detach, err := cmd.Flags().GetBool("detach")
	if err != nil {
		return fmt.Errorf("getting detach flag: %w", err)
	}

	ctx := cmd.Context()
	jobID, err := jobService.StartBatchJob(ctx, domain.BatchParseRequest{
		FolderID:      args[0],
		SpreadsheetID: spreadsheetID,
	})
	if err != nil {
		return err
	}
	cmd.Printf("Job %s queued.\n", jobID)
	if detach {
		return nil
	}

	status, err := followJob(ctx, cmd, jobID)
	if err != nil {
		return err
	}
	printJobSummary(cmd, status)
	if status.State == domain.JobStateFailed {
		return fmt.Errorf("job %s failed: %s", jobID, status.Error)
	}
	return nil
}

// followJob polls a job until it reaches a terminal state. When ctx is
// cancelled the job is cancelled and followed until it stops.
func followJob(ctx context.Context, cmd *cobra.Command, jobID string) (*domain.JobStatus, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	pollCtx := context.WithoutCancel(ctx)
	interrupted := ctx.Done()
	lastProcessed, lastTotal := -1, -1
	for {
		status, err := jobService.JobStatus(pollCtx, jobID)
		if err != nil {
			return nil, err
		}
		if status.ProcessedFiles != lastProcessed || status.TotalFiles != lastTotal {
			if status.TotalFiles > 0 {
				cmd.Printf("Processed %d/%d files (%d%%)\n", status.ProcessedFiles, status.TotalFiles, status.Progress)
			}
			lastProcessed, lastTotal = status.ProcessedFiles, status.TotalFiles
		}
		if status.State.IsTerminal() {
			return status, nil
		}

		select {
		case <-interrupted:
			interrupted = nil
			if jobService.CancelJob(jobID) {
				cmd.Println("Cancelling; waiting for in-flight files to finish...")
			}
		case <-ticker.C:
		}
	}
}

func printJobSummary(cmd *cobra.Command, status *domain.JobStatus) {
	switch status.State {
	case domain.JobStateCompleted:
		count := 0
		if status.ResultsCount != nil {
			count = *status.ResultsCount
		}
		cmd.Printf("Job %s completed: %d candidates.\n", status.JobID, count)
	case domain.JobStateRevoked:
		cmd.Printf("Job %s cancelled.\n", status.JobID)
	case domain.JobStateFailed:
		cmd.Printf("Job %s failed.\n", status.JobID)
	}
	if status.SpreadsheetID != "" {
		cmd.Printf("Spreadsheet: %s\n", domain.SpreadsheetURL(status.SpreadsheetID))
	}
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	if jobService == nil {
		return errNotConfigured
	}
	status, err := jobService.JobStatus(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	cmd.Printf("Job:       %s\n", status.JobID)
	cmd.Printf("State:     %s\n", status.State)
	cmd.Printf("Progress:  %d%% (%d/%d files)\n", status.Progress, status.ProcessedFiles, status.TotalFiles)
	cmd.Printf("Created:   %s\n", status.CreatedAt.Local().Format(time.DateTime))
	if status.StartedAt != nil {
		cmd.Printf("Started:   %s\n", status.StartedAt.Local().Format(time.DateTime))
	}
	if status.CompletedAt != nil {
		cmd.Printf("Finished:  %s\n", status.CompletedAt.Local().Format(time.DateTime))
	}
	if status.DurationSeconds != nil {
		cmd.Printf("Duration:  %.1fs\n", *status.DurationSeconds)
	}
	if status.ResultsCount != nil {
		cmd.Printf("Results:   %d\n", *status.ResultsCount)
	}
	if status.SpreadsheetID != "" {
		cmd.Printf("Sheet:     %s\n", domain.SpreadsheetURL(status.SpreadsheetID))
	}
	if status.Error != "" {
		cmd.Printf("Error:     %s\n", status.Error)
	}
	return nil
}

func runJobsResults(cmd *cobra.Command, args []string) error {
	if jobService == nil {
		return errNotConfigured
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return fmt.Errorf("getting json flag: %w", err)
	}

	results, err := jobService.JobResults(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		cmd.Println("No candidates.")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tNAME\tEMAIL\tPHONE\tCONFIDENCE")
	for _, c := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\n", c.SourceFile, dash(c.Name), dash(c.Email), dash(c.Phone), c.Confidence)
	}
	return w.Flush()
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	if jobService == nil {
		return errNotConfigured
	}
	ids, err := jobService.ListJobs(cmd.Context())
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		cmd.Println("No jobs.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tSTATE\tPROGRESS\tCREATED")
	for _, id := range ids {
		status, err := jobService.JobStatus(cmd.Context(), id)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\n", id, status.State, status.Progress, status.CreatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	if jobService == nil {
		return errNotConfigured
	}
	if !jobService.CancelJob(args[0]) {
		return fmt.Errorf("job %s is not running in this process", args[0])
	}
	cmd.Printf("Cancellation requested for job %s.\n", args[0])
	return nil
}

func runJobsExport(cmd *cobra.Command, args []string) error {
	if jobService == nil {
		return errNotConfigured
	}
	path, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("getting output flag: %w", err)
	}
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		path += ".xlsx"
	}

	results, err := jobService.JobResults(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := export.WriteFile(path, results); err != nil {
		return err
	}
	cmd.Printf("Exported %d candidates to %s\n", len(results), path)
	return nil
}

func runJobsRecover(cmd *cobra.Command, _ []string) error {
	if jobService == nil || recoverJobs == nil {
		return errNotConfigured
	}
	ctx := cmd.Context()
	requeued, failed, err := recoverJobs(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Re-queued %d jobs, marked %d interrupted jobs failed.\n", requeued, failed)
	if requeued == 0 {
		return nil
	}

	ids, err := jobService.ListJobs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		status, err := jobService.JobStatus(ctx, id)
		if err != nil || status.State.IsTerminal() {
			continue
		}
		cmd.Printf("Following job %s.\n", id)
		final, err := followJob(ctx, cmd, id)
		if err != nil {
			return err
		}
		printJobSummary(cmd, final)
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

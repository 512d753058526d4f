package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

func fastPolling(t *testing.T) {
	t.Helper()
	old := pollInterval
	pollInterval = time.Millisecond
	t.Cleanup(func() { pollInterval = old })
}

func intPtr(n int) *int { return &n }

func TestJobsStart_FollowsToCompletion(t *testing.T) {
	fastPolling(t)
	jobs := &mockJobService{
		jobID: "job-1",
		statuses: []*domain.JobStatus{
			{JobID: "job-1", State: domain.JobStatePending},
			{JobID: "job-1", State: domain.JobStateProcessing, TotalFiles: 4, ProcessedFiles: 2, Progress: 50},
			{
				JobID: "job-1", State: domain.JobStateCompleted, TotalFiles: 4, ProcessedFiles: 4,
				Progress: 100, SpreadsheetID: "sheet-1", ResultsCount: intPtr(3),
			},
		},
	}
	setupServices(t, &Services{Jobs: jobs})

	out, err := runCommand(t, "", "jobs", "start", "folder-1", "--spreadsheet-id", "sheet-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchParseRequest{FolderID: "folder-1", SpreadsheetID: "sheet-1"}, jobs.lastRequest)
	assert.Contains(t, out, "Job job-1 queued.")
	assert.Contains(t, out, "Processed 2/4 files (50%)")
	assert.Contains(t, out, "Processed 4/4 files (100%)")
	assert.Contains(t, out, "Job job-1 completed: 3 candidates.")
	assert.Contains(t, out, "https://docs.google.com/spreadsheets/d/sheet-1/edit")
	assert.Empty(t, jobs.cancelCalls)
}

func TestJobsStart_Detach(t *testing.T) {
	jobs := &mockJobService{jobID: "job-1"}
	setupServices(t, &Services{Jobs: jobs})

	out, err := runCommand(t, "", "jobs", "start", "folder-1", "--detach")
	require.NoError(t, err)
	assert.Contains(t, out, "Job job-1 queued.")
	assert.Equal(t, "", jobs.lastRequest.SpreadsheetID)
	assert.Zero(t, jobs.statusIdx)
}

func TestJobsStart_FailedJobIsError(t *testing.T) {
	fastPolling(t)
	jobs := &mockJobService{
		jobID: "job-1",
		statuses: []*domain.JobStatus{
			{JobID: "job-1", State: domain.JobStateFailed, Error: "Drive error 404: not found"},
		},
	}
	setupServices(t, &Services{Jobs: jobs})

	_, err := runCommand(t, "", "jobs", "start", "folder-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Drive error 404")
}

func TestJobsStart_SubmitError(t *testing.T) {
	jobs := &mockJobService{err: domain.NewAuthError(domain.CodeSignInRequired, "Sign in with Google first.")}
	setupServices(t, &Services{Jobs: jobs})

	_, err := runCommand(t, "", "jobs", "start", "folder-1")
	assert.ErrorIs(t, err, domain.ErrSignInRequired)
}

func TestJobsStart_RequiresFolder(t *testing.T) {
	setupServices(t, &Services{Jobs: &mockJobService{}})

	_, err := runCommand(t, "", "jobs", "start")
	assert.Error(t, err)
}

func TestFollowJob_CancelsOnInterrupt(t *testing.T) {
	fastPolling(t)
	jobs := &mockJobService{
		cancelled:      true,
		revokeOnCancel: true,
		statuses: []*domain.JobStatus{
			{JobID: "job-1", State: domain.JobStateProcessing},
		},
	}
	setupServices(t, &Services{Jobs: jobs})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)

	status, err := followJob(ctx, cmd, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateRevoked, status.State)
	assert.Equal(t, []string{"job-1"}, jobs.cancelCalls)
	assert.Contains(t, buf.String(), "Cancelling")
}

func TestJobsStatus(t *testing.T) {
	duration := 12.5
	completed := time.Now()
	jobs := &mockJobService{statuses: []*domain.JobStatus{{
		JobID:           "job-1",
		State:           domain.JobStateCompleted,
		Progress:        100,
		TotalFiles:      2,
		ProcessedFiles:  2,
		SpreadsheetID:   "sheet-1",
		ResultsCount:    intPtr(2),
		CreatedAt:       completed.Add(-time.Minute),
		CompletedAt:     &completed,
		DurationSeconds: &duration,
	}}}
	setupServices(t, &Services{Jobs: jobs})

	out, err := runCommand(t, "", "jobs", "status", "job-1")
	require.NoError(t, err)
	assert.Contains(t, out, "State:     completed")
	assert.Contains(t, out, "Progress:  100% (2/2 files)")
	assert.Contains(t, out, "Duration:  12.5s")
	assert.Contains(t, out, "Results:   2")
	assert.Contains(t, out, "spreadsheets/d/sheet-1/edit")
}

func TestJobsStatus_NotFound(t *testing.T) {
	setupServices(t, &Services{Jobs: &mockJobService{}})

	_, err := runCommand(t, "", "jobs", "status", "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func testCandidates() []domain.ParsedCandidate {
	return []domain.ParsedCandidate{
		{DriveFileID: "f1", SourceFile: "jane.pdf", Name: "Jane Doe", Email: "jane@example.com", Phone: "+919876543210", Confidence: 0.95},
		{DriveFileID: "f2", SourceFile: "scan.pdf", OCRUsed: true, Errors: []string{"Parse error: boom"}},
	}
}

func TestJobsResults_Table(t *testing.T) {
	setupServices(t, &Services{Jobs: &mockJobService{results: testCandidates()}})

	out, err := runCommand(t, "", "jobs", "results", "job-1")
	require.NoError(t, err)
	assert.Contains(t, out, "FILE")
	assert.Contains(t, out, "jane@example.com")
	assert.Contains(t, out, "0.95")
	assert.Contains(t, out, "scan.pdf")
}

func TestJobsResults_JSON(t *testing.T) {
	setupServices(t, &Services{Jobs: &mockJobService{results: testCandidates()}})

	out, err := runCommand(t, "", "jobs", "results", "job-1", "--json")
	require.NoError(t, err)

	var got []domain.ParsedCandidate
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, testCandidates(), got)
}

func TestJobsResults_Empty(t *testing.T) {
	setupServices(t, &Services{Jobs: &mockJobService{}})

	out, err := runCommand(t, "", "jobs", "results", "job-1")
	require.NoError(t, err)
	assert.Contains(t, out, "No candidates.")
}

func TestJobsResults_NotCompleted(t *testing.T) {
	jobs := &mockJobService{err: domain.NewJobError(domain.CodeJobNotCompleted, "Job has not completed yet.")}
	setupServices(t, &Services{Jobs: jobs})

	_, err := runCommand(t, "", "jobs", "results", "job-1")
	assert.ErrorIs(t, err, domain.ErrJobNotCompleted)
}

func TestJobsList(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		setupServices(t, &Services{Jobs: &mockJobService{}})

		out, err := runCommand(t, "", "jobs", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "No jobs.")
	})

	t.Run("rows", func(t *testing.T) {
		jobs := &mockJobService{
			ids: []string{"job-2", "job-1"},
			statuses: []*domain.JobStatus{
				{JobID: "job-2", State: domain.JobStateProcessing, Progress: 40, CreatedAt: time.Now()},
			},
		}
		setupServices(t, &Services{Jobs: jobs})

		out, err := runCommand(t, "", "jobs", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "job-2")
		assert.Contains(t, out, "processing")
		assert.Contains(t, out, "40%")
	})
}

func TestJobsCancel(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		jobs := &mockJobService{cancelled: true}
		setupServices(t, &Services{Jobs: jobs})

		out, err := runCommand(t, "", "jobs", "cancel", "job-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"job-1"}, jobs.cancelCalls)
		assert.Contains(t, out, "Cancellation requested for job job-1.")
	})

	t.Run("not running", func(t *testing.T) {
		setupServices(t, &Services{Jobs: &mockJobService{}})

		_, err := runCommand(t, "", "jobs", "cancel", "job-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not running")
	})
}

func TestJobsExport(t *testing.T) {
	setupServices(t, &Services{Jobs: &mockJobService{results: testCandidates()}})
	dir := t.TempDir()

	out, err := runCommand(t, "", "jobs", "export", "job-1", "-o", filepath.Join(dir, "candidates"))
	require.NoError(t, err)

	path := filepath.Join(dir, "candidates.xlsx")
	assert.Contains(t, out, "Exported 2 candidates to "+path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestJobsExport_RequiresOutput(t *testing.T) {
	setupServices(t, &Services{Jobs: &mockJobService{}})

	_, err := runCommand(t, "", "jobs", "export", "job-1")
	assert.Error(t, err)
}

func TestJobsRecover(t *testing.T) {
	fastPolling(t)
	jobs := &mockJobService{
		ids: []string{"job-1"},
		statuses: []*domain.JobStatus{
			{JobID: "job-1", State: domain.JobStatePending},
			{JobID: "job-1", State: domain.JobStateCompleted, ResultsCount: intPtr(1)},
		},
	}
	recovered := false
	setupServices(t, &Services{
		Jobs: jobs,
		Recover: func(context.Context) (int, int, error) {
			recovered = true
			return 1, 2, nil
		},
	})

	out, err := runCommand(t, "", "jobs", "recover")
	require.NoError(t, err)
	assert.True(t, recovered)
	assert.Contains(t, out, "Re-queued 1 jobs, marked 2 interrupted jobs failed.")
	assert.Contains(t, out, "Following job job-1.")
	assert.Contains(t, out, "Job job-1 completed: 1 candidates.")
}

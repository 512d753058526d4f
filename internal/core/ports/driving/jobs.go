package driving

import (
	"context"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

// JobService accepts resume parsing work and reports on batch jobs.
type JobService interface {
	// ParseSingle parses one uploaded file synchronously.
	ParseSingle(ctx context.Context, fileName string, data []byte) (*domain.ParsedCandidate, error)

	// StartBatchJob validates and queues a folder job, returning its id.
	// The job is persisted as pending before this returns.
	StartBatchJob(ctx context.Context, req domain.BatchParseRequest) (string, error)

	// JobStatus returns the latest persisted status of a job.
	JobStatus(ctx context.Context, jobID string) (*domain.JobStatus, error)

	// JobResults returns a job's results. It fails with job_not_completed
	// while the job is running and no results have been saved.
	JobResults(ctx context.Context, jobID string) ([]domain.ParsedCandidate, error)

	// ListJobs sweeps expired jobs and returns the remaining ids, newest first.
	ListJobs(ctx context.Context) ([]string, error)

	// CancelJob requests cancellation of a running job and reports whether
	// a live job was found. Cancellation is cooperative: it takes effect at
	// the next batch boundary, after in-flight downloads finish.
	CancelJob(jobID string) bool
}

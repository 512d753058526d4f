package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

// JobLease is exclusive ownership of a job. The owner is the only writer of
// the job's records until it releases the lease or its process exits.
type JobLease interface {
	Release() error
}

// JobStore persists job status, results and the accepted request.
// Each job owns its own records; implementations only need to serialise
// individual writes.
type JobStore interface {
	// AcquireLease takes ownership of a job without waiting. ok is false
	// when another owner, in this process or another, holds the job.
	AcquireLease(ctx context.Context, jobID string) (lease JobLease, ok bool, err error)

	// SaveStatus creates or replaces a job's status record.
	SaveStatus(ctx context.Context, status *domain.JobStatus) error

	// GetStatus returns a job's status, or nil if the job does not exist.
	GetStatus(ctx context.Context, jobID string) (*domain.JobStatus, error)

	// SaveResults writes a job's results record.
	SaveResults(ctx context.Context, jobID string, results []domain.ParsedCandidate) error

	// GetResults returns a job's results and whether a results record exists.
	GetResults(ctx context.Context, jobID string) ([]domain.ParsedCandidate, bool, error)

	// SaveRequest records the request a job was created from.
	SaveRequest(ctx context.Context, jobID string, req domain.BatchParseRequest) error

	// GetRequest returns the request a job was created from, or nil.
	GetRequest(ctx context.Context, jobID string) (*domain.BatchParseRequest, error)

	// List returns every job's status, newest first.
	List(ctx context.Context) ([]*domain.JobStatus, error)

	// Sweep deletes jobs whose retention anchor is older than now-retention,
	// skipping jobs whose lease is held. Returns the number of jobs deleted.
	Sweep(ctx context.Context, now time.Time, retention time.Duration) (int, error)
}

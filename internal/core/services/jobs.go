package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
	"github.com/custodia-labs/sourcestack/internal/core/ports/driven"
	"github.com/custodia-labs/sourcestack/internal/core/ports/driving"
	"github.com/custodia-labs/sourcestack/internal/logger"
)

// Ensure JobOrchestrator implements the interface.
var _ driving.JobService = (*JobOrchestrator)(nil)

// spreadsheetTitlePrefix names spreadsheets created for a job.
const spreadsheetTitlePrefix = "Resume Parse Results - "

// settingsSource supplies the effective settings for each job.
type settingsSource interface {
	Settings(ctx context.Context) (domain.Settings, error)
}

// accessTokenSource supplies bearer tokens without user interaction.
type accessTokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// JobOrchestrator accepts batch requests, persists them as pending jobs and
// runs them one at a time on a single background consumer. Within a job,
// files are processed concurrently up to MaxConcurrentRequests.
type JobOrchestrator struct {
	settings settingsSource
	tokens   accessTokenSource
	drive    driven.DriveClient
	sheets   driven.SheetsClient
	parser   driven.DocumentParser
	store    driven.JobStore

	cancels *CancellationRegistry
	queue   *jobQueue

	log   zerolog.Logger
	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// JobOrchestratorOption configures a JobOrchestrator.
type JobOrchestratorOption func(*JobOrchestrator)

// WithJobClock overrides the time source.
func WithJobClock(now func() time.Time) JobOrchestratorOption {
	return func(o *JobOrchestrator) { o.now = now }
}

// WithSleeper overrides how retry backoff waits.
func WithSleeper(sleep func(context.Context, time.Duration) error) JobOrchestratorOption {
	return func(o *JobOrchestrator) { o.sleep = sleep }
}

// NewJobOrchestrator creates a new orchestrator. Call Start to begin
// consuming the queue.
func NewJobOrchestrator(
	settings settingsSource,
	tokens accessTokenSource,
	drive driven.DriveClient,
	sheets driven.SheetsClient,
	parser driven.DocumentParser,
	store driven.JobStore,
	opts ...JobOrchestratorOption,
) *JobOrchestrator {
	o := &JobOrchestrator{
		settings: settings,
		tokens:   tokens,
		drive:    drive,
		sheets:   sheets,
		parser:   parser,
		store:    store,
		cancels:  NewCancellationRegistry(),
		queue:    newJobQueue(),
		log:      logger.With("jobs"),
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start launches the background consumer. It returns immediately.
func (o *JobOrchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return
	}
	o.running = true
	o.stopCh = make(chan struct{})

	o.wg.Add(1)
	go func(stop <-chan struct{}) {
		defer o.wg.Done()
		o.consume(ctx, stop)
	}(o.stopCh)
}

// Stop closes the queue and waits for the job in progress to finish.
func (o *JobOrchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	o.queue.close()
	close(o.stopCh)
	o.mu.Unlock()

	o.wg.Wait()

	// Jobs still queued stay pending for a later recovery.
	for {
		job, ok := o.queue.pop()
		if !ok {
			return
		}
		o.releaseLease(job)
	}
}

func (o *JobOrchestrator) consume(ctx context.Context, stop <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		if job, ok := o.queue.pop(); ok {
			o.runJob(ctx, job)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-o.queue.ready:
		}
	}
}

// ParseSingle parses one uploaded file.
func (o *JobOrchestrator) ParseSingle(ctx context.Context, fileName string, data []byte) (*domain.ParsedCandidate, error) {
	name := filepath.Base(strings.TrimSpace(fileName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, domain.NewJobError(domain.CodeInvalidRequest, "A file name is required.")
	}
	result := o.parser.ParseBytes(ctx, name, data)
	candidate := domain.NewParsedCandidate("", name, result)
	return &candidate, nil
}

// StartBatchJob validates a request, persists it as pending and queues it.
func (o *JobOrchestrator) StartBatchJob(ctx context.Context, req domain.BatchParseRequest) (string, error) {
	req.FolderID = strings.TrimSpace(req.FolderID)
	req.SpreadsheetID = strings.TrimSpace(req.SpreadsheetID)
	if req.FolderID == "" {
		return "", domain.NewJobError(domain.CodeInvalidRequest, "A Google Drive folder id is required.")
	}

	settings, err := o.settings.Settings(ctx)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}
	o.sweep(ctx, settings)

	if _, err := o.tokens.AccessToken(ctx); err != nil {
		return "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	jobID := id.String()
	job := queuedJob{JobID: jobID, Request: req}

	lease, ok, err := o.store.AcquireLease(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("acquire job lease: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("job %s is already owned", jobID)
	}
	job.Lease = lease

	if err := o.store.SaveRequest(ctx, jobID, req); err != nil {
		o.releaseLease(job)
		return "", fmt.Errorf("save job request: %w", err)
	}
	status := &domain.JobStatus{
		JobID:     jobID,
		State:     domain.JobStatePending,
		CreatedAt: o.now().UTC(),
	}
	if err := o.store.SaveStatus(ctx, status); err != nil {
		o.releaseLease(job)
		return "", fmt.Errorf("save job status: %w", err)
	}

	if !o.queue.push(job) {
		o.releaseLease(job)
		return "", errors.New("job queue is shut down")
	}
	o.log.Info().Str("job_id", jobID).Str("folder_id", req.FolderID).Msg("job queued")
	return jobID, nil
}

// JobStatus returns a job's latest status.
func (o *JobOrchestrator) JobStatus(ctx context.Context, jobID string) (*domain.JobStatus, error) {
	status, err := o.store.GetStatus(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job status: %w", err)
	}
	if status == nil {
		return nil, jobNotFound(jobID)
	}
	return status, nil
}

// JobResults returns a job's saved results.
func (o *JobOrchestrator) JobResults(ctx context.Context, jobID string) ([]domain.ParsedCandidate, error) {
	results, ok, err := o.store.GetResults(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job results: %w", err)
	}
	if ok {
		if results == nil {
			results = []domain.ParsedCandidate{}
		}
		return results, nil
	}

	status, err := o.JobStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !status.State.IsTerminal() {
		return nil, domain.NewJobError(domain.CodeJobNotCompleted,
			fmt.Sprintf("Job %s has not completed yet (%s, %d%%).", jobID, status.State, status.Progress))
	}
	return []domain.ParsedCandidate{}, nil
}

// ListJobs sweeps expired jobs and returns the rest, newest first.
func (o *JobOrchestrator) ListJobs(ctx context.Context) ([]string, error) {
	settings, err := o.settings.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	o.sweep(ctx, settings)

	statuses, err := o.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	ids := make([]string, 0, len(statuses))
	for _, s := range statuses {
		ids = append(ids, s.JobID)
	}
	return ids, nil
}

// CancelJob signals a running job. See driving.JobService.
func (o *JobOrchestrator) CancelJob(jobID string) bool {
	found := o.cancels.Cancel(jobID)
	if found {
		o.log.Info().Str("job_id", jobID).Msg("cancellation requested")
	}
	return found
}

// RecoverInterrupted takes over jobs whose owning process is gone: pending
// jobs are re-queued and jobs left mid-run are failed (their sheet may
// already hold rows). Jobs whose lease is still held, by this process or
// another, are left to their owner.
func (o *JobOrchestrator) RecoverInterrupted(ctx context.Context) (requeued, failed int, err error) {
	statuses, err := o.store.List(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list jobs: %w", err)
	}
	slices.Reverse(statuses)

	for _, status := range statuses {
		if status.State != domain.JobStatePending && status.State != domain.JobStateProcessing {
			continue
		}

		lease, ok, err := o.store.AcquireLease(ctx, status.JobID)
		if err != nil {
			o.log.Warn().Err(err).Str("job_id", status.JobID).Msg("cannot lock job for recovery")
			continue
		}
		if !ok {
			o.log.Debug().Str("job_id", status.JobID).Msg("job is owned by a live process")
			continue
		}
		job := queuedJob{JobID: status.JobID, Lease: lease}

		// The owner may have finished between listing and locking.
		current, err := o.store.GetStatus(ctx, status.JobID)
		if err != nil || current == nil || current.State.IsTerminal() {
			o.releaseLease(job)
			continue
		}

		switch current.State {
		case domain.JobStatePending:
			req, err := o.store.GetRequest(ctx, current.JobID)
			if err != nil || req == nil {
				o.failInterrupted(ctx, current, "Job request record is missing.")
				o.releaseLease(job)
				failed++
				continue
			}
			job.Request = *req
			if o.queue.push(job) {
				requeued++
			} else {
				o.releaseLease(job)
			}
		case domain.JobStateProcessing:
			o.failInterrupted(ctx, current, "Job was interrupted before completion.")
			o.releaseLease(job)
			failed++
		}
	}
	if requeued > 0 || failed > 0 {
		o.log.Info().Int("requeued", requeued).Int("failed", failed).Msg("recovered jobs from previous run")
	}
	return requeued, failed, nil
}

func (o *JobOrchestrator) failInterrupted(ctx context.Context, status *domain.JobStatus, message string) {
	now := o.now().UTC()
	status.State = domain.JobStateFailed
	status.Error = message
	status.Progress = min(status.Progress, 99)
	status.CompletedAt = &now
	if err := o.store.SaveStatus(ctx, status); err != nil {
		o.log.Error().Err(err).Str("job_id", status.JobID).Msg("failed to mark interrupted job")
	}
}

// sweep applies the retention policy. Failures are logged, not returned.
func (o *JobOrchestrator) sweep(ctx context.Context, settings domain.Settings) {
	n, err := o.store.Sweep(ctx, o.now().UTC(), settings.JobRetention())
	if err != nil {
		o.log.Warn().Err(err).Msg("job retention sweep failed")
		return
	}
	if n > 0 {
		o.log.Debug().Int("deleted", n).Msg("expired jobs removed")
	}
}

// QueueLen returns the number of jobs waiting to run.
func (o *JobOrchestrator) QueueLen() int {
	return o.queue.size()
}

// jobRun is the working state of one job on the consumer goroutine.
type jobRun struct {
	status   domain.JobStatus
	request  domain.BatchParseRequest
	settings domain.Settings
	handle   *CancellationHandle
	results  []domain.ParsedCandidate
	log      zerolog.Logger
}

func (o *JobOrchestrator) runJob(ctx context.Context, job queuedJob) {
	run := &jobRun{
		request: job.Request,
		log:     o.log.With().Str("job_id", job.JobID).Logger(),
	}

	status, err := o.store.GetStatus(ctx, job.JobID)
	if err != nil || status == nil {
		run.log.Warn().Err(err).Msg("pending status unavailable, starting fresh")
		status = &domain.JobStatus{JobID: job.JobID, CreatedAt: o.now().UTC()}
	}
	run.status = *status

	run.handle = o.cancels.Register(job.JobID)
	pipeErr := o.runPipeline(ctx, run)
	o.cancels.Remove(job.JobID)

	o.finish(context.WithoutCancel(ctx), run, pipeErr)
	o.releaseLease(job)
}

func (o *JobOrchestrator) releaseLease(job queuedJob) {
	if job.Lease == nil {
		return
	}
	if err := job.Lease.Release(); err != nil {
		o.log.Warn().Err(err).Str("job_id", job.JobID).Msg("failed to release job lease")
	}
}

func (o *JobOrchestrator) runPipeline(ctx context.Context, run *jobRun) error {
	settings, err := o.settings.Settings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	run.settings = settings

	started := o.now().UTC()
	run.status.State = domain.JobStateProcessing
	run.status.StartedAt = &started
	run.status.SpreadsheetID = run.request.SpreadsheetID
	if err := o.saveStatus(ctx, run); err != nil {
		return err
	}
	run.log.Info().Str("folder_id", run.request.FolderID).Msg("job started")

	token, err := o.accessToken(ctx, run)
	if err != nil {
		return err
	}

	files, err := o.listFiles(ctx, run, token)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		run.log.Info().Msg("folder has no resumes")
		return nil
	}
	run.status.TotalFiles = len(files)

	if run.status.SpreadsheetID == "" {
		id, err := o.createSpreadsheet(ctx, run, token)
		if err != nil {
			return err
		}
		run.status.SpreadsheetID = id
	}
	if err := o.saveStatus(ctx, run); err != nil {
		return err
	}

	batchSize := settings.SpreadsheetBatchSize
	for start := 0; start < len(files); start += batchSize {
		if run.handle.Cancelled() {
			return domain.NewJobError(domain.CodeJobCancelled, "Job cancelled.")
		}

		token, err = o.accessToken(ctx, run)
		if err != nil {
			return err
		}

		batch := files[start:min(start+batchSize, len(files))]
		candidates := o.processBatch(ctx, token, batch, settings)
		run.results = append(run.results, candidates...)

		if rows := domain.CandidateRows(candidates); len(rows) > 0 {
			if err := o.appendRows(ctx, run, token, rows, true); err != nil {
				return err
			}
		}

		run.status.ProcessedFiles += len(batch)
		run.status.Progress = domain.ComputeProgress(run.status.ProcessedFiles, run.status.TotalFiles)
		if err := o.saveStatus(ctx, run); err != nil {
			return err
		}
		run.log.Debug().
			Int("processed", run.status.ProcessedFiles).
			Int("total", run.status.TotalFiles).
			Msg("batch complete")
	}
	return nil
}

// processBatch runs every file of a batch through the retry procedure,
// at most MaxConcurrentRequests at a time. Output order matches input.
func (o *JobOrchestrator) processBatch(ctx context.Context, token string, files []domain.DriveFile, settings domain.Settings) []domain.ParsedCandidate {
	out := make([]domain.ParsedCandidate, len(files))

	var g errgroup.Group
	g.SetLimit(settings.MaxConcurrentRequests)
	for i, file := range files {
		g.Go(func() error {
			out[i] = o.processFile(ctx, token, file, settings)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// finish saves results and the terminal status. A cancelled handle always
// yields Revoked, even if the pipeline got to the end.
func (o *JobOrchestrator) finish(ctx context.Context, run *jobRun, pipeErr error) {
	cancelled := run.handle.Cancelled()
	completed := pipeErr == nil && !cancelled

	if run.results == nil {
		run.results = []domain.ParsedCandidate{}
	}
	if err := o.store.SaveResults(ctx, run.status.JobID, run.results); err != nil {
		run.log.Error().Err(err).Msg("failed to save results")
		if completed {
			completed = false
			pipeErr = fmt.Errorf("save results: %w", err)
		}
	}

	now := o.now().UTC()
	status := run.status
	count := len(run.results)
	status.ResultsCount = &count
	status.CompletedAt = &now
	since := status.CreatedAt
	if status.StartedAt != nil {
		since = *status.StartedAt
	}
	duration := now.Sub(since).Seconds()
	status.DurationSeconds = &duration

	switch {
	case completed:
		status.State = domain.JobStateCompleted
		status.Progress = 100
		status.Error = ""
	case cancelled:
		status.State = domain.JobStateRevoked
		status.Progress = min(status.Progress, 99)
		status.Error = "Job cancelled."
	default:
		status.State = domain.JobStateFailed
		status.Progress = min(status.Progress, 99)
		status.Error = pipeErr.Error()
	}

	if err := o.store.SaveStatus(ctx, &status); err != nil {
		run.log.Error().Err(err).Msg("failed to save terminal status")
		return
	}

	ev := run.log.Info()
	if status.State != domain.JobStateCompleted {
		ev = run.log.Warn().Str("error", status.Error)
	}
	ev.Str("state", status.State.String()).
		Int("processed", status.ProcessedFiles).
		Int("results", count).
		Msg("job finished")
}

func (o *JobOrchestrator) saveStatus(ctx context.Context, run *jobRun) error {
	status := run.status
	if err := o.store.SaveStatus(ctx, &status); err != nil {
		return fmt.Errorf("save job status: %w", err)
	}
	return nil
}

func (o *JobOrchestrator) accessToken(ctx context.Context, run *jobRun) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, run.settings.RequestTimeout())
	defer cancel()
	return o.tokens.AccessToken(callCtx)
}

func (o *JobOrchestrator) listFiles(ctx context.Context, run *jobRun, token string) ([]domain.DriveFile, error) {
	callCtx, cancel := context.WithTimeout(ctx, run.settings.RequestTimeout())
	defer cancel()
	files, err := o.drive.ListFiles(callCtx, token, run.request.FolderID)
	if err != nil {
		return nil, err
	}
	run.log.Info().Int("files", len(files)).Msg("folder listed")
	return files, nil
}

func (o *JobOrchestrator) createSpreadsheet(ctx context.Context, run *jobRun, token string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, run.settings.RequestTimeout())
	defer cancel()

	title := spreadsheetTitlePrefix + o.now().Format("2006-01-02 15:04:05")
	id, err := o.sheets.CreateSpreadsheet(callCtx, token, title)
	if err != nil {
		return "", err
	}
	if err := o.sheets.AppendRows(callCtx, token, id, [][]string{domain.ResultSheetHeader}, false); err != nil {
		return "", err
	}
	run.log.Info().Str("spreadsheet_id", id).Msg("spreadsheet created")
	return id, nil
}

func (o *JobOrchestrator) appendRows(ctx context.Context, run *jobRun, token string, rows [][]string, skipHeaderRow bool) error {
	callCtx, cancel := context.WithTimeout(ctx, run.settings.RequestTimeout())
	defer cancel()
	return o.sheets.AppendRows(callCtx, token, run.status.SpreadsheetID, rows, skipHeaderRow)
}

func jobNotFound(jobID string) error {
	return domain.NewJobError(domain.CodeJobNotFound, fmt.Sprintf("Job %s not found.", jobID))
}

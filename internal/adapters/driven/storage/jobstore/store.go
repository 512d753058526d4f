// Package jobstore persists batch jobs as JSON files, one directory per job:
//
//	<root>/<job id>/status.json
//	<root>/<job id>/results.json
//	<root>/<job id>/request.json
//	<root>/<job id>/owner.lock
//
// Every write goes to a temporary file that is renamed into place, so a
// reader never sees a partial record. A job's lease is an advisory lock on
// owner.lock; the operating system drops it when the owning process exits.
package jobstore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
	"github.com/custodia-labs/sourcestack/internal/core/ports/driven"
	"github.com/custodia-labs/sourcestack/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.JobStore = (*Store)(nil)

const (
	statusFile  = "status.json"
	resultsFile = "results.json"
	requestFile = "request.json"
	leaseFile   = "owner.lock"
)

// Store is a file-backed driven.JobStore.
type Store struct {
	root string
	mu   sync.Mutex
}

// New opens a job store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create job directory: %w", err)
	}
	return &Store{root: dir}, nil
}

// Root returns the directory holding the jobs.
func (s *Store) Root() string {
	return s.root
}

// AcquireLease locks the job's owner.lock without waiting. Two leases on
// the same job conflict even within one process.
func (s *Store) AcquireLease(_ context.Context, jobID string) (driven.JobLease, bool, error) {
	path, err := s.path(jobID, leaseFile)
	if err != nil {
		return nil, false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, false, fmt.Errorf("create job directory: %w", err)
	}

	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("lock job %s: %w", jobID, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &lease{lock: lock}, true, nil
}

type lease struct {
	lock *flock.Flock
}

func (l *lease) Release() error {
	return l.lock.Unlock()
}

// SaveStatus creates or replaces a job's status.
func (s *Store) SaveStatus(_ context.Context, status *domain.JobStatus) error {
	return s.write(status.JobID, statusFile, status)
}

// GetStatus returns a job's status, or nil if it does not exist.
func (s *Store) GetStatus(_ context.Context, jobID string) (*domain.JobStatus, error) {
	var status domain.JobStatus
	ok, err := s.read(jobID, statusFile, &status)
	if err != nil || !ok {
		return nil, err
	}
	return &status, nil
}

// SaveResults writes a job's results.
func (s *Store) SaveResults(_ context.Context, jobID string, results []domain.ParsedCandidate) error {
	if results == nil {
		results = []domain.ParsedCandidate{}
	}
	return s.write(jobID, resultsFile, results)
}

// GetResults returns a job's results and whether they exist.
func (s *Store) GetResults(_ context.Context, jobID string) ([]domain.ParsedCandidate, bool, error) {
	var results []domain.ParsedCandidate
	ok, err := s.read(jobID, resultsFile, &results)
	if err != nil || !ok {
		return nil, false, err
	}
	if results == nil {
		results = []domain.ParsedCandidate{}
	}
	return results, true, nil
}

// SaveRequest records the request a job was created from.
func (s *Store) SaveRequest(_ context.Context, jobID string, req domain.BatchParseRequest) error {
	return s.write(jobID, requestFile, req)
}

// GetRequest returns the request a job was created from, or nil.
func (s *Store) GetRequest(_ context.Context, jobID string) (*domain.BatchParseRequest, error) {
	var req domain.BatchParseRequest
	ok, err := s.read(jobID, requestFile, &req)
	if err != nil || !ok {
		return nil, err
	}
	return &req, nil
}

// List returns every readable job status, newest first. Unreadable job
// directories are logged and skipped.
func (s *Store) List(ctx context.Context) ([]*domain.JobStatus, error) {
	ids, err := s.jobIDs()
	if err != nil {
		return nil, err
	}

	out := make([]*domain.JobStatus, 0, len(ids))
	for _, id := range ids {
		status, err := s.GetStatus(ctx, id)
		if err != nil {
			logger.Warn("Skipping unreadable job %s: %v", id, err)
			continue
		}
		if status != nil {
			out = append(out, status)
		}
	}

	slices.SortFunc(out, func(a, b *domain.JobStatus) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.JobID, a.JobID)
	})
	return out, nil
}

// Sweep deletes every job whose retention anchor is older than
// now-retention. Directories without a readable status and jobs whose lease
// is held are left alone.
func (s *Store) Sweep(ctx context.Context, now time.Time, retention time.Duration) (int, error) {
	statuses, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := now.Add(-retention)
	deleted := 0
	for _, status := range statuses {
		if !status.RetentionAnchor().Before(cutoff) {
			continue
		}
		l, ok, err := s.AcquireLease(ctx, status.JobID)
		if err != nil || !ok {
			continue
		}
		err = s.remove(status.JobID)
		if relErr := l.Release(); relErr != nil {
			logger.Debug("Releasing lease of job %s: %v", status.JobID, relErr)
		}
		if err != nil {
			logger.Warn("Failed to delete expired job %s: %v", status.JobID, err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

func (s *Store) jobIDs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read job directory: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && validJobID(e.Name()) {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

func (s *Store) remove(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.RemoveAll(filepath.Join(s.root, jobID))
}

func (s *Store) path(jobID, name string) (string, error) {
	if !validJobID(jobID) {
		return "", fmt.Errorf("invalid job id %q", jobID)
	}
	return filepath.Join(s.root, jobID, name), nil
}

// write encodes v and renames it into place.
func (s *Store) write(jobID, name string, v any) error {
	path, err := s.path(jobID, name)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create job directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+"-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	success = true
	return nil
}

// read decodes a record into v and reports whether it exists.
func (s *Store) read(jobID, name string, v any) (bool, error) {
	path, err := s.path(jobID, name)
	if err != nil {
		// An id that could never have been written does not exist.
		return false, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s for job %s: %w", name, jobID, err)
	}
	return true, nil
}

// validJobID rejects ids that could escape the store directory.
func validJobID(id string) bool {
	return id != "" && id != "." && id != ".." &&
		!strings.ContainsAny(id, `/\`) && !strings.HasPrefix(id, ".")
}

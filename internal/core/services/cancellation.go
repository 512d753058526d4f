package services

import "sync"

// CancellationHandle is a cooperative stop signal for one running job.
// The pipeline polls it at batch boundaries; nothing is interrupted.
type CancellationHandle struct {
	once sync.Once
	done chan struct{}
}

func newCancellationHandle() *CancellationHandle {
	return &CancellationHandle{done: make(chan struct{})}
}

// Cancel signals the handle. Safe to call more than once.
func (h *CancellationHandle) Cancel() {
	h.once.Do(func() { close(h.done) })
}

// Cancelled reports whether Cancel has been called.
func (h *CancellationHandle) Cancelled() bool {
	select {
	case <-h.done:
		return true
	default:
	}
	return false
}

// Done is closed once the handle is cancelled.
func (h *CancellationHandle) Done() <-chan struct{} {
	return h.done
}

// CancellationRegistry maps running job ids to their handles. Only the job
// that registered a handle removes it; Cancel never does.
type CancellationRegistry struct {
	mu      sync.Mutex
	handles map[string]*CancellationHandle
}

// NewCancellationRegistry creates an empty registry.
func NewCancellationRegistry() *CancellationRegistry {
	return &CancellationRegistry{handles: make(map[string]*CancellationHandle)}
}

// Register creates and stores a handle for a starting job.
func (r *CancellationRegistry) Register(jobID string) *CancellationHandle {
	h := newCancellationHandle()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[jobID] = h
	return h
}

// Remove drops a job's handle when the job ends.
func (r *CancellationRegistry) Remove(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, jobID)
}

// Cancel signals a job's handle and reports whether a live job was found.
// The signal is sent under the lock, so a job that removes its handle
// afterwards always observes it.
func (r *CancellationRegistry) Cancel(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[jobID]
	if ok {
		h.Cancel()
	}
	return ok
}

// Len returns the number of live handles.
func (r *CancellationRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

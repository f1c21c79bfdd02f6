package runner

import (
	"context"
	"errors"
	"sync"
)

// JobState is where a submitted job is in its life.
type JobState int

const (
	JobQueued JobState = iota
	JobRunning
	JobDone
	JobFailed
	JobAborted
)

func (s JobState) String() string {
	switch s {
	case JobQueued:
		return "queued"
	case JobRunning:
		return "running"
	case JobDone:
		return "done"
	case JobFailed:
		return "failed"
	case JobAborted:
		return "aborted"
	}
	return "unknown"
}

// JobHandle follows one submitted job.
type JobHandle struct {
	ID    string
	Movie int

	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	state JobState
	err   error
}

// Abort cancels the job. A queued job never starts.
func (h *JobHandle) Abort() { h.cancel() }

// Done is closed when the job has ended.
func (h *JobHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the job ends and returns its error.
func (h *JobHandle) Wait() error {
	<-h.done
	return h.Err()
}

// Err returns the job's error once it has ended.
func (h *JobHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// State returns the job's current state.
func (h *JobHandle) State() JobState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *JobHandle) setState(s JobState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *JobHandle) finish(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
	switch {
	case err == nil:
		h.state = JobDone
	case errors.Is(err, context.Canceled):
		h.state = JobAborted
	default:
		h.state = JobFailed
	}
}

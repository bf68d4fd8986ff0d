// Package queue runs provisioning jobs on named queues. Each queue serves its
// jobs one at a time in arrival order; distinct queues run concurrently.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/edvin/paas/internal/model"
)

var (
	ErrAwaitTimeout = errors.New("timed out waiting for job")
	ErrJobRemoved   = errors.New("job removed from queue")
	ErrJobNotFound  = errors.New("job not found")
	ErrQueueBusy    = errors.New("queue has an active job")
	ErrUnsupported  = errors.New("operation not supported by queue backend")
	ErrClosed       = errors.New("queue manager closed")
	ErrNotStarted   = errors.New("queue manager not started")
)

// State is the lifecycle position of a job.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"
	BackoffExponential BackoffType = "exponential"
)

// maxBackoff caps exponential backoff.
const maxBackoff = 10 * time.Minute

type Backoff struct {
	Type  BackoffType   `json:"type"`
	Delay time.Duration `json:"delay"`
}

// Options control retries. Zero Attempts means one attempt.
type Options struct {
	Attempts int     `json:"attempts"`
	Backoff  Backoff `json:"backoff"`
}

func (o Options) attempts() int {
	if o.Attempts < 1 {
		return 1
	}
	return o.Attempts
}

// delay returns how long to wait after the given failed attempt (1-based).
func (o Options) delay(attempt int) time.Duration {
	d := o.Backoff.Delay
	if d <= 0 {
		return 0
	}
	if o.Backoff.Type != BackoffExponential {
		return d
	}
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// Spec describes a job to enqueue. An empty ID gets a generated one.
type Spec struct {
	ID      string
	Payload model.JobPayload
	Options Options
}

// Handle identifies an enqueued job.
type Handle struct {
	ID    string `json:"id"`
	Queue string `json:"queue"`
}

// Job is a snapshot of a job and its bookkeeping.
type Job struct {
	ID           string           `json:"id"`
	Queue        string           `json:"queue"`
	Kind         model.JobKind    `json:"kind"`
	Payload      model.JobPayload `json:"payload"`
	Options      Options          `json:"options"`
	State        State            `json:"state"`
	AttemptsMade int              `json:"attempts_made"`
	Error        string           `json:"error,omitempty"`
	Result       json.RawMessage  `json:"result,omitempty"`
	EnqueuedAt   time.Time        `json:"enqueued_at"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	FinishedAt   *time.Time       `json:"finished_at,omitempty"`
}

// LastAttempt reports whether a failure of the running attempt is final
// unless the error is permanent anyway.
func (j *Job) LastAttempt() bool {
	return j.AttemptsMade >= j.Options.attempts()
}

// Counts tallies jobs per state.
type Counts struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

type QueueStats struct {
	Name   string `json:"name"`
	Counts Counts `json:"counts"`
}

// Handler executes one job attempt. The returned value is marshaled to JSON
// and handed to Await callers.
type Handler interface {
	Handle(ctx context.Context, job *Job) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *Job) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, job *Job) (any, error) {
	return f(ctx, job)
}

// Dispatcher enqueues jobs and waits for them. Enqueueing an ID that is still
// waiting or active returns the existing handle without a second run.
type Dispatcher interface {
	Enqueue(ctx context.Context, queueName string, spec Spec) (Handle, error)
	// Await blocks until the job finishes or ctx is done. A deadline is
	// reported as ErrAwaitTimeout while the job keeps running.
	Await(ctx context.Context, h Handle) (json.RawMessage, error)
}

// Inspector exposes queue state to operators.
type Inspector interface {
	ListQueues(prefix string) ([]string, error)
	Stats(prefix string) ([]QueueStats, error)
	Job(queueName, id string) (*Job, error)
	Flush(queueName string, force bool) error
}

// JobError is the terminal error of a failed job.
type JobError struct {
	Queue string
	ID    string
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s on %s: %v", e.ID, e.Queue, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// PermanentError marks an error that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the queue fails the job without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	var p *PermanentError
	if errors.As(err, &p) {
		return err
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// MarshalResult encodes a handler result for Await callers.
func MarshalResult(v any) (json.RawMessage, error) {
	switch r := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return r, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal job result: %w", err)
	}
	return b, nil
}

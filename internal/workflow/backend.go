package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	sdkworkflow "go.temporal.io/sdk/workflow"

	"github.com/edvin/paas/internal/platform"
	"github.com/edvin/paas/internal/queue"
)

// Backend implements queue.Dispatcher on Temporal. A worker is started for
// each queue name the first time it is used; it runs one activity at a time
// so jobs on a queue stay serial.
type Backend struct {
	client client.Client
	logger zerolog.Logger

	mu      sync.Mutex
	handler queue.Handler
	workers map[string]worker.Worker
	closed  bool
}

var (
	_ queue.Dispatcher = (*Backend)(nil)
	_ queue.Inspector  = (*Backend)(nil)
)

func NewBackend(c client.Client, logger zerolog.Logger) *Backend {
	return &Backend{
		client:  c,
		logger:  logger.With().Str("component", "temporal-queue").Logger(),
		workers: make(map[string]worker.Worker),
	}
}

// Start installs the handler. Queues passed here get workers immediately so
// jobs left over from a previous process are picked up.
func (b *Backend) Start(ctx context.Context, h queue.Handler, queues ...string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return queue.ErrClosed
	}
	b.handler = h
	b.mu.Unlock()
	for _, name := range queues {
		if err := b.listen(name); err != nil {
			return err
		}
	}
	return nil
}

// Close stops every worker.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for name, w := range b.workers {
		w.Stop()
		delete(b.workers, name)
	}
}

func (b *Backend) listen(queueName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return queue.ErrClosed
	}
	if b.handler == nil {
		return queue.ErrNotStarted
	}
	if _, ok := b.workers[queueName]; ok {
		return nil
	}
	w := worker.New(b.client, queueName, worker.Options{MaxConcurrentActivityExecutionSize: 1})
	w.RegisterWorkflowWithOptions(JobWorkflow, sdkworkflow.RegisterOptions{Name: JobWorkflowName})
	w.RegisterActivity(&Activities{Handler: b.handler})
	if err := w.Start(); err != nil {
		return fmt.Errorf("start worker for %s: %w", queueName, err)
	}
	b.workers[queueName] = w
	b.logger.Info().Str("queue", queueName).Msg("temporal worker started")
	return nil
}

func (b *Backend) Enqueue(ctx context.Context, queueName string, spec queue.Spec) (queue.Handle, error) {
	if queueName == "" {
		return queue.Handle{}, fmt.Errorf("enqueue job: queue name is required")
	}
	if spec.Payload == nil {
		return queue.Handle{}, fmt.Errorf("enqueue job: payload is required")
	}
	if spec.ID == "" {
		spec.ID = platform.NewID()
	}
	if err := b.listen(queueName); err != nil {
		return queue.Handle{}, err
	}
	raw, err := json.Marshal(spec.Payload)
	if err != nil {
		return queue.Handle{}, fmt.Errorf("marshal job payload: %w", err)
	}
	in := JobInput{
		ID:         spec.ID,
		Queue:      queueName,
		Kind:       spec.Payload.Kind(),
		Payload:    raw,
		Options:    spec.Options,
		EnqueuedAt: time.Now(),
	}
	run, err := b.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       spec.ID,
		TaskQueue:                queueName,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
	}, JobWorkflowName, in)
	if err != nil {
		return queue.Handle{}, fmt.Errorf("start job workflow %s: %w", spec.ID, err)
	}
	b.logger.Info().Str("queue", queueName).Str("job_id", spec.ID).Str("kind", string(in.Kind)).Str("run_id", run.GetRunID()).Msg("job enqueued")
	return queue.Handle{ID: run.GetID(), Queue: queueName}, nil
}

func (b *Backend) Await(ctx context.Context, h queue.Handle) (json.RawMessage, error) {
	var out json.RawMessage
	err := b.client.GetWorkflow(ctx, h.ID, "").Get(ctx, &out)
	if err == nil {
		return out, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("await job %s on %s: %w", h.ID, h.Queue, queue.ErrAwaitTimeout)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		return nil, fmt.Errorf("await job %s: %w", h.ID, queue.ErrJobNotFound)
	}
	return nil, &queue.JobError{Queue: h.Queue, ID: h.ID, Err: jobFailure(err)}
}

// jobFailure strips the workflow and activity layers off err so callers see
// the handler's message.
func jobFailure(err error) error {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return errors.New(appErr.Message())
	}
	return err
}

func (b *Backend) ListQueues(prefix string) ([]string, error) { return nil, queue.ErrUnsupported }

func (b *Backend) Stats(prefix string) ([]queue.QueueStats, error) { return nil, queue.ErrUnsupported }

func (b *Backend) Job(queueName, id string) (*queue.Job, error) { return nil, queue.ErrUnsupported }

func (b *Backend) Flush(queueName string, force bool) error { return queue.ErrUnsupported }

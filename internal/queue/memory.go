package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/paas/internal/platform"
)

// ManagerOptions tune the in-process queue manager.
type ManagerOptions struct {
	Retention       time.Duration
	FailedRetention time.Duration
	JanitorInterval time.Duration
}

func (o ManagerOptions) withDefaults() ManagerOptions {
	if o.Retention <= 0 {
		o.Retention = 24 * time.Hour
	}
	if o.FailedRetention <= 0 {
		o.FailedRetention = 7 * 24 * time.Hour
	}
	if o.JanitorInterval <= 0 {
		o.JanitorInterval = time.Minute
	}
	return o
}

// Manager is the in-process queue backend. Each named queue is served by its
// own goroutine.
type Manager struct {
	logger zerolog.Logger
	opts   ManagerOptions

	mu      sync.Mutex
	queues  map[string]*namedQueue
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

type namedQueue struct {
	name    string
	pending []*entry
	jobs    map[string]*entry
	active  *entry
	wake    chan struct{}
	stop    chan struct{}
	running bool
}

type entry struct {
	job     Job
	done    chan struct{}
	err     error
	discard bool
}

func (e *entry) finished() bool {
	return e.job.State == StateCompleted || e.job.State == StateFailed
}

// NewManager creates a manager. Jobs may be enqueued only after Start.
func NewManager(logger zerolog.Logger, opts ManagerOptions) *Manager {
	return &Manager{
		logger: logger.With().Str("component", "queue").Logger(),
		opts:   opts.withDefaults(),
		queues: make(map[string]*namedQueue),
	}
}

// Start binds the handler and starts the retention janitor. Workers stop when
// ctx is cancelled or Close is called.
func (m *Manager) Start(ctx context.Context, h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.handler != nil {
		return fmt.Errorf("queue manager already started")
	}
	m.handler = h
	m.ctx, m.cancel = context.WithCancel(ctx)
	for _, q := range m.queues {
		m.startWorker(q)
	}

	m.wg.Add(1)
	go m.janitor()
	return nil
}

// Close stops all workers and fails every job that has not finished.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.queues {
		for _, e := range q.pending {
			m.finish(e, nil, ErrClosed)
		}
		q.pending = nil
	}
}

func (m *Manager) Enqueue(ctx context.Context, queueName string, spec Spec) (Handle, error) {
	if queueName == "" {
		return Handle{}, fmt.Errorf("enqueue job: queue name is required")
	}
	if spec.Payload == nil {
		return Handle{}, fmt.Errorf("enqueue job: payload is required")
	}
	if spec.ID == "" {
		spec.ID = platform.NewID()
	}
	h := Handle{ID: spec.ID, Queue: queueName}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Handle{}, ErrClosed
	}
	if m.handler == nil {
		return Handle{}, ErrNotStarted
	}

	q := m.queues[queueName]
	if q == nil {
		q = &namedQueue{
			name: queueName,
			jobs: make(map[string]*entry),
			wake: make(chan struct{}, 1),
			stop: make(chan struct{}),
		}
		m.queues[queueName] = q
	}

	if prev, ok := q.jobs[spec.ID]; ok && !prev.finished() {
		m.logger.Debug().Str("queue", queueName).Str("job_id", spec.ID).Msg("job already queued")
		return h, nil
	}

	kind := spec.Payload.Kind()
	e := &entry{
		job: Job{
			ID:         spec.ID,
			Queue:      queueName,
			Kind:       kind,
			Payload:    spec.Payload,
			Options:    spec.Options,
			State:      StateWaiting,
			EnqueuedAt: time.Now(),
		},
		done: make(chan struct{}),
	}
	q.jobs[spec.ID] = e
	q.pending = append(q.pending, e)
	jobsEnqueued.WithLabelValues(string(kind)).Inc()
	m.startWorker(q)

	select {
	case q.wake <- struct{}{}:
	default:
	}

	m.logger.Info().Str("queue", queueName).Str("job_id", spec.ID).Str("kind", string(kind)).Msg("job enqueued")
	return h, nil
}

func (m *Manager) Await(ctx context.Context, h Handle) (json.RawMessage, error) {
	m.mu.Lock()
	var e *entry
	if q := m.queues[h.Queue]; q != nil {
		e = q.jobs[h.ID]
	}
	m.mu.Unlock()
	if e == nil {
		return nil, fmt.Errorf("await job %s: %w", h.ID, ErrJobNotFound)
	}

	select {
	case <-e.done:
		return e.job.Result, e.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("await job %s on %s: %w", h.ID, h.Queue, ErrAwaitTimeout)
		}
		return nil, ctx.Err()
	}
}

// startWorker must be called with m.mu held.
func (m *Manager) startWorker(q *namedQueue) {
	if q.running || m.ctx == nil {
		return
	}
	q.running = true
	m.wg.Add(1)
	go m.work(q)
}

func (m *Manager) work(q *namedQueue) {
	defer m.wg.Done()
	for {
		e := m.next(q)
		if e == nil {
			select {
			case <-q.wake:
				continue
			case <-q.stop:
				return
			case <-m.ctx.Done():
				return
			}
		}
		m.run(q, e)
	}
}

func (m *Manager) next(q *namedQueue) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(q.pending) == 0 || m.ctx.Err() != nil {
		return nil
	}
	e := q.pending[0]
	q.pending = q.pending[1:]
	q.active = e
	now := time.Now()
	e.job.State = StateActive
	e.job.StartedAt = &now
	return e
}

func (m *Manager) run(q *namedQueue, e *entry) {
	kind := string(e.job.Kind)
	logger := m.logger.With().Str("queue", q.name).Str("job_id", e.job.ID).Str("kind", kind).Logger()
	jobsActive.WithLabelValues(kind).Inc()
	defer jobsActive.WithLabelValues(kind).Dec()
	start := time.Now()

	attempts := e.job.Options.attempts()
	var (
		result any
		err    error
	)
	for attempt := 1; ; attempt++ {
		m.mu.Lock()
		e.job.AttemptsMade = attempt
		snapshot := e.job
		m.mu.Unlock()

		result, err = m.invoke(&snapshot)
		if err == nil {
			break
		}
		if IsPermanent(err) || attempt >= attempts || m.ctx.Err() != nil {
			break
		}

		delay := e.job.Options.delay(attempt)
		logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("job attempt failed, retrying")
		jobRetries.WithLabelValues(kind).Inc()
		if !sleep(m.ctx, delay) {
			err = fmt.Errorf("%w: %w", ErrClosed, err)
			break
		}
	}

	var raw json.RawMessage
	if err == nil {
		raw, err = MarshalResult(result)
	}
	jobDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	q.active = nil
	m.finish(e, raw, err)
	if e.discard {
		delete(q.jobs, e.job.ID)
	}
	if err != nil {
		logger.Error().Err(err).Int("attempts", e.job.AttemptsMade).Msg("job failed")
	} else {
		logger.Info().Dur("duration", time.Since(start)).Msg("job completed")
	}
}

// invoke runs one attempt and turns a handler panic into a permanent error.
func (m *Manager) invoke(job *Job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("job handler panicked: %v", r))
		}
	}()
	return m.handler.Handle(m.ctx, job)
}

// finish must be called with m.mu held.
func (m *Manager) finish(e *entry, raw json.RawMessage, err error) {
	now := time.Now()
	e.job.FinishedAt = &now
	kind := string(e.job.Kind)
	if err != nil {
		var pe *PermanentError
		if errors.As(err, &pe) {
			err = pe.Err
		}
		e.job.State = StateFailed
		e.job.Error = err.Error()
		e.err = &JobError{Queue: e.job.Queue, ID: e.job.ID, Err: err}
		jobsTotal.WithLabelValues(kind, string(StateFailed)).Inc()
	} else {
		e.job.State = StateCompleted
		e.job.Result = raw
		jobsTotal.WithLabelValues(kind, string(StateCompleted)).Inc()
	}
	close(e.done)
}

func (m *Manager) ListQueues(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.queues))
	for name := range m.queues {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *Manager) Stats(prefix string) ([]QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := make([]QueueStats, 0)
	for name, q := range m.queues {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		var c Counts
		for _, e := range q.jobs {
			switch e.job.State {
			case StateWaiting:
				c.Waiting++
			case StateActive:
				c.Active++
			case StateCompleted:
				c.Completed++
			case StateFailed:
				c.Failed++
			}
		}
		stats = append(stats, QueueStats{Name: name, Counts: c})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats, nil
}

func (m *Manager) Job(queueName, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queues[queueName]
	if q == nil {
		return nil, fmt.Errorf("get job %s: %w", id, ErrJobNotFound)
	}
	e := q.jobs[id]
	if e == nil {
		return nil, fmt.Errorf("get job %s: %w", id, ErrJobNotFound)
	}
	job := e.job
	return &job, nil
}

// Flush removes every job from a queue. Without force it refuses while a job
// is active. With force the active job runs to completion but is not retained.
func (m *Manager) Flush(queueName string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queues[queueName]
	if q == nil {
		return nil
	}
	if q.active != nil && !force {
		return fmt.Errorf("flush %s: %w", queueName, ErrQueueBusy)
	}

	for _, e := range q.pending {
		e.job.State = StateFailed
		e.job.Error = ErrJobRemoved.Error()
		e.err = &JobError{Queue: queueName, ID: e.job.ID, Err: ErrJobRemoved}
		close(e.done)
	}
	q.pending = nil
	for id, e := range q.jobs {
		if e == q.active {
			e.discard = true
			continue
		}
		delete(q.jobs, id)
	}
	if q.active == nil {
		m.removeQueue(q)
	}
	m.logger.Info().Str("queue", queueName).Bool("force", force).Msg("queue flushed")
	return nil
}

// removeQueue must be called with m.mu held.
func (m *Manager) removeQueue(q *namedQueue) {
	delete(m.queues, q.name)
	close(q.stop)
}

func (m *Manager) janitor() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.opts.JanitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			m.purge(now)
		}
	}
}

// purge drops finished jobs past their retention and idle empty queues.
func (m *Manager) purge(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for _, q := range m.queues {
		for id, e := range q.jobs {
			if !e.finished() || e.job.FinishedAt == nil {
				continue
			}
			keep := m.opts.Retention
			if e.job.State == StateFailed {
				keep = m.opts.FailedRetention
			}
			if now.Sub(*e.job.FinishedAt) > keep {
				delete(q.jobs, id)
				removed++
			}
		}
		if len(q.jobs) == 0 && len(q.pending) == 0 && q.active == nil {
			m.removeQueue(q)
		}
	}
	if removed > 0 {
		m.logger.Debug().Int("removed", removed).Msg("purged finished jobs")
	}
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

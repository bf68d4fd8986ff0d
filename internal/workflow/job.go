// Package workflow runs queue jobs on Temporal. Each job is one workflow
// whose single activity calls the same queue.Handler as the in-process
// backend.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/queue"
)

const (
	JobWorkflowName = "JobWorkflow"
	RunJobName      = "RunJob"

	// PermanentErrorType marks activity failures that must not be retried.
	PermanentErrorType = "PermanentJobError"
)

// JobInput is the workflow and activity argument. The payload travels as
// raw JSON and is decoded by kind on the worker.
type JobInput struct {
	ID         string          `json:"id"`
	Queue      string          `json:"queue"`
	Kind       model.JobKind   `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Options    queue.Options   `json:"options"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// JobWorkflow runs one attempt loop of a job on the job's own task queue.
func JobWorkflow(ctx workflow.Context, in JobInput) (json.RawMessage, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		TaskQueue:           in.Queue,
		StartToCloseTimeout: 2 * time.Hour,
		RetryPolicy:         RetryPolicy(in.Options),
	})
	var out json.RawMessage
	if err := workflow.ExecuteActivity(ctx, RunJobName, in).Get(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RetryPolicy maps queue retry options onto a Temporal policy.
func RetryPolicy(o queue.Options) *temporal.RetryPolicy {
	attempts := o.Attempts
	if attempts < 1 {
		attempts = 1
	}
	p := &temporal.RetryPolicy{
		MaximumAttempts:        int32(attempts),
		InitialInterval:        o.Backoff.Delay,
		BackoffCoefficient:     1.0,
		NonRetryableErrorTypes: []string{PermanentErrorType},
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = time.Second
	}
	if o.Backoff.Type == queue.BackoffExponential {
		p.BackoffCoefficient = 2.0
	}
	return p
}

// Activities hosts RunJob.
type Activities struct {
	Handler queue.Handler
}

// RunJob decodes the payload and hands the job to the handler. Errors
// wrapped with queue.Permanent become non-retryable.
func (a *Activities) RunJob(ctx context.Context, in JobInput) (json.RawMessage, error) {
	payload, err := model.DecodeJobPayload(in.Kind, in.Payload)
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), PermanentErrorType, err)
	}
	info := activity.GetInfo(ctx)
	started := info.StartedTime
	job := &queue.Job{
		ID:           in.ID,
		Queue:        in.Queue,
		Kind:         in.Kind,
		Payload:      payload,
		Options:      in.Options,
		State:        queue.StateActive,
		AttemptsMade: int(info.Attempt),
		EnqueuedAt:   in.EnqueuedAt,
		StartedAt:    &started,
	}

	result, err := a.Handler.Handle(ctx, job)
	if err != nil {
		var pe *queue.PermanentError
		if errors.As(err, &pe) {
			return nil, temporal.NewNonRetryableApplicationError(pe.Err.Error(), PermanentErrorType, pe.Err)
		}
		return nil, temporal.NewApplicationError(err.Error(), string(in.Kind), err)
	}
	return queue.MarshalResult(result)
}

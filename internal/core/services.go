// Package core is the action layer called by the HTTP API, the MCP tools and
// the CLI. It turns requests into records and queued jobs.
package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/edvin/paas/internal/activity"
	"github.com/edvin/paas/internal/events"
	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/queue"
	"github.com/edvin/paas/internal/store"
	"github.com/edvin/paas/internal/template"
)

var (
	// ErrInvalidInput is returned for requests that can never succeed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTemplateNotFound is returned for names missing from the catalog.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrNotConfigured is returned for actions whose backing service the
	// process was started without.
	ErrNotConfigured = errors.New("not configured")
)

// Submitted identifies a queued job and, for deployments, its record.
type Submitted struct {
	JobID        string `json:"job_id"`
	Queue        string `json:"queue"`
	DeploymentID string `json:"deployment_id,omitempty"`
}

type Services struct {
	Server     *ServerService
	Project    *ProjectService
	Service    *ServiceService
	Deployment *DeploymentService
	Queue      *QueueService
}

// Deps are shared by every service. Inspector may be nil when the queue
// backend cannot be inspected. Backups is set when object storage is
// configured.
type Deps struct {
	Store     store.Store
	Queue     queue.Dispatcher
	Inspector queue.Inspector
	Events    events.Publisher
	Catalog   *template.Catalog
	Backups   bool
	Logger    zerolog.Logger
}

func NewServices(d Deps) *Services {
	if d.Catalog == nil {
		d.Catalog = &template.Catalog{}
	}
	e := &enqueuer{queue: d.Queue, events: d.Events, logger: d.Logger.With().Str("component", "core").Logger()}
	return &Services{
		Server:     NewServerService(d.Store, e),
		Project:    NewProjectService(d.Store),
		Service:    NewServiceService(d.Store, d.Events, e, d.Backups),
		Deployment: NewDeploymentService(d.Store, d.Inspector, d.Catalog, e),
		Queue:      NewQueueService(d.Inspector),
	}
}

type enqueuer struct {
	queue  queue.Dispatcher
	events events.Publisher
	logger zerolog.Logger
}

// submit queues p on its server's queue for the kind with the kind's retry
// policy and tells the tenant's dashboards to refresh.
func (e *enqueuer) submit(ctx context.Context, id string, p model.JobPayload) (Submitted, error) {
	jc := p.Context()
	if jc.ServerID == "" {
		return Submitted{}, fmt.Errorf("%w: job %s has no server", ErrInvalidInput, p.Kind())
	}
	name := model.QueueName(jc.ServerID, p.Kind())
	h, err := e.queue.Enqueue(ctx, name, queue.Spec{ID: id, Payload: p, Options: activity.DefaultOptions(p.Kind())})
	if err != nil {
		return Submitted{}, fmt.Errorf("enqueue %s: %w", p.Kind(), err)
	}
	if jc.TenantSlug != "" {
		e.events.PublishAction(jc.TenantSlug, model.ActionRefresh)
	}
	e.logger.Info().Str("queue", h.Queue).Str("job_id", h.ID).Str("kind", string(p.Kind())).Msg("job submitted")
	return Submitted{JobID: h.ID, Queue: h.Queue, DeploymentID: jc.DeploymentID}, nil
}

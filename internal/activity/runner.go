// Package activity holds the provisioning workers. Each job kind connects to
// its server, runs host commands, records the outcome and reports progress.
package activity

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/paas/internal/events"
	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/plugin"
	"github.com/edvin/paas/internal/queue"
	"github.com/edvin/paas/internal/remote"
	"github.com/edvin/paas/internal/store"
)

// Uploader stores database dumps. *backup.S3Uploader implements it.
type Uploader interface {
	Bucket() string
	Upload(ctx context.Context, key string, body io.ReadSeeker, size int64) error
}

// TemplateDeployer runs a multi-service rollout.
type TemplateDeployer interface {
	DeployTemplate(ctx context.Context, p *model.DeployTemplatePayload) (any, error)
}

// Deps are the collaborators shared by every worker.
type Deps struct {
	Store    store.Store
	Executor remote.Executor
	Plugins  *plugin.Manager
	Events   events.Publisher
	// Uploader is nil when object storage is not configured.
	Uploader  Uploader
	Templates TemplateDeployer
	// TempDir holds backup dumps while they upload. Empty means os.TempDir.
	TempDir string
	Now     func() time.Time
}

// Runner is the queue.Handler for every job kind.
type Runner struct {
	deps   Deps
	logger zerolog.Logger
}

var _ queue.Handler = (*Runner)(nil)

func NewRunner(deps Deps, logger zerolog.Logger) *Runner {
	if deps.Plugins == nil {
		deps.Plugins = plugin.NewManager(nil, deps.Store, logger)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Runner{
		deps:   deps,
		logger: logger.With().Str("component", "activity").Logger(),
	}
}

// Handle dispatches job to the worker for its payload type.
func (r *Runner) Handle(ctx context.Context, job *queue.Job) (any, error) {
	switch p := job.Payload.(type) {
	case *model.CreateDatabasePayload:
		return r.CreateDatabase(ctx, job, p)
	case *model.DeployAppPayload:
		return r.DeployApp(ctx, job, p)
	case *model.DeployDockerPayload:
		return r.DeployDocker(ctx, job, p)
	case *model.DestroyResourcePayload:
		return r.DestroyResource(ctx, job, p)
	case *model.UpdateEnvironmentPayload:
		return r.UpdateEnvironment(ctx, job, p)
	case *model.UpdateVolumesPayload:
		return r.UpdateVolumes(ctx, job, p)
	case *model.ExposePortPayload:
		return r.ExposePort(ctx, job, p)
	case *model.DeployTemplatePayload:
		return r.DeployTemplate(ctx, job, p)
	case *model.SyncPluginsPayload:
		return r.SyncPlugins(ctx, job, p)
	case *model.BackupDatabasePayload:
		return r.BackupDatabase(ctx, job, p)
	default:
		return nil, queue.Permanent(fmt.Errorf("unsupported job payload %T", job.Payload))
	}
}

// Result is what a worker hands back to Await callers.
type Result struct {
	ServiceID    string                     `json:"service_id,omitempty"`
	DeploymentID string                     `json:"deployment_id,omitempty"`
	Name         string                     `json:"name,omitempty"`
	Plugins      []model.PluginInstallation `json:"plugins,omitempty"`
	BackupID     string                     `json:"backup_id,omitempty"`
	BackupKey    string                     `json:"backup_key,omitempty"`
}

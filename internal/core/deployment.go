package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/edvin/paas/internal/events"
	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/orchestrator"
	"github.com/edvin/paas/internal/platform"
	"github.com/edvin/paas/internal/queue"
	"github.com/edvin/paas/internal/store"
	"github.com/edvin/paas/internal/template"
)

type DeploymentService struct {
	store     store.Store
	inspector queue.Inspector
	catalog   *template.Catalog
	events    events.Publisher
	jobs      *enqueuer
}

func NewDeploymentService(st store.Store, inspector queue.Inspector, catalog *template.Catalog, jobs *enqueuer) *DeploymentService {
	return &DeploymentService{store: st, inspector: inspector, catalog: catalog, events: jobs.events, jobs: jobs}
}

// Trigger queues the main provisioning job for a stored service with a new
// deployment record. While a deployment of the service is still waiting or
// running, that one is returned instead.
func (s *DeploymentService) Trigger(ctx context.Context, serviceID string) (Submitted, error) {
	t, err := loadTarget(ctx, s.store, serviceID)
	if err != nil {
		return Submitted{}, err
	}
	kind, err := mainKind(t.svc.Type)
	if err != nil {
		return Submitted{}, err
	}
	jobID := orchestrator.JobID(kind, t.svc.ID)
	if pending, ok := s.pending(model.QueueName(t.server.ID, kind), jobID); ok {
		return pending, nil
	}

	siblings, err := s.store.ListServices(ctx, t.project.ID)
	if err != nil {
		return Submitted{}, fmt.Errorf("list project services: %w", err)
	}
	vars := template.ResolveVariables(t.svc.Variables, template.ServiceLookup(siblings))

	dep := &model.Deployment{ID: platform.NewID(), ServiceID: t.svc.ID, Status: model.DeploymentQueued}
	if err := s.store.CreateDeployment(ctx, dep); err != nil {
		return Submitted{}, fmt.Errorf("create deployment: %w", err)
	}
	jc := t.context()
	jc.DeploymentID = dep.ID
	p, err := orchestrator.MainPayload(t.svc, jc, orchestrator.JobSSH(t.server), vars)
	if err != nil {
		s.discard(ctx, dep.ID, err.Error())
		return Submitted{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	sub, err := s.jobs.submit(ctx, jobID, p)
	if err != nil {
		s.discard(ctx, dep.ID, err.Error())
		return Submitted{}, err
	}
	// A concurrent trigger may have queued the job first.
	if pending, ok := s.pending(sub.Queue, sub.JobID); ok && pending.DeploymentID != dep.ID {
		s.discard(ctx, dep.ID, "superseded by deployment "+pending.DeploymentID)
		return pending, nil
	}
	return sub, nil
}

// discard fails a deployment record whose job was never queued.
func (s *DeploymentService) discard(ctx context.Context, id, reason string) {
	if err := s.store.UpdateDeployment(ctx, id, model.DeploymentFailed, []string{"!     " + reason}); err != nil {
		s.jobs.logger.Error().Err(err).Str("deployment_id", id).Msg("discard deployment")
	}
}

func (s *DeploymentService) pending(queueName, jobID string) (Submitted, bool) {
	if s.inspector == nil {
		return Submitted{}, false
	}
	job, err := s.inspector.Job(queueName, jobID)
	if err != nil || (job.State != queue.StateWaiting && job.State != queue.StateActive) {
		return Submitted{}, false
	}
	return Submitted{JobID: job.ID, Queue: job.Queue, DeploymentID: job.Payload.Context().DeploymentID}, true
}

func mainKind(t model.ServiceType) (model.JobKind, error) {
	switch t {
	case model.ServiceTypeApp:
		return model.JobDeployApp, nil
	case model.ServiceTypeDocker:
		return model.JobDeployDocker, nil
	case model.ServiceTypeDatabase:
		return model.JobCreateDatabase, nil
	}
	return "", fmt.Errorf("%w: unknown service type %q", ErrInvalidInput, t)
}

// AddTemplateDeployQueue queues a rollout of services into a project. The
// services are checked here so a bad request fails before anything runs.
func (s *DeploymentService) AddTemplateDeployQueue(ctx context.Context, services []model.ServiceSpec, projectID, serverID, tenantSlug string) (Submitted, error) {
	if len(services) == 0 {
		return Submitted{}, fmt.Errorf("%w: no services to deploy", ErrInvalidInput)
	}
	for _, spec := range services {
		if err := orchestrator.ValidateSpec(spec); err != nil {
			return Submitted{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return Submitted{}, fmt.Errorf("get project %s: %w", projectID, err)
	}
	if serverID == "" {
		serverID = project.ServerID
	}
	if tenantSlug == "" {
		tenantSlug = project.TenantSlug
	}
	p := &model.DeployTemplatePayload{
		JobContext: model.JobContext{TenantSlug: tenantSlug, ServerID: serverID, ProjectID: project.ID},
		Services:   services,
	}
	return s.jobs.submit(ctx, platform.NewID(), p)
}

// DeployTemplate rolls out a catalog template into a project.
func (s *DeploymentService) DeployTemplate(ctx context.Context, name, projectID string) (Submitted, error) {
	tmpl, ok := s.catalog.Get(name)
	if !ok {
		return Submitted{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return s.AddTemplateDeployQueue(ctx, tmpl.Services, projectID, "", "")
}

func (s *DeploymentService) Templates() []model.Template {
	return s.catalog.List()
}

// AddCreateDatabaseWithPluginsQueue queues creation of a database on the
// host named by ssh, installing its plugin first when missing. The server
// must be registered: workers connect with its stored key. jc names the
// records the job reports to and may be empty apart from the server.
func (s *DeploymentService) AddCreateDatabaseWithPluginsQueue(ctx context.Context, name, dbType string, ssh model.SSHDetails, jc model.JobContext) (Submitted, error) {
	if name == "" || dbType == "" {
		return Submitted{}, fmt.Errorf("%w: database needs a name and a type", ErrInvalidInput)
	}
	if jc.ServerID == "" {
		jc.ServerID = ssh.ServerID
	}
	if jc.ServerID == "" {
		return Submitted{}, fmt.Errorf("%w: database job needs a server", ErrInvalidInput)
	}
	srv, err := s.store.GetServer(ctx, jc.ServerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Submitted{}, fmt.Errorf("%w: server %s is not registered", ErrInvalidInput, jc.ServerID)
		}
		return Submitted{}, fmt.Errorf("get server %s: %w", jc.ServerID, err)
	}
	if jc.TenantSlug == "" {
		jc.TenantSlug = srv.TenantSlug
	}
	ssh.ServerID = srv.ID
	ssh.PrivateKey = ""
	p := &model.CreateDatabasePayload{JobContext: jc, SSH: ssh, DatabaseName: name, DatabaseType: dbType}

	id := orchestrator.JobID(p.Kind(), jc.ServerID+"-"+name)
	if jc.ServiceID != "" {
		id = orchestrator.JobID(p.Kind(), jc.ServiceID)
	}
	return s.jobs.submit(ctx, id, p)
}

// CreateDatabase queues a database on a registered server.
func (s *DeploymentService) CreateDatabase(ctx context.Context, serverID, name, dbType string, jc model.JobContext) (Submitted, error) {
	srv, err := s.store.GetServer(ctx, serverID)
	if err != nil {
		return Submitted{}, fmt.Errorf("get server %s: %w", serverID, err)
	}
	jc.ServerID = srv.ID
	jc.TenantSlug = srv.TenantSlug
	return s.AddCreateDatabaseWithPluginsQueue(ctx, name, dbType, orchestrator.JobSSH(srv), jc)
}

func (s *DeploymentService) Get(ctx context.Context, id string) (*model.Deployment, error) {
	d, err := s.store.GetDeployment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get deployment %s: %w", id, err)
	}
	return d, nil
}

// Logs returns the live log of a deployment, falling back to the lines
// stored on the record once the in-memory buffer is gone.
func (s *DeploymentService) Logs(ctx context.Context, id string) ([]string, error) {
	if lines := s.events.ReadLog(id); len(lines) > 0 {
		return lines, nil
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return d.Logs, nil
}

package core

import (
	"context"
	"fmt"

	"github.com/edvin/paas/internal/events"
	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/orchestrator"
	"github.com/edvin/paas/internal/platform"
	"github.com/edvin/paas/internal/store"
	"github.com/edvin/paas/internal/template"
)

type ServiceService struct {
	store   store.Store
	events  events.Publisher
	jobs    *enqueuer
	backups bool
}

func NewServiceService(st store.Store, pub events.Publisher, jobs *enqueuer, backups bool) *ServiceService {
	return &ServiceService{store: st, events: pub, jobs: jobs, backups: backups}
}

// target is a service with the project and server it runs on.
type target struct {
	svc     *model.Service
	project *model.Project
	server  *model.Server
}

func (t target) context() model.JobContext {
	return model.JobContext{
		TenantSlug: t.project.TenantSlug,
		ServerID:   t.server.ID,
		ProjectID:  t.project.ID,
		ServiceID:  t.svc.ID,
	}
}

func loadTarget(ctx context.Context, st store.Store, serviceID string) (target, error) {
	svc, err := st.GetService(ctx, serviceID)
	if err != nil {
		return target{}, fmt.Errorf("get service %s: %w", serviceID, err)
	}
	project, err := st.GetProject(ctx, svc.ProjectID)
	if err != nil {
		return target{}, fmt.Errorf("get project %s: %w", svc.ProjectID, err)
	}
	server, err := st.GetServer(ctx, project.ServerID)
	if err != nil {
		return target{}, fmt.Errorf("get server %s: %w", project.ServerID, err)
	}
	return target{svc: svc, project: project, server: server}, nil
}

// Create stores a new service named <project>-<name>, suffixed when the
// tenant already uses that name. Nothing runs on the host until a
// deployment is triggered.
func (s *ServiceService) Create(ctx context.Context, projectID string, spec model.ServiceSpec) (*model.Service, error) {
	if err := orchestrator.ValidateSpec(spec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}
	name, err := platform.UniqueName(ctx, template.BaseName(project.Name, spec.Name), func(ctx context.Context, name string) (bool, error) {
		return s.store.ServiceNameTaken(ctx, project.TenantSlug, name)
	})
	if err != nil {
		return nil, fmt.Errorf("name service: %w", err)
	}
	spec.Name = name
	svc := orchestrator.NewService(project.ID, spec)
	if err := s.store.CreateService(ctx, svc); err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	s.events.PublishAction(project.TenantSlug, model.ActionRefresh)
	return svc, nil
}

func (s *ServiceService) Get(ctx context.Context, id string) (*model.Service, error) {
	svc, err := s.store.GetService(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get service %s: %w", id, err)
	}
	return svc, nil
}

// Destroy queues removal of the service from its host. The record is
// deleted by the job.
func (s *ServiceService) Destroy(ctx context.Context, id string) (Submitted, error) {
	t, err := loadTarget(ctx, s.store, id)
	if err != nil {
		return Submitted{}, err
	}
	p := &model.DestroyResourcePayload{
		JobContext:  t.context(),
		SSH:         orchestrator.JobSSH(t.server),
		Name:        t.svc.Name,
		ServiceType: t.svc.Type,
	}
	if t.svc.Database != nil {
		p.DatabaseType = t.svc.Database.Type
	}
	return s.jobs.submit(ctx, orchestrator.JobID(p.Kind(), id), p)
}

// UpdateVariables queues a config change. References are resolved by the
// worker against the project's services. Changes queue behind each other;
// only an identical pending request is merged.
func (s *ServiceService) UpdateVariables(ctx context.Context, id string, vars []model.Variable, restart bool) (Submitted, error) {
	t, err := loadTarget(ctx, s.store, id)
	if err != nil {
		return Submitted{}, err
	}
	if t.svc.Type == model.ServiceTypeDatabase {
		return Submitted{}, fmt.Errorf("%w: database %s has no environment", ErrInvalidInput, t.svc.Name)
	}
	for _, v := range vars {
		if v.Key == "" {
			return Submitted{}, fmt.Errorf("%w: variable without a key", ErrInvalidInput)
		}
	}
	p := &model.UpdateEnvironmentPayload{
		JobContext: t.context(),
		SSH:        orchestrator.JobSSH(t.server),
		AppName:    t.svc.Name,
		Variables:  vars,
		NoRestart:  !restart,
	}
	return s.jobs.submit(ctx, orchestrator.ContentJobID(p.Kind(), id, p.Variables, p.NoRestart), p)
}

func (s *ServiceService) UpdateVolumes(ctx context.Context, id string, volumes []model.Volume, restart bool) (Submitted, error) {
	t, err := loadTarget(ctx, s.store, id)
	if err != nil {
		return Submitted{}, err
	}
	if t.svc.Type == model.ServiceTypeDatabase {
		return Submitted{}, fmt.Errorf("%w: database %s takes no volumes", ErrInvalidInput, t.svc.Name)
	}
	p := &model.UpdateVolumesPayload{
		JobContext: t.context(),
		SSH:        orchestrator.JobSSH(t.server),
		AppName:    t.svc.Name,
		Volumes:    volumes,
		Restart:    restart,
	}
	return s.jobs.submit(ctx, orchestrator.ContentJobID(p.Kind(), id, p.Volumes, p.Restart), p)
}

// ExposePorts queues publishing a database on host ports.
func (s *ServiceService) ExposePorts(ctx context.Context, id string, ports []string) (Submitted, error) {
	t, err := loadTarget(ctx, s.store, id)
	if err != nil {
		return Submitted{}, err
	}
	if t.svc.Database == nil {
		return Submitted{}, fmt.Errorf("%w: service %s is not a database", ErrInvalidInput, t.svc.Name)
	}
	if len(ports) == 0 {
		return Submitted{}, fmt.Errorf("%w: no ports given", ErrInvalidInput)
	}
	p := &model.ExposePortPayload{
		JobContext:   t.context(),
		SSH:          orchestrator.JobSSH(t.server),
		DatabaseName: t.svc.Name,
		DatabaseType: t.svc.Database.Type,
		Ports:        ports,
	}
	return s.jobs.submit(ctx, orchestrator.ContentJobID(p.Kind(), id, p.Ports), p)
}

// Backup queues a dump of a database to object storage. The job ID is also
// the backup record's ID.
func (s *ServiceService) Backup(ctx context.Context, id string) (Submitted, error) {
	t, err := loadTarget(ctx, s.store, id)
	if err != nil {
		return Submitted{}, err
	}
	if t.svc.Database == nil {
		return Submitted{}, fmt.Errorf("%w: service %s is not a database", ErrInvalidInput, t.svc.Name)
	}
	if !s.backups {
		return Submitted{}, fmt.Errorf("backup %s: object storage %w", t.svc.Name, ErrNotConfigured)
	}
	p := &model.BackupDatabasePayload{
		JobContext:   t.context(),
		SSH:          orchestrator.JobSSH(t.server),
		DatabaseName: t.svc.Name,
		DatabaseType: t.svc.Database.Type,
	}
	return s.jobs.submit(ctx, platform.NewID(), p)
}

func (s *ServiceService) GetBackup(ctx context.Context, id string) (*model.Backup, error) {
	b, err := s.store.GetBackup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get backup %s: %w", id, err)
	}
	return b, nil
}

// Package orchestrator rolls out a set of services in dependency order,
// running each service's jobs one after another and waiting for each.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/paas/internal/activity"
	"github.com/edvin/paas/internal/events"
	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/platform"
	"github.com/edvin/paas/internal/queue"
	"github.com/edvin/paas/internal/store"
	"github.com/edvin/paas/internal/template"
)

// Steps reported in ServiceError.
const (
	StepRecord = "create-record"
)

// ServiceError reports which service and step stopped a rollout. Services
// deployed before it are left in place.
type ServiceError struct {
	Service string
	Step    string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("deploy service %s: %s: %v", e.Service, e.Step, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ErrInvalidService is returned before any record is written when a
// service description cannot be deployed.
var ErrInvalidService = errors.New("invalid service")

type Options struct {
	// AwaitTimeout bounds the wait for each job. Zero means 30 minutes.
	AwaitTimeout time.Duration
	// JobOptions picks retry options per kind. Defaults to
	// activity.DefaultOptions.
	JobOptions func(model.JobKind) queue.Options
}

type Orchestrator struct {
	store        store.Store
	queue        queue.Dispatcher
	events       events.Publisher
	awaitTimeout time.Duration
	jobOptions   func(model.JobKind) queue.Options
	logger       zerolog.Logger
}

func New(st store.Store, q queue.Dispatcher, pub events.Publisher, opts Options, logger zerolog.Logger) *Orchestrator {
	if opts.AwaitTimeout <= 0 {
		opts.AwaitTimeout = 30 * time.Minute
	}
	if opts.JobOptions == nil {
		opts.JobOptions = activity.DefaultOptions
	}
	return &Orchestrator{
		store:        st,
		queue:        q,
		events:       pub,
		awaitTimeout: opts.AwaitTimeout,
		jobOptions:   opts.JobOptions,
		logger:       logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Request is one rollout.
type Request struct {
	Services []model.ServiceSpec
	Project  *model.Project
	Server   *model.Server
}

// Deployed names the records created for one service.
type Deployed struct {
	Template     string `json:"template_name"`
	Name         string `json:"name"`
	ServiceID    string `json:"service_id"`
	DeploymentID string `json:"deployment_id"`
}

type Outcome struct {
	Services []Deployed `json:"services"`
}

var _ activity.TemplateDeployer = (*Orchestrator)(nil)

// DeployTemplate loads the project and server named by the job and runs
// the rollout.
func (o *Orchestrator) DeployTemplate(ctx context.Context, p *model.DeployTemplatePayload) (any, error) {
	project, err := o.store.GetProject(ctx, p.ProjectID)
	if err != nil {
		return nil, queue.Permanent(fmt.Errorf("load project: %w", err))
	}
	serverID := p.ServerID
	if serverID == "" {
		serverID = project.ServerID
	}
	server, err := o.store.GetServer(ctx, serverID)
	if err != nil {
		return nil, queue.Permanent(fmt.Errorf("load server: %w", err))
	}
	out, err := o.Deploy(ctx, Request{Services: p.Services, Project: project, Server: server})
	if err != nil {
		// A partial rollout is never retried.
		return out, queue.Permanent(err)
	}
	return out, nil
}

// Deploy sorts, names and rewrites the services, then deploys them one at a
// time. The first failure stops the rollout.
func (o *Orchestrator) Deploy(ctx context.Context, req Request) (*Outcome, error) {
	for _, s := range req.Services {
		if err := ValidateSpec(s); err != nil {
			return nil, err
		}
	}
	logger := o.logger.With().Str("project_id", req.Project.ID).Str("server_id", req.Server.ID).Logger()

	ordered := template.SortByDependency(req.Services)
	taken := func(ctx context.Context, name string) (bool, error) {
		return o.store.ServiceNameTaken(ctx, req.Project.TenantSlug, name)
	}
	mapping, err := template.AssignNames(ctx, req.Project.Name, ordered, taken)
	if err != nil {
		return nil, fmt.Errorf("assign service names: %w", err)
	}
	specs := template.Rewrite(ordered, mapping)

	out := &Outcome{}
	for i, spec := range specs {
		d := Deployed{Template: ordered[i].Name, Name: spec.Name}
		logger.Info().Str("service", spec.Name).Str("type", string(spec.Type)).Msg("deploying service")
		if err := o.deployService(ctx, req, spec, &d); err != nil {
			if d.ServiceID != "" {
				out.Services = append(out.Services, d)
			}
			logger.Error().Err(err).Str("service", spec.Name).Msg("rollout stopped")
			o.events.PublishAction(req.Project.TenantSlug, model.ActionRefresh)
			return out, err
		}
		out.Services = append(out.Services, d)
	}
	logger.Info().Int("services", len(out.Services)).Msg("rollout complete")
	return out, nil
}

func (o *Orchestrator) deployService(ctx context.Context, req Request, spec model.ServiceSpec, d *Deployed) error {
	fail := func(step string, err error) error {
		return &ServiceError{Service: spec.Name, Step: step, Err: err}
	}

	svc := NewService(req.Project.ID, spec)
	if err := o.store.CreateService(ctx, svc); err != nil {
		return fail(StepRecord, err)
	}
	d.ServiceID = svc.ID
	dep := &model.Deployment{ID: platform.NewID(), ServiceID: svc.ID, Status: model.DeploymentQueued}
	if err := o.store.CreateDeployment(ctx, dep); err != nil {
		return fail(StepRecord, err)
	}
	d.DeploymentID = dep.ID
	o.events.PublishAction(req.Project.TenantSlug, model.ActionRefresh)

	jc := model.JobContext{
		TenantSlug: req.Project.TenantSlug,
		ServerID:   req.Server.ID,
		ProjectID:  req.Project.ID,
		ServiceID:  svc.ID,
	}
	ssh := JobSSH(req.Server)

	// Preparation jobs report on the service channel; the deployment record
	// belongs to the main job alone.
	abort := func(step string, err error) error {
		o.abandon(ctx, dep.ID, err)
		return fail(step, err)
	}
	vars := spec.Variables
	if spec.Type != model.ServiceTypeDatabase {
		if len(spec.Volumes) > 0 {
			o.events.Publish(dep.ID, fmt.Sprintf("-----> Mounting %d volumes", len(spec.Volumes)))
			p := &model.UpdateVolumesPayload{JobContext: jc, SSH: ssh, AppName: svc.Name, Volumes: spec.Volumes}
			if _, err := o.run(ctx, svc.ID, p); err != nil {
				return abort(string(p.Kind()), err)
			}
		}
		if len(spec.Variables) > 0 {
			o.events.Publish(dep.ID, fmt.Sprintf("-----> Configuring %d variables", len(spec.Variables)))
			p := &model.UpdateEnvironmentPayload{JobContext: jc, SSH: ssh, AppName: svc.Name, Variables: spec.Variables, NoRestart: true}
			if _, err := o.run(ctx, svc.ID, p); err != nil {
				return abort(string(p.Kind()), err)
			}
			fresh, err := o.store.GetService(ctx, svc.ID)
			if err != nil {
				return abort(string(p.Kind()), err)
			}
			vars = fresh.PopulatedVariables
		}
	}

	jc.DeploymentID = dep.ID
	mainJob, err := MainPayload(svc, jc, ssh, vars)
	if err != nil {
		return abort(StepRecord, err)
	}
	if _, err := o.run(ctx, svc.ID, mainJob); err != nil {
		return fail(string(mainJob.Kind()), err)
	}

	if spec.Type == model.ServiceTypeDatabase && spec.Database != nil && len(spec.Database.ExposedPorts) > 0 {
		jc.DeploymentID = ""
		p := &model.ExposePortPayload{
			JobContext:   jc,
			SSH:          ssh,
			DatabaseName: svc.Name,
			DatabaseType: spec.Database.Type,
			Ports:        spec.Database.ExposedPorts,
		}
		if _, err := o.run(ctx, svc.ID, p); err != nil {
			return fail(string(p.Kind()), err)
		}
	}
	return nil
}

// run enqueues one job and waits for it within the await timeout.
func (o *Orchestrator) run(ctx context.Context, serviceID string, p model.JobPayload) (json.RawMessage, error) {
	spec := queue.Spec{
		ID:      JobID(p.Kind(), serviceID),
		Payload: p,
		Options: o.jobOptions(p.Kind()),
	}
	h, err := o.queue.Enqueue(ctx, model.QueueName(p.Context().ServerID, p.Kind()), spec)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", p.Kind(), err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, o.awaitTimeout)
	defer cancel()
	return o.queue.Await(waitCtx, h)
}

// abandon fails a deployment whose main job never ran.
func (o *Orchestrator) abandon(ctx context.Context, deploymentID string, cause error) {
	line := "!     " + cause.Error()
	o.events.AppendLog(deploymentID, line)
	if err := o.store.UpdateDeployment(ctx, deploymentID, model.DeploymentFailed, []string{line}); err != nil {
		o.logger.Error().Err(err).Str("deployment_id", deploymentID).Msg("mark deployment failed")
	}
}

// JobID names the job that runs kind for a service. Enqueueing the same
// kind again while it runs is a no-op.
func JobID(kind model.JobKind, serviceID string) string {
	return string(kind) + "-" + serviceID
}

// ContentJobID names a job whose effect depends on input. A pending job
// absorbs a repeat of the same input, never a different one.
func ContentJobID(kind model.JobKind, serviceID string, input ...any) string {
	b, err := json.Marshal(input)
	if err != nil {
		return JobID(kind, serviceID) + "-" + platform.RandomString(8)
	}
	sum := sha256.Sum256(b)
	return JobID(kind, serviceID) + "-" + hex.EncodeToString(sum[:4])
}

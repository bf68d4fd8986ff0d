package activity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/edvin/paas/internal/dokku"
	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/queue"
	"github.com/edvin/paas/internal/remote"
	"github.com/edvin/paas/internal/store"
)

// run carries the state of one job attempt: its log lines and its
// deployment record.
type run struct {
	r      *Runner
	job    *queue.Job
	jc     model.JobContext
	logger zerolog.Logger

	mu    sync.Mutex
	lines []string
}

func (r *Runner) newRun(job *queue.Job, jc model.JobContext) *run {
	return &run{
		r:   r,
		job: job,
		jc:  jc,
		logger: r.logger.With().
			Str("job_id", job.ID).
			Str("kind", string(job.Kind)).
			Str("tenant", jc.TenantSlug).
			Logger(),
	}
}

// line records one output line and forwards it to the log channel.
func (x *run) line(s string) {
	x.mu.Lock()
	x.lines = append(x.lines, s)
	x.mu.Unlock()
	x.r.deps.Events.AppendLog(x.jc.LogChannel(), s)
}

func (x *run) logs() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]string{}, x.lines...)
}

// begin moves the deployment to building. Lines stored by earlier attempts
// are carried forward.
func (x *run) begin(ctx context.Context) error {
	id := x.jc.DeploymentID
	if id == "" {
		return nil
	}
	d, err := x.r.deps.Store.GetDeployment(ctx, id)
	if err != nil {
		return queue.Permanent(fmt.Errorf("load deployment: %w", err))
	}
	if model.IsTerminalDeploymentStatus(d.Status) {
		return queue.Permanent(fmt.Errorf("deployment %s: %w", id, store.ErrFinalized))
	}
	x.mu.Lock()
	x.lines = append(d.Logs, x.lines...)
	x.mu.Unlock()
	if x.job.AttemptsMade > 1 {
		x.line(fmt.Sprintf("-----> Retrying (attempt %d)", x.job.AttemptsMade))
	}
	if err := x.r.deps.Store.UpdateDeployment(ctx, id, model.DeploymentBuilding, nil); err != nil {
		return fmt.Errorf("mark deployment building: %w", err)
	}
	x.r.deps.Events.PublishAction(x.jc.TenantSlug, model.ActionRefresh)
	return nil
}

// finish records the outcome and always tells the tenant to refresh. A
// failure that will be retried leaves the deployment building.
func (x *run) finish(ctx context.Context, err error) error {
	defer x.r.deps.Events.PublishAction(x.jc.TenantSlug, model.ActionRefresh)

	status := model.DeploymentSuccess
	if err != nil {
		x.logger.Error().Err(err).Int("attempt", x.job.AttemptsMade).Msg("job failed")
		x.line("!     " + err.Error())
		x.r.deps.Events.Publish(x.jc.LogChannel(), err.Error())
		status = model.DeploymentFailed
		if !queue.IsPermanent(err) && !x.job.LastAttempt() {
			status = model.DeploymentBuilding
		}
	} else {
		x.logger.Info().Msg("job succeeded")
	}

	if id := x.jc.DeploymentID; id != "" {
		if uerr := x.r.deps.Store.UpdateDeployment(ctx, id, status, x.logs()); uerr != nil {
			if errors.Is(uerr, store.ErrFinalized) || errors.Is(uerr, store.ErrNotFound) {
				x.logger.Warn().Err(uerr).Msg("deployment not updated")
			} else if err == nil {
				return fmt.Errorf("finalize deployment: %w", uerr)
			} else {
				x.logger.Error().Err(uerr).Msg("record deployment failure")
			}
		} else if model.IsTerminalDeploymentStatus(status) {
			// Followers stop on this.
			x.r.deps.Events.Publish(x.jc.LogChannel(), status)
		}
	}
	return err
}

// connect opens the job's connection. A payload without a key gets the
// server's stored one.
func (x *run) connect(ctx context.Context, d model.SSHDetails) (remote.Conn, error) {
	serverID := d.ServerID
	if serverID == "" {
		serverID = x.jc.ServerID
	}
	if d.PrivateKey == "" && serverID != "" {
		srv, err := x.r.deps.Store.GetServer(ctx, serverID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, queue.Permanent(fmt.Errorf("%w: server %q is not registered", ErrConfiguration, serverID))
		}
		if err != nil {
			return nil, fmt.Errorf("load server: %w", err)
		}
		stored := srv.SSHDetails()
		d.PrivateKey = stored.PrivateKey
		if d.Host == "" {
			d = stored
		}
	}
	if d.Host == "" {
		return nil, queue.Permanent(fmt.Errorf("%w: no host for server %q", ErrConfiguration, serverID))
	}
	conn, err := x.r.deps.Executor.Connect(ctx, d)
	if err != nil {
		return nil, err
	}
	x.logger.Debug().Str("host", d.Host).Msg("connected")
	return conn, nil
}

// exec runs cmd and streams its output into the job log.
func (x *run) exec(ctx context.Context, conn remote.Conn, cmd string) (*remote.Result, error) {
	return conn.Run(ctx, cmd, remote.Combined(x.line))
}

// probe runs a check command quietly. A non-zero exit reports false; only
// transport failures are errors.
func (x *run) probe(ctx context.Context, conn remote.Conn, cmd string) (bool, error) {
	_, err := conn.Run(ctx, cmd, remote.Streams{})
	if err == nil {
		return true, nil
	}
	var ce *remote.CommandError
	if errors.As(err, &ce) {
		return false, nil
	}
	return false, err
}

// ensureApp creates app unless the host already has it.
func (x *run) ensureApp(ctx context.Context, conn remote.Conn, app string) error {
	exists, err := x.probe(ctx, conn, dokku.AppExists(app))
	if err != nil {
		return fmt.Errorf("check app %s: %w", app, err)
	}
	if exists {
		return nil
	}
	x.line(fmt.Sprintf("-----> Creating app %s", app))
	if _, err := x.exec(ctx, conn, dokku.AppCreate(app)); err != nil {
		return fmt.Errorf("create app %s: %w", app, err)
	}
	return nil
}

// loadService returns the job's service, or nil when the job has none.
func (x *run) loadService(ctx context.Context) (*model.Service, error) {
	if x.jc.ServiceID == "" {
		return nil, nil
	}
	svc, err := x.r.deps.Store.GetService(ctx, x.jc.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("load service: %w", err)
	}
	return svc, nil
}

func (x *run) result(name string) *Result {
	return &Result{ServiceID: x.jc.ServiceID, DeploymentID: x.jc.DeploymentID, Name: name}
}

// do runs body between begin and finish.
func (x *run) do(ctx context.Context, body func(context.Context) (any, error)) (any, error) {
	if err := x.begin(ctx); err != nil {
		return nil, x.finish(ctx, err)
	}
	res, err := body(ctx)
	if err := x.finish(ctx, err); err != nil {
		return nil, err
	}
	return res, nil
}

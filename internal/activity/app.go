package activity

import (
	"context"
	"fmt"

	"github.com/edvin/paas/internal/dokku"
	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/plugin"
	"github.com/edvin/paas/internal/queue"
)

// DeployApp builds and releases an app from its git repository.
func (r *Runner) DeployApp(ctx context.Context, job *queue.Job, p *model.DeployAppPayload) (any, error) {
	x := r.newRun(job, p.JobContext)
	return x.do(ctx, func(ctx context.Context) (any, error) {
		if p.Provider.RepositoryURL == "" {
			return nil, queue.Permanent(fmt.Errorf("%w: app %s has no repository", ErrConfiguration, p.AppName))
		}
		conn, err := x.connect(ctx, p.SSH)
		if err != nil {
			return nil, err
		}
		defer conn.Close()

		required := r.deps.Plugins.RequiredPlugins(plugin.CategoryApp, p.Provider.Type)
		if err := r.deps.Plugins.Ensure(ctx, conn, serverID(p.JobContext, p.SSH), required, x.line); err != nil {
			return nil, fmt.Errorf("ensure plugins: %w", err)
		}
		if err := x.ensureApp(ctx, conn, p.AppName); err != nil {
			return nil, err
		}
		if p.Provider.BuildPath != "" {
			if _, err := x.exec(ctx, conn, dokku.BuildDir(p.AppName, p.Provider.BuildPath)); err != nil {
				return nil, fmt.Errorf("set build dir: %w", err)
			}
		}
		if len(p.Variables) > 0 {
			if _, err := x.exec(ctx, conn, dokku.ConfigSet(p.AppName, p.Variables, true)); err != nil {
				return nil, fmt.Errorf("set config: %w", err)
			}
		}

		x.line(fmt.Sprintf("-----> Deploying %s from %s", p.AppName, p.Provider.RepositoryURL))
		if _, err := x.exec(ctx, conn, dokku.GitSync(p.AppName, p.Provider)); err != nil {
			return nil, fmt.Errorf("build app %s: %w", p.AppName, err)
		}
		return x.result(p.AppName), nil
	})
}

// DeployDocker releases an app from a prebuilt image.
func (r *Runner) DeployDocker(ctx context.Context, job *queue.Job, p *model.DeployDockerPayload) (any, error) {
	x := r.newRun(job, p.JobContext)
	return x.do(ctx, func(ctx context.Context) (any, error) {
		if p.Docker.Image == "" {
			return nil, queue.Permanent(fmt.Errorf("%w: docker service %s has no image", ErrConfiguration, p.AppName))
		}
		conn, err := x.connect(ctx, p.SSH)
		if err != nil {
			return nil, err
		}
		defer conn.Close()

		required := r.deps.Plugins.RequiredPlugins(plugin.CategoryDocker, "")
		if err := r.deps.Plugins.Ensure(ctx, conn, serverID(p.JobContext, p.SSH), required, x.line); err != nil {
			return nil, fmt.Errorf("ensure plugins: %w", err)
		}
		if reg := p.Docker.Registry; reg != nil && reg.Server != "" {
			x.line(fmt.Sprintf("-----> Logging in to %s", reg.Server))
			if _, err := x.exec(ctx, conn, dokku.RegistryLogin(*reg)); err != nil {
				return nil, fmt.Errorf("registry login: %w", err)
			}
		}
		if err := x.ensureApp(ctx, conn, p.AppName); err != nil {
			return nil, err
		}
		if len(p.Variables) > 0 {
			if _, err := x.exec(ctx, conn, dokku.ConfigSet(p.AppName, p.Variables, true)); err != nil {
				return nil, fmt.Errorf("set config: %w", err)
			}
		}
		if len(p.Docker.Ports) > 0 {
			if _, err := x.exec(ctx, conn, dokku.PortsSet(p.AppName, p.Docker.Ports)); err != nil {
				return nil, fmt.Errorf("set ports: %w", err)
			}
		}

		x.line(fmt.Sprintf("-----> Deploying %s from image %s", p.AppName, p.Docker.Image))
		if _, err := x.exec(ctx, conn, dokku.GitFromImage(p.AppName, p.Docker.Image)); err != nil {
			return nil, fmt.Errorf("deploy image %s: %w", p.Docker.Image, err)
		}
		return x.result(p.AppName), nil
	})
}

// DestroyResource removes an app or database from the host and deletes the
// service record.
func (r *Runner) DestroyResource(ctx context.Context, job *queue.Job, p *model.DestroyResourcePayload) (any, error) {
	x := r.newRun(job, p.JobContext)
	return x.do(ctx, func(ctx context.Context) (any, error) {
		conn, err := x.connect(ctx, p.SSH)
		if err != nil {
			return nil, err
		}
		defer conn.Close()

		existsCmd, destroyCmd := dokku.AppExists(p.Name), dokku.AppDestroy(p.Name)
		if p.ServiceType == model.ServiceTypeDatabase {
			if p.DatabaseType == "" {
				return nil, queue.Permanent(fmt.Errorf("%w: database %s has no type", ErrConfiguration, p.Name))
			}
			existsCmd, destroyCmd = dokku.ServiceExists(p.DatabaseType, p.Name), dokku.ServiceDestroy(p.DatabaseType, p.Name)
		}

		exists, err := x.probe(ctx, conn, existsCmd)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", p.Name, err)
		}
		if exists {
			x.line(fmt.Sprintf("-----> Destroying %s", p.Name))
			if _, err := x.exec(ctx, conn, destroyCmd); err != nil {
				return nil, fmt.Errorf("destroy %s: %w", p.Name, err)
			}
		} else {
			x.line(fmt.Sprintf("-----> %s not present on host", p.Name))
		}

		if p.ServiceID != "" {
			if err := r.deps.Store.DeleteService(ctx, p.ServiceID); err != nil && !isNotFound(err) {
				return nil, fmt.Errorf("delete service record: %w", err)
			}
		}
		return x.result(p.Name), nil
	})
}

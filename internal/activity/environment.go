package activity

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/edvin/paas/internal/dokku"
	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/queue"
	"github.com/edvin/paas/internal/store"
	"github.com/edvin/paas/internal/template"
)

// StorageRoot is where the host keeps directories created for volumes.
const StorageRoot = "/var/lib/dokku/data/storage"

// UpdateEnvironment resolves references against the project's services,
// applies the result on the host and stores both forms on the service.
func (r *Runner) UpdateEnvironment(ctx context.Context, job *queue.Job, p *model.UpdateEnvironmentPayload) (any, error) {
	x := r.newRun(job, p.JobContext)
	return x.do(ctx, func(ctx context.Context) (any, error) {
		svc, err := x.loadService(ctx)
		if err != nil {
			return nil, err
		}
		resolved := p.Variables
		if svc != nil {
			siblings, err := r.deps.Store.ListServices(ctx, svc.ProjectID)
			if err != nil {
				return nil, fmt.Errorf("list project services: %w", err)
			}
			resolved = template.ResolveVariables(p.Variables, template.ServiceLookup(siblings))
		}

		conn, err := x.connect(ctx, p.SSH)
		if err != nil {
			return nil, err
		}
		defer conn.Close()

		if err := x.ensureApp(ctx, conn, p.AppName); err != nil {
			return nil, err
		}
		if len(resolved) > 0 {
			x.line(fmt.Sprintf("-----> Setting %d variables on %s", len(resolved), p.AppName))
			if _, err := x.exec(ctx, conn, dokku.ConfigSet(p.AppName, resolved, p.NoRestart)); err != nil {
				return nil, fmt.Errorf("set config: %w", err)
			}
		}

		if svc != nil {
			svc.Variables = p.Variables
			svc.PopulatedVariables = resolved
			if err := r.deps.Store.UpdateService(ctx, svc); err != nil {
				return nil, fmt.Errorf("store variables: %w", err)
			}
		}
		return x.result(p.AppName), nil
	})
}

// UpdateVolumes mounts host directories into the app. Relative host paths
// are created under StorageRoot first.
func (r *Runner) UpdateVolumes(ctx context.Context, job *queue.Job, p *model.UpdateVolumesPayload) (any, error) {
	x := r.newRun(job, p.JobContext)
	return x.do(ctx, func(ctx context.Context) (any, error) {
		for _, v := range p.Volumes {
			if v.HostPath == "" || !path.IsAbs(v.ContainerPath) {
				return nil, queue.Permanent(fmt.Errorf("%w: invalid volume %q:%q", ErrConfiguration, v.HostPath, v.ContainerPath))
			}
		}
		conn, err := x.connect(ctx, p.SSH)
		if err != nil {
			return nil, err
		}
		defer conn.Close()

		if err := x.ensureApp(ctx, conn, p.AppName); err != nil {
			return nil, err
		}
		for _, v := range p.Volumes {
			mount := v
			if !path.IsAbs(v.HostPath) {
				dir := StorageDirName(p.AppName, v.HostPath)
				if _, err := x.exec(ctx, conn, dokku.StorageEnsureDirectory(dir)); err != nil {
					return nil, fmt.Errorf("create storage %s: %w", dir, err)
				}
				mount.HostPath = path.Join(StorageRoot, dir)
			}
			x.line(fmt.Sprintf("-----> Mounting %s at %s", mount.HostPath, mount.ContainerPath))
			if _, err := x.exec(ctx, conn, dokku.StorageMount(p.AppName, mount)); err != nil {
				return nil, fmt.Errorf("mount %s: %w", mount.HostPath, err)
			}
		}
		if p.Restart {
			if _, err := x.exec(ctx, conn, dokku.Restart(p.AppName)); err != nil {
				return nil, fmt.Errorf("restart %s: %w", p.AppName, err)
			}
		}

		svc, err := x.loadService(ctx)
		if err != nil {
			return nil, err
		}
		if svc != nil {
			svc.Volumes = append([]model.Volume(nil), p.Volumes...)
			if err := r.deps.Store.UpdateService(ctx, svc); err != nil {
				return nil, fmt.Errorf("store volumes: %w", err)
			}
		}
		return x.result(p.AppName), nil
	})
}

// StorageDirName names the host directory backing a relative volume path.
func StorageDirName(app, hostPath string) string {
	clean := strings.Trim(path.Clean("/"+hostPath), "/")
	return app + "-" + strings.ReplaceAll(clean, "/", "-")
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

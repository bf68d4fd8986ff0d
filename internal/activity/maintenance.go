package activity

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/edvin/paas/internal/backup"
	"github.com/edvin/paas/internal/dokku"
	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/queue"
	"github.com/edvin/paas/internal/remote"
)

// DeployTemplate hands a multi-service rollout to the orchestrator. It opens
// no connection itself; each service gets its own jobs.
func (r *Runner) DeployTemplate(ctx context.Context, job *queue.Job, p *model.DeployTemplatePayload) (any, error) {
	defer r.deps.Events.PublishAction(p.TenantSlug, model.ActionRefresh)
	if r.deps.Templates == nil {
		return nil, queue.Permanent(fmt.Errorf("%w: template deployer not configured", ErrConfiguration))
	}
	res, err := r.deps.Templates.DeployTemplate(ctx, p)
	if err != nil {
		r.deps.Events.Publish(p.LogChannel(), err.Error())
		return nil, err
	}
	return res, nil
}

// SyncPlugins reconciles the server's plugin record with the host.
func (r *Runner) SyncPlugins(ctx context.Context, job *queue.Job, p *model.SyncPluginsPayload) (any, error) {
	x := r.newRun(job, p.JobContext)
	return x.do(ctx, func(ctx context.Context) (any, error) {
		conn, err := x.connect(ctx, p.SSH)
		if err != nil {
			return nil, err
		}
		defer conn.Close()

		plugins, err := r.deps.Plugins.Sync(ctx, conn, serverID(p.JobContext, p.SSH))
		if err != nil {
			return nil, err
		}
		x.line(fmt.Sprintf("=====> %d plugins recorded", len(plugins)))
		res := x.result("")
		res.Plugins = plugins
		return res, nil
	})
}

// BackupDatabase exports a database to a temporary file and uploads it to
// object storage.
func (r *Runner) BackupDatabase(ctx context.Context, job *queue.Job, p *model.BackupDatabasePayload) (any, error) {
	if r.deps.Uploader == nil {
		r.deps.Events.PublishAction(p.TenantSlug, model.ActionRefresh)
		return nil, queue.Permanent(fmt.Errorf("%w: object storage is not configured", ErrConfiguration))
	}
	x := r.newRun(job, p.JobContext)
	return x.do(ctx, func(ctx context.Context) (any, error) {
		rec, err := r.startBackup(ctx, job.ID, p)
		if err != nil {
			return nil, err
		}
		size, err := r.runBackup(ctx, x, p, rec.Key)
		if err != nil {
			rec.Status = model.BackupFailed
			rec.Error = err.Error()
			if uerr := r.deps.Store.UpdateBackup(ctx, rec); uerr != nil {
				x.logger.Error().Err(uerr).Msg("record backup failure")
			}
			return nil, err
		}

		rec.Status = model.BackupCompleted
		rec.Size = size
		rec.Error = ""
		if err := r.deps.Store.UpdateBackup(ctx, rec); err != nil {
			return nil, fmt.Errorf("record backup: %w", err)
		}
		x.line(fmt.Sprintf("=====> Backup stored as %s (%d bytes)", rec.Key, size))
		res := x.result(p.DatabaseName)
		res.BackupID = rec.ID
		res.BackupKey = rec.Key
		return res, nil
	})
}

// startBackup creates the backup record, or reopens it on a retry. The
// record shares the job's ID.
func (r *Runner) startBackup(ctx context.Context, id string, p *model.BackupDatabasePayload) (*model.Backup, error) {
	rec, err := r.deps.Store.GetBackup(ctx, id)
	if err == nil {
		rec.Status = model.BackupRunning
		if err := r.deps.Store.UpdateBackup(ctx, rec); err != nil {
			return nil, fmt.Errorf("reopen backup: %w", err)
		}
		return rec, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("load backup: %w", err)
	}
	rec = &model.Backup{
		ID:        id,
		ServiceID: p.ServiceID,
		Bucket:    r.deps.Uploader.Bucket(),
		Key:       backup.ObjectKey(p.TenantSlug, p.DatabaseName, r.deps.Now()),
		Status:    model.BackupRunning,
	}
	if err := r.deps.Store.CreateBackup(ctx, rec); err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}
	return rec, nil
}

func (r *Runner) runBackup(ctx context.Context, x *run, p *model.BackupDatabasePayload, key string) (int64, error) {
	f, err := os.CreateTemp(r.deps.TempDir, "paas-backup-*.dump")
	if err != nil {
		return 0, fmt.Errorf("create dump file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(f.Name())
	}()

	conn, err := x.connect(ctx, p.SSH)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	x.line(fmt.Sprintf("-----> Exporting %s database %s", p.DatabaseType, p.DatabaseName))
	_, err = conn.Run(ctx, dokku.ServiceExport(p.DatabaseType, p.DatabaseName), remote.Streams{
		StdoutWriter: f,
		Stderr:       x.line,
	})
	if err != nil {
		return 0, fmt.Errorf("export %s: %w", p.DatabaseName, err)
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("size dump file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewind dump file: %w", err)
	}
	x.line(fmt.Sprintf("-----> Uploading %d bytes", size))
	if err := r.deps.Uploader.Upload(ctx, key, f, size); err != nil {
		return 0, err
	}
	return size, nil
}

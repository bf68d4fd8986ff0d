package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edvin/paas/internal/model"
)

// DB defines the database operations used by Postgres.
// *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is the Store backed by the core database. Nested documents
// (plugins, provider, variables, logs) live in jsonb columns.
type Postgres struct {
	db DB
}

var _ Store = (*Postgres)(nil)

func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (p *Postgres) CreateServer(ctx context.Context, s *model.Server) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO servers (id, name, host, port, username, private_key, tenant_slug, plugins, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())`,
		s.ID, s.Name, s.Host, s.Port, s.Username, s.PrivateKey, s.TenantSlug, pluginsOrEmpty(s.Plugins),
	)
	if err != nil {
		return fmt.Errorf("insert server: %w", err)
	}
	return nil
}

const serverColumns = `id, name, host, port, username, private_key, tenant_slug, plugins, created_at, updated_at`

func scanServer(row pgx.Row) (*model.Server, error) {
	var s model.Server
	err := row.Scan(&s.ID, &s.Name, &s.Host, &s.Port, &s.Username, &s.PrivateKey, &s.TenantSlug, &s.Plugins, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *Postgres) GetServer(ctx context.Context, id string) (*model.Server, error) {
	s, err := scanServer(p.db.QueryRow(ctx, `SELECT `+serverColumns+` FROM servers WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get server %s: %w", id, notFound(err))
	}
	return s, nil
}

func (p *Postgres) ListServers(ctx context.Context) ([]model.Server, error) {
	rows, err := p.db.Query(ctx, `SELECT `+serverColumns+` FROM servers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	defer rows.Close()

	var servers []model.Server
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		servers = append(servers, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate servers: %w", err)
	}
	return servers, nil
}

func (p *Postgres) UpdateServerPlugins(ctx context.Context, serverID string, plugins []model.PluginInstallation) error {
	tag, err := p.db.Exec(ctx,
		`UPDATE servers SET plugins = $1, updated_at = now() WHERE id = $2`,
		pluginsOrEmpty(plugins), serverID,
	)
	if err != nil {
		return fmt.Errorf("update server plugins: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update server plugins %s: %w", serverID, ErrNotFound)
	}
	return nil
}

func (p *Postgres) CreateProject(ctx context.Context, pr *model.Project) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO projects (id, name, server_id, tenant_slug, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, now(), now())`,
		pr.ID, pr.Name, pr.ServerID, pr.TenantSlug,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (p *Postgres) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var pr model.Project
	err := p.db.QueryRow(ctx,
		`SELECT id, name, server_id, tenant_slug, created_at, updated_at FROM projects WHERE id = $1`, id,
	).Scan(&pr.ID, &pr.Name, &pr.ServerID, &pr.TenantSlug, &pr.CreatedAt, &pr.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, notFound(err))
	}
	return &pr, nil
}

const serviceColumns = `id, project_id, name, type, provider, docker, database, variables, populated_variables, volumes, created_at, updated_at`

func scanService(row pgx.Row) (*model.Service, error) {
	var s model.Service
	err := row.Scan(&s.ID, &s.ProjectID, &s.Name, &s.Type, &s.Provider, &s.Docker, &s.Database,
		&s.Variables, &s.PopulatedVariables, &s.Volumes, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *Postgres) CreateService(ctx context.Context, s *model.Service) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO services (id, project_id, name, type, provider, docker, database, variables, populated_variables, volumes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`,
		s.ID, s.ProjectID, s.Name, s.Type, s.Provider, s.Docker, s.Database,
		variablesOrEmpty(s.Variables), variablesOrEmpty(s.PopulatedVariables), volumesOrEmpty(s.Volumes),
	)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}
	return nil
}

func (p *Postgres) GetService(ctx context.Context, id string) (*model.Service, error) {
	s, err := scanService(p.db.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get service %s: %w", id, notFound(err))
	}
	return s, nil
}

func (p *Postgres) ListServices(ctx context.Context, projectID string) ([]model.Service, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE project_id = $1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}
	return services, nil
}

func (p *Postgres) UpdateService(ctx context.Context, s *model.Service) error {
	tag, err := p.db.Exec(ctx,
		`UPDATE services SET name = $1, provider = $2, docker = $3, database = $4, variables = $5,
		 populated_variables = $6, volumes = $7, updated_at = now() WHERE id = $8`,
		s.Name, s.Provider, s.Docker, s.Database, variablesOrEmpty(s.Variables),
		variablesOrEmpty(s.PopulatedVariables), volumesOrEmpty(s.Volumes), s.ID,
	)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update service %s: %w", s.ID, ErrNotFound)
	}
	return nil
}

func (p *Postgres) DeleteService(ctx context.Context, id string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete service %s: %w", id, ErrNotFound)
	}
	return nil
}

func (p *Postgres) ServiceNameTaken(ctx context.Context, tenantSlug, name string) (bool, error) {
	var taken bool
	err := p.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM services s JOIN projects p ON p.id = s.project_id
		   WHERE p.tenant_slug = $1 AND s.name = $2
		 )`, tenantSlug, name,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check service name: %w", err)
	}
	return taken, nil
}

func (p *Postgres) CreateDeployment(ctx context.Context, d *model.Deployment) error {
	logs := d.Logs
	if logs == nil {
		logs = []string{}
	}
	_, err := p.db.Exec(ctx,
		`INSERT INTO deployments (id, service_id, job_id, status, logs, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now(), now())`,
		d.ID, d.ServiceID, d.JobID, d.Status, logs,
	)
	if err != nil {
		return fmt.Errorf("insert deployment: %w", err)
	}
	return nil
}

func (p *Postgres) GetDeployment(ctx context.Context, id string) (*model.Deployment, error) {
	var d model.Deployment
	err := p.db.QueryRow(ctx,
		`SELECT id, service_id, job_id, status, logs, created_at, updated_at FROM deployments WHERE id = $1`, id,
	).Scan(&d.ID, &d.ServiceID, &d.JobID, &d.Status, &d.Logs, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get deployment %s: %w", id, notFound(err))
	}
	return &d, nil
}

// UpdateDeployment sets status and, when logs is non-nil, replaces the log.
// Finalized deployments are left untouched.
func (p *Postgres) UpdateDeployment(ctx context.Context, id, status string, logs []string) error {
	tag, err := p.db.Exec(ctx,
		`UPDATE deployments SET status = $1, logs = COALESCE($2, logs), updated_at = now()
		 WHERE id = $3 AND status NOT IN ('success', 'failed')`,
		status, logs, id,
	)
	if err != nil {
		return fmt.Errorf("update deployment: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := p.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM deployments WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check deployment: %w", err)
	}
	if exists {
		return fmt.Errorf("update deployment %s: %w", id, ErrFinalized)
	}
	return fmt.Errorf("update deployment %s: %w", id, ErrNotFound)
}

func (p *Postgres) CreateBackup(ctx context.Context, b *model.Backup) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO backups (id, service_id, bucket, key, size, status, error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`,
		b.ID, b.ServiceID, b.Bucket, b.Key, b.Size, b.Status, b.Error,
	)
	if err != nil {
		return fmt.Errorf("insert backup: %w", err)
	}
	return nil
}

func (p *Postgres) GetBackup(ctx context.Context, id string) (*model.Backup, error) {
	var b model.Backup
	err := p.db.QueryRow(ctx,
		`SELECT id, service_id, bucket, key, size, status, error, created_at, updated_at FROM backups WHERE id = $1`, id,
	).Scan(&b.ID, &b.ServiceID, &b.Bucket, &b.Key, &b.Size, &b.Status, &b.Error, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get backup %s: %w", id, notFound(err))
	}
	return &b, nil
}

func (p *Postgres) UpdateBackup(ctx context.Context, b *model.Backup) error {
	tag, err := p.db.Exec(ctx,
		`UPDATE backups SET key = $1, size = $2, status = $3, error = $4, updated_at = now() WHERE id = $5`,
		b.Key, b.Size, b.Status, b.Error, b.ID,
	)
	if err != nil {
		return fmt.Errorf("update backup: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update backup %s: %w", b.ID, ErrNotFound)
	}
	return nil
}

// jsonb columns are NOT NULL; nil slices are written as empty arrays.

func pluginsOrEmpty(p []model.PluginInstallation) []model.PluginInstallation {
	if p == nil {
		return []model.PluginInstallation{}
	}
	return p
}

func variablesOrEmpty(v []model.Variable) []model.Variable {
	if v == nil {
		return []model.Variable{}
	}
	return v
}

func volumesOrEmpty(v []model.Volume) []model.Volume {
	if v == nil {
		return []model.Volume{}
	}
	return v
}

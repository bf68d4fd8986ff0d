package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/edvin/paas/internal/model"
)

// Memory is a process-local Store used when no database is configured and
// in tests.
type Memory struct {
	mu          sync.RWMutex
	servers     map[string]model.Server
	projects    map[string]model.Project
	services    map[string]model.Service
	deployments map[string]model.Deployment
	backups     map[string]model.Backup
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		servers:     make(map[string]model.Server),
		projects:    make(map[string]model.Project),
		services:    make(map[string]model.Service),
		deployments: make(map[string]model.Deployment),
		backups:     make(map[string]model.Backup),
	}
}

func (m *Memory) CreateServer(ctx context.Context, s *model.Server) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.servers[s.ID]; ok {
		return fmt.Errorf("insert server %s: already exists", s.ID)
	}
	stamp(&s.CreatedAt, &s.UpdatedAt)
	m.servers[s.ID] = cloneServer(*s)
	return nil
}

func (m *Memory) GetServer(ctx context.Context, id string) (*model.Server, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.servers[id]
	if !ok {
		return nil, fmt.Errorf("get server %s: %w", id, ErrNotFound)
	}
	out := cloneServer(s)
	return &out, nil
}

func (m *Memory) ListServers(ctx context.Context) ([]model.Server, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Server, 0, len(m.servers))
	for _, s := range m.servers {
		out = append(out, cloneServer(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) UpdateServerPlugins(ctx context.Context, serverID string, plugins []model.PluginInstallation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.servers[serverID]
	if !ok {
		return fmt.Errorf("update server plugins %s: %w", serverID, ErrNotFound)
	}
	s.Plugins = clonePlugins(plugins)
	s.UpdatedAt = time.Now()
	m.servers[serverID] = s
	return nil
}

func (m *Memory) CreateProject(ctx context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; ok {
		return fmt.Errorf("insert project %s: already exists", p.ID)
	}
	stamp(&p.CreatedAt, &p.UpdatedAt)
	m.projects[p.ID] = *p
	return nil
}

func (m *Memory) GetProject(ctx context.Context, id string) (*model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("get project %s: %w", id, ErrNotFound)
	}
	return &p, nil
}

func (m *Memory) CreateService(ctx context.Context, s *model.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.services[s.ID]; ok {
		return fmt.Errorf("insert service %s: already exists", s.ID)
	}
	stamp(&s.CreatedAt, &s.UpdatedAt)
	m.services[s.ID] = cloneService(*s)
	return nil
}

func (m *Memory) GetService(ctx context.Context, id string) (*model.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.services[id]
	if !ok {
		return nil, fmt.Errorf("get service %s: %w", id, ErrNotFound)
	}
	out := cloneService(s)
	return &out, nil
}

func (m *Memory) ListServices(ctx context.Context, projectID string) ([]model.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Service
	for _, s := range m.services {
		if s.ProjectID == projectID {
			out = append(out, cloneService(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateService(ctx context.Context, s *model.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.services[s.ID]
	if !ok {
		return fmt.Errorf("update service %s: %w", s.ID, ErrNotFound)
	}
	s.CreatedAt = prev.CreatedAt
	s.UpdatedAt = time.Now()
	m.services[s.ID] = cloneService(*s)
	return nil
}

func (m *Memory) DeleteService(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.services[id]; !ok {
		return fmt.Errorf("delete service %s: %w", id, ErrNotFound)
	}
	delete(m.services, id)
	return nil
}

func (m *Memory) ServiceNameTaken(ctx context.Context, tenantSlug, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.services {
		if s.Name != name {
			continue
		}
		if p, ok := m.projects[s.ProjectID]; ok && p.TenantSlug == tenantSlug {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) CreateDeployment(ctx context.Context, d *model.Deployment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deployments[d.ID]; ok {
		return fmt.Errorf("insert deployment %s: already exists", d.ID)
	}
	stamp(&d.CreatedAt, &d.UpdatedAt)
	c := *d
	c.Logs = slices.Clone(d.Logs)
	m.deployments[d.ID] = c
	return nil
}

func (m *Memory) GetDeployment(ctx context.Context, id string) (*model.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.deployments[id]
	if !ok {
		return nil, fmt.Errorf("get deployment %s: %w", id, ErrNotFound)
	}
	d.Logs = slices.Clone(d.Logs)
	return &d, nil
}

// UpdateDeployment sets status and, when logs is non-nil, replaces the log.
func (m *Memory) UpdateDeployment(ctx context.Context, id, status string, logs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deployments[id]
	if !ok {
		return fmt.Errorf("update deployment %s: %w", id, ErrNotFound)
	}
	if model.IsTerminalDeploymentStatus(d.Status) {
		return fmt.Errorf("update deployment %s: %w", id, ErrFinalized)
	}
	d.Status = status
	if logs != nil {
		d.Logs = slices.Clone(logs)
	}
	d.UpdatedAt = time.Now()
	m.deployments[id] = d
	return nil
}

func (m *Memory) CreateBackup(ctx context.Context, b *model.Backup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stamp(&b.CreatedAt, &b.UpdatedAt)
	m.backups[b.ID] = *b
	return nil
}

func (m *Memory) GetBackup(ctx context.Context, id string) (*model.Backup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.backups[id]
	if !ok {
		return nil, fmt.Errorf("get backup %s: %w", id, ErrNotFound)
	}
	return &b, nil
}

func (m *Memory) UpdateBackup(ctx context.Context, b *model.Backup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.backups[b.ID]
	if !ok {
		return fmt.Errorf("update backup %s: %w", b.ID, ErrNotFound)
	}
	b.CreatedAt = prev.CreatedAt
	b.UpdatedAt = time.Now()
	m.backups[b.ID] = *b
	return nil
}

func stamp(created, updated *time.Time) {
	now := time.Now()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

func cloneServer(s model.Server) model.Server {
	s.Plugins = clonePlugins(s.Plugins)
	return s
}

func clonePlugins(in []model.PluginInstallation) []model.PluginInstallation {
	if in == nil {
		return nil
	}
	out := make([]model.PluginInstallation, len(in))
	for i, p := range in {
		p.Configuration = maps.Clone(p.Configuration)
		out[i] = p
	}
	return out
}

func cloneService(s model.Service) model.Service {
	if s.Provider != nil {
		p := *s.Provider
		s.Provider = &p
	}
	if s.Docker != nil {
		d := *s.Docker
		d.Ports = slices.Clone(d.Ports)
		if d.Registry != nil {
			r := *d.Registry
			d.Registry = &r
		}
		s.Docker = &d
	}
	if s.Database != nil {
		db := *s.Database
		db.ExposedPorts = slices.Clone(db.ExposedPorts)
		if db.Connection != nil {
			c := *db.Connection
			db.Connection = &c
		}
		s.Database = &db
	}
	s.Variables = slices.Clone(s.Variables)
	s.PopulatedVariables = slices.Clone(s.PopulatedVariables)
	s.Volumes = slices.Clone(s.Volumes)
	return s
}

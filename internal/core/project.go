package core

import (
	"context"
	"fmt"

	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/platform"
	"github.com/edvin/paas/internal/store"
)

type ProjectService struct {
	store store.Store
}

func NewProjectService(st store.Store) *ProjectService {
	return &ProjectService{store: st}
}

// Create stores a project on an existing server. The tenant defaults to the
// server's.
func (s *ProjectService) Create(ctx context.Context, p *model.Project) error {
	if p.Name == "" || p.ServerID == "" {
		return fmt.Errorf("%w: project needs a name and a server", ErrInvalidInput)
	}
	srv, err := s.store.GetServer(ctx, p.ServerID)
	if err != nil {
		return fmt.Errorf("get server %s: %w", p.ServerID, err)
	}
	if p.TenantSlug == "" {
		p.TenantSlug = srv.TenantSlug
	}
	if p.ID == "" {
		p.ID = platform.NewID()
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *ProjectService) Get(ctx context.Context, id string) (*model.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, nil
}

func (s *ProjectService) Services(ctx context.Context, id string) ([]model.Service, error) {
	services, err := s.store.ListServices(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list services for project %s: %w", id, err)
	}
	return services, nil
}

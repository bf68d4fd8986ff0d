package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/orchestrator"
	"github.com/edvin/paas/internal/platform"
	"github.com/edvin/paas/internal/store"
)

type ServerService struct {
	store store.Store
	jobs  *enqueuer
}

func NewServerService(st store.Store, jobs *enqueuer) *ServerService {
	return &ServerService{store: st, jobs: jobs}
}

// Create registers a host. Port defaults to 22 and the user to root.
func (s *ServerService) Create(ctx context.Context, srv *model.Server) error {
	if strings.TrimSpace(srv.Host) == "" {
		return fmt.Errorf("%w: server host is required", ErrInvalidInput)
	}
	if srv.ID == "" {
		srv.ID = platform.NewID()
	}
	if srv.Port == 0 {
		srv.Port = 22
	}
	if srv.Username == "" {
		srv.Username = "root"
	}
	if srv.Name == "" {
		srv.Name = srv.Host
	}
	if err := s.store.CreateServer(ctx, srv); err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	return nil
}

func (s *ServerService) Get(ctx context.Context, id string) (*model.Server, error) {
	srv, err := s.store.GetServer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get server %s: %w", id, err)
	}
	return srv, nil
}

func (s *ServerService) List(ctx context.Context) ([]model.Server, error) {
	servers, err := s.store.ListServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	return servers, nil
}

// SyncPlugins queues a reconciliation of the server's plugin records with
// what the host reports.
func (s *ServerService) SyncPlugins(ctx context.Context, serverID string) (Submitted, error) {
	srv, err := s.Get(ctx, serverID)
	if err != nil {
		return Submitted{}, err
	}
	p := &model.SyncPluginsPayload{
		JobContext: model.JobContext{TenantSlug: srv.TenantSlug, ServerID: srv.ID},
		SSH:        orchestrator.JobSSH(srv),
	}
	return s.jobs.submit(ctx, orchestrator.JobID(p.Kind(), srv.ID), p)
}

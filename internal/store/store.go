// Package store persists servers, projects, services, deployments and backups.
package store

import (
	"context"
	"errors"

	"github.com/edvin/paas/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrFinalized is returned when updating a deployment that already
	// reached success or failed.
	ErrFinalized = errors.New("deployment already finalized")
)

// Store is the durable record layer used by the orchestrator and workers.
type Store interface {
	CreateServer(ctx context.Context, s *model.Server) error
	GetServer(ctx context.Context, id string) (*model.Server, error)
	ListServers(ctx context.Context) ([]model.Server, error)
	UpdateServerPlugins(ctx context.Context, serverID string, plugins []model.PluginInstallation) error

	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)

	CreateService(ctx context.Context, s *model.Service) error
	GetService(ctx context.Context, id string) (*model.Service, error)
	ListServices(ctx context.Context, projectID string) ([]model.Service, error)
	UpdateService(ctx context.Context, s *model.Service) error
	DeleteService(ctx context.Context, id string) error
	// ServiceNameTaken reports whether any service of the tenant uses name.
	ServiceNameTaken(ctx context.Context, tenantSlug, name string) (bool, error)

	CreateDeployment(ctx context.Context, d *model.Deployment) error
	GetDeployment(ctx context.Context, id string) (*model.Deployment, error)
	UpdateDeployment(ctx context.Context, id, status string, logs []string) error

	CreateBackup(ctx context.Context, b *model.Backup) error
	GetBackup(ctx context.Context, id string) (*model.Backup, error)
	UpdateBackup(ctx context.Context, b *model.Backup) error
}

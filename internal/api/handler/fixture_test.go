package handler

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/edvin/paas/internal/core"
	"github.com/edvin/paas/internal/events"
	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/queue"
	"github.com/edvin/paas/internal/store"
	"github.com/edvin/paas/internal/template"
)

// fixture wires the action layer over the memory store and a real queue
// whose jobs park until release is closed.
type fixture struct {
	store    *store.Memory
	queue    *queue.Manager
	hub      *events.Hub
	services *core.Services
	release  chan struct{}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store:   store.NewMemory(),
		queue:   queue.NewManager(zerolog.Nop(), queue.ManagerOptions{}),
		hub:     events.NewHub(zerolog.Nop(), events.HubOptions{}),
		release: make(chan struct{}),
	}
	require.NoError(t, f.queue.Start(ctx, queue.HandlerFunc(func(ctx context.Context, job *queue.Job) (any, error) {
		select {
		case <-f.release:
		case <-ctx.Done():
		}
		return nil, nil
	})))
	t.Cleanup(func() {
		close(f.release)
		f.queue.Close()
	})

	require.NoError(t, f.store.CreateServer(ctx, &model.Server{
		ID: "srv-1", Name: "s1", Host: "10.0.0.5", Port: 22, Username: "root", PrivateKey: "KEY", TenantSlug: "acme",
	}))
	require.NoError(t, f.store.CreateProject(ctx, &model.Project{ID: "proj-1", Name: "acme", ServerID: "srv-1", TenantSlug: "acme"}))
	require.NoError(t, f.store.CreateService(ctx, &model.Service{
		ID: "svc-db", ProjectID: "proj-1", Name: "acme-db", Type: model.ServiceTypeDatabase,
		Database: &model.DatabaseDetails{Type: "postgres"},
	}))
	require.NoError(t, f.store.CreateService(ctx, &model.Service{
		ID: "svc-web", ProjectID: "proj-1", Name: "acme-web", Type: model.ServiceTypeApp,
		Provider: &model.ProviderSettings{RepositoryURL: "https://github.com/acme/web.git"},
	}))

	catalog, err := template.LoadCatalog("../../../templates")
	require.NoError(t, err)
	f.services = core.NewServices(core.Deps{
		Store:     f.store,
		Queue:     f.queue,
		Inspector: f.queue,
		Events:    f.hub,
		Catalog:   catalog,
		Backups:   true,
		Logger:    zerolog.Nop(),
	})
	return f
}

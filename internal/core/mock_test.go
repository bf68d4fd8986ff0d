package core

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/paas/internal/events"
	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/queue"
	"github.com/edvin/paas/internal/store"
	"github.com/edvin/paas/internal/template"
)

// ---------- Mock queue ----------

// mockQueue implements queue.Dispatcher and queue.Inspector.
type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) Enqueue(ctx context.Context, queueName string, spec queue.Spec) (queue.Handle, error) {
	args := m.Called(queueName, spec)
	h := args.Get(0).(queue.Handle)
	if h == (queue.Handle{}) && args.Error(1) == nil {
		h = queue.Handle{ID: spec.ID, Queue: queueName}
	}
	return h, args.Error(1)
}

func (m *mockQueue) Await(ctx context.Context, h queue.Handle) (json.RawMessage, error) {
	args := m.Called(h)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

func (m *mockQueue) ListQueues(prefix string) ([]string, error) {
	args := m.Called(prefix)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *mockQueue) Stats(prefix string) ([]queue.QueueStats, error) {
	args := m.Called(prefix)
	stats, _ := args.Get(0).([]queue.QueueStats)
	return stats, args.Error(1)
}

func (m *mockQueue) Job(queueName, id string) (*queue.Job, error) {
	args := m.Called(queueName, id)
	job, _ := args.Get(0).(*queue.Job)
	return job, args.Error(1)
}

func (m *mockQueue) Flush(queueName string, force bool) error {
	return m.Called(queueName, force).Error(0)
}

// accept makes every Enqueue succeed, echoing the requested job ID.
func (m *mockQueue) accept() {
	m.On("Enqueue", mock.Anything, mock.Anything).Return(queue.Handle{}, nil)
}

// enqueued returns the specs passed to Enqueue in order.
func (m *mockQueue) enqueued() []queue.Spec {
	var specs []queue.Spec
	for _, c := range m.Calls {
		if c.Method == "Enqueue" {
			specs = append(specs, c.Arguments.Get(1).(queue.Spec))
		}
	}
	return specs
}

// ---------- Fixture ----------

type fixture struct {
	store    *store.Memory
	queue    *mockQueue
	hub      *events.Hub
	services *Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store: store.NewMemory(),
		queue: &mockQueue{},
		hub:   events.NewHub(zerolog.Nop(), events.HubOptions{}),
	}
	require.NoError(t, f.store.CreateServer(ctx, &model.Server{
		ID: "srv-1", Name: "s1", Host: "10.0.0.5", Port: 22, Username: "root", PrivateKey: "KEY", TenantSlug: "acme",
	}))
	require.NoError(t, f.store.CreateProject(ctx, &model.Project{ID: "proj-1", Name: "acme", ServerID: "srv-1", TenantSlug: "acme"}))

	catalog, err := template.LoadCatalog("../../templates")
	require.NoError(t, err)
	f.services = NewServices(Deps{
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

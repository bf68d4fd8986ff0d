package activity

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/edvin/paas/internal/events"
	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/queue"
	"github.com/edvin/paas/internal/remote/remotetest"
	"github.com/edvin/paas/internal/store"
)

const (
	testServer  = "srv-1"
	testProject = "proj-1"
	testTenant  = "acme"
)

type fixture struct {
	store  *store.Memory
	exec   *remotetest.Executor
	hub    *events.Hub
	tenant *events.Subscription
	runner *Runner
}

func newFixture(t *testing.T, mutate ...func(*Deps)) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store: store.NewMemory(),
		exec:  remotetest.New(),
		hub:   events.NewHub(zerolog.Nop(), events.HubOptions{}),
	}
	require.NoError(t, f.store.CreateServer(ctx, &model.Server{
		ID: testServer, Name: "s1", Host: "10.0.0.5", Port: 22, Username: "root",
		PrivateKey: "STORED-KEY", TenantSlug: testTenant,
	}))
	require.NoError(t, f.store.CreateProject(ctx, &model.Project{
		ID: testProject, Name: "acme", ServerID: testServer, TenantSlug: testTenant,
	}))
	f.tenant = f.hub.Subscribe(testTenant, 64)
	t.Cleanup(f.tenant.Close)

	deps := Deps{Store: f.store, Executor: f.exec, Events: f.hub, TempDir: t.TempDir()}
	for _, m := range mutate {
		m(&deps)
	}
	f.runner = NewRunner(deps, zerolog.Nop())
	return f
}

// service stores a service with a queued deployment and returns the job
// context pointing at both.
func (f *fixture) service(t *testing.T, svc model.Service) model.JobContext {
	t.Helper()
	ctx := context.Background()
	svc.ProjectID = testProject
	require.NoError(t, f.store.CreateService(ctx, &svc))
	dep := &model.Deployment{ID: "dep-" + svc.ID, ServiceID: svc.ID, Status: model.DeploymentQueued}
	require.NoError(t, f.store.CreateDeployment(ctx, dep))
	return model.JobContext{
		TenantSlug:   testTenant,
		ServerID:     testServer,
		ProjectID:    testProject,
		ServiceID:    svc.ID,
		DeploymentID: dep.ID,
	}
}

func (f *fixture) deployment(t *testing.T, jc model.JobContext) *model.Deployment {
	t.Helper()
	d, err := f.store.GetDeployment(context.Background(), jc.DeploymentID)
	require.NoError(t, err)
	return d
}

// refreshes counts refresh actions delivered on the tenant channel so far.
func (f *fixture) refreshes() int {
	n := 0
	for {
		select {
		case ev, ok := <-f.tenant.C:
			if !ok {
				return n
			}
			if ev.Type == events.TypeAction && ev.Data == model.ActionRefresh {
				n++
			}
		default:
			return n
		}
	}
}

// assertClosed checks every opened connection was closed exactly once.
func (f *fixture) assertClosed(t *testing.T) {
	t.Helper()
	for i, c := range f.exec.Conns() {
		require.Equal(t, 1, c.Closes(), "connection %d", i)
	}
}

func newJob(p model.JobPayload, attempts int) *queue.Job {
	return &queue.Job{
		ID:           "job-1",
		Queue:        model.QueueName(testServer, p.Kind()),
		Kind:         p.Kind(),
		Payload:      p,
		Options:      queue.Options{Attempts: attempts},
		AttemptsMade: 1,
	}
}

func sshDetails() model.SSHDetails {
	return model.SSHDetails{ServerID: testServer, Host: "10.0.0.5", Port: 22, Username: "root"}
}

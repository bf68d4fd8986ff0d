package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/paas/internal/activity"
	"github.com/edvin/paas/internal/events"
	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/queue"
	"github.com/edvin/paas/internal/store"
)

const dsn = "postgres://postgres:pw@dokku-postgres-acme-db:5432/acme_db"

func (f *fixture) seedServices(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.CreateService(ctx, &model.Service{
		ID: "svc-db", ProjectID: "proj-1", Name: "acme-db", Type: model.ServiceTypeDatabase,
		Database: &model.DatabaseDetails{Type: "postgres", Connection: &model.ConnectionInfo{URI: dsn}},
	}))
	require.NoError(t, f.store.CreateService(ctx, &model.Service{
		ID: "svc-web", ProjectID: "proj-1", Name: "acme-web", Type: model.ServiceTypeApp,
		Provider:  &model.ProviderSettings{RepositoryURL: "https://github.com/acme/web.git"},
		Variables: []model.Variable{{Key: "DATABASE_URL", Value: "{{ acme-db.DATABASE_URI }}"}},
	}))
}

func TestDeploymentService_Trigger(t *testing.T) {
	f := newFixture(t)
	f.seedServices(t)
	f.queue.On("Job", "server-srv-1-deploy-app", "deploy-app-svc-web").Return(nil, queue.ErrJobNotFound)
	f.queue.accept()
	tenant := f.hub.Subscribe("acme", 4)
	defer tenant.Close()

	sub, err := f.services.Deployment.Trigger(context.Background(), "svc-web")
	require.NoError(t, err)
	assert.Equal(t, "deploy-app-svc-web", sub.JobID)
	assert.Equal(t, "server-srv-1-deploy-app", sub.Queue)
	require.NotEmpty(t, sub.DeploymentID)

	dep, err := f.store.GetDeployment(context.Background(), sub.DeploymentID)
	require.NoError(t, err)
	assert.Equal(t, model.DeploymentQueued, dep.Status)
	assert.Equal(t, "svc-web", dep.ServiceID)

	specs := f.queue.enqueued()
	require.Len(t, specs, 1)
	assert.Equal(t, activity.DefaultOptions(model.JobDeployApp), specs[0].Options)
	p, ok := specs[0].Payload.(*model.DeployAppPayload)
	require.True(t, ok)
	assert.Equal(t, "acme-web", p.AppName)
	assert.Equal(t, sub.DeploymentID, p.DeploymentID)
	assert.Equal(t, []model.Variable{{Key: "DATABASE_URL", Value: dsn}}, p.Variables)
	assert.Empty(t, p.SSH.PrivateKey)
	assert.Equal(t, "srv-1", p.SSH.ServerID)

	ev := <-tenant.C
	assert.Equal(t, events.TypeAction, ev.Type)
	assert.Equal(t, model.ActionRefresh, ev.Data)
}

func TestDeploymentService_Trigger_ReturnsPendingDeployment(t *testing.T) {
	f := newFixture(t)
	f.seedServices(t)
	f.queue.On("Job", "server-srv-1-deploy-app", "deploy-app-svc-web").Return(&queue.Job{
		ID:      "deploy-app-svc-web",
		Queue:   "server-srv-1-deploy-app",
		State:   queue.StateActive,
		Payload: &model.DeployAppPayload{JobContext: model.JobContext{DeploymentID: "dep-running"}},
	}, nil)

	sub, err := f.services.Deployment.Trigger(context.Background(), "svc-web")
	require.NoError(t, err)
	assert.Equal(t, "dep-running", sub.DeploymentID)
	f.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestDeploymentService_Trigger_LosesRace(t *testing.T) {
	f := newFixture(t)
	f.seedServices(t)
	f.queue.On("Job", "server-srv-1-deploy-app", "deploy-app-svc-web").Return(nil, queue.ErrJobNotFound).Once()
	f.queue.On("Job", "server-srv-1-deploy-app", "deploy-app-svc-web").Return(&queue.Job{
		ID:      "deploy-app-svc-web",
		Queue:   "server-srv-1-deploy-app",
		State:   queue.StateWaiting,
		Payload: &model.DeployAppPayload{JobContext: model.JobContext{DeploymentID: "dep-first"}},
	}, nil)
	f.queue.accept()

	sub, err := f.services.Deployment.Trigger(context.Background(), "svc-web")
	require.NoError(t, err)
	assert.Equal(t, "dep-first", sub.DeploymentID)

	ours := f.queue.enqueued()[0].Payload.(*model.DeployAppPayload).DeploymentID
	require.NotEqual(t, "dep-first", ours)
	dep, err := f.store.GetDeployment(context.Background(), ours)
	require.NoError(t, err)
	assert.Equal(t, model.DeploymentFailed, dep.Status)
	assert.Equal(t, []string{"!     superseded by deployment dep-first"}, dep.Logs)
}

func TestDeploymentService_Trigger_DatabaseRunsCreate(t *testing.T) {
	f := newFixture(t)
	f.seedServices(t)
	f.queue.On("Job", mock.Anything, mock.Anything).Return(nil, queue.ErrJobNotFound)
	f.queue.accept()

	sub, err := f.services.Deployment.Trigger(context.Background(), "svc-db")
	require.NoError(t, err)
	assert.Equal(t, model.QueueName("srv-1", model.JobCreateDatabase), sub.Queue)
	p := f.queue.enqueued()[0].Payload.(*model.CreateDatabasePayload)
	assert.Equal(t, "acme-db", p.DatabaseName)
	assert.Equal(t, "postgres", p.DatabaseType)
}

func TestDeploymentService_Trigger_UnknownService(t *testing.T) {
	f := newFixture(t)
	_, err := f.services.Deployment.Trigger(context.Background(), "nope")
	assert.Error(t, err)
	f.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestDeploymentService_DeployTemplate(t *testing.T) {
	f := newFixture(t)
	f.queue.accept()

	sub, err := f.services.Deployment.DeployTemplate(context.Background(), "node-postgres", "proj-1")
	require.NoError(t, err)
	assert.Equal(t, "server-srv-1-deploy-template", sub.Queue)

	p := f.queue.enqueued()[0].Payload.(*model.DeployTemplatePayload)
	assert.Equal(t, model.JobContext{TenantSlug: "acme", ServerID: "srv-1", ProjectID: "proj-1"}, p.JobContext)
	require.Len(t, p.Services, 2)
	assert.Equal(t, "db", p.Services[0].Name)
}

func TestDeploymentService_DeployTemplate_Unknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.services.Deployment.DeployTemplate(context.Background(), "mystery", "proj-1")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestDeploymentService_AddTemplateDeployQueue_Invalid(t *testing.T) {
	f := newFixture(t)
	_, err := f.services.Deployment.AddTemplateDeployQueue(context.Background(),
		[]model.ServiceSpec{{Name: "web", Type: model.ServiceTypeApp}}, "proj-1", "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.services.Deployment.AddTemplateDeployQueue(context.Background(), nil, "proj-1", "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	f.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestDeploymentService_AddCreateDatabaseWithPluginsQueue(t *testing.T) {
	f := newFixture(t)
	f.queue.accept()

	ssh := model.SSHDetails{ServerID: "srv-1", Host: "10.0.0.5", Port: 22, Username: "root", PrivateKey: "SECRET"}
	sub, err := f.services.Deployment.AddCreateDatabaseWithPluginsQueue(context.Background(), "reports", "mysql", ssh, model.JobContext{})
	require.NoError(t, err)
	assert.Equal(t, "create-database-with-plugins-srv-1-reports", sub.JobID)

	p := f.queue.enqueued()[0].Payload.(*model.CreateDatabasePayload)
	assert.Empty(t, p.SSH.PrivateKey)
	assert.Equal(t, "acme", p.TenantSlug)
	assert.Equal(t, "srv-1", p.ServerID)
	assert.Equal(t, "mysql", p.DatabaseType)
}

func TestDeploymentService_AddCreateDatabaseWithPluginsQueue_NeedsServer(t *testing.T) {
	f := newFixture(t)
	_, err := f.services.Deployment.AddCreateDatabaseWithPluginsQueue(context.Background(), "reports", "mysql", model.SSHDetails{Host: "h"}, model.JobContext{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeploymentService_AddCreateDatabaseWithPluginsQueue_UnregisteredServer(t *testing.T) {
	f := newFixture(t)
	ssh := model.SSHDetails{ServerID: "raw-1", Host: "10.0.0.9", Port: 22, Username: "root", PrivateKey: "PRIVATE"}

	_, err := f.services.Deployment.AddCreateDatabaseWithPluginsQueue(context.Background(), "reports", "mysql", ssh, model.JobContext{})
	assert.ErrorIs(t, err, ErrInvalidInput)
	f.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestDeploymentService_Logs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.CreateDeployment(ctx, &model.Deployment{ID: "dep-1", ServiceID: "svc", Status: model.DeploymentQueued}))
	require.NoError(t, f.store.UpdateDeployment(ctx, "dep-1", model.DeploymentSuccess, []string{"stored"}))

	lines, err := f.services.Deployment.Logs(ctx, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"stored"}, lines)

	f.hub.AppendLog("dep-1", "live")
	lines, err = f.services.Deployment.Logs(ctx, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"live"}, lines)
}

func TestDeploymentService_CreateDatabase(t *testing.T) {
	f := newFixture(t)
	f.queue.accept()

	sub, err := f.services.Deployment.CreateDatabase(context.Background(), "srv-1", "acme-cache", "redis",
		model.JobContext{ProjectID: "proj-1", ServiceID: "svc-cache"})
	require.NoError(t, err)
	assert.Equal(t, "create-database-with-plugins-svc-cache", sub.JobID)

	p := f.queue.enqueued()[0].Payload.(*model.CreateDatabasePayload)
	assert.Equal(t, "10.0.0.5", p.SSH.Host)
	assert.Empty(t, p.SSH.PrivateKey)
	assert.Equal(t, "acme", p.TenantSlug)

	_, err = f.services.Deployment.CreateDatabase(context.Background(), "missing", "x", "redis", model.JobContext{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

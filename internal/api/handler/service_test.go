package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/paas/internal/core"
	"github.com/edvin/paas/internal/model"
)

func decodeSubmitted(t *testing.T, rec *httptest.ResponseRecorder) core.Submitted {
	t.Helper()
	var sub core.Submitted
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	return sub
}

// --- Create ---

func TestServiceCreate_InvalidJSON(t *testing.T) {
	h := NewService(nil, nil)
	rec := httptest.NewRecorder()
	r := newRawRequest(http.MethodPost, "/services", "{bad json")

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, decodeError(rec), "invalid JSON")
}

func TestServiceCreate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing project", map[string]any{"service": map[string]any{"name": "web", "type": "app"}}},
		{"missing name", map[string]any{"project_id": "proj-1", "service": map[string]any{"type": "app"}}},
		{"unknown type", map[string]any{"project_id": "proj-1", "service": map[string]any{"name": "vm", "type": "vm"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewService(nil, nil)
			rec := httptest.NewRecorder()

			h.Create(rec, newRequest(http.MethodPost, "/services", tt.body))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeError(rec), "validation error")
		})
	}
}

func TestServiceCreate_SuffixesTakenName(t *testing.T) {
	f := newFixture(t)
	h := NewService(f.services.Service, f.services.Deployment)
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/services", map[string]any{
		"project_id": "proj-1",
		"service": map[string]any{
			"name": "web", "type": "app",
			"provider": map[string]any{"repository_url": "https://github.com/acme/web2.git"},
		},
	})

	h.Create(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var svc model.Service
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &svc))
	assert.Regexp(t, `^acme-web-[a-z0-9]{4}$`, svc.Name)
}

// --- Deploy ---

func TestServiceDeploy_QueuesDeployment(t *testing.T) {
	f := newFixture(t)
	h := NewService(f.services.Service, f.services.Deployment)
	rec := httptest.NewRecorder()
	r := withURLParams(newRequest(http.MethodPost, "/services/svc-web/deployments", nil), "id", "svc-web")

	h.Deploy(rec, r)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	sub := decodeSubmitted(t, rec)
	assert.Equal(t, "deploy-app-svc-web", sub.JobID)
	assert.Equal(t, "server-srv-1-deploy-app", sub.Queue)

	dep, err := f.store.GetDeployment(r.Context(), sub.DeploymentID)
	require.NoError(t, err)
	assert.Equal(t, model.DeploymentQueued, dep.Status)
}

func TestServiceDeploy_UnknownService(t *testing.T) {
	f := newFixture(t)
	h := NewService(f.services.Service, f.services.Deployment)
	rec := httptest.NewRecorder()
	r := withURLParams(newRequest(http.MethodPost, "/services/nope/deployments", nil), "id", "nope")

	h.Deploy(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServiceDeploy_MissingID(t *testing.T) {
	h := NewService(nil, nil)
	rec := httptest.NewRecorder()

	h.Deploy(rec, withURLParams(newRequest(http.MethodPost, "/services//deployments", nil), "id", ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Variables / Volumes / Ports ---

func TestServiceVariables_RejectsDatabase(t *testing.T) {
	f := newFixture(t)
	h := NewService(f.services.Service, f.services.Deployment)
	rec := httptest.NewRecorder()
	r := withURLParams(newRequest(http.MethodPut, "/services/svc-db/variables", map[string]any{
		"variables": []map[string]string{{"key": "A", "value": "1"}},
	}), "id", "svc-db")

	h.Variables(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServiceVariables_InvalidKey(t *testing.T) {
	h := NewService(nil, nil)
	rec := httptest.NewRecorder()
	r := withURLParams(newRequest(http.MethodPut, "/services/svc-web/variables", map[string]any{
		"variables": []map[string]string{{"key": "A=B", "value": "1"}},
	}), "id", "svc-web")

	h.Variables(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(rec), "validation error")
}

func TestServiceVariables_Queued(t *testing.T) {
	f := newFixture(t)
	h := NewService(f.services.Service, f.services.Deployment)
	rec := httptest.NewRecorder()
	r := withURLParams(newRequest(http.MethodPut, "/services/svc-web/variables", map[string]any{
		"variables": []map[string]string{{"key": "LOG_LEVEL", "value": "debug"}},
		"restart":   true,
	}), "id", "svc-web")

	h.Variables(rec, r)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "server-srv-1-update-environment", decodeSubmitted(t, rec).Queue)
}

func TestServiceVariables_DifferentChangesBothQueue(t *testing.T) {
	f := newFixture(t)
	h := NewService(f.services.Service, f.services.Deployment)
	put := func(value string) core.Submitted {
		rec := httptest.NewRecorder()
		h.Variables(rec, withURLParams(newRequest(http.MethodPut, "/services/svc-web/variables", map[string]any{
			"variables": []map[string]string{{"key": "A", "value": value}},
		}), "id", "svc-web"))
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		return decodeSubmitted(t, rec)
	}

	first := put("1")
	second := put("2")
	repeat := put("2")

	assert.NotEqual(t, first.JobID, second.JobID)
	assert.Equal(t, second.JobID, repeat.JobID)

	stats, err := f.queue.Stats("server-srv-1-update-environment")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].Counts.Waiting+stats[0].Counts.Active)

	job, err := f.queue.Job(second.Queue, second.JobID)
	require.NoError(t, err)
	p := job.Payload.(*model.UpdateEnvironmentPayload)
	assert.Equal(t, []model.Variable{{Key: "A", Value: "2"}}, p.Variables)
}

func TestServiceVolumes_ContainerPathMustBeAbsolute(t *testing.T) {
	h := NewService(nil, nil)
	rec := httptest.NewRecorder()
	r := withURLParams(newRequest(http.MethodPut, "/services/svc-web/volumes", map[string]any{
		"volumes": []map[string]string{{"host_path": "uploads", "container_path": "app/uploads"}},
	}), "id", "svc-web")

	h.Volumes(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServicePorts(t *testing.T) {
	f := newFixture(t)
	h := NewService(f.services.Service, f.services.Deployment)

	rec := httptest.NewRecorder()
	h.Ports(rec, withURLParams(newRequest(http.MethodPut, "/services/svc-db/ports", map[string]any{
		"ports": []string{"15432"},
	}), "id", "svc-db"))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Regexp(t, `^expose-database-port-svc-db-[0-9a-f]{8}$`, decodeSubmitted(t, rec).JobID)

	rec = httptest.NewRecorder()
	h.Ports(rec, withURLParams(newRequest(http.MethodPut, "/services/svc-db/ports", map[string]any{
		"ports": []string{"not a port"},
	}), "id", "svc-db"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Destroy / Backup ---

func TestServiceDestroy(t *testing.T) {
	f := newFixture(t)
	h := NewService(f.services.Service, f.services.Deployment)
	rec := httptest.NewRecorder()

	h.Destroy(rec, withURLParams(newRequest(http.MethodDelete, "/services/svc-web", nil), "id", "svc-web"))

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "destroy-resource-svc-web", decodeSubmitted(t, rec).JobID)
}

func TestServiceBackup_OnlyDatabases(t *testing.T) {
	f := newFixture(t)
	h := NewService(f.services.Service, f.services.Deployment)
	rec := httptest.NewRecorder()

	h.Backup(rec, withURLParams(newRequest(http.MethodPost, "/services/svc-web/backups", nil), "id", "svc-web"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServiceBackup_NoObjectStorage(t *testing.T) {
	f := newFixture(t)
	services := core.NewServices(core.Deps{Store: f.store, Queue: f.queue, Inspector: f.queue, Events: f.hub, Logger: zerolog.Nop()})
	h := NewService(services.Service, services.Deployment)
	rec := httptest.NewRecorder()

	h.Backup(rec, withURLParams(newRequest(http.MethodPost, "/services/svc-db/backups", nil), "id", "svc-db"))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, decodeError(rec), "object storage not configured")
	stats, err := f.queue.Stats("")
	require.NoError(t, err)
	assert.Empty(t, stats)
}

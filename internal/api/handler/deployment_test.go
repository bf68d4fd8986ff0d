package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/paas/internal/model"
)

func TestDeploymentGetAndLogs(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	require.NoError(t, f.store.CreateDeployment(ctx, &model.Deployment{ID: "dep-1", ServiceID: "svc-web", Status: model.DeploymentQueued}))
	f.hub.AppendLog("dep-1", "-----> Building acme-web")
	h := NewDeployment(f.services.Deployment)

	rec := httptest.NewRecorder()
	h.Get(rec, withURLParams(newRequest(http.MethodGet, "/deployments/dep-1", nil), "id", "dep-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var dep model.Deployment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dep))
	assert.Equal(t, model.DeploymentQueued, dep.Status)

	rec = httptest.NewRecorder()
	h.Logs(rec, withURLParams(newRequest(http.MethodGet, "/deployments/dep-1/logs", nil), "id", "dep-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Lines []string `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"-----> Building acme-web"}, body.Lines)
}

func TestDeploymentLogs_EmptyIsArray(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.CreateDeployment(t.Context(), &model.Deployment{ID: "dep-2", ServiceID: "svc-web", Status: model.DeploymentQueued}))
	h := NewDeployment(f.services.Deployment)
	rec := httptest.NewRecorder()

	h.Logs(rec, withURLParams(newRequest(http.MethodGet, "/deployments/dep-2/logs", nil), "id", "dep-2"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"lines":[]`)
}

func TestDeploymentGet_NotFound(t *testing.T) {
	f := newFixture(t)
	h := NewDeployment(f.services.Deployment)
	rec := httptest.NewRecorder()

	h.Get(rec, withURLParams(newRequest(http.MethodGet, "/deployments/nope", nil), "id", "nope"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

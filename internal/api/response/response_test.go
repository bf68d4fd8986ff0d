package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	WriteJSON(w, http.StatusCreated, map[string]string{"id": "proj-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"proj-1"}`, w.Body.String())
}

func TestWriteJSON_NilSliceIsNull(t *testing.T) {
	w := httptest.NewRecorder()

	var lines []string
	WriteJSON(w, http.StatusOK, lines)
	assert.Equal(t, "null\n", w.Body.String())
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(w, http.StatusConflict, "queue has active jobs")

	assert.Equal(t, http.StatusConflict, w.Code)
	var body Error
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "queue has active jobs", body.Error)
}

func TestWriteAccepted(t *testing.T) {
	tests := []struct {
		name     string
		location string
	}{
		{"with location", "/api/v1/queues/server-srv-1-deploy-app/jobs/deploy-app-svc-web"},
		{"without location", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteAccepted(w, tt.location, map[string]string{"job_id": "deploy-app-svc-web"})

			assert.Equal(t, http.StatusAccepted, w.Code)
			assert.Equal(t, tt.location, w.Header().Get("Location"))
			assert.JSONEq(t, `{"job_id":"deploy-app-svc-web"}`, w.Body.String())
		})
	}
}

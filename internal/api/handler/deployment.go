package handler

import (
	"net/http"

	"github.com/edvin/paas/internal/api/request"
	"github.com/edvin/paas/internal/api/response"
	"github.com/edvin/paas/internal/core"
)

type Deployment struct {
	svc *core.DeploymentService
}

func NewDeployment(svc *core.DeploymentService) *Deployment {
	return &Deployment{svc: svc}
}

func (h *Deployment) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.Param(r, "id")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, d)
}

func (h *Deployment) Logs(w http.ResponseWriter, r *http.Request) {
	id, err := request.Param(r, "id")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	lines, err := h.svc.Logs(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if lines == nil {
		lines = []string{}
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{"deployment_id": id, "lines": lines})
}

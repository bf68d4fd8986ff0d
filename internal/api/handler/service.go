package handler

import (
	"net/http"

	"github.com/edvin/paas/internal/api/request"
	"github.com/edvin/paas/internal/api/response"
	"github.com/edvin/paas/internal/core"
)

type Service struct {
	svc         *core.ServiceService
	deployments *core.DeploymentService
}

func NewService(svc *core.ServiceService, deployments *core.DeploymentService) *Service {
	return &Service{svc: svc, deployments: deployments}
}

func (h *Service) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateService
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	svc, err := h.svc.Create(r.Context(), req.ProjectID, req.Service)
	if err != nil {
		writeError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, svc)
}

func (h *Service) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.Param(r, "id")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	svc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, svc)
}

// Deploy triggers a deployment. A deployment already waiting or running for
// the service is returned instead of queueing another.
func (h *Service) Deploy(w http.ResponseWriter, r *http.Request) {
	id, err := request.Param(r, "id")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.deployments.Trigger(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSubmitted(w, sub)
}

func (h *Service) Destroy(w http.ResponseWriter, r *http.Request) {
	id, err := request.Param(r, "id")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.svc.Destroy(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSubmitted(w, sub)
}

func (h *Service) Variables(w http.ResponseWriter, r *http.Request) {
	id, err := request.Param(r, "id")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.Variables
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.svc.UpdateVariables(r.Context(), id, request.ToVariables(req.Variables), req.Restart)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSubmitted(w, sub)
}

func (h *Service) Volumes(w http.ResponseWriter, r *http.Request) {
	id, err := request.Param(r, "id")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.Volumes
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.svc.UpdateVolumes(r.Context(), id, request.ToVolumes(req.Volumes), req.Restart)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSubmitted(w, sub)
}

func (h *Service) Ports(w http.ResponseWriter, r *http.Request) {
	id, err := request.Param(r, "id")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.Ports
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.svc.ExposePorts(r.Context(), id, req.Ports)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSubmitted(w, sub)
}

func (h *Service) Backup(w http.ResponseWriter, r *http.Request) {
	id, err := request.Param(r, "id")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.svc.Backup(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSubmitted(w, sub)
}

func (h *Service) GetBackup(w http.ResponseWriter, r *http.Request) {
	id, err := request.Param(r, "backupID")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.svc.GetBackup(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, b)
}

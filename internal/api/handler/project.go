package handler

import (
	"net/http"

	"github.com/edvin/paas/internal/api/request"
	"github.com/edvin/paas/internal/api/response"
	"github.com/edvin/paas/internal/core"
	"github.com/edvin/paas/internal/model"
)

type Project struct {
	svc         *core.ProjectService
	deployments *core.DeploymentService
}

func NewProject(svc *core.ProjectService, deployments *core.DeploymentService) *Project {
	return &Project{svc: svc, deployments: deployments}
}

func (h *Project) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateProject
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := &model.Project{Name: req.Name, ServerID: req.ServerID, TenantSlug: req.TenantSlug}
	if err := h.svc.Create(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, p)
}

func (h *Project) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.Param(r, "id")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, p)
}

func (h *Project) Services(w http.ResponseWriter, r *http.Request) {
	id, err := request.Param(r, "id")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	services, err := h.svc.Services(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, services)
}

// TemplateDeployment queues a rollout of the services in the body.
func (h *Project) TemplateDeployment(w http.ResponseWriter, r *http.Request) {
	id, err := request.Param(r, "id")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.TemplateDeployment
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.deployments.AddTemplateDeployQueue(r.Context(), req.Services, id, req.ServerID, req.TenantSlug)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSubmitted(w, sub)
}

// DeployCatalogTemplate queues a rollout of a named catalog template.
func (h *Project) DeployCatalogTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := request.Param(r, "id")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	name, err := request.Param(r, "name")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.deployments.DeployTemplate(r.Context(), name, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSubmitted(w, sub)
}

func (h *Project) Templates(w http.ResponseWriter, _ *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.deployments.Templates())
}

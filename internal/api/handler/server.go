package handler

import (
	"net/http"

	"github.com/edvin/paas/internal/api/request"
	"github.com/edvin/paas/internal/api/response"
	"github.com/edvin/paas/internal/core"
	"github.com/edvin/paas/internal/model"
)

type Server struct {
	svc         *core.ServerService
	deployments *core.DeploymentService
}

func NewServer(svc *core.ServerService, deployments *core.DeploymentService) *Server {
	return &Server{svc: svc, deployments: deployments}
}

func (h *Server) List(w http.ResponseWriter, r *http.Request) {
	servers, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, servers)
}

func (h *Server) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateServer
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	srv := &model.Server{
		Name:       req.Name,
		Host:       req.Host,
		Port:       req.Port,
		Username:   req.Username,
		PrivateKey: req.PrivateKey,
		TenantSlug: req.TenantSlug,
	}
	if err := h.svc.Create(r.Context(), srv); err != nil {
		writeError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, srv)
}

func (h *Server) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.Param(r, "id")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	srv, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, srv)
}

// SyncPlugins queues a plugin reconciliation on the server.
func (h *Server) SyncPlugins(w http.ResponseWriter, r *http.Request) {
	id, err := request.Param(r, "id")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.svc.SyncPlugins(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSubmitted(w, sub)
}

// CreateDatabase queues a database, installing its plugin on the host first
// when missing.
func (h *Server) CreateDatabase(w http.ResponseWriter, r *http.Request) {
	id, err := request.Param(r, "id")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.CreateDatabase
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	jc := model.JobContext{ProjectID: req.ProjectID, ServiceID: req.ServiceID}
	sub, err := h.deployments.CreateDatabase(r.Context(), id, req.Name, req.Type, jc)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSubmitted(w, sub)
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/edvin/paas/internal/api/request"
	"github.com/edvin/paas/internal/api/response"
	"github.com/edvin/paas/internal/core"
)

type Queue struct {
	svc *core.QueueService
}

func NewQueue(svc *core.QueueService) *Queue {
	return &Queue{svc: svc}
}

func (h *Queue) List(w http.ResponseWriter, r *http.Request) {
	id, err := request.Param(r, "id")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	names, err := h.svc.ListQueues(id)
	if err != nil {
		writeError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, names)
}

func (h *Queue) Stats(w http.ResponseWriter, r *http.Request) {
	id, err := request.Param(r, "id")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.svc.GetQueueStats(id)
	if err != nil {
		writeError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, stats)
}

// Flush drops a queue. ?force=true also drops it while a job is running.
func (h *Queue) Flush(w http.ResponseWriter, r *http.Request) {
	name, err := request.Param(r, "name")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		force, err = strconv.ParseBool(v)
		if err != nil {
			response.WriteError(w, http.StatusBadRequest, "invalid force parameter")
			return
		}
	}

	if err := h.svc.FlushQueue(name, force); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Queue) GetJob(w http.ResponseWriter, r *http.Request) {
	name, err := request.Param(r, "name")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := request.Param(r, "id")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.svc.GetJob(name, id)
	if err != nil {
		writeError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, job)
}

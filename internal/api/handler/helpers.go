package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/edvin/paas/internal/api/response"
	"github.com/edvin/paas/internal/core"
	"github.com/edvin/paas/internal/queue"
	"github.com/edvin/paas/internal/store"
)

// statusFor maps action layer errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, queue.ErrJobNotFound),
		errors.Is(err, core.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, queue.ErrQueueBusy):
		return http.StatusConflict
	case errors.Is(err, queue.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, queue.ErrClosed), errors.Is(err, queue.ErrNotStarted),
		errors.Is(err, core.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	response.WriteError(w, statusFor(err), err.Error())
}

// writeSubmitted answers 202 with a Location pointing at the queued job.
func writeSubmitted(w http.ResponseWriter, sub core.Submitted) {
	response.WriteAccepted(w, jobLocation(sub), sub)
}

func jobLocation(sub core.Submitted) string {
	if sub.Queue == "" || sub.JobID == "" {
		return ""
	}
	return "/api/v1/queues/" + url.PathEscape(sub.Queue) + "/jobs/" + url.PathEscape(sub.JobID)
}

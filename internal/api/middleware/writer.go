package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
)

// statusWriter remembers the status a handler answered with.
type statusWriter struct {
	http.ResponseWriter
	status   int
	upgraded bool
}

func wrap(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	if status == http.StatusSwitchingProtocols {
		w.upgraded = true
	}
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets the event stream upgrade through the wrapped writer.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer %T cannot be hijacked", w.ResponseWriter)
	}
	w.upgraded = true
	return hj.Hijack()
}

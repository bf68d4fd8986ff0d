package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/edvin/paas/internal/api/response"
	"github.com/edvin/paas/internal/events"
)

const (
	eventBuffer  = 256
	writeTimeout = 10 * time.Second
)

type Events struct {
	hub *events.Hub
}

func NewEvents(hub *events.Hub) *Events {
	return &Events{hub: hub}
}

// Stream upgrades to a WebSocket and forwards every event published on the
// channel as a JSON message. With ?replay=true the channel's buffered log is
// sent first, so a late observer of a deployment sees its whole output.
func (h *Events) Stream(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	if channel == "" {
		response.WriteError(w, http.StatusBadRequest, "missing channel")
		return
	}
	logger := zerolog.Ctx(r.Context()).With().Str("channel", channel).Logger()

	// Subscribe before replaying so no line falls between the two.
	sub := h.hub.Subscribe(channel, eventBuffer)
	defer sub.Close()

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer ws.CloseNow()

	// Clients only listen; CloseRead handles their close frames.
	ctx := ws.CloseRead(r.Context())

	if r.URL.Query().Get("replay") == "true" {
		for _, line := range h.hub.ReadLog(channel) {
			ev := events.Event{Channel: channel, Type: events.TypeLog, Data: line, Time: time.Now()}
			if err := h.write(ctx, ws, ev); err != nil {
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			ws.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-sub.C:
			if !ok {
				ws.Close(websocket.StatusGoingAway, "subscription closed")
				return
			}
			if err := h.write(ctx, ws, ev); err != nil {
				logger.Debug().Err(err).Msg("event stream ended")
				return
			}
		}
	}
}

func (h *Events) write(ctx context.Context, ws *websocket.Conn, ev events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, ws, ev)
}

package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/paas/internal/events"
)

func newEventServer(t *testing.T) (*events.Hub, string) {
	t.Helper()
	hub := events.NewHub(zerolog.Nop(), events.HubOptions{})
	r := chi.NewRouter()
	r.Get("/events/{channel}", NewEvents(hub).Stream)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ws, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.CloseNow() })
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) events.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var ev events.Event
	require.NoError(t, wsjson.Read(ctx, ws, &ev))
	return ev
}

func TestEventsStream_ForwardsPublishedEvents(t *testing.T) {
	hub, base := newEventServer(t)
	ws := dial(t, base+"/events/acme")

	hub.PublishAction("acme", "refresh")
	hub.Publish("acme", "deploying acme-web")

	first := readEvent(t, ws)
	assert.Equal(t, events.TypeAction, first.Type)
	assert.Equal(t, "refresh", first.Data)
	second := readEvent(t, ws)
	assert.Equal(t, events.TypeMessage, second.Type)
	assert.Equal(t, "deploying acme-web", second.Data)
}

func TestEventsStream_ReplaysBufferedLog(t *testing.T) {
	hub, base := newEventServer(t)
	hub.AppendLog("dep-1", "line 1")
	hub.AppendLog("dep-1", "line 2")

	ws := dial(t, base+"/events/dep-1?replay=true")

	assert.Equal(t, "line 1", readEvent(t, ws).Data)
	assert.Equal(t, "line 2", readEvent(t, ws).Data)

	hub.AppendLog("dep-1", "line 3")
	ev := readEvent(t, ws)
	assert.Equal(t, events.TypeLog, ev.Type)
	assert.Equal(t, "line 3", ev.Data)
}

func TestEventsStream_OtherChannelsNotDelivered(t *testing.T) {
	hub, base := newEventServer(t)
	ws := dial(t, base+"/events/acme")

	hub.Publish("globex", "not for acme")
	hub.Publish("acme", "for acme")

	assert.Equal(t, "for acme", readEvent(t, ws).Data)
}

// Package events fans out progress messages, refresh notices and log lines to
// subscribers of named channels.
package events

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Event types.
const (
	TypeMessage = "message"
	TypeAction  = "action"
	TypeLog     = "log"
)

var eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "paas_events_dropped_total",
	Help: "Events not delivered because a subscriber was too slow",
})

// Publisher is what workers and the orchestrator report through.
type Publisher interface {
	Publish(channel, text string)
	// PublishAction sends a structured notice such as "refresh" to the
	// tenant's channel.
	PublishAction(tenantSlug, action string)
	AppendLog(channel, line string)
	ReadLog(channel string) []string
}

type Event struct {
	Channel string    `json:"channel"`
	Type    string    `json:"type"`
	Data    string    `json:"data"`
	Time    time.Time `json:"time"`
}

// HubOptions bound the in-memory log buffers.
type HubOptions struct {
	MaxLogLines    int
	MaxLogChannels int
}

// Hub is an in-process Publisher. Delivery to a subscriber never blocks the
// publisher: events for a full subscriber buffer are dropped.
type Hub struct {
	logger zerolog.Logger
	opts   HubOptions

	mu       sync.RWMutex
	subs     map[string]map[*Subscription]struct{}
	logs     map[string][]string
	logOrder []string
}

var _ Publisher = (*Hub)(nil)

func NewHub(logger zerolog.Logger, opts HubOptions) *Hub {
	if opts.MaxLogLines <= 0 {
		opts.MaxLogLines = 10000
	}
	if opts.MaxLogChannels <= 0 {
		opts.MaxLogChannels = 1000
	}
	return &Hub{
		logger: logger.With().Str("component", "events").Logger(),
		opts:   opts,
		subs:   make(map[string]map[*Subscription]struct{}),
		logs:   make(map[string][]string),
	}
}

// Subscription receives events for one channel until closed.
type Subscription struct {
	C       <-chan Event
	ch      chan Event
	hub     *Hub
	channel string
	once    sync.Once
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		if set, ok := s.hub.subs[s.channel]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.hub.subs, s.channel)
			}
		}
		close(s.ch)
	})
}

// Subscribe registers a subscriber with the given buffer size.
func (h *Hub) Subscribe(channel string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, ch: ch, hub: h, channel: channel}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[channel]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[channel] = set
	}
	set[sub] = struct{}{}
	return sub
}

func (h *Hub) Publish(channel, text string) {
	h.emit(Event{Channel: channel, Type: TypeMessage, Data: text, Time: time.Now()})
}

func (h *Hub) PublishAction(tenantSlug, action string) {
	h.emit(Event{Channel: tenantSlug, Type: TypeAction, Data: action, Time: time.Now()})
}

// AppendLog stores line in the channel's log and delivers it to subscribers.
func (h *Hub) AppendLog(channel, line string) {
	h.mu.Lock()
	lines, ok := h.logs[channel]
	if !ok {
		h.logOrder = append(h.logOrder, channel)
		if len(h.logOrder) > h.opts.MaxLogChannels {
			evict := h.logOrder[0]
			h.logOrder = h.logOrder[1:]
			delete(h.logs, evict)
		}
	}
	lines = append(lines, line)
	if len(lines) > h.opts.MaxLogLines {
		lines = lines[len(lines)-h.opts.MaxLogLines:]
	}
	h.logs[channel] = lines
	h.mu.Unlock()

	h.emit(Event{Channel: channel, Type: TypeLog, Data: line, Time: time.Now()})
}

// ReadLog returns a copy of the channel's accumulated lines.
func (h *Hub) ReadLog(channel string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.logs[channel]...)
}

func (h *Hub) emit(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[ev.Channel] {
		select {
		case sub.ch <- ev:
		default:
			eventsDropped.Inc()
			h.logger.Debug().Str("channel", ev.Channel).Msg("subscriber buffer full, event dropped")
		}
	}
}

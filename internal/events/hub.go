// Package events fans out BotFather procedure progress to live subscribers.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/botfactory/internal/botfather"
)

// Event is one progress notification as sent to subscribers.
type Event struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Procedure string    `json:"procedure"`
	Step      string    `json:"step"`
	Username  string    `json:"username,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
}

// Hub broadcasts events to subscribers. Each subscriber has a bounded
// buffer; events for a subscriber whose buffer is full are dropped.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int64]chan Event
	nextID  int64
	buffer  int
	history *History
	dropped atomic.Int64
	logger  *slog.Logger
}

// Ensure Hub implements botfather.Observer.
var _ botfather.Observer = (*Hub)(nil)

// NewHub creates a hub with the given per-subscriber buffer and history size.
func NewHub(buffer, historySize int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:    make(map[int64]chan Event),
		buffer:  buffer,
		history: NewHistory(historySize),
		logger:  logger.With("component", "events"),
	}
}

// Observe converts a progress notification into an event and publishes it.
func (h *Hub) Observe(p botfather.Progress) {
	h.Publish(Event{
		Procedure: p.Procedure,
		Step:      p.Step,
		Username:  p.Username,
		Outcome:   p.Outcome,
	})
}

// Publish stamps and broadcasts ev without blocking.
func (h *Hub) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	h.history.Add(ev)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
			h.logger.Debug("Dropped event for slow subscriber", "subscriber", id, "event_id", ev.ID)
		}
	}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan Event, h.buffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
}

// Recent returns the buffered history oldest first.
func (h *Hub) Recent() []Event {
	return h.history.Events()
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many events were dropped for slow subscribers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

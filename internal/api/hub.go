package api

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/talgya/circular-city/internal/engine"
)

// Frame is one message on the snapshot stream.
type Frame struct {
	Type   string              `json:"type"` // "hello" on connect, "tick" afterwards
	Tick   uint64              `json:"tick"`
	City   engine.CitySnapshot `json:"city"`
	Events []engine.Event      `json:"events,omitempty"`
}

// Hub fans tick snapshots out to stream subscribers. Slow subscribers
// miss frames rather than stall the tick loop.
type Hub struct {
	mu   sync.Mutex
	subs map[uint64]chan []byte
	next uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan []byte)}
}

// Subscribe registers a subscriber with a small frame buffer.
func (h *Hub) Subscribe() (uint64, <-chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	ch := make(chan []byte, 8)
	h.subs[h.next] = ch
	return h.next, ch
}

// Unsubscribe removes and closes a subscriber's channel.
func (h *Hub) Unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// TickCompleted implements engine.TickObserver.
func (h *Hub) TickCompleted(s *engine.Simulation, tick uint64) {
	if h.Subscribers() == 0 {
		return
	}
	f := Frame{Type: "tick", Tick: tick, City: s.Snapshot()}
	for _, e := range s.RecentEvents(50) {
		if e.Tick == tick {
			f.Events = append(f.Events, e)
		}
	}
	data, err := json.Marshal(f)
	if err != nil {
		slog.Error("stream frame encode failed", "tick", tick, "error", err)
		return
	}
	h.broadcast(data)
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- data:
		default:
			slog.Debug("stream subscriber behind, frame dropped", "sub_id", id)
		}
	}
}

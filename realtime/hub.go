package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"boardkit/core"
)

// AllBoards subscribes to events of every board.
const AllBoards = ""

type subscriber struct {
	board string
	ch    chan core.Event
}

// Hub fans board events out to channel subscribers, optionally filtered by board.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]subscriber
	next   int
	closed bool
}

func NewHub() *Hub { return &Hub{subs: map[int]subscriber{}} }

// Subscribe returns a channel receiving events for board, or for every board
// when board is AllBoards. The board name is canonicalized.
func (h *Hub) Subscribe(board string, buffer int) (int, <-chan core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan core.Event, buffer)
	if h.closed {
		close(ch)
		return 0, ch
	}
	h.next++
	id := h.next
	h.subs[id] = subscriber{board: core.Canonical(board), ch: ch}
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(s.ch)
	}
}

// Subscribers reports how many channels are attached.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast delivers ev to matching subscribers. Slow subscribers miss events
// rather than blocking the publisher.
func (h *Hub) Broadcast(_ context.Context, ev core.Event) {
	// sends are non-blocking, so holding the read lock keeps Unsubscribe from
	// closing a channel mid-send without stalling anyone
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if s.board != AllBoards && s.board != ev.Board {
			continue
		}
		select {
		case s.ch <- ev:
		default: /* drop if full */
		}
	}
}

// Close detaches every subscriber and closes their channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, s := range h.subs {
		delete(h.subs, id)
		close(s.ch)
	}
}

// MarshalJSON is a helper to convert events to JSON bytes for WebSocket/SSE.
func MarshalJSON(ev core.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}

package events

import "sync"

// History is a fixed-size ring of the most recent events. When full the
// oldest event is overwritten.
type History struct {
	buf  []Event
	size int
	head int // write position
	full bool
	mu   sync.RWMutex
}

// NewHistory creates a ring holding at most size events.
func NewHistory(size int) *History {
	if size <= 0 {
		size = 50
	}
	return &History{
		buf:  make([]Event, size),
		size: size,
	}
}

// Add appends an event.
func (h *History) Add(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf[h.head] = ev
	h.head = (h.head + 1) % h.size
	if h.head == 0 {
		h.full = true
	}
}

// Events returns the stored events oldest first.
func (h *History) Events() []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.full {
		out := make([]Event, h.head)
		copy(out, h.buf[:h.head])
		return out
	}

	// Wrap-around: head -> end + start -> head
	out := make([]Event, 0, h.size)
	out = append(out, h.buf[h.head:]...)
	return append(out, h.buf[:h.head]...)
}

// Len returns the number of stored events.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.full {
		return h.size
	}
	return h.head
}

package web

import (
	"sync"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
)

const (
	eventKPIs  = "kpis"
	eventBoard = "board"
	eventAlert = "alert"

	subscriberBuffer = 16
)

var codec = sonic.ConfigStd

// event is one server-sent event, already encoded.
type event struct {
	name string
	data []byte
}

// hub fans events out to stream subscribers. A subscriber that falls
// behind misses events rather than blocking the replicas; the next
// state event carries the full view anyway.
type hub struct {
	mu     sync.Mutex
	subs   map[chan event]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[chan event]struct{})}
}

// subscribe returns a channel of events. It is closed by unsubscribe or
// when the hub shuts down.
func (h *hub) subscribe() chan event {
	ch := make(chan event, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	return ch
}

func (h *hub) unsubscribe(ch chan event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *hub) publish(ev event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			log.WithField("event", ev.name).Debug("Dropping event for slow stream subscriber")
		}
	}
}

func (h *hub) publishJSON(name string, v any) {
	data, err := codec.Marshal(v)
	if err != nil {
		log.WithError(err).WithField("event", name).Error("Failed to encode stream event")
		return
	}
	h.publish(event{name: name, data: data})
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

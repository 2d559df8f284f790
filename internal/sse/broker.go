// Package sse implements a Server-Sent Events broker for real-time canvas updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/adcanvas/internal/gemini"
	"github.com/starford/adcanvas/internal/graph"
	"github.com/starford/adcanvas/internal/session"
)

// Event types emitted besides the graph.EventKind values.
const (
	TypeCanvasUpdated  = "canvas.updated"
	TypeCatalogUpdated = "catalog.updated"
	TypeSessionUpdated = "session.updated"
	TypeSessionStep    = "session.step"
	TypeModelSwitched  = "model.switched"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type projectEventReq struct {
	kind string
	path string
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + throttle timestamps). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	throttle time.Duration

	subscribeCh    chan chan []byte
	unsubscribeCh  chan chan []byte
	publishCh      chan Event
	graphEventCh   chan graph.Event
	projectEventCh chan projectEventReq
	countReqCh     chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. throttle bounds how often the summary
// canvas.updated and catalog.updated events are sent.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}

	b := &Broker{
		throttle:       throttle,
		subscribeCh:    make(chan chan []byte),
		unsubscribeCh:  make(chan chan []byte),
		publishCh:      make(chan Event, 256),
		graphEventCh:   make(chan graph.Event, 256),
		projectEventCh: make(chan projectEventReq, 256),
		countReqCh:     make(chan chan int),
		stopCh:         make(chan struct{}),
		stopped:        make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastCanvas, lastCatalog time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)
		raw := []byte(msg)

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	throttled := func(last *time.Time, typ string) {
		now := time.Now()
		if now.Sub(*last) >= b.throttle {
			*last = now
			broadcast(Event{Type: typ, Data: map[string]string{}})
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case ev := <-b.graphEventCh:
			broadcast(Event{Type: string(ev.Kind), Data: ev})
			throttled(&lastCanvas, TypeCanvasUpdated)

		case req := <-b.projectEventCh:
			data := map[string]string{"path": req.path}
			switch req.kind {
			case "created":
				broadcast(Event{Type: "project.created", Data: data})
			case "updated":
				broadcast(Event{Type: "project.updated", Data: data})
			case "deleted":
				broadcast(Event{Type: "project.deleted", Data: data})
			}
			throttled(&lastCatalog, TypeCatalogUpdated)

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishProjectEvent publishes a saved-project change and a throttled
// catalog.updated event.
func (b *Broker) PublishProjectEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.projectEventCh <- projectEventReq{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// GraphChanged forwards a store mutation followed by a throttled
// canvas.updated event.
func (b *Broker) GraphChanged(ev graph.Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.graphEventCh <- ev:
	case <-b.stopped:
	}
}

// SessionChanged publishes the analysis session status. A revealed step is
// also sent on its own so clients can append it without diffing.
func (b *Broker) SessionChanged(st session.Status) {
	b.Publish(Event{Type: TypeSessionUpdated, Data: st})
	if st.State == session.StateRevealing && st.Current >= 0 && st.Current < len(st.Steps) {
		b.Publish(Event{Type: TypeSessionStep, Data: map[string]any{
			"index": st.Current,
			"total": len(st.Steps),
			"step":  st.Steps[st.Current],
		}})
	}
}

// ModelChanged publishes the newly selected model.
func (b *Broker) ModelChanged(m gemini.Model) {
	b.Publish(Event{Type: TypeModelSwitched, Data: m})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}

// Package sse implements Server-Sent Events transport: a broker fanning out
// entity changes to dashboard tabs, and one-shot streams for creation
// workflows.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/estatehub/internal/lifecycle"
	"github.com/starford/estatehub/internal/models"
)

// Event types published by the broker.
const (
	EntityCreated  = "entity.created"
	EntityUpdated  = "entity.updated"
	EntityBinned   = "entity.binned"
	EntityRestored = "entity.restored"
	EntityPurged   = "entity.purged"
	BinUpdated     = "bin.updated"
)

// Event represents an SSE event to broadcast. An empty Owner reaches every
// client; otherwise only that tenant's clients receive it.
type Event struct {
	Owner string `json:"-"`
	Type  string `json:"type"`
	Data  any    `json:"data"`
}

type entityEventReq struct {
	owner string
	typ   string
	ref   models.Ref
}

type subscription struct {
	owner string
	ch    chan []byte
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + per-tenant bin throttle timestamps). Public methods communicate
// with this loop through channels, so no mutexes are required.
type Broker struct {
	binMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	entityCh      chan entityEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given bin.updated throttle interval.
func NewBroker(binThrottle time.Duration) *Broker {
	if binThrottle <= 0 {
		binThrottle = 2 * time.Second
	}

	b := &Broker{
		binMin:        binThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		entityCh:      make(chan entityEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

// EventType maps a lifecycle operation to its broker event.
func EventType(op lifecycle.Op) string {
	switch op {
	case lifecycle.OpBin:
		return EntityBinned
	case lifecycle.OpRestore:
		return EntityRestored
	case lifecycle.OpPurge:
		return EntityPurged
	}
	return EntityUpdated
}

// touchesBin reports whether an event changes the tenant's bin listing.
func touchesBin(typ string) bool {
	return typ == EntityBinned || typ == EntityRestored || typ == EntityPurged
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	lastBin := make(map[string]time.Time)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, owner := range clients {
			if event.Owner != "" && owner != event.Owner {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.owner

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.entityCh:
			broadcast(Event{Owner: req.owner, Type: req.typ, Data: req.ref})
			if !touchesBin(req.typ) {
				continue
			}
			now := time.Now()
			if now.Sub(lastBin[req.owner]) >= b.binMin {
				lastBin[req.owner] = now
				broadcast(Event{Owner: req.owner, Type: BinUpdated, Data: map[string]string{}})
			}

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

// Subscribe adds a client of owner and returns its channel.
func (b *Broker) Subscribe(owner string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{owner: owner, ch: ch}:
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

// Publish sends an event to matching clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishEntity publishes an entity change to owner's clients, followed by a
// throttled bin.updated when the change affects the bin.
func (b *Broker) PublishEntity(owner, typ string, ref models.Ref) {
	if b.closed.Load() {
		return
	}
	select {
	case b.entityCh <- entityEventReq{owner: owner, typ: typ, ref: ref}:
	case <-b.stopped:
	}
}

// Handler returns the SSE endpoint (GET /api/events) for the tenant that
// ownerOf extracts from the request.
func (b *Broker) Handler(ownerOf func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		writeStreamHeaders(w)
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ch := b.Subscribe(ownerOf(r))
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
}

func writeStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

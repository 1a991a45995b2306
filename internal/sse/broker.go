// Package sse implements a Server-Sent Events broker for record change
// notifications.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// ItemsChanged is the throttled event sent after any record change.
const ItemsChanged = "items.changed"

const (
	clientBuffer      = 64
	keepAliveInterval = 15 * time.Second
)

var keepAliveFrame = []byte(": ping\n\n")

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ChangeData is the payload of a record change event.
type ChangeData struct {
	ItemID        string `json:"item_id"`
	ObservationID string `json:"observation_id,omitempty"`
}

type change struct {
	kind          string
	itemID        string
	observationID string
}

// frame renders one SSE message. Every frame carries a sequence id so
// clients can tell whether they missed messages.
func frame(seq uint64, e Event) ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", seq, e.Type, payload), nil
}

// Broker fans record changes out to connected SSE clients.
//
// All mutable state (the client set, the frame sequence and the time of the
// last items.changed) belongs to the loop goroutine. Public methods talk to
// it over channels.
type Broker struct {
	throttle time.Duration

	join    chan chan []byte
	leave   chan chan []byte
	events  chan Event
	changes chan change
	counts  chan chan int

	quit    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker that emits items.changed at most once per
// throttle. A non-positive throttle means two seconds.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}
	b := &Broker{
		throttle: throttle,
		join:     make(chan chan []byte),
		leave:    make(chan chan []byte),
		events:   make(chan Event, 256),
		changes:  make(chan change, 256),
		counts:   make(chan chan int),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go b.loop()
	return b
}

type loopState struct {
	clients     map[chan []byte]struct{}
	seq         uint64
	lastChanged time.Time
}

// send delivers e to every client whose buffer has room. Full clients miss
// the frame.
func (s *loopState) send(e Event) {
	s.seq++
	msg, err := frame(s.seq, e)
	if err != nil {
		return
	}
	for ch := range s.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (b *Broker) loop() {
	defer close(b.stopped)

	st := &loopState{clients: make(map[chan []byte]struct{})}
	for {
		select {
		case <-b.quit:
			for ch := range st.clients {
				close(ch)
			}
			return

		case ch := <-b.join:
			st.clients[ch] = struct{}{}

		case ch := <-b.leave:
			if _, ok := st.clients[ch]; ok {
				delete(st.clients, ch)
				close(ch)
			}

		case e := <-b.events:
			st.send(e)

		case c := <-b.changes:
			st.send(Event{Type: c.kind, Data: ChangeData{ItemID: c.itemID, ObservationID: c.observationID}})
			if now := time.Now(); now.Sub(st.lastChanged) >= b.throttle {
				st.lastChanged = now
				st.send(Event{Type: ItemsChanged, Data: struct{}{}})
			}

		case reply := <-b.counts:
			reply <- len(st.clients)
		}
	}
}

// Close stops the loop and closes every client channel. It is safe to call
// more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.stopped
}

// Subscribe registers a client. The returned channel is closed when the
// client leaves or the broker closes.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.join <- ch:
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
	case b.leave <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	reply := make(chan int, 1)
	select {
	case b.counts <- reply:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an arbitrary event to all connected clients.
func (b *Broker) Publish(e Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.events <- e:
	case <-b.stopped:
	}
}

// PublishChange publishes a record change of the given kind (for example
// "observation.created") followed by a throttled items.changed event. Its
// signature matches the tracker and watcher callbacks.
func (b *Broker) PublishChange(kind, itemID, observationID string) {
	if b.closed.Load() || kind == "" {
		return
	}
	select {
	case b.changes <- change{kind: kind, itemID: itemID, observationID: observationID}:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client (GET /api/events). Idle streams get
// a comment frame every 15 seconds so proxies keep them open.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(keepAliveInterval)
	defer ping.Stop()

	for {
		var msg []byte
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			msg = keepAliveFrame
		case m, ok := <-ch:
			if !ok {
				return
			}
			msg = m
		}
		if _, err := w.Write(msg); err != nil {
			return
		}
		flusher.Flush()
	}
}

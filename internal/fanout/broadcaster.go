// Package fanout implements the websocket subscriber fan-out: an
// initial_state snapshot on connect, then coalesced session_update deltas,
// session_removed deltas sent with the next coalescing flush, and
// focus_changed deltas sent immediately. Grounded directly
// on mrf-agent-racer/backend/internal/ws/broadcast.go's pending-buffer +
// time.AfterFunc coalescing flush and per-client send-channel drop
// semantics. See SPEC_FULL.md §2, spec.md §4.3.
package fanout

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/registry"
	"github.com/gregory-lime/jacques-context-manager-sub007/internal/session"
	"github.com/gregory-lime/jacques-context-manager-sub007/internal/telemetry"
)

const clientSendQueueDepth = 32

// client is one connected websocket subscriber.
type client struct {
	send chan []byte

	mu             sync.Mutex
	pendingUpdates map[string]session.Session
	pendingRemoved map[string]struct{}
	flushTimer     *time.Timer
	throttle       time.Duration
}

func newClient(throttle time.Duration) *client {
	return &client{
		send:           make(chan []byte, clientSendQueueDepth),
		pendingUpdates: make(map[string]session.Session),
		pendingRemoved: make(map[string]struct{}),
		throttle:       throttle,
	}
}

// Broadcaster fans registry deltas out to connected websocket clients with
// last-wins coalescing for session_update per spec.md §4.3.
type Broadcaster struct {
	log telemetry.Logger

	mu      sync.RWMutex
	clients map[*client]bool

	sub      *registry.Subscription
	throttle time.Duration
}

// NewBroadcaster subscribes to reg and starts forwarding deltas. Coalescing
// flush fires at most once per throttle interval per connected client.
func NewBroadcaster(reg *registry.Registry, log telemetry.Logger, throttle time.Duration) *Broadcaster {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	if throttle <= 0 {
		throttle = 150 * time.Millisecond
	}
	sub, _ := reg.Subscribe()
	b := &Broadcaster{
		log:      log,
		clients:  make(map[*client]bool),
		sub:      sub,
		throttle: throttle,
	}
	go b.pump()
	return b
}

func (b *Broadcaster) pump() {
	for d := range b.sub.Deltas() {
		b.apply(d)
	}
}

func (b *Broadcaster) apply(d registry.Delta) {
	switch v := d.(type) {
	case registry.SessionUpserted:
		b.queueUpdate(v.Session)
	case registry.SessionRemoved:
		b.queueRemoval(v.ID)
	case registry.FocusChanged:
		b.broadcastNow(Frame{Type: frameFocusChanged, FocusedSessionID: v.ID, Session: v.Session})
	}
}

// snapshotClients returns the current client set without holding the lock
// during subsequent per-client work, so a send-triggered removal never
// tries to re-acquire a lock already held by the caller.
func (b *Broadcaster) snapshotClients() []*client {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		out = append(out, c)
	}
	return out
}

// queueUpdate coalesces session_update frames: only the latest pending
// update for a given session id is kept until the flush fires.
func (b *Broadcaster) queueUpdate(s session.Session) {
	for _, c := range b.snapshotClients() {
		c.mu.Lock()
		c.pendingUpdates[s.ID] = s
		delete(c.pendingRemoved, s.ID)
		c.armFlush(b, c)
		c.mu.Unlock()
	}
}

func (b *Broadcaster) queueRemoval(id string) {
	for _, c := range b.snapshotClients() {
		c.mu.Lock()
		delete(c.pendingUpdates, id)
		c.pendingRemoved[id] = struct{}{}
		c.armFlush(b, c)
		c.mu.Unlock()
	}
}

// armFlush schedules a coalescing flush if one is not already pending.
// Caller must hold c.mu.
func (c *client) armFlush(b *Broadcaster, self *client) {
	if c.flushTimer != nil {
		return
	}
	c.flushTimer = time.AfterFunc(c.throttle, func() { b.flush(self) })
}

func (b *Broadcaster) flush(c *client) {
	c.mu.Lock()
	updates := c.pendingUpdates
	removed := c.pendingRemoved
	c.pendingUpdates = make(map[string]session.Session)
	c.pendingRemoved = make(map[string]struct{})
	c.flushTimer = nil
	c.mu.Unlock()

	for _, s := range updates {
		b.sendTo(c, Frame{Type: frameSessionUpdate, Session: &s, SessionID: s.ID})
	}
	for id := range removed {
		b.sendTo(c, Frame{Type: frameSessionRemoved, SessionID: id})
	}
}

// broadcastNow sends a frame immediately to every client, bypassing the
// coalescing flush. Only focus_changed frames take this path;
// session_removed frames are queued by queueRemoval and sent by flush
// after that client's pending session_update frames, and a removal that
// is followed by an update for the same id within one throttle window is
// not sent at all.
func (b *Broadcaster) broadcastNow(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	for _, c := range b.snapshotClients() {
		b.send(c, data)
	}
}

func (b *Broadcaster) sendTo(c *client, f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	b.send(c, data)
}

// send is non-blocking: a slow client is dropped rather than stalling the
// publisher, per spec.md §4.1/§4.3/§5.
func (b *Broadcaster) send(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		b.removeClient(c)
	}
}

// AddClient registers a new client and returns its send channel plus the
// initial_state snapshot frame bytes.
func (b *Broadcaster) AddClient(ctx context.Context, snapshot registry.Snapshot) (*client, []byte, error) {
	c := newClient(b.throttle)
	initial := Frame{Type: frameInitialState, Sessions: snapshot.Sessions, FocusedSessionID: snapshot.FocusedID}
	data, err := json.Marshal(initial)
	if err != nil {
		return nil, nil, err
	}
	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()
	return c, data, nil
}

func (b *Broadcaster) removeClient(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
}

// RemoveClient unregisters a client, e.g. on socket close.
func (b *Broadcaster) RemoveClient(c *client) { b.removeClient(c) }

// Close stops the broadcaster's delta pump.
func (b *Broadcaster) Close() { b.sub.Close() }

package fanout

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/registry"
	"github.com/gregory-lime/jacques-context-manager-sub007/internal/session"
)

func TestSessionUpdatesCoalesceWithinThrottleWindow(t *testing.T) {
	reg := registry.New()
	defer reg.Close()
	b := NewBroadcaster(reg, nil, 30*time.Millisecond)
	defer b.Close()

	c, _, err := b.AddClient(context.Background(), registry.Snapshot{})
	if err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	reg.RegisterSession(context.Background(), "s1", registry.SessionMeta{Title: "first"})
	reg.RegisterSession(context.Background(), "s1", registry.SessionMeta{Title: "second"})
	reg.RegisterSession(context.Background(), "s1", registry.SessionMeta{Title: "third"})

	// Collect every frame sent over several throttle windows: the immediate
	// focus_changed frame for s1 plus whatever the coalescing flush sends.
	var frames []Frame
	window := time.After(200 * time.Millisecond)
collect:
	for {
		select {
		case data := <-c.send:
			var f Frame
			if err := json.Unmarshal(data, &f); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			frames = append(frames, f)
		case <-window:
			break collect
		}
	}
	if len(frames) == 0 {
		t.Fatal("timed out waiting for a coalesced frame")
	}

	var updateFrames int
	for _, f := range frames {
		if f.Type == frameSessionUpdate {
			updateFrames++
		}
	}
	if updateFrames != 1 {
		t.Fatalf("expected exactly one coalesced session_update frame for s1, got %d", updateFrames)
	}
}

func TestFocusChangedIsNeverCoalesced(t *testing.T) {
	reg := registry.New()
	defer reg.Close()
	b := NewBroadcaster(reg, nil, time.Hour) // long throttle: update frames would never flush in time
	defer b.Close()

	c, _, err := b.AddClient(context.Background(), registry.Snapshot{})
	if err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	reg.RegisterSession(context.Background(), "s1", registry.SessionMeta{})

	select {
	case data := <-c.send:
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if f.Type != frameFocusChanged {
			t.Fatalf("expected an immediate focus_changed frame, got %q", f.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the uncoalesced focus_changed frame")
	}
}

func TestSlowClientIsDroppedRatherThanBlockingPublisher(t *testing.T) {
	reg := registry.New()
	defer reg.Close()
	b := NewBroadcaster(reg, nil, time.Millisecond)
	defer b.Close()

	c, _, err := b.AddClient(context.Background(), registry.Snapshot{})
	if err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	// Never drain c.send: after clientSendQueueDepth uncoalesced frames
	// (focus_changed, one per distinct new focused session) the client
	// must be dropped instead of stalling the registry's publisher.
	for i := 0; i < clientSendQueueDepth+5; i++ {
		reg.RegisterSession(context.Background(), sessionID(i), registry.SessionMeta{})
	}

	deadline := time.After(2 * time.Second)
	for {
		b.mu.RLock()
		_, stillConnected := b.clients[c]
		b.mu.RUnlock()
		if !stillConnected {
			return
		}
		select {
		case <-deadline:
			t.Fatal("expected the overflowing client to eventually be dropped")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// TestQueuedUpdateClearsStalePendingRemoval covers the O2 ordering guarantee
// (spec.md §5): if a removal for id X is queued and, before the throttle
// flushes, an update for the same id X is queued (e.g. X is unregistered and
// a new session reusing the id registers within one throttle window), the
// client must end up seeing the update live rather than a stale removal —
// flush() always sends pending updates before pending removals, so a
// leftover pendingRemoved[X] would otherwise mark a live session removed.
func TestQueuedUpdateClearsStalePendingRemoval(t *testing.T) {
	reg := registry.New()
	defer reg.Close()
	b := NewBroadcaster(reg, nil, time.Hour) // long throttle: flush only via the manual call below
	defer b.Close()

	c, _, err := b.AddClient(context.Background(), registry.Snapshot{})
	if err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	b.queueRemoval("x1")
	b.queueUpdate(session.Session{ID: "x1"})

	c.mu.Lock()
	_, stillPendingRemoval := c.pendingRemoved["x1"]
	c.mu.Unlock()
	if stillPendingRemoval {
		t.Fatal("queueUpdate must clear a stale pendingRemoved entry for the same id")
	}

	b.flush(c)

	select {
	case data := <-c.send:
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if f.Type != frameSessionUpdate || f.SessionID != "x1" {
			t.Fatalf("expected a session_update frame for x1, got %+v", f)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the flushed update frame")
	}

	select {
	case data := <-c.send:
		var f Frame
		_ = json.Unmarshal(data, &f)
		t.Fatalf("expected no further frame (no stale session_removed), got %+v", f)
	case <-time.After(100 * time.Millisecond):
	}
}

func sessionID(i int) string {
	return "s" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}

package registry

import (
	"context"
	"testing"
	"time"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/session"
)

func TestRegisterSessionThenGetSession(t *testing.T) {
	r := New()
	defer r.Close()
	ctx := context.Background()

	r.RegisterSession(ctx, "s1", SessionMeta{ProjectPath: "/tmp/proj", CreatedAt: time.Now()})

	s, ok := r.GetSession("s1")
	if !ok {
		t.Fatal("expected session s1 to exist")
	}
	if s.ProjectPath != "/tmp/proj" {
		t.Fatalf("unexpected project path %q", s.ProjectPath)
	}
}

func TestAutoRegistrationThenRegisterMergesWithoutRegressing(t *testing.T) {
	r := New()
	defer r.Close()
	ctx := context.Background()

	r.UpdateContext(ctx, "s1", session.ContextMetrics{UsedPercentage: 50}, time.Now())
	r.RegisterSession(ctx, "s1", SessionMeta{ProjectPath: "/tmp/proj", TerminalKey: "real-key"})

	s, ok := r.GetSession("s1")
	if !ok {
		t.Fatal("expected auto-registered session to exist")
	}
	if s.ProjectPath != "/tmp/proj" {
		t.Fatalf("expected RegisterSession to fill in project path, got %q", s.ProjectPath)
	}
	if s.Context == nil || s.Context.UsedPercentage != 50 {
		t.Fatalf("expected the earlier context_update to survive, got %+v", s.Context)
	}
}

func TestUnregisterUnknownSessionReturnsError(t *testing.T) {
	r := New()
	defer r.Close()
	if err := r.UnregisterSession(context.Background(), "missing"); err != ErrUnknownSession {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
}

func TestFocusShiftsToMutatedSessionThenRefocusesOnRemoval(t *testing.T) {
	r := New()
	defer r.Close()
	ctx := context.Background()
	now := time.Now()

	r.RegisterSession(ctx, "s1", SessionMeta{CreatedAt: now})
	r.RegisterSession(ctx, "s2", SessionMeta{CreatedAt: now.Add(time.Second)})

	focused, ok := r.GetFocusedSession()
	if !ok || focused.ID != "s2" {
		t.Fatalf("expected focus to follow the most recently mutated session s2, got %+v ok=%v", focused, ok)
	}

	if err := r.UpdateActivity(ctx, "s1", now.Add(2*time.Second)); err != nil {
		t.Fatalf("UpdateActivity: %v", err)
	}
	focused, ok = r.GetFocusedSession()
	if !ok || focused.ID != "s1" {
		t.Fatalf("expected focus to shift to s1 after its activity update, got %+v", focused)
	}

	if err := r.UnregisterSession(ctx, "s1"); err != nil {
		t.Fatalf("UnregisterSession: %v", err)
	}
	focused, ok = r.GetFocusedSession()
	if !ok || focused.ID != "s2" {
		t.Fatalf("expected focus to fall back to the remaining session s2, got %+v ok=%v", focused, ok)
	}
}

func TestFocusBecomesNullWhenLastSessionRemoved(t *testing.T) {
	r := New()
	defer r.Close()
	ctx := context.Background()

	r.RegisterSession(ctx, "s1", SessionMeta{})
	if err := r.UnregisterSession(ctx, "s1"); err != nil {
		t.Fatalf("UnregisterSession: %v", err)
	}
	if _, ok := r.GetFocusedSession(); ok {
		t.Fatal("expected no focused session once the registry is empty")
	}
}

func TestManualFocusOverridesAutomaticPolicy(t *testing.T) {
	r := New()
	defer r.Close()
	ctx := context.Background()

	r.RegisterSession(ctx, "s1", SessionMeta{})
	r.RegisterSession(ctx, "s2", SessionMeta{})
	if err := r.SetFocusedSession(ctx, "s1"); err != nil {
		t.Fatalf("SetFocusedSession: %v", err)
	}
	if err := r.UpdateActivity(ctx, "s2", time.Now()); err != nil {
		t.Fatalf("UpdateActivity: %v", err)
	}

	focused, ok := r.GetFocusedSession()
	if !ok || focused.ID != "s1" {
		t.Fatalf("expected manual focus on s1 to survive s2's activity, got %+v", focused)
	}
}

func TestLastActivityNeverRegresses(t *testing.T) {
	r := New()
	defer r.Close()
	ctx := context.Background()
	now := time.Now()

	r.RegisterSession(ctx, "s1", SessionMeta{CreatedAt: now})
	if err := r.UpdateActivity(ctx, "s1", now.Add(time.Minute)); err != nil {
		t.Fatalf("UpdateActivity: %v", err)
	}
	if err := r.UpdateActivity(ctx, "s1", now.Add(-time.Hour)); err != nil {
		t.Fatalf("UpdateActivity: %v", err)
	}

	s, _ := r.GetSession("s1")
	if !s.LastActivity.Equal(now.Add(time.Minute)) {
		t.Fatalf("expected last_activity to stay monotonic at +1m, got %v", s.LastActivity)
	}
}

func TestEstimateUpgradeNeverReverts(t *testing.T) {
	r := New()
	defer r.Close()
	ctx := context.Background()

	r.UpdateContext(ctx, "s1", session.ContextMetrics{UsedPercentage: 60, IsEstimate: false}, time.Now())
	r.UpdateContext(ctx, "s1", session.ContextMetrics{UsedPercentage: 70, IsEstimate: true}, time.Now())

	s, _ := r.GetSession("s1")
	if s.Context.IsEstimate {
		t.Fatal("expected the authoritative (is_estimate=false) value to survive a later estimate")
	}
	if s.Context.UsedPercentage != 60 {
		t.Fatalf("expected UsedPercentage to remain 60, got %v", s.Context.UsedPercentage)
	}
}

func TestSubscribeDeliversInitialSnapshotThenDeltas(t *testing.T) {
	r := New()
	defer r.Close()
	ctx := context.Background()

	r.RegisterSession(ctx, "s1", SessionMeta{})
	sub, initial := r.Subscribe()
	defer sub.Close()

	if len(initial.Sessions) != 1 || initial.Sessions[0].ID != "s1" {
		t.Fatalf("expected initial snapshot to contain s1, got %+v", initial)
	}

	r.RegisterSession(ctx, "s2", SessionMeta{})
	var sawUpsert bool
	for i := 0; i < 2 && !sawUpsert; i++ {
		select {
		case d := <-sub.Deltas():
			if up, ok := d.(SessionUpserted); ok && up.Session.ID == "s2" {
				sawUpsert = true
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for delta")
		}
	}
	if !sawUpsert {
		t.Fatal("expected a session_upserted delta for s2")
	}
}

func TestSweepRemovesStaleSessions(t *testing.T) {
	r := New()
	defer r.Close()
	ctx := context.Background()
	now := time.Now()

	r.RegisterSession(ctx, "s1", SessionMeta{CreatedAt: now.Add(-2 * time.Hour)})
	r.Sweep(ctx, time.Hour, now)

	if _, ok := r.GetSession("s1"); ok {
		t.Fatal("expected stale session to be swept")
	}
}

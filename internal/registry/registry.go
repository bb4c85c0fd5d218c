// Package registry implements the single-writer session registry and its
// subscriber fan-out primitive. Grounded on the command-queue/RWMutex
// idiom in goadesign-goa-ai's runtime/agent/hooks.Bus (publish-under-lock,
// invoke-outside-lock) and runtime/registry.Manager (background worker +
// atomic published state), generalized here into one serialized command
// queue so every mutation and its resulting delta are applied atomically
// from an observer's point of view. See SPEC_FULL.md §2, spec.md §4.1/§5.
package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/session"
	"github.com/gregory-lime/jacques-context-manager-sub007/internal/telemetry"
)

// ErrUnknownSession is returned when a mutation (other than UpdateContext)
// targets a session id the registry has never seen.
var ErrUnknownSession = errors.New("registry: unknown session id")

// Snapshot is an immutable, consistent view of the registry's state.
type Snapshot struct {
	Sessions  []session.Session
	FocusedID string
}

// SessionMeta is the subset of session fields a session_start event
// supplies.
type SessionMeta struct {
	Source             session.Source
	ProjectPath        string
	WorkingDirectory   string
	ProjectName        string
	TerminalKey        string
	Model              session.Model
	AutocompactEnabled bool
	TranscriptPath     string
	GitBranch          string
	Title              string
	CreatedAt          time.Time
}

const (
	subscriberQueueDepth = 64
	commandQueueDepth    = 256
)

// Registry is the single-writer, in-memory session store described by
// spec.md §4.1.
type Registry struct {
	log     telemetry.Logger
	metrics telemetry.Metrics

	cmds chan func()
	done chan struct{}
	wg   sync.WaitGroup

	// owned exclusively by the command-queue worker goroutine.
	sessions    map[string]session.Session
	focusedID   string
	manualFocus bool
	subs        map[uint64]*Subscription
	nextSubID   uint64

	snapshot atomic.Pointer[Snapshot]
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger installs a structured logger. Defaults to a no-op logger.
func WithLogger(l telemetry.Logger) Option { return func(r *Registry) { r.log = l } }

// WithMetrics installs a metrics recorder. Defaults to a no-op recorder.
func WithMetrics(m telemetry.Metrics) Option { return func(r *Registry) { r.metrics = m } }

// New starts a registry worker goroutine and returns the registry handle.
// Call Close to stop the worker.
func New(opts ...Option) *Registry {
	r := &Registry{
		log:      telemetry.NewNoopLogger(),
		metrics:  telemetry.NewNoopMetrics(),
		cmds:     make(chan func(), commandQueueDepth),
		done:     make(chan struct{}),
		sessions: make(map[string]session.Session),
		subs:     make(map[uint64]*Subscription),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.publishSnapshot()
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *Registry) run() {
	defer r.wg.Done()
	for {
		select {
		case cmd := <-r.cmds:
			cmd()
		case <-r.done:
			for len(r.cmds) > 0 {
				(<-r.cmds)()
			}
			return
		}
	}
}

// Close stops accepting new commands, drains the pending queue, and closes
// every subscriber — the cooperative shutdown sequence from spec.md §5.
func (r *Registry) Close() {
	close(r.done)
	r.wg.Wait()
	for _, sub := range r.subs {
		sub.Close()
	}
}

// exec serializes fn through the command queue and blocks until it runs,
// preserving the single-writer discipline while giving callers a
// synchronous-looking API.
func (r *Registry) exec(fn func()) {
	result := make(chan struct{})
	r.cmds <- func() {
		fn()
		close(result)
	}
	<-result
}

func (r *Registry) publishSnapshot() {
	sessions := make([]session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s.Clone())
	}
	r.snapshot.Store(&Snapshot{Sessions: sessions, FocusedID: r.focusedID})
}

func (r *Registry) publish(d Delta) {
	for _, sub := range r.subs {
		sub.deliver(d)
	}
}

// RegisterSession implements spec.md §4.1 registerSession. A subsequent
// call for an id auto-registered by UpdateContext merges missing metadata
// without regressing fields already set to a non-default value (P2).
func (r *Registry) RegisterSession(ctx context.Context, id string, meta SessionMeta) {
	r.exec(func() {
		existing, known := r.sessions[id]
		now := meta.CreatedAt
		if now.IsZero() {
			now = time.Now().UTC()
		}
		s := existing
		if !known {
			s = session.Session{
				ID:           id,
				Status:       session.StatusActive,
				CreatedAt:    now,
				LastActivity: now,
				BugThreshold: session.BugThreshold,
			}
		}
		if s.Source == "" {
			s.Source = meta.Source
		}
		if s.ProjectPath == "" {
			s.ProjectPath = meta.ProjectPath
		}
		if s.WorkingDirectory == "" {
			s.WorkingDirectory = meta.WorkingDirectory
		}
		if s.ProjectName == "" {
			s.ProjectName = meta.ProjectName
		}
		if s.TerminalKey == "" || s.TerminalKey == "UNKNOWN:" {
			s.TerminalKey = meta.TerminalKey
		}
		if s.Model.DisplayName == "" {
			s.Model = meta.Model
		}
		if s.TranscriptPath == "" {
			s.TranscriptPath = meta.TranscriptPath
		}
		if s.GitBranch == "" {
			s.GitBranch = meta.GitBranch
		}
		if s.Title == "" {
			s.Title = meta.Title
		}
		if !known {
			s.AutocompactEnabled = meta.AutocompactEnabled
			s.Status = session.StatusActive
		}
		r.sessions[id] = s
		r.shiftFocusTo(id)
		r.publishSnapshot()
		r.publish(SessionUpserted{Session: s.Clone()})
		r.log.Info(ctx, "session registered", "session_id", id, "known", known)
	})
}

// UnregisterSession implements spec.md §4.1 unregisterSession.
func (r *Registry) UnregisterSession(ctx context.Context, id string) error {
	var outErr error
	r.exec(func() {
		if _, ok := r.sessions[id]; !ok {
			outErr = ErrUnknownSession
			return
		}
		delete(r.sessions, id)
		if r.focusedID == id {
			r.manualFocus = false
			r.refocusToMostRecent()
		}
		r.publishSnapshot()
		r.publish(SessionRemoved{ID: id})
	})
	return outErr
}

// UpdateActivity implements spec.md §4.1 updateActivity: bumps
// LastActivity, transitions status to working, and shifts focus (I3,
// focus policy in spec.md §4.1).
func (r *Registry) UpdateActivity(ctx context.Context, id string, at time.Time) error {
	var outErr error
	r.exec(func() {
		s, ok := r.sessions[id]
		if !ok {
			outErr = ErrUnknownSession
			return
		}
		if at.IsZero() {
			at = time.Now().UTC()
		}
		if at.Before(s.LastActivity) {
			at = s.LastActivity // I3: last_activity is monotonically non-decreasing
		}
		s.LastActivity = at
		s.Status = session.StatusWorking
		r.sessions[id] = s
		r.shiftFocusTo(id)
		r.publishSnapshot()
		r.publish(SessionUpserted{Session: s.Clone()})
	})
	return outErr
}

// UpdateContext implements spec.md §4.1 updateContext, auto-registering an
// unknown id with minimal defaults (P2) so an early status-line event is
// never lost to hook-ordering races.
func (r *Registry) UpdateContext(ctx context.Context, id string, metrics session.ContextMetrics, at time.Time) {
	r.exec(func() {
		s, ok := r.sessions[id]
		now := at
		if now.IsZero() {
			now = time.Now().UTC()
		}
		if !ok {
			s = session.Session{
				ID:           id,
				Status:       session.StatusActive,
				TerminalKey:  "UNKNOWN:",
				CreatedAt:    now,
				LastActivity: now,
				BugThreshold: session.BugThreshold,
			}
		}
		if now.Before(s.LastActivity) {
			now = s.LastActivity
		}
		s.LastActivity = now
		next := metrics.Normalize()
		// Estimate upgrade rule: an is_estimate=false value replaces a
		// prior is_estimate=true value, never the reverse (spec.md §3).
		if s.Context != nil && s.Context.IsEstimate && !next.IsEstimate {
			s.Context = &next
		} else if s.Context != nil && !s.Context.IsEstimate && next.IsEstimate {
			// keep existing authoritative value
		} else {
			s.Context = &next
		}
		r.sessions[id] = s
		r.shiftFocusTo(id)
		r.publishSnapshot()
		r.publish(SessionUpserted{Session: s.Clone()})
		if !ok {
			r.log.Info(ctx, "session auto-registered via context_update", "session_id", id)
		}
	})
}

// SetAutocompact implements the toggle_autocompact client command from
// spec.md §4.3.
func (r *Registry) SetAutocompact(ctx context.Context, id string, enabled bool) error {
	var outErr error
	r.exec(func() {
		s, ok := r.sessions[id]
		if !ok {
			outErr = ErrUnknownSession
			return
		}
		s.AutocompactEnabled = enabled
		r.sessions[id] = s
		r.publishSnapshot()
		r.publish(SessionUpserted{Session: s.Clone()})
	})
	return outErr
}

// SetSessionIdle implements spec.md §4.1 setSessionIdle.
func (r *Registry) SetSessionIdle(ctx context.Context, id string) error {
	var outErr error
	r.exec(func() {
		s, ok := r.sessions[id]
		if !ok {
			outErr = ErrUnknownSession
			return
		}
		s.Status = session.StatusIdle
		r.sessions[id] = s
		r.publishSnapshot()
		r.publish(SessionUpserted{Session: s.Clone()})
	})
	return outErr
}

// SetFocusedSession implements spec.md §4.1 setFocusedSession. A manual
// focus change overrides the automatic policy until the focused session is
// removed.
func (r *Registry) SetFocusedSession(ctx context.Context, id string) error {
	var outErr error
	r.exec(func() {
		if id != "" {
			if _, ok := r.sessions[id]; !ok {
				outErr = ErrUnknownSession
				return
			}
		}
		r.focusedID = id
		r.manualFocus = id != ""
		r.publishSnapshot()
		r.publishFocus()
	})
	return outErr
}

// GetSession returns a copy of the session for id, or false if unknown.
func (r *Registry) GetSession(id string) (session.Session, bool) {
	snap := r.snapshot.Load()
	for _, s := range snap.Sessions {
		if s.ID == id {
			return s, true
		}
	}
	return session.Session{}, false
}

// ListSessions returns the current snapshot's sessions.
func (r *Registry) ListSessions() []session.Session {
	snap := r.snapshot.Load()
	out := make([]session.Session, len(snap.Sessions))
	copy(out, snap.Sessions)
	return out
}

// GetFocusedSession returns the focused session, if any.
func (r *Registry) GetFocusedSession() (session.Session, bool) {
	snap := r.snapshot.Load()
	if snap.FocusedID == "" {
		return session.Session{}, false
	}
	for _, s := range snap.Sessions {
		if s.ID == snap.FocusedID {
			return s, true
		}
	}
	return session.Session{}, false
}

// Subscribe registers a new subscriber and returns its bounded delta
// channel along with the initial consistent snapshot (O3: no delta
// committed before the snapshot is also delivered to this subscriber),
// because registration itself runs on the command queue.
func (r *Registry) Subscribe() (*Subscription, Snapshot) {
	var sub *Subscription
	var initial Snapshot
	r.exec(func() {
		r.nextSubID++
		sub = newSubscription(r.nextSubID, subscriberQueueDepth, func(id uint64) {
			r.cmds <- func() { delete(r.subs, id) }
		})
		r.subs[sub.id] = sub
		initial = *r.snapshot.Load()
	})
	return sub, initial
}

// Sweep removes sessions whose LastActivity is older than staleAfter,
// per spec.md §4.1's periodic stale-session sweep.
func (r *Registry) Sweep(ctx context.Context, staleAfter time.Duration, now time.Time) {
	r.exec(func() {
		var stale []string
		for id, s := range r.sessions {
			if now.Sub(s.LastActivity) > staleAfter {
				stale = append(stale, id)
			}
		}
		for _, id := range stale {
			delete(r.sessions, id)
			if r.focusedID == id {
				r.manualFocus = false
				r.refocusToMostRecent()
			}
			r.publish(SessionRemoved{ID: id})
			r.log.Info(ctx, "stale session swept", "session_id", id)
		}
		if len(stale) > 0 {
			r.publishSnapshot()
		}
	})
}

// shiftFocusTo implements the automatic focus policy: focus shifts to the
// mutated session unless a manual focus is in effect (spec.md §4.1).
func (r *Registry) shiftFocusTo(id string) {
	if r.manualFocus {
		return
	}
	if r.focusedID == id {
		return
	}
	r.focusedID = id
	r.publishFocus()
}

// refocusToMostRecent implements the post-removal focus policy: focus
// shifts to the remaining session with the greatest LastActivity, or null
// if none remains (P3).
func (r *Registry) refocusToMostRecent() {
	var best *session.Session
	for id := range r.sessions {
		s := r.sessions[id]
		if best == nil || s.LastActivity.After(best.LastActivity) {
			cp := s
			best = &cp
		}
	}
	if best == nil {
		r.focusedID = ""
	} else {
		r.focusedID = best.ID
	}
	r.publishFocus()
}

func (r *Registry) publishFocus() {
	var sPtr *session.Session
	if r.focusedID != "" {
		if s, ok := r.sessions[r.focusedID]; ok {
			cp := s.Clone()
			sPtr = &cp
		}
	}
	r.publish(FocusChanged{ID: r.focusedID, Session: sPtr})
}

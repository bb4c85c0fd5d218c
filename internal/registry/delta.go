package registry

import "github.com/gregory-lime/jacques-context-manager-sub007/internal/session"

// Delta is a single change-notification the registry emits to subscribers,
// per spec.md §4.1. It is a closed sum type: SessionUpserted,
// SessionRemoved, FocusChanged are the only implementations.
type Delta interface {
	isDelta()
}

// SessionUpserted reports that a session was created or mutated.
type SessionUpserted struct {
	Session session.Session
}

// SessionRemoved reports that a session was deleted.
type SessionRemoved struct {
	ID string
}

// FocusChanged reports a change of the focused session. Session is nil
// when focus became null.
type FocusChanged struct {
	ID      string
	Session *session.Session
}

func (SessionUpserted) isDelta() {}
func (SessionRemoved) isDelta()  {}
func (FocusChanged) isDelta()    {}

package fanout

import (
	"context"
	"testing"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/registry"
)

func TestHandleSelectSessionSetsFocus(t *testing.T) {
	reg := registry.New()
	defer reg.Close()
	ctx := context.Background()
	reg.RegisterSession(ctx, "s1", registry.SessionMeta{})
	reg.RegisterSession(ctx, "s2", registry.SessionMeta{})

	h := NewRegistryCommandHandler(reg, nil, nil)
	h.Handle(ctx, Command{Type: CommandSelectSession, SessionID: "s1"})

	focused, ok := reg.GetFocusedSession()
	if !ok || focused.ID != "s1" {
		t.Fatalf("expected s1 to be focused, got %+v", focused)
	}
}

func TestHandleToggleAutocompactDefaultsToEnabled(t *testing.T) {
	reg := registry.New()
	defer reg.Close()
	ctx := context.Background()
	reg.RegisterSession(ctx, "s1", registry.SessionMeta{AutocompactEnabled: false})

	h := NewRegistryCommandHandler(reg, nil, nil)
	h.Handle(ctx, Command{Type: CommandToggleAutocompact, SessionID: "s1"})

	s, _ := reg.GetSession("s1")
	if !s.AutocompactEnabled {
		t.Fatal("expected a nil Enabled field to default to true")
	}
}

func TestHandleFocusTerminalDroppedWithoutExternalCollaborator(t *testing.T) {
	reg := registry.New()
	defer reg.Close()
	ctx := context.Background()
	reg.RegisterSession(ctx, "s1", registry.SessionMeta{TerminalKey: "ITERM:1"})

	h := NewRegistryCommandHandler(reg, nil, nil)
	// Must not panic when no ExternalActions collaborator is wired.
	h.Handle(ctx, Command{Type: CommandFocusTerminal, SessionID: "s1"})
}

type fakeExternal struct {
	focusedKey string
	tiled      bool
	triggered  string
}

func (f *fakeExternal) FocusTerminal(ctx context.Context, terminalKey string) error {
	f.focusedKey = terminalKey
	return nil
}
func (f *fakeExternal) TileWindows(ctx context.Context) error { f.tiled = true; return nil }
func (f *fakeExternal) TriggerAction(ctx context.Context, sessionID, action string) error {
	f.triggered = sessionID + ":" + action
	return nil
}

func TestHandleFocusTerminalDelegatesToExternalActions(t *testing.T) {
	reg := registry.New()
	defer reg.Close()
	ctx := context.Background()
	reg.RegisterSession(ctx, "s1", registry.SessionMeta{TerminalKey: "ITERM:1"})

	ext := &fakeExternal{}
	h := NewRegistryCommandHandler(reg, ext, nil)
	h.Handle(ctx, Command{Type: CommandFocusTerminal, SessionID: "s1"})

	if ext.focusedKey != "ITERM:1" {
		t.Fatalf("expected FocusTerminal to receive the session's terminal key, got %q", ext.focusedKey)
	}
}

func TestHandleTriggerActionDelegatesWithSessionAndAction(t *testing.T) {
	reg := registry.New()
	defer reg.Close()
	ext := &fakeExternal{}
	h := NewRegistryCommandHandler(reg, ext, nil)
	h.Handle(context.Background(), Command{Type: CommandTriggerAction, SessionID: "s1", Action: "dismiss"})

	if ext.triggered != "s1:dismiss" {
		t.Fatalf("expected triggered action s1:dismiss, got %q", ext.triggered)
	}
}

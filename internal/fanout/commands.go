package fanout

import (
	"context"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/registry"
	"github.com/gregory-lime/jacques-context-manager-sub007/internal/telemetry"
)

// ExternalActions is the set of operations a command handler delegates to
// collaborators outside the core (terminal focus, window tiling, and
// tool-call triggers are explicitly out of scope per spec.md §1; this
// interface is the seam those external adapters implement).
type ExternalActions interface {
	FocusTerminal(ctx context.Context, terminalKey string) error
	TileWindows(ctx context.Context) error
	TriggerAction(ctx context.Context, sessionID, action string) error
}

// RegistryCommandHandler implements CommandHandler by applying
// select_session and toggle_autocompact directly to the registry, and
// delegating focus_terminal/tile_windows/trigger_action to an
// ExternalActions collaborator (nil-safe: commands are dropped with a log
// line if no collaborator is wired).
type RegistryCommandHandler struct {
	reg      *registry.Registry
	external ExternalActions
	log      telemetry.Logger
}

// NewRegistryCommandHandler constructs a handler. external may be nil.
func NewRegistryCommandHandler(reg *registry.Registry, external ExternalActions, log telemetry.Logger) *RegistryCommandHandler {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	return &RegistryCommandHandler{reg: reg, external: external, log: log}
}

// Handle implements CommandHandler.
func (h *RegistryCommandHandler) Handle(ctx context.Context, cmd Command) {
	switch cmd.Type {
	case CommandSelectSession:
		if err := h.reg.SetFocusedSession(ctx, cmd.SessionID); err != nil {
			h.log.Warn(ctx, "select_session on unknown session", "session_id", cmd.SessionID)
		}
	case CommandToggleAutocompact:
		enabled := cmd.Enabled == nil || *cmd.Enabled
		if err := h.reg.SetAutocompact(ctx, cmd.SessionID, enabled); err != nil {
			h.log.Warn(ctx, "toggle_autocompact on unknown session", "session_id", cmd.SessionID)
		}
	case CommandFocusTerminal:
		h.delegate(ctx, func() error {
			s, ok := h.reg.GetSession(cmd.SessionID)
			if !ok {
				return registry.ErrUnknownSession
			}
			return h.external.FocusTerminal(ctx, s.TerminalKey)
		})
	case CommandTileWindows:
		h.delegate(ctx, func() error { return h.external.TileWindows(ctx) })
	case CommandTriggerAction:
		h.delegate(ctx, func() error { return h.external.TriggerAction(ctx, cmd.SessionID, cmd.Action) })
	default:
		h.log.Warn(ctx, "fanout unknown command", "type", cmd.Type)
	}
}

func (h *RegistryCommandHandler) delegate(ctx context.Context, fn func() error) {
	if h.external == nil {
		h.log.Warn(ctx, "fanout command dropped, no external collaborator wired")
		return
	}
	if err := fn(); err != nil {
		h.log.Warn(ctx, "fanout external command failed", "error", err.Error())
	}
}

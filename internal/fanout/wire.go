package fanout

import "github.com/gregory-lime/jacques-context-manager-sub007/internal/session"

// Frame is the envelope for every server-to-client websocket message, per
// spec.md §4.3/§6.
type Frame struct {
	Type            string            `json:"type"`
	Sessions        []session.Session `json:"sessions,omitempty"`
	FocusedSessionID string           `json:"focused_session_id,omitempty"`
	Session         *session.Session  `json:"session,omitempty"`
	SessionID       string            `json:"session_id,omitempty"`
	ID              string            `json:"id,omitempty"`
}

const (
	frameInitialState   = "initial_state"
	frameSessionUpdate  = "session_update"
	frameSessionRemoved = "session_removed"
	frameFocusChanged   = "focus_changed"
)

// Command is a client-to-server message, per spec.md §4.3.
type Command struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Action    string `json:"action,omitempty"`
	Enabled   *bool  `json:"enabled,omitempty"`
}

const (
	CommandSelectSession     = "select_session"
	CommandTriggerAction     = "trigger_action"
	CommandToggleAutocompact = "toggle_autocompact"
	CommandFocusTerminal     = "focus_terminal"
	CommandTileWindows       = "tile_windows"
)

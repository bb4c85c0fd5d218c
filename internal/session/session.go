// Package session defines the Session and ContextMetrics value types
// tracked by the registry. See SPEC_FULL.md §2 (Session Registry) and
// spec.md §3 (Data Model).
package session

import "time"

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive  Status = "active"
	StatusWorking Status = "working"
	StatusIdle    Status = "idle"
)

// Source identifies the vendor CLI that produced a session.
type Source string

const (
	SourceClaudeCode Source = "claude_code"
	SourceCursor     Source = "cursor"
)

// Model describes the model a session is using.
type Model struct {
	DisplayName string `json:"display_name"`
	ID          string `json:"id"`
}

// ContextMetrics is the last-known context-window utilization for a
// session. See spec.md §3 for the invariants:
//   - 0 <= UsedPercentage <= 100
//   - UsedPercentage + RemainingPercentage == 100
//   - an IsEstimate=false value overrides a prior IsEstimate=true value,
//     never the reverse, within the same session.
type ContextMetrics struct {
	UsedPercentage         float64 `json:"used_percentage"`
	RemainingPercentage    float64 `json:"remaining_percentage"`
	ContextWindowSize      int     `json:"context_window_size"`
	TotalInputTokens       int     `json:"total_input_tokens"`
	TotalOutputTokens      int     `json:"total_output_tokens"`
	CacheCreationTokens    *int    `json:"cache_creation_input_tokens,omitempty"`
	CacheReadTokens        *int    `json:"cache_read_input_tokens,omitempty"`
	IsEstimate             bool    `json:"is_estimate"`
}

// Normalize clamps UsedPercentage into [0,100] and derives
// RemainingPercentage so the invariant in spec.md §3 always holds.
func (m ContextMetrics) Normalize() ContextMetrics {
	if m.UsedPercentage < 0 {
		m.UsedPercentage = 0
	}
	if m.UsedPercentage > 100 {
		m.UsedPercentage = 100
	}
	m.RemainingPercentage = 100 - m.UsedPercentage
	return m
}

// BugThreshold is the upstream auto-compact trigger percentage exposed
// for UIs per spec.md §9 Open Question (b). The server never acts on it.
const BugThreshold = 78.0

// Session is the registry's durable view of one vendor CLI conversation.
type Session struct {
	ID                string          `json:"id"`
	Source            Source          `json:"source"`
	ProjectPath        string          `json:"project_path"`
	WorkingDirectory   string          `json:"working_directory"`
	ProjectName        string          `json:"project_name"`
	TerminalKey        string          `json:"terminal_key"`
	Model              Model           `json:"model"`
	Status             Status          `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
	LastActivity       time.Time       `json:"last_activity"`
	AutocompactEnabled bool            `json:"autocompact_enabled"`
	BugThreshold       float64         `json:"bug_threshold"`
	Context            *ContextMetrics `json:"context,omitempty"`
	TranscriptPath     string          `json:"transcript_path,omitempty"`
	GitBranch          string          `json:"git_branch,omitempty"`
	Title              string          `json:"title,omitempty"`
}

// Clone returns a deep copy safe to hand to a reader without aliasing the
// registry's internal state.
func (s Session) Clone() Session {
	out := s
	if s.Context != nil {
		ctx := *s.Context
		if s.Context.CacheCreationTokens != nil {
			v := *s.Context.CacheCreationTokens
			ctx.CacheCreationTokens = &v
		}
		if s.Context.CacheReadTokens != nil {
			v := *s.Context.CacheReadTokens
			ctx.CacheReadTokens = &v
		}
		out.Context = &ctx
	}
	return out
}

// NormalizeSource collapses Claude Code's distinct status strings
// (clear, startup, resume) to the single claude_code source tag, per
// spec.md §4.2.
func NormalizeSource(raw string) Source {
	switch raw {
	case "clear", "startup", "resume", "claude_code":
		return SourceClaudeCode
	case "cursor":
		return SourceCursor
	default:
		return Source(raw)
	}
}

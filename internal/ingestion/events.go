package ingestion

import (
	"encoding/json"
	"time"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/session"
)

// rawEvent is the wire shape of one ingestion line, per spec.md §6.
type rawEvent struct {
	Event     string          `json:"event"`
	SessionID string          `json:"session_id"`
	Source    string          `json:"source"`
	Timestamp string          `json:"timestamp"`

	CWD           string            `json:"cwd"`
	Workspace     workspacePayload  `json:"workspace"`
	ModelPayload  modelPayload      `json:"model"`
	TerminalEnv   map[string]string `json:"terminal_env"`
	TranscriptPath string           `json:"transcript_path"`
	GitBranch      string           `json:"git_branch"`
	Title          string           `json:"title"`

	ContextWindow contextWindowPayload `json:"context_window"`
	IsEstimate    bool                 `json:"is_estimate"`
}

type workspacePayload struct {
	ProjectDir string `json:"project_dir"`
}

type modelPayload struct {
	DisplayName string `json:"display_name"`
	ID          string `json:"id"`
}

type contextWindowPayload struct {
	UsedPercentage          float64 `json:"used_percentage"`
	ContextWindowSize       int     `json:"context_window_size"`
	TotalInputTokens        int     `json:"total_input_tokens"`
	TotalOutputTokens       int     `json:"total_output_tokens"`
	CacheCreationInputTokens *int   `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     *int   `json:"cache_read_input_tokens,omitempty"`
}

func parseLine(line []byte) (rawEvent, error) {
	var ev rawEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return rawEvent{}, err
	}
	return ev, nil
}

func (e rawEvent) timestamp() time.Time {
	if e.Timestamp == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func (e rawEvent) contextMetrics() session.ContextMetrics {
	cw := e.ContextWindow
	return session.ContextMetrics{
		UsedPercentage:      cw.UsedPercentage,
		ContextWindowSize:   cw.ContextWindowSize,
		TotalInputTokens:    cw.TotalInputTokens,
		TotalOutputTokens:   cw.TotalOutputTokens,
		CacheCreationTokens: cw.CacheCreationInputTokens,
		CacheReadTokens:     cw.CacheReadInputTokens,
		IsEstimate:          e.IsEstimate,
	}
}

func (e rawEvent) projectPath() string {
	if e.Workspace.ProjectDir != "" {
		return e.Workspace.ProjectDir
	}
	return e.CWD
}

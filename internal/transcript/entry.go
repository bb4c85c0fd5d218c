package transcript

import "time"

// ParsedEntry is one normalized transcript record (spec.md §3). Every
// entry carries a UUID, parent UUID (empty at root), timestamp, owning
// session id, and a typed Payload.
type ParsedEntry struct {
	UUID      string
	ParentUUID string
	Timestamp time.Time
	SessionID string
	Payload   Payload
}

// TaskToolInfo links a Task tool call id to the subagent metadata later
// agent_progress entries reference by parentToolUseID (spec.md §3).
type TaskToolInfo struct {
	ToolUseID   string
	SubagentType string
	Description string
	Prompt      string
}

// WebSearchResult links a WebSearch tool call id to the {title,url} pairs
// extracted from its tool_result (spec.md §3).
type WebSearchResult struct {
	ToolUseID string
	URLs      []WebSearchResultEntry
}

// SubagentSummary is a supplemental parser output (SPEC_FULL.md §3) giving
// per-task-id bookkeeping the registry does not track, since Jacques's
// registry only tracks parent sessions (spec.md §3).
type SubagentSummary struct {
	TaskToolUseID    string
	AgentType        string
	AgentDescription string
	LastActivity     time.Time
	MessageCount     int
	ToolCallCount    int
}

// Stats is the statistics object returned alongside the entry sequence
// (spec.md §4.4).
type Stats struct {
	TotalInputTokens            int
	TotalOutputTokens           int
	TotalOutputTokensEstimated  int
	LastTurnInputTokens         int
	LastTurnCacheReadTokens     int
	CacheCreationInputTokens    int
	CacheReadInputTokens        int
	MessageCount                int
	ToolCallCount               int
}

// ContextWindowSize is the window totalInputTokens+cacheRead is compared
// against to report "context size" to the monitor (spec.md §4.4).
const ContextWindowSize = 200000

// Package transcript implements the two-pass streaming JSONL parser
// described in spec.md §4.4. Grounded on the tagged-union design in
// goadesign-goa-ai's runtime/agent/transcript.Ledger (Part interface with
// an unexported marker method) and the incremental-offset read discipline
// in mrf-agent-racer/backend/internal/monitor/jsonl.go.
package transcript

// Payload is the closed sum type a ParsedEntry carries. Concrete types:
// UserMessagePayload, AssistantMessagePayload, ToolCallPayload,
// ToolResultPayload, HookProgressPayload, AgentProgressPayload,
// BashProgressPayload, MCPProgressPayload, WebSearchPayload,
// TurnDurationPayload, SystemEventPayload, SummaryPayload, SkipPayload.
type Payload interface {
	isPayload()
}

// UserMessagePayload is a user-authored message.
type UserMessagePayload struct {
	Text          string
	IsLocalCommand bool
}

// ThinkingBlock is one assistant thinking segment.
type ThinkingBlock struct {
	Text      string
	Redacted  bool
}

// AssistantMessagePayload is an assistant-authored message.
type AssistantMessagePayload struct {
	Text      string
	Thinking  []ThinkingBlock
	Model     string
}

// ToolCallPayload is a tool_use content block.
type ToolCallPayload struct {
	ToolUseID string
	Name      string
	Input     map[string]any
	// AgentType/AgentDescription/Prompt are populated only for Task calls.
	AgentType        string
	AgentDescription string
	Prompt           string
}

// ToolResultPayload is a tool_result content block.
type ToolResultPayload struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// HookProgressPayload is a progress entry of sub-type "hook".
type HookProgressPayload struct {
	HookName string
	Data     map[string]any
}

// AgentProgressPayload is a progress entry of sub-type "agent", linked back
// to its spawning Task tool call (spec.md §4.4 pass 2).
type AgentProgressPayload struct {
	ParentToolUseID  string
	AgentType        string
	AgentDescription string
	Text             string
}

// BashProgressPayload is a progress entry of sub-type "bash" (streaming
// command output).
type BashProgressPayload struct {
	ParentToolUseID string
	Chunk           string
}

// MCPProgressPayload is a progress entry of sub-type "mcp".
type MCPProgressPayload struct {
	ParentToolUseID string
	ServerName      string
	Data            map[string]any
}

// WebSearchResultEntry is one {title,url} pair attached to a search_results_received entry.
type WebSearchResultEntry struct {
	Title string
	URL   string
}

// WebSearchPayload is a progress entry of sub-type "query-update" (Query
// set) or "search_results_received" (ResultCount and SearchURLs set).
// WebSearch tool_use and tool_result blocks themselves are categorized as
// ToolCallPayload and ToolResultPayload.
type WebSearchPayload struct {
	ParentToolUseID string
	Query           string
	ResultCount     int
	SearchURLs      []WebSearchResultEntry
}

// TurnDurationPayload is a system entry of sub-type "turn-duration".
type TurnDurationPayload struct {
	DurationMS int64
}

// SystemEventPayload is any other recognized system sub-type
// (stop-hook-summary, other).
type SystemEventPayload struct {
	SubType string
	Summary string
}

// SummaryPayload is a top-level "summary" entry.
type SummaryPayload struct {
	Text string
}

// SkipPayload marks an entry that carries no display/archive meaning:
// unknown tags, queue-operations without a nested message, and
// file-history-snapshot entries (spec.md §4.4).
type SkipPayload struct {
	Reason string
}

func (UserMessagePayload) isPayload()      {}
func (AssistantMessagePayload) isPayload() {}
func (ToolCallPayload) isPayload()         {}
func (ToolResultPayload) isPayload()       {}
func (HookProgressPayload) isPayload()     {}
func (AgentProgressPayload) isPayload()    {}
func (BashProgressPayload) isPayload()     {}
func (MCPProgressPayload) isPayload()      {}
func (WebSearchPayload) isPayload()        {}
func (TurnDurationPayload) isPayload()     {}
func (SystemEventPayload) isPayload()      {}
func (SummaryPayload) isPayload()          {}
func (SkipPayload) isPayload()             {}

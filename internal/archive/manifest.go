// Package archive implements the on-disk conversation archive: manifests,
// full conversations, plans, context files, and the unified per-project
// index, laid out per spec.md §4.7. Grounded on the per-key mutex
// protected map idiom in goadesign-goa-ai's runtime/registry.Manager
// (registries map[string]*registryEntry guarded by m.mu), generalized
// here to one write mutex per projectId.
package archive

import "time"

// Manifest is the compact (<=2KiB) metadata summary of an archived
// conversation (spec.md §3 ConversationManifest).
type Manifest struct {
	SessionID       string    `json:"sessionId"`
	ProjectID       string    `json:"projectId"`
	ProjectSlug     string    `json:"projectSlug"`
	ProjectPath     string    `json:"projectPath"`
	ArchivedAt      time.Time `json:"archivedAt"`
	AutoArchived    bool      `json:"autoArchived"`
	Title           string    `json:"title"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationMinutes float64   `json:"durationMinutes"`
	UserQuestions   []string  `json:"userQuestions,omitempty"`
	FilesModified   []string  `json:"filesModified,omitempty"`
	ToolsUsed       []string  `json:"toolsUsed,omitempty"`
	Technologies    []string  `json:"technologies,omitempty"`
	PlanIDs         []string  `json:"planIds,omitempty"`
	Subagents       []SubagentManifestRef `json:"subagents,omitempty"`
	MessageCount    int       `json:"messageCount"`
	ToolCallCount   int       `json:"toolCallCount"`
	ContextSnippets []string  `json:"contextSnippets,omitempty"`
	UserLabel       string    `json:"userLabel,omitempty"`
}

// Conversation is the full archived conversation payload stored alongside
// the manifest.
type Conversation struct {
	Manifest Manifest `json:"manifest"`
	Entries  []any    `json:"entries"`
}

// SubagentManifestRef is the manifest's compact pointer to one subagent
// this session spawned, carried from internal/transcript.SubagentSummary so
// the project index can link it (spec.md §3 "bidirectional references").
type SubagentManifestRef struct {
	ID        string `json:"id"`
	AgentType string `json:"agentType"`
}

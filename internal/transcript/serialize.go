package transcript

import "encoding/json"

// Serialize renders a ParsedEntry back into the raw JSONL shape it would
// have been categorized from. It exists to support the structural
// round-trip property in spec.md §8 (P4). The round trip is exact only for
// payloads whose fields all come from their own line: a WebSearchPayload
// is always written as a search_results_received entry, so its Query and
// SearchURLs are not recovered on re-categorization, and an
// AgentProgressPayload's AgentType/AgentDescription (resolved from the
// Task call table) are not written at all.
func Serialize(e ParsedEntry) ([]byte, error) {
	re := rawEntry{UUID: e.UUID, ParentUUID: e.ParentUUID, Timestamp: e.Timestamp.Format("2006-01-02T15:04:05.000Z")}

	switch p := e.Payload.(type) {
	case UserMessagePayload:
		re.Type = "user"
		re.Message = &rawMessage{Role: "user", Content: mustMarshal(p.Text)}
	case AssistantMessagePayload:
		re.Type = "assistant"
		blocks := []rawContentBlock{}
		for _, t := range p.Thinking {
			blocks = append(blocks, rawContentBlock{Type: "thinking", Thinking: t.Text, Redacted: t.Redacted})
		}
		if p.Text != "" {
			blocks = append(blocks, rawContentBlock{Type: "text", Text: p.Text})
		}
		re.Message = &rawMessage{Role: "assistant", Model: p.Model, Content: mustMarshal(blocks)}
	case ToolCallPayload:
		re.Type = "assistant"
		blocks := []rawContentBlock{{Type: "tool_use", ID: p.ToolUseID, Name: p.Name, Input: mustMarshal(p.Input)}}
		re.Message = &rawMessage{Role: "assistant", Content: mustMarshal(blocks)}
	case ToolResultPayload:
		re.Type = "user"
		blocks := []rawContentBlock{{Type: "tool_result", ToolUseID: p.ToolUseID, Content: mustMarshal(p.Content), IsError: p.IsError}}
		re.Message = &rawMessage{Role: "user", Content: mustMarshal(blocks)}
	case HookProgressPayload:
		re.Type = "progress"
		re.Data = &rawProgressData{Type: "hook", HookName: p.HookName}
	case AgentProgressPayload:
		re.Type = "progress"
		re.ParentToolUseID = p.ParentToolUseID
		re.Data = &rawProgressData{Type: "agent", Text: p.Text}
	case BashProgressPayload:
		re.Type = "progress"
		re.ParentToolUseID = p.ParentToolUseID
		re.Data = &rawProgressData{Type: "bash", Chunk: p.Chunk}
	case MCPProgressPayload:
		re.Type = "progress"
		re.ParentToolUseID = p.ParentToolUseID
		re.Data = &rawProgressData{Type: "mcp", ServerName: p.ServerName}
	case WebSearchPayload:
		re.Type = "progress"
		re.ParentToolUseID = p.ParentToolUseID
		re.Data = &rawProgressData{Type: "search_results_received", Query: p.Query, ResultCount: p.ResultCount}
	case TurnDurationPayload:
		re.Type = "system"
		re.DurationMS = p.DurationMS
		re.Data = &rawProgressData{Type: "turn-duration"}
	case SystemEventPayload:
		re.Type = "system"
		re.Summary = p.Summary
		re.Data = &rawProgressData{Type: p.SubType}
	case SummaryPayload:
		re.Type = "summary"
		re.Summary = p.Text
	case SkipPayload:
		re.Type = "file-history-snapshot"
	}

	return json.Marshal(re)
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}

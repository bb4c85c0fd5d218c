package transcript

import "encoding/json"

// rawEntry is the duck-typed shape of one line in the vendor's append-only
// JSONL transcript (spec.md §4.4, §9 "duck-typed JSONL variants → tagged
// variants"). Fields are a superset across every entry kind; unused ones
// are simply left zero for a given kind.
type rawEntry struct {
	Type            string          `json:"type"`
	UUID            string          `json:"uuid"`
	ParentUUID      string          `json:"parentUuid"`
	Timestamp       string          `json:"timestamp"`
	Message         *rawMessage     `json:"message"`
	ToolUseResult   *rawToolUseResult `json:"toolUseResult"`
	Data            *rawProgressData  `json:"data"`
	ParentToolUseID string          `json:"parentToolUseID"`
	Summary         string          `json:"summary"`
	DurationMS      int64           `json:"durationMs"`
}

type rawMessage struct {
	Role    string            `json:"role"`
	Model   string            `json:"model"`
	Content json.RawMessage   `json:"content"`
	Usage   *rawUsage         `json:"usage"`
}

type rawUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

// rawContentBlock covers text, thinking, tool_use, and tool_result blocks.
type rawContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	Redacted  bool            `json:"redacted"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

// rawToolUseResult carries WebSearch's {title,url} pairs (spec.md §4.4
// pass 1).
type rawToolUseResult struct {
	Results []rawSearchResultGroup `json:"results"`
}

type rawSearchResultGroup struct {
	Content []rawSearchHit `json:"content"`
}

type rawSearchHit struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// rawProgressData covers every progress/system sub-type.
type rawProgressData struct {
	Type           string          `json:"type"`
	HookName       string          `json:"hookName"`
	ServerName     string          `json:"serverName"`
	Query          string          `json:"query"`
	ResultCount    int             `json:"resultCount"`
	Chunk          string          `json:"chunk"`
	Text           string          `json:"text"`
}

func parseContentBlocks(raw json.RawMessage) []rawContentBlock {
	if len(raw) == 0 {
		return nil
	}
	var blocks []rawContentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		return blocks
	}
	// content may be a plain string for simple user messages.
	var text string
	if err := json.Unmarshal(raw, &text); err == nil && text != "" {
		return []rawContentBlock{{Type: "text", Text: text}}
	}
	return nil
}

func contentBlockText(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return s
	}
	blocks := parseContentBlocks(content)
	out := ""
	for _, b := range blocks {
		if b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

func decodeInput(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	return m
}

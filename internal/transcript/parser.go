package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/tokencount"
)

var localCommandPrefixes = []string{
	"<local-command", "<command-name", "<command-message", "<command-args", "<local-command-stdout",
}

// ParseResult is the output of Parse: the normalized entry sequence plus
// the statistics object (spec.md §4.4).
type ParseResult struct {
	Entries   []ParsedEntry
	Stats     Stats
	Subagents map[string]*SubagentSummary
}

// Parse reads path as an append-only JSONL transcript and runs the
// two-pass normalization algorithm from spec.md §4.4. A malformed line is
// discarded with a warning via logf (may be nil); a truncated trailing
// line is silently skipped. Parsing the same file twice yields identical
// output modulo wall-clock (re-runnable, per spec.md §4.4).
func Parse(path string, sessionID string, counter *tokencount.Counter, logf func(string, ...any)) (*ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transcript: open %s: %w", path, err)
	}
	defer f.Close()
	return ParseReader(f, sessionID, counter, logf)
}

// ParseReader runs Parse against an already-open reader, for callers
// parsing from an offset or an in-memory buffer.
func ParseReader(r io.Reader, sessionID string, counter *tokencount.Counter, logf func(string, ...any)) (*ParseResult, error) {
	if counter == nil {
		counter = tokencount.New()
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}

	lines, err := readCompleteLines(r)
	if err != nil {
		return nil, err
	}

	raws := make([]rawEntry, 0, len(lines))
	for i, line := range lines {
		var re rawEntry
		if err := json.Unmarshal(line, &re); err != nil {
			logf("transcript: malformed line %d discarded: %v", i, err)
			continue
		}
		raws = append(raws, re)
	}

	taskTable, searchTable := firstPass(raws)

	result := &ParseResult{Subagents: make(map[string]*SubagentSummary)}
	searchEntryIndex := make(map[string]int) // parentToolUseID -> index in result.Entries

	for _, re := range raws {
		base, payloads := secondPass(re, sessionID, taskTable, searchTable, counter, &result.Stats)
		for _, payload := range payloads {
			entry := base
			entry.Payload = payload
			if ws, isSearch := entry.Payload.(WebSearchPayload); isSearch && ws.ParentToolUseID != "" {
				searchEntryIndex[ws.ParentToolUseID] = len(result.Entries)
			}
			if ap, isAgent := entry.Payload.(AgentProgressPayload); isAgent {
				updateSubagentSummary(result.Subagents, ap, entry.Timestamp)
			}
			result.Entries = append(result.Entries, entry)
		}
	}

	// Splice search URLs into output entries after pass 2 (spec.md §4.4).
	for parentID, urls := range searchTable {
		if idx, ok := searchEntryIndex[parentID]; ok {
			if ws, isSearch := result.Entries[idx].Payload.(WebSearchPayload); isSearch {
				ws.SearchURLs = urls.URLs
				result.Entries[idx].Payload = ws
			}
		}
	}

	if result.Stats.TotalOutputTokensEstimated < result.Stats.TotalOutputTokens {
		result.Stats.TotalOutputTokensEstimated = result.Stats.TotalOutputTokens
	}

	return result, nil
}

// readCompleteLines reads r line-by-line, preserving only complete
// (newline-terminated) lines; an incomplete trailing line (writer crashed
// mid-append) is silently skipped, per spec.md §4.4.
func readCompleteLines(r io.Reader) ([][]byte, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var lines [][]byte
	for {
		line, err := reader.ReadBytes('\n')
		complete := err == nil
		if complete {
			if trimmed := strings.TrimRight(string(line), "\r\n"); trimmed != "" {
				lines = append(lines, []byte(trimmed))
			}
			continue
		}
		if err == io.EOF {
			// A non-empty line here has no trailing newline: the writer
			// crashed mid-append. Skip it silently (spec.md §4.4).
			break
		}
		return nil, err
	}
	return lines, nil
}

// firstPass builds the task-call table and web-search table (spec.md §4.4
// pass 1).
func firstPass(raws []rawEntry) (map[string]TaskToolInfo, map[string]WebSearchResult) {
	taskTable := make(map[string]TaskToolInfo)
	searchTable := make(map[string]WebSearchResult)

	// Task tool_use blocks fill taskTable; user entries carrying a
	// toolUseResult with search hits fill searchTable, keyed by the
	// tool_use_id of their tool_result blocks, for splicing URLs later.
	for _, re := range raws {
		if re.Message == nil {
			continue
		}
		if re.Message.Role == "assistant" {
			for _, b := range parseContentBlocks(re.Message.Content) {
				if b.Type == "tool_use" && b.Name == "Task" {
					input := decodeInput(b.Input)
					taskTable[b.ID] = TaskToolInfo{
						ToolUseID:    b.ID,
						SubagentType: stringField(input, "subagent_type"),
						Description:  stringField(input, "description"),
						Prompt:       stringField(input, "prompt"),
					}
				}
			}
		}
		if re.Message.Role == "user" && re.ToolUseResult != nil {
			var hits []rawSearchHit
			for _, group := range re.ToolUseResult.Results {
				hits = append(hits, group.Content...)
			}
			if len(hits) == 0 {
				continue
			}
			for _, b := range parseContentBlocks(re.Message.Content) {
				if b.Type == "tool_result" && b.ToolUseID != "" {
					entry := searchTable[b.ToolUseID]
					entry.ToolUseID = b.ToolUseID
					for _, h := range hits {
						entry.URLs = append(entry.URLs, WebSearchResultEntry{Title: h.Title, URL: h.URL})
					}
					searchTable[b.ToolUseID] = entry
				}
			}
		}
	}
	return taskTable, searchTable
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// secondPass categorizes one raw entry into the ParsedEntry template
// (UUID/ParentUUID/Timestamp/SessionID, Payload left zero) plus the list of
// Payloads it expands to, per spec.md §4.4 pass 2. Most entry kinds expand
// to exactly one payload; a user entry carrying both prose and tool_result
// blocks, or an assistant entry issuing parallel tool calls, expands to
// several (spec.md §3's ParsedEntry sum type is per-payload, not per-line).
func secondPass(re rawEntry, sessionID string, taskTable map[string]TaskToolInfo, searchTable map[string]WebSearchResult, counter interface {
	Count(string) int
}, stats *Stats) (ParsedEntry, []Payload) {
	base := ParsedEntry{
		UUID:       re.UUID,
		ParentUUID: re.ParentUUID,
		Timestamp:  parseTimestamp(re.Timestamp),
		SessionID:  sessionID,
	}

	var payloads []Payload
	switch re.Type {
	case "user":
		payloads = categorizeUser(re)
	case "assistant":
		payloads = categorizeAssistant(re, taskTable, counter, stats)
	case "progress":
		payloads = []Payload{categorizeProgress(re, taskTable, searchTable)}
	case "system":
		payloads = []Payload{categorizeSystem(re)}
	case "summary":
		payloads = []Payload{SummaryPayload{Text: re.Summary}}
	case "queue-operation":
		if re.Message == nil {
			payloads = []Payload{SkipPayload{Reason: "queue-operation without nested message"}}
		} else {
			payloads = categorizeUser(re)
		}
	case "file-history-snapshot":
		payloads = []Payload{SkipPayload{Reason: "file-history-snapshot"}}
	default:
		payloads = []Payload{SkipPayload{Reason: "unknown entry type: " + re.Type}}
	}

	stats.MessageCount++
	return base, payloads
}

// categorizeUser splits a user entry's content blocks into a
// ToolResultPayload per tool_result block plus a UserMessagePayload for any
// prose, so a tool result is never silently folded into (or dropped by) the
// message payload (spec.md §3 "tool result (with toolResultId)").
func categorizeUser(re rawEntry) []Payload {
	if re.Message == nil {
		return []Payload{SkipPayload{Reason: "user entry without message"}}
	}
	blocks := parseContentBlocks(re.Message.Content)
	text := contentBlockText(re.Message.Content)

	var payloads []Payload
	var toolResultCount int
	for _, b := range blocks {
		if b.Type != "tool_result" {
			continue
		}
		toolResultCount++
		payloads = append(payloads, ToolResultPayload{
			ToolUseID: b.ToolUseID,
			Content:   contentBlockText(b.Content),
			IsError:   b.IsError,
		})
	}

	if text != "" || toolResultCount == 0 {
		isLocal := false
		trimmed := strings.TrimSpace(text)
		for _, prefix := range localCommandPrefixes {
			if strings.HasPrefix(trimmed, prefix) {
				isLocal = true
				break
			}
		}
		payloads = append([]Payload{UserMessagePayload{Text: text, IsLocalCommand: isLocal}}, payloads...)
	}
	return payloads
}

// categorizeAssistant emits one ToolCallPayload per tool_use block (parallel
// tool calls are common) plus an AssistantMessagePayload when the entry also
// carries narrating text or thinking (spec.md §3/§4.4 — neither is dropped
// in favor of the other).
func categorizeAssistant(re rawEntry, taskTable map[string]TaskToolInfo, counter interface{ Count(string) int }, stats *Stats) []Payload {
	if re.Message == nil {
		return []Payload{SkipPayload{Reason: "assistant entry without message"}}
	}
	blocks := parseContentBlocks(re.Message.Content)
	var text strings.Builder
	var thinking []ThinkingBlock
	var toolCalls []Payload

	for _, b := range blocks {
		switch b.Type {
		case "text":
			text.WriteString(b.Text)
		case "thinking":
			thinking = append(thinking, ThinkingBlock{Text: b.Thinking, Redacted: b.Redacted})
		case "tool_use":
			input := decodeInput(b.Input)
			tc := ToolCallPayload{ToolUseID: b.ID, Name: b.Name, Input: input}
			if info, ok := taskTable[b.ID]; ok {
				tc.AgentType = info.SubagentType
				tc.AgentDescription = info.Description
				tc.Prompt = info.Prompt
			}
			toolCalls = append(toolCalls, tc)
			stats.ToolCallCount++
			stats.TotalOutputTokensEstimated += counter.Count(string(b.Input))
		}
	}

	if re.Message.Usage != nil {
		u := re.Message.Usage
		stats.TotalInputTokens += u.InputTokens
		stats.TotalOutputTokens += u.OutputTokens
		stats.LastTurnInputTokens = u.InputTokens
		stats.LastTurnCacheReadTokens = u.CacheReadInputTokens
		stats.CacheCreationInputTokens += u.CacheCreationInputTokens
		stats.CacheReadInputTokens += u.CacheReadInputTokens
	}
	stats.TotalOutputTokensEstimated += counter.Count(text.String())
	for _, t := range thinking {
		stats.TotalOutputTokensEstimated += counter.Count(t.Text)
	}

	if text.Len() == 0 && len(thinking) == 0 {
		if len(toolCalls) == 0 {
			return []Payload{AssistantMessagePayload{Model: re.Message.Model}}
		}
		return toolCalls
	}
	payloads := []Payload{AssistantMessagePayload{Text: text.String(), Thinking: thinking, Model: re.Message.Model}}
	return append(payloads, toolCalls...)
}

func categorizeProgress(re rawEntry, taskTable map[string]TaskToolInfo, searchTable map[string]WebSearchResult) Payload {
	if re.Data == nil {
		return SkipPayload{Reason: "progress entry without data"}
	}
	switch re.Data.Type {
	case "hook":
		return HookProgressPayload{HookName: re.Data.HookName}
	case "agent":
		info := taskTable[re.ParentToolUseID]
		return AgentProgressPayload{
			ParentToolUseID:  re.ParentToolUseID,
			AgentType:        info.SubagentType,
			AgentDescription: info.Description,
			Text:             re.Data.Text,
		}
	case "bash":
		return BashProgressPayload{ParentToolUseID: re.ParentToolUseID, Chunk: re.Data.Chunk}
	case "mcp":
		return MCPProgressPayload{ParentToolUseID: re.ParentToolUseID, ServerName: re.Data.ServerName}
	case "query-update":
		return WebSearchPayload{ParentToolUseID: re.ParentToolUseID, Query: re.Data.Query}
	case "search_results_received":
		ws := WebSearchPayload{ParentToolUseID: re.ParentToolUseID, ResultCount: re.Data.ResultCount}
		if res, ok := searchTable[re.ParentToolUseID]; ok {
			ws.SearchURLs = res.URLs
		}
		return ws
	default:
		return SkipPayload{Reason: "unrecognized progress sub-type: " + re.Data.Type}
	}
}

func categorizeSystem(re rawEntry) Payload {
	subType := ""
	if re.Data != nil {
		subType = re.Data.Type
	}
	switch subType {
	case "turn-duration":
		return TurnDurationPayload{DurationMS: re.DurationMS}
	case "stop-hook-summary":
		return SystemEventPayload{SubType: subType, Summary: re.Summary}
	default:
		return SystemEventPayload{SubType: "other", Summary: re.Summary}
	}
}

func updateSubagentSummary(subagents map[string]*SubagentSummary, ap AgentProgressPayload, at time.Time) {
	s, ok := subagents[ap.ParentToolUseID]
	if !ok {
		s = &SubagentSummary{TaskToolUseID: ap.ParentToolUseID, AgentType: ap.AgentType, AgentDescription: ap.AgentDescription}
		subagents[ap.ParentToolUseID] = s
	}
	s.MessageCount++
	if at.After(s.LastActivity) {
		s.LastActivity = at
	}
}

func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// LastTurnContextUsage returns the last-turn input+cache-read total
// compared against the 200,000-token window, as reported to the monitor
// (spec.md §4.4).
func LastTurnContextUsage(stats Stats) (used int, windowSize int, percentage float64) {
	used = stats.LastTurnInputTokens + stats.LastTurnCacheReadTokens
	windowSize = ContextWindowSize
	if windowSize == 0 {
		return used, windowSize, 0
	}
	percentage = math.Min(100, float64(used)/float64(windowSize)*100)
	return used, windowSize, percentage
}

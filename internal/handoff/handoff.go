// Package handoff produces the rule-based project-state summary written
// to <project>/.jacques/handoffs/ on demand (spec.md §4.9). Extraction is
// grounded on the transcript.Payload tagged union; the markdown rendering
// follows the teacher's plain string-builder composition idiom seen
// throughout goadesign-goa-ai/runtime/registry (e.g. Observability's
// structured-but-hand-assembled log lines).
package handoff

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/planextractor"
	"github.com/gregory-lime/jacques-context-manager-sub007/internal/transcript"
)

// Mode selects how many recent user messages are retained: Compact for
// the markdown file (N=5), Extended for the skill-context string (N=10)
// (spec.md §4.9). Assistant highlights are capped at 5 in both modes.
type Mode int

const (
	Compact Mode = iota
	Extended
)

// Document is the structured extraction result, before markdown
// rendering.
type Document struct {
	Title           string
	GeneratedAt     time.Time
	FilesModified   []string
	ToolsUsed       []string
	UserMessages    []string
	Highlights      []string
	Decisions       []string
	Blockers        []string
	Technologies    []string
	Plans           []planextractor.Candidate
	TokenEstimate   int
}

var decisionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwe(?:'ll| will) (?:use|go with|choose)\b`),
	regexp.MustCompile(`(?i)\blet'?s (?:use|go with)\b`),
	regexp.MustCompile(`(?i)\bdecided to\b`),
}

var blockerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bblocked (?:on|by)\b`),
	regexp.MustCompile(`(?i)\bwaiting (?:on|for)\b`),
	regexp.MustCompile(`(?i)\bcan'?t (?:proceed|continue) (?:until|without)\b`),
	regexp.MustCompile(`(?i)\bneed(?:s)? (?:access|approval|credentials) (?:to|for)\b`),
]

var technologyPatterns = map[string]*regexp.Regexp{
	"Go":         regexp.MustCompile(`(?i)\bgolang\b|\.go\b`),
	"PostgreSQL": regexp.MustCompile(`(?i)\bpostgres(?:ql)?\b`),
	"Redis":      regexp.MustCompile(`(?i)\bredis\b`),
	"Docker":     regexp.MustCompile(`(?i)\bdocker\b`),
	"Kubernetes": regexp.MustCompile(`(?i)\bkubernetes\b|\bk8s\b`),
	"gRPC":       regexp.MustCompile(`(?i)\bgrpc\b`),
	"WebSocket":  regexp.MustCompile(`(?i)\bwebsocket\b`),
	"React":      regexp.MustCompile(`(?i)\breact\b|\.tsx\b`),
}

// Extract walks entries and builds a Document for the given mode. title
// falls back to the first sentence of the first non-empty user message
// when no session title is known.
func Extract(entries []transcript.ParsedEntry, sessionTitle string, mode Mode) Document {
	doc := Document{GeneratedAt: time.Now()}

	userMsgLimit := 5
	highlightLimit := 5
	if mode == Extended {
		userMsgLimit = 10
	}

	var filesModified []string
	seenFiles := make(map[string]bool)
	toolCounts := make(map[string]bool)
	var combinedText strings.Builder

	for _, e := range entries {
		switch p := e.Payload.(type) {
		case transcript.UserMessagePayload:
			if p.IsLocalCommand || strings.TrimSpace(p.Text) == "" {
				continue
			}
			doc.UserMessages = append(doc.UserMessages, p.Text)
			combinedText.WriteString(p.Text)
			combinedText.WriteByte('\n')
			if decs := extractMatches(p.Text, decisionPatterns); len(decs) > 0 {
				doc.Decisions = append(doc.Decisions, decs...)
			}
			if bls := extractMatches(p.Text, blockerPatterns); len(bls) > 0 {
				doc.Blockers = append(doc.Blockers, bls...)
			}
			if plans := planextractor.Detect(p.Text); len(plans) > 0 {
				doc.Plans = append(doc.Plans, plans...)
			}
		case transcript.AssistantMessagePayload:
			if strings.TrimSpace(p.Text) != "" {
				doc.Highlights = append(doc.Highlights, firstSentence(p.Text))
				combinedText.WriteString(p.Text)
				combinedText.WriteByte('\n')
			}
			if bls := extractMatches(p.Text, blockerPatterns); len(bls) > 0 {
				doc.Blockers = append(doc.Blockers, bls...)
			}
		case transcript.ToolCallPayload:
			toolCounts[p.Name] = true
			if p.Name == "Write" || p.Name == "Edit" {
				if path, ok := p.Input["file_path"].(string); ok && !seenFiles[path] {
					seenFiles[path] = true
					filesModified = append(filesModified, path)
				}
			}
		}
	}

	doc.FilesModified = filesModified
	doc.ToolsUsed = sortedKeys(toolCounts)

	doc.Title = sessionTitle
	if doc.Title == "" {
		doc.Title = titleFromMessages(doc.UserMessages)
	}

	if len(doc.UserMessages) > userMsgLimit {
		doc.UserMessages = doc.UserMessages[len(doc.UserMessages)-userMsgLimit:]
	}
	if len(doc.Highlights) > highlightLimit {
		doc.Highlights = doc.Highlights[len(doc.Highlights)-highlightLimit:]
	}

	text := combinedText.String()
	for path := range seenFiles {
		text += " " + path
	}
	for name, pattern := range technologyPatterns {
		if pattern.MatchString(text) {
			doc.Technologies = append(doc.Technologies, name)
		}
	}
	sort.Strings(doc.Technologies)
	doc.Decisions = dedupStrings(doc.Decisions)
	doc.Blockers = dedupStrings(doc.Blockers)

	return doc
}

func extractMatches(text string, patterns []*regexp.Regexp) []string {
	var out []string
	for _, p := range patterns {
		if p.MatchString(text) {
			out = append(out, firstSentence(text))
			break
		}
	}
	return out
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".\n"); i > 0 {
		return strings.TrimSpace(text[:i+1])
	}
	if len(text) > 160 {
		return text[:160] + "…"
	}
	return text
}

func titleFromMessages(messages []string) string {
	if len(messages) == 0 {
		return "Untitled session"
	}
	return firstSentence(messages[0])
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Render composes doc into the ≈1,000-token markdown document stored at
// <project>/.jacques/handoffs/<iso-timestamp>-handoff.md (spec.md §4.9).
func Render(doc Document) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	fmt.Fprintf(&b, "_Generated %s_\n\n", doc.GeneratedAt.Format(time.RFC3339))

	if len(doc.FilesModified) > 0 {
		b.WriteString("## Files modified\n\n")
		for _, f := range doc.FilesModified {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
		b.WriteString("\n")
	}

	if len(doc.ToolsUsed) > 0 {
		fmt.Fprintf(&b, "## Tools used\n\n%s\n\n", strings.Join(doc.ToolsUsed, ", "))
	}

	if len(doc.UserMessages) > 0 {
		b.WriteString("## Recent requests\n\n")
		for _, m := range doc.UserMessages {
			fmt.Fprintf(&b, "- %s\n", firstSentence(m))
		}
		b.WriteString("\n")
	}

	if len(doc.Highlights) > 0 {
		b.WriteString("## Highlights\n\n")
		for _, h := range doc.Highlights {
			fmt.Fprintf(&b, "- %s\n", h)
		}
		b.WriteString("\n")
	}

	if len(doc.Decisions) > 0 {
		b.WriteString("## Decisions\n\n")
		for _, d := range doc.Decisions {
			fmt.Fprintf(&b, "- %s\n", d)
		}
		b.WriteString("\n")
	}

	if len(doc.Blockers) > 0 {
		b.WriteString("## Blockers\n\n")
		for _, blk := range doc.Blockers {
			fmt.Fprintf(&b, "- %s\n", blk)
		}
		b.WriteString("\n")
	}

	if len(doc.Technologies) > 0 {
		fmt.Fprintf(&b, "## Technologies\n\n%s\n\n", strings.Join(doc.Technologies, ", "))
	}

	if len(doc.Plans) > 0 {
		b.WriteString("## Embedded plans\n\n")
		for _, p := range doc.Plans {
			fmt.Fprintf(&b, "- %s\n", p.Title)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// EstimateTokens reports ⌈content.length / 4.5⌉, the cruder estimate
// spec.md §4.9 specifies for the handoff document specifically, distinct
// from the transcript parser's BPE-based estimate.
func EstimateTokens(content string) int {
	if content == "" {
		return 0
	}
	const divisor = 4.5
	n := float64(len(content)) / divisor
	est := int(n)
	if float64(est) < n {
		est++
	}
	return est
}

// FilenameFor returns the <iso-timestamp>-handoff.md filename for t.
func FilenameFor(t time.Time) string {
	return t.UTC().Format("2006-01-02T15-04-05Z") + "-handoff.md"
}

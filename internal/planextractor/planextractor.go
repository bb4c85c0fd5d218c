// Package planextractor detects, normalizes, deduplicates, and identifies
// embedded plans inside user messages (spec.md §4.6). Grounded on
// goadesign-goa-ai's runtime/registry.SearchClient keyword-matching idiom
// (search.go) for the candidate-acceptance structural checks, and on its
// containsString-style small helpers for set semantics.
package planextractor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/slugutil"
)

var triggerPhrases = []string{
	"implement the following plan",
	"here's the plan",
	"here is the plan",
	"execute this plan",
	"please implement this plan",
	"follow this plan",
}

var headingPattern = regexp.MustCompile(`(?m)^#{1,6}\s`)
var topHeadingPattern = regexp.MustCompile(`(?m)^#\s.*$`)
var listItemPattern = regexp.MustCompile(`(?m)^\s*(?:[-*+]\s|\d+[.)]\s)`)

const minBodyLength = 100
const similarityThreshold = 0.90

// Candidate is one accepted plan body extracted from a user message,
// before dedup.
type Candidate struct {
	Title string
	Body  string
}

// Detect scans a user message for a trigger phrase and returns the
// accepted candidate plans split from the remainder of the message.
// Order of checks is trigger → length → structure, per spec.md §4.6; a
// message without a trigger phrase yields no candidates, and the length
// and structure checks are applied to each split section, dropping only
// the sections that fail them.
func Detect(message string) []Candidate {
	lower := strings.ToLower(message)
	triggerIdx := -1
	triggerLen := 0
	for _, phrase := range triggerPhrases {
		if idx := strings.Index(lower, phrase); idx >= 0 {
			if triggerIdx == -1 || idx < triggerIdx {
				triggerIdx = idx
				triggerLen = len(phrase)
			}
		}
	}
	if triggerIdx == -1 {
		return nil
	}

	body := strings.TrimSpace(message[triggerIdx+triggerLen:])
	bodies := splitTopLevelHeadings(body)

	var out []Candidate
	for _, b := range bodies {
		if !accept(b) {
			continue
		}
		out = append(out, Candidate{Title: titleFor(b), Body: b})
	}
	return out
}

// accept applies the length and structure checks (spec.md §4.6).
func accept(body string) bool {
	if len(body) < minBodyLength {
		return false
	}
	if !headingPattern.MatchString(body) {
		return false
	}
	if !listItemPattern.MatchString(body) {
		return false
	}
	return true
}

// splitTopLevelHeadings splits body into one section per top-level `#`
// heading. If body contains no top-level heading, it is returned whole.
func splitTopLevelHeadings(body string) []string {
	locs := topHeadingPattern.FindAllStringIndex(body, -1)
	if len(locs) <= 1 {
		return []string{body}
	}
	out := make([]string, 0, len(locs))
	for i, loc := range locs {
		start := loc[0]
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out = append(out, strings.TrimSpace(body[start:end]))
	}
	return out
}

func titleFor(body string) string {
	loc := topHeadingPattern.FindStringIndex(body)
	if loc == nil {
		return slugutil.Slugify(firstLine(body))
	}
	line := body[loc[0]:loc[1]]
	return strings.TrimSpace(strings.TrimLeft(line, "# "))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var normalizeNonWord = regexp.MustCompile(`[^\w\s]`)
var normalizeSpace = regexp.MustCompile(`\s+`)

// Normalize lowercases, strips punctuation, and collapses whitespace for
// hash-based and similarity-based dedup.
func Normalize(body string) string {
	lowered := strings.ToLower(body)
	stripped := normalizeNonWord.ReplaceAllString(lowered, "")
	return strings.TrimSpace(normalizeSpace.ReplaceAllString(stripped, " "))
}

// ContentHash returns the hex SHA-256 of the normalized content.
func ContentHash(body string) string {
	sum := sha256.Sum256([]byte(Normalize(body)))
	return hex.EncodeToString(sum[:])
}

// wordSet returns the set of words of length >= 4 in normalized text, for
// Jaccard similarity.
func wordSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		if len(w) >= 4 {
			set[w] = struct{}{}
		}
	}
	return set
}

// JaccardSimilarity computes |A∩B| / |A∪B| over each body's >=4-char word
// set (already-normalized bodies are accepted directly, to avoid
// renormalizing a known plan's content on every comparison).
func JaccardSimilarity(normalizedA, normalizedB string) float64 {
	a := wordSet(normalizedA)
	b := wordSet(normalizedB)
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// KnownPlan is the minimal view of an already-archived plan needed for
// dedup comparisons.
type KnownPlan struct {
	ID               string
	NormalizedContent string
	ContentHash      string
}

// DedupResult reports whether a candidate duplicates an existing plan.
type DedupResult struct {
	Duplicate bool
	OfPlanID  string
}

// Dedup applies the hash check then the Jaccard-similarity check against
// known plans in the same project, in that order (spec.md §4.6 test
// ordering: ...hash → similarity).
func Dedup(candidate Candidate, known []KnownPlan) DedupResult {
	normalized := Normalize(candidate.Body)
	hash := ContentHash(candidate.Body)

	for _, k := range known {
		if k.ContentHash == hash {
			return DedupResult{Duplicate: true, OfPlanID: k.ID}
		}
	}

	best := 0.0
	bestID := ""
	for _, k := range known {
		sim := JaccardSimilarity(normalized, k.NormalizedContent)
		if sim > best {
			best = sim
			bestID = k.ID
		}
	}
	if best >= similarityThreshold {
		return DedupResult{Duplicate: true, OfPlanID: bestID}
	}
	return DedupResult{}
}

// DeriveID computes the stable plan identity: slug(basename without ext)
// + "-" + first 6 chars of the base64 encoding of the full original path
// (spec.md §4.6 Plan identity; I4).
func DeriveID(originalPath string) string {
	base := slugutil.Slugify(slugutil.BasenameWithoutExt(originalPath))
	encoded := base64.StdEncoding.EncodeToString([]byte(originalPath))
	suffix := encoded
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return base + "-" + suffix
}

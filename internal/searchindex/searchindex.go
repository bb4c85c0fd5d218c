// Package searchindex maintains the global inverted keyword index over
// archived conversation manifests (spec.md §4.8). It is a from-scratch
// keyword index rather than a vector/semantic one (no embeddings dep in
// the corpus), but its field-weighted scoring and keyword → postings
// shape are grounded on goadesign-goa-ai's runtime/registry SearchClient
// (search.go: ComputeKeywordRelevance, EnhanceResultsWithRelevance) and
// its staged-then-swapped update discipline on runtime/registry/cache.go's
// MemoryCache (copy-on-write entries map under a single mutex).
package searchindex

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Field identifies which part of a manifest a keyword was extracted from,
// each carrying its own weight (spec.md §4.8).
type Field string

const (
	FieldTitle    Field = "title"
	FieldQuestion Field = "question"
	FieldFilePath Field = "filepath"
	FieldTech     Field = "technology"
)

var fieldWeight = map[Field]float64{
	FieldTitle:    2.0,
	FieldQuestion: 1.5,
	FieldFilePath: 1.0,
	FieldTech:     0.8,
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "this": true, "that": true, "it": true,
	"as": true, "by": true, "from": true, "has": true, "have": true,
	"had": true, "not": true, "we": true, "you": true, "i": true,
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)
var purelyNumeric = regexp.MustCompile(`^[0-9]+$`)

// tokenize lowercases s, splits on non-word runs, and drops stop words,
// purely-numeric tokens, and tokens shorter than two characters.
func tokenize(s string) []string {
	lowered := strings.ToLower(s)
	raw := nonWord.Split(lowered, -1)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if len(t) < 2 {
			continue
		}
		if stopWords[t] {
			continue
		}
		if purelyNumeric.MatchString(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// posting is one manifest's contribution to a keyword's bucket. Score is
// the max field weight that produced this keyword for this manifest
// (max-score-wins per keyword per manifest, spec.md §4.8).
type posting struct {
	ManifestID string  `json:"manifestId"`
	Score      float64 `json:"score"`
	Field      Field   `json:"field"`
}

// ManifestFields is the subset of a Manifest the index extracts keywords
// from.
type ManifestFields struct {
	ManifestID    string
	ProjectID     string
	ProjectPath   string
	Title         string
	UserQuestions []string
	FilePaths     []string
	Technologies  []string
	Tools         []string
	LastActivity  time.Time
}

type entrySummary struct {
	ManifestID   string    `json:"manifestId"`
	ProjectID    string    `json:"projectId"`
	ProjectPath  string    `json:"projectPath"`
	Title        string    `json:"title"`
	LastActivity time.Time `json:"lastActivity"`
}

// Index is the in-memory inverted index, serialized whole to
// archive/index.json (spec.md §4.8). Mutation methods are not
// goroutine-safe on their own; callers (internal/archive.Store) serialize
// access with their own lock and swap in a Clone()d, mutated copy.
type Index struct {
	Keywords  map[string][]posting    `json:"keywords"`
	Summaries map[string]entrySummary `json:"summaries"`
}

// New returns an empty index.
func New() *Index {
	return &Index{
		Keywords:  make(map[string][]posting),
		Summaries: make(map[string]entrySummary),
	}
}

// Load decodes a previously marshaled index.
func Load(data []byte) (*Index, error) {
	idx := New()
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, err
	}
	if idx.Keywords == nil {
		idx.Keywords = make(map[string][]posting)
	}
	if idx.Summaries == nil {
		idx.Summaries = make(map[string]entrySummary)
	}
	return idx, nil
}

// Marshal renders the index as JSON.
func (idx *Index) Marshal() ([]byte, error) {
	return json.MarshalIndent(idx, "", "  ")
}

// Clone returns a deep-enough copy for staged mutation: callers build the
// next version from the clone and only swap it in once every step of the
// archive flow has succeeded (spec.md §4.7 step 4).
func (idx *Index) Clone() *Index {
	out := New()
	for k, v := range idx.Keywords {
		cp := make([]posting, len(v))
		copy(cp, v)
		out.Keywords[k] = cp
	}
	for k, v := range idx.Summaries {
		out.Summaries[k] = v
	}
	return out
}

// TotalConversations returns the number of distinct manifests indexed
// (invariant I6).
func (idx *Index) TotalConversations() int {
	return len(idx.Summaries)
}

// Subset returns a new Index containing only the manifests whose ProjectID
// matches projectID — the per-project local search index is a filtered
// view of the global one, not an independently maintained structure
// (spec.md §4.7 `<project-root>/.jacques/sessions/index.json`).
func (idx *Index) Subset(projectID string) *Index {
	out := New()
	for id, s := range idx.Summaries {
		if s.ProjectID == projectID {
			out.Summaries[id] = s
		}
	}
	for kw, postings := range idx.Keywords {
		var kept []posting
		for _, p := range postings {
			if _, ok := out.Summaries[p.ManifestID]; ok {
				kept = append(kept, p)
			}
		}
		if len(kept) > 0 {
			out.Keywords[kw] = kept
		}
	}
	return out
}

// TotalKeywords returns the number of distinct keyword buckets
// (invariant I7).
func (idx *Index) TotalKeywords() int {
	return len(idx.Keywords)
}

// Add extracts keywords from m and inserts postings into the index,
// keeping only the highest-weight field contribution per keyword per
// manifest. Add is idempotent only once combined with a preceding Remove
// for the same manifest id (the archive store always does Remove-then-Add).
func (idx *Index) Add(m ManifestFields) {
	idx.Summaries[m.ManifestID] = entrySummary{
		ManifestID:   m.ManifestID,
		ProjectID:    m.ProjectID,
		ProjectPath:  m.ProjectPath,
		Title:        m.Title,
		LastActivity: m.LastActivity,
	}

	best := make(map[string]posting)
	consider := func(field Field, text string) {
		weight := fieldWeight[field]
		for _, tok := range tokenize(text) {
			if existing, ok := best[tok]; !ok || weight > existing.Score {
				best[tok] = posting{ManifestID: m.ManifestID, Score: weight, Field: field}
			}
		}
	}

	consider(FieldTitle, m.Title)
	for _, q := range m.UserQuestions {
		consider(FieldQuestion, q)
	}
	for _, p := range m.FilePaths {
		consider(FieldFilePath, p)
	}
	for _, t := range m.Technologies {
		consider(FieldTech, t)
	}
	for _, t := range m.Tools {
		consider(FieldTech, t)
	}

	for kw, p := range best {
		idx.Keywords[kw] = append(idx.Keywords[kw], p)
	}
}

// Remove deletes every posting and the summary for manifestID, restoring
// the index to its pre-Add state for that manifest (used by the archive
// store's idempotent re-archive flow).
func (idx *Index) Remove(manifestID string) {
	delete(idx.Summaries, manifestID)
	for kw, postings := range idx.Keywords {
		filtered := postings[:0]
		for _, p := range postings {
			if p.ManifestID != manifestID {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) == 0 {
			delete(idx.Keywords, kw)
		} else {
			idx.Keywords[kw] = filtered
		}
	}
}

// Result is one scored search hit.
type Result struct {
	ManifestID   string
	ProjectID    string
	ProjectPath  string
	Title        string
	Score        float64
	LastActivity time.Time
}

// Search tokenizes query and returns manifests ranked by summed max-score
// contributions across matched keywords, descending, with LastActivity as
// the tie-breaker (spec.md §4.8).
func (idx *Index) Search(query string) []Result {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	scores := make(map[string]float64)
	for _, term := range terms {
		for _, p := range idx.Keywords[term] {
			scores[p.ManifestID] += p.Score
		}
	}

	results := make([]Result, 0, len(scores))
	for id, score := range scores {
		s, ok := idx.Summaries[id]
		if !ok {
			continue
		}
		results = append(results, Result{
			ManifestID:   id,
			ProjectID:    s.ProjectID,
			ProjectPath:  s.ProjectPath,
			Title:        s.Title,
			Score:        score,
			LastActivity: s.LastActivity,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].LastActivity.After(results[j].LastActivity)
	})
	return results
}

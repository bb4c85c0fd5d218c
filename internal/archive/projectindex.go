package archive

import "time"

const currentIndexVersion = 2

// ContextFileRef is one imported context file tracked by a project index.
type ContextFileRef struct {
	Path       string    `json:"path"`
	ImportedAt time.Time `json:"importedAt"`
}

// SessionRef is one archived session tracked by a project index, with
// bidirectional references to the plans and subagents it touched (spec.md
// §3 ProjectIndex).
type SessionRef struct {
	SessionID   string   `json:"sessionId"`
	Title       string   `json:"title"`
	ArchivedAt  time.Time `json:"archivedAt"`
	PlanIDs     []string `json:"planIds,omitempty"`
	SubagentIDs []string `json:"subagentIds,omitempty"`
}

// PlanRef is one plan tracked by a project index, with the sessions that
// reference it.
type PlanRef struct {
	PlanID   string   `json:"planId"`
	Title    string   `json:"title"`
	Filename string   `json:"filename"`
	Sessions []string `json:"sessions"`
}

// SubagentRef is one subagent artefact tracked by a project index.
type SubagentRef struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	AgentType string `json:"agentType"`
}

// ProjectIndex is the per-project `.jacques/index.json` unified index
// (spec.md §3, §4.7, GLOSSARY).
type ProjectIndex struct {
	Version  int               `json:"version"`
	Context  []ContextFileRef  `json:"context"`
	Sessions []SessionRef      `json:"sessions"`
	Plans    []PlanRef         `json:"plans"`
	Subagents []SubagentRef    `json:"subagents"`

	// Legacy is only populated when decoding a pre-unification index; it
	// is migrated into the fields above and never written back out.
	Legacy *legacyProjectIndex `json:"-"`
}

// legacyProjectIndex is the single-section `files` variant that must be
// migrated on load (spec.md §3, §9 Open Question (c)).
type legacyProjectIndex struct {
	Files []string `json:"files"`
}

// NewProjectIndex returns an empty, current-version index.
func NewProjectIndex() *ProjectIndex {
	return &ProjectIndex{Version: currentIndexVersion}
}

// MigrateLegacy converts a legacy `files[]` section into the unified
// shape. Migration is forward-only and lossless for known fields: each
// legacy file path becomes a context file reference (spec.md §9 (c)).
func (p *ProjectIndex) MigrateLegacy(legacy legacyProjectIndex) {
	for _, f := range legacy.Files {
		p.Context = append(p.Context, ContextFileRef{Path: f})
	}
	p.Version = currentIndexVersion
}

// UpsertSession inserts or replaces a session reference by id.
func (p *ProjectIndex) UpsertSession(ref SessionRef) {
	for i, s := range p.Sessions {
		if s.SessionID == ref.SessionID {
			p.Sessions[i] = ref
			return
		}
	}
	p.Sessions = append(p.Sessions, ref)
}

// LinkPlan appends sessionID to planID's Sessions set (set semantics, I5)
// and, if planID is new to this index, appends a new PlanRef for it with
// sessionID as its only session.
func (p *ProjectIndex) LinkPlan(planID, title, filename, sessionID string) {
	for i, pl := range p.Plans {
		if pl.PlanID == planID {
			if !containsString(pl.Sessions, sessionID) {
				p.Plans[i].Sessions = append(p.Plans[i].Sessions, sessionID)
			}
			return
		}
	}
	p.Plans = append(p.Plans, PlanRef{PlanID: planID, Title: title, Filename: filename, Sessions: []string{sessionID}})
}

// LinkSubagent inserts or replaces a subagent reference by id. Unlike plans,
// a subagent belongs to the single session that spawned it (spec.md §3
// SubagentRef has one SessionID, not a Sessions set).
func (p *ProjectIndex) LinkSubagent(id, sessionID, agentType string) {
	for i, sa := range p.Subagents {
		if sa.ID == id {
			p.Subagents[i] = SubagentRef{ID: id, SessionID: sessionID, AgentType: agentType}
			return
		}
	}
	p.Subagents = append(p.Subagents, SubagentRef{ID: id, SessionID: sessionID, AgentType: agentType})
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

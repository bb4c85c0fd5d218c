package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/searchindex"
	"github.com/gregory-lime/jacques-context-manager-sub007/internal/slugutil"
)

// Store implements the on-disk layout and archive flow from spec.md §4.7.
type Store struct {
	globalRoot string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex // keyed by projectId; spec.md §5 shared-resource policy

	index *searchindex.Index
	idxMu sync.Mutex
}

// NewStore opens (or initializes) a Store rooted at globalRoot.
func NewStore(globalRoot string) (*Store, error) {
	s := &Store{
		globalRoot: globalRoot,
		locks:      make(map[string]*sync.Mutex),
		index:      searchindex.New(),
	}
	if err := os.MkdirAll(filepath.Join(globalRoot, "archive", "manifests"), 0o755); err != nil {
		return nil, err
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) lockFor(projectID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[projectID] = l
	}
	return l
}

func (s *Store) globalIndexPath() string {
	return filepath.Join(s.globalRoot, "archive", "index.json")
}

func (s *Store) manifestPath(sessionID string) string {
	return filepath.Join(s.globalRoot, "archive", "manifests", sessionID+".json")
}

func (s *Store) globalConversationPath(m Manifest) string {
	dir := filepath.Join(s.globalRoot, "archive", "conversations", m.ProjectID)
	name := fmt.Sprintf("%s_%s_%s_%s.json",
		m.ArchivedAt.Format("2006-01-02"), m.ArchivedAt.Format("15-04"),
		slugutil.Slugify(m.Title), shortID(m.SessionID))
	return filepath.Join(dir, name)
}

func (s *Store) projectConversationPath(projectRoot string, m Manifest) string {
	name := filepath.Base(s.globalConversationPath(m))
	return filepath.Join(projectRoot, ".jacques", "sessions", name)
}

func (s *Store) projectIndexPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".jacques", "index.json")
}

func (s *Store) localSearchIndexPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".jacques", "sessions", "index.json")
}

func shortID(s string) string {
	if len(s) >= 4 {
		return s[:4]
	}
	return uuid.NewString()[:4]
}

func (s *Store) loadIndex() error {
	data, err := os.ReadFile(s.globalIndexPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	idx, err := searchindex.Load(data)
	if err != nil {
		return err
	}
	s.idxMu.Lock()
	s.index = idx
	s.idxMu.Unlock()
	return nil
}

// ArchiveConversation implements spec.md §4.7 archiveConversation: the
// four-step flow is idempotent under the same session id, and step 4's
// index update is computed in a staging structure and swapped in
// atomically so a failure never leaves the index inconsistent.
func (s *Store) ArchiveConversation(projectRoot string, m Manifest, conversation Conversation, skipPerProject bool, planLinker func(*ProjectIndex) error) error {
	lock := s.lockFor(m.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.manifestPath(m.SessionID)), 0o755); err != nil {
		return err
	}
	manifestData, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.manifestPath(m.SessionID), manifestData); err != nil {
		return err
	}

	convData, err := json.MarshalIndent(conversation, "", "  ")
	if err != nil {
		return err
	}
	globalConvPath := s.globalConversationPath(m)
	if err := os.MkdirAll(filepath.Dir(globalConvPath), 0o755); err != nil {
		return err
	}
	if err := writeFileAtomic(globalConvPath, convData); err != nil {
		return err
	}
	if !skipPerProject && projectRoot != "" {
		projConvPath := s.projectConversationPath(projectRoot, m)
		if err := os.MkdirAll(filepath.Dir(projConvPath), 0o755); err != nil {
			return err
		}
		if err := writeFileAtomic(projConvPath, convData); err != nil {
			return err
		}
	}

	if projectRoot != "" {
		idx, err := s.loadOrNewProjectIndex(projectRoot)
		if err != nil {
			return err
		}
		subagentIDs := make([]string, 0, len(m.Subagents))
		for _, sa := range m.Subagents {
			subagentIDs = append(subagentIDs, sa.ID)
		}
		idx.UpsertSession(SessionRef{SessionID: m.SessionID, Title: m.Title, ArchivedAt: m.ArchivedAt, PlanIDs: m.PlanIDs, SubagentIDs: subagentIDs})
		for _, sa := range m.Subagents {
			idx.LinkSubagent(sa.ID, m.SessionID, sa.AgentType)
		}
		if planLinker != nil {
			if err := planLinker(idx); err != nil {
				return err
			}
		}
		if err := s.saveProjectIndex(projectRoot, idx); err != nil {
			return err
		}
	}

	if err := s.updateIndexFor(m); err != nil {
		return err
	}

	if projectRoot != "" {
		return s.updateLocalSearchIndex(projectRoot, m.ProjectID)
	}
	return nil
}

// updateLocalSearchIndex writes the project-scoped subset of the global
// search index to <project-root>/.jacques/sessions/index.json (spec.md
// §4.7's "local search index (subset of global)").
func (s *Store) updateLocalSearchIndex(projectRoot, projectID string) error {
	s.idxMu.Lock()
	local := s.index.Subset(projectID)
	s.idxMu.Unlock()

	data, err := local.Marshal()
	if err != nil {
		return err
	}
	path := s.localSearchIndexPath(projectRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

func (s *Store) updateIndexFor(m Manifest) error {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	staged := s.index.Clone()
	staged.Remove(m.SessionID)
	staged.Add(searchindex.ManifestFields{
		ManifestID:    m.SessionID,
		ProjectID:     m.ProjectID,
		ProjectPath:   m.ProjectPath,
		Title:         m.Title,
		UserQuestions: m.UserQuestions,
		FilePaths:     m.FilesModified,
		Technologies:  m.Technologies,
		Tools:         m.ToolsUsed,
		LastActivity:  m.ArchivedAt,
	})
	if err := s.saveIndexAtomic(staged); err != nil {
		return err
	}
	s.index = staged
	return nil
}

func (s *Store) saveIndexAtomic(staged *searchindex.Index) error {
	data, err := staged.Marshal()
	if err != nil {
		return err
	}
	return writeFileAtomic(s.globalIndexPath(), data)
}

func (s *Store) loadOrNewProjectIndex(projectRoot string) (*ProjectIndex, error) {
	data, err := os.ReadFile(s.projectIndexPath(projectRoot))
	if os.IsNotExist(err) {
		return NewProjectIndex(), nil
	}
	if err != nil {
		return nil, err
	}
	return LoadProjectIndex(data)
}

func (s *Store) saveProjectIndex(projectRoot string, idx *ProjectIndex) error {
	data, err := idx.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.projectIndexPath(projectRoot)), 0o755); err != nil {
		return err
	}
	return writeFileAtomic(s.projectIndexPath(projectRoot), data)
}

// ResetIndex discards the in-memory search index, for callers (e.g.
// archive-compact) that rebuild it from scratch by re-adding every
// manifest on disk.
func (s *Store) ResetIndex() {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	s.index = searchindex.New()
}

// ReindexManifest adds m's keywords to the current in-memory index and
// persists it. Callers that want a from-scratch rebuild should call
// ResetIndex first, then ReindexManifest for every manifest on disk.
func (s *Store) ReindexManifest(m Manifest) error {
	return s.updateIndexFor(m)
}

// Search delegates to the loaded global search index.
func (s *Store) Search(query string) []searchindex.Result {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	return s.index.Search(query)
}

// writeFileAtomic writes data to a temp file in the same directory, then
// renames it into place, so a crash mid-write never leaves a truncated
// file at path (spec.md §9 "scoped file/socket handles").
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

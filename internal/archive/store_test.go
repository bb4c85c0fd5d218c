package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/searchindex"
)

func TestArchiveConversationIsIdempotent(t *testing.T) {
	globalRoot := t.TempDir()
	projectRoot := t.TempDir()

	store, err := NewStore(globalRoot)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	m := Manifest{
		SessionID:   "s1",
		ProjectID:   "-Users-dev-project",
		ProjectPath: "/Users/dev/project",
		Title:       "Fix websocket reconnect bug",
		ArchivedAt:  time.Now(),
	}
	conv := Conversation{Manifest: m, Entries: []any{"entry-1"}}

	if err := store.ArchiveConversation(projectRoot, m, conv, false, nil); err != nil {
		t.Fatalf("first archive: %v", err)
	}
	if err := store.ArchiveConversation(projectRoot, m, conv, false, nil); err != nil {
		t.Fatalf("re-archive: %v", err)
	}

	results := store.Search("websocket")
	if len(results) != 1 {
		t.Fatalf("expected exactly one indexed hit after re-archiving the same session, got %d", len(results))
	}

	if _, err := os.Stat(filepath.Join(globalRoot, "archive", "manifests", "s1.json")); err != nil {
		t.Fatalf("expected manifest file on disk: %v", err)
	}
	if _, err := store.loadOrNewProjectIndex(projectRoot); err != nil {
		t.Fatalf("project index should load: %v", err)
	}
}

func TestArchiveConversationWritesPerProjectCopyUnlessSkipped(t *testing.T) {
	globalRoot := t.TempDir()
	projectRoot := t.TempDir()
	store, err := NewStore(globalRoot)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	m := Manifest{SessionID: "s1", ProjectID: "-Users-dev-project", Title: "Archive flow check", ArchivedAt: time.Now()}
	conv := Conversation{Manifest: m}

	if err := store.ArchiveConversation(projectRoot, m, conv, true, nil); err != nil {
		t.Fatalf("archive with skipPerProject: %v", err)
	}

	sessionsDir := filepath.Join(projectRoot, ".jacques", "sessions")
	entries, err := os.ReadDir(sessionsDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no per-project conversation copy when skipped, found %d entries", len(entries))
	}
}

func TestArchiveConversationLinksSubagentsIntoProjectIndex(t *testing.T) {
	globalRoot := t.TempDir()
	projectRoot := t.TempDir()
	store, err := NewStore(globalRoot)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	m := Manifest{
		SessionID:   "s1",
		ProjectID:   "-Users-dev-project",
		ProjectPath: "/Users/dev/project",
		Title:       "Investigate flaky test",
		ArchivedAt:  time.Now(),
		Subagents: []SubagentManifestRef{
			{ID: "task-1", AgentType: "general-purpose"},
			{ID: "task-2", AgentType: "code-reviewer"},
		},
	}
	conv := Conversation{Manifest: m}

	if err := store.ArchiveConversation(projectRoot, m, conv, false, nil); err != nil {
		t.Fatalf("ArchiveConversation: %v", err)
	}

	idx, err := store.loadOrNewProjectIndex(projectRoot)
	if err != nil {
		t.Fatalf("loadOrNewProjectIndex: %v", err)
	}
	if len(idx.Subagents) != 2 {
		t.Fatalf("expected 2 linked subagents, got %+v", idx.Subagents)
	}
	if len(idx.Sessions) != 1 || len(idx.Sessions[0].SubagentIDs) != 2 {
		t.Fatalf("expected session ref to carry both subagent ids, got %+v", idx.Sessions)
	}
	found := map[string]string{}
	for _, sa := range idx.Subagents {
		found[sa.ID] = sa.AgentType
	}
	if found["task-1"] != "general-purpose" || found["task-2"] != "code-reviewer" {
		t.Fatalf("unexpected subagent refs: %+v", idx.Subagents)
	}
}

func TestArchiveConversationWritesLocalSearchIndexSubset(t *testing.T) {
	globalRoot := t.TempDir()
	projectRoot := t.TempDir()
	store, err := NewStore(globalRoot)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	mA := Manifest{SessionID: "a1", ProjectID: "proj-a", Title: "Add kubernetes probe", ArchivedAt: time.Now()}
	if err := store.ArchiveConversation(projectRoot, mA, Conversation{Manifest: mA}, false, nil); err != nil {
		t.Fatalf("archive a1: %v", err)
	}

	otherProjectRoot := t.TempDir()
	mB := Manifest{SessionID: "b1", ProjectID: "proj-b", Title: "Unrelated other project work", ArchivedAt: time.Now()}
	if err := store.ArchiveConversation(otherProjectRoot, mB, Conversation{Manifest: mB}, false, nil); err != nil {
		t.Fatalf("archive b1: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(projectRoot, ".jacques", "sessions", "index.json"))
	if err != nil {
		t.Fatalf("expected a local search index file: %v", err)
	}
	local, err := searchindex.Load(data)
	if err != nil {
		t.Fatalf("decode local index: %v", err)
	}
	if local.TotalConversations() != 1 {
		t.Fatalf("expected exactly 1 conversation in the local index, got %d", local.TotalConversations())
	}
	if len(local.Search("kubernetes")) != 1 {
		t.Fatal("expected the local index to find this project's own manifest")
	}
	if len(local.Search("unrelated")) != 0 {
		t.Fatal("expected the local index to exclude the other project's manifest")
	}
}

func TestReindexManifestReplacesPriorEntry(t *testing.T) {
	globalRoot := t.TempDir()
	store, err := NewStore(globalRoot)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	m := Manifest{SessionID: "s1", Title: "Original title", ArchivedAt: time.Now()}
	if err := store.ReindexManifest(m); err != nil {
		t.Fatalf("reindex: %v", err)
	}
	m.Title = "Renamed title entirely"
	if err := store.ReindexManifest(m); err != nil {
		t.Fatalf("reindex again: %v", err)
	}

	if results := store.Search("original"); len(results) != 0 {
		t.Fatalf("expected stale keyword from the old title to be gone, got %v", results)
	}
	if results := store.Search("renamed"); len(results) != 1 {
		t.Fatalf("expected the new title to be indexed, got %v", results)
	}
}

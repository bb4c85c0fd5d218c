package archive

import (
	"os"
	"testing"
	"time"
)

func TestLinkPlanCopiesOnFirstArchiveAndAppendsOnSecond(t *testing.T) {
	globalRoot := t.TempDir()
	projectRoot := t.TempDir()
	store, err := NewStore(globalRoot)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	idx := NewProjectIndex()
	plan := PlanContent{ID: "retry-abc123", Title: "Add retry logic", Body: "# Add retry logic\n\n- step one", ArchivedAt: time.Now()}

	if err := store.LinkPlan(idx, projectRoot, "-Users-dev-project", "session-1", plan); err != nil {
		t.Fatalf("first link: %v", err)
	}
	if len(idx.Plans) != 1 || len(idx.Plans[0].Sessions) != 1 {
		t.Fatalf("expected one plan with one session, got %+v", idx.Plans)
	}

	if err := store.LinkPlan(idx, projectRoot, "-Users-dev-project", "session-2", plan); err != nil {
		t.Fatalf("second link: %v", err)
	}
	if len(idx.Plans) != 1 {
		t.Fatalf("expected re-linking the same plan id not to create a second entry, got %d", len(idx.Plans))
	}
	if len(idx.Plans[0].Sessions) != 2 {
		t.Fatalf("expected both sessions recorded, got %v", idx.Plans[0].Sessions)
	}
}

func TestLinkPlanWritesGlobalAndProjectCopies(t *testing.T) {
	globalRoot := t.TempDir()
	projectRoot := t.TempDir()
	store, err := NewStore(globalRoot)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	idx := NewProjectIndex()
	plan := PlanContent{ID: "p1", Title: "Rework search scoring", Body: "# Rework search scoring\n\n- reweight tokens", ArchivedAt: time.Now()}

	if err := store.LinkPlan(idx, projectRoot, "-Users-dev-project", "session-1", plan); err != nil {
		t.Fatalf("link: %v", err)
	}

	globalPath := store.globalPlanPath("-Users-dev-project", plan)
	if _, err := os.Stat(globalPath); err != nil {
		t.Fatalf("expected global plan file: %v", err)
	}
}

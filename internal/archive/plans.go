package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/slugutil"
)

// PlanContent is the minimal input LinkPlan needs to persist a plan.
type PlanContent struct {
	ID         string
	Title      string
	Body       string
	ArchivedAt time.Time
}

func (s *Store) globalPlanPath(projectID string, p PlanContent) string {
	name := fmt.Sprintf("%s_%s.md", p.ArchivedAt.Format("2006-01-02"), slugutil.Slugify(p.Title))
	return filepath.Join(s.globalRoot, "archive", "plans", projectID, name)
}

// LinkPlan implements spec.md §4.6's bidirectional link-or-copy step: if
// planID is new to idx, the plan content is written to both the global
// and per-project plan stores and recorded with sessions=[sessionID]; if
// already known, sessionID is merely appended to its sessions set (set
// semantics, I5) without re-copying content.
func (s *Store) LinkPlan(idx *ProjectIndex, projectRoot, projectID, sessionID string, p PlanContent) error {
	for _, existing := range idx.Plans {
		if existing.PlanID == p.ID {
			idx.LinkPlan(p.ID, existing.Title, existing.Filename, sessionID)
			return nil
		}
	}

	globalPath := s.globalPlanPath(projectID, p)
	if err := os.MkdirAll(filepath.Dir(globalPath), 0o755); err != nil {
		return err
	}
	if err := writeFileAtomic(globalPath, []byte(p.Body)); err != nil {
		return err
	}

	if projectRoot != "" {
		projectPath := filepath.Join(projectRoot, ".jacques", "plans", filepath.Base(globalPath))
		if err := os.MkdirAll(filepath.Dir(projectPath), 0o755); err != nil {
			return err
		}
		if err := writeFileAtomic(projectPath, []byte(p.Body)); err != nil {
			return err
		}
	}

	idx.LinkPlan(p.ID, p.Title, filepath.Base(globalPath), sessionID)
	return nil
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/scanner"
)

func newScanOnceCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scan-once",
		Short: "Run a single active-session discovery pass and print the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(*configPath)
			sessions, err := scanner.ScanForActiveSessions(cfg.GlobalRoot, vendorTranscriptRoot, nil, time.Now())
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			for _, s := range sessions {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", s.SessionID, s.ProjectPath, s.GitBranch, s.Title)
			}
			return nil
		},
	}
}

// vendorTranscriptRoot maps a project working directory to the vendor
// CLI's per-project transcript directory under ~/.claude/projects
// (spec.md §4.5, §6 canonical project path encoding).
func vendorTranscriptRoot(cwd string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/tmp"
	}
	return filepath.Join(home, ".claude", "projects", scanner.EncodeProjectPath(cwd))
}

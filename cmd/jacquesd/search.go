package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/archive"
)

func newSearchCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Search the archived-conversation index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(*configPath)
			store, err := archive.NewStore(cfg.GlobalRoot)
			if err != nil {
				return fmt.Errorf("open archive store: %w", err)
			}
			query := strings.Join(args, " ")
			results := store.Search(query)
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no matches")
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%.2f\t%s\t%s\t%s\n", r.Score, r.ManifestID, r.ProjectPath, r.Title)
			}
			return nil
		},
	}
}

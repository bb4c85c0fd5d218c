// Command jacquesd runs the Jacques context-usage monitor daemon: it
// ingests hook events, serves the live session registry over websocket,
// and provides on-demand active-session discovery (scan-once) and archive
// search. The serve command runs no periodic session scan. Command structure follows goadesign-goa-ai/cmd/regolden's
// cobra.Command wiring.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "jacquesd",
		Short: "Jacques context-usage monitor daemon",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML configuration file")

	root.AddCommand(newServeCommand(&configPath))
	root.AddCommand(newScanOnceCommand(&configPath))
	root.AddCommand(newSearchCommand(&configPath))
	root.AddCommand(newArchiveCompactCommand(&configPath))
	return root
}

// Command practice plans, runs and syncs practice sessions against a remote
// document workspace, keeping a local cache for offline use.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/practicesync/internal/config"
)

var (
	cfgFile string
	noColor bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "practice",
	Short: "Plan, time and sync practice sessions",
	Long: `practice keeps a practice library, dated sessions and per-item logs in sync
between a remote workspace and a local SQLite cache.

Reads are served from the cache first and refreshed from the remote.
Edits stay local until saved.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initColor(noColor)

		loaded, err := config.Load(config.New(), cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "practice", Title: "Practice:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "account", Title: "Account:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", renderFail("Error:"), err)
		os.Exit(1)
	}
}

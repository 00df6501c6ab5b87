package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/practicesync/internal/model"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Refresh the library and sessions from the remote",
	Long: `Pull the library and the session list into the local cache.

Both collections are fetched concurrently. A collection that fails to load
keeps its cached copy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("%s Syncing...\n", renderAccent("↻"))
		start := time.Now()
		refreshErr := a.ctrl.Refresh(cmd.Context())

		lib, sessions := a.ctrl.Library(), a.ctrl.Sessions()
		fmt.Printf("   Library:  %s\n", describeLoad(lib.State, len(lib.Value), lib.Err))
		fmt.Printf("   Sessions: %s\n", describeLoad(sessions.State, len(sessions.Value), sessions.Err))

		if refreshErr != nil {
			return refreshErr
		}
		fmt.Printf("%s Sync complete in %v\n", renderPass("✓"), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func describeLoad(state model.LoadState, n int, err error) string {
	switch state {
	case model.StateLoaded:
		return fmt.Sprintf("%d rows", n)
	case model.StateFailed:
		return renderFail(err.Error())
	default:
		return renderMuted(state.String())
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

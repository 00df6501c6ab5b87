package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/practicesync/internal/credential"
	"github.com/mschirtzinger/practicesync/internal/daemon"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Keep the cache fresh in the background",
	Long: `Refresh the library and sessions on an interval and right after a login.

Example usage:
  practice daemon                       # refresh every daemon.refresh_interval
  practice daemon --interval 1m
  practice daemon --dashboard 7777      # also serve the live dashboard`,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		port, _ := cmd.Flags().GetInt("dashboard")
		if interval <= 0 {
			interval = cfg.Daemon.RefreshInterval
		}
		if port == 0 {
			port = cfg.Dashboard.Port
		}

		a, err := openApp(cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if port > 0 {
			stop, err := startDashboard(ctx, a, port)
			if err != nil {
				return err
			}
			defer stop()
		}

		watcher, err := credential.NewWatcher(cfg.Credential.File)
		if err != nil {
			return err
		}

		d, err := daemon.New(a.ctrl, watcher, &daemon.Config{
			RefreshInterval: interval,
			Logger:          a.logger("daemon"),
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Refreshing every %v. Press Ctrl+C to stop.\n", renderAccent("↻"), interval)
		if err := d.Start(ctx); err != nil {
			return err
		}
		st := d.Stats()
		fmt.Printf("%s Stopped after %d refresh(es), %d failed\n", renderPass("✓"), st.Refreshes, st.Failures)
		return nil
	},
}

func init() {
	daemonCmd.Flags().Duration("interval", 0, "refresh interval (default from config)")
	daemonCmd.Flags().Int("dashboard", 0, "serve a live dashboard on this port")
	rootCmd.AddCommand(daemonCmd)
}


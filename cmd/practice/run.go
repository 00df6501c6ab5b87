package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/practicesync/internal/dashboard"
	"github.com/mschirtzinger/practicesync/internal/model"
	"github.com/mschirtzinger/practicesync/internal/notify"
)

var runCmd = &cobra.Command{
	Use:     "run",
	GroupID: "practice",
	Short:   "Plan and practice a session interactively",
	Long: `Open an interactive prompt for one day's session.

Select items from the library, set planned times, save, then practice them
in order with a running clock. When an item runs past its planned time the
terminal bell rings once.

Type "help" at the prompt for the command list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dateStr, _ := cmd.Flags().GetString("date")
		port, _ := cmd.Flags().GetInt("dashboard")
		if port == 0 {
			port = cfg.Dashboard.Port
		}

		day, err := parseDate(dateStr, time.Now())
		if err != nil {
			return err
		}

		alerts := notify.Func(func(item model.SelectedItem) {
			fmt.Fprintf(os.Stdout, "\a\n%s %s is over its %d min\n> ",
				renderWarn("⏰ Time's up:"), item.Item.Name, item.PlannedMinutes)
		})

		a, err := openApp(cfg, alerts)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if port > 0 {
			stop, err := startDashboard(ctx, a, port)
			if err != nil {
				return err
			}
			defer stop()
		}

		if err := a.ctrl.Refresh(ctx); err != nil {
			fmt.Printf("%s %v\n", renderWarn("⚠"), err)
		}
		r := newREPL(a.ctrl, os.Stdout)
		if err := r.exec(ctx, "date "+model.DayKey(day)); err != nil {
			fmt.Printf("%s %v\n", renderWarn("⚠"), err)
		}
		return runLoop(ctx, r, os.Stdin, os.Stdout)
	},
}

// runLoop feeds lines from in to r until EOF or quit.
func runLoop(ctx context.Context, r *repl, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		err := r.exec(ctx, scanner.Text())
		switch {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			fmt.Fprintf(out, "%s %v\n", renderFail("✗"), err)
		}
	}
}

// startDashboard serves live state on 127.0.0.1:port until the returned
// stop function is called.
func startDashboard(ctx context.Context, a *app, port int) (func(), error) {
	server := dashboard.NewServer(&dashboard.Config{
		Addr: fmt.Sprintf("127.0.0.1:%d", port),
		Snapshot: func() any {
			return map[string]any{
				"catalog":   a.ctrl.Catalog(),
				"selection": a.ctrl.Selection(),
				"timer":     a.ctrl.Timer(),
			}
		},
		Logger: a.logger("dashboard"),
	})
	if err := server.Start(); err != nil {
		return nil, err
	}

	handler := dashboard.NewHandler(server, a.logger("dashboard"))
	hctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.Run(hctx, a.broker)
	}()

	fmt.Printf("%s Dashboard on http://%s (ws://%s/ws)\n", renderAccent("◉"), server.Addr(), server.Addr())
	return func() {
		cancel()
		<-done
		_ = server.Stop()
	}, nil
}

func init() {
	runCmd.Flags().StringP("date", "d", "", "day to open (default today)")
	runCmd.Flags().Int("dashboard", 0, "serve a live dashboard on this port")

	rootCmd.AddCommand(runCmd)
}

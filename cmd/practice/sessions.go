package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mschirtzinger/practicesync/internal/model"
	"github.com/mschirtzinger/practicesync/internal/reconcile"
	"github.com/mschirtzinger/practicesync/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	GroupID: "practice",
	Short:   "List practice sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		offline, _ := cmd.Flags().GetBool("offline")

		var sessions []model.PracticeSession
		if offline {
			a, err := openCache(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			sessions = a.store.LoadSessions(cmd.Context())
		} else {
			a, err := openApp(cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			slot := &reconcile.Slot[[]model.PracticeSession]{}
			if err := a.engine.PullSessions(cmd.Context(), slot); err != nil {
				return err
			}
			sessions = slot.Current().Value
		}

		if len(sessions) == 0 {
			fmt.Println(renderMuted("No sessions yet."))
			return nil
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(mutedStyle).
			Headers("DATE", "NAME", "GOAL")
		for _, s := range sessions {
			t.Row(s.DayKey(), s.Name, strconv.Itoa(s.GoalMinutes)+" min")
		}
		fmt.Println(t.String())
		return nil
	},
}

var sessionCmd = &cobra.Command{
	Use:     "session",
	GroupID: "practice",
	Short:   "Create or inspect a single session",
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a session for a date",
	Long: `Create a practice session on the remote and cache it.

Examples:
  practice session create
  practice session create --date "next friday" --goal 45
  practice session create --date 2026-03-05 --name "Recital prep"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dateStr, _ := cmd.Flags().GetString("date")
		name, _ := cmd.Flags().GetString("name")
		goal, _ := cmd.Flags().GetInt("goal")

		day, err := parseDate(dateStr, time.Now())
		if err != nil {
			return err
		}
		if name == "" {
			name = "Practice " + model.DayKey(day)
		}
		if goal <= 0 {
			goal = cfg.Practice.GoalMinutes
		}

		a, err := openApp(cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		created, err := a.engine.CreateSession(cmd.Context(), name, day, goal)
		if err != nil {
			return err
		}
		fmt.Printf("%s Created %q on %s (%s)\n", renderPass("✓"), created.Name, created.DayKey(), renderMuted(created.ID))
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [date]",
	Short: "Show the planned items of a session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var dateStr string
		if len(args) == 1 {
			dateStr = args[0]
		}
		day, err := parseDate(dateStr, time.Now())
		if err != nil {
			return err
		}

		a, err := openApp(cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if err := a.ctrl.Refresh(ctx); err != nil {
			a.logger("cli").Printf("refresh: %v", err)
		}
		if err := a.ctrl.SelectDate(ctx, day); err != nil {
			return err
		}

		s, ok := a.ctrl.CurrentSession()
		if !ok {
			fmt.Printf("No session on %s\n", model.DayKey(day))
			return nil
		}
		fmt.Println(renderHeader(fmt.Sprintf("%s  %s", s.DayKey(), s.Name)))
		printSelection(a.ctrl)
		return nil
	},
}

// printSelection lists the selection with its sync markers and totals.
func printSelection(ctrl *session.Controller) {
	items := ctrl.SelectedItems()
	if len(items) == 0 {
		fmt.Println(renderMuted("  (nothing selected)"))
	}
	cur, curIdx, practicing := ctrl.CurrentItem()
	for i, item := range items {
		marker := "  "
		if practicing && i == curIdx && item.ID == cur.ID {
			marker = renderAccent("▶ ")
		}
		fmt.Printf("%s%d. %s\n", marker, i+1, describeItem(item))
	}

	p := ctrl.Progress()
	fmt.Printf("  %s\n", renderMuted(fmt.Sprintf("planned %d / goal %d min, practiced %.1f min",
		p.PlannedMinutes, p.GoalMinutes, p.ActualMinutes)))
	if ids := ctrl.DeletedLogIDs(); len(ids) > 0 {
		fmt.Printf("  %s\n", renderWarn(fmt.Sprintf("%d removed item(s) pending save", len(ids))))
	}
}

func describeItem(item model.SelectedItem) string {
	s := fmt.Sprintf("%s  %d min", item.Item.Name, item.PlannedMinutes)
	if item.ActualMinutes != nil {
		s += fmt.Sprintf(" (done %.1f)", *item.ActualMinutes)
	}
	if item.Notes != nil && *item.Notes != "" {
		s += "  " + renderMuted("“"+*item.Notes+"”")
	}
	switch {
	case !item.IsPersisted():
		s += "  " + renderWarn("new")
	case item.IsDirty:
		s += "  " + renderWarn("modified")
	}
	return s
}

func init() {
	sessionsCmd.Flags().Bool("offline", false, "read the local cache only")

	sessionCreateCmd.Flags().StringP("date", "d", "", `session date: 2006-01-02 or a phrase like "next friday" (default today)`)
	sessionCreateCmd.Flags().StringP("name", "n", "", `session name (default "Practice <date>")`)
	sessionCreateCmd.Flags().IntP("goal", "g", 0, "goal in minutes (default from config)")

	sessionCmd.AddCommand(sessionCreateCmd, sessionShowCmd)
	rootCmd.AddCommand(sessionsCmd, sessionCmd)
}

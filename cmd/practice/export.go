package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mschirtzinger/practicesync/internal/model"
)

type exportDoc struct {
	ExportedAt time.Time       `yaml:"exported_at"`
	Sessions   []exportSession `yaml:"sessions"`
}

type exportSession struct {
	ID          string       `yaml:"id"`
	Name        string       `yaml:"name"`
	Date        string       `yaml:"date"`
	GoalMinutes int          `yaml:"goal_minutes"`
	Items       []exportItem `yaml:"items"`
}

type exportItem struct {
	Name           string   `yaml:"name"`
	ItemID         string   `yaml:"item_id"`
	PlannedMinutes int      `yaml:"planned_minutes"`
	ActualMinutes  *float64 `yaml:"actual_minutes,omitempty"`
	Notes          *string  `yaml:"notes,omitempty"`
}

// buildExport groups cached logs under their sessions. A non-empty day
// keeps only that day's sessions.
func buildExport(sessions []model.PracticeSession, logs []model.PracticeLog, day string, now time.Time) exportDoc {
	bySession := make(map[string][]model.PracticeLog)
	for _, l := range logs {
		bySession[l.SessionID] = append(bySession[l.SessionID], l)
	}

	doc := exportDoc{ExportedAt: now, Sessions: []exportSession{}}
	for _, s := range sessions {
		if day != "" && s.DayKey() != day {
			continue
		}
		entries := bySession[s.ID]
		slices.SortStableFunc(entries, func(a, b model.PracticeLog) int { return a.Order - b.Order })

		es := exportSession{
			ID:          s.ID,
			Name:        s.Name,
			Date:        s.DayKey(),
			GoalMinutes: s.GoalMinutes,
			Items:       make([]exportItem, 0, len(entries)),
		}
		for _, l := range entries {
			es.Items = append(es.Items, exportItem{
				Name:           l.Name,
				ItemID:         l.ItemID,
				PlannedMinutes: l.PlannedMinutes,
				ActualMinutes:  l.ActualMinutes,
				Notes:          l.Notes,
			})
		}
		doc.Sessions = append(doc.Sessions, es)
	}
	return doc
}

func writeExport(w io.Writer, doc exportDoc) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return enc.Close()
}

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "sync",
	Short:   "Export cached sessions and logs as YAML",
	Long: `Write cached sessions with their logged items as YAML.

Only data already in the local cache is exported; run 'practice sync' and
open sessions first to include their logs.

Examples:
  practice export > practice.yaml
  practice export --date yesterday --out yesterday.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dateStr, _ := cmd.Flags().GetString("date")
		outPath, _ := cmd.Flags().GetString("out")

		var day string
		if dateStr != "" {
			t, err := parseDate(dateStr, time.Now())
			if err != nil {
				return err
			}
			day = model.DayKey(t)
		}

		a, err := openCache(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		doc := buildExport(a.store.LoadSessions(ctx), a.store.LoadAllLogs(ctx), day, time.Now())

		var w io.Writer = os.Stdout
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		if err := writeExport(w, doc); err != nil {
			return err
		}
		if outPath != "" {
			fmt.Fprintf(os.Stderr, "%s Exported %d session(s) to %s\n", renderPass("✓"), len(doc.Sessions), outPath)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("date", "d", "", "export only this day")
	exportCmd.Flags().StringP("out", "o", "", "write to file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mschirtzinger/practicesync/internal/library"
	"github.com/mschirtzinger/practicesync/internal/model"
	"github.com/mschirtzinger/practicesync/internal/reconcile"
)

var libraryCmd = &cobra.Command{
	Use:     "library",
	GroupID: "practice",
	Short:   "List the practice library",
	Long: `List library items, filtered and sorted.

Examples:
  practice library --search scales
  practice library --type song --sort last_practiced --desc
  practice library --offline`,
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		typ, _ := cmd.Flags().GetString("type")
		sort, _ := cmd.Flags().GetString("sort")
		desc, _ := cmd.Flags().GetBool("desc")
		offline, _ := cmd.Flags().GetBool("offline")

		q := library.Query{
			Search:     search,
			Sort:       library.ParseSortKey(sort),
			Descending: desc,
		}
		if typ != "" {
			q.Type = model.ParseItemType(typ)
		}

		var items []model.LibraryItem
		if offline {
			a, err := openCache(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			items = a.store.LoadLibraryItems(cmd.Context())
		} else {
			a, err := openApp(cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			slot := &reconcile.Slot[[]model.LibraryItem]{}
			if err := a.engine.PullLibrary(cmd.Context(), slot); err != nil {
				return err
			}
			items = slot.Current().Value
		}

		matched := library.Apply(items, q)
		if len(matched) == 0 {
			fmt.Println(renderMuted("No matching items."))
			return nil
		}
		fmt.Println(libraryTable(matched))
		fmt.Println(renderMuted(fmt.Sprintf("%d of %d items", len(matched), len(items))))
		return nil
	},
}

func libraryTable(items []model.LibraryItem) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("#", "NAME", "TYPE", "ARTIST", "TAGS", "LAST", "TIMES")
	for i, item := range items {
		artist := ""
		if item.Artist != nil {
			artist = *item.Artist
		}
		last := "never"
		if item.LastPracticed != nil {
			last = model.DayKey(*item.LastPracticed)
		}
		t.Row(
			strconv.Itoa(i+1),
			item.Name,
			string(item.Type),
			artist,
			strings.Join(item.Tags, ", "),
			last,
			strconv.Itoa(item.TimesPracticed),
		)
	}
	return t.String()
}

func init() {
	libraryCmd.Flags().StringP("search", "s", "", "match name, artist or tags")
	libraryCmd.Flags().StringP("type", "t", "", "filter by type (song, exercise, course lesson)")
	libraryCmd.Flags().String("sort", "name", "sort by name, last_practiced, times_practiced or type")
	libraryCmd.Flags().Bool("desc", false, "sort descending")
	libraryCmd.Flags().Bool("offline", false, "read the local cache only")

	rootCmd.AddCommand(libraryCmd)
}

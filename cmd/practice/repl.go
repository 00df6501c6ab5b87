package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mschirtzinger/practicesync/internal/library"
	"github.com/mschirtzinger/practicesync/internal/model"
	"github.com/mschirtzinger/practicesync/internal/session"
)

const replHelp = `Commands:
  lib [search]        list library items (numbers are used by add)
  add <n> [min]       select library item n
  ls                  show the selection
  rm <n>              remove selected item n
  plan <n> <min>      set planned minutes of item n
  note <n> <text>     set notes of item n
  mv <from> <to>      move item
  clear               remove everything
  date <date>         switch day ("today", "yesterday", 2026-03-05)
  save                push changes
  sync                refresh library and sessions
  start               start practicing at the first item
  p                   pause or resume
  next                record the current item and move on
  done                record the current item and stop
  skip                move on without recording
  stop                stop without recording
  time                show the clock
  quit                leave (asks again when there are unsaved changes)`

// errQuit ends the loop.
var errQuit = errors.New("quit")

// repl interprets one command line at a time against a controller.
type repl struct {
	ctrl *session.Controller
	out  io.Writer
	now  func() time.Time

	lastLib    []model.LibraryItem
	warnedQuit bool
}

func newREPL(ctrl *session.Controller, out io.Writer) *repl {
	return &repl{ctrl: ctrl, out: out, now: time.Now}
}

func (r *repl) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// exec runs one line. errQuit means the user asked to leave.
func (r *repl) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	if cmd != "quit" && cmd != "exit" && cmd != "q" {
		r.warnedQuit = false
	}

	switch cmd {
	case "help", "?":
		r.printf("%s\n", replHelp)

	case "lib":
		r.lastLib = r.ctrl.QueryLibrary(library.Query{Search: strings.Join(args, " ")})
		for i, item := range r.lastLib {
			r.printf("%3d. %s %s\n", i+1, item.Name, renderMuted(string(item.Type)))
		}
		if len(r.lastLib) == 0 {
			r.printf("%s\n", renderMuted("no matches"))
		}

	case "add":
		n, err := r.index(args, 0, len(r.lastLib))
		if err != nil {
			return err
		}
		minutes := 0
		if len(args) > 1 {
			if minutes, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("minutes: %w", err)
			}
		}
		item := r.lastLib[n]
		for _, s := range r.ctrl.SelectedItems() {
			if s.Item.ID == item.ID {
				return fmt.Errorf("%s is already selected", item.Name)
			}
		}
		if minutes > 0 {
			err = r.ctrl.AddOrRemove(item, minutes)
		} else {
			err = r.ctrl.ToggleSelection(item)
		}
		if err != nil {
			return err
		}
		r.printf("added %s\n", item.Name)

	case "ls", "list":
		r.printSelection()

	case "rm":
		item, err := r.selected(args)
		if err != nil {
			return err
		}
		return r.ctrl.RemoveSelectedItem(item.ID)

	case "plan":
		item, err := r.selected(args)
		if err != nil {
			return err
		}
		if len(args) < 2 {
			return errors.New("usage: plan <n> <minutes>")
		}
		minutes, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("minutes: %w", err)
		}
		return r.ctrl.UpdatePlannedTime(item.ID, minutes)

	case "note":
		item, err := r.selected(args)
		if err != nil {
			return err
		}
		return r.ctrl.UpdateNotes(item.ID, strings.Join(args[1:], " "))

	case "mv":
		if len(args) != 2 {
			return errors.New("usage: mv <from> <to>")
		}
		n := len(r.ctrl.SelectedItems())
		from, err := r.index(args[:1], 0, n)
		if err != nil {
			return err
		}
		to, err := r.index(args[1:], 0, n)
		if err != nil {
			return err
		}
		return r.ctrl.MoveSelectedItem(from, to)

	case "clear":
		return r.ctrl.ClearSelection()

	case "date":
		day, err := parseDate(strings.Join(args, " "), r.now())
		if err != nil {
			return err
		}
		if err := r.ctrl.SelectDate(ctx, day); err != nil {
			return err
		}
		r.printSelection()

	case "save":
		if err := r.ctrl.Save(ctx); err != nil {
			return err
		}
		r.printf("%s saved\n", renderPass("✓"))

	case "sync":
		return r.ctrl.Refresh(ctx)

	case "start":
		if err := r.ctrl.StartPractice(); err != nil {
			return err
		}
		r.printClock()

	case "p", "pause", "resume":
		if err := r.ctrl.ToggleTimer(); err != nil {
			return err
		}
		r.printClock()

	case "next":
		if err := r.ctrl.FinishAndNextItem(ctx); err != nil {
			return err
		}
		r.printClock()

	case "done":
		return r.ctrl.FinishCurrentItem(ctx)

	case "skip":
		if err := r.ctrl.SkipToNextItem(); err != nil {
			return err
		}
		r.printClock()

	case "stop":
		r.ctrl.StopPractice()

	case "time", "t":
		r.printClock()

	case "quit", "exit", "q":
		if r.ctrl.HasUnsavedChanges() && !r.warnedQuit {
			r.warnedQuit = true
			return errors.New("unsaved changes; save first or quit again to discard")
		}
		return errQuit

	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

// index parses a 1-based position argument into a 0-based index below n.
func (r *repl) index(args []string, pos, n int) (int, error) {
	if len(args) <= pos {
		return 0, errors.New("missing item number")
	}
	i, err := strconv.Atoi(args[pos])
	if err != nil || i < 1 || i > n {
		return 0, fmt.Errorf("no item %s", args[pos])
	}
	return i - 1, nil
}

func (r *repl) selected(args []string) (model.SelectedItem, error) {
	items := r.ctrl.SelectedItems()
	i, err := r.index(args, 0, len(items))
	if err != nil {
		return model.SelectedItem{}, err
	}
	return items[i], nil
}

func (r *repl) printSelection() {
	st := r.ctrl.Selection()
	header := st.Date
	if s, ok := r.ctrl.CurrentSession(); ok {
		header += "  " + s.Name
	} else {
		header += "  " + renderMuted("(no session yet)")
	}
	r.printf("%s\n", renderHeader(header))
	for i, item := range st.Items {
		marker := "  "
		if i == st.Index {
			marker = renderAccent("▶ ")
		}
		r.printf("%s%d. %s\n", marker, i+1, describeItem(item))
	}
	if len(st.Items) == 0 {
		r.printf("%s\n", renderMuted("  (nothing selected)"))
	}
	if len(st.Deleted) > 0 {
		r.printf("  %s\n", renderWarn(fmt.Sprintf("%d removed item(s) pending save", len(st.Deleted))))
	}
}

func (r *repl) printClock() {
	ts := r.ctrl.Timer()
	if ts.Index < 0 {
		r.printf("%s\n", renderMuted("not practicing"))
		return
	}
	state := "running"
	if !ts.Running {
		state = "paused"
	}
	line := fmt.Sprintf("%s  elapsed %s  remaining %s", ts.ItemName, ts.Elapsed, ts.Remaining)
	if ts.IsOvertime() {
		line += "  " + renderWarn("overtime "+ts.Overtime)
	}
	r.printf("%s %s %s\n", renderAccent("⏱"), line, renderMuted(state))
}

// Package notify delivers overtime alerts and fans state-slice changes out
// to subscribers.
package notify

import (
	"log"
	"os"

	"github.com/mschirtzinger/practicesync/internal/model"
)

// Notifier receives "deliver overtime alert for item X". Delivery is fire
// and forget.
type Notifier interface {
	Overtime(item model.SelectedItem)
}

// Func adapts a function to Notifier.
type Func func(item model.SelectedItem)

// Overtime implements Notifier.
func (f Func) Overtime(item model.SelectedItem) {
	if f != nil {
		f(item)
	}
}

// LogNotifier writes alerts to a logger.
type LogNotifier struct {
	Logger *log.Logger
}

// Overtime implements Notifier.
func (n LogNotifier) Overtime(item model.SelectedItem) {
	logger := n.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[notify] ", log.LstdFlags)
	}
	logger.Printf("time's up: %s (planned %d min)", item.Item.Name, item.PlannedMinutes)
}

// Multi delivers to every notifier in order.
type Multi []Notifier

// Overtime implements Notifier.
func (m Multi) Overtime(item model.SelectedItem) {
	for _, n := range m {
		if n != nil {
			n.Overtime(item)
		}
	}
}

// Discard drops every alert.
var Discard Notifier = Func(nil)

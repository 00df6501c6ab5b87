package session

import "errors"

// Errors returned by Controller actions. None of them is fatal; each leaves
// the controller in a consistent state that the user can act on.
var (
	// ErrEmptySelection is returned when practice is started with nothing selected.
	ErrEmptySelection = errors.New("no items selected")

	// ErrBusy is returned for edits attempted while a save, a session load
	// or a practice write is in flight.
	ErrBusy = errors.New("remote work on the selection is in progress")

	// ErrNoSession is returned when an action needs a current session.
	ErrNoSession = errors.New("no practice session for the selected date")

	// ErrItemNotFound is returned when a selection id or position does not exist.
	ErrItemNotFound = errors.New("selected item not found")

	// ErrInvalidMinutes is returned for non-positive planned times.
	ErrInvalidMinutes = errors.New("planned minutes must be positive")

	// ErrItemInPractice is returned when removing the item being practiced.
	ErrItemInPractice = errors.New("item is currently being practiced")

	// ErrNotPracticing is returned by practice actions outside a practice run.
	ErrNotPracticing = errors.New("not practicing")
)

package cache

import "fmt"

// Error describes a failed cache operation. The fail-soft API logs these
// rather than returning them.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

package model

// LoadState is the phase of a Loading value.
type LoadState int

const (
	StateIdle LoadState = iota
	StateLoading
	StateLoaded
	StateFailed
)

// String returns a human-readable representation of the state.
func (s LoadState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "error"
	default:
		return "unknown"
	}
}

// Loading wraps a value that is fetched asynchronously:
// idle | loading | loaded(Value) | error(Err).
type Loading[T any] struct {
	State LoadState
	Value T
	Err   error
}

// Idle returns the initial state.
func Idle[T any]() Loading[T] {
	return Loading[T]{State: StateIdle}
}

// InProgress returns the loading state.
func InProgress[T any]() Loading[T] {
	return Loading[T]{State: StateLoading}
}

// Loaded returns a loaded state holding v.
func Loaded[T any](v T) Loading[T] {
	return Loading[T]{State: StateLoaded, Value: v}
}

// Failed returns an error state.
func Failed[T any](err error) Loading[T] {
	return Loading[T]{State: StateFailed, Err: err}
}

// IsLoaded reports whether a value is available.
func (l Loading[T]) IsLoaded() bool {
	return l.State == StateLoaded
}

// IDSet is an insertion-ordered set of ids. It holds log ids pending remote
// archival.
type IDSet struct {
	order []string
	index map[string]struct{}
}

// NewIDSet creates an empty set.
func NewIDSet() *IDSet {
	return &IDSet{index: make(map[string]struct{})}
}

// Add inserts id; duplicates and empty ids are ignored.
func (s *IDSet) Add(id string) {
	if id == "" {
		return
	}
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[id]; ok {
		return
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
}

// Remove deletes id from the set.
func (s *IDSet) Remove(id string) {
	if _, ok := s.index[id]; !ok {
		return
	}
	delete(s.index, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Contains reports whether id is in the set.
func (s *IDSet) Contains(id string) bool {
	_, ok := s.index[id]
	return ok
}

// IDs returns a copy of the ids in insertion order.
func (s *IDSet) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of ids.
func (s *IDSet) Len() int {
	return len(s.order)
}

// Clear empties the set.
func (s *IDSet) Clear() {
	s.order = nil
	s.index = make(map[string]struct{})
}

// Clone returns an independent copy.
func (s *IDSet) Clone() *IDSet {
	c := NewIDSet()
	for _, id := range s.order {
		c.Add(id)
	}
	return c
}

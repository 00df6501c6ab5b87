// Package library provides the filtered and sorted view of the practice
// library used by browsing UIs.
//
// Results are memoized on (search, type, sort, direction, library version).
// Replacing the library bumps the version, which invalidates every entry.
package library

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mschirtzinger/practicesync/internal/model"
)

// SortKey selects the ordering of a query.
type SortKey string

const (
	SortName           SortKey = "name"
	SortLastPracticed  SortKey = "last_practiced"
	SortTimesPracticed SortKey = "times_practiced"
	SortType           SortKey = "type"
)

// ParseSortKey maps user input to a SortKey, defaulting to SortName.
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortLastPracticed, "last", "recent":
		return SortLastPracticed
	case SortTimesPracticed, "times", "count":
		return SortTimesPracticed
	case SortType:
		return SortType
	default:
		return SortName
	}
}

// Query describes one library view.
type Query struct {
	Search     string
	Type       model.ItemType // empty matches every type
	Sort       SortKey
	Descending bool
}

func (q Query) normalized() Query {
	q.Search = strings.ToLower(strings.TrimSpace(q.Search))
	if q.Sort == "" {
		q.Sort = SortName
	}
	return q
}

type memoKey struct {
	query   Query
	version uint64
}

// maxEntries bounds the memo table.
const maxEntries = 64

// View holds the library and its memoized query results.
type View struct {
	mu      sync.Mutex
	items   []model.LibraryItem
	version uint64
	memo    map[memoKey][]model.LibraryItem
	hits    int
	misses  int
}

// NewView creates an empty view.
func NewView() *View {
	return &View{memo: make(map[memoKey][]model.LibraryItem)}
}

// SetItems replaces the library and invalidates memoized results.
func (v *View) SetItems(items []model.LibraryItem) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items = slices.Clone(items)
	v.version++
	clear(v.memo)
}

// Version returns the library version.
func (v *View) Version() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.version
}

// Len returns the number of library items.
func (v *View) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.items)
}

// Lookup returns the library item with id.
func (v *View) Lookup(id string) (model.LibraryItem, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, item := range v.items {
		if item.ID == id {
			return item, true
		}
	}
	return model.LibraryItem{}, false
}

// Query returns the items matching q. The returned slice is shared with
// the memo table and must not be modified.
func (v *View) Query(q Query) []model.LibraryItem {
	q = q.normalized()

	v.mu.Lock()
	defer v.mu.Unlock()

	key := memoKey{query: q, version: v.version}
	if res, ok := v.memo[key]; ok {
		v.hits++
		return res
	}
	v.misses++

	res := Apply(v.items, q)
	if len(v.memo) >= maxEntries {
		clear(v.memo)
	}
	v.memo[key] = res
	return res
}

// Stats returns memo hit and miss counts.
func (v *View) Stats() (hits, misses int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hits, v.misses
}

// Apply filters and sorts items without memoization.
func Apply(items []model.LibraryItem, q Query) []model.LibraryItem {
	q = q.normalized()

	out := make([]model.LibraryItem, 0, len(items))
	for _, item := range items {
		if q.Type != "" && item.Type != q.Type {
			continue
		}
		if q.Search != "" && !matches(item, q.Search) {
			continue
		}
		out = append(out, item)
	}

	slices.SortStableFunc(out, func(a, b model.LibraryItem) int {
		c := compare(a, b, q.Sort)
		if c == 0 {
			c = cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if q.Descending {
			return -c
		}
		return c
	})
	return out
}

func matches(item model.LibraryItem, needle string) bool {
	if strings.Contains(strings.ToLower(item.Name), needle) {
		return true
	}
	if item.Artist != nil && strings.Contains(strings.ToLower(*item.Artist), needle) {
		return true
	}
	for _, tag := range item.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func compare(a, b model.LibraryItem, key SortKey) int {
	switch key {
	case SortLastPracticed:
		return lastPracticed(a).Compare(lastPracticed(b))
	case SortTimesPracticed:
		return cmp.Compare(a.TimesPracticed, b.TimesPracticed)
	case SortType:
		return cmp.Compare(string(a.Type), string(b.Type))
	default:
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	}
}

// lastPracticed treats never-practiced items as the oldest.
func lastPracticed(item model.LibraryItem) time.Time {
	if item.LastPracticed == nil {
		return time.Time{}
	}
	return *item.LastPracticed
}

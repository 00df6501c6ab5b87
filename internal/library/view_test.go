package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mschirtzinger/practicesync/internal/model"
)

func ids(items []model.LibraryItem) []string {
	out := make([]string, 0, len(items))
	for _, i := range items {
		out = append(out, i.ID)
	}
	return out
}

func sample() []model.LibraryItem {
	beatles := "The Beatles"
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return []model.LibraryItem{
		{ID: "1", Name: "blackbird", Type: model.ItemTypeSong, Artist: &beatles, LastPracticed: &t2, TimesPracticed: 9},
		{ID: "2", Name: "Arpeggios", Type: model.ItemTypeExercise, Tags: []string{"Technique"}, LastPracticed: &t1, TimesPracticed: 2},
		{ID: "3", Name: "Chord changes", Type: model.ItemTypeExercise, Tags: []string{"rhythm"}},
		{ID: "4", Name: "Lesson 4", Type: model.ItemTypeCourseLesson, TimesPracticed: 2},
	}
}

func TestApply_SearchMatchesNameArtistTags(t *testing.T) {
	items := sample()

	assert.Equal(t, []string{"1"}, ids(Apply(items, Query{Search: "BEATLES"})))
	assert.Equal(t, []string{"2"}, ids(Apply(items, Query{Search: "techn"})))
	assert.Equal(t, []string{"3"}, ids(Apply(items, Query{Search: " chord "})))
	assert.Empty(t, Apply(items, Query{Search: "zzz"}))
}

func TestApply_TypeFilterAndSorts(t *testing.T) {
	items := sample()

	assert.Equal(t, []string{"2", "3"}, ids(Apply(items, Query{Type: model.ItemTypeExercise})))
	assert.Equal(t, []string{"2", "1", "3", "4"}, ids(Apply(items, Query{Sort: SortName})), "case-insensitive name order")
	assert.Equal(t, []string{"4", "3", "1", "2"}, ids(Apply(items, Query{Sort: SortName, Descending: true})))
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(Apply(items, Query{Sort: SortLastPracticed, Descending: true}))[:2])
	assert.Equal(t, []string{"3", "2", "4", "1"}, ids(Apply(items, Query{Sort: SortTimesPracticed})), "ties broken by name")
	assert.Equal(t, "4", ids(Apply(items, Query{Sort: SortType}))[0])
}

func TestView_MemoizesUntilLibraryChanges(t *testing.T) {
	v := NewView()
	v.SetItems(sample())
	q := Query{Search: "a", Sort: SortName}

	first := v.Query(q)
	second := v.Query(Query{Search: " A ", Sort: SortName})
	hits, misses := v.Stats()
	assert.Equal(t, 1, hits, "normalized queries share an entry")
	assert.Equal(t, 1, misses)
	assert.Equal(t, ids(first), ids(second))

	v.Query(Query{Search: "a", Sort: SortName, Descending: true})
	_, misses = v.Stats()
	assert.Equal(t, 2, misses, "direction is part of the key")

	before := v.Version()
	v.SetItems(sample()[:1])
	assert.Greater(t, v.Version(), before)
	assert.Equal(t, []string{"1"}, ids(v.Query(q)))
	_, misses = v.Stats()
	assert.Equal(t, 3, misses)
}

func TestView_Lookup(t *testing.T) {
	v := NewView()
	v.SetItems(sample())

	item, ok := v.Lookup("3")
	assert.True(t, ok)
	assert.Equal(t, "Chord changes", item.Name)
	_, ok = v.Lookup("nope")
	assert.False(t, ok)
	assert.Equal(t, 4, v.Len())
}

func TestParseSortKey(t *testing.T) {
	assert.Equal(t, SortLastPracticed, ParseSortKey("recent"))
	assert.Equal(t, SortTimesPracticed, ParseSortKey("times_practiced"))
	assert.Equal(t, SortType, ParseSortKey("TYPE"))
	assert.Equal(t, SortName, ParseSortKey("whatever"))
}

package remote

import (
	"math"
	"strings"
	"time"

	"github.com/mschirtzinger/practicesync/internal/model"
)

// page is one row of a collection as returned by the document API.
type page struct {
	ID         string                   `json:"id"`
	Archived   bool                     `json:"archived"`
	Properties map[string]propertyValue `json:"properties"`
}

type richText struct {
	PlainText string `json:"plain_text"`
}

type selectOption struct {
	Name string `json:"name"`
}

type dateValue struct {
	Start string `json:"start"`
}

type relationRef struct {
	ID string `json:"id"`
}

type computedValue struct {
	Type   string     `json:"type"`
	Number *float64   `json:"number"`
	String *string    `json:"string"`
	Date   *dateValue `json:"date"`
}

// propertyValue is the union of every property shape the client reads.
type propertyValue struct {
	Type        string         `json:"type"`
	Title       []richText     `json:"title"`
	RichText    []richText     `json:"rich_text"`
	Select      *selectOption  `json:"select"`
	MultiSelect []selectOption `json:"multi_select"`
	Number      *float64       `json:"number"`
	Date        *dateValue     `json:"date"`
	Relation    []relationRef  `json:"relation"`
	Formula     *computedValue `json:"formula"`
	Rollup      *computedValue `json:"rollup"`
}

// reader extracts logical fields from a page through a collection table.
type reader struct {
	col   Collection
	props map[string]propertyValue
}

func (r reader) value(field string) (propertyValue, Property, bool) {
	p, ok := r.col.Lookup(field)
	if !ok {
		return propertyValue{}, Property{}, false
	}
	v, ok := r.props[p.Name]
	return v, p, ok
}

func (r reader) text(field string) string {
	v, p, ok := r.value(field)
	if !ok {
		return ""
	}
	switch p.Kind {
	case KindTitle:
		return joinText(v.Title)
	case KindRichText:
		return joinText(v.RichText)
	case KindSelect:
		if v.Select != nil {
			return v.Select.Name
		}
	case KindFormula:
		if v.Formula != nil && v.Formula.String != nil {
			return *v.Formula.String
		}
	}
	return ""
}

func (r reader) optionalText(field string) *string {
	s := strings.TrimSpace(r.text(field))
	if s == "" {
		return nil
	}
	return &s
}

func (r reader) list(field string) []string {
	v, p, ok := r.value(field)
	if !ok {
		return []string{}
	}
	out := []string{}
	switch p.Kind {
	case KindMultiSelect:
		for _, o := range v.MultiSelect {
			out = append(out, o.Name)
		}
	case KindRelation:
		for _, ref := range v.Relation {
			out = append(out, ref.ID)
		}
	}
	return out
}

func (r reader) number(field string) *float64 {
	v, p, ok := r.value(field)
	if !ok {
		return nil
	}
	switch p.Kind {
	case KindNumber:
		return v.Number
	case KindFormula:
		if v.Formula != nil {
			return v.Formula.Number
		}
	case KindRollup:
		if v.Rollup != nil {
			return v.Rollup.Number
		}
	}
	return nil
}

func (r reader) integer(field string, def int) int {
	n := r.number(field)
	if n == nil {
		return def
	}
	return int(math.Round(*n))
}

func (r reader) date(field string) *time.Time {
	v, p, ok := r.value(field)
	if !ok {
		return nil
	}
	var d *dateValue
	switch p.Kind {
	case KindDate:
		d = v.Date
	case KindFormula:
		if v.Formula != nil {
			d = v.Formula.Date
		}
	case KindRollup:
		if v.Rollup != nil {
			d = v.Rollup.Date
		}
	}
	if d == nil || d.Start == "" {
		return nil
	}
	t, err := model.ParseDay(d.Start)
	if err != nil {
		return nil
	}
	return &t
}

func (r reader) relation(field string) string {
	ids := r.list(field)
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

func joinText(parts []richText) string {
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.PlainText)
	}
	return sb.String()
}

func parseLibraryItem(pg page, col Collection) model.LibraryItem {
	r := reader{col: col, props: pg.Properties}
	item := model.LibraryItem{
		ID:             pg.ID,
		Name:           r.text(FieldName),
		Type:           model.ParseItemType(r.text(FieldType)),
		Artist:         r.optionalText(FieldArtist),
		Tags:           r.list(FieldTags),
		LastPracticed:  r.date(FieldLastPracticed),
		TimesPracticed: max(r.integer(FieldTimesPracticed, 0), 0),
	}
	item.SetDefaults()
	return item
}

func parseSession(pg page, col Collection) model.PracticeSession {
	r := reader{col: col, props: pg.Properties}
	s := model.PracticeSession{
		ID:          pg.ID,
		Name:        r.text(FieldName),
		GoalMinutes: r.integer(FieldGoalMinutes, 0),
	}
	if d := r.date(FieldDate); d != nil {
		s.Date = *d
	}
	s.SetDefaults()
	return s
}

func parseLog(pg page, col Collection, sessionID string) model.PracticeLog {
	r := reader{col: col, props: pg.Properties}
	log := model.PracticeLog{
		ID:             pg.ID,
		Name:           r.text(FieldName),
		ItemID:         r.relation(FieldItem),
		SessionID:      r.relation(FieldSession),
		PlannedMinutes: r.integer(FieldPlannedMinutes, 0),
		ActualMinutes:  r.number(FieldActualMinutes),
		Order:          r.integer(FieldOrder, 0),
		Notes:          r.optionalText(FieldNotes),
	}
	if log.SessionID == "" {
		log.SessionID = sessionID
	}
	return log
}

// writer builds a property map for create and update requests.
type writer struct {
	col   Collection
	props map[string]any
}

func newWriter(col Collection) *writer {
	return &writer{col: col, props: make(map[string]any)}
}

func (w *writer) set(field string, value any) {
	p, ok := w.col.Lookup(field)
	if !ok {
		return
	}
	if encoded, ok := encodeProperty(p.Kind, value); ok {
		w.props[p.Name] = encoded
	}
}

func encodeProperty(kind PropertyKind, value any) (map[string]any, bool) {
	switch kind {
	case KindTitle, KindRichText:
		s, ok := value.(string)
		if !ok {
			return nil, false
		}
		return map[string]any{string(kind): []map[string]any{
			{"type": "text", "text": map[string]any{"content": s}},
		}}, true
	case KindSelect:
		s, ok := value.(string)
		if !ok {
			return nil, false
		}
		return map[string]any{"select": map[string]any{"name": s}}, true
	case KindNumber:
		switch n := value.(type) {
		case int:
			return map[string]any{"number": n}, true
		case float64:
			return map[string]any{"number": n}, true
		}
	case KindDate:
		s, ok := value.(string)
		if !ok {
			return nil, false
		}
		return map[string]any{"date": map[string]any{"start": s}}, true
	case KindRelation:
		s, ok := value.(string)
		if !ok {
			return nil, false
		}
		return map[string]any{"relation": []map[string]any{{"id": s}}}, true
	}
	return nil, false
}

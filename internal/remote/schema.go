package remote

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// PropertyKind is the remote type of a document property.
type PropertyKind string

const (
	KindTitle       PropertyKind = "title"
	KindRichText    PropertyKind = "rich_text"
	KindSelect      PropertyKind = "select"
	KindMultiSelect PropertyKind = "multi_select"
	KindNumber      PropertyKind = "number"
	KindDate        PropertyKind = "date"
	KindRelation    PropertyKind = "relation"
	KindFormula     PropertyKind = "formula"
	KindRollup      PropertyKind = "rollup"
)

// Logical field names. Each collection maps the fields it uses to a remote
// property.
const (
	FieldName           = "name"
	FieldType           = "type"
	FieldArtist         = "artist"
	FieldTags           = "tags"
	FieldLastPracticed  = "last_practiced"
	FieldTimesPracticed = "times_practiced"

	FieldDate        = "date"
	FieldGoalMinutes = "goal_minutes"

	FieldItem           = "item"
	FieldSession        = "session"
	FieldPlannedMinutes = "planned_minutes"
	FieldActualMinutes  = "actual_minutes"
	FieldOrder          = "order"
	FieldNotes          = "notes"
)

// Property names one remote property and its kind.
type Property struct {
	Name string       `toml:"name"`
	Kind PropertyKind `toml:"kind"`
}

// Collection maps logical field names to remote properties.
// A field absent from the map is neither read nor written.
type Collection map[string]Property

// Lookup returns the property bound to field.
func (c Collection) Lookup(field string) (Property, bool) {
	p, ok := c[field]
	if !ok || p.Name == "" {
		return Property{}, false
	}
	return p, true
}

// Schema is the property-name table for the three collections.
type Schema struct {
	Library  Collection `toml:"library"`
	Sessions Collection `toml:"sessions"`
	Logs     Collection `toml:"logs"`
}

// DefaultSchema returns the property names used by the stock practice
// workspace template.
func DefaultSchema() Schema {
	return Schema{
		Library: Collection{
			FieldName:           {Name: "Name", Kind: KindTitle},
			FieldType:           {Name: "Type", Kind: KindSelect},
			FieldArtist:         {Name: "Artist", Kind: KindRichText},
			FieldTags:           {Name: "Tags", Kind: KindMultiSelect},
			FieldLastPracticed:  {Name: "Last Practiced", Kind: KindDate},
			FieldTimesPracticed: {Name: "Times Practiced", Kind: KindNumber},
		},
		Sessions: Collection{
			FieldName:        {Name: "Name", Kind: KindTitle},
			FieldDate:        {Name: "Date", Kind: KindDate},
			FieldGoalMinutes: {Name: "Goal (min)", Kind: KindNumber},
		},
		Logs: Collection{
			FieldName:           {Name: "Name", Kind: KindTitle},
			FieldItem:           {Name: "Item", Kind: KindRelation},
			FieldSession:        {Name: "Session", Kind: KindRelation},
			FieldPlannedMinutes: {Name: "Planned Time (min)", Kind: KindNumber},
			FieldActualMinutes:  {Name: "Actual Time (min)", Kind: KindNumber},
			FieldOrder:          {Name: "Order", Kind: KindNumber},
			FieldNotes:          {Name: "Notes", Kind: KindRichText},
		},
	}
}

// Validate checks that every collection can at least be named and that logs
// can be tied to their session.
func (s Schema) Validate() error {
	for _, c := range []struct {
		label string
		col   Collection
	}{
		{"library", s.Library},
		{"sessions", s.Sessions},
		{"logs", s.Logs},
	} {
		p, ok := c.col.Lookup(FieldName)
		if !ok {
			return fmt.Errorf("schema: %s.%s is required", c.label, FieldName)
		}
		if p.Kind != KindTitle {
			return fmt.Errorf("schema: %s.%s must be a title property (got %q)", c.label, FieldName, p.Kind)
		}
	}

	for _, field := range []string{FieldItem, FieldSession} {
		p, ok := s.Logs.Lookup(field)
		if !ok {
			return fmt.Errorf("schema: logs.%s is required", field)
		}
		if p.Kind != KindRelation {
			return fmt.Errorf("schema: logs.%s must be a relation property (got %q)", field, p.Kind)
		}
	}

	if _, ok := s.Sessions.Lookup(FieldDate); !ok {
		return fmt.Errorf("schema: sessions.%s is required", FieldDate)
	}
	return nil
}

// Merge overlays the fields set in other onto s.
func (s Schema) Merge(other Schema) Schema {
	return Schema{
		Library:  mergeCollection(s.Library, other.Library),
		Sessions: mergeCollection(s.Sessions, other.Sessions),
		Logs:     mergeCollection(s.Logs, other.Logs),
	}
}

func mergeCollection(base, over Collection) Collection {
	out := make(Collection, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		if v.Kind == "" {
			if prev, ok := out[k]; ok {
				v.Kind = prev.Kind
			}
		}
		out[k] = v
	}
	return out
}

// LoadSchemaFile reads a TOML property table and overlays it on the default
// schema. Only the fields that differ from the template need to be listed:
//
//	[logs.planned_minutes]
//	name = "Planned"
//
//	[library.type]
//	name = "Category"
//	kind = "select"
func LoadSchemaFile(path string) (Schema, error) {
	var override Schema
	if _, err := toml.DecodeFile(path, &override); err != nil {
		return Schema{}, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}

	schema := DefaultSchema().Merge(override)
	if err := schema.Validate(); err != nil {
		return Schema{}, err
	}
	return schema, nil
}

package entity

import (
	"time"

	"github.com/maruel/ksid"
)

// PropertyType identifies the value type of a database property.
type PropertyType string

const (
	// PropertyText is a free-form text value.
	PropertyText PropertyType = "text"
	// PropertyNumber is a numeric value.
	PropertyNumber PropertyType = "number"
	// PropertyDate is a date value stored as an ISO 8601 string.
	PropertyDate PropertyType = "date"
	// PropertyCheckbox is a boolean value.
	PropertyCheckbox PropertyType = "checkbox"
	// PropertySelect is a single choice from the property's options.
	PropertySelect PropertyType = "select"
	// PropertyMultiSelect is a set of choices from the property's options.
	PropertyMultiSelect PropertyType = "multiSelect"
	// PropertyURL is a link value.
	PropertyURL PropertyType = "url"
)

// TitleProperty is the property identifier that refers to the row's page
// title rather than a value in the row's value map.
const TitleProperty = "title"

// SelectOption is one selectable choice of a select or multiSelect property.
type SelectOption struct {
	ID    string `json:"id" jsonschema:"description=Stable option identifier"`
	Name  string `json:"name" jsonschema:"description=Display name"`
	Color string `json:"color,omitempty" jsonschema:"description=Display color"`
}

// PropertyDefinition declares one column of a database.
type PropertyDefinition struct {
	ID      string         `json:"id" jsonschema:"description=Stable property identifier"`
	Name    string         `json:"name" jsonschema:"description=Display name"`
	Type    PropertyType   `json:"type" jsonschema:"description=Value type"`
	Options []SelectOption `json:"options,omitempty" jsonschema:"description=Choices for select and multiSelect properties"`
}

// DefaultValue returns the default row value for a property type.
func DefaultValue(pt PropertyType) any {
	switch pt {
	case PropertyText, PropertyURL:
		return ""
	case PropertyCheckbox:
		return false
	case PropertyMultiSelect:
		return []any{}
	default:
		return nil
	}
}

// Database is the schema of a database page. It shares its identity with the
// owning page of kind database.
type Database struct {
	PageID     ksid.ID              `json:"pageId" jsonschema:"description=Owning page identifier"`
	Properties []PropertyDefinition `json:"properties" jsonschema:"description=Column declarations"`
	Views      []DatabaseView       `json:"views,omitempty" jsonschema:"description=Saved views"`
}

// Clone returns a deep copy of the database.
func (d *Database) Clone() *Database {
	c := *d
	c.Properties = make([]PropertyDefinition, len(d.Properties))
	for i := range d.Properties {
		c.Properties[i] = d.Properties[i]
		c.Properties[i].Options = append([]SelectOption(nil), d.Properties[i].Options...)
	}
	c.Views = make([]DatabaseView, len(d.Views))
	for i := range d.Views {
		c.Views[i] = d.Views[i].Clone()
	}
	return &c
}

// GetID returns the identifier of the owning page.
func (d *Database) GetID() ksid.ID {
	return d.PageID
}

// Validate checks intrinsic consistency.
func (d *Database) Validate() error {
	if d.PageID.IsZero() {
		return errIDRequired
	}
	return nil
}

// Property returns the definition with the given id, or nil.
func (d *Database) Property(id string) *PropertyDefinition {
	for i := range d.Properties {
		if d.Properties[i].ID == id {
			return &d.Properties[i]
		}
	}
	return nil
}

// Row is one record of a database. Each row is backed by a detail page.
type Row struct {
	ID             ksid.ID        `json:"id" jsonschema:"description=Unique row identifier"`
	DatabasePageID ksid.ID        `json:"databasePageId" jsonschema:"description=Owning database page"`
	PageID         ksid.ID        `json:"pageId,omitempty" jsonschema:"description=Backing detail page"`
	Values         map[string]any `json:"values" jsonschema:"description=Property values keyed by property id"`
	Created        time.Time      `json:"createdAt" jsonschema:"description=Creation time"`
	Updated        time.Time      `json:"updatedAt" jsonschema:"description=Last modification time"`
}

// Clone returns a copy with its own value map.
func (r *Row) Clone() *Row {
	c := *r
	c.Values = make(map[string]any, len(r.Values))
	for k, v := range r.Values {
		c.Values[k] = v
	}
	return &c
}

// GetID returns the unique row identifier.
func (r *Row) GetID() ksid.ID {
	return r.ID
}

// Validate checks intrinsic consistency.
func (r *Row) Validate() error {
	if r.ID.IsZero() {
		return errIDRequired
	}
	if r.DatabasePageID.IsZero() {
		return errDatabaseIDRequired
	}
	return nil
}

// NormalizeValues fills missing values with the per-type default for every
// declared property. Values for unknown keys are preserved.
func (r *Row) NormalizeValues(properties []PropertyDefinition) {
	if r.Values == nil {
		r.Values = map[string]any{}
	}
	for i := range properties {
		if _, ok := r.Values[properties[i].ID]; !ok {
			r.Values[properties[i].ID] = DefaultValue(properties[i].Type)
		}
	}
}

package entity

import "github.com/maruel/ksid"

// ViewKind identifies how a saved view renders its rows.
type ViewKind string

const (
	// ViewTable renders rows as a grid.
	ViewTable ViewKind = "table"
	// ViewList renders rows as a vertical list.
	ViewList ViewKind = "list"
)

// DatabaseView is a saved combination of filters and sorts over a database.
type DatabaseView struct {
	ID      ksid.ID  `json:"id" jsonschema:"description=Unique view identifier"`
	Name    string   `json:"name" jsonschema:"description=Display name"`
	Kind    ViewKind `json:"kind" jsonschema:"description=Rendering kind"`
	Filters []Filter `json:"filters,omitempty" jsonschema:"description=Filter conditions, all must match"`
	Sorts   []Sort   `json:"sorts,omitempty" jsonschema:"description=Sort keys in priority order"`
}

// Clone returns a copy with its own filter and sort slices.
func (v DatabaseView) Clone() DatabaseView {
	c := v
	c.Filters = append([]Filter(nil), v.Filters...)
	c.Sorts = append([]Sort(nil), v.Sorts...)
	return c
}

// FilterOp identifies a filter comparison.
type FilterOp string

const (
	FilterOpEquals       FilterOp = "equals"
	FilterOpNotEquals    FilterOp = "notEquals"
	FilterOpContains     FilterOp = "contains"
	FilterOpNotContains  FilterOp = "notContains"
	FilterOpIsEmpty      FilterOp = "isEmpty"
	FilterOpIsNotEmpty   FilterOp = "isNotEmpty"
	FilterOpGreaterThan  FilterOp = "gt"
	FilterOpGreaterEqual FilterOp = "gte"
	FilterOpLessThan     FilterOp = "lt"
	FilterOpLessEqual    FilterOp = "lte"
)

// Filter is one condition over a property value. PropertyID may be the
// title sentinel to target the row's page title.
type Filter struct {
	PropertyID string   `json:"propertyId" jsonschema:"description=Target property id or the title sentinel"`
	Operator   FilterOp `json:"operator" jsonschema:"description=Comparison operator"`
	Value      any      `json:"value,omitempty" jsonschema:"description=Comparison operand"`
}

// SortDir is the direction of a sort key.
type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// Sort is one sort key over a property value.
type Sort struct {
	PropertyID string  `json:"propertyId" jsonschema:"description=Target property id or the title sentinel"`
	Direction  SortDir `json:"direction" jsonschema:"description=Sort direction"`
}

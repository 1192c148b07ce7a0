// Package query evaluates view filters and sorts over database rows.
//
// Everything here is pure and synchronous. Callers load the rows, resolve
// each row's page title, and hand the snapshot in; the engine never touches
// storage.
package query

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/potionhq/potion/internal/entity"
)

// Entry is one row together with its resolved detail page title. The title
// is carried separately because the title pseudo-property lives on the
// page, not in the row's value map.
type Entry struct {
	Row   *entity.Row
	Title string
}

// Apply filters then sorts entries per the view. The input slice is not
// modified.
func Apply(entries []Entry, view *entity.DatabaseView) []Entry {
	if view == nil {
		return slices.Clone(entries)
	}
	result := FilterEntries(entries, view.Filters)
	SortEntries(result, view.Sorts)
	return result
}

// FilterEntries returns the entries matching every filter (logical AND).
// Always returns a fresh slice.
func FilterEntries(entries []Entry, filters []entity.Filter) []Entry {
	result := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if matchesFilters(e, filters) {
			result = append(result, e)
		}
	}
	return result
}

// SortEntries sorts entries in place by the sort keys in declared order.
// The sort is stable, so rows tied on every key keep their input order.
func SortEntries(entries []Entry, sorts []entity.Sort) {
	if len(sorts) == 0 {
		return
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		for i := range sorts {
			s := &sorts[i]
			c := compareSortValues(valueOf(a, s.PropertyID), valueOf(b, s.PropertyID))
			if c != 0 {
				if s.Direction == entity.SortDesc {
					return -c
				}
				return c
			}
		}
		return 0
	})
}

// valueOf resolves a property value, substituting the page title for the
// title sentinel.
func valueOf(e Entry, propertyID string) any {
	if propertyID == entity.TitleProperty {
		return e.Title
	}
	if e.Row == nil {
		return nil
	}
	return e.Row.Values[propertyID]
}

func matchesFilters(e Entry, filters []entity.Filter) bool {
	for i := range filters {
		if !matchesFilter(e, &filters[i]) {
			return false
		}
	}
	return true
}

func matchesFilter(e Entry, f *entity.Filter) bool {
	if f.PropertyID == "" {
		return true
	}
	return matchesOperator(valueOf(e, f.PropertyID), f.Operator, f.Value)
}

// matchesOperator applies one filter operator. Shape mismatches degrade to
// a non-match or the string fallback, never an error.
func matchesOperator(value any, op entity.FilterOp, filterValue any) bool {
	switch op {
	case entity.FilterOpIsEmpty:
		return isEmpty(value)
	case entity.FilterOpIsNotEmpty:
		return !isEmpty(value)
	}

	// Booleans compare by identity, only for equality operators.
	vb, valueBool := value.(bool)
	fb, filterBool := filterValue.(bool)
	if valueBool || filterBool {
		switch op {
		case entity.FilterOpEquals:
			return valueBool && filterBool && vb == fb
		case entity.FilterOpNotEquals:
			return !(valueBool && filterBool && vb == fb)
		default:
			return false
		}
	}

	// multiSelect values support membership checks only.
	if list, ok := asList(value); ok {
		switch op {
		case entity.FilterOpContains:
			return listContains(list, filterValue)
		case entity.FilterOpNotContains:
			return !listContains(list, filterValue)
		default:
			return false
		}
	}

	if va, aok := asNumber(value); aok {
		if vb, bok := asNumber(filterValue); bok {
			return applyComparison(op, cmp.Compare(va, vb))
		}
	}

	if isRelational(op) {
		ta, aok := parseDate(value)
		tb, bok := parseDate(filterValue)
		if aok && bok {
			return applyComparison(op, ta.Compare(tb))
		}
		// Relational operators need comparable operands.
		return false
	}

	// Fallback: case-insensitive string comparison.
	vs := strings.ToLower(toString(value))
	fs := strings.ToLower(toString(filterValue))
	switch op {
	case entity.FilterOpEquals:
		return vs == fs
	case entity.FilterOpNotEquals:
		return vs != fs
	case entity.FilterOpContains:
		return strings.Contains(vs, fs)
	case entity.FilterOpNotContains:
		return !strings.Contains(vs, fs)
	default:
		return false
	}
}

func applyComparison(op entity.FilterOp, c int) bool {
	switch op {
	case entity.FilterOpEquals:
		return c == 0
	case entity.FilterOpNotEquals:
		return c != 0
	case entity.FilterOpGreaterThan:
		return c > 0
	case entity.FilterOpGreaterEqual:
		return c >= 0
	case entity.FilterOpLessThan:
		return c < 0
	case entity.FilterOpLessEqual:
		return c <= 0
	default:
		return false
	}
}

func isRelational(op entity.FilterOp) bool {
	switch op {
	case entity.FilterOpGreaterThan, entity.FilterOpGreaterEqual,
		entity.FilterOpLessThan, entity.FilterOpLessEqual:
		return true
	}
	return false
}

// isEmpty reports emptiness independent of the declared property type.
func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	switch v := value.(type) {
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	}
	return false
}

func asList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func listContains(list []any, filterValue any) bool {
	for _, elem := range list {
		if looseEqual(elem, filterValue) {
			return true
		}
	}
	return false
}

// looseEqual matches numbers numerically and everything else by
// case-insensitive string form.
func looseEqual(a, b any) bool {
	if na, aok := asNumber(a); aok {
		if nb, bok := asNumber(b); bok {
			return na == nb
		}
	}
	return strings.EqualFold(toString(a), toString(b))
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// parseDate accepts time values and the date string shapes stored in rows.
func parseDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		if v == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func toString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	}
	if n, ok := asNumber(value); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

// compareSortValues orders two dynamic values for sorting: nil first, then
// booleans false<true, numbers, arrays by length then first element, then
// dates, then case-insensitive strings.
func compareSortValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			if ab == bb {
				return 0
			}
			if !ab {
				return -1
			}
			return 1
		}
	}

	if na, aok := asNumber(a); aok {
		if nb, bok := asNumber(b); bok {
			return cmp.Compare(na, nb)
		}
	}

	la, aok := asList(a)
	lb, bok := asList(b)
	if aok && bok {
		if c := cmp.Compare(len(la), len(lb)); c != 0 {
			return c
		}
		if len(la) == 0 {
			return 0
		}
		return compareSortValues(la[0], lb[0])
	}

	ta, aok := parseDate(a)
	tb, bok := parseDate(b)
	if aok && bok {
		return ta.Compare(tb)
	}

	return cmp.Compare(strings.ToLower(toString(a)), strings.ToLower(toString(b)))
}

package query

import (
	"testing"

	"github.com/maruel/ksid"
	"github.com/potionhq/potion/internal/entity"
)

func TestFilterEntries(t *testing.T) {
	data := []struct {
		name    string
		entries []Entry
		filters []entity.Filter
		want    []string
	}{
		{
			name: "no filters passes everything",
			entries: []Entry{
				entry("a", map[string]any{}),
				entry("b", map[string]any{}),
			},
			want: []string{"a", "b"},
		},
		{
			name: "equals case-insensitive",
			entries: []Entry{
				entry("a", map[string]any{"status": "Open"}),
				entry("b", map[string]any{"status": "closed"}),
			},
			filters: []entity.Filter{{PropertyID: "status", Operator: entity.FilterOpEquals, Value: "open"}},
			want:    []string{"a"},
		},
		{
			name: "contains substring",
			entries: []Entry{
				entry("a", map[string]any{"notes": "call the vendor"}),
				entry("b", map[string]any{"notes": "ship it"}),
			},
			filters: []entity.Filter{{PropertyID: "notes", Operator: entity.FilterOpContains, Value: "VENDOR"}},
			want:    []string{"a"},
		},
		{
			name: "numeric greater than",
			entries: []Entry{
				entry("a", map[string]any{"amount": float64(5)}),
				entry("b", map[string]any{"amount": float64(15)}),
				entry("c", map[string]any{"amount": float64(25)}),
			},
			filters: []entity.Filter{{PropertyID: "amount", Operator: entity.FilterOpGreaterThan, Value: float64(10)}},
			want:    []string{"b", "c"},
		},
		{
			name: "isEmpty matches nil empty string and empty list",
			entries: []Entry{
				entry("a", map[string]any{"x": nil}),
				entry("b", map[string]any{"x": ""}),
				entry("c", map[string]any{"x": []any{}}),
				entry("d", map[string]any{"x": "set"}),
			},
			filters: []entity.Filter{{PropertyID: "x", Operator: entity.FilterOpIsEmpty}},
			want:    []string{"a", "b", "c"},
		},
		{
			name: "isNotEmpty",
			entries: []Entry{
				entry("a", map[string]any{"x": ""}),
				entry("b", map[string]any{"x": "set"}),
			},
			filters: []entity.Filter{{PropertyID: "x", Operator: entity.FilterOpIsNotEmpty}},
			want:    []string{"b"},
		},
		{
			name: "bool identity",
			entries: []Entry{
				entry("a", map[string]any{"done": true}),
				entry("b", map[string]any{"done": false}),
				entry("c", map[string]any{"done": "true"}),
			},
			filters: []entity.Filter{{PropertyID: "done", Operator: entity.FilterOpEquals, Value: true}},
			want:    []string{"a"},
		},
		{
			name: "multiSelect membership",
			entries: []Entry{
				entry("a", map[string]any{"tags": []any{"urgent", "home"}}),
				entry("b", map[string]any{"tags": []any{"work"}}),
			},
			filters: []entity.Filter{{PropertyID: "tags", Operator: entity.FilterOpContains, Value: "urgent"}},
			want:    []string{"a"},
		},
		{
			name: "multiSelect rejects relational operators",
			entries: []Entry{
				entry("a", map[string]any{"tags": []any{"urgent"}}),
			},
			filters: []entity.Filter{{PropertyID: "tags", Operator: entity.FilterOpGreaterThan, Value: "a"}},
			want:    []string{},
		},
		{
			name: "relational dates",
			entries: []Entry{
				entry("a", map[string]any{"due": "2025-01-01"}),
				entry("b", map[string]any{"due": "2025-06-15"}),
			},
			filters: []entity.Filter{{PropertyID: "due", Operator: entity.FilterOpGreaterThan, Value: "2025-03-01"}},
			want:    []string{"b"},
		},
		{
			name: "relational on unparsable dates is a non-match",
			entries: []Entry{
				entry("a", map[string]any{"due": "soon"}),
			},
			filters: []entity.Filter{{PropertyID: "due", Operator: entity.FilterOpGreaterThan, Value: "2025-03-01"}},
			want:    []string{},
		},
		{
			name: "title sentinel reads the page title",
			entries: []Entry{
				entry("Alpha", map[string]any{"title": "decoy"}),
				entry("Beta", map[string]any{}),
			},
			filters: []entity.Filter{{PropertyID: entity.TitleProperty, Operator: entity.FilterOpContains, Value: "alp"}},
			want:    []string{"Alpha"},
		},
		{
			name: "equals empty string does not match a number",
			entries: []Entry{
				entry("a", map[string]any{"amount": float64(0)}),
				entry("b", map[string]any{"amount": ""}),
			},
			filters: []entity.Filter{{PropertyID: "amount", Operator: entity.FilterOpEquals, Value: ""}},
			want:    []string{"b"},
		},
		{
			name: "contains sees a number's digits",
			entries: []Entry{
				entry("a", map[string]any{"amount": float64(15)}),
				entry("b", map[string]any{"amount": float64(34)}),
			},
			filters: []entity.Filter{{PropertyID: "amount", Operator: entity.FilterOpContains, Value: "5"}},
			want:    []string{"a"},
		},
		{
			name: "all filters must match",
			entries: []Entry{
				entry("a", map[string]any{"status": "open", "amount": float64(5)}),
				entry("b", map[string]any{"status": "open", "amount": float64(20)}),
			},
			filters: []entity.Filter{
				{PropertyID: "status", Operator: entity.FilterOpEquals, Value: "open"},
				{PropertyID: "amount", Operator: entity.FilterOpGreaterEqual, Value: float64(10)},
			},
			want: []string{"b"},
		},
	}
	for _, line := range data {
		t.Run(line.name, func(t *testing.T) {
			got := FilterEntries(line.entries, line.filters)
			if !sameTitles(got, line.want) {
				t.Fatalf("got %v, want %v", titles(got), line.want)
			}
			// Filtering is idempotent.
			again := FilterEntries(got, line.filters)
			if !sameTitles(again, line.want) {
				t.Fatalf("second pass got %v, want %v", titles(again), line.want)
			}
		})
	}
}

func TestSortEntries(t *testing.T) {
	data := []struct {
		name    string
		entries []Entry
		sorts   []entity.Sort
		want    []string
	}{
		{
			name: "no sorts preserves input order",
			entries: []Entry{
				entry("c", map[string]any{"n": float64(3)}),
				entry("a", map[string]any{"n": float64(1)}),
				entry("b", map[string]any{"n": float64(2)}),
			},
			want: []string{"c", "a", "b"},
		},
		{
			name: "numbers ascending",
			entries: []Entry{
				entry("b", map[string]any{"n": float64(2)}),
				entry("c", map[string]any{"n": float64(3)}),
				entry("a", map[string]any{"n": float64(1)}),
			},
			sorts: []entity.Sort{{PropertyID: "n", Direction: entity.SortAsc}},
			want:  []string{"a", "b", "c"},
		},
		{
			name: "desc negates",
			entries: []Entry{
				entry("a", map[string]any{"n": float64(1)}),
				entry("c", map[string]any{"n": float64(3)}),
				entry("b", map[string]any{"n": float64(2)}),
			},
			sorts: []entity.Sort{{PropertyID: "n", Direction: entity.SortDesc}},
			want:  []string{"c", "b", "a"},
		},
		{
			name: "nil sorts before any value",
			entries: []Entry{
				entry("b", map[string]any{"n": float64(1)}),
				entry("a", map[string]any{}),
			},
			sorts: []entity.Sort{{PropertyID: "n", Direction: entity.SortAsc}},
			want:  []string{"a", "b"},
		},
		{
			name: "booleans false before true",
			entries: []Entry{
				entry("b", map[string]any{"done": true}),
				entry("a", map[string]any{"done": false}),
			},
			sorts: []entity.Sort{{PropertyID: "done", Direction: entity.SortAsc}},
			want:  []string{"a", "b"},
		},
		{
			name: "arrays by length then first element",
			entries: []Entry{
				entry("c", map[string]any{"tags": []any{"b", "x"}}),
				entry("b", map[string]any{"tags": []any{"a", "z"}}),
				entry("a", map[string]any{"tags": []any{"q"}}),
			},
			sorts: []entity.Sort{{PropertyID: "tags", Direction: entity.SortAsc}},
			want:  []string{"a", "b", "c"},
		},
		{
			name: "dates compare chronologically",
			entries: []Entry{
				entry("b", map[string]any{"due": "2025-06-15"}),
				entry("a", map[string]any{"due": "2025-01-01"}),
			},
			sorts: []entity.Sort{{PropertyID: "due", Direction: entity.SortAsc}},
			want:  []string{"a", "b"},
		},
		{
			name: "strings case-insensitive",
			entries: []Entry{
				entry("b", map[string]any{"s": "Zebra"}),
				entry("a", map[string]any{"s": "apple"}),
			},
			sorts: []entity.Sort{{PropertyID: "s", Direction: entity.SortAsc}},
			want:  []string{"a", "b"},
		},
		{
			name: "multi-key falls through on ties",
			entries: []Entry{
				entry("b", map[string]any{"grp": "x", "n": float64(2)}),
				entry("a", map[string]any{"grp": "x", "n": float64(1)}),
				entry("c", map[string]any{"grp": "w", "n": float64(9)}),
			},
			sorts: []entity.Sort{
				{PropertyID: "grp", Direction: entity.SortAsc},
				{PropertyID: "n", Direction: entity.SortAsc},
			},
			want: []string{"c", "a", "b"},
		},
		{
			name: "title sentinel sorts by page title",
			entries: []Entry{
				entry("Beta", map[string]any{}),
				entry("Alpha", map[string]any{}),
			},
			sorts: []entity.Sort{{PropertyID: entity.TitleProperty, Direction: entity.SortAsc}},
			want:  []string{"Alpha", "Beta"},
		},
		{
			name: "stable on full ties",
			entries: []Entry{
				entry("first", map[string]any{"n": float64(1)}),
				entry("second", map[string]any{"n": float64(1)}),
				entry("third", map[string]any{"n": float64(1)}),
			},
			sorts: []entity.Sort{{PropertyID: "n", Direction: entity.SortAsc}},
			want:  []string{"first", "second", "third"},
		},
	}
	for _, line := range data {
		t.Run(line.name, func(t *testing.T) {
			entries := append([]Entry(nil), line.entries...)
			SortEntries(entries, line.sorts)
			if !sameTitles(entries, line.want) {
				t.Fatalf("got %v, want %v", titles(entries), line.want)
			}
		})
	}
}

func TestApply(t *testing.T) {
	entries := []Entry{
		entry("a", map[string]any{"amount": float64(5), "status": "open"}),
		entry("c", map[string]any{"amount": float64(25), "status": "open"}),
		entry("b", map[string]any{"amount": float64(15), "status": "open"}),
		entry("d", map[string]any{"amount": float64(40), "status": "closed"}),
	}
	view := &entity.DatabaseView{
		Name: "Open by amount",
		Kind: entity.ViewTable,
		Filters: []entity.Filter{
			{PropertyID: "status", Operator: entity.FilterOpEquals, Value: "open"},
			{PropertyID: "amount", Operator: entity.FilterOpGreaterThan, Value: float64(10)},
		},
		Sorts: []entity.Sort{{PropertyID: "amount", Direction: entity.SortDesc}},
	}
	got := Apply(entries, view)
	if !sameTitles(got, []string{"c", "b"}) {
		t.Fatalf("got %v", titles(got))
	}
	// The input snapshot is untouched.
	if entries[0].Title != "a" || entries[3].Title != "d" {
		t.Fatal("input mutated")
	}

	t.Run("nil view copies input", func(t *testing.T) {
		got := Apply(entries, nil)
		if !sameTitles(got, []string{"a", "c", "b", "d"}) {
			t.Fatalf("got %v", titles(got))
		}
	})
}

func entry(title string, values map[string]any) Entry {
	return Entry{
		Row:   &entity.Row{ID: ksid.NewID(), DatabasePageID: ksid.NewID(), Values: values},
		Title: title,
	}
}

func titles(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Title
	}
	return out
}

func sameTitles(entries []Entry, want []string) bool {
	if len(entries) != len(want) {
		return false
	}
	for i, e := range entries {
		if e.Title != want[i] {
			return false
		}
	}
	return true
}

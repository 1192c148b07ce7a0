package porter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/maruel/ksid"
	"github.com/potionhq/potion/internal/entity"
	"github.com/potionhq/potion/internal/storage"
)

func TestExportWorkspace(t *testing.T) {
	ctx := t.Context()
	s, ws, e := newFixture(t)
	page := makePage(t, ctx, s, ws, "Notes", 0)
	dbPage := makeDatabase(t, ctx, s, ws, "Tasks")
	row := makeRow(t, ctx, s, dbPage.ID, map[string]any{"status": "open"})

	export, err := e.ExportWorkspace(ws.ID)
	if err != nil {
		t.Fatal(err)
	}
	if export.FormatVersion != entity.ExportFormatVersion {
		t.Fatalf("formatVersion = %d", export.FormatVersion)
	}
	if export.ExportedAt.IsZero() {
		t.Fatal("exportedAt not stamped")
	}
	if export.Workspace.ID != ws.ID {
		t.Fatalf("workspace = %v", export.Workspace)
	}
	if len(export.Pages) != 2 {
		t.Fatalf("pages = %d", len(export.Pages))
	}
	if len(export.Databases) != 1 || export.Databases[0].PageID != dbPage.ID {
		t.Fatalf("databases = %v", export.Databases)
	}
	if len(export.Rows) != 1 || export.Rows[0].ID != row.ID {
		t.Fatalf("rows = %v", export.Rows)
	}
	if export.Settings == nil {
		t.Fatal("settings missing")
	}

	// Export is a pure read.
	got, err := s.GetPage(page.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Updated.Equal(page.Updated) {
		t.Fatal("source mutated by export")
	}
}

func TestExportPage(t *testing.T) {
	ctx := t.Context()
	s, ws, e := newFixture(t)
	root := makePage(t, ctx, s, ws, "Root", 0)
	child := makePage(t, ctx, s, ws, "Child", root.ID)
	makePage(t, ctx, s, ws, "Grand", child.ID)
	makePage(t, ctx, s, ws, "Unrelated", 0)

	t.Run("without children", func(t *testing.T) {
		export, err := e.ExportPage(root.ID, false)
		if err != nil {
			t.Fatal(err)
		}
		if len(export.Pages) != 1 || export.Pages[0].ID != root.ID {
			t.Fatalf("pages = %v", export.Pages)
		}
	})
	t.Run("with children", func(t *testing.T) {
		export, err := e.ExportPage(root.ID, true)
		if err != nil {
			t.Fatal(err)
		}
		if len(export.Pages) != 3 {
			t.Fatalf("pages = %d", len(export.Pages))
		}
	})
}

func TestValidateExportFile(t *testing.T) {
	data := []struct {
		name  string
		input string
		valid bool
		errs  int
	}{
		{
			name:  "valid",
			input: `{"formatVersion":1,"workspace":{"name":"Home"},"pages":[]}`,
			valid: true,
		},
		{
			name:  "invalid JSON",
			input: `{`,
			errs:  1,
		},
		{
			name:  "wrong types accumulate",
			input: `{"formatVersion":"1","workspace":{"name":7},"pages":{}}`,
			errs:  3,
		},
		{
			name:  "missing everything",
			input: `{}`,
			errs:  3,
		},
	}
	for _, line := range data {
		t.Run(line.name, func(t *testing.T) {
			report := ValidateExportFile([]byte(line.input))
			if report.Valid != line.valid {
				t.Fatalf("valid = %v, errors = %v", report.Valid, report.Errors)
			}
			if !line.valid && len(report.Errors) != line.errs {
				t.Fatalf("errors = %v", report.Errors)
			}
		})
	}

	t.Run("summary", func(t *testing.T) {
		input := `{"formatVersion":1,"workspace":{"name":"Home"},"pages":[{},{}],"exportedAt":"2025-04-01T10:00:00Z"}`
		report := ValidateExportFile([]byte(input))
		if !report.Valid || report.PageCount != 2 || report.WorkspaceName != "Home" {
			t.Fatalf("report = %+v", report)
		}
		if report.ExportedAt.IsZero() {
			t.Fatal("exportedAt not parsed")
		}
	})
}

func TestImportReplaceRoundTrip(t *testing.T) {
	ctx := t.Context()
	s, ws, e := newFixture(t)
	makePage(t, ctx, s, ws, "Notes", 0)
	dbPage := makeDatabase(t, ctx, s, ws, "Tasks")
	makeRow(t, ctx, s, dbPage.ID, map[string]any{"status": "open"})

	export, err := e.ExportWorkspace(ws.ID)
	if err != nil {
		t.Fatal(err)
	}
	data, err := WriteExport(export)
	if err != nil {
		t.Fatal(err)
	}

	// Import into a fresh workspace.
	s2 := newStore(t)
	ws2 := makeWorkspace(t, ctx, s2)
	e2 := NewEngine(s2)
	result, err := e2.Import(ctx, ws2.ID, data, entity.ImportReplace)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.PagesAdded != 2 || result.RowsAdded != 1 || len(result.Conflicts) != 0 {
		t.Fatalf("result = %+v", result)
	}

	for _, p := range export.Pages {
		got, err := s2.GetPage(p.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Title != p.Title || !got.Updated.Equal(p.Updated) {
			t.Fatalf("page %v differs: %+v", p.ID, got)
		}
	}
	for _, r := range export.Rows {
		got, err := s2.GetRow(r.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Values["status"] != "open" {
			t.Fatalf("row %v differs: %+v", r.ID, got)
		}
	}
	if _, err := s2.GetDatabase(dbPage.ID); err != nil {
		t.Fatal(err)
	}
}

func TestImportReplaceClearsTarget(t *testing.T) {
	ctx := t.Context()
	s, ws, e := newFixture(t)
	stale := makePage(t, ctx, s, ws, "Stale", 0)

	export := exportDoc(t, ws, []*entity.Page{
		{ID: ksid.NewID(), WorkspaceID: ws.ID, Title: "Fresh", Kind: entity.KindPage, Updated: time.Now()},
	})
	result, err := e.Import(ctx, ws.ID, export, entity.ImportReplace)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.PagesAdded != 1 {
		t.Fatalf("result = %+v", result)
	}
	if _, err := s.GetPage(stale.ID); err == nil {
		t.Fatal("stale page survived replace")
	}
}

func TestImportMergeTimestampRule(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	data := []struct {
		name        string
		local, imp  time.Time
		wantUpdated int
		wantTitle   string
	}{
		{"imported newer wins", older, newer, 1, "Imported"},
		{"imported older keeps local", newer, older, 0, "Local"},
		{"tie keeps local", older, older, 0, "Local"},
	}
	for _, line := range data {
		t.Run(line.name, func(t *testing.T) {
			ctx := t.Context()
			s, ws, e := newFixture(t)
			id := ksid.NewID()
			local := &entity.Page{ID: id, WorkspaceID: ws.ID, Title: "Local", Kind: entity.KindPage, Updated: line.local}
			if err := s.UpsertPage(ctx, local); err != nil {
				t.Fatal(err)
			}

			doc := exportDoc(t, ws, []*entity.Page{
				{ID: id, WorkspaceID: ws.ID, Title: "Imported", Kind: entity.KindPage, Updated: line.imp},
			})
			result, err := e.Import(ctx, ws.ID, doc, entity.ImportMerge)
			if err != nil {
				t.Fatal(err)
			}
			if !result.Success || result.PagesAdded != 0 || result.PagesUpdated != line.wantUpdated {
				t.Fatalf("result = %+v", result)
			}
			if len(result.Conflicts) != 1 {
				t.Fatalf("conflicts = %v", result.Conflicts)
			}
			c := result.Conflicts[0]
			if c.Kind != entity.ConflictPage || c.ID != id {
				t.Fatalf("conflict = %+v", c)
			}
			if !c.LocalUpdated.Equal(line.local) || !c.ImportedUpdated.Equal(line.imp) {
				t.Fatalf("conflict timestamps = %+v", c)
			}
			got, err := s.GetPage(id)
			if err != nil {
				t.Fatal(err)
			}
			if got.Title != line.wantTitle {
				t.Fatalf("title = %q", got.Title)
			}
		})
	}
}

func TestImportMergeNewPage(t *testing.T) {
	ctx := t.Context()
	s, ws, e := newFixture(t)
	a := makePage(t, ctx, s, ws, "A", 0)

	doc := exportDoc(t, ws, []*entity.Page{
		a,
		{ID: ksid.NewID(), WorkspaceID: ws.ID, Title: "B", Kind: entity.KindPage, Updated: time.Now()},
	})
	result, err := e.Import(ctx, ws.ID, doc, entity.ImportMerge)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.PagesAdded != 1 || result.PagesUpdated != 0 {
		t.Fatalf("result = %+v", result)
	}
	pages, err := s.ListPages(ws.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 {
		t.Fatalf("pages = %d", len(pages))
	}
}

func TestImportMergeRows(t *testing.T) {
	ctx := t.Context()
	s, ws, e := newFixture(t)
	dbPage := makeDatabase(t, ctx, s, ws, "Tasks")
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	local := &entity.Row{ID: ksid.NewID(), DatabasePageID: dbPage.ID, Values: map[string]any{"status": "local"}, Updated: older}
	if err := s.UpsertRow(ctx, local); err != nil {
		t.Fatal(err)
	}

	export := &entity.WorkspaceExport{
		FormatVersion: entity.ExportFormatVersion,
		ExportedAt:    time.Now(),
		Workspace:     ws,
		Pages:         []*entity.Page{},
		Databases:     []*entity.Database{},
		Rows: []*entity.Row{
			{ID: local.ID, DatabasePageID: dbPage.ID, Values: map[string]any{"status": "imported"}, Updated: newer},
			{ID: ksid.NewID(), DatabasePageID: dbPage.ID, Values: map[string]any{"status": "new"}, Updated: newer},
		},
	}
	data, err := WriteExport(export)
	if err != nil {
		t.Fatal(err)
	}
	result, err := e.Import(ctx, ws.ID, data, entity.ImportMerge)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.RowsAdded != 1 || result.RowsUpdated != 1 {
		t.Fatalf("result = %+v", result)
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0].Kind != entity.ConflictRow {
		t.Fatalf("conflicts = %v", result.Conflicts)
	}
	got, err := s.GetRow(local.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Values["status"] != "imported" {
		t.Fatalf("row = %+v", got)
	}
}

func TestImportRejectsBadDocument(t *testing.T) {
	ctx := t.Context()
	s, ws, e := newFixture(t)
	existing := makePage(t, ctx, s, ws, "Existing", 0)

	for _, input := range []string{`not json`, `{"formatVersion":"x"}`} {
		result, err := e.Import(ctx, ws.ID, []byte(input), entity.ImportMerge)
		if err != nil {
			t.Fatal(err)
		}
		if result.Success || len(result.Errors) == 0 {
			t.Fatalf("result = %+v", result)
		}
		if result.PagesAdded+result.PagesUpdated+result.RowsAdded+result.RowsUpdated != 0 {
			t.Fatalf("counters moved: %+v", result)
		}
	}
	// Nothing was written.
	pages, err := s.ListPages(ws.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 1 || pages[0].ID != existing.ID {
		t.Fatalf("pages = %v", pages)
	}
}

func TestToMarkdown(t *testing.T) {
	data := []struct {
		name   string
		blocks []entity.Block
		want   string
	}{
		{
			name:   "paragraph",
			blocks: []entity.Block{{Kind: entity.BlockParagraph, Text: spans("hello")}},
			want:   "hello\n\n",
		},
		{
			name:   "heading level capped at six",
			blocks: []entity.Block{{Kind: entity.BlockHeading, Level: 9, Text: spans("deep")}},
			want:   "###### deep\n\n",
		},
		{
			name:   "heading level defaults to one",
			blocks: []entity.Block{{Kind: entity.BlockHeading, Text: spans("top")}},
			want:   "# top\n\n",
		},
		{
			name: "checklist",
			blocks: []entity.Block{
				{Kind: entity.BlockChecklistItem, Checked: true, Text: spans("done")},
				{Kind: entity.BlockChecklistItem, Text: spans("todo")},
			},
			want: "- [x] done\n- [ ] todo\n",
		},
		{
			name: "numbered list counts",
			blocks: []entity.Block{
				{Kind: entity.BlockNumberedItem, Text: spans("one")},
				{Kind: entity.BlockNumberedItem, Text: spans("two")},
			},
			want: "1. one\n2. two\n",
		},
		{
			name:   "code block",
			blocks: []entity.Block{{Kind: entity.BlockCode, Language: "go", Text: spans("x := 1")}},
			want:   "```go\nx := 1\n```\n\n",
		},
		{
			name:   "image and divider",
			blocks: []entity.Block{{Kind: entity.BlockImage, URL: "a.png", Alt: "alt"}, {Kind: entity.BlockDivider}},
			want:   "![alt](a.png)\n\n---\n\n",
		},
		{
			name:   "quote",
			blocks: []entity.Block{{Kind: entity.BlockQuote, Text: spans("wise words")}},
			want:   "> wise words\n\n",
		},
		{
			name: "nested children indent",
			blocks: []entity.Block{
				{Kind: entity.BlockListItem, Text: spans("parent"), Children: []entity.Block{
					{Kind: entity.BlockListItem, Text: spans("child")},
				}},
			},
			want: "- parent\n  - child\n",
		},
		{
			name: "table rows",
			blocks: []entity.Block{
				{Kind: entity.BlockTable, Children: []entity.Block{
					{Kind: entity.BlockTableRow, Cells: [][]entity.Span{spans("a"), spans("b")}},
				}},
			},
			want: "| a | b |\n",
		},
		{
			name: "inline styles",
			blocks: []entity.Block{{Kind: entity.BlockParagraph, Text: []entity.Span{
				{Text: "b", Bold: true},
				{Text: "i", Italic: true},
				{Text: "c", Code: true},
				{Text: "s", Strikethrough: true},
				{Text: "l", Href: "http://x"},
			}}},
			want: "**b***i*`c`~~s~~[l](http://x)\n\n",
		},
	}
	for _, line := range data {
		t.Run(line.name, func(t *testing.T) {
			doc := entity.BlockDocument{FormatVersion: entity.BlockFormatVersion, Blocks: line.blocks}
			if got := ToMarkdown(doc); got != line.want {
				t.Fatalf("got %q, want %q", got, line.want)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	data := []struct {
		in, want string
	}{
		{"Hello World", "hello-world"},
		{"Q3 Plans!", "q3-plans-"},
		{"already-fine", "already-fine"},
		{"", ""},
	}
	for _, line := range data {
		if got := Slugify(line.in); got != line.want {
			t.Fatalf("Slugify(%q) = %q, want %q", line.in, got, line.want)
		}
	}
}

func TestFileNames(t *testing.T) {
	day := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	if got := WorkspaceFileName(day); got != "potion-workspace-2025-04-01.json" {
		t.Fatalf("got %q", got)
	}
	if got := PageFileName("My Page", day); got != "potion-my-page-2025-04-01.json" {
		t.Fatalf("got %q", got)
	}
	if got := MarkdownFileName("My Page"); got != "my-page.md" {
		t.Fatalf("got %q", got)
	}
}

func TestExportSchema(t *testing.T) {
	data, err := ExportSchema()
	if err != nil {
		t.Fatal(err)
	}
	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		t.Fatal(err)
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema = %v", schema)
	}
	for _, key := range []string{"formatVersion", "workspace", "pages", "rows"} {
		if _, ok := props[key]; !ok {
			t.Fatalf("schema missing %q", key)
		}
	}
}

func spans(text string) []entity.Span {
	return []entity.Span{{Text: text}}
}

func exportDoc(t *testing.T, ws *entity.Workspace, pages []*entity.Page) []byte {
	t.Helper()
	export := &entity.WorkspaceExport{
		FormatVersion: entity.ExportFormatVersion,
		ExportedAt:    time.Now(),
		Workspace:     ws,
		Pages:         pages,
		Databases:     []*entity.Database{},
		Rows:          []*entity.Row{},
	}
	data, err := WriteExport(export)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	s := storage.NewStore(t.TempDir(), storage.Options{})
	if err := s.Init(t.Context()); err != nil {
		t.Fatal(err)
	}
	return s
}

func makeWorkspace(t *testing.T, ctx context.Context, s *storage.Store) *entity.Workspace {
	t.Helper()
	ws := &entity.Workspace{
		ID:            ksid.NewID(),
		Name:          "Test",
		Created:       time.Now(),
		Updated:       time.Now(),
		SchemaVersion: entity.SchemaVersion,
	}
	if err := s.UpsertWorkspace(ctx, ws); err != nil {
		t.Fatal(err)
	}
	return ws
}

func newFixture(t *testing.T) (*storage.Store, *entity.Workspace, *Engine) {
	t.Helper()
	s := newStore(t)
	ws := makeWorkspace(t, t.Context(), s)
	return s, ws, NewEngine(s)
}

func makePage(t *testing.T, ctx context.Context, s *storage.Store, ws *entity.Workspace, title string, parent ksid.ID) *entity.Page {
	t.Helper()
	p := &entity.Page{
		ID:          ksid.NewID(),
		WorkspaceID: ws.ID,
		ParentID:    parent,
		Title:       title,
		Kind:        entity.KindPage,
		Content:     entity.EmptyDocument(),
		Created:     time.Now(),
		Updated:     time.Now(),
	}
	if err := s.UpsertPage(ctx, p); err != nil {
		t.Fatal(err)
	}
	return p
}

func makeDatabase(t *testing.T, ctx context.Context, s *storage.Store, ws *entity.Workspace, title string) *entity.Page {
	t.Helper()
	p := &entity.Page{
		ID:          ksid.NewID(),
		WorkspaceID: ws.ID,
		Title:       title,
		Kind:        entity.KindDatabase,
		Created:     time.Now(),
		Updated:     time.Now(),
	}
	if err := s.UpsertPage(ctx, p); err != nil {
		t.Fatal(err)
	}
	db := &entity.Database{
		PageID: p.ID,
		Properties: []entity.PropertyDefinition{
			{ID: "status", Name: "Status", Type: entity.PropertySelect},
		},
	}
	if err := s.UpsertDatabase(ctx, db); err != nil {
		t.Fatal(err)
	}
	return p
}

func makeRow(t *testing.T, ctx context.Context, s *storage.Store, dbPageID ksid.ID, values map[string]any) *entity.Row {
	t.Helper()
	r := &entity.Row{
		ID:             ksid.NewID(),
		DatabasePageID: dbPageID,
		Values:         values,
		Created:        time.Now(),
		Updated:        time.Now(),
	}
	if err := s.UpsertRow(ctx, r); err != nil {
		t.Fatal(err)
	}
	return r
}

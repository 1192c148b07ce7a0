// Package porter produces and consumes portable workspace export files and
// implements the deterministic merge used on import.
package porter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/maruel/ksid"
	"github.com/potionhq/potion/internal/entity"
	"github.com/potionhq/potion/internal/storage"
)

// Engine runs exports and imports against the storage adapter. It holds no
// state of its own.
type Engine struct {
	store storage.Adapter
}

// NewEngine returns an engine over the given adapter.
func NewEngine(store storage.Adapter) *Engine {
	return &Engine{store: store}
}

// ExportWorkspace snapshots the whole workspace. Pure read, no mutation of
// source data.
func (e *Engine) ExportWorkspace(workspaceID ksid.ID) (*entity.WorkspaceExport, error) {
	ws, err := e.store.GetWorkspace(workspaceID)
	if err != nil {
		return nil, err
	}
	summaries, err := e.store.ListPages(workspaceID)
	if err != nil {
		return nil, err
	}
	out := &entity.WorkspaceExport{
		FormatVersion: entity.ExportFormatVersion,
		ExportedAt:    time.Now(),
		Workspace:     ws,
		Pages:         []*entity.Page{},
		Databases:     []*entity.Database{},
		Rows:          []*entity.Row{},
	}
	for _, s := range summaries {
		if err := e.collectPage(out, s.ID); err != nil {
			return nil, err
		}
	}
	settings, err := e.store.GetSettings()
	if err != nil {
		return nil, err
	}
	out.Settings = settings
	return out, nil
}

// ExportPage snapshots one page, optionally with its full descendant
// subtree. Database pages bring their schema and rows along.
func (e *Engine) ExportPage(pageID ksid.ID, includeChildren bool) (*entity.WorkspaceExport, error) {
	p, err := e.store.GetPage(pageID)
	if err != nil {
		return nil, err
	}
	ws, err := e.store.GetWorkspace(p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	out := &entity.WorkspaceExport{
		FormatVersion: entity.ExportFormatVersion,
		ExportedAt:    time.Now(),
		Workspace:     ws,
		Pages:         []*entity.Page{},
		Databases:     []*entity.Database{},
		Rows:          []*entity.Row{},
	}
	if err := e.collectPage(out, pageID); err != nil {
		return nil, err
	}
	if includeChildren {
		if err := e.collectDescendants(out, pageID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// collectPage appends the page and, when it is a database, its schema and
// rows.
func (e *Engine) collectPage(out *entity.WorkspaceExport, pageID ksid.ID) error {
	p, err := e.store.GetPage(pageID)
	if err != nil {
		return err
	}
	out.Pages = append(out.Pages, p)
	if p.Kind != entity.KindDatabase {
		return nil
	}
	db, err := e.store.GetDatabase(pageID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	out.Databases = append(out.Databases, db)
	rows, err := e.store.ListRows(pageID)
	if err != nil {
		return err
	}
	out.Rows = append(out.Rows, rows...)
	return nil
}

func (e *Engine) collectDescendants(out *entity.WorkspaceExport, pageID ksid.ID) error {
	children, err := e.store.GetChildPages(pageID)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := e.collectPage(out, c.ID); err != nil {
			return err
		}
		if err := e.collectDescendants(out, c.ID); err != nil {
			return err
		}
	}
	return nil
}

// WriteExport marshals an export document with indentation for a readable
// backup file.
func WriteExport(export *entity.WorkspaceExport) ([]byte, error) {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding export: %w", err)
	}
	return append(data, '\n'), nil
}

// Import loads an export document into the target workspace. Parse and
// validation failures populate the result's Errors with Success false and
// write nothing; storage failures mid-import are returned as errors.
func (e *Engine) Import(ctx context.Context, workspaceID ksid.ID, data []byte, mode entity.ImportMode) (*entity.ImportResult, error) {
	result := &entity.ImportResult{}

	report := ValidateExportFile(data)
	if !report.Valid {
		result.Errors = report.Errors
		return result, nil
	}
	var export entity.WorkspaceExport
	if err := json.Unmarshal(data, &export); err != nil {
		result.Errors = append(result.Errors, "invalid export document: "+err.Error())
		return result, nil
	}
	if _, err := e.store.GetWorkspace(workspaceID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			result.Errors = append(result.Errors, "target workspace does not exist")
			return result, nil
		}
		return nil, err
	}

	switch mode {
	case entity.ImportReplace:
		if err := e.importReplace(ctx, workspaceID, &export, result); err != nil {
			return nil, err
		}
	case entity.ImportMerge:
		if err := e.importMerge(ctx, workspaceID, &export, result); err != nil {
			return nil, err
		}
	default:
		result.Errors = append(result.Errors, fmt.Sprintf("unknown import mode %q", mode))
		return result, nil
	}
	if export.Settings != nil {
		if err := e.store.UpsertSettings(ctx, export.Settings); err != nil {
			return nil, err
		}
	}
	result.Success = true
	return result, nil
}

// importReplace clears the workspace then inserts every entity unchanged,
// keeping original ids.
func (e *Engine) importReplace(ctx context.Context, workspaceID ksid.ID, export *entity.WorkspaceExport, result *entity.ImportResult) error {
	summaries, err := e.store.ListPages(workspaceID)
	if err != nil {
		return err
	}
	for _, s := range summaries {
		if s.Kind == entity.KindDatabase {
			rows, err := e.store.ListRows(s.ID)
			if err != nil {
				return err
			}
			for _, r := range rows {
				if err := e.store.DeleteRow(ctx, r.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
					return err
				}
			}
			if err := e.store.DeleteDatabase(ctx, s.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}
		}
		if err := e.store.DeletePage(ctx, s.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}

	for _, p := range export.Pages {
		p = p.Clone()
		p.WorkspaceID = workspaceID
		if err := e.store.UpsertPage(ctx, p); err != nil {
			return err
		}
		result.PagesAdded++
	}
	schemas := make(map[ksid.ID]*entity.Database, len(export.Databases))
	for _, db := range export.Databases {
		if err := e.store.UpsertDatabase(ctx, db); err != nil {
			return err
		}
		schemas[db.PageID] = db
	}
	for _, r := range export.Rows {
		r = r.Clone()
		if db := schemas[r.DatabasePageID]; db != nil {
			r.NormalizeValues(db.Properties)
		}
		if err := e.store.UpsertRow(ctx, r); err != nil {
			return err
		}
		result.RowsAdded++
	}
	return nil
}

// importMerge unions the export with local data, id by id, newest updatedAt
// winning. Pages first, then databases, then rows, so a merged database
// exists before its rows are evaluated. Nothing is ever deleted.
func (e *Engine) importMerge(ctx context.Context, workspaceID ksid.ID, export *entity.WorkspaceExport, result *entity.ImportResult) error {
	// Track which imported pages won so their database schemas follow.
	pageWon := map[ksid.ID]bool{}

	for _, imported := range export.Pages {
		local, err := e.store.GetPage(imported.ID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			p := imported.Clone()
			p.WorkspaceID = workspaceID
			if err := e.store.UpsertPage(ctx, p); err != nil {
				return err
			}
			result.PagesAdded++
			pageWon[imported.ID] = true
			continue
		}
		result.Conflicts = append(result.Conflicts, entity.ImportConflict{
			Kind:            entity.ConflictPage,
			ID:              imported.ID,
			LocalUpdated:    local.Updated,
			ImportedUpdated: imported.Updated,
			LocalTitle:      local.Title,
			ImportedTitle:   imported.Title,
		})
		// Strictly newer imported wins; a tie keeps local.
		if imported.Updated.After(local.Updated) {
			p := imported.Clone()
			p.WorkspaceID = workspaceID
			if err := e.store.UpsertPage(ctx, p); err != nil {
				return err
			}
			result.PagesUpdated++
			pageWon[imported.ID] = true
		}
	}

	for _, db := range export.Databases {
		if _, err := e.store.GetDatabase(db.PageID); err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			if err := e.store.UpsertDatabase(ctx, db); err != nil {
				return err
			}
			continue
		}
		// Schemas carry no timestamp; they follow their owning page.
		if pageWon[db.PageID] {
			if err := e.store.UpsertDatabase(ctx, db); err != nil {
				return err
			}
		}
	}

	pageTitle := func(id ksid.ID) string {
		if id.IsZero() {
			return ""
		}
		if p, err := e.store.GetPage(id); err == nil {
			return p.Title
		}
		return ""
	}
	importedTitles := map[ksid.ID]string{}
	for _, p := range export.Pages {
		importedTitles[p.ID] = p.Title
	}

	normalized := func(r *entity.Row) *entity.Row {
		r = r.Clone()
		if db, err := e.store.GetDatabase(r.DatabasePageID); err == nil {
			r.NormalizeValues(db.Properties)
		}
		return r
	}
	for _, imported := range export.Rows {
		local, err := e.store.GetRow(imported.ID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			if err := e.store.UpsertRow(ctx, normalized(imported)); err != nil {
				return err
			}
			result.RowsAdded++
			continue
		}
		result.Conflicts = append(result.Conflicts, entity.ImportConflict{
			Kind:            entity.ConflictRow,
			ID:              imported.ID,
			LocalUpdated:    local.Updated,
			ImportedUpdated: imported.Updated,
			LocalTitle:      pageTitle(local.PageID),
			ImportedTitle:   importedTitles[imported.PageID],
		})
		if imported.Updated.After(local.Updated) {
			if err := e.store.UpsertRow(ctx, normalized(imported)); err != nil {
				return err
			}
			result.RowsUpdated++
		}
	}
	return nil
}

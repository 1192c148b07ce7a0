package entity

import (
	"time"

	"github.com/maruel/ksid"
)

// ExportFormatVersion is the current version of the export file format.
const ExportFormatVersion = 1

// WorkspaceExport is the self-contained snapshot of a workspace written by
// an export and consumed by an import.
type WorkspaceExport struct {
	FormatVersion int         `json:"formatVersion" jsonschema:"description=Export file format version"`
	ExportedAt    time.Time   `json:"exportedAt" jsonschema:"description=Snapshot time"`
	Workspace     *Workspace  `json:"workspace" jsonschema:"description=Workspace metadata"`
	Pages         []*Page     `json:"pages" jsonschema:"description=All pages of the workspace"`
	Databases     []*Database `json:"databases" jsonschema:"description=All database schemas"`
	Rows          []*Row      `json:"rows" jsonschema:"description=All database rows"`
	Settings      *Settings   `json:"settings,omitempty" jsonschema:"description=User settings if included"`
}

// ImportMode selects how an import treats existing local data.
type ImportMode string

const (
	// ImportReplace discards local workspace data before loading the export.
	ImportReplace ImportMode = "replace"
	// ImportMerge combines the export with local data, newest update wins.
	ImportMerge ImportMode = "merge"
)

// ConflictKind identifies the entity kind of an import conflict.
type ConflictKind string

const (
	// ConflictPage marks a conflict between two pages with the same id.
	ConflictPage ConflictKind = "page"
	// ConflictRow marks a conflict between two rows with the same id.
	ConflictRow ConflictKind = "row"
)

// ImportConflict records one id collision encountered during a merge and
// which side's update time was newer.
type ImportConflict struct {
	Kind            ConflictKind `json:"entityKind" jsonschema:"description=Conflicting entity kind"`
	ID              ksid.ID      `json:"id" jsonschema:"description=Colliding identifier"`
	LocalUpdated    time.Time    `json:"localUpdatedAt" jsonschema:"description=Local update time"`
	ImportedUpdated time.Time    `json:"importedUpdatedAt" jsonschema:"description=Imported update time"`
	LocalTitle      string       `json:"localTitle,omitempty" jsonschema:"description=Local title"`
	ImportedTitle   string       `json:"importedTitle,omitempty" jsonschema:"description=Imported title"`
}

// ImportResult summarizes the outcome of an import.
type ImportResult struct {
	Success      bool             `json:"success"`
	PagesAdded   int              `json:"pagesAdded"`
	PagesUpdated int              `json:"pagesUpdated"`
	RowsAdded    int              `json:"rowsAdded"`
	RowsUpdated  int              `json:"rowsUpdated"`
	Conflicts    []ImportConflict `json:"conflicts,omitempty"`
	Errors       []string         `json:"errors,omitempty"`
}

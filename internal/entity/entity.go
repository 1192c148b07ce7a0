// Package entity defines the persisted data model for the potion workspace:
// workspaces, pages, databases, rows, views and the export document.
package entity

import (
	"time"

	"github.com/maruel/ksid"
)

// SchemaVersion is the current version of the persisted data model.
const SchemaVersion = 1

// Workspace is the top-level container. One per installation in practice,
// but the model supports many.
type Workspace struct {
	ID            ksid.ID   `json:"id" jsonschema:"description=Unique workspace identifier"`
	Name          string    `json:"name" jsonschema:"description=Workspace display name"`
	Created       time.Time `json:"createdAt" jsonschema:"description=Creation timestamp"`
	Updated       time.Time `json:"updatedAt" jsonschema:"description=Last modification timestamp"`
	SchemaVersion int       `json:"schemaVersion" jsonschema:"description=Data model version"`
}

// Clone returns a copy of the Workspace.
func (w *Workspace) Clone() *Workspace {
	c := *w
	return &c
}

// GetID returns the Workspace's ID.
func (w *Workspace) GetID() ksid.ID {
	return w.ID
}

// Validate checks that the Workspace is valid.
func (w *Workspace) Validate() error {
	if w.ID.IsZero() {
		return errIDRequired
	}
	if w.Name == "" {
		return errNameRequired
	}
	return nil
}

// PageKind distinguishes plain pages from database pages.
type PageKind string

const (
	// KindPage is a regular rich-content page.
	KindPage PageKind = "page"
	// KindDatabase is a page backed by a Database record.
	KindDatabase PageKind = "database"
)

// Page is a titled node in the workspace hierarchy. A zero ParentID means
// the page sits at the workspace root.
type Page struct {
	ID          ksid.ID       `json:"id" jsonschema:"description=Unique page identifier"`
	WorkspaceID ksid.ID       `json:"workspaceId" jsonschema:"description=Owning workspace"`
	ParentID    ksid.ID       `json:"parentPageId,omitempty" jsonschema:"description=Parent page for hierarchical structure"`
	Title       string        `json:"title" jsonschema:"description=Page title"`
	Kind        PageKind      `json:"kind" jsonschema:"description=Page kind (page/database)"`
	Favorite    bool          `json:"isFavorite,omitempty" jsonschema:"description=Whether the page is favorited"`
	Icon        string        `json:"icon,omitempty" jsonschema:"description=Emoji or icon identifier"`
	CoverImage  string        `json:"coverImage,omitempty" jsonschema:"description=Cover image reference"`
	Content     BlockDocument `json:"content" jsonschema:"description=Rich-text block document"`
	Created     time.Time     `json:"createdAt" jsonschema:"description=Creation timestamp"`
	Updated     time.Time     `json:"updatedAt" jsonschema:"description=Last modification timestamp"`
}

// Clone returns a deep copy of the Page.
func (p *Page) Clone() *Page {
	c := *p
	c.Content = p.Content.Clone()
	return &c
}

// GetID returns the Page's ID.
func (p *Page) GetID() ksid.ID {
	return p.ID
}

// Validate checks that the Page is valid.
func (p *Page) Validate() error {
	if p.ID.IsZero() {
		return errIDRequired
	}
	if p.WorkspaceID.IsZero() {
		return errWorkspaceIDRequired
	}
	if p.Kind != KindPage && p.Kind != KindDatabase {
		return errInvalidPageKind
	}
	return nil
}

// Summary returns the PageSummary projection of the page.
func (p *Page) Summary() *PageSummary {
	return &PageSummary{
		ID:          p.ID,
		WorkspaceID: p.WorkspaceID,
		ParentID:    p.ParentID,
		Title:       p.Title,
		Kind:        p.Kind,
		Favorite:    p.Favorite,
		Icon:        p.Icon,
		CoverImage:  p.CoverImage,
		Created:     p.Created,
		Updated:     p.Updated,
	}
}

// PageSummary is a Page without its content. Used wherever full content is
// not needed, for cost control.
type PageSummary struct {
	ID          ksid.ID   `json:"id"`
	WorkspaceID ksid.ID   `json:"workspaceId"`
	ParentID    ksid.ID   `json:"parentPageId,omitempty"`
	Title       string    `json:"title"`
	Kind        PageKind  `json:"kind"`
	Favorite    bool      `json:"isFavorite,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	CoverImage  string    `json:"coverImage,omitempty"`
	Created     time.Time `json:"createdAt"`
	Updated     time.Time `json:"updatedAt"`
}

// Clone returns a copy of the PageSummary.
func (p *PageSummary) Clone() *PageSummary {
	c := *p
	return &c
}

// Settings is the single-row application configuration. It carries no core
// logic but travels with exports.
type Settings struct {
	ID               ksid.ID `json:"id" jsonschema:"description=Settings row identifier"`
	Theme            string  `json:"theme,omitempty" jsonschema:"description=UI theme name"`
	FontSize         int     `json:"fontSize,omitempty" jsonschema:"description=Editor font size"`
	EditorWidth      string  `json:"editorWidth,omitempty" jsonschema:"description=Editor width preset"`
	SidebarCollapsed bool    `json:"sidebarCollapsed,omitempty" jsonschema:"description=Whether the sidebar is collapsed"`
}

// DefaultSettings returns the settings used before any were saved.
func DefaultSettings() *Settings {
	return &Settings{
		ID:          1,
		Theme:       "light",
		FontSize:    16,
		EditorWidth: "normal",
	}
}

// Clone returns a copy of the Settings.
func (s *Settings) Clone() *Settings {
	c := *s
	return &c
}

// GetID returns the Settings' ID.
func (s *Settings) GetID() ksid.ID {
	return s.ID
}

// Validate checks that the Settings row is valid.
func (s *Settings) Validate() error {
	if s.ID.IsZero() {
		return errIDRequired
	}
	return nil
}

// Stats summarizes store contents.
type Stats struct {
	WorkspaceCount     int   `json:"workspaceCount"`
	PageCount          int   `json:"pageCount"`
	DatabaseCount      int   `json:"databaseCount"`
	RowCount           int   `json:"rowCount"`
	EstimatedSizeBytes int64 `json:"estimatedSizeBytes"`
}

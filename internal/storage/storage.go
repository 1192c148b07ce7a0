// Package storage persists the workspace data model.
//
// The Adapter interface is the storage contract the rest of the system is
// written against. Store is the JSONL backed implementation, optionally
// versioned with git.
package storage

import (
	"context"
	"errors"

	"github.com/maruel/ksid"
	"github.com/potionhq/potion/internal/entity"
)

// ErrNotFound is returned when the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrUninitialized is returned when the store is used before Init.
var ErrUninitialized = errors.New("store is not initialized")

// Adapter is the persistence contract for the workspace data model.
// Reads return copies that the caller owns. Mutations are atomic per call
// and validate the entity before persisting.
type Adapter interface {
	// Init prepares the backing storage. It must be called before any
	// other operation and is idempotent.
	Init(ctx context.Context) error

	GetWorkspace(id ksid.ID) (*entity.Workspace, error)
	UpsertWorkspace(ctx context.Context, ws *entity.Workspace) error
	// DeleteWorkspace removes the workspace and everything it contains.
	DeleteWorkspace(ctx context.Context, id ksid.ID) error
	ListWorkspaces() ([]*entity.Workspace, error)

	GetPage(id ksid.ID) (*entity.Page, error)
	UpsertPage(ctx context.Context, p *entity.Page) error
	DeletePage(ctx context.Context, id ksid.ID) error
	// ListPages returns summaries of every page in the workspace.
	ListPages(workspaceID ksid.ID) ([]*entity.PageSummary, error)
	// GetChildPages returns summaries of the direct children of a page.
	GetChildPages(parentID ksid.ID) ([]*entity.PageSummary, error)
	// SearchPages returns summaries of pages whose title or content
	// contains the query, case-insensitively.
	SearchPages(workspaceID ksid.ID, query string) ([]*entity.PageSummary, error)

	GetDatabase(pageID ksid.ID) (*entity.Database, error)
	UpsertDatabase(ctx context.Context, db *entity.Database) error
	DeleteDatabase(ctx context.Context, pageID ksid.ID) error

	GetRow(id ksid.ID) (*entity.Row, error)
	UpsertRow(ctx context.Context, r *entity.Row) error
	DeleteRow(ctx context.Context, id ksid.ID) error
	ListRows(databasePageID ksid.ID) ([]*entity.Row, error)

	GetSettings() (*entity.Settings, error)
	UpsertSettings(ctx context.Context, s *entity.Settings) error

	Stats() (*entity.Stats, error)
}

package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maruel/ksid"
	"github.com/potionhq/potion/internal/entity"
	"github.com/potionhq/potion/internal/storage"
)

// Structural violations are distinct from not-found so callers can tell
// user error apart from a missing page.
var (
	// ErrSelfParent is returned when a page is moved under itself.
	ErrSelfParent = errors.New("page cannot be its own parent")
	// ErrCycle is returned when a move would make a page its own ancestor.
	ErrCycle = errors.New("move would create a cycle")

	errParentWorkspace = errors.New("parent page belongs to a different workspace")
	errParentLoop      = errors.New("parent chain already contains a loop")
)

// Manager enforces the page tree invariants. It holds no state of its own;
// every operation reads and writes through the adapter.
type Manager struct {
	store storage.Adapter
}

// NewManager returns a manager over the given adapter.
func NewManager(store storage.Adapter) *Manager {
	return &Manager{store: store}
}

// Move re-parents a page. Structural violations are rejected before any
// write. A zero newParentID moves the page to the workspace root.
func (m *Manager) Move(ctx context.Context, pageID, newParentID ksid.ID) error {
	if newParentID == pageID {
		return ErrSelfParent
	}
	p, err := m.store.GetPage(pageID)
	if err != nil {
		return err
	}
	if !newParentID.IsZero() {
		parent, err := m.store.GetPage(newParentID)
		if err != nil {
			return fmt.Errorf("new parent: %w", err)
		}
		if parent.WorkspaceID != p.WorkspaceID {
			return errParentWorkspace
		}
		if err := m.checkCycle(p.WorkspaceID, pageID, newParentID); err != nil {
			return err
		}
	}
	p.ParentID = newParentID
	p.Updated = time.Now()
	return m.store.UpsertPage(ctx, p)
}

// checkCycle walks the ancestors of candidate looking for pageID. The walk
// is iterative and bounded by the workspace page count so corrupted parent
// links are reported instead of looping forever.
func (m *Manager) checkCycle(workspaceID, pageID, candidate ksid.ID) error {
	pages, err := m.store.ListPages(workspaceID)
	if err != nil {
		return err
	}
	parents := make(map[ksid.ID]ksid.ID, len(pages))
	for _, p := range pages {
		parents[p.ID] = p.ParentID
	}
	visited := map[ksid.ID]bool{}
	for cur := candidate; !cur.IsZero(); cur = parents[cur] {
		if cur == pageID {
			return ErrCycle
		}
		if visited[cur] {
			return errParentLoop
		}
		visited[cur] = true
	}
	return nil
}

// Delete removes a page. With cascade, every transitive descendant is
// deleted depth-first, children before parents, and the full deleted id
// list is returned. Without cascade only the page itself is removed; the
// caller is expected to Orphan its children first. Database pages take
// their schema, rows and row detail pages with them.
func (m *Manager) Delete(ctx context.Context, pageID ksid.ID, cascade bool) ([]ksid.ID, error) {
	if _, err := m.store.GetPage(pageID); err != nil {
		return nil, err
	}
	order := []ksid.ID{pageID}
	if cascade {
		var err error
		if order, err = m.collectSubtree(pageID); err != nil {
			return nil, err
		}
	}
	deleted := make(map[ksid.ID]bool, len(order))
	ids := make([]ksid.ID, 0, len(order))
	for _, id := range order {
		if deleted[id] {
			continue
		}
		if err := m.deleteOne(ctx, id, deleted, &ids); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// collectSubtree returns the subtree rooted at pageID in post-order, so a
// partial failure never leaves a parent pointing at a deleted child.
func (m *Manager) collectSubtree(pageID ksid.ID) ([]ksid.ID, error) {
	var order []ksid.ID
	var walk func(id ksid.ID) error
	walk = func(id ksid.ID) error {
		children, err := m.store.GetChildPages(id)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := walk(c.ID); err != nil {
				return err
			}
		}
		order = append(order, id)
		return nil
	}
	if err := walk(pageID); err != nil {
		return nil, err
	}
	return order, nil
}

// deleteOne removes the page and, for database pages, its schema, rows and
// row detail pages. Rows' detail pages may also appear in the subtree walk,
// so deletions are tracked to stay idempotent within one cascade.
func (m *Manager) deleteOne(ctx context.Context, id ksid.ID, deleted map[ksid.ID]bool, ids *[]ksid.ID) error {
	p, err := m.store.GetPage(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if p.Kind == entity.KindDatabase {
		rows, err := m.store.ListRows(id)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if err := m.store.DeleteRow(ctx, r.ID); err != nil {
				return err
			}
			if r.PageID.IsZero() || deleted[r.PageID] {
				continue
			}
			if err := m.store.DeletePage(ctx, r.PageID); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					continue
				}
				return err
			}
			deleted[r.PageID] = true
			*ids = append(*ids, r.PageID)
		}
		if err := m.store.DeleteDatabase(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	if err := m.store.DeletePage(ctx, id); err != nil {
		return err
	}
	deleted[id] = true
	*ids = append(*ids, id)
	return nil
}

// Orphan promotes every direct child of a page to the workspace root and
// returns the affected children.
func (m *Manager) Orphan(ctx context.Context, pageID ksid.ID) ([]*entity.PageSummary, error) {
	if _, err := m.store.GetPage(pageID); err != nil {
		return nil, err
	}
	children, err := m.store.GetChildPages(pageID)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		p, err := m.store.GetPage(c.ID)
		if err != nil {
			return nil, err
		}
		p.ParentID = 0
		p.Updated = time.Now()
		if err := m.store.UpsertPage(ctx, p); err != nil {
			return nil, err
		}
		c.ParentID = 0
		c.Updated = p.Updated
	}
	return children, nil
}

// Duplicate shallow-copies a page under the same parent: new id, suffixed
// title, favorite flag reset, fresh timestamps, content copied verbatim.
// Descendants are not duplicated. Database pages get a copy of their schema
// but none of their rows.
func (m *Manager) Duplicate(ctx context.Context, pageID ksid.ID) (*entity.Page, error) {
	p, err := m.store.GetPage(pageID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	dup := p.Clone()
	dup.ID = ksid.NewID()
	dup.Title = p.Title + " (copy)"
	dup.Favorite = false
	dup.Created = now
	dup.Updated = now
	if err := m.store.UpsertPage(ctx, dup); err != nil {
		return nil, err
	}
	if p.Kind == entity.KindDatabase {
		db, err := m.store.GetDatabase(pageID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return dup, nil
			}
			return nil, err
		}
		copied := db.Clone()
		copied.PageID = dup.ID
		if err := m.store.UpsertDatabase(ctx, copied); err != nil {
			return nil, err
		}
	}
	return dup, nil
}

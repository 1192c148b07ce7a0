package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/maruel/ksid"
	"github.com/potionhq/potion/internal/entity"
	"github.com/potionhq/potion/internal/jsonldb"
)

// Table file names, relative to the data directory.
const (
	dbDir          = "db"
	workspacesFile = dbDir + "/workspaces.jsonl"
	pagesFile      = dbDir + "/pages.jsonl"
	databasesFile  = dbDir + "/databases.jsonl"
	rowsFile       = dbDir + "/rows.jsonl"
	settingsFile   = dbDir + "/settings.jsonl"
)

// settingsID keys the single settings record.
var settingsID = ksid.ID(1)

// Options configures a Store.
type Options struct {
	// Versioned enables git versioning of the data directory.
	Versioned bool
	// AuthorName and AuthorEmail sign version commits.
	AuthorName  string
	AuthorEmail string
}

// Store is the JSONL backed Adapter. One file per entity kind under
// <dataDir>/db, each wholly cached in memory by jsonldb.
type Store struct {
	dataDir string
	opts    Options

	repo       *Repo
	workspaces *jsonldb.Table[*entity.Workspace]
	pages      *jsonldb.Table[*entity.Page]
	databases  *jsonldb.Table[*entity.Database]
	rows       *jsonldb.Table[*entity.Row]
	settings   *jsonldb.Table[*entity.Settings]
}

var _ Adapter = (*Store)(nil)

// NewStore returns an unopened store rooted at dataDir. Call Init before use.
func NewStore(dataDir string, opts Options) *Store {
	return &Store{dataDir: dataDir, opts: opts}
}

// DataDir returns the root of the store.
func (s *Store) DataDir() string {
	return s.dataDir
}

// Init creates the data directory, opens every table and, when versioning is
// enabled, opens or initializes the git repository.
func (s *Store) Init(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Join(s.dataDir, dbDir), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	var err error
	if s.workspaces, err = jsonldb.NewTable[*entity.Workspace](filepath.Join(s.dataDir, workspacesFile)); err != nil {
		return err
	}
	if s.pages, err = jsonldb.NewTable[*entity.Page](filepath.Join(s.dataDir, pagesFile)); err != nil {
		return err
	}
	if s.databases, err = jsonldb.NewTable[*entity.Database](filepath.Join(s.dataDir, databasesFile)); err != nil {
		return err
	}
	if s.rows, err = jsonldb.NewTable[*entity.Row](filepath.Join(s.dataDir, rowsFile)); err != nil {
		return err
	}
	if s.settings, err = jsonldb.NewTable[*entity.Settings](filepath.Join(s.dataDir, settingsFile)); err != nil {
		return err
	}
	if s.opts.Versioned {
		if s.repo, err = OpenRepo(ctx, s.dataDir, s.opts.AuthorName, s.opts.AuthorEmail); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ready() error {
	if s.workspaces == nil {
		return ErrUninitialized
	}
	return nil
}

// commit records a version commit for the given table files when versioning
// is enabled.
func (s *Store) commit(ctx context.Context, msg string, files ...string) error {
	if s.repo == nil {
		return nil
	}
	return s.repo.CommitTx(ctx, func() (string, []string, error) {
		return msg, files, nil
	})
}

// History returns the version history of the store, newest first.
// Returns nil when versioning is disabled.
func (s *Store) History(ctx context.Context, n int) ([]*Commit, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.History(ctx, dbDir, n)
}

// Workspaces

func (s *Store) GetWorkspace(id ksid.ID) (*entity.Workspace, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ws, ok := s.workspaces.Get(id)
	if !ok {
		return nil, fmt.Errorf("workspace %s: %w", id, ErrNotFound)
	}
	return ws, nil
}

func (s *Store) UpsertWorkspace(ctx context.Context, ws *entity.Workspace) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.workspaces.Upsert(ws); err != nil {
		return err
	}
	return s.commit(ctx, "update: workspace "+ws.ID.String(), workspacesFile)
}

func (s *Store) DeleteWorkspace(ctx context.Context, id ksid.ID) error {
	if err := s.ready(); err != nil {
		return err
	}
	ok, err := s.workspaces.Delete(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("workspace %s: %w", id, ErrNotFound)
	}

	// Drop everything the workspace contains.
	var keptPages []*entity.Page
	owned := map[ksid.ID]bool{}
	for p := range s.pages.All() {
		if p.WorkspaceID == id {
			owned[p.ID] = true
			continue
		}
		keptPages = append(keptPages, p)
	}
	if err := s.pages.Replace(keptPages); err != nil {
		return err
	}
	var keptDBs []*entity.Database
	for db := range s.databases.All() {
		if !owned[db.PageID] {
			keptDBs = append(keptDBs, db)
		}
	}
	if err := s.databases.Replace(keptDBs); err != nil {
		return err
	}
	var keptRows []*entity.Row
	for r := range s.rows.All() {
		if !owned[r.DatabasePageID] {
			keptRows = append(keptRows, r)
		}
	}
	if err := s.rows.Replace(keptRows); err != nil {
		return err
	}
	return s.commit(ctx, "delete: workspace "+id.String(),
		workspacesFile, pagesFile, databasesFile, rowsFile)
}

func (s *Store) ListWorkspaces() ([]*entity.Workspace, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	out := []*entity.Workspace{}
	for ws := range s.workspaces.All() {
		out = append(out, ws)
	}
	return out, nil
}

// Pages

func (s *Store) GetPage(id ksid.ID) (*entity.Page, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	p, ok := s.pages.Get(id)
	if !ok {
		return nil, fmt.Errorf("page %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (s *Store) UpsertPage(ctx context.Context, p *entity.Page) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.pages.Upsert(p); err != nil {
		return err
	}
	return s.commit(ctx, "update: page "+p.ID.String(), pagesFile)
}

func (s *Store) DeletePage(ctx context.Context, id ksid.ID) error {
	if err := s.ready(); err != nil {
		return err
	}
	ok, err := s.pages.Delete(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("page %s: %w", id, ErrNotFound)
	}
	return s.commit(ctx, "delete: page "+id.String(), pagesFile)
}

func (s *Store) ListPages(workspaceID ksid.ID) ([]*entity.PageSummary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	out := []*entity.PageSummary{}
	for p := range s.pages.All() {
		if p.WorkspaceID == workspaceID {
			out = append(out, p.Summary())
		}
	}
	return out, nil
}

func (s *Store) GetChildPages(parentID ksid.ID) ([]*entity.PageSummary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	out := []*entity.PageSummary{}
	for p := range s.pages.All() {
		if p.ParentID == parentID && !parentID.IsZero() {
			out = append(out, p.Summary())
		}
	}
	return out, nil
}

func (s *Store) SearchPages(workspaceID ksid.ID, query string) ([]*entity.PageSummary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	out := []*entity.PageSummary{}
	if query == "" {
		return out, nil
	}
	for p := range s.pages.All() {
		if p.WorkspaceID != workspaceID {
			continue
		}
		if strings.Contains(strings.ToLower(p.Title), query) ||
			strings.Contains(strings.ToLower(p.Content.PlainText()), query) {
			out = append(out, p.Summary())
		}
	}
	return out, nil
}

// Databases

func (s *Store) GetDatabase(pageID ksid.ID) (*entity.Database, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	db, ok := s.databases.Get(pageID)
	if !ok {
		return nil, fmt.Errorf("database %s: %w", pageID, ErrNotFound)
	}
	return db, nil
}

func (s *Store) UpsertDatabase(ctx context.Context, db *entity.Database) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.databases.Upsert(db); err != nil {
		return err
	}
	return s.commit(ctx, "update: database "+db.PageID.String(), databasesFile)
}

func (s *Store) DeleteDatabase(ctx context.Context, pageID ksid.ID) error {
	if err := s.ready(); err != nil {
		return err
	}
	ok, err := s.databases.Delete(pageID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("database %s: %w", pageID, ErrNotFound)
	}
	return s.commit(ctx, "delete: database "+pageID.String(), databasesFile)
}

// Rows

func (s *Store) GetRow(id ksid.ID) (*entity.Row, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	r, ok := s.rows.Get(id)
	if !ok {
		return nil, fmt.Errorf("row %s: %w", id, ErrNotFound)
	}
	return r, nil
}

func (s *Store) UpsertRow(ctx context.Context, r *entity.Row) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.rows.Upsert(r); err != nil {
		return err
	}
	return s.commit(ctx, "update: row "+r.ID.String(), rowsFile)
}

func (s *Store) DeleteRow(ctx context.Context, id ksid.ID) error {
	if err := s.ready(); err != nil {
		return err
	}
	ok, err := s.rows.Delete(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("row %s: %w", id, ErrNotFound)
	}
	return s.commit(ctx, "delete: row "+id.String(), rowsFile)
}

func (s *Store) ListRows(databasePageID ksid.ID) ([]*entity.Row, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	out := []*entity.Row{}
	for r := range s.rows.All() {
		if r.DatabasePageID == databasePageID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Settings

// GetSettings returns the stored settings, or defaults when none were saved.
func (s *Store) GetSettings() (*entity.Settings, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if st, ok := s.settings.Get(settingsID); ok {
		return st, nil
	}
	return entity.DefaultSettings(), nil
}

func (s *Store) UpsertSettings(ctx context.Context, st *entity.Settings) error {
	if err := s.ready(); err != nil {
		return err
	}
	st = st.Clone()
	st.ID = settingsID
	if err := s.settings.Upsert(st); err != nil {
		return err
	}
	return s.commit(ctx, "update: settings", settingsFile)
}

// Stats

func (s *Store) Stats() (*entity.Stats, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	st := &entity.Stats{
		WorkspaceCount: s.workspaces.Len(),
		PageCount:      s.pages.Len(),
		RowCount:       s.rows.Len(),
	}
	// DatabaseCount overlaps PageCount: database pages count in both.
	for p := range s.pages.All() {
		if p.Kind == entity.KindDatabase {
			st.DatabaseCount++
		}
	}
	for _, name := range []string{workspacesFile, pagesFile, databasesFile, rowsFile, settingsFile} {
		if info, err := os.Stat(filepath.Join(s.dataDir, name)); err == nil {
			st.EstimatedSizeBytes += info.Size()
		}
	}
	return st, nil
}

// Reload re-reads every table from disk, discarding cached state. Used after
// an external process changed the files.
func (s *Store) Reload() error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, r := range []interface{ Reload() error }{
		s.workspaces, s.pages, s.databases, s.rows, s.settings,
	} {
		if err := r.Reload(); err != nil {
			return err
		}
	}
	return nil
}

// Package main is the entry point for the potion CLI.
//
// potion is a local-first document workspace: pages arranged in a tree,
// database pages with typed rows and saved views, and portable JSON
// exports with deterministic merge on import. Configuration is read from
// CLI flags and potion.yaml in the data directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/maruel/ksid"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/potionhq/potion/internal/config"
	"github.com/potionhq/potion/internal/entity"
	"github.com/potionhq/potion/internal/hierarchy"
	"github.com/potionhq/potion/internal/porter"
	"github.com/potionhq/potion/internal/query"
	"github.com/potionhq/potion/internal/storage"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "potion: %v\n", err)
		os.Exit(1)
	}
}

const usage = `usage: potion [flags] <command> [args]

Commands:
  init         Create the data directory and an initial workspace
  tree         Print the page tree
  add          Create an empty page
  move         Reparent a page
  delete       Delete a page, with -cascade for its whole subtree
  duplicate    Copy a page under the same parent
  search       Find pages by title or content substring
  stats        Print store statistics
  export       Export the whole workspace to JSON
  export-page  Export one page, optionally with its subtree
  import       Import an export file (merge or replace)
  validate     Check an export file without importing it
  rows         Print the rows of a database page, optionally through a saved view
  markdown     Render a page as Markdown
  history      Print the version history (requires versioning)
  watch        Reload and reprint the tree when the store changes on disk
  schema       Print the JSON Schema of the export format
  version      Print version and exit
`

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage, "\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if *version {
		printVersion()
		return nil
	}
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return errors.New("missing command")
	}
	if args[0] == "version" {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	setupLogger(ll)

	cfg, err := config.Load(*dataDir)
	if err != nil {
		return err
	}
	// Flags given explicitly win over potion.yaml.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if !set["log-level"] && cfg.LogLevel != "" {
		*logLevel = cfg.LogLevel
	}
	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", *logLevel)
	}

	store := storage.NewStore(*dataDir, storage.Options{
		Versioned:   cfg.Versioning,
		AuthorName:  cfg.Author.Name,
		AuthorEmail: cfg.Author.Email,
	})

	cmd, args := args[0], args[1:]
	if cmd == "init" {
		return cmdInit(ctx, store, cfg, *dataDir, args)
	}
	if cmd == "schema" {
		return cmdSchema()
	}
	if err := store.Init(ctx); err != nil {
		return err
	}

	switch cmd {
	case "tree":
		return cmdTree(store, args)
	case "add":
		return cmdAdd(ctx, store, args)
	case "move":
		return cmdMove(ctx, store, args)
	case "delete":
		return cmdDelete(ctx, store, args)
	case "duplicate":
		return cmdDuplicate(ctx, store, args)
	case "search":
		return cmdSearch(store, args)
	case "stats":
		return cmdStats(store)
	case "export":
		return cmdExport(store, args)
	case "export-page":
		return cmdExportPage(store, args)
	case "import":
		return cmdImport(ctx, store, args)
	case "validate":
		return cmdValidate(args)
	case "rows":
		return cmdRows(store, args)
	case "markdown":
		return cmdMarkdown(store, args)
	case "history":
		return cmdHistory(ctx, store, args)
	case "watch":
		return cmdWatch(ctx, store)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// setupLogger installs a tinted slog handler that drops empty attributes.
func setupLogger(ll *slog.LevelVar) {
	ll.Set(slog.LevelInfo)
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			val := a.Value.Any()
			skip := false
			switch t := val.(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case uint64:
				skip = t == 0
			case int64:
				skip = t == 0
			case float64:
				skip = t == 0
			case time.Time:
				skip = t.IsZero()
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)
}

func cmdInit(ctx context.Context, store *storage.Store, cfg *config.Config, dataDir string, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	name := fs.String("name", "My Workspace", "Workspace name")
	versioned := fs.Bool("versioning", cfg.Versioning, "Commit every change to a local git repository")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.DataDir = dataDir
	cfg.Versioning = *versioned
	if err := cfg.Save(dataDir); err != nil {
		return err
	}
	store = storage.NewStore(dataDir, storage.Options{
		Versioned:   cfg.Versioning,
		AuthorName:  cfg.Author.Name,
		AuthorEmail: cfg.Author.Email,
	})
	if err := store.Init(ctx); err != nil {
		return err
	}
	existing, err := store.ListWorkspaces()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("data directory already holds workspace %q", existing[0].Name)
	}
	now := time.Now()
	ws := &entity.Workspace{
		ID:            ksid.NewID(),
		Name:          *name,
		Created:       now,
		Updated:       now,
		SchemaVersion: entity.SchemaVersion,
	}
	if err := store.UpsertWorkspace(ctx, ws); err != nil {
		return err
	}
	slog.Info("Workspace created", "id", ws.ID.String(), "name", ws.Name, "dataDir", dataDir)
	return nil
}

func cmdTree(store *storage.Store, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown arguments: %v", args)
	}
	ws, err := currentWorkspace(store)
	if err != nil {
		return err
	}
	pages, err := store.ListPages(ws.ID)
	if err != nil {
		return err
	}
	fmt.Println(ws.Name)
	printTree(hierarchy.BuildTree(pages), 1)
	return nil
}

func printTree(nodes []*hierarchy.TreeNode, depth int) {
	for _, n := range nodes {
		marker := ""
		if n.Page.Kind == entity.KindDatabase {
			marker = " [db]"
		}
		for range depth {
			fmt.Print("  ")
		}
		fmt.Printf("%s%s  (%s)\n", n.Page.Title, marker, n.Page.ID)
		printTree(n.Children, depth+1)
	}
}

func cmdAdd(ctx context.Context, store *storage.Store, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	parent := fs.String("parent", "", "Parent page id (default: root)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: potion add [-parent id] <title>")
	}
	ws, err := currentWorkspace(store)
	if err != nil {
		return err
	}
	var parentID ksid.ID
	if *parent != "" {
		if parentID, err = ksid.Parse(*parent); err != nil {
			return fmt.Errorf("invalid parent id %q: %w", *parent, err)
		}
	}
	now := time.Now()
	p := &entity.Page{
		ID:          ksid.NewID(),
		WorkspaceID: ws.ID,
		ParentID:    parentID,
		Title:       fs.Arg(0),
		Kind:        entity.KindPage,
		Content:     entity.EmptyDocument(),
		Created:     now,
		Updated:     now,
	}
	if parentID != 0 {
		if _, err := store.GetPage(parentID); err != nil {
			return err
		}
	}
	if err := store.UpsertPage(ctx, p); err != nil {
		return err
	}
	fmt.Println(p.ID)
	return nil
}

func cmdMove(ctx context.Context, store *storage.Store, args []string) error {
	fs := flag.NewFlagSet("move", flag.ContinueOnError)
	parent := fs.String("parent", "", "New parent page id (default: root)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: potion move [-parent id] <page-id>")
	}
	id, err := ksid.Parse(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid page id %q: %w", fs.Arg(0), err)
	}
	var parentID ksid.ID
	if *parent != "" {
		if parentID, err = ksid.Parse(*parent); err != nil {
			return fmt.Errorf("invalid parent id %q: %w", *parent, err)
		}
	}
	return hierarchy.NewManager(store).Move(ctx, id, parentID)
}

func cmdDelete(ctx context.Context, store *storage.Store, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	cascade := fs.Bool("cascade", false, "Delete the whole subtree instead of reparenting children to root")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: potion delete [-cascade] <page-id>")
	}
	id, err := ksid.Parse(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid page id %q: %w", fs.Arg(0), err)
	}
	mgr := hierarchy.NewManager(store)
	if !*cascade {
		if _, err := mgr.Orphan(ctx, id); err != nil {
			return err
		}
	}
	deleted, err := mgr.Delete(ctx, id, *cascade)
	if err != nil {
		return err
	}
	slog.Info("Pages deleted", "count", int64(len(deleted)))
	return nil
}

func cmdDuplicate(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: potion duplicate <page-id>")
	}
	id, err := ksid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid page id %q: %w", args[0], err)
	}
	dup, err := hierarchy.NewManager(store).Duplicate(ctx, id)
	if err != nil {
		return err
	}
	fmt.Println(dup.ID)
	return nil
}

func cmdSearch(store *storage.Store, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: potion search <query>")
	}
	ws, err := currentWorkspace(store)
	if err != nil {
		return err
	}
	pages, err := store.SearchPages(ws.ID, args[0])
	if err != nil {
		return err
	}
	for _, p := range pages {
		fmt.Printf("%s  %s\n", p.ID, p.Title)
	}
	slog.Debug("Search done", "query", args[0], "matches", int64(len(pages)))
	return nil
}

func cmdStats(store *storage.Store) error {
	st, err := store.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("workspaces: %d\n", st.WorkspaceCount)
	fmt.Printf("pages:      %d\n", st.PageCount)
	fmt.Printf("databases:  %d\n", st.DatabaseCount)
	fmt.Printf("rows:       %d\n", st.RowCount)
	fmt.Printf("size:       %d bytes\n", st.EstimatedSizeBytes)
	return nil
}

func cmdExport(store *storage.Store, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	out := fs.String("o", "", "Output file (default: potion-workspace-<date>.json)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ws, err := currentWorkspace(store)
	if err != nil {
		return err
	}
	export, err := porter.NewEngine(store).ExportWorkspace(ws.ID)
	if err != nil {
		return err
	}
	data, err := porter.WriteExport(export)
	if err != nil {
		return err
	}
	name := *out
	if name == "" {
		name = porter.WorkspaceFileName(export.ExportedAt)
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	slog.Info("Workspace exported", "file", name, "pages", int64(len(export.Pages)), "rows", int64(len(export.Rows)))
	return nil
}

func cmdExportPage(store *storage.Store, args []string) error {
	fs := flag.NewFlagSet("export-page", flag.ContinueOnError)
	children := fs.Bool("children", false, "Include the full descendant subtree")
	out := fs.String("o", "", "Output file (default: potion-<title>-<date>.json)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: potion export-page [-children] [-o file] <page-id>")
	}
	id, err := ksid.Parse(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid page id %q: %w", fs.Arg(0), err)
	}
	export, err := porter.NewEngine(store).ExportPage(id, *children)
	if err != nil {
		return err
	}
	data, err := porter.WriteExport(export)
	if err != nil {
		return err
	}
	name := *out
	if name == "" {
		name = porter.PageFileName(export.Pages[0].Title, export.ExportedAt)
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	slog.Info("Page exported", "file", name, "pages", int64(len(export.Pages)))
	return nil
}

func cmdImport(ctx context.Context, store *storage.Store, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	mode := fs.String("mode", "merge", "Import mode (merge or replace)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: potion import [-mode merge|replace] <file>")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	ws, err := currentWorkspace(store)
	if err != nil {
		return err
	}
	result, err := porter.NewEngine(store).Import(ctx, ws.ID, data, entity.ImportMode(*mode))
	if err != nil {
		return err
	}
	if !result.Success {
		for _, msg := range result.Errors {
			fmt.Fprintf(os.Stderr, "  %s\n", msg)
		}
		return errors.New("import rejected")
	}
	fmt.Printf("pages:  +%d ~%d\n", result.PagesAdded, result.PagesUpdated)
	fmt.Printf("rows:   +%d ~%d\n", result.RowsAdded, result.RowsUpdated)
	for _, c := range result.Conflicts {
		fmt.Printf("conflict: %s %s local %s vs imported %s\n",
			c.Kind, c.ID, c.LocalUpdated.Format(time.RFC3339), c.ImportedUpdated.Format(time.RFC3339))
	}
	return nil
}

func cmdValidate(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: potion validate <file>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	report := porter.ValidateExportFile(data)
	if !report.Valid {
		for _, msg := range report.Errors {
			fmt.Fprintf(os.Stderr, "  %s\n", msg)
		}
		return errors.New("invalid export file")
	}
	fmt.Printf("workspace: %s\n", report.WorkspaceName)
	fmt.Printf("pages:     %d\n", report.PageCount)
	if !report.ExportedAt.IsZero() {
		fmt.Printf("exported:  %s\n", report.ExportedAt.Format(time.RFC3339))
	}
	return nil
}

func cmdRows(store *storage.Store, args []string) error {
	fs := flag.NewFlagSet("rows", flag.ContinueOnError)
	viewName := fs.String("view", "", "Apply the named saved view")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: potion rows [-view name] <database-page-id>")
	}
	id, err := ksid.Parse(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid page id %q: %w", fs.Arg(0), err)
	}
	db, err := store.GetDatabase(id)
	if err != nil {
		return err
	}
	var view *entity.DatabaseView
	if *viewName != "" {
		for i := range db.Views {
			if db.Views[i].Name == *viewName {
				view = &db.Views[i]
				break
			}
		}
		if view == nil {
			return fmt.Errorf("database has no view named %q", *viewName)
		}
	}
	rows, err := store.ListRows(id)
	if err != nil {
		return err
	}
	entries := make([]query.Entry, 0, len(rows))
	for _, r := range rows {
		title := ""
		if p, err := store.GetPage(r.PageID); err == nil {
			title = p.Title
		}
		entries = append(entries, query.Entry{Row: r, Title: title})
	}
	for _, e := range query.Apply(entries, view) {
		fmt.Printf("%s  %s", e.Row.ID, e.Title)
		for _, prop := range db.Properties {
			if v, ok := e.Row.Values[prop.ID]; ok && v != nil {
				fmt.Printf("  %s=%v", prop.Name, v)
			}
		}
		fmt.Println()
	}
	return nil
}

func cmdMarkdown(store *storage.Store, args []string) error {
	fs := flag.NewFlagSet("markdown", flag.ContinueOnError)
	out := fs.String("o", "", "Output file; \"auto\" derives the name from the title (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: potion markdown [-o file] <page-id>")
	}
	id, err := ksid.Parse(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid page id %q: %w", fs.Arg(0), err)
	}
	p, err := store.GetPage(id)
	if err != nil {
		return err
	}
	md := porter.PageToMarkdown(p)
	if *out == "" {
		fmt.Print(md)
		return nil
	}
	name := *out
	if name == "auto" {
		name = porter.MarkdownFileName(p.Title)
	}
	if err := os.WriteFile(name, []byte(md), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

func cmdHistory(ctx context.Context, store *storage.Store, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	n := fs.Int("n", 20, "Number of commits to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	commits, err := store.History(ctx, *n)
	if err != nil {
		return err
	}
	if commits == nil {
		return errors.New("versioning is not enabled; run init -versioning")
	}
	for _, c := range commits {
		fmt.Printf("%s  %s  %s\n", c.Hash[:8], c.Date.Format("2006-01-02 15:04"), c.Message)
	}
	return nil
}

func cmdWatch(ctx context.Context, store *storage.Store) error {
	err := store.Watch(ctx, func() {
		slog.Info("Store reloaded")
		if err := cmdTree(store, nil); err != nil {
			slog.Warn("Failed to print tree", "err", err)
		}
	})
	if err != nil {
		return err
	}
	slog.Info("Watching for changes", "dataDir", store.DataDir())
	<-ctx.Done()
	return nil
}

func cmdSchema() error {
	data, err := porter.ExportSchema()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

// currentWorkspace returns the single workspace of the installation.
func currentWorkspace(store *storage.Store) (*entity.Workspace, error) {
	all, err := store.ListWorkspaces()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, errors.New("no workspace; run potion init first")
	}
	return all[0], nil
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("potion %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

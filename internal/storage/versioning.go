// Versions the data directory with go-git (pure Go, no git binary needed).

package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Commit is one entry of the version history.
type Commit struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	Body    string    `json:"body,omitempty"`
	Author  string    `json:"author"`
	Email   string    `json:"email"`
	Date    time.Time `json:"date"`
}

// Repo wraps a git repository rooted at the data directory. Every mutation
// of the store becomes one commit.
type Repo struct {
	dir   string
	name  string
	email string
	repo  *gogit.Repository
	mu    sync.Mutex
}

// OpenRepo opens the repository at dir, initializing it on first use.
func OpenRepo(_ context.Context, dir, name, email string) (*Repo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating repo directory: %w", err)
	}
	if name == "" {
		name = "potion"
	}
	if email == "" {
		email = "potion@localhost"
	}
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		repo, err = gogit.PlainInit(dir, false)
		if err != nil {
			return nil, fmt.Errorf("initializing git repo: %w", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("reading git config: %w", err)
		}
		cfg.User.Name = name
		cfg.User.Email = email
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("writing git config: %w", err)
		}
	}
	return &Repo{dir: dir, name: name, email: email, repo: repo}, nil
}

// CommitTx executes fn while holding the repo lock and commits the returned
// files as one commit. Nothing is committed when fn returns no files or the
// worktree is clean.
func (r *Repo) CommitTx(ctx context.Context, fn func() (msg string, files []string, err error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, files, err := fn()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	// Detach from the caller's cancellation but keep a bound.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	_ = ctx // go-git commits do not take a context.

	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	for _, f := range files {
		if _, err := w.Add(f); err != nil {
			return fmt.Errorf("staging %s: %w", f, err)
		}
	}
	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("getting worktree status: %w", err)
	}
	if status.IsClean() {
		return nil
	}

	now := time.Now()
	sig := &object.Signature{Name: r.name, Email: r.email, When: now}
	if _, err := w.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// History returns up to n commits touching path, newest first. n is capped
// at 1000.
func (r *Repo) History(_ context.Context, path string, n int) ([]*Commit, error) {
	if n <= 0 || n > 1000 {
		n = 1000
	}
	opts := &gogit.LogOptions{}
	if path != "" && path != "." {
		opts.PathFilter = func(p string) bool {
			return p == path || strings.HasPrefix(p, path+"/")
		}
	}
	iter, err := r.repo.Log(opts)
	if err != nil {
		// No commits yet.
		return nil, nil
	}
	defer iter.Close()

	var commits []*Commit
	for range n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		subject, body, _ := strings.Cut(c.Message, "\n")
		commits = append(commits, &Commit{
			Hash:    c.Hash.String(),
			Message: subject,
			Body:    strings.TrimSpace(body),
			Author:  c.Author.Name,
			Email:   c.Author.Email,
			Date:    c.Author.When,
		})
	}
	return commits, nil
}

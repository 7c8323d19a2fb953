// Package history keeps a git history of the dataset file using go-git
// (pure Go, no git binary dependency).
package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNotFound is returned by FileAt when the commit or the tracked file at
// that commit does not exist.
var ErrNotFound = errors.New("not found in history")

// Commit is one entry of the history.
type Commit struct {
	Hash    string
	Message string
	Author  string
	Date    time.Time
}

// Repo commits a single tracked file of a git working directory.
type Repo struct {
	dir   string
	file  string
	name  string
	email string

	mu   sync.Mutex
	repo *gogit.Repository
}

// Open opens the git repository at dir, initializing it if needed. file is the
// tracked file, relative to dir.
func Open(dir, file, name, email string) (*Repo, error) {
	if filepath.IsAbs(file) || strings.HasPrefix(filepath.Clean(file), "..") {
		return nil, fmt.Errorf("tracked file %q must be relative to %s", file, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create repo directory: %w", err)
	}

	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		// Not a repo yet, initialize.
		repo, err = gogit.PlainInit(dir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize git repo: %w", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("failed to read git config: %w", err)
		}
		cfg.User.Name = name
		cfg.User.Email = email
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write git config: %w", err)
		}
	}
	return &Repo{dir: dir, file: filepath.ToSlash(file), name: name, email: email, repo: repo}, nil
}

// Commit stages the tracked file and commits it with msg. It is a no-op when
// the file did not change since the last commit.
func (r *Repo) Commit(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := w.Add(r.file); err != nil {
		return fmt.Errorf("failed to stage %s: %w", r.file, err)
	}
	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	// Other files in the directory are not tracked and must not count.
	if fs, ok := status[r.file]; !ok || fs.Staging == gogit.Unmodified {
		return nil
	}
	sig := &object.Signature{Name: r.name, Email: r.email, When: time.Now()}
	if _, err := w.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// CommitCount returns the number of commits touching the tracked file.
func (r *Repo) CommitCount(ctx context.Context) (int, error) {
	commits, err := r.Log(ctx, 0)
	return len(commits), err
}

// Log returns the most recent commits touching the tracked file, newest
// first. n <= 0 returns all of them.
func (r *Repo) Log(_ context.Context, n int) ([]Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	file := r.file
	iter, err := r.repo.Log(&gogit.LogOptions{FileName: &file})
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	var out []Commit
	for n <= 0 || len(out) < n {
		c, err := iter.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read log: %w", err)
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		out = append(out, Commit{Hash: c.Hash.String(), Message: subject, Author: c.Author.Name, Date: c.Author.When})
	}
	return out, nil
}

// FileAt returns the content of the tracked file at commit hash. "HEAD" is
// accepted.
func (r *Repo) FileAt(_ context.Context, hash string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := plumbing.NewHash(hash)
	if hash == "HEAD" {
		ref, err := r.repo.Head()
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, fmt.Errorf("HEAD: %w", ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
		}
		h = ref.Hash()
	}
	c, err := r.repo.CommitObject(h)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, fmt.Errorf("commit %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	f, err := c.File(r.file)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, fmt.Errorf("%s at %s: %w", r.file, hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file at commit: %w", err)
	}
	reader, err := f.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = reader.Close() }()
	return io.ReadAll(reader)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/maruel/insurdash/internal/dataset"
	"github.com/maruel/insurdash/internal/history"
)

// trackHistory opens the git repository around the dataset file, commits its
// current state and then commits once per appended record.
//
// The store runs observers before the next append rewrites the file, so
// commit #n holds exactly n records.
func trackHistory(ctx context.Context, store *dataset.Store, name, email string) (*history.Repo, error) {
	path := store.Path()
	repo, err := history.Open(filepath.Dir(path), filepath.Base(path), name, email)
	if err != nil {
		return nil, err
	}
	if err := repo.Commit(ctx, "Import "+filepath.Base(path)); err != nil {
		return nil, err
	}
	store.Observe(func(r dataset.Record, n int) {
		if err := repo.Commit(ctx, fmt.Sprintf("Add record #%d: %s", n, r.String())); err != nil {
			slog.ErrorContext(ctx, "Failed to commit dataset", "err", err)
		}
	})
	return repo, nil
}

// Handles the dataset history endpoints.

package handlers

import (
	"bytes"
	"context"
	"errors"

	"github.com/maruel/insurdash/internal/history"
	"github.com/maruel/insurdash/internal/server/dto"
)

// HistoryHandler serves the git history of the dataset file.
type HistoryHandler struct {
	Svc *Services
}

// History lists the commits of the dataset file, newest first.
func (h *HistoryHandler) History(ctx context.Context, req *dto.HistoryRequest) (*dto.HistoryResponse, error) {
	if h.Svc.History == nil {
		return nil, dto.NotFound("History")
	}
	commits, err := h.Svc.History.Log(ctx, req.Limit)
	if err != nil {
		return nil, dto.InternalWithError("Failed to read history", err)
	}
	total := len(commits)
	if req.Limit > 0 && total == req.Limit {
		if total, err = h.Svc.History.CommitCount(ctx); err != nil {
			return nil, dto.InternalWithError("Failed to read history", err)
		}
	}
	return &dto.HistoryResponse{Commits: commitsToDTO(commits), Total: total}, nil
}

// Records returns the records as of one commit.
func (h *HistoryHandler) Records(ctx context.Context, req *dto.HistoryRecordsRequest) (*dto.HistoryRecordsResponse, error) {
	if h.Svc.History == nil {
		return nil, dto.NotFound("History")
	}
	data, err := h.Svc.History.FileAt(ctx, req.Hash)
	if errors.Is(err, history.ErrNotFound) {
		return nil, dto.NotFound("Commit " + req.Hash)
	}
	if err != nil {
		return nil, dto.InternalWithError("Failed to read history", err)
	}
	rows, err := h.Svc.Store.Codec().Read(bytes.NewReader(data))
	if err != nil {
		return nil, dto.InternalWithError("Failed to decode dataset at "+req.Hash, err)
	}
	return &dto.HistoryRecordsResponse{Hash: req.Hash, Records: recordsToDTO(rows), Total: len(rows)}, nil
}

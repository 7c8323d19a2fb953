// Handles dataset record endpoints.

package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/maruel/insurdash/internal/dataset"
	"github.com/maruel/insurdash/internal/server/dto"
)

// RecordsHandler handles record listing and appends.
type RecordsHandler struct {
	Svc *Services
	Cfg *Config
}

// AddRecord appends a record to the dataset and echoes it back.
func (h *RecordsHandler) AddRecord(ctx context.Context, req *dto.AddRecordRequest) (*dto.AddRecordResponse, error) {
	rec := addRequestToRecord(req)
	if err := rec.Validate(h.Cfg.StrictRecords); err != nil {
		var fe *dataset.FieldError
		if errors.As(err, &fe) {
			return nil, dto.InvalidField(fe.Field, err.Error())
		}
		return nil, dto.BadRequest(err.Error())
	}
	stored, err := h.Svc.Store.Append(rec)
	h.Svc.Metrics.ObserveAppend(err)
	if err != nil {
		return nil, dto.StorageError(err)
	}
	slog.InfoContext(ctx, "Record added", "record", stored.String())
	return &dto.AddRecordResponse{Message: dto.MessageAdded, Data: recordToDTO(&stored)}, nil
}

// ListRecords returns records in file order.
func (h *RecordsHandler) ListRecords(_ context.Context, req *dto.ListRecordsRequest) (*dto.ListRecordsResponse, error) {
	rows := h.Svc.Store.Snapshot()
	total := len(rows)
	start := min(req.Offset, total)
	end := total
	if req.Limit > 0 {
		end = min(start+req.Limit, total)
	}
	return &dto.ListRecordsResponse{Records: recordsToDTO(rows[start:end]), Total: total}, nil
}

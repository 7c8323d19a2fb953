// Handles the chart aggregates and schema endpoints.

package handlers

import (
	"context"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/maruel/insurdash/internal/csvdb"
	"github.com/maruel/insurdash/internal/dataset"
	"github.com/maruel/insurdash/internal/server/dto"
)

// StatsHandler serves read-only views of the dataset.
type StatsHandler struct {
	Svc *Services

	schemaOnce sync.Once
	schema     *jsonschema.Schema
}

// Stats returns the aggregates behind each dashboard chart.
func (h *StatsHandler) Stats(_ context.Context, _ *dto.StatsRequest) (*dto.StatsResponse, error) {
	st, err := h.Svc.Store.Stats()
	if err != nil {
		return nil, dto.InternalWithError("Failed to compute stats", err)
	}
	return statsToDTO(st), nil
}

// Schema returns the JSON Schema of a record.
func (h *StatsHandler) Schema(_ context.Context, _ *dto.SchemaRequest) (*jsonschema.Schema, error) {
	h.schemaOnce.Do(func() {
		h.schema = csvdb.Schema[dataset.Record]()
		h.schema.Title = "Record"
		h.schema.Description = "One row of the insurance dataset."
	})
	return h.schema, nil
}

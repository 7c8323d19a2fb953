package handlers

import (
	"context"

	"github.com/maruel/insurdash/internal/server/dto"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	Svc     *Services
	Version string
}

// Health reports that the server is up and how many records it serves.
func (h *HealthHandler) Health(_ context.Context, _ *dto.HealthRequest) (*dto.HealthResponse, error) {
	return &dto.HealthResponse{Status: "ok", Version: h.Version, Records: h.Svc.Store.Len()}, nil
}

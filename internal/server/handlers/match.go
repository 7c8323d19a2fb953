// Handles match queries against the dataset.

package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/maruel/insurdash/internal/dataset"
	"github.com/maruel/insurdash/internal/server/dto"
)

// MatchHandler handles match queries.
type MatchHandler struct {
	Svc *Services
}

// Match returns the average charge of comparable records, or a random charge
// in the dataset's range when none match.
func (h *MatchHandler) Match(ctx context.Context, req *dto.MatchRequest) (*dto.MatchResponse, error) {
	res, err := h.Svc.Matcher.Match(ctx, matchRequestToQuery(req))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, dto.InternalWithError("Failed to match records", err)
	}
	h.Svc.Metrics.ObserveMatch(res.Kind.String())
	slog.DebugContext(ctx, "Match", "kind", res.Kind, "matches", len(res.Matches))
	if res.Kind == dataset.Matched {
		avg := res.AverageCharges
		return &dto.MatchResponse{
			Message:        dto.MessageMatched,
			AverageCharges: &avg,
			Matches:        recordsToDTO(res.Matches),
		}, nil
	}
	charge := res.RandomCharge
	return &dto.MatchResponse{Message: dto.MessageFallback, RandomCharge: &charge}, nil
}

// Package server wires the HTTP API: routing, request decoding, rate limiting
// and the access log.
package server

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"

	"github.com/maruel/insurdash/internal/server/handlers"
	"github.com/maruel/insurdash/internal/server/ratelimit"
)

// NewRouter creates the HTTP router. tiers may be nil to disable rate limiting.
func NewRouter(svc *handlers.Services, cfg *handlers.Config, tiers *ratelimit.Tiers) http.Handler {
	mux := http.NewServeMux()
	maxBody := cfg.MaxRequestBodyBytes

	mh := &handlers.MatchHandler{Svc: svc}
	rh := &handlers.RecordsHandler{Svc: svc, Cfg: cfg}
	sh := &handlers.StatsHandler{Svc: svc}
	hh := &handlers.HealthHandler{Svc: svc, Version: cfg.Version}
	hist := &handlers.HistoryHandler{Svc: svc}

	match := Wrap(mh.Match, maxBody, tiers)
	mux.Handle("POST /submit_form", match)
	mux.Handle("POST /api/v1/match", match)

	add := Wrap(rh.AddRecord, maxBody, tiers)
	mux.Handle("POST /add_data", add)
	mux.Handle("POST /api/v1/records", add)
	mux.Handle("GET /api/v1/records", Wrap(rh.ListRecords, maxBody, tiers))

	mux.Handle("GET /api/v1/stats", Wrap(sh.Stats, maxBody, tiers))
	mux.Handle("GET /api/v1/schema", Wrap(sh.Schema, maxBody, tiers))

	mux.Handle("GET /api/v1/history", Wrap(hist.History, maxBody, tiers))
	mux.Handle("GET /api/v1/history/{hash}/records", Wrap(hist.Records, maxBody, tiers))

	mux.Handle("GET /api/health", Wrap(hh.Health, maxBody, nil))
	mux.Handle("GET /metrics", svc.Metrics.Handler())

	return gzhttp.GzipHandler(withRequestContext(withAccessLog(mux, svc.Metrics)))
}

// HTTP middlewares shared by every route.

package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/maruel/insurdash/internal/server/metrics"
	"github.com/maruel/insurdash/internal/server/reqctx"
)

const requestIDHeader = "X-Request-Id"

// withRequestContext attaches the request ID, client IP and user agent to the
// request context. The request ID is taken from the X-Request-Id header when
// present and echoed back.
func withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := reqctx.WithRequestID(r.Context(), id)
		ctx = reqctx.WithClientIP(ctx, reqctx.GetClientIP(r))
		ctx = reqctx.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	n      int
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.n += n
	return n, err
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// withAccessLog logs every request and records it in m.
//
// It must wrap the ServeMux directly: the mux sets r.Pattern on the request it
// receives and the pattern is used as the metrics route label.
func withAccessLog(next http.Handler, m *metrics.Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(sr, r)
		if sr.status == 0 {
			sr.status = http.StatusOK
		}
		d := time.Since(start)
		m.ObserveRequest(r.Pattern, sr.status, d)
		ctx := r.Context()
		slog.InfoContext(ctx, "http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sr.status,
			"bytes", sr.n,
			"latency_ms", float64(d.Microseconds())/1000.0,
			"ip", reqctx.ClientIP(ctx),
			"user_agent", reqctx.UserAgent(ctx),
			"request_id", reqctx.RequestID(ctx),
		)
	})
}

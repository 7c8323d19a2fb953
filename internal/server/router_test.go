package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/maruel/insurdash/internal/dataset"
	"github.com/maruel/insurdash/internal/history"
	"github.com/maruel/insurdash/internal/server/dto"
	"github.com/maruel/insurdash/internal/server/handlers"
	"github.com/maruel/insurdash/internal/server/metrics"
	"github.com/maruel/insurdash/internal/server/ratelimit"
)

const testCSV = `age,sex,bmi,children,smoker,region,charges
30,male,25,0,no,southwest,2000
35,male,28,0,no,southwest,4000
60,female,40,2,yes,northeast,50000
`

type testServer struct {
	*httptest.Server
	svc  *handlers.Services
	path string
}

func newTestServer(t *testing.T, content string, cfg *handlers.Config, tiers *ratelimit.Tiers) *testServer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "insurance.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	store, err := dataset.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	svc := &handlers.Services{
		Store:   store,
		Matcher: dataset.NewMatcher(store, rand.NewPCG(1, 2)),
		Metrics: metrics.New(),
	}
	if cfg == nil {
		cfg = &handlers.Config{Version: "test", MaxRequestBodyBytes: 1 << 16}
	}
	ts := httptest.NewServer(NewRouter(svc, cfg, tiers))
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, svc: svc, path: path}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, ts.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) *T {
	t.Helper()
	out := new(T)
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func expectError(t *testing.T, resp *http.Response, status int, code dto.ErrorCode) *dto.ErrorResponse {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("status = %d, want %d", resp.StatusCode, status)
	}
	e := decode[dto.ErrorResponse](t, resp)
	if e.Error.Code != code {
		t.Fatalf("code = %q, want %q (message %q)", e.Error.Code, code, e.Error.Message)
	}
	return e
}

func TestRouter_Match(t *testing.T) {
	ts := newTestServer(t, testCSV, nil, nil)
	for _, path := range []string{"/submit_form", "/api/v1/match"} {
		t.Run(path, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, path, `{"age":32,"bmi":26,"gender":"Male","children":0,"smoke":"no","region":"southwest"}`)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			got := decode[dto.MatchResponse](t, resp)
			if got.Message != dto.MessageMatched || got.AverageCharges == nil || *got.AverageCharges != 3000 {
				t.Errorf("got %+v", got)
			}
		})
	}

	t.Run("fallback", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/submit_form", `{"age":5,"bmi":26,"gender":"male","children":0,"smoke":"no","region":"southwest"}`)
		got := decode[dto.MatchResponse](t, resp)
		if got.Message != dto.MessageFallback || got.RandomCharge == nil {
			t.Fatalf("got %+v", got)
		}
		if c := *got.RandomCharge; c < 2000 || c > 50000 {
			t.Errorf("random_charge = %v", c)
		}
	})
}

func TestRouter_Match_BadRequest(t *testing.T) {
	ts := newTestServer(t, testCSV, nil, nil)
	tests := []struct {
		name  string
		body  string
		code  dto.ErrorCode
		field string
	}{
		{"missing age", `{"bmi":26,"gender":"male","children":0,"smoke":"no","region":"southwest"}`, dto.ErrorCodeMissingField, "age"},
		{"missing region", `{"age":30,"bmi":26,"gender":"male","children":0,"smoke":"no"}`, dto.ErrorCodeMissingField, "region"},
		{"wrong type", `{"age":"thirty","bmi":26,"gender":"male","children":0,"smoke":"no","region":"southwest"}`, dto.ErrorCodeInvalidFormat, "age"},
		{"unknown field", `{"age":30,"bmi":26,"gender":"male","children":0,"smoke":"no","region":"southwest","zip":1}`, dto.ErrorCodeInvalidFormat, ""},
		{"not json", `age=30`, dto.ErrorCodeInvalidFormat, ""},
		{"trailing data", `{"age":30,"bmi":26,"gender":"male","children":0,"smoke":"no","region":"southwest"} {}`, dto.ErrorCodeInvalidFormat, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := expectError(t, ts.do(t, http.MethodPost, "/submit_form", tt.body), http.StatusBadRequest, tt.code)
			if tt.field != "" && e.Details["field"] != tt.field {
				t.Errorf("details = %v, want field %q", e.Details, tt.field)
			}
		})
	}
	if n := ts.svc.Store.Len(); n != 3 {
		t.Errorf("Len() = %d, store was modified", n)
	}
}

func TestRouter_AddRecord(t *testing.T) {
	ts := newTestServer(t, testCSV, nil, nil)
	body := `{"age":41,"sex":"female","bmi":31.5,"children":3,"smoker":"no","region":"northwest","charges":7777.77}`
	resp := ts.do(t, http.MethodPost, "/add_data", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[dto.AddRecordResponse](t, resp)
	if got.Message != dto.MessageAdded || got.Data.Charges != 7777.77 {
		t.Errorf("got %+v", got)
	}

	raw, err := os.ReadFile(ts.path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasSuffix(raw, []byte("41,female,31.5,3,no,northwest,7777.77\n")) {
		t.Errorf("file does not end with the new row:\n%s", raw)
	}

	list := decode[dto.ListRecordsResponse](t, ts.do(t, http.MethodGet, "/api/v1/records?offset=3", ""))
	if list.Total != 4 || len(list.Records) != 1 || list.Records[0] != got.Data {
		t.Errorf("list = %+v", list)
	}

	t.Run("case kept", func(t *testing.T) {
		mixed := `{"age":42,"sex":"Female","bmi":30,"children":1,"smoker":"YES","region":"NorthEast","charges":100}`
		got := decode[dto.AddRecordResponse](t, ts.do(t, http.MethodPost, "/api/v1/records", mixed))
		if got.Data.Sex != "Female" || got.Data.Smoker != "YES" || got.Data.Region != "NorthEast" {
			t.Errorf("echoed %+v", got.Data)
		}
		raw, err := os.ReadFile(ts.path)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.HasSuffix(raw, []byte("42,Female,30,1,YES,NorthEast,100\n")) {
			t.Errorf("file does not end with the submitted row:\n%s", raw)
		}
	})

	t.Run("bad enum", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/api/v1/records", strings.Replace(body, `"northwest"`, `"mars"`, 1))
		e := expectError(t, resp, http.StatusBadRequest, dto.ErrorCodeValidationFailed)
		if e.Details["field"] != "region" {
			t.Errorf("details = %v", e.Details)
		}
	})
}

func TestRouter_ListRecords_BadQuery(t *testing.T) {
	ts := newTestServer(t, testCSV, nil, nil)
	expectError(t, ts.do(t, http.MethodGet, "/api/v1/records?limit=ten", ""), http.StatusBadRequest, dto.ErrorCodeInvalidFormat)
	expectError(t, ts.do(t, http.MethodGet, "/api/v1/records?offset=-1", ""), http.StatusBadRequest, dto.ErrorCodeValidationFailed)
}

func TestRouter_PayloadTooLarge(t *testing.T) {
	ts := newTestServer(t, testCSV, &handlers.Config{MaxRequestBodyBytes: 64}, nil)
	body := `{"age":41,"sex":"female","bmi":31.5,"children":3,"smoker":"no","region":"northwest","charges":7777.77}`
	e := expectError(t, ts.do(t, http.MethodPost, "/add_data", body), http.StatusRequestEntityTooLarge, dto.ErrorCodePayloadTooLarge)
	if e.Details["limit_bytes"] != float64(64) {
		t.Errorf("details = %v", e.Details)
	}
}

func TestRouter_RateLimit(t *testing.T) {
	tiers := ratelimit.NewTiers(1, 0, 0)
	t.Cleanup(tiers.Close)
	ts := newTestServer(t, testCSV, nil, tiers)
	body := `{"age":32,"bmi":26,"gender":"male","children":0,"smoke":"no","region":"southwest"}`

	resp := ts.do(t, http.MethodPost, "/submit_form", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-RateLimit-Limit") == "" {
		t.Error("missing X-RateLimit-Limit")
	}
	resp = ts.do(t, http.MethodPost, "/submit_form", body)
	expectError(t, resp, http.StatusTooManyRequests, dto.ErrorCodeRateLimitExceeded)
	if resp.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	// Other tiers are disabled.
	for range 3 {
		if resp := ts.do(t, http.MethodGet, "/api/v1/stats", ""); resp.StatusCode != http.StatusOK {
			t.Fatalf("stats status = %d", resp.StatusCode)
		}
	}
}

func TestRouter_ReadEndpoints(t *testing.T) {
	ts := newTestServer(t, testCSV, nil, nil)

	st := decode[dto.StatsResponse](t, ts.do(t, http.MethodGet, "/api/v1/stats", ""))
	if st.Records != 3 || st.BySmoker["yes"] != 1 {
		t.Errorf("stats = %+v", st)
	}

	h := decode[dto.HealthResponse](t, ts.do(t, http.MethodGet, "/api/health", ""))
	if h.Status != "ok" || h.Version != "test" || h.Records != 3 {
		t.Errorf("health = %+v", h)
	}

	schema := decode[map[string]any](t, ts.do(t, http.MethodGet, "/api/v1/schema", ""))
	if (*schema)["title"] != "Record" {
		t.Errorf("schema title = %v", (*schema)["title"])
	}

	resp := ts.do(t, http.MethodGet, "/metrics", "")
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`insurdash_http_requests_total{code="200",route="GET /api/v1/stats"}`, "insurdash_records"} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("metrics missing %q", want)
		}
	}

	if resp := ts.do(t, http.MethodDelete, "/api/v1/records", ""); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("DELETE status = %d", resp.StatusCode)
	}
}

func TestRouter_History(t *testing.T) {
	ts := newTestServer(t, testCSV, nil, nil)
	expectError(t, ts.do(t, http.MethodGet, "/api/v1/history", ""), http.StatusNotFound, dto.ErrorCodeNotFound)

	repo, err := history.Open(filepath.Dir(ts.path), filepath.Base(ts.path), "Test", "test@example.com")
	if err != nil {
		t.Fatal(err)
	}
	ts.svc.History = repo
	if err := repo.Commit(t.Context(), "Import"); err != nil {
		t.Fatal(err)
	}

	h := decode[dto.HistoryResponse](t, ts.do(t, http.MethodGet, "/api/v1/history?limit=5", ""))
	if h.Total != 1 || len(h.Commits) != 1 || h.Commits[0].Message != "Import" || h.Commits[0].Author != "Test" {
		t.Fatalf("history = %+v", h)
	}
	recs := decode[dto.HistoryRecordsResponse](t, ts.do(t, http.MethodGet, "/api/v1/history/"+h.Commits[0].Hash+"/records", ""))
	if recs.Hash != h.Commits[0].Hash || recs.Total != 3 || recs.Records[0].Charges != 2000 {
		t.Errorf("records = %+v", recs)
	}

	expectError(t, ts.do(t, http.MethodGet, "/api/v1/history?limit=-1", ""), http.StatusBadRequest, dto.ErrorCodeValidationFailed)
	expectError(t, ts.do(t, http.MethodGet, "/api/v1/history/xyz/records", ""), http.StatusBadRequest, dto.ErrorCodeValidationFailed)
	expectError(t, ts.do(t, http.MethodGet, "/api/v1/history/"+strings.Repeat("ab", 20)+"/records", ""), http.StatusNotFound, dto.ErrorCodeNotFound)
}

func TestRouter_RequestID(t *testing.T) {
	ts := newTestServer(t, testCSV, nil, nil)
	if id := ts.do(t, http.MethodGet, "/api/health", "").Header.Get("X-Request-Id"); len(id) != 36 {
		t.Errorf("generated X-Request-Id = %q", id)
	}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.URL+"/api/health", http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Request-Id", "abc")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if id := resp.Header.Get("X-Request-Id"); id != "abc" {
		t.Errorf("X-Request-Id = %q, want abc", id)
	}
}

func TestRouter_Gzip(t *testing.T) {
	var b strings.Builder
	b.WriteString("age,sex,bmi,children,smoker,region,charges\n")
	for i := range 100 {
		fmt.Fprintf(&b, "%d,male,%d.5,1,no,southeast,%d.25\n", 18+i%40, 20+i%15, 1000+i*37)
	}
	ts := newTestServer(t, b.String(), nil, nil)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.URL+"/api/v1/records", http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if got := resp.Header.Get("Content-Encoding"); got != "gzip" {
		t.Errorf("Content-Encoding = %q, want gzip", got)
	}
}

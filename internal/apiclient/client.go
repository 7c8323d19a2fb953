// Package apiclient is a Go client for the insurdash HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/maruel/insurdash/internal/server/dto"
)

// DefaultURL is the address the server listens on by default.
const DefaultURL = "http://127.0.0.1:8000"

// Error is an error response returned by the server.
type Error struct {
	StatusCode int
	Code       dto.ErrorCode
	Message    string
	Details    map[string]any
}

func (e *Error) Error() string {
	if f, ok := e.Details["field"]; ok {
		return fmt.Sprintf("%s (%d %s, field %v)", e.Message, e.StatusCode, e.Code, f)
	}
	return fmt.Sprintf("%s (%d %s)", e.Message, e.StatusCode, e.Code)
}

// ConnectError is returned when the server cannot be reached.
type ConnectError struct {
	URL string
	Err error
}

func (e *ConnectError) Error() string {
	return "cannot reach " + e.URL + ": " + e.Err.Error()
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Client talks to an insurdash server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL. hc may be nil, in which
// case requests time out after 30 seconds whatever their context. Pass a
// client without Timeout to let the context alone bound each request.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: hc}
}

// do sends the request and decodes a successful response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ConnectError{URL: c.baseURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var e dto.ErrorResponse
		if err := json.Unmarshal(respBody, &e); err != nil || e.Error.Code == "" {
			return &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		}
		return &Error{StatusCode: resp.StatusCode, Code: e.Error.Code, Message: e.Error.Message, Details: e.Details}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Match looks up comparable records.
func (c *Client) Match(ctx context.Context, req *dto.MatchRequest) (*dto.MatchResponse, error) {
	var resp dto.MatchResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/match", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddRecord appends a record to the dataset.
func (c *Client) AddRecord(ctx context.Context, req *dto.AddRecordRequest) (*dto.AddRecordResponse, error) {
	var resp dto.AddRecordResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/records", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRecords returns records in file order. A limit of 0 returns all
// records from offset.
func (c *Client) ListRecords(ctx context.Context, offset, limit int) (*dto.ListRecordsResponse, error) {
	q := url.Values{}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/records"
	if len(q) != 0 {
		path += "?" + q.Encode()
	}
	var resp dto.ListRecordsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats returns the dashboard aggregates.
func (c *Client) Stats(ctx context.Context) (*dto.StatsResponse, error) {
	var resp dto.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Schema returns the JSON Schema of a record.
func (c *Client) Schema(ctx context.Context) (*jsonschema.Schema, error) {
	var resp jsonschema.Schema
	if err := c.do(ctx, http.MethodGet, "/api/v1/schema", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History lists the dataset commits, newest first. A limit of 0 returns all
// of them.
func (c *Client) History(ctx context.Context, limit int) (*dto.HistoryResponse, error) {
	path := "/api/v1/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp dto.HistoryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HistoryRecords returns the records as of commit hash, which may be HEAD.
func (c *Client) HistoryRecords(ctx context.Context, hash string) (*dto.HistoryRecordsResponse, error) {
	var resp dto.HistoryRecordsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/history/"+url.PathEscape(hash)+"/records", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks the server.
func (c *Client) Health(ctx context.Context) (*dto.HealthResponse, error) {
	var resp dto.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// IsConnectError reports whether err means the server could not be reached.
func IsConnectError(err error) bool {
	var ce *ConnectError
	return errors.As(err, &ce)
}

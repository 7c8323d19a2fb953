// Provides the generic wrapper that turns typed handlers into http.Handlers.

package server

import (
	"bytes"
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	"github.com/maruel/insurdash/internal/server/dto"
	"github.com/maruel/insurdash/internal/server/ratelimit"
	"github.com/maruel/insurdash/internal/server/reqctx"
)

// Wrap wraps a handler function to work as an http.Handler.
//
// The function must have signature: func(context.Context, *In) (*Out, error)
// where In can be unmarshalled from JSON and Out is a struct. Path
// parameters are bound to string fields tagged with `path:"name"` and query
// parameters to fields tagged with `query:"name"`. *In must implement
// dto.Validatable.
//
// Before calling fn, the request is rate limited, its body is size limited
// and decoded strictly (unknown fields are rejected), and the input is
// validated. Errors are written as dto.ErrorResponse.
func Wrap[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](fn func(context.Context, PtrIn) (*Out, error), maxBodyBytes int64, tiers *ratelimit.Tiers) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if tiers != nil {
			if tier := tiers.Route(r.Method, r.URL.Path); tier != nil {
				var ok bool
				if w, ok = checkRateLimit(ctx, w, tier, reqctx.ClientIP(ctx)); !ok {
					return
				}
			}
		}

		input := new(In)
		if err := decodeBody(w, r, input, maxBodyBytes); err != nil {
			writeError(ctx, w, err)
			return
		}
		populatePathParams(r, input)
		if err := populateQueryParams(r, input); err != nil {
			writeError(ctx, w, err)
			return
		}
		if err := PtrIn(input).Validate(); err != nil {
			writeError(ctx, w, err)
			return
		}

		output, err := fn(ctx, PtrIn(input))
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(ctx, w, http.StatusOK, output)
	})
}

// checkRateLimit checks the rate limit and wraps the response writer to carry
// the rate limit headers. Returns whether the request should proceed.
func checkRateLimit(ctx context.Context, w http.ResponseWriter, tier *ratelimit.Tier, ip string) (http.ResponseWriter, bool) {
	result := tier.Allow(ip)
	w = ratelimit.NewResponseWriter(w, result)
	if !result.Allowed {
		slog.WarnContext(ctx, "Rate limit exceeded", "tier", tier.Name, "ip", ip)
		writeError(ctx, w, dto.RateLimitExceeded(int(result.RetryAfter.Seconds())))
		return w, false
	}
	return w, true
}

// decodeBody reads the request body with a size limit and decodes JSON into
// input. An empty body leaves input untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, input any, maxBodyBytes int64) error {
	if r.Body == nil {
		return nil
	}
	if maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err2 := r.Body.Close(); err == nil {
		err = err2
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return dto.PayloadTooLarge(maxBytesErr.Limit)
		}
		return dto.InvalidFormat("Failed to read request body").Wrap(err)
	}
	if len(body) == 0 {
		return nil
	}
	d := json.NewDecoder(bytes.NewReader(body))
	d.DisallowUnknownFields()
	if err := d.Decode(input); err != nil {
		apiErr := dto.InvalidFormat("Invalid request body").Wrap(err)
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			apiErr.WithDetail("field", typeErr.Field)
		}
		return apiErr
	}
	if d.More() {
		return dto.InvalidFormat("Invalid request body: trailing data")
	}
	return nil
}

// populatePathParams extracts path parameters from the request and populates
// string fields tagged with `path:"paramName"`.
func populatePathParams(r *http.Request, input any) {
	elem := reflect.ValueOf(input).Elem()
	if elem.Kind() != reflect.Struct {
		return
	}
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("path")
		if tag == "" || field.Type.Kind() != reflect.String {
			continue
		}
		if v := r.PathValue(tag); v != "" {
			elem.Field(i).SetString(v)
		}
	}
}

// populateQueryParams extracts query parameters from the request and populates
// struct fields tagged with `query:"paramName"`.
func populateQueryParams(r *http.Request, input any) error {
	elem := reflect.ValueOf(input).Elem()
	if elem.Kind() != reflect.Struct {
		return nil
	}
	query := r.URL.Query()
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("query")
		if tag == "" {
			continue
		}
		raw := query.Get(tag)
		if raw == "" {
			continue
		}
		fieldVal := elem.Field(i)
		switch field.Type.Kind() {
		case reflect.String:
			fieldVal.SetString(raw)
		case reflect.Int:
			v, err := strconv.Atoi(raw)
			if err != nil {
				return dto.InvalidFormat(fmt.Sprintf("Invalid query parameter %s: %q is not an integer", tag, raw)).
					WithDetail("field", tag)
			}
			fieldVal.SetInt(int64(v))
		default:
			u, ok := fieldVal.Addr().Interface().(encoding.TextUnmarshaler)
			if !ok {
				continue
			}
			if err := u.UnmarshalText([]byte(raw)); err != nil {
				return dto.InvalidFormat("Invalid query parameter " + tag).WithDetail("field", tag).Wrap(err)
			}
		}
	}
	return nil
}

// writeError writes err as a dto.ErrorResponse. Errors that do not carry a
// status are reported as 500 without leaking their message.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	code := dto.ErrorCodeInternal
	message := "Internal error"
	var details map[string]any

	var apiErr *dto.APIError
	var ewsErr dto.ErrorWithStatus
	switch {
	case errors.As(err, &apiErr):
		statusCode, code, message, details = apiErr.StatusCode(), apiErr.Code(), apiErr.Message(), apiErr.Details()
	case errors.As(err, &ewsErr):
		statusCode, code, message, details = ewsErr.StatusCode(), ewsErr.Code(), ewsErr.Error(), ewsErr.Details()
	case errors.Is(err, context.Canceled):
		// Client went away.
		slog.DebugContext(ctx, "Request canceled", "err", err)
		return
	}

	if statusCode >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Handler error", "err", err, "statusCode", statusCode, "code", code)
	} else {
		slog.InfoContext(ctx, "Request rejected", "err", err, "statusCode", statusCode, "code", code)
	}
	if len(details) == 0 {
		details = nil
	}
	writeJSON(ctx, w, statusCode, &dto.ErrorResponse{
		Error:   dto.ErrorDetails{Code: code, Message: message},
		Details: details,
	})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "Failed to encode response", "err", err)
	}
}

// Defines shared service dependencies for handlers.

// Package handlers implements the HTTP API endpoints on top of the dataset.
package handlers

import (
	"github.com/maruel/insurdash/internal/dataset"
	"github.com/maruel/insurdash/internal/history"
	"github.com/maruel/insurdash/internal/server/metrics"
)

// Services holds all service dependencies for handlers.
type Services struct {
	Store   *dataset.Store
	Matcher *dataset.Matcher
	Metrics *metrics.Metrics // may be nil
	History *history.Repo    // may be nil
}

// Config holds configuration values needed by handlers.
type Config struct {
	Version             string
	MaxRequestBodyBytes int64
	StrictRecords       bool
}

// Package csvdb provides a reflection-driven CSV codec for flat tables.
//
// # Overview
//
// [Codec] maps the exported fields of a struct type to CSV columns. Column
// names and the required set come from the struct's JSON Schema (see
// [github.com/invopop/jsonschema]), so the `json` tag names a column and a
// field without `omitempty` is required.
//
// # File Format
//
// Line 1 is a header naming the columns, subsequent lines are rows. Header
// columns may appear in any order on read; they are always written in struct
// field order. Floats are written with the shortest representation that
// round-trips.
//
// # Persistence
//
// [WriteFile] replaces the file atomically: rows are written to a temporary
// file in the same directory, synced, and renamed over the target. Readers
// never observe a partially written table.
package csvdb

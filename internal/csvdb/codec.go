package csvdb

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
)

// ErrNoHeader is returned when a table file has no header line.
var ErrNoHeader = errors.New("missing header row")

// Codec reads and writes rows of T as CSV.
type Codec[T any] struct {
	columns []Column
	byName  map[string]int
}

// NewCodec creates a Codec for the struct type T.
func NewCodec[T any]() (*Codec[T], error) {
	columns, err := columnsFromType[T]()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]int, len(columns))
	for i, c := range columns {
		byName[c.Name] = i
	}
	return &Codec[T]{columns: columns, byName: byName}, nil
}

// Header returns the header row as written by Write.
func (c *Codec[T]) Header() []string {
	h := make([]string, len(c.columns))
	for i, col := range c.columns {
		h[i] = col.Name
	}
	return h
}

// Read decodes a header line followed by rows.
func (c *Codec[T]) Read(r io.Reader) ([]T, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	order, err := c.mapHeader(header)
	if err != nil {
		return nil, err
	}

	rows := []T{}
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var row T
		v := reflect.ValueOf(&row).Elem()
		for i, raw := range fields {
			col := &c.columns[order[i]]
			if err := decodeField(v.Field(col.field), col, raw); err != nil {
				return nil, fmt.Errorf("line %d: column %q: %w", line, col.Name, err)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// mapHeader returns, for each header position, the index of its column.
func (c *Codec[T]) mapHeader(header []string) ([]int, error) {
	order := make([]int, len(header))
	seen := make([]bool, len(c.columns))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		idx, ok := c.byName[name]
		if !ok {
			return nil, fmt.Errorf("unexpected column %q in header", name)
		}
		if seen[idx] {
			return nil, fmt.Errorf("duplicate column %q in header", name)
		}
		seen[idx] = true
		order[i] = idx
	}
	for i, col := range c.columns {
		if col.Required && !seen[i] {
			return nil, fmt.Errorf("missing column %q in header", col.Name)
		}
	}
	return order, nil
}

// Write encodes the header followed by rows.
func (c *Codec[T]) Write(w io.Writer, rows []T) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(c.Header()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	record := make([]string, len(c.columns))
	for n := range rows {
		v := reflect.ValueOf(&rows[n]).Elem()
		for i := range c.columns {
			record[i] = encodeField(v.Field(c.columns[i].field), &c.columns[i])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", n, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadFile loads all rows from path.
func (c *Codec[T]) ReadFile(path string) ([]T, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from configuration.
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	rows, err := c.Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// WriteFile atomically replaces path with rows.
func (c *Codec[T]) WriteFile(path string, rows []T) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := c.Write(tmp, rows); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil { //nolint:gosec // G302: the dataset is not secret.
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	committed = true
	return nil
}

func decodeField(v reflect.Value, col *Column, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if col.Required {
			return errors.New("value is required")
		}
		return nil
	}
	switch col.Type {
	case ColumnTypeText:
		v.SetString(raw)
	case ColumnTypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case ColumnTypeInteger:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			// Integer columns written by float-typed tools come out as "25.0".
			f, ferr := strconv.ParseFloat(raw, 64)
			if ferr != nil || f != math.Trunc(f) {
				return err
			}
			i = int64(f)
		}
		if v.OverflowInt(i) {
			return fmt.Errorf("value %d overflows %s", i, v.Type())
		}
		v.SetInt(i)
	case ColumnTypeNumber:
		f, err := strconv.ParseFloat(raw, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	}
	return nil
}

func encodeField(v reflect.Value, col *Column) string {
	switch col.Type {
	case ColumnTypeText:
		return v.String()
	case ColumnTypeBool:
		return strconv.FormatBool(v.Bool())
	case ColumnTypeInteger:
		return strconv.FormatInt(v.Int(), 10)
	case ColumnTypeNumber:
		return strconv.FormatFloat(v.Float(), 'f', -1, v.Type().Bits())
	}
	return ""
}

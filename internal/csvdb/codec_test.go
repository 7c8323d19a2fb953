package csvdb

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

type testRow struct {
	ID    int     `json:"id"`
	Name  string  `json:"name" jsonschema:"description=Display name"`
	Score float64 `json:"score"`
	Ok    bool    `json:"ok,omitempty"`
}

func newTestCodec(t *testing.T) *Codec[testRow] {
	t.Helper()
	c, err := NewCodec[testRow]()
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return c
}

func TestCodec(t *testing.T) {
	t.Run("Columns", func(t *testing.T) {
		c := newTestCodec(t)
		cols := c.columns
		want := []struct {
			name     string
			typ      ColumnType
			required bool
		}{
			{"id", ColumnTypeInteger, true},
			{"name", ColumnTypeText, true},
			{"score", ColumnTypeNumber, true},
			{"ok", ColumnTypeBool, false},
		}
		if len(cols) != len(want) {
			t.Fatalf("len(columns) = %d, want %d", len(cols), len(want))
		}
		for i, w := range want {
			if cols[i].Name != w.name || cols[i].Type != w.typ || cols[i].Required != w.required {
				t.Errorf("columns[%d] = %+v, want %+v", i, cols[i], w)
			}
		}
		if cols[1].Description != "Display name" {
			t.Errorf("Description = %q, want %q", cols[1].Description, "Display name")
		}
	})

	t.Run("Read", func(t *testing.T) {
		tests := []struct {
			name  string
			input string
			want  []testRow
		}{
			{
				"canonical order",
				"id,name,score,ok\n1,a,1.5,true\n2,b,2,false\n",
				[]testRow{{1, "a", 1.5, true}, {2, "b", 2, false}},
			},
			{
				"shuffled header",
				"score,id,name\n3.25,7,c\n",
				[]testRow{{7, "c", 3.25, false}},
			},
			{
				"header only",
				"id,name,score\n",
				[]testRow{},
			},
			{
				"integral float in integer column",
				"id,name,score\n4.0,d,1\n",
				[]testRow{{4, "d", 1, false}},
			},
			{
				"header case and spacing",
				"\ufeffID, Name ,SCORE\n5,e,0.1\n",
				[]testRow{{5, "e", 0.1, false}},
			},
		}
		c := newTestCodec(t)
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := c.Read(strings.NewReader(tt.input))
				if err != nil {
					t.Fatalf("Read() error = %v", err)
				}
				if !slices.Equal(got, tt.want) {
					t.Errorf("Read() = %+v, want %+v", got, tt.want)
				}
			})
		}
	})

	t.Run("Read/invalid", func(t *testing.T) {
		tests := []struct {
			name  string
			input string
		}{
			{"unknown column", "id,name,score,extra\n1,a,1,x\n"},
			{"missing required column", "id,name\n1,a\n"},
			{"duplicate column", "id,id,name,score\n1,1,a,1\n"},
			{"bad integer", "id,name,score\nx,a,1\n"},
			{"fractional integer", "id,name,score\n1.5,a,1\n"},
			{"bad float", "id,name,score\n1,a,abc\n"},
			{"empty required", "id,name,score\n1,a,\n"},
			{"short row", "id,name,score\n1,a\n"},
		}
		c := newTestCodec(t)
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := c.Read(strings.NewReader(tt.input)); err == nil {
					t.Error("Read() succeeded, want error")
				}
			})
		}
	})

	t.Run("Read/empty", func(t *testing.T) {
		c := newTestCodec(t)
		if _, err := c.Read(strings.NewReader("")); !errors.Is(err, ErrNoHeader) {
			t.Errorf("Read(\"\") error = %v, want ErrNoHeader", err)
		}
	})

	t.Run("Write", func(t *testing.T) {
		c := newTestCodec(t)
		var buf bytes.Buffer
		rows := []testRow{{1, "a,b", 16884.924, true}, {2, "c", 1725.5523, false}}
		if err := c.Write(&buf, rows); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		want := "id,name,score,ok\n1,\"a,b\",16884.924,true\n2,c,1725.5523,false\n"
		if got := buf.String(); got != want {
			t.Errorf("Write() = %q, want %q", got, want)
		}
		back, err := c.Read(&buf)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if !slices.Equal(back, rows) {
			t.Errorf("round trip = %+v, want %+v", back, rows)
		}
	})
}

func TestCodec_Files(t *testing.T) {
	c := newTestCodec(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.csv")

	if _, err := c.ReadFile(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("ReadFile(missing) error = %v, want ErrNotExist", err)
	}

	rows := []testRow{{1, "one", 1, false}}
	if err := c.WriteFile(path, rows); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	rows = append(rows, testRow{2, "two", 2, true})
	if err := c.WriteFile(path, rows); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err := c.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !slices.Equal(got, rows) {
		t.Errorf("ReadFile() = %+v, want %+v", got, rows)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1 (temporary files leaked)", len(entries))
	}
}

func TestNewCodec_NotStruct(t *testing.T) {
	if _, err := NewCodec[int](); err == nil {
		t.Error("NewCodec[int]() succeeded, want error")
	}
}

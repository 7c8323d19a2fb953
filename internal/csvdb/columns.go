// Handles column definitions and reflection-based schema generation.

package csvdb

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
)

// ColumnType represents the storage type of a table column.
type ColumnType string

const (
	ColumnTypeText    ColumnType = "text"
	ColumnTypeInteger ColumnType = "integer"
	ColumnTypeNumber  ColumnType = "number"
	ColumnTypeBool    ColumnType = "bool"
)

// Column describes one CSV column and the struct field backing it.
type Column struct {
	Name        string     `json:"name"`
	Type        ColumnType `json:"type"`
	Required    bool       `json:"required,omitempty"`
	Description string     `json:"description,omitempty"`

	field int
}

// Schema returns the JSON Schema of T with inline properties (no $ref).
func Schema[T any]() *jsonschema.Schema {
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	return r.ReflectFromType(reflect.TypeFor[T]())
}

// columnsFromType extracts column definitions using JSON Schema reflection.
//
// Descriptions come from `jsonschema:"description=..."` tags and the required
// flag from the schema's required list.
func columnsFromType[T any]() ([]Column, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type must be a struct, got %s", t.Kind())
	}

	schema := Schema[T]()

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	var columns []Column
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		name := pair.Key
		idx := -1
		for i := range t.NumField() {
			field := t.Field(i)
			if jsonFieldName(&field) == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("column %q has no backing field", name)
		}
		colType, err := goTypeToColumnType(t.Field(idx).Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		columns = append(columns, Column{
			Name:        name,
			Type:        colType,
			Required:    required[name],
			Description: pair.Value.Description,
			field:       idx,
		})
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("type %s has no exported fields", t)
	}
	return columns, nil
}

// jsonFieldName returns the JSON field name for a struct field.
func jsonFieldName(field *reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" || tag == "-" {
		return field.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}

// goTypeToColumnType maps Go types to CSV column types.
func goTypeToColumnType(t reflect.Type) (ColumnType, error) {
	switch t.Kind() {
	case reflect.String:
		return ColumnTypeText, nil
	case reflect.Bool:
		return ColumnTypeBool, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return ColumnTypeInteger, nil
	case reflect.Float32, reflect.Float64:
		return ColumnTypeNumber, nil
	default:
		return "", fmt.Errorf("unsupported field kind %s", t.Kind())
	}
}

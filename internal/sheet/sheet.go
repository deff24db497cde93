// Package sheet renders projected field specs as fixed-layout tables.
// The column set and its order are declared in an embedded schema so the
// contract is data, not code.
package sheet

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/forcegrid/sfschema/internal/metadata"
	"github.com/forcegrid/sfschema/internal/output"
)

//go:embed schemas/fieldspec.yaml
var fieldspecSchema []byte

const (
	glyphTrue  = "✓"
	glyphFalse = "✗"

	listSeparator = "; "
)

// Column is one entry in the sheet layout.
type Column struct {
	Key     string `yaml:"key"`
	Heading string `yaml:"heading"`
}

type layout struct {
	Columns []Column `yaml:"columns"`
}

var (
	layoutOnce sync.Once
	fieldSheet layout
)

func fieldLayout() layout {
	layoutOnce.Do(func() {
		if err := yaml.Unmarshal(fieldspecSchema, &fieldSheet); err != nil {
			// The schema ships inside the binary; failing to parse it is a
			// build defect, not a runtime condition.
			panic(fmt.Sprintf("sheet: bad embedded fieldspec schema: %v", err))
		}
	})
	return fieldSheet
}

// Columns returns the field sheet layout in render order.
func Columns() []Column {
	src := fieldLayout().Columns
	out := make([]Column, len(src))
	copy(out, src)
	return out
}

// Headers returns the column headings in render order.
func Headers() []string {
	cols := fieldLayout().Columns
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Heading
	}
	return out
}

// FieldTable builds the renderable table for an object's fields, one row
// per field in the order the fields arrive.
func FieldTable(fields []metadata.FieldSpec) *output.Table {
	rows := make([][]string, len(fields))
	for i, f := range fields {
		rows[i] = fieldRow(f)
	}
	return &output.Table{Headers: Headers(), Rows: rows}
}

func fieldRow(f metadata.FieldSpec) []string {
	cols := fieldLayout().Columns
	row := make([]string, len(cols))
	for i, c := range cols {
		row[i] = cellFor(c.Key, f)
	}
	return row
}

func cellFor(key string, f metadata.FieldSpec) string {
	switch key {
	case "name":
		return f.Name
	case "label":
		return f.Label
	case "type":
		return f.Type
	case "length":
		return f.Length
	case "required":
		return glyph(f.Required)
	case "unique":
		return glyph(f.Unique)
	case "custom":
		return glyph(f.Custom)
	case "createable":
		return glyph(f.Createable)
	case "updateable":
		return glyph(f.Updateable)
	case "formula":
		return glyph(f.Formula)
	case "formula_body":
		return f.FormulaBody
	case "auto_number":
		return glyph(f.AutoNumber)
	case "external_id":
		return glyph(f.ExternalID)
	case "encrypted":
		return glyph(f.Encrypted)
	case "reference_targets":
		return strings.Join(f.ReferenceTo, listSeparator)
	case "relationship_name":
		return f.RelationshipName
	case "picklist_values":
		return strings.Join(f.PicklistValues, listSeparator)
	case "dependent_picklist":
		return glyph(f.DependentPicklist)
	case "controlling_field":
		return f.ControllerName
	case "default_value":
		return f.DefaultValue
	case "help_text":
		return f.HelpText
	case "is_name_field":
		return glyph(f.NameField)
	case "filterable":
		return glyph(f.Filterable)
	case "restricted_picklist":
		return glyph(f.RestrictedPicklist)
	default:
		panic(fmt.Sprintf("sheet: schema names unknown column %q", key))
	}
}

// glyph renders booleans as a mark, never blank, so a missing value is
// distinguishable from false.
func glyph(b bool) string {
	if b {
		return glyphTrue
	}
	return glyphFalse
}

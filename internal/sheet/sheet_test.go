package sheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcegrid/sfschema/internal/metadata"
)

func TestColumnOrderIsFixed(t *testing.T) {
	want := []string{
		"name", "label", "type", "length", "required", "unique", "custom",
		"createable", "updateable", "formula", "formula_body", "auto_number",
		"external_id", "encrypted", "reference_targets", "relationship_name",
		"picklist_values", "dependent_picklist", "controlling_field",
		"default_value", "help_text", "is_name_field", "filterable",
		"restricted_picklist",
	}

	cols := Columns()
	require.Len(t, cols, len(want))
	for i, c := range cols {
		assert.Equal(t, want[i], c.Key, "column %d", i)
		assert.NotEmpty(t, c.Heading, "column %d needs a heading", i)
	}
}

func TestHeadersMatchLayout(t *testing.T) {
	cols := Columns()
	headers := Headers()
	require.Len(t, headers, len(cols))
	for i, c := range cols {
		assert.Equal(t, c.Heading, headers[i])
	}
}

func TestFieldTableOneRowPerField(t *testing.T) {
	fields := []metadata.FieldSpec{
		{Name: "Id", Type: "id", Length: "18"},
		{Name: "Name", Type: "string", Length: "80"},
		{Name: "Amount__c", Type: "currency", Length: "16.2"},
	}

	tbl := FieldTable(fields)
	require.Len(t, tbl.Rows, len(fields))
	assert.Equal(t, Headers(), tbl.Headers)
	for i, f := range fields {
		require.Len(t, tbl.Rows[i], len(tbl.Headers))
		assert.Equal(t, f.Name, tbl.Rows[i][0])
	}
}

func TestBooleanCellsAlwaysCarryGlyph(t *testing.T) {
	boolCols := map[string]bool{
		"required": true, "unique": true, "custom": true, "createable": true,
		"updateable": true, "formula": true, "auto_number": true,
		"external_id": true, "encrypted": true, "dependent_picklist": true,
		"is_name_field": true, "filterable": true, "restricted_picklist": true,
	}

	// All booleans false: every boolean cell still renders a mark.
	row := fieldRow(metadata.FieldSpec{Name: "CreatedDate", Type: "datetime"})
	for i, c := range Columns() {
		if boolCols[c.Key] {
			assert.Equal(t, glyphFalse, row[i], "column %s", c.Key)
		}
	}

	row = fieldRow(metadata.FieldSpec{
		Name: "Status__c", Type: "picklist", Required: true, Unique: true,
		Custom: true, Createable: true, Updateable: true, Formula: true,
		AutoNumber: true, ExternalID: true, Encrypted: true,
		DependentPicklist: true, NameField: true, Filterable: true,
		RestrictedPicklist: true,
	})
	for i, c := range Columns() {
		if boolCols[c.Key] {
			assert.Equal(t, glyphTrue, row[i], "column %s", c.Key)
		}
	}
}

func TestListCellsJoinValues(t *testing.T) {
	f := metadata.FieldSpec{
		Name:           "AccountId",
		Type:           "reference",
		ReferenceTo:    []string{"Account", "Contact"},
		PicklistValues: []string{"Open", "Paid", "Void"},
	}
	row := fieldRow(f)

	idx := map[string]int{}
	for i, c := range Columns() {
		idx[c.Key] = i
	}
	assert.Equal(t, "Account; Contact", row[idx["reference_targets"]])
	assert.Equal(t, "Open; Paid; Void", row[idx["picklist_values"]])
}

package metadata

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ResourceSummary is the projected shape cached and listed for each object.
type ResourceSummary struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	Custom    bool   `json:"custom"`
	Queryable bool   `json:"queryable"`
	KeyPrefix string `json:"keyPrefix,omitempty"`
}

// Filter narrows a ListResources result. Filters apply after the cache
// lookup; the cache always holds the unfiltered sorted list.
type Filter struct {
	CustomOnly    bool
	StandardOnly  bool
	QueryableOnly bool
	SearchText    string
	ForceRefresh  bool
}

// ObjectInfo describes one object type.
type ObjectInfo struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	LabelPlural string `json:"labelPlural,omitempty"`
	KeyPrefix   string `json:"keyPrefix,omitempty"`
	Custom      bool   `json:"custom"`
}

// FieldSpec is the projected field shape handed to the renderer.
type FieldSpec struct {
	Name               string   `json:"name"`
	Label              string   `json:"label"`
	Type               string   `json:"type"`
	Length             string   `json:"length"`
	Required           bool     `json:"required"`
	Unique             bool     `json:"unique"`
	Custom             bool     `json:"custom"`
	Createable         bool     `json:"createable"`
	Updateable         bool     `json:"updateable"`
	Formula            bool     `json:"formula"`
	FormulaBody        string   `json:"formulaBody,omitempty"`
	AutoNumber         bool     `json:"autoNumber"`
	ExternalID         bool     `json:"externalId"`
	Encrypted          bool     `json:"encrypted"`
	ReferenceTo        []string `json:"referenceTo,omitempty"`
	RelationshipName   string   `json:"relationshipName,omitempty"`
	PicklistValues     []string `json:"picklistValues,omitempty"`
	DependentPicklist  bool     `json:"dependentPicklist"`
	ControllerName     string   `json:"controllerName,omitempty"`
	DefaultValue       string   `json:"defaultValue,omitempty"`
	HelpText           string   `json:"helpText,omitempty"`
	NameField          bool     `json:"nameField"`
	Filterable         bool     `json:"filterable"`
	RestrictedPicklist bool     `json:"restrictedPicklist"`
}

// Describe is the full projected schema for one object.
type Describe struct {
	Info   ObjectInfo  `json:"info"`
	Fields []FieldSpec `json:"fields"`
}

// Wire shapes

type wireObjectList struct {
	Sobjects []wireObjectEntry `json:"sobjects"`
}

type wireObjectEntry struct {
	Name                string `json:"name"`
	Label               string `json:"label"`
	Custom              bool   `json:"custom"`
	Queryable           bool   `json:"queryable"`
	KeyPrefix           string `json:"keyPrefix"`
	DeprecatedAndHidden bool   `json:"deprecatedAndHidden"`
}

type wireDescribe struct {
	Name        string      `json:"name"`
	Label       string      `json:"label"`
	LabelPlural string      `json:"labelPlural"`
	KeyPrefix   string      `json:"keyPrefix"`
	Custom      bool        `json:"custom"`
	Fields      []wireField `json:"fields"`
}

type wireField struct {
	Name               string         `json:"name"`
	Label              string         `json:"label"`
	Type               string         `json:"type"`
	Length             int            `json:"length"`
	Precision          int            `json:"precision"`
	Scale              int            `json:"scale"`
	Digits             int            `json:"digits"`
	Nillable           bool           `json:"nillable"`
	Createable         bool           `json:"createable"`
	Updateable         bool           `json:"updateable"`
	Unique             bool           `json:"unique"`
	Custom             bool           `json:"custom"`
	Calculated         bool           `json:"calculated"`
	CalculatedFormula  string         `json:"calculatedFormula"`
	AutoNumber         bool           `json:"autoNumber"`
	ExternalID         bool           `json:"externalId"`
	Encrypted          bool           `json:"encrypted"`
	ReferenceTo        []string       `json:"referenceTo"`
	RelationshipName   string         `json:"relationshipName"`
	PicklistValues     []wirePicklist `json:"picklistValues"`
	DependentPicklist  bool           `json:"dependentPicklist"`
	ControllerName     string         `json:"controllerName"`
	DefaultValue       any            `json:"defaultValue"`
	InlineHelpText     string         `json:"inlineHelpText"`
	NameField          bool           `json:"nameField"`
	Filterable         bool           `json:"filterable"`
	RestrictedPicklist bool           `json:"restrictedPicklist"`
}

// Field types whose length renders as precision.scale.
var numericTypes = map[string]bool{
	"currency": true,
	"double":   true,
	"percent":  true,
	"int":      true,
	"long":     true,
}

// Field types whose length renders as the raw character length.
var textualTypes = map[string]bool{
	"string":          true,
	"textarea":        true,
	"email":           true,
	"phone":           true,
	"url":             true,
	"picklist":        true,
	"multipicklist":   true,
	"combobox":        true,
	"encryptedstring": true,
	"id":              true,
	"reference":       true,
}

// project derives the rendered FieldSpec from the raw describe field.
func (f wireField) project() FieldSpec {
	spec := FieldSpec{
		Name:               f.Name,
		Label:              f.Label,
		Type:               f.Type,
		Length:             f.lengthSpec(),
		Required:           !f.Nillable && f.Createable,
		Unique:             f.Unique,
		Custom:             f.Custom,
		Createable:         f.Createable,
		Updateable:         f.Updateable,
		Formula:            f.Calculated,
		FormulaBody:        f.CalculatedFormula,
		AutoNumber:         f.AutoNumber,
		ExternalID:         f.ExternalID,
		Encrypted:          f.Encrypted,
		ReferenceTo:        f.ReferenceTo,
		RelationshipName:   f.RelationshipName,
		DependentPicklist:  f.DependentPicklist,
		ControllerName:     f.ControllerName,
		DefaultValue:       formatDefault(f.DefaultValue),
		HelpText:           f.InlineHelpText,
		NameField:          f.NameField,
		Filterable:         f.Filterable,
		RestrictedPicklist: f.RestrictedPicklist,
	}

	// Only active picklist entries survive projection.
	for _, pv := range f.PicklistValues {
		if pv.Active {
			spec.PicklistValues = append(spec.PicklistValues, pv.Value)
		}
	}

	return spec
}

// lengthSpec renders numeric fields as precision.scale, textual fields as
// the raw character length, and everything else as empty.
func (f wireField) lengthSpec() string {
	switch {
	case numericTypes[f.Type]:
		precision := f.Precision
		if precision == 0 && f.Digits > 0 {
			precision = f.Digits
		}
		return fmt.Sprintf("%d.%d", precision, f.Scale)
	case textualTypes[f.Type]:
		return strconv.Itoa(f.Length)
	default:
		return ""
	}
}

type wirePicklist struct {
	Active bool   `json:"active"`
	Value  string `json:"value"`
	Label  string `json:"label"`
}

func formatDefault(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case string:
		return d
	case bool:
		return strconv.FormatBool(d)
	case float64:
		if d == float64(int64(d)) {
			return strconv.FormatInt(int64(d), 10)
		}
		return strconv.FormatFloat(d, 'f', -1, 64)
	case json.Number:
		return d.String()
	default:
		return fmt.Sprintf("%v", d)
	}
}

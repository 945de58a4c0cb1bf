package fieldschema

import "fmt"

type FieldType string

const (
	FieldTypeDate         FieldType = "date"
	FieldTypeNumber       FieldType = "number"
	FieldTypePercentage   FieldType = "percentage"
	FieldTypeString       FieldType = "string"
	FieldTypeSingleSelect FieldType = "singleSelect"
	FieldTypeLinkedRecord FieldType = "linkedRecord"
	FieldTypeTotal        FieldType = "total"
	FieldTypeSkip         FieldType = "skip"
)

func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeDate, FieldTypeNumber, FieldTypePercentage, FieldTypeString,
		FieldTypeSingleSelect, FieldTypeLinkedRecord, FieldTypeTotal, FieldTypeSkip:
		return true
	}
	return false
}

// Outbound reports whether values of this type are ever written to the store.
// Totals are computed by the store and skip columns are ignored.
func (t FieldType) Outbound() bool {
	return t != FieldTypeTotal && t != FieldTypeSkip
}

func ParseFieldType(s string) (FieldType, error) {
	t := FieldType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid field type %q", s)
	}
	return t, nil
}

type Derivation string

const (
	DerivationNone     Derivation = ""
	DerivationDivision Derivation = "division"
	DerivationDiscount Derivation = "discount"
)

// PercentScale selects how a percentage cell is normalized to a 0..1 ratio.
type PercentScale string

const (
	// PercentScaleAuto divides by 100 only when the magnitude is greater than 1.
	PercentScaleAuto  PercentScale = ""
	PercentScaleWhole PercentScale = "whole"
	PercentScaleRatio PercentScale = "ratio"
)

package reconcile

import "fmt"

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
)

// NaturalKey identifies a PO line across runs.
type NaturalKey struct {
	NonCatalogID string
	VendorID     string
}

func (k NaturalKey) String() string {
	return fmt.Sprintf("%s|%s", k.NonCatalogID, k.VendorID)
}

// RowContext carries ids resolved before reconciliation and fixed fields to merge.
type RowContext struct {
	NonCatalogID string
	VendorID     string
	// Fields win over row fields on a name collision.
	Fields FieldMap
}

func (rc RowContext) Key() (NaturalKey, error) {
	if rc.NonCatalogID == "" || rc.VendorID == "" {
		return NaturalKey{}, ErrMissingNaturalKey
	}
	return NaturalKey{NonCatalogID: rc.NonCatalogID, VendorID: rc.VendorID}, nil
}

type MutationRequest struct {
	Op       Op
	Table    string
	RecordID string
	Key      NaturalKey
	Fields   FieldMap
}

type Result struct {
	Mutation MutationRequest
	// Record is the store's response; empty when the mutation was only planned.
	Record  Record
	Applied bool
}

type RowResult struct {
	Row    Row
	Result Result
	Err    error
}

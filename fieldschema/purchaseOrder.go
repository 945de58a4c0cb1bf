package fieldschema

const (
	FieldDateOut    = "Date - Out"
	FieldDateIn     = "Date - In"
	FieldNonCatalog = "Non-Catalog"
	FieldSKU        = "SKU"
	FieldQty        = "Qty"
	FieldRate       = "Rate"
	FieldX          = "X"
	FieldDiscountPc = "Discount.%"
	FieldDiscount   = "Discount"
	FieldRowTotal   = "Row Total"
	FieldUnit       = "Unit"
	FieldTaxPc      = "Tax.%"
	FieldCostPc     = "C.%"
	FieldPO         = "PO"
	FieldSkip       = "Skip"
)

const PurchaseOrderDateFormat = "MM/dd/YYYY"

// PurchaseOrderLines is the field set of the project PO line table.
func PurchaseOrderLines() *Schema {
	return MustNew(
		FieldDefinition{Name: FieldDateOut, Type: FieldTypeDate, DateFormat: PurchaseOrderDateFormat},
		FieldDefinition{Name: FieldDateIn, Type: FieldTypeDate, DateFormat: PurchaseOrderDateFormat},
		FieldDefinition{Name: FieldNonCatalog, Type: FieldTypeLinkedRecord},
		FieldDefinition{Name: FieldSKU, Type: FieldTypeString},
		FieldDefinition{Name: FieldQty, Type: FieldTypeNumber, DerivedFrom: DerivationDivision},
		FieldDefinition{Name: FieldRate, Type: FieldTypeNumber, DerivedFrom: DerivationDivision},
		FieldDefinition{Name: FieldX, Type: FieldTypeNumber, DerivedFrom: DerivationDivision},
		FieldDefinition{Name: FieldDiscountPc, Type: FieldTypePercentage, DerivedFrom: DerivationDiscount},
		FieldDefinition{Name: FieldDiscount, Type: FieldTypeNumber, DerivedFrom: DerivationDiscount},
		FieldDefinition{Name: FieldRowTotal, Type: FieldTypeTotal},
		FieldDefinition{Name: FieldUnit, Type: FieldTypeSingleSelect},
		FieldDefinition{Name: FieldTaxPc, Type: FieldTypePercentage},
		FieldDefinition{Name: FieldCostPc, Type: FieldTypePercentage},
		FieldDefinition{Name: FieldPO, Type: FieldTypeString},
		FieldDefinition{Name: FieldSkip, Type: FieldTypeSkip},
	)
}

package coerce

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mmdatafocus/po_import/fieldschema"
	"github.com/shopspring/decimal"
)

type Options struct {
	// DateFormat is a pattern such as "MM/dd/YYYY".
	DateFormat   string
	PercentScale fieldschema.PercentScale
	// Location for dates without a zone. Defaults to UTC.
	Location *time.Location
}

func OptionsFor(def fieldschema.FieldDefinition) Options {
	return Options{
		DateFormat:   def.DateFormat,
		PercentScale: def.PercentScale,
	}
}

// Coerce converts one raw cell into the store representation for its declared type.
// A null Value means the field is left out of the mutation. The only error returned is
// *DateParseError, which comes with a null Value.
func Coerce(raw any, t fieldschema.FieldType, opts Options) (Value, error) {
	if isEmpty(raw) {
		return Null(), nil
	}

	switch t {
	case fieldschema.FieldTypeDate:
		return coerceDate(raw, opts)
	case fieldschema.FieldTypeNumber:
		d, ok := parseAmount(raw)
		if !ok {
			return Null(), nil
		}
		return Number(d), nil
	case fieldschema.FieldTypePercentage:
		d, ok := parseAmount(raw)
		if !ok {
			return Null(), nil
		}
		return Ratio(normalizePercent(d, opts.PercentScale)), nil
	case fieldschema.FieldTypeString:
		return String(StringForm(raw)), nil
	case fieldschema.FieldTypeSingleSelect:
		return Choice(StringForm(raw)), nil
	case fieldschema.FieldTypeLinkedRecord:
		return Passthrough(raw), nil
	case fieldschema.FieldTypeTotal, fieldschema.FieldTypeSkip:
		return Null(), nil
	}
	return Null(), nil
}

func isEmpty(raw any) bool {
	if raw == nil {
		return true
	}
	if s, ok := raw.(string); ok {
		return s == ""
	}
	return false
}

// StringForm renders a raw cell the way a spreadsheet would show it.
func StringForm(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case decimal.Decimal:
		return v.String()
	case time.Time:
		return v.Format(ISODate)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(raw)
}

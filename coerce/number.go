package coerce

import (
	"math"
	"strings"
	"unicode"

	"github.com/mmdatafocus/po_import/fieldschema"
	"github.com/shopspring/decimal"
)

// Cells mentioning "no charge", "to be determined" or "included" anywhere count as zero,
// so "Included" and "12 NC" are both 0.
var notApplicableTokens = []string{"NC", "TBD", "INC"}

var hundred = decimal.NewFromInt(100)

// cleanAmount drops currency and percent punctuation plus any whitespace.
func cleanAmount(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '$' || r == ',' || r == '%' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isNotApplicable(clean string) bool {
	upper := strings.ToUpper(clean)
	for _, token := range notApplicableTokens {
		if strings.Contains(upper, token) {
			return true
		}
	}
	return false
}

func parseAmount(raw any) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	case float32:
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case int32:
		return decimal.NewFromInt32(v), true
	}

	clean := cleanAmount(StringForm(raw))
	if isNotApplicable(clean) {
		return decimal.Zero, true
	}
	if clean == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func normalizePercent(d decimal.Decimal, scale fieldschema.PercentScale) decimal.Decimal {
	switch scale {
	case fieldschema.PercentScaleWhole:
		return d.Div(hundred)
	case fieldschema.PercentScaleRatio:
		return d
	}
	if d.Abs().GreaterThan(decimal.NewFromInt(1)) {
		return d.Div(hundred)
	}
	return d
}

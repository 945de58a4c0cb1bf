package coerce

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var errNoLayout = errors.New("value does not match any accepted layout")

// patternTokens maps spreadsheet style date tokens to Go layout elements, longest first.
// Month and day use the unpadded elements, which accept one or two digits.
var patternTokens = []struct {
	token  string
	layout string
}{
	{"YYYY", "2006"},
	{"yyyy", "2006"},
	{"YY", "06"},
	{"yy", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "1"},
	{"M", "1"},
	{"dd", "2"},
	{"DD", "2"},
	{"d", "2"},
	{"D", "2"},
	{"HH", "15"},
	{"hh", "3"},
	{"mm", "04"},
	{"ss", "05"},
}

// Layout translates a pattern such as "MM/dd/YYYY" into a Go time layout.
func Layout(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		matched := false
		for _, pt := range patternTokens {
			if strings.HasPrefix(pattern[i:], pt.token) {
				b.WriteString(pt.layout)
				i += len(pt.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(pattern[i])
			i++
		}
	}
	return b.String()
}

func coerceDate(raw any, opts Options) (Value, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	switch v := raw.(type) {
	case time.Time:
		return Date(v.In(loc)), nil
	case float64:
		return excelSerialDate(v, raw, opts)
	case int:
		return excelSerialDate(float64(v), raw, opts)
	case int64:
		return excelSerialDate(float64(v), raw, opts)
	}

	s := strings.TrimSpace(StringForm(raw))
	layouts := make([]string, 0, 3)
	if opts.DateFormat != "" {
		layouts = append(layouts, Layout(opts.DateFormat))
	}
	layouts = append(layouts, ISODate, time.RFC3339)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return Date(t), nil
		}
	}

	// Unformatted spreadsheet cells carry the serial day number as text.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return excelSerialDate(f, raw, opts)
	}
	return Null(), &DateParseError{Value: s, Format: opts.DateFormat, Err: errNoLayout}
}

func excelSerialDate(serial float64, raw any, opts Options) (Value, error) {
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return Null(), &DateParseError{Value: StringForm(raw), Format: opts.DateFormat, Err: err}
	}
	return Date(t), nil
}

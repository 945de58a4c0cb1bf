package coerce

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Kind int

const (
	KindNull Kind = iota
	KindDate
	KindNumber
	KindRatio
	KindString
	KindChoice
	KindLinks
	KindPassthrough
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindDate:
		return "date"
	case KindNumber:
		return "number"
	case KindRatio:
		return "ratio"
	case KindString:
		return "string"
	case KindChoice:
		return "choice"
	case KindLinks:
		return "links"
	case KindPassthrough:
		return "passthrough"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

const ISODate = "2006-01-02"

// Value is a cell already shaped for the record store. The zero Value is null.
type Value struct {
	kind Kind
	date time.Time
	num  decimal.Decimal
	str  string
	ids  []string
	raw  any
}

func Null() Value { return Value{} }

func Date(t time.Time) Value { return Value{kind: KindDate, date: t} }

func Number(d decimal.Decimal) Value { return Value{kind: KindNumber, num: d} }

// Ratio is a fraction in 0..1 for percentage fields.
func Ratio(d decimal.Decimal) Value { return Value{kind: KindRatio, num: d} }

func String(s string) Value { return Value{kind: KindString, str: s} }

// Choice is a single-select option, sent as {"name": ...}.
func Choice(name string) Value { return Value{kind: KindChoice, str: name} }

// Links references other records, sent as [{"id": ...}, ...].
func Links(ids ...string) Value {
	cp := make([]string, len(ids))
	copy(cp, ids)
	return Value{kind: KindLinks, ids: cp}
}

// Passthrough carries a raw value unchanged.
func Passthrough(raw any) Value { return Value{kind: KindPassthrough, raw: raw} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Decimal() decimal.Decimal { return v.num }

func (v Value) Time() time.Time { return v.date }

func (v Value) IDs() []string {
	cp := make([]string, len(v.ids))
	copy(cp, v.ids)
	return cp
}

func (v Value) Raw() any { return v.raw }

// Text is the string form: the literal for strings, the option name for choices,
// the ISO date for dates and the decimal text for numbers.
func (v Value) Text() string {
	switch v.kind {
	case KindString, KindChoice:
		return v.str
	case KindDate:
		return v.date.Format(ISODate)
	case KindNumber, KindRatio:
		return v.num.String()
	case KindPassthrough:
		return fmt.Sprint(v.raw)
	}
	return ""
}

func (v Value) String() string {
	if v.kind == KindLinks {
		return fmt.Sprintf("links%v", v.ids)
	}
	return v.kind.String() + "(" + v.Text() + ")"
}

type choiceWire struct {
	Name string `json:"name"`
}

type linkWire struct {
	ID string `json:"id"`
}

// Wire returns the value in the shape the store expects, ready for json.Marshal.
func (v Value) Wire() any {
	switch v.kind {
	case KindDate:
		return v.date.Format(ISODate)
	case KindNumber, KindRatio:
		return json.Number(v.num.String())
	case KindString:
		return v.str
	case KindChoice:
		return choiceWire{Name: v.str}
	case KindLinks:
		out := make([]linkWire, 0, len(v.ids))
		for _, id := range v.ids {
			out = append(out, linkWire{ID: id})
		}
		return out
	case KindPassthrough:
		return v.raw
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Wire())
}

// Equal compares kind and content; numbers compare by value, not representation.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindDate:
		return v.date.Equal(o.date)
	case KindNumber, KindRatio:
		return v.num.Equal(o.num)
	case KindString, KindChoice:
		return v.str == o.str
	case KindLinks:
		if len(v.ids) != len(o.ids) {
			return false
		}
		for i := range v.ids {
			if v.ids[i] != o.ids[i] {
				return false
			}
		}
		return true
	}
	a, errA := json.Marshal(v.raw)
	b, errB := json.Marshal(o.raw)
	return errA == nil && errB == nil && string(a) == string(b)
}

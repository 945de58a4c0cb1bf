package fieldschema

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

type FieldDefinition struct {
	Name         string       `json:"name" validate:"required"`
	Type         FieldType    `json:"type" validate:"required,oneof=date number percentage string singleSelect linkedRecord total skip"`
	DateFormat   string       `json:"date_format,omitempty" validate:"required_if=Type date"`
	DerivedFrom  Derivation   `json:"derived_from,omitempty" validate:"omitempty,oneof=division discount"`
	PercentScale PercentScale `json:"percent_scale,omitempty" validate:"omitempty,oneof=whole ratio"`
}

type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Field)
}

// Schema is the immutable set of fields an import understands.
// Build one with New at startup and share it; there is no way to change it afterwards.
type Schema struct {
	defs  map[string]FieldDefinition
	names []string
}

var validate = validator.New()

func New(defs ...FieldDefinition) (*Schema, error) {
	if len(defs) == 0 {
		return nil, errors.New("schema has no fields")
	}
	s := &Schema{defs: make(map[string]FieldDefinition, len(defs))}
	for _, def := range defs {
		if err := validate.Struct(def); err != nil {
			return nil, fmt.Errorf("field %q: %w", def.Name, err)
		}
		if _, dup := s.defs[def.Name]; dup {
			return nil, fmt.Errorf("duplicate field %q", def.Name)
		}
		s.defs[def.Name] = def
		s.names = append(s.names, def.Name)
	}
	sort.Strings(s.names)
	return s, nil
}

func MustNew(defs ...FieldDefinition) *Schema {
	s, err := New(defs...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Lookup(name string) (FieldDefinition, error) {
	def, ok := s.defs[name]
	if !ok {
		return FieldDefinition{}, &UnknownFieldError{Field: name}
	}
	return def, nil
}

func (s *Schema) Has(name string) bool {
	_, ok := s.defs[name]
	return ok
}

// Names returns the field names in sorted order. The slice is a copy.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Outbound reports whether a known field may be sent to the store.
func (s *Schema) Outbound(name string) bool {
	def, ok := s.defs[name]
	return ok && def.Type.Outbound()
}

// TypeMap returns name -> type for every field, the shape ingestion attaches to rows.
func (s *Schema) TypeMap() map[string]FieldType {
	out := make(map[string]FieldType, len(s.defs))
	for name, def := range s.defs {
		out[name] = def.Type
	}
	return out
}

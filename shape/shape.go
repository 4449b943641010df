// Package shape classifies Go types into the small set of structural kinds the
// synthesizer and the test-unit generator reason about.
package shape

import "reflect"

// Kind is the structural category of a type.
type Kind int

const (
	Invalid Kind = iota
	Bool
	Int
	Uint
	Float
	Text
	Sequence
	Map
	Record
)

var kindNames = [...]string{
	Invalid:  "Invalid",
	Bool:     "Bool",
	Int:      "Int",
	Uint:     "Uint",
	Float:    "Float",
	Text:     "Text",
	Sequence: "Sequence",
	Map:      "Map",
	Record:   "Record",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Invalid"
	}
	return kindNames[k]
}

// Composite reports whether values of the kind contain other values.
func (k Kind) Composite() bool {
	return k == Sequence || k == Map || k == Record
}

// Of returns the kind of t. Pointers are looked through; use Indirect to
// learn whether t had to be dereferenced.
func Of(t reflect.Type) Kind {
	if t == nil {
		return Invalid
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return Bool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Uint
	case reflect.Float32, reflect.Float64:
		return Float
	case reflect.String:
		return Text
	case reflect.Slice, reflect.Array:
		return Sequence
	case reflect.Map:
		return Map
	case reflect.Struct:
		return Record
	default:
		return Invalid
	}
}

// Indirect reports whether t is a pointer type.
func Indirect(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Pointer
}

// Field is a named sub-value of a Record, in declaration order.
type Field struct {
	Name  string
	Index int
	Type  reflect.Type
	Tag   reflect.StructTag
}

// Fields lists the exported fields of a struct type. Unexported fields are
// left out because they cannot be set through reflection.
func Fields(t reflect.Type) []Field {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	out := make([]Field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		out = append(out, Field{Name: f.Name, Index: i, Type: f.Type, Tag: f.Tag})
	}
	return out
}

// Package metadata implements the per-position and per-link metadata
// stores (C3): two-level mappings from a data name to a per-position or
// per-link value, with reserved-name validation.
package metadata

import (
	"errors"
	"fmt"
	"strings"
)

// ErrReservedName indicates a data name starting with "__" (for both
// position and link data) or the link-only reserved names "source"/"target"
// was used.
var ErrReservedName = errors.New("metadata: reserved data name")

// Kind tags the dynamic type carried by a Value.
type Kind int

const (
	// KindInt marks an int64-valued scalar.
	KindInt Kind = iota
	// KindFloat marks a float64-valued scalar.
	KindFloat
	// KindBool marks a bool-valued scalar.
	KindBool
	// KindString marks a string-valued scalar.
	KindString
	// KindList marks a list of scalar Values.
	KindList
)

// Value is a dynamically-typed metadata value: a scalar (int64, float64,
// bool, string) or a list of scalars. The Kind tag preserves the int/float
// distinction across serialization, per spec.md §9.
type Value struct {
	Kind Kind
	I    int64
	F    float64
	B    bool
	S    string
	List []Value
}

// Int returns an int-valued Value.
func Int(v int64) Value { return Value{Kind: KindInt, I: v} }

// Float returns a float-valued Value.
func Float(v float64) Value { return Value{Kind: KindFloat, F: v} }

// Bool returns a bool-valued Value.
func Bool(v bool) Value { return Value{Kind: KindBool, B: v} }

// Str returns a string-valued Value.
func Str(v string) Value { return Value{Kind: KindString, S: v} }

// List returns a list-valued Value.
func List(vs ...Value) Value { return Value{Kind: KindList, List: vs} }

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.I)
	case KindFloat:
		return fmt.Sprintf("%g", v.F)
	case KindBool:
		return fmt.Sprintf("%t", v.B)
	case KindString:
		return v.S
	case KindList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "<invalid>"
	}
}

// checkReservedName rejects names starting with "__". Link data additionally
// rejects "source" and "target" via checkReservedLinkName.
func checkReservedName(name string) error {
	if strings.HasPrefix(name, "__") {
		return fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	return nil
}

func checkReservedLinkName(name string) error {
	if err := checkReservedName(name); err != nil {
		return err
	}
	if name == "source" || name == "target" {
		return fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	return nil
}

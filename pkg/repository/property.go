package repository

import (
	"encoding/json"
	"fmt"
	"time"
)

// PropertyType enumerates the value types a resource property can carry.
type PropertyType int

const (
	TypeString PropertyType = iota
	TypeHTML
	TypeJSON
	TypeInt
	TypeLong
	TypeBoolean
	TypeDate
	TypeTimestamp
	TypePrincipal
	TypeImageRef
	TypeBinary
)

// String returns the canonical name of the property type.
func (t PropertyType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeHTML:
		return "html"
	case TypeJSON:
		return "json"
	case TypeInt:
		return "int"
	case TypeLong:
		return "long"
	case TypeBoolean:
		return "boolean"
	case TypeDate:
		return "date"
	case TypeTimestamp:
		return "timestamp"
	case TypePrincipal:
		return "principal"
	case TypeImageRef:
		return "image_ref"
	case TypeBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// ParsePropertyType parses a canonical type name.
func ParsePropertyType(s string) (PropertyType, error) {
	for t := TypeString; t <= TypeBinary; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return TypeString, fmt.Errorf("unknown property type: %s", s)
}

// Value is a single typed property value. Exactly one of the payload
// fields is meaningful, selected by Type.
type Value struct {
	Type      PropertyType
	Str       string          // TypeString, TypeHTML, TypeImageRef
	Int       int64           // TypeInt, TypeLong
	Bool      bool            // TypeBoolean
	Time      time.Time       // TypeDate, TypeTimestamp
	Principal Principal       // TypePrincipal
	Binary    []byte          // TypeBinary
	JSON      json.RawMessage // TypeJSON
}

// NewStringValue returns a string value.
func NewStringValue(s string) Value { return Value{Type: TypeString, Str: s} }

// NewHTMLValue returns an HTML value.
func NewHTMLValue(s string) Value { return Value{Type: TypeHTML, Str: s} }

// NewImageRefValue returns an image reference value.
func NewImageRefValue(s string) Value { return Value{Type: TypeImageRef, Str: s} }

// NewIntValue returns an int value.
func NewIntValue(v int32) Value { return Value{Type: TypeInt, Int: int64(v)} }

// NewLongValue returns a long value.
func NewLongValue(v int64) Value { return Value{Type: TypeLong, Int: v} }

// NewBooleanValue returns a boolean value.
func NewBooleanValue(b bool) Value { return Value{Type: TypeBoolean, Bool: b} }

// NewDateValue returns a date value (second resolution).
func NewDateValue(t time.Time) Value {
	return Value{Type: TypeDate, Time: t.Truncate(time.Second)}
}

// NewTimestampValue returns a timestamp value (second resolution).
func NewTimestampValue(t time.Time) Value {
	return Value{Type: TypeTimestamp, Time: t.Truncate(time.Second)}
}

// NewPrincipalValue returns a principal value.
func NewPrincipalValue(p Principal) Value { return Value{Type: TypePrincipal, Principal: p} }

// NewBinaryValue returns a binary value. Binary values are stored but
// never indexed as searchable terms.
func NewBinaryValue(b []byte) Value { return Value{Type: TypeBinary, Binary: b} }

// NewJSONValue returns a JSON value holding the raw serialized form.
func NewJSONValue(raw json.RawMessage) Value { return Value{Type: TypeJSON, JSON: raw} }

// PropertyID identifies a property by namespace prefix and name.
// The namespace prefix may be empty for the default namespace.
type PropertyID struct {
	Namespace string
	Name      string
}

// String returns the "<namespacePrefix>:<name>" form used in field names.
func (id PropertyID) String() string {
	return id.Namespace + ":" + id.Name
}

// Property is a typed, possibly multi-valued resource property.
type Property struct {
	Namespace string
	Name      string
	Type      PropertyType
	Multi     bool
	Values    []Value
}

// ID returns the property's identity.
func (p Property) ID() PropertyID {
	return PropertyID{Namespace: p.Namespace, Name: p.Name}
}

// Value returns the single value of a single-valued property.
func (p Property) Value() (Value, error) {
	if p.Multi {
		return Value{}, fmt.Errorf("property %s is multi-valued", p.ID())
	}
	if len(p.Values) != 1 {
		return Value{}, fmt.Errorf("property %s has %d values, expected 1", p.ID(), len(p.Values))
	}
	return p.Values[0], nil
}

// Package schema holds the field structure of a form and the pure functions
// that check a structure and validate candidate values against it.
package schema

// Kind is the tag of a field's union.
type Kind string

const (
	KindPrimitive Kind = "primitive"
	KindEnum      Kind = "enum"
	KindNested    Kind = "nested"
)

// Type is a primitive value type
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeDate    Type = "date"
	TypeArray   Type = "array"
)

// Field is one declared field of a structure.
//
// Which of the remaining attributes are meaningful depends on Kind:
// primitive fields use Type (and Items when Type is array), enum fields use
// Values, nested fields use either Fields or Ref.
type Field struct {
	Name     string   `json:"name" yaml:"name"`
	Label    string   `json:"label,omitempty" yaml:"label,omitempty"`
	Kind     Kind     `json:"kind" yaml:"kind"`
	Required bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Type     Type     `json:"type,omitempty" yaml:"type,omitempty"`
	Items    Type     `json:"items,omitempty" yaml:"items,omitempty"`
	Values   []string `json:"values,omitempty" yaml:"values,omitempty"`
	Fields   []Field  `json:"fields,omitempty" yaml:"fields,omitempty"`
	Ref      string   `json:"ref,omitempty" yaml:"ref,omitempty"`
}

// Structure is the complete field layout of one schema version.
type Structure struct {
	Fields []Field            `json:"fields" yaml:"fields"`
	Groups map[string][]Field `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// Primitive builds a primitive field.
func Primitive(name string, t Type, required bool) Field {
	return Field{Name: name, Kind: KindPrimitive, Type: t, Required: required}
}

// ArrayOf builds an array-of-primitive field.
func ArrayOf(name string, items Type, required bool) Field {
	return Field{Name: name, Kind: KindPrimitive, Type: TypeArray, Items: items, Required: required}
}

// Enum builds an enumerated field.
func Enum(name string, required bool, values ...string) Field {
	return Field{Name: name, Kind: KindEnum, Values: values, Required: required}
}

// Nested builds a nested field with inline children.
func Nested(name string, required bool, fields ...Field) Field {
	return Field{Name: name, Kind: KindNested, Fields: fields, Required: required}
}

// GroupRef builds a nested field that reuses a named group.
func GroupRef(name, group string, required bool) Field {
	return Field{Name: name, Kind: KindNested, Ref: group, Required: required}
}

// Clone returns a deep copy so that stored snapshots never share memory
// with caller-owned values.
func (s Structure) Clone() Structure {
	out := Structure{Fields: cloneFields(s.Fields)}
	if s.Groups != nil {
		out.Groups = make(map[string][]Field, len(s.Groups))
		for name, fields := range s.Groups {
			out.Groups[name] = cloneFields(fields)
		}
	}
	return out
}

func cloneFields(fields []Field) []Field {
	if fields == nil {
		return nil
	}
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = f
		if f.Values != nil {
			out[i].Values = append([]string(nil), f.Values...)
		}
		out[i].Fields = cloneFields(f.Fields)
	}
	return out
}

// children resolves the fields of a nested field, following group references.
func (s Structure) children(f Field) []Field {
	if f.Ref != "" {
		return s.Groups[f.Ref]
	}
	return f.Fields
}

func isScalar(t Type) bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeDate:
		return true
	}
	return false
}

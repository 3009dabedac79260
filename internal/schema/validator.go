package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// ViolationKind classifies a validation finding.
type ViolationKind string

const (
	MissingRequired ViolationKind = "missing-required"
	WrongType       ViolationKind = "wrong-type"
	NotInEnum       ViolationKind = "not-in-enum"
	MalformedNested ViolationKind = "malformed-nested"
	UnknownField    ViolationKind = "unknown-field"
)

// Violation is a single finding at a field path.
type Violation struct {
	Path    string        `json:"path"`
	Kind    ViolationKind `json:"kind"`
	Message string        `json:"message,omitempty"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Kind)
}

// Result is the outcome of a validation. Violations are ordered by
// declaration order, depth first; warnings are ordered by path.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
	Warnings   []Violation `json:"warnings,omitempty"`
}

// Valid reports whether no violations were found.
func (r Result) Valid() bool {
	return len(r.Violations) == 0
}

// Mode selects how undeclared fields in a candidate value are treated.
type Mode int

const (
	// Lenient reports undeclared fields as warnings.
	Lenient Mode = iota
	// Strict reports undeclared fields as violations.
	Strict
)

// ParseMode maps the configuration values "warn" and "reject" (or
// "lenient" and "strict") to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "warn", "lenient":
		return Lenient, nil
	case "reject", "strict":
		return Strict, nil
	}
	return Lenient, fmt.Errorf("invalid unknown_fields mode %q", s)
}

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "lenient"
}

// Validator checks candidate values against a structure. It holds no state
// besides its mode and is safe for concurrent use.
type Validator struct {
	mode Mode
}

// NewValidator creates a validator with the given unknown-field mode
func NewValidator(mode Mode) *Validator {
	return &Validator{mode: mode}
}

// Mode returns the validator's unknown-field mode
func (v *Validator) Mode() Mode {
	return v.mode
}

// Validate walks the declared fields of s against values.
func (v *Validator) Validate(s Structure, values map[string]any) Result {
	w := &walker{s: s, mode: v.mode}
	w.object("", s.Fields, values)
	sort.SliceStable(w.result.Warnings, func(i, j int) bool {
		return w.result.Warnings[i].Path < w.result.Warnings[j].Path
	})
	return w.result
}

// Validate is a convenience for a lenient validation.
func Validate(s Structure, values map[string]any) Result {
	return NewValidator(Lenient).Validate(s, values)
}

type walker struct {
	s      Structure
	mode   Mode
	result Result
}

func (w *walker) violate(path string, kind ViolationKind, msg string) {
	w.result.Violations = append(w.result.Violations, Violation{Path: path, Kind: kind, Message: msg})
}

func (w *walker) object(prefix string, fields []Field, values map[string]any) {
	declared := make(map[string]bool, len(fields))
	for _, f := range fields {
		declared[f.Name] = true
		path := joinPath(prefix, f.Name)

		raw, ok := values[f.Name]
		if !ok || raw == nil {
			if f.Required {
				w.violate(path, MissingRequired, "field is required")
			}
			continue
		}
		w.value(path, f, raw)
	}

	var unknown []string
	for key := range values {
		if !declared[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		finding := Violation{Path: joinPath(prefix, key), Kind: UnknownField, Message: "field is not declared"}
		if w.mode == Strict {
			w.result.Violations = append(w.result.Violations, finding)
		} else {
			w.result.Warnings = append(w.result.Warnings, finding)
		}
	}
}

func (w *walker) value(path string, f Field, raw any) {
	switch f.Kind {
	case KindPrimitive:
		if f.Type != TypeArray {
			if !matches(f.Type, raw) {
				w.violate(path, WrongType, fmt.Sprintf("expected %s", f.Type))
			}
			return
		}
		items, ok := asSlice(raw)
		if !ok {
			w.violate(path, WrongType, "expected array")
			return
		}
		for i, item := range items {
			if item == nil || !matches(f.Items, item) {
				w.violate(fmt.Sprintf("%s[%d]", path, i), WrongType, fmt.Sprintf("expected %s", f.Items))
			}
		}
	case KindEnum:
		s, ok := raw.(string)
		if !ok {
			w.violate(path, WrongType, "expected string")
			return
		}
		for _, allowed := range f.Values {
			if s == allowed {
				return
			}
		}
		w.violate(path, NotInEnum, fmt.Sprintf("%q is not one of %s", s, strings.Join(f.Values, ", ")))
	case KindNested:
		obj, ok := asObject(raw)
		if !ok {
			w.violate(path, MalformedNested, "expected object")
			return
		}
		w.object(path, w.s.children(f), obj)
	default:
		w.violate(path, WrongType, fmt.Sprintf("field has unknown kind %q", f.Kind))
	}
}

func matches(t Type, raw any) bool {
	switch t {
	case TypeString:
		_, ok := raw.(string)
		return ok
	case TypeBoolean:
		_, ok := raw.(bool)
		return ok
	case TypeNumber:
		return isNumber(raw)
	case TypeDate:
		return isDate(raw)
	}
	return false
}

func isNumber(raw any) bool {
	switch n := raw.(type) {
	case json.Number:
		_, err := n.Float64()
		return err == nil
	case float32, float64,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

func isDate(raw any) bool {
	switch d := raw.(type) {
	case time.Time:
		return !d.IsZero()
	case string:
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, d); err == nil {
				return true
			}
		}
	}
	return false
}

func asSlice(raw any) ([]any, bool) {
	if items, ok := raw.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if _, isBytes := raw.([]byte); isBytes {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func asObject(raw any) (map[string]any, bool) {
	if obj, ok := raw.(map[string]any); ok {
		return obj, true
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	obj := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		obj[iter.Key().String()] = iter.Value().Interface()
	}
	return obj, true
}

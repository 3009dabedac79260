package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// MaxDepth bounds nesting, counting levels reached through group references.
const MaxDepth = 16

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Problem is one defect found in a structure.
type Problem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// StructureError lists every defect found by CheckStructure.
type StructureError struct {
	Problems []Problem `json:"problems"`
}

func (e *StructureError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid structure"
	}
	first := e.Problems[0]
	msg := first.Message
	if first.Path != "" {
		msg = first.Path + ": " + msg
	}
	if len(e.Problems) > 1 {
		return fmt.Sprintf("invalid structure: %s (and %d more)", msg, len(e.Problems)-1)
	}
	return "invalid structure: " + msg
}

// CheckStructure reports whether s is internally well-formed. It returns
// nil or a *StructureError carrying all problems found.
func CheckStructure(s Structure) error {
	c := &structureChecker{s: s}

	if len(s.Fields) == 0 {
		c.add("", "structure declares no fields")
	}
	c.checkFields("", s.Fields)

	for _, name := range groupNames(s) {
		path := "groups." + name
		if !namePattern.MatchString(name) {
			c.add(path, "invalid group name")
		}
		if len(s.Groups[name]) == 0 {
			c.add(path, "group declares no fields")
		}
		c.checkFields(path, s.Groups[name])
	}

	if !c.checkCycles() {
		if d := c.depth(s.Fields, map[string]int{}); d > MaxDepth {
			c.add("", fmt.Sprintf("nesting depth %d exceeds %d", d, MaxDepth))
		}
	}

	if len(c.problems) > 0 {
		return &StructureError{Problems: c.problems}
	}
	return nil
}

type structureChecker struct {
	s        Structure
	problems []Problem
}

func (c *structureChecker) add(path, msg string) {
	c.problems = append(c.problems, Problem{Path: path, Message: msg})
}

func (c *structureChecker) checkFields(prefix string, fields []Field) {
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		path := joinPath(prefix, f.Name)
		if f.Name == "" {
			path = fmt.Sprintf("%s[%d]", prefix, i)
			c.add(path, "field name is empty")
		} else {
			if !namePattern.MatchString(f.Name) {
				c.add(path, "invalid field name")
			}
			if seen[f.Name] {
				c.add(path, "duplicate field name")
			}
			seen[f.Name] = true
		}

		c.checkStray(path, f)

		switch f.Kind {
		case KindPrimitive:
			switch {
			case f.Type == TypeArray:
				if !isScalar(f.Items) {
					c.add(path, fmt.Sprintf("array field needs a primitive item type, got %q", f.Items))
				}
			case !isScalar(f.Type):
				c.add(path, fmt.Sprintf("unknown primitive type %q", f.Type))
			}
		case KindEnum:
			if len(f.Values) == 0 {
				c.add(path, "enum field declares no values")
			}
			values := make(map[string]bool, len(f.Values))
			for _, v := range f.Values {
				if values[v] {
					c.add(path, fmt.Sprintf("duplicate enum value %q", v))
				}
				values[v] = true
			}
		case KindNested:
			switch {
			case f.Ref != "" && len(f.Fields) > 0:
				c.add(path, "nested field has both inline fields and a group reference")
			case f.Ref != "":
				if _, ok := c.s.Groups[f.Ref]; !ok {
					c.add(path, fmt.Sprintf("unknown group %q", f.Ref))
				}
			case len(f.Fields) == 0:
				c.add(path, "nested field declares no fields")
			default:
				c.checkFields(path, f.Fields)
			}
		default:
			c.add(path, fmt.Sprintf("unknown field kind %q", f.Kind))
		}
	}
}

// checkStray reports attributes that the field's kind does not use.
func (c *structureChecker) checkStray(path string, f Field) {
	var stray []string
	switch f.Kind {
	case KindPrimitive:
		if f.Items != "" && f.Type != TypeArray {
			stray = append(stray, "items")
		}
		if len(f.Values) > 0 {
			stray = append(stray, "values")
		}
		if len(f.Fields) > 0 {
			stray = append(stray, "fields")
		}
		if f.Ref != "" {
			stray = append(stray, "ref")
		}
	case KindEnum:
		if f.Type != "" {
			stray = append(stray, "type")
		}
		if f.Items != "" {
			stray = append(stray, "items")
		}
		if len(f.Fields) > 0 {
			stray = append(stray, "fields")
		}
		if f.Ref != "" {
			stray = append(stray, "ref")
		}
	case KindNested:
		if f.Type != "" {
			stray = append(stray, "type")
		}
		if f.Items != "" {
			stray = append(stray, "items")
		}
		if len(f.Values) > 0 {
			stray = append(stray, "values")
		}
	}
	for _, attr := range stray {
		c.add(path, fmt.Sprintf("%s field must not declare %s", f.Kind, attr))
	}
}

// checkCycles reports cyclic group references and returns true if any exist.
func (c *structureChecker) checkCycles() bool {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(c.s.Groups))
	found := false

	var visit func(name string, trail []string)
	visit = func(name string, trail []string) {
		switch state[name] {
		case visiting:
			start := 0
			for i, n := range trail {
				if n == name {
					start = i
					break
				}
			}
			cycle := append(append([]string(nil), trail[start:]...), name)
			c.add("groups."+name, "cyclic group reference: "+strings.Join(cycle, " -> "))
			found = true
			return
		case done:
			return
		}
		state[name] = visiting
		for _, ref := range refsOf(c.s.Groups[name]) {
			if _, ok := c.s.Groups[ref]; ok {
				visit(ref, append(trail, name))
			}
		}
		state[name] = done
	}

	for _, name := range groupNames(c.s) {
		if state[name] == unvisited {
			visit(name, nil)
		}
	}
	return found
}

// depth computes the effective nesting depth. It must only run on acyclic
// structures.
func (c *structureChecker) depth(fields []Field, memo map[string]int) int {
	deepest := 1
	for _, f := range fields {
		if f.Kind != KindNested {
			continue
		}
		var d int
		if f.Ref != "" {
			if v, ok := memo[f.Ref]; ok {
				d = v
			} else {
				d = c.depth(c.s.Groups[f.Ref], memo)
				memo[f.Ref] = d
			}
		} else {
			d = c.depth(f.Fields, memo)
		}
		if d+1 > deepest {
			deepest = d + 1
		}
	}
	return deepest
}

func refsOf(fields []Field) []string {
	var refs []string
	for _, f := range fields {
		if f.Kind != KindNested {
			continue
		}
		if f.Ref != "" {
			refs = append(refs, f.Ref)
		}
		refs = append(refs, refsOf(f.Fields)...)
	}
	return refs
}

func groupNames(s Structure) []string {
	names := make([]string, 0, len(s.Groups))
	for name := range s.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

package schema_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Rrens/formvault/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStructure_Valid(t *testing.T) {
	assert.NoError(t, schema.CheckStructure(plankStructure()))
}

func TestCheckStructure_Problems(t *testing.T) {
	tests := []struct {
		name      string
		structure schema.Structure
		contains  string
	}{
		{
			name:      "empty",
			structure: schema.Structure{},
			contains:  "no fields",
		},
		{
			name: "duplicate names",
			structure: schema.Structure{Fields: []schema.Field{
				schema.Primitive("a", schema.TypeString, false),
				schema.Primitive("a", schema.TypeNumber, false),
			}},
			contains: "duplicate field name",
		},
		{
			name:      "empty name",
			structure: schema.Structure{Fields: []schema.Field{schema.Primitive("", schema.TypeString, false)}},
			contains:  "name is empty",
		},
		{
			name:      "invalid name",
			structure: schema.Structure{Fields: []schema.Field{schema.Primitive("wood type", schema.TypeString, false)}},
			contains:  "invalid field name",
		},
		{
			name:      "unknown type",
			structure: schema.Structure{Fields: []schema.Field{schema.Primitive("a", "decimal", false)}},
			contains:  "unknown primitive type",
		},
		{
			name:      "array without items",
			structure: schema.Structure{Fields: []schema.Field{{Name: "a", Kind: schema.KindPrimitive, Type: schema.TypeArray}}},
			contains:  "item type",
		},
		{
			name:      "array of arrays",
			structure: schema.Structure{Fields: []schema.Field{schema.ArrayOf("a", schema.TypeArray, false)}},
			contains:  "item type",
		},
		{
			name:      "empty enum",
			structure: schema.Structure{Fields: []schema.Field{schema.Enum("a", true)}},
			contains:  "no values",
		},
		{
			name:      "duplicate enum value",
			structure: schema.Structure{Fields: []schema.Field{schema.Enum("a", true, "x", "x")}},
			contains:  "duplicate enum value",
		},
		{
			name:      "unknown kind",
			structure: schema.Structure{Fields: []schema.Field{{Name: "a", Kind: "blob"}}},
			contains:  "unknown field kind",
		},
		{
			name:      "empty nested",
			structure: schema.Structure{Fields: []schema.Field{schema.Nested("a", false)}},
			contains:  "no fields",
		},
		{
			name: "nested with both inline and ref",
			structure: schema.Structure{
				Fields: []schema.Field{{
					Name: "a", Kind: schema.KindNested, Ref: "g",
					Fields: []schema.Field{schema.Primitive("x", schema.TypeString, false)},
				}},
				Groups: map[string][]schema.Field{"g": {schema.Primitive("y", schema.TypeString, false)}},
			},
			contains: "both inline fields and a group reference",
		},
		{
			name:      "unknown group",
			structure: schema.Structure{Fields: []schema.Field{schema.GroupRef("a", "missing", false)}},
			contains:  `unknown group "missing"`,
		},
		{
			name: "duplicate inside nested",
			structure: schema.Structure{Fields: []schema.Field{
				schema.Nested("a", false,
					schema.Primitive("x", schema.TypeString, false),
					schema.Primitive("x", schema.TypeString, false),
				),
			}},
			contains: "a.x: duplicate field name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.CheckStructure(tt.structure)
			require.Error(t, err)

			var se *schema.StructureError
			require.True(t, errors.As(err, &se))
			assert.NotEmpty(t, se.Problems)
			assert.Contains(t, describe(se), tt.contains)
		})
	}
}

func TestCheckStructure_AttributesOfAnotherKind(t *testing.T) {
	tests := []struct {
		name  string
		field schema.Field
		want  []string
	}{
		{
			name:  "primitive with enum values",
			field: schema.Field{Name: "woodType", Kind: schema.KindPrimitive, Type: schema.TypeString, Values: []string{"oak", "pine"}},
			want:  []string{"primitive field must not declare values"},
		},
		{
			name: "primitive with nested attributes",
			field: schema.Field{
				Name: "a", Kind: schema.KindPrimitive, Type: schema.TypeString,
				Fields: []schema.Field{schema.Primitive("x", schema.TypeString, false)},
				Ref:    "dims",
			},
			want: []string{"primitive field must not declare fields", "primitive field must not declare ref"},
		},
		{
			name:  "scalar primitive with items",
			field: schema.Field{Name: "a", Kind: schema.KindPrimitive, Type: schema.TypeString, Items: schema.TypeNumber},
			want:  []string{"primitive field must not declare items"},
		},
		{
			name:  "enum with type",
			field: schema.Field{Name: "a", Kind: schema.KindEnum, Type: schema.TypeNumber, Values: []string{"1", "2"}},
			want:  []string{"enum field must not declare type"},
		},
		{
			name: "enum with items and nested attributes",
			field: schema.Field{
				Name: "a", Kind: schema.KindEnum, Values: []string{"x"}, Items: schema.TypeString,
				Fields: []schema.Field{schema.Primitive("x", schema.TypeString, false)},
				Ref:    "dims",
			},
			want: []string{"enum field must not declare items", "enum field must not declare fields", "enum field must not declare ref"},
		},
		{
			name: "nested with type and values",
			field: schema.Field{
				Name: "a", Kind: schema.KindNested, Type: schema.TypeString, Items: schema.TypeString, Values: []string{"x"},
				Fields: []schema.Field{schema.Primitive("x", schema.TypeString, false)},
			},
			want: []string{"nested field must not declare type", "nested field must not declare items", "nested field must not declare values"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := schema.Structure{
				Fields: []schema.Field{tt.field},
				Groups: map[string][]schema.Field{"dims": {schema.Primitive("width", schema.TypeNumber, true)}},
			}

			err := schema.CheckStructure(s)
			require.Error(t, err)

			var se *schema.StructureError
			require.True(t, errors.As(err, &se))
			for _, msg := range tt.want {
				assert.Contains(t, describe(se), tt.field.Name+": "+msg)
			}
		})
	}

	t.Run("array items are allowed", func(t *testing.T) {
		s := schema.Structure{Fields: []schema.Field{schema.ArrayOf("tags", schema.TypeString, false)}}
		assert.NoError(t, schema.CheckStructure(s))
	})
}

func TestCheckStructure_Cycles(t *testing.T) {
	s := schema.Structure{
		Fields: []schema.Field{schema.GroupRef("root", "a", false)},
		Groups: map[string][]schema.Field{
			"a": {schema.GroupRef("next", "b", false)},
			"b": {schema.Nested("inner", false, schema.GroupRef("back", "a", false))},
		},
	}

	err := schema.CheckStructure(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cyclic group reference: a -> b -> a")
}

func TestCheckStructure_SelfReference(t *testing.T) {
	s := schema.Structure{
		Fields: []schema.Field{schema.GroupRef("node", "node", false)},
		Groups: map[string][]schema.Field{
			"node": {schema.Primitive("v", schema.TypeString, false), schema.GroupRef("child", "node", false)},
		},
	}

	err := schema.CheckStructure(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node -> node")
}

func TestCheckStructure_SharedGroupIsNotACycle(t *testing.T) {
	s := schema.Structure{
		Fields: []schema.Field{
			schema.GroupRef("billing", "address", true),
			schema.GroupRef("shipping", "address", false),
		},
		Groups: map[string][]schema.Field{
			"address": {schema.Primitive("city", schema.TypeString, true)},
		},
	}
	assert.NoError(t, schema.CheckStructure(s))
}

func TestCheckStructure_Depth(t *testing.T) {
	build := func(levels int) schema.Structure {
		f := schema.Primitive("leaf", schema.TypeString, false)
		for i := 0; i < levels; i++ {
			f = schema.Nested(fmt.Sprintf("l%d", i), false, f)
		}
		return schema.Structure{Fields: []schema.Field{f}}
	}

	assert.NoError(t, schema.CheckStructure(build(schema.MaxDepth-1)))

	err := schema.CheckStructure(build(schema.MaxDepth))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nesting depth")
}

func TestStructure_CloneIsDeep(t *testing.T) {
	original := plankStructure()
	clone := original.Clone()

	clone.Fields[0].Values[0] = "teak"
	clone.Fields[5].Fields[0].Name = "renamed"
	clone.Groups["address"][0].Required = false

	assert.Equal(t, "oak", original.Fields[0].Values[0])
	assert.Equal(t, "name", original.Fields[5].Fields[0].Name)
	assert.True(t, original.Groups["address"][0].Required)
}

func describe(se *schema.StructureError) string {
	parts := make([]string, len(se.Problems))
	for i, p := range se.Problems {
		parts[i] = p.Path + ": " + p.Message
	}
	return strings.Join(parts, "\n")
}

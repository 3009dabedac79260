package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/Rrens/formvault/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plankStructure = `
fields:
  - name: woodType
    kind: enum
    required: true
    values: [oak, pine]
  - name: length
    kind: primitive
    type: number
  - name: dims
    kind: nested
    ref: dimensions
groups:
  dimensions:
    - name: width
      kind: primitive
      type: number
      required: true
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLint(t *testing.T) {
	t.Run("well formed", func(t *testing.T) {
		path := writeFile(t, "plank.yaml", plankStructure)

		out, err := run("lint", path)
		require.NoError(t, err)
		assert.Contains(t, out, "ok")
	})

	t.Run("reports every problem", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", `
fields:
  - name: length
    kind: primitive
    type: number
  - name: length
    kind: enum
  - name: dims
    kind: nested
    ref: missing
`)

		out, err := run("lint", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "3 problem(s)")
		assert.Contains(t, out, "length: duplicate field name")
		assert.Contains(t, out, "length: enum field declares no values")
		assert.Contains(t, out, `dims: unknown group "missing"`)
	})

	t.Run("misspelt attribute", func(t *testing.T) {
		path := writeFile(t, "typo.yaml", `
fields:
  - name: length
    kind: primitive
    typ: number
`)

		_, err := run("lint", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse structure")
	})

	t.Run("json structure", func(t *testing.T) {
		path := writeFile(t, "plank.json", `{"fields":[{"name":"length","kind":"primitive","type":"number"}]}`)

		_, err := run("lint", path)
		assert.NoError(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := run("lint", filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestCheck(t *testing.T) {
	structure := writeFile(t, "plank.yaml", plankStructure)

	t.Run("valid yaml record", func(t *testing.T) {
		record := writeFile(t, "r.yaml", "woodType: oak\nlength: 12\ndims:\n  width: 3\n")

		out, err := run("check", structure, record)
		require.NoError(t, err)
		assert.Contains(t, out, "ok")
	})

	t.Run("valid json record", func(t *testing.T) {
		record := writeFile(t, "r.json", `{"woodType":"pine","length":12.5,"dims":{"width":3}}`)

		_, err := run("check", structure, record)
		assert.NoError(t, err)
	})

	t.Run("violations in declaration order", func(t *testing.T) {
		record := writeFile(t, "r.yaml", "woodType: teak\nlength: long\ndims: {}\n")

		out, err := run("check", structure, record)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "3 violation(s)")

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], "woodType: not-in-enum")
		assert.Contains(t, lines[1], "length: wrong-type")
		assert.Contains(t, lines[2], "dims.width: missing-required")
	})

	t.Run("unknown fields warn unless strict", func(t *testing.T) {
		record := writeFile(t, "r.yaml", "woodType: oak\ncolour: red\n")

		out, err := run("check", structure, record)
		require.NoError(t, err)
		assert.Contains(t, out, "warning colour: unknown-field")

		out, err = run("check", "--strict", structure, record)
		require.Error(t, err)
		assert.Contains(t, out, "error   colour: unknown-field")
	})

	t.Run("json output", func(t *testing.T) {
		record := writeFile(t, "r.yaml", "length: 3\n")

		out, err := run("check", "--json", structure, record)
		require.Error(t, err)
		assert.Contains(t, out, `"kind": "missing-required"`)
		assert.Contains(t, out, `"path": "woodType"`)
	})

	t.Run("ill-formed structure", func(t *testing.T) {
		bad := writeFile(t, "bad.yaml", "fields: []\n")
		record := writeFile(t, "r.yaml", "woodType: oak\n")

		_, err := run("check", bad, record)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid structure")
	})
}

func TestToken(t *testing.T) {
	const secret = "formctl-test-secret-at-least-32-bytes"

	out, err := run("token", "--tenant", "wood-co", "--admin", "--secret", secret, "--ttl", "5m")
	require.NoError(t, err)

	claims, err := security.NewJWTManager(secret, time.Minute).ValidateAccessToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, domain.TenantID("wood-co"), claims.Tenant)
	assert.True(t, claims.Admin)
	assert.Equal(t, "formctl", claims.Subject)

	_, err = run("token", "--secret", secret, "--ttl", "5m")
	assert.Error(t, err, "tenant is required")

	_, err = run("token", "--tenant", "wood-co", "--secret", "s3cret", "--ttl", "5m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 bytes")
}

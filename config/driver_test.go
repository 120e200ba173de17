package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverForResolvesAliases(t *testing.T) {
	t.Parallel()

	d, err := driverFor("a.yaml")
	require.NoError(t, err)
	assert.Equal(t, "yaml", d.Name())

	d, err = driverFor("a.yml")
	require.NoError(t, err)
	assert.Equal(t, "yaml", d.Name())

	d, err = driverFor("a.json")
	require.NoError(t, err)
	assert.Equal(t, "json", d.Name())

	_, err = driverFor("a.ini")
	var unsupported *UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
}

func TestJSONDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "c.json", `{"a": {"b": 2}}`)

	c := mustNew(t, path)
	v, err := c.Get(".a.b")
	require.NoError(t, err)
	assert.Equal(t, float64(2), v)
}

func TestJSONDocumentHonoursIncludeConfigs(t *testing.T) {
	t.Parallel()

	// The includeConfigs key is resolved on the decoded tree, so it works
	// for any driver even though JSON has no node tags.
	dir := t.TempDir()
	writeFile(t, dir, "B.yaml", "x: 1\ny: 2\n")
	path := writeFile(t, dir, "A.json", `{"includeConfigs": "B.yaml", "y": 3}`)

	c := mustNew(t, path)
	assert.True(t, c.Equal(map[string]any{"x": 1, "y": 3}))
}

func TestDriverEncode(t *testing.T) {
	t.Parallel()

	out, err := YamlDriver.Encode(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "a: 1\n", string(out))

	out, err = JSONDriver.Encode(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1}`, string(out))
}

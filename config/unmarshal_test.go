package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dbSettings struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

func TestUnmarshalSubtree(t *testing.T) {
	t.Setenv("UNMARSHAL_TEST_HOST", "db.example.org")

	c := mustNew(t, map[string]any{
		"db": map[string]any{
			"host":    "${UNMARSHAL_TEST_HOST}",
			"port":    "5432",
			"timeout": "30s",
		},
	})

	var got dbSettings
	require.NoError(t, c.Unmarshal(".db", &got))

	assert.Equal(t, "db.example.org", got.Host)
	assert.Equal(t, 5432, got.Port)
	assert.Equal(t, 30*time.Second, got.Timeout)
}

func TestUnmarshalWholeDocument(t *testing.T) {
	t.Parallel()

	c := mustNew(t, map[string]any{"name": "butler", "count": 2})

	var got struct {
		Name  string `yaml:"name"`
		Count int    `yaml:"count"`
	}
	require.NoError(t, c.Unmarshal(Root, &got))
	assert.Equal(t, "butler", got.Name)
	assert.Equal(t, 2, got.Count)
}

func TestUnmarshalMissingKey(t *testing.T) {
	t.Parallel()

	c := mustNew(t, nil)
	var got dbSettings
	err := c.Unmarshal(".db", &got)
	var notFound *KeyNotFoundError
	require.ErrorAs(t, err, &notFound)
}

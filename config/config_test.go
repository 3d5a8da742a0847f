package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := Default()
	require.Equal(t, "memory", c.Backend)
	require.Equal(t, "", c.DSN)
	require.Equal(t, 1024, c.InitialCapacity)
	require.True(t, c.ReasonerEnabled)
	require.False(t, c.RetainProofs)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	doc := `
base_uri: "http://example.org/"
store:
  backend: badger
  dsn: /var/lib/qdb
  initial_capacity: 4096
reasoner:
  enabled: false
  retain_proofs: true
`
	c, err := Load(strings.NewReader(doc), "yaml")
	require.NoError(t, err)
	require.Equal(t, "http://example.org/", c.BaseURI)
	require.Equal(t, "badger", c.Backend)
	require.Equal(t, "/var/lib/qdb", c.DSN)
	require.Equal(t, 4096, c.InitialCapacity)
	require.False(t, c.ReasonerEnabled)
	require.True(t, c.RetainProofs)
}

func TestLoadJSONPartialOverride(t *testing.T) {
	doc := `{"store": {"backend": "sql", "dsn": "postgres://localhost/qdb"}}`
	c, err := Load(strings.NewReader(doc), "json")
	require.NoError(t, err)
	require.Equal(t, "sql", c.Backend)
	require.Equal(t, "postgres://localhost/qdb", c.DSN)
	require.True(t, c.ReasonerEnabled) // untouched default survives the merge
}

func TestLoadInvalidDocumentErrors(t *testing.T) {
	_, err := Load(strings.NewReader("not: [valid"), "yaml")
	require.Error(t, err)
}

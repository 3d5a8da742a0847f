// Package config defines the behavior of a qdb graph instance and loads it
// with spf13/viper, the way the teacher's cmd/cayley/command package binds
// backend/listen/timeout options through a shared viper key space
// (store.backend, store.address, ...) rather than a bespoke flag parser.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Dotted viper keys, mirroring the KeyBackend/KeyAddress/KeyReadOnly
// constants cmd/cayley/command/database.go binds flags and environment
// variables onto.
const (
	KeyBaseURI         = "base_uri"
	KeyBackend         = "store.backend"
	KeyDSN             = "store.dsn"
	KeyInitialCapacity = "store.initial_capacity"
	KeyReasonerEnabled = "reasoner.enabled"
	KeyRetainProofs    = "reasoner.retain_proofs"
)

// Config is the fully-resolved set of options a qdb.Graph is opened with.
type Config struct {
	// BaseURI is the base a quad loader prepends to relative IRIs. qdb
	// itself does not read it: Graph.Insert stores IRIs as given.
	BaseURI string
	// Backend selects the StorageBackend implementation: "memory", "badger",
	// "bolt", or "sql".
	Backend string
	// DSN is the connection string or filesystem path for any backend other
	// than "memory".
	DSN string
	// InitialCapacity sizes the dictionary's shards and, where the backend
	// supports it, pre-sizes its index structures.
	InitialCapacity int
	// ReasonerEnabled gates whether Graph.Materialize ever runs; false skips
	// RDFS/OWL-fragment materialization entirely.
	ReasonerEnabled bool
	// RetainProofs asks the Reasoner to keep a DerivationRecord per derived
	// quad, at the cost of the memory each record occupies.
	RetainProofs bool
}

func defaults() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyBaseURI, "")
	v.SetDefault(KeyBackend, "memory")
	v.SetDefault(KeyDSN, "")
	v.SetDefault(KeyInitialCapacity, 1024)
	v.SetDefault(KeyReasonerEnabled, true)
	v.SetDefault(KeyRetainProofs, false)

	v.SetEnvPrefix("QDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		BaseURI:         v.GetString(KeyBaseURI),
		Backend:         v.GetString(KeyBackend),
		DSN:             v.GetString(KeyDSN),
		InitialCapacity: v.GetInt(KeyInitialCapacity),
		ReasonerEnabled: v.GetBool(KeyReasonerEnabled),
		RetainProofs:    v.GetBool(KeyRetainProofs),
	}
}

// Default returns the zero-file configuration: defaults overridden only by
// whatever QDB_* environment variables are set.
func Default() *Config {
	return fromViper(defaults())
}

// Load reads a config document (JSON, YAML, or TOML, selected by format) of
// the keys above from r, layering it over the same defaults/environment
// Default uses. An empty format defaults to "yaml". This mirrors
// internal/config.Load's "decode into a fresh value, fall back to zero"
// contract, but through viper so the same key space environment variables
// and an in-process caller both bind onto is also what a config file uses.
func Load(r io.Reader, format string) (*Config, error) {
	v := defaults()
	if format == "" {
		format = "yaml"
	}
	v.SetConfigType(format)
	if err := v.MergeConfig(r); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return fromViper(v), nil
}

// ReasonerTimeout is how long Graph.Materialize may run before its context
// is expected to be cancelled by the caller; qdb does not enforce this
// itself; it's surfaced for callers that want a default to pass to
// context.WithTimeout the way cmd/cayley/command/http.go derives its query
// timeout from viper.GetDuration(keyQueryTimeout).
const ReasonerTimeout = 30 * time.Second

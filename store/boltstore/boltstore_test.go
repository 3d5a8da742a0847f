package boltstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/knowgraph/qdb/store"
	"github.com/knowgraph/qdb/store/storetest"
)

func TestBoltstoreConformance(t *testing.T) {
	storetest.Run(t, func() store.Backend {
		b, err := Open(filepath.Join(t.TempDir(), "index.bolt"))
		require.NoError(t, err)
		return b
	})
}

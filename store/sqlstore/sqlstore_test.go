package sqlstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/knowgraph/qdb/store"
	"github.com/knowgraph/qdb/store/storetest"
)

func TestSqlstoreConformanceSQLite(t *testing.T) {
	storetest.Run(t, func() store.Backend {
		dsn := "sqlite://" + filepath.Join(t.TempDir(), "qdb.sqlite3")
		b, err := Open(dsn)
		require.NoError(t, err)
		return b
	})
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open("oracle://somewhere")
	require.Error(t, err)
}

func TestOpenRejectsMissingScheme(t *testing.T) {
	_, err := Open("/tmp/qdb.db")
	require.Error(t, err)
}

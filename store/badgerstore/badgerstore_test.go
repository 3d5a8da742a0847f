package badgerstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/knowgraph/qdb/store"
	"github.com/knowgraph/qdb/store/storetest"
)

func TestBadgerstoreConformance(t *testing.T) {
	storetest.Run(t, func() store.Backend {
		b, err := Open(t.TempDir())
		require.NoError(t, err)
		return b
	})
}

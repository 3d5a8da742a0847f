package memstore

import (
	"testing"

	"github.com/knowgraph/qdb/store"
	"github.com/knowgraph/qdb/store/storetest"
)

func TestMemstoreConformance(t *testing.T) {
	storetest.Run(t, func() store.Backend { return New() })
}

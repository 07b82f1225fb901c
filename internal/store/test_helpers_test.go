package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/knit/internal/testutil"
)

// createTestStore opens a store in a temp dir with predictable run IDs.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"),
		WithIDGenerator(testutil.NewSequentialIDs("run").Generate))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEvents() []Event {
	return []Event{
		{Seq: 1, Kind: "step", Member: "set_context"},
		{Seq: 2, Kind: "property", Object: "root", Member: "DataContext", Value: "@person"},
		{Seq: 3, Kind: "property", Object: "label", Member: "Count", Value: 3},
		{Seq: 4, Kind: "property", Object: "label", Member: "Value", Value: nil},
	}
}

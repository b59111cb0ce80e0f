package reftable

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/refstore/reftable/record"
)

func mustTable(t *testing.T, min, max uint64, refs ...*record.RefRecord) *Reader {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, WriterOptions{MinUpdateIndex: min, MaxUpdateIndex: max})
	require.NoError(t, err)
	for _, r := range refs {
		require.NoError(t, w.AddRef(r))
	}
	require.NoError(t, w.Close())
	r, err := NewReader(buf.Bytes(), ReaderOptions{})
	require.NoError(t, err)
	return r
}

func TestMergedTableShadowsOlderTables(t *testing.T) {
	older := mustTable(t, 1, 1,
		&record.RefRecord{RefName: "refs/heads/main", UpdateIndex: 1, Kind: record.ValueDirect, Value: digest(1)},
		&record.RefRecord{RefName: "refs/heads/old-only", UpdateIndex: 1, Kind: record.ValueDirect, Value: digest(2)},
	)
	newer := mustTable(t, 2, 2,
		&record.RefRecord{RefName: "refs/heads/main", UpdateIndex: 2, Kind: record.ValueDirect, Value: digest(9)},
		&record.RefRecord{RefName: "refs/heads/new-only", UpdateIndex: 2, Kind: record.ValueDeletion},
	)

	m, err := NewMergedTable([]*Reader{older, newer})
	require.NoError(t, err)

	it, err := m.SeekRef("")
	require.NoError(t, err)
	var names []string
	for {
		rec, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		names = append(names, rec.RefName)
	}
	require.Equal(t, []string{"refs/heads/main", "refs/heads/new-only", "refs/heads/old-only"}, names)

	rec, ok, err := m.ResolveRef("refs/heads/main")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, digest(9), rec.Value, "newer table's value must win")

	_, ok, err = m.ResolveRef("refs/heads/new-only")
	require.NoError(t, err)
	require.False(t, ok, "a deletion in the newest table must resolve to absent")
}

func TestNewMergedTableRejectsOverlappingStack(t *testing.T) {
	a := mustTable(t, 1, 5)
	b := mustTable(t, 3, 8)
	_, err := NewMergedTable([]*Reader{a, b})
	require.Error(t, err)
}

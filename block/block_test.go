package block

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/refstore/reftable/internal/binfmt"
	"github.com/refstore/reftable/record"
)

func writeRefBlock(t *testing.T, names []string) ([]byte, int) {
	t.Helper()
	buf := make([]byte, 4096)
	w := NewWriter(record.TypeRef, buf, len(buf), 0, 4)
	for i, n := range names {
		rec := &record.RefRecord{RefName: n, UpdateIndex: uint64(i), Kind: record.ValueDirect, Value: make([]byte, 20)}
		rec.Value[0] = byte(i)
		rec.SetHashSize(20)
		require.NoError(t, w.Add(rec))
	}
	n := w.Finish()
	return buf, n
}

func TestWriterReaderRoundTrip(t *testing.T) {
	names := []string{"refs/heads/a", "refs/heads/b", "refs/heads/c", "refs/heads/d", "refs/tags/v1"}
	buf, _ := writeRefBlock(t, names)

	r, err := NewReader(buf, 0, 20)
	require.NoError(t, err)
	require.Equal(t, record.TypeRef, r.Type())

	it := r.Start()
	rec := &record.RefRecord{}
	var got []string
	for {
		ok, err := it.Next(rec)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, rec.RefName)
	}
	require.Equal(t, names, got)
}

func TestReaderSeek(t *testing.T) {
	names := []string{"refs/heads/a", "refs/heads/b", "refs/heads/c", "refs/heads/d", "refs/tags/v1"}
	buf, _ := writeRefBlock(t, names)

	r, err := NewReader(buf, 0, 20)
	require.NoError(t, err)

	it, err := r.Seek(binfmt.Bytes("refs/heads/c"))
	require.NoError(t, err)
	rec := &record.RefRecord{}
	ok, err := it.Next(rec)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "refs/heads/c", rec.RefName)

	it, err = r.Seek(binfmt.Bytes("refs/heads/bb"))
	require.NoError(t, err)
	ok, err = it.Next(rec)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "refs/heads/c", rec.RefName)

	it, err = r.Seek(binfmt.Bytes("zzz"))
	require.NoError(t, err)
	ok, err = it.Next(rec)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWriterFullReturnsErrFullWithoutCorrupting(t *testing.T) {
	buf := make([]byte, 64)
	w := NewWriter(record.TypeRef, buf, len(buf), 0, 16)
	added := 0
	for i := 0; i < 100; i++ {
		name := "refs/heads/branch-" + string(rune('a'+i%26)) + "-" + string(rune('0'+i%10))
		rec := &record.RefRecord{RefName: name + string(rune(i)), Kind: record.ValueDirect, Value: make([]byte, 20)}
		rec.SetHashSize(20)
		if err := w.Add(rec); err != nil {
			require.Error(t, err)
			break
		}
		added++
	}
	require.Greater(t, added, 0)
	require.Equal(t, added, w.Entries())
}

func TestNonFirstBlockHeaderOffsetZero(t *testing.T) {
	buf := make([]byte, 256)
	w := NewWriter(record.TypeLog, buf, len(buf), 0, 16)
	rec := &record.LogRecord{RefName: "refs/heads/main", UpdateIndex: 1, Old: make([]byte, 20), New: make([]byte, 20)}
	rec.SetHashSize(20)
	require.NoError(t, w.Add(rec))
	n := w.Finish()

	r, err := NewReader(buf[:n], 0, 20)
	require.NoError(t, err)
	it := r.Start()
	out := &record.LogRecord{}
	ok, err := it.Next(out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec.RefName, out.RefName)
}

package binfmt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUvarintRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 63, 64, 127, 128, 129, 200, 16383, 16384, 1 << 20, 1 << 40, ^uint64(0)} {
		buf := PutUvarint(nil, v)
		require.Equal(t, UvarintLen(v), len(buf), "v=%d", v)
		got, n := Uvarint(buf)
		require.Equal(t, len(buf), n, "v=%d", v)
		require.Equal(t, v, got, "v=%d", v)
	}
}

func TestUvarintTruncated(t *testing.T) {
	buf := PutUvarint(nil, 1<<20)
	_, n := Uvarint(buf[:len(buf)-1])
	require.Zero(t, n)
}

func TestFixedWidth(t *testing.T) {
	buf := make([]byte, 8)
	PutUint24(buf, 0x010203)
	require.Equal(t, uint32(0x010203), Uint24(buf))

	PutUint16(buf, 0xabcd)
	require.Equal(t, uint16(0xabcd), Uint16(buf))

	PutUint32(buf, 0xdeadbeef)
	require.Equal(t, uint32(0xdeadbeef), Uint32(buf))

	PutUint64(buf, 0x0102030405060708)
	require.Equal(t, uint64(0x0102030405060708), Uint64(buf))
}

func TestBytesCompareAndPrefix(t *testing.T) {
	a := Bytes("refs/heads/main")
	b := Bytes("refs/heads/main2")
	require.Negative(t, a.Compare(b))
	require.Positive(t, b.Compare(a))
	require.Zero(t, a.Compare(Bytes("refs/heads/main")))
	require.Equal(t, len("refs/heads/main"), a.CommonPrefixLen(b))
	require.True(t, b.HasPrefix(a))
	require.False(t, a.HasPrefix(b))
}

func TestZigZag(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 60, -60, 1 << 20, -(1 << 20)} {
		require.Equal(t, v, ZigZagDecode(ZigZagEncode(v)))
	}
}

func TestSearch(t *testing.T) {
	data := []int{1, 3, 5, 7, 9}
	cmp := func(want int) func(int) int {
		return func(i int) int { return data[i] - want }
	}
	require.Equal(t, 0, Search(len(data), cmp(0)))
	require.Equal(t, 2, Search(len(data), cmp(5)))
	require.Equal(t, 3, Search(len(data), cmp(6)))
	require.Equal(t, 5, Search(len(data), cmp(100)))
}

package record

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, rec Record, hashSize int) Record {
	t.Helper()
	rec.SetHashSize(hashSize)
	key := append([]byte(nil), rec.Key()...)
	valueType := rec.ValueType()

	buf := make([]byte, 4096)
	n, err := rec.Encode(buf)
	require.NoError(t, err)

	out, err := New(rec.Type())
	require.NoError(t, err)
	out.SetHashSize(hashSize)
	consumed, err := out.Decode(key, valueType, buf[:n])
	require.NoError(t, err)
	require.Equal(t, n, consumed)
	return out
}

func TestRefRecordRoundTripDirect(t *testing.T) {
	in := &RefRecord{
		RefName:     "refs/heads/main",
		UpdateIndex: 42,
		Kind:        ValueDirect,
		Value:       make([]byte, 20),
	}
	for i := range in.Value {
		in.Value[i] = byte(i)
	}
	out := roundTrip(t, in, 20).(*RefRecord)
	require.Equal(t, in.RefName, out.RefName)
	require.Equal(t, in.UpdateIndex, out.UpdateIndex)
	require.Equal(t, in.Kind, out.Kind)
	require.Equal(t, in.Value, out.Value)
}

func TestRefRecordRoundTripPeeled(t *testing.T) {
	in := &RefRecord{
		RefName:     "refs/tags/v1.0",
		UpdateIndex: 7,
		Kind:        ValuePeeled,
		Value:       append([]byte(nil), make([]byte, 20)...),
		TargetValue: append([]byte(nil), make([]byte, 20)...),
	}
	in.Value[0] = 1
	in.TargetValue[0] = 2
	out := roundTrip(t, in, 20).(*RefRecord)
	require.Equal(t, in.Value, out.Value)
	require.Equal(t, in.TargetValue, out.TargetValue)
}

func TestRefRecordRoundTripSymbolic(t *testing.T) {
	in := &RefRecord{RefName: "HEAD", Kind: ValueSymbolic, TargetName: "refs/heads/main"}
	out := roundTrip(t, in, 20).(*RefRecord)
	require.Equal(t, in.TargetName, out.TargetName)
}

func TestRefRecordRoundTripDeletion(t *testing.T) {
	in := &RefRecord{RefName: "refs/heads/stale", UpdateIndex: 3, Kind: ValueDeletion}
	out := roundTrip(t, in, 20).(*RefRecord)
	require.True(t, out.IsDeletion())
	require.Equal(t, in.UpdateIndex, out.UpdateIndex)
}

func TestObjRecordRoundTrip(t *testing.T) {
	in := &ObjRecord{Digest: make([]byte, 20), Offsets: []uint64{100, 250, 4096}}
	out := roundTrip(t, in, 20).(*ObjRecord)
	require.Equal(t, in.Offsets, out.Offsets)
}

func TestObjRecordRejectsNonIncreasing(t *testing.T) {
	rec := &ObjRecord{Digest: make([]byte, 20), Offsets: []uint64{10, 10}}
	_, err := rec.Encode(make([]byte, 64))
	require.Error(t, err)
}

func TestIndexRecordRoundTrip(t *testing.T) {
	in := &IndexRecord{LastKey: []byte("refs/heads/zzz"), BlockOffset: 123456}
	out := roundTrip(t, in, 20).(*IndexRecord)
	require.Equal(t, in.BlockOffset, out.BlockOffset)
	require.Equal(t, in.LastKey, []byte(out.LastKey))
}

func TestLogRecordRoundTrip(t *testing.T) {
	in := &LogRecord{
		RefName:     "refs/heads/main",
		UpdateIndex: 55,
		Old:         make([]byte, 20),
		New:         make([]byte, 20),
		Name:        "Jane Doe",
		Email:       "jane@example.com",
		Time:        1700000000,
		TZOffset:    -420,
		Message:     "push",
	}
	in.New[0] = 9
	out := roundTrip(t, in, 20).(*LogRecord)
	require.Equal(t, in.RefName, out.RefName)
	require.Equal(t, in.UpdateIndex, out.UpdateIndex)
	require.Equal(t, in.Name, out.Name)
	require.Equal(t, in.Email, out.Email)
	require.Equal(t, in.Time, out.Time)
	require.Equal(t, in.TZOffset, out.TZOffset)
	require.Equal(t, in.Message, out.Message)
	require.Equal(t, in.New, out.New)
}

func TestLogRecordKeyOrdersNewestFirst(t *testing.T) {
	older := (&LogRecord{RefName: "refs/heads/main", UpdateIndex: 1}).Key()
	newer := (&LogRecord{RefName: "refs/heads/main", UpdateIndex: 2}).Key()
	require.Negative(t, newer.Compare(older))
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(TypeGroup)
	require.Error(t, err)
}

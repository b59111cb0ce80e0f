package record

import (
	"github.com/cockroachdb/errors"
	"github.com/refstore/reftable/internal/base"
	"github.com/refstore/reftable/internal/binfmt"
)

// ValueKind tags which variant a RefRecord carries: the wire-level
// "extra"/value_type_bits nibble that selects deletion, direct, peeled,
// or symbolic. The numeric values are taken from the one complete Go
// reftable reader in the example pack (other_examples' antgroup-hugescm
// reftable.go, getRefsFromBlock's switch on `extra`).
type ValueKind uint8

const (
	// ValueDeletion is a tombstone: no value bytes follow.
	ValueDeletion ValueKind = 0
	// ValueDirect carries one HASH_SIZE digest.
	ValueDirect ValueKind = 1
	// ValuePeeled carries two HASH_SIZE digests: the ref's value and
	// its peeled target.
	ValuePeeled ValueKind = 2
	// ValueSymbolic carries a varint-length-prefixed target ref name.
	ValueSymbolic ValueKind = 3
)

// RefRecord is the ref table-of-record: a named reference at a given
// update_index.
type RefRecord struct {
	RefName      string
	UpdateIndex  uint64 // delta-from-min_update_index on the wire; absolute in memory
	Kind         ValueKind
	Value        []byte // HASH_SIZE bytes, set for ValueDirect/ValuePeeled
	TargetValue  []byte // HASH_SIZE bytes, set for ValuePeeled only
	TargetName   string // set for ValueSymbolic only
	hashSize     int
	keyBuf       []byte
}

var _ Record = (*RefRecord)(nil)

// Type implements Record.
func (r *RefRecord) Type() Type { return TypeRef }

// ValueType implements Record.
func (r *RefRecord) ValueType() uint8 { return uint8(r.Kind) }

// SetHashSize implements Record.
func (r *RefRecord) SetHashSize(n int) { r.hashSize = n }

// Key implements Record. The ref table's primary key is simply the UTF-8
// ref name, compared as raw bytes.
func (r *RefRecord) Key() binfmt.Bytes {
	r.keyBuf = append(r.keyBuf[:0], r.RefName...)
	return r.keyBuf
}

// IsDeletion reports whether this record is a tombstone: a ref record
// whose value kind is deletion.
func (r *RefRecord) IsDeletion() bool { return r.Kind == ValueDeletion }

// Encode implements Record. It writes update_index (already expected to
// be the wire-relative delta set by the caller — the table writer is
// responsible for subtracting min_update_index before calling this)
// followed by the kind-specific payload.
func (r *RefRecord) Encode(buf []byte) (int, error) {
	out := buf
	out = binfmt.PutUvarint(out[:0], r.UpdateIndex)
	n := len(out)
	switch r.Kind {
	case ValueDeletion:
	case ValueDirect:
		if r.hashSize == 0 || len(r.Value) != r.hashSize {
			return 0, errors.Newf("record: direct ref value must be %d bytes, got %d", r.hashSize, len(r.Value))
		}
		out = append(out, r.Value...)
		n += r.hashSize
	case ValuePeeled:
		if len(r.Value) != r.hashSize || len(r.TargetValue) != r.hashSize {
			return 0, errors.Newf("record: peeled ref values must be %d bytes", r.hashSize)
		}
		out = append(out, r.Value...)
		out = append(out, r.TargetValue...)
		n += 2 * r.hashSize
	case ValueSymbolic:
		before := len(out)
		out = binfmt.PutUvarint(out, uint64(len(r.TargetName)))
		out = append(out, r.TargetName...)
		n += len(out) - before
	default:
		return 0, errors.Newf("record: unknown ref value kind %d", r.Kind)
	}
	if len(buf) < len(out) {
		return 0, base.ErrFull()
	}
	copy(buf, out)
	return n, nil
}

// Decode implements Record.
func (r *RefRecord) Decode(key binfmt.Bytes, valueType uint8, data []byte) (int, error) {
	r.RefName = string(key)
	r.Kind = ValueKind(valueType)
	r.Value = nil
	r.TargetValue = nil
	r.TargetName = ""

	idx, n := binfmt.Uvarint(data)
	if n == 0 {
		return 0, base.CorruptionErrorf("record: truncated update_index varint")
	}
	r.UpdateIndex = idx
	consumed := n

	switch r.Kind {
	case ValueDeletion:
	case ValueDirect:
		if len(data)-consumed < r.hashSize {
			return 0, base.CorruptionErrorf("record: truncated direct ref value")
		}
		r.Value = append([]byte(nil), data[consumed:consumed+r.hashSize]...)
		consumed += r.hashSize
	case ValuePeeled:
		if len(data)-consumed < 2*r.hashSize {
			return 0, base.CorruptionErrorf("record: truncated peeled ref value")
		}
		r.Value = append([]byte(nil), data[consumed:consumed+r.hashSize]...)
		consumed += r.hashSize
		r.TargetValue = append([]byte(nil), data[consumed:consumed+r.hashSize]...)
		consumed += r.hashSize
	case ValueSymbolic:
		size, sn := binfmt.Uvarint(data[consumed:])
		if sn == 0 {
			return 0, base.CorruptionErrorf("record: truncated symref length")
		}
		consumed += sn
		if uint64(len(data)-consumed) < size {
			return 0, base.CorruptionErrorf("record: truncated symref target")
		}
		r.TargetName = string(data[consumed : consumed+int(size)])
		consumed += int(size)
	default:
		return 0, base.CorruptionErrorf("record: unknown ref value kind %d", r.Kind)
	}
	return consumed, nil
}

// Reset implements Record.
func (r *RefRecord) Reset() {
	hashSize := r.hashSize
	*r = RefRecord{hashSize: hashSize}
}

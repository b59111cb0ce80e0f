package record

import (
	"github.com/refstore/reftable/internal/base"
	"github.com/refstore/reftable/internal/binfmt"
)

// ObjRecord is the reverse index from an object digest to the ref-section
// byte offsets of the blocks that mention it.
type ObjRecord struct {
	Digest   []byte // HASH_SIZE bytes (or a configurable object_id_len prefix of it, per writer options)
	Offsets  []uint64 // sorted, unique, ascending
	hashSize int
}

var _ Record = (*ObjRecord)(nil)

// Type implements Record.
func (o *ObjRecord) Type() Type { return TypeObj }

// ValueType implements Record. Object-index records carry no variant tag.
func (o *ObjRecord) ValueType() uint8 { return 0 }

// SetHashSize implements Record. The value is stored but not used by
// Encode or Decode: an object-index record's digest width is the length
// of its key, which the writer truncates to object_id_len.
func (o *ObjRecord) SetHashSize(n int) { o.hashSize = n }

// Key implements Record.
func (o *ObjRecord) Key() binfmt.Bytes { return binfmt.Bytes(o.Digest) }

// Encode implements Record. The offsets are written as a varint count
// followed by the first absolute offset and then successive deltas,
// since the sequence is sorted and unique; this keeps the common case
// (one or a few nearby mentions) compact.
func (o *ObjRecord) Encode(buf []byte) (int, error) {
	out := buf[:0]
	out = binfmt.PutUvarint(out, uint64(len(o.Offsets)))
	var prev uint64
	for i, off := range o.Offsets {
		if i > 0 && off <= prev {
			return 0, base.CorruptionErrorf("record: object-index offsets must be strictly increasing")
		}
		if i == 0 {
			out = binfmt.PutUvarint(out, off)
		} else {
			out = binfmt.PutUvarint(out, off-prev)
		}
		prev = off
	}
	if len(out) > len(buf) {
		return 0, base.ErrFull()
	}
	copy(buf, out)
	return len(out), nil
}

// Decode implements Record.
func (o *ObjRecord) Decode(key binfmt.Bytes, _ uint8, data []byte) (int, error) {
	o.Digest = append([]byte(nil), key...)
	count, n := binfmt.Uvarint(data)
	if n == 0 {
		return 0, base.CorruptionErrorf("record: truncated object-index count")
	}
	consumed := n
	o.Offsets = o.Offsets[:0]
	var prev uint64
	for i := uint64(0); i < count; i++ {
		delta, dn := binfmt.Uvarint(data[consumed:])
		if dn == 0 {
			return 0, base.CorruptionErrorf("record: truncated object-index offset")
		}
		consumed += dn
		var off uint64
		if i == 0 {
			off = delta
		} else {
			off = prev + delta
		}
		o.Offsets = append(o.Offsets, off)
		prev = off
	}
	return consumed, nil
}

// Reset implements Record.
func (o *ObjRecord) Reset() {
	hashSize := o.hashSize
	o.Digest = nil
	o.Offsets = o.Offsets[:0]
	o.hashSize = hashSize
}

package record

import (
	"github.com/refstore/reftable/internal/base"
	"github.com/refstore/reftable/internal/binfmt"
)

// IndexRecord is one entry of an intra-file index section: the last key
// of a data block paired with that block's file offset. A chain of
// these, possibly recursive, lets a reader binary-search straight to the
// block that might hold a wanted key instead of scanning the section
// from the start.
type IndexRecord struct {
	LastKey     []byte
	BlockOffset uint64
}

var _ Record = (*IndexRecord)(nil)

// Type implements Record.
func (x *IndexRecord) Type() Type { return TypeIndex }

// ValueType implements Record. Index records carry no variant tag.
func (x *IndexRecord) ValueType() uint8 { return 0 }

// SetHashSize implements Record; index records don't carry digests.
func (x *IndexRecord) SetHashSize(int) {}

// Key implements Record.
func (x *IndexRecord) Key() binfmt.Bytes { return binfmt.Bytes(x.LastKey) }

// Encode implements Record.
func (x *IndexRecord) Encode(buf []byte) (int, error) {
	out := binfmt.PutUvarint(buf[:0], x.BlockOffset)
	if len(out) > len(buf) {
		return 0, base.ErrFull()
	}
	copy(buf, out)
	return len(out), nil
}

// Decode implements Record.
func (x *IndexRecord) Decode(key binfmt.Bytes, _ uint8, data []byte) (int, error) {
	x.LastKey = append([]byte(nil), key...)
	off, n := binfmt.Uvarint(data)
	if n == 0 {
		return 0, base.CorruptionErrorf("record: truncated index block offset")
	}
	x.BlockOffset = off
	return n, nil
}

// Reset implements Record.
func (x *IndexRecord) Reset() { *x = IndexRecord{} }

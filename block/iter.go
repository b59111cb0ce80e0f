package block

import (
	"github.com/refstore/reftable/internal/base"
	"github.com/refstore/reftable/internal/binfmt"
	"github.com/refstore/reftable/record"
)

// Iter streams entries out of a Reader's block starting at some offset.
// It owns its own last-key buffer and never mutates the block it reads
// from.
//
// Iter is a small value type on purpose: block.Reader.Seek speculatively
// copies an Iter, probes Next on the copy, and only keeps the advance if
// the probed entry's key is still short of the target — see
// original_source/c/block.c's block_reader_seek, which does the same
// save/restore dance with a local block_iter.
type Iter struct {
	r       *Reader
	nextOff int
	lastKey binfmt.Bytes
}

// Next decodes the entry at the iterator's current position into rec,
// advances past it, and reports whether an entry was produced. A false,
// nil return means end of block; a non-nil error means the block is
// corrupt.
func (it *Iter) Next(rec record.Record) (bool, error) {
	if it.nextOff >= it.r.entriesEnd {
		return false, nil
	}

	start := it.nextOff
	data := it.r.data[start:it.r.entriesEnd]

	shared, n := binfmt.Uvarint(data)
	if n == 0 {
		return false, base.CorruptionErrorf("block: truncated shared-prefix-length varint")
	}
	data = data[n:]
	consumed := n

	tag, n2 := binfmt.Uvarint(data)
	if n2 == 0 {
		return false, base.CorruptionErrorf("block: truncated suffix-length/value-type varint")
	}
	data = data[n2:]
	consumed += n2

	suffixLen := int(tag >> 3)
	valueType := uint8(tag & 0x7)
	if suffixLen > len(data) || int(shared) > len(it.lastKey) {
		return false, base.CorruptionErrorf("block: invalid key framing (shared=%d suffix=%d)", shared, suffixLen)
	}
	suffix := data[:suffixLen]
	data = data[suffixLen:]
	consumed += suffixLen

	key := make(binfmt.Bytes, int(shared)+suffixLen)
	copy(key, it.lastKey[:shared])
	copy(key[shared:], suffix)

	rec.SetHashSize(it.r.hashSize)
	vn, err := rec.Decode(key, valueType, data)
	if err != nil {
		return false, err
	}
	consumed += vn

	it.nextOff = start + consumed
	it.lastKey = key
	return true, nil
}

package block

import (
	"github.com/refstore/reftable/internal/base"
	"github.com/refstore/reftable/internal/binfmt"
	"github.com/refstore/reftable/record"
)

// Reader parses an already-written block: it validates the type byte,
// locates the restart table, and hands out Iter values that can scan
// from the start or seek via restart binary search.
type Reader struct {
	typ          record.Type
	data         []byte // trimmed to exactly [0, blockLen) of the physical block, header-offset-relative for the first block
	headerOff    int
	entriesEnd   int // == restart table start
	restartCount int
	restartOff   int
	hashSize     int
}

// NewReader parses the block whose type byte lives at data[headerOff].
// data must extend at least to the block's declared end; trailing bytes
// (e.g. padding, or the next block) are ignored. hashSize configures the
// digest width SetHashSize is called with on every record this reader's
// iterators decode.
func NewReader(data []byte, headerOff, hashSize int) (*Reader, error) {
	if len(data) < headerOff+4 {
		return nil, base.CorruptionErrorf("block: truncated block header")
	}
	typ := record.Type(data[headerOff])
	if !typ.IsValid() {
		return nil, base.CorruptionErrorf("block: unknown block type %q", data[headerOff])
	}
	length := int(binfmt.Uint24(data[headerOff+1 : headerOff+4]))
	if length < headerOff+4 || length > len(data) {
		return nil, base.CorruptionErrorf("block: invalid block length %d", length)
	}
	data = data[:length]
	if length < 2 {
		return nil, base.CorruptionErrorf("block: block too small for restart count")
	}
	restartCount := int(binfmt.Uint16(data[length-2 : length]))
	restartOff := length - 2 - 3*restartCount
	if restartOff < headerOff+4 {
		return nil, base.CorruptionErrorf("block: invalid restart table (count %d)", restartCount)
	}
	return &Reader{
		typ:          typ,
		data:         data,
		headerOff:    headerOff,
		entriesEnd:   restartOff,
		restartCount: restartCount,
		restartOff:   restartOff,
		hashSize:     hashSize,
	}, nil
}

// Type reports the block's section type.
func (r *Reader) Type() record.Type { return r.typ }

// Len reports the block's total byte length (header-offset-relative for
// the first block of a file), i.e. the value the writer stored in the
// payload-length field.
func (r *Reader) Len() int { return len(r.data) }

// restartOffset returns the header-offset-relative byte offset of the
// i'th restart point.
func (r *Reader) restartOffset(i int) int {
	off := r.restartOff + 3*i
	return int(binfmt.Uint24(r.data[off : off+3]))
}

// Start returns an iterator positioned at the beginning of the block's
// entry area.
func (r *Reader) Start() *Iter {
	return &Iter{r: r, nextOff: r.headerOff + 4}
}

// decodeKeyAt decodes just the key of the entry at a restart point
// (which always has shared_prefix_len == 0) without materializing its
// value, for use by the restart binary search.
func (r *Reader) decodeKeyAt(off int) (binfmt.Bytes, error) {
	data := r.data[off:r.entriesEnd]
	shared, n := binfmt.Uvarint(data)
	if n == 0 || shared != 0 {
		return nil, base.CorruptionErrorf("block: restart point is not shared-prefix-free")
	}
	data = data[n:]
	tag, n := binfmt.Uvarint(data)
	if n == 0 {
		return nil, base.CorruptionErrorf("block: truncated restart entry header")
	}
	data = data[n:]
	suffixLen := int(tag >> 3)
	if suffixLen > len(data) {
		return nil, base.CorruptionErrorf("block: truncated restart entry suffix")
	}
	return binfmt.Bytes(data[:suffixLen]), nil
}

// Seek returns an iterator positioned so that the next call to Next
// yields the smallest stored key >= want, using the restart table's
// binary search the way block_reader_seek does in the C original:
// probe restarts to find the last one whose key is < want (or the start
// of the entry area if there is none), then scan forward from there.
func (r *Reader) Seek(want binfmt.Bytes) (*Iter, error) {
	var searchErr error
	idx := binfmt.Search(r.restartCount, func(i int) int {
		key, err := r.decodeKeyAt(r.restartOffset(i))
		if err != nil {
			searchErr = err
			return 0
		}
		return key.Compare(want)
	})
	if searchErr != nil {
		return nil, searchErr
	}

	var start int
	if idx > 0 {
		start = r.restartOffset(idx - 1)
	} else {
		start = r.headerOff + 4
	}

	it := &Iter{r: r, nextOff: start}
	scratch, err := record.New(r.typ)
	if err != nil {
		return nil, err
	}
	scratch.SetHashSize(r.hashSize)
	for {
		probe := *it
		ok, err := (&probe).Next(scratch)
		if err != nil {
			return nil, err
		}
		if !ok || scratch.Key().Compare(want) >= 0 {
			return it, nil
		}
		*it = probe
	}
}

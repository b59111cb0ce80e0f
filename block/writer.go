// Package block implements the prefix-compressed block layout shared by
// every reftable section (ref, object-index, internal-index, log):
// restart points for intra-block binary search, a writer that assembles
// one fixed-size block at a time, and a reader/iterator pair that
// streams or seeks within an already-written block.
//
// This is the Go reshaping of original_source/c/block.c's
// block_writer/block_reader/block_iter trio, generalized to work over
// any record.Record implementation instead of a single hard-coded record
// type, the way pebble's sstable/block package is generic over its own
// key encoding.
package block

import (
	"github.com/refstore/reftable/internal/base"
	"github.com/refstore/reftable/internal/binfmt"
	"github.com/refstore/reftable/record"
)

// DefaultRestartInterval is the default restart interval: every 16th
// entry is a restart point.
const DefaultRestartInterval = 16

// MaxRestarts caps the restart table so offsets fit in the block's u16
// restart_count field.
const MaxRestarts = 1<<16 - 1

// restartTrailerReserve is the worst-case trailer size register_restart
// in the C original checks against: 2 bytes for the u16 count plus 3
// bytes per restart offset, assuming one more restart might still be
// added.
func restartTrailerReserve(restarts int) int {
	return 2 + 3*(restarts+1)
}

// Writer assembles one block's worth of prefix-compressed entries. It
// writes directly into a caller-owned, fixed-size buffer starting at
// headerOff (the first block of a file reserves [0, headerOff) for the
// file header).
type Writer struct {
	typ             record.Type
	buf             []byte
	blockSize       int
	headerOff       int
	restartInterval int

	next     int
	restarts []uint32
	lastKey  binfmt.Bytes
	entries  int
}

// NewWriter starts filling a block of type typ into buf (len(buf) ==
// blockSize), writing the 4-byte block header (type + 24-bit payload
// length placeholder) at headerOff.
func NewWriter(typ record.Type, buf []byte, blockSize, headerOff, restartInterval int) *Writer {
	if restartInterval <= 0 {
		restartInterval = DefaultRestartInterval
	}
	buf[headerOff] = byte(typ)
	return &Writer{
		typ:             typ,
		buf:             buf,
		blockSize:       blockSize,
		headerOff:       headerOff,
		restartInterval: restartInterval,
		next:            headerOff + 4,
	}
}

// Type reports the block's section type.
func (w *Writer) Type() record.Type { return w.typ }

// Entries reports how many records have been accepted so far.
func (w *Writer) Entries() int { return w.entries }

// Restarts reports how many restart points have been registered so far.
func (w *Writer) Restarts() int { return len(w.restarts) }

// Empty reports whether no entries have been written yet.
func (w *Writer) Empty() bool { return w.entries == 0 }

// LastKey returns the most recently added entry's full key.
func (w *Writer) LastKey() binfmt.Bytes { return w.lastKey }

// Add encodes rec's key (prefix-compressed against the previous key
// unless this entry lands on a restart boundary) and value into the
// block. It returns base.ErrFull() if the entry would not fit in the
// remaining block space, in which case the block is unmodified and the
// caller is expected to flush and retry on a fresh block exactly once.
func (w *Writer) Add(rec record.Record) error {
	key := rec.Key()

	isRestart := w.entries%w.restartInterval == 0
	shared := 0
	if !isRestart {
		shared = w.lastKey.CommonPrefixLen(key)
	}
	suffix := key[shared:]

	avail := w.blockSize - w.next
	if avail < 0 {
		return base.ErrFull()
	}
	scratch := make([]byte, 0, avail+binfmt.MaxVarintLen64*2+len(suffix)+64)
	scratch = binfmt.PutUvarint(scratch, uint64(shared))
	scratch = binfmt.PutUvarint(scratch, uint64(len(suffix))<<3|uint64(rec.ValueType())&0x7)
	scratch = append(scratch, suffix...)

	valueSpace := avail - len(scratch)
	if valueSpace < 0 {
		valueSpace = 0
	}
	valueBuf := make([]byte, valueSpace)
	vn, err := rec.Encode(valueBuf)
	if err != nil {
		return base.ErrFull()
	}
	scratch = append(scratch, valueBuf[:vn]...)

	if err := w.registerRestart(len(scratch), isRestart); err != nil {
		return err
	}

	copy(w.buf[w.next:], scratch)
	w.next += len(scratch)
	w.lastKey = w.lastKey.Clone()
	w.lastKey = append(w.lastKey[:0], key...)
	w.entries++
	return nil
}

// registerRestart mirrors original_source/c/block.c's
// block_writer_register_restart: it decides whether a restart should
// actually be recorded (demoting it past MaxRestarts), verifies the
// entry plus worst-case restart trailer still fits, and — only on
// success — reserves the restart slot. Add then copies the entry in and
// advances w.next.
func (w *Writer) registerRestart(n int, wantRestart bool) error {
	restarts := len(w.restarts)
	if restarts >= MaxRestarts {
		wantRestart = false
	}
	projected := restarts
	if wantRestart {
		projected++
	}
	if restartTrailerReserve(projected-1)+n > w.blockSize-w.next {
		return base.ErrFull()
	}
	if wantRestart {
		w.restarts = append(w.restarts, uint32(w.next))
	}
	return nil
}

// Finish appends the restart offset table and restart count, and patches
// the block's 24-bit payload-length header field. It returns the final
// length of the block's bytes within buf (header-offset-relative),
// matching block_writer_finish in the C original.
func (w *Writer) Finish() int {
	for _, r := range w.restarts {
		binfmt.PutUint24(w.buf[w.next:], r)
		w.next += 3
	}
	binfmt.PutUint16(w.buf[w.next:], uint16(len(w.restarts)))
	w.next += 2
	// The payload-length field stores the block's end offset measured
	// from the start of buf, not from headerOff: for the first block of
	// a file, buf[0:headerOff) is the inline file header, so this value
	// is header-offset-relative, matching original_source/c/writer.c's
	// `put_u24(w->buf + 1 + w->header_off,
	// w->next)` where w->next is the absolute position within buf.
	binfmt.PutUint24(w.buf[w.headerOff+1:], uint32(w.next))
	return w.next
}

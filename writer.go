package reftable

import (
	"io"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/refstore/reftable/block"
	"github.com/refstore/reftable/internal/base"
	"github.com/refstore/reftable/internal/binfmt"
	"github.com/refstore/reftable/record"
)

var errWriterClosed = errors.New("reftable: writer already closed")

// writerPhase tracks which section a Writer currently accepts records for.
// Sections close in the fixed order ref, obj, log; a Writer never moves
// backwards.
type writerPhase int

const (
	phaseRef writerPhase = iota
	phaseLog
	phaseClosed
)

// indexEntry is one (last_key_of_block, offset) pair collected while a
// section's data blocks are written, the raw material for an index
// chain.
type indexEntry struct {
	lastKey binfmt.Bytes
	offset  uint64
}

// Writer assembles a single reftable file by driving a sequence of
// block.Writer instances across a caller-supplied sink, in the style of
// original_source/c/writer.c's writer struct. Records must be added in
// section order (AddRef* then AddLog*) and in strictly increasing key
// order within each section.
type Writer struct {
	sink io.Writer
	opts WriterOptions

	blockBuf       []byte
	bw             *block.Writer
	next           uint64
	pendingPadding int

	phase    writerPhase
	anyAdded bool

	refLastKey binfmt.Bytes
	logLastKey binfmt.Bytes

	refIndexEntries []indexEntry
	objIndexEntries []indexEntry
	logIndexEntries []indexEntry

	objOffsets map[string][]uint64

	stats Stats
}

// NewWriter prepares a Writer that appends encoded bytes to sink. Nothing
// is written until the first AddRef/AddLog call.
func NewWriter(sink io.Writer, opts WriterOptions) (*Writer, error) {
	if err := opts.setDefaults(); err != nil {
		return nil, err
	}
	return &Writer{
		sink:       sink,
		opts:       opts,
		blockBuf:   make([]byte, opts.BlockSize),
		objOffsets: make(map[string][]uint64),
	}, nil
}

// SetLimits overrides the update_index bounds given in WriterOptions. It
// must be called before the first record is added.
func (w *Writer) SetLimits(min, max uint64) error {
	if w.anyAdded {
		return base.OrderErrorf("reftable: SetLimits called after records were added")
	}
	w.opts.MinUpdateIndex = min
	w.opts.MaxUpdateIndex = max
	return nil
}

// Stats reports the accumulated section statistics. It is only meaningful
// after Close.
func (w *Writer) Stats() Stats { return w.stats }

func writeFull(sink io.Writer, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	n, err := sink.Write(p)
	if err != nil {
		return base.IOErrorf("reftable: short write: %v", err)
	}
	if n != len(p) {
		return base.IOErrorf("reftable: short write: wrote %d of %d bytes", n, len(p))
	}
	return nil
}

// paddedWrite mirrors original_source/c/writer.c's padded_write: padding
// from the previous block is flushed first, then p is written immediately,
// and newPending bytes of zero padding are deferred until the next call
// (or discarded if Close never calls this again).
func (w *Writer) paddedWrite(p []byte, newPending int) error {
	if w.pendingPadding > 0 {
		if err := writeFull(w.sink, make([]byte, w.pendingPadding)); err != nil {
			return err
		}
	}
	w.pendingPadding = newPending
	return writeFull(w.sink, p)
}

// startBlock opens a fresh block.Writer for typ, stamping the file header
// into blockBuf[0:headerSize] if this is the very first block of the
// file; the first block's budget includes that inline file header.
func (w *Writer) startBlock(typ record.Type, stats *SectionStats) {
	headerOff := 0
	if w.next == 0 {
		headerOff = headerSize
		h := header{
			blockSize:      uint32(w.opts.BlockSize),
			minUpdateIndex: w.opts.MinUpdateIndex,
			maxUpdateIndex: w.opts.MaxUpdateIndex,
		}
		h.encode(w.blockBuf[0:headerSize])
	}
	w.bw = block.NewWriter(typ, w.blockBuf, w.opts.BlockSize, headerOff, w.opts.RestartInterval)
	if stats.Blocks == 0 {
		stats.Offset = w.next
	}
}

// flushBlock finishes and writes out the current block, if any, recording
// its (last_key, offset) pair into indexEntries for later index-chain
// construction.
func (w *Writer) flushBlock(stats *SectionStats, indexEntries *[]indexEntry) error {
	if w.bw == nil || w.bw.Empty() {
		w.bw = nil
		return nil
	}
	typ := w.bw.Type()
	lastKey := w.bw.LastKey().Clone()
	rawLen := w.bw.Finish()

	padding := 0
	if !w.opts.Unpadded && typ != record.TypeLog {
		padding = w.opts.BlockSize - rawLen
		if padding < 0 {
			padding = 0
		}
	}
	if err := w.paddedWrite(w.blockBuf[:rawLen], padding); err != nil {
		return err
	}

	stats.Blocks++
	stats.Entries += w.bw.Entries()
	stats.Restarts += w.bw.Restarts()
	w.stats.Blocks++

	*indexEntries = append(*indexEntries, indexEntry{lastKey: lastKey, offset: w.next})

	w.next += uint64(rawLen + padding)
	w.bw = nil
	return nil
}

// addToSection enforces strictly increasing keys within a section and adds
// rec to the section's currently open block, flushing and opening a fresh
// block exactly once if the block is full.
func (w *Writer) addToSection(typ record.Type, rec record.Record, stats *SectionStats, indexEntries *[]indexEntry, lastKey *binfmt.Bytes) error {
	key := rec.Key()
	if *lastKey != nil && key.Compare(*lastKey) <= 0 {
		return base.OrderErrorf("reftable: records must be added in strictly increasing key order")
	}
	*lastKey = key.Clone()
	w.anyAdded = true

	if w.bw == nil {
		w.startBlock(typ, stats)
	}

	if err := w.bw.Add(rec); err == nil {
		return nil
	} else if !base.IsFull(err) {
		return err
	}

	if err := w.flushBlock(stats, indexEntries); err != nil {
		return err
	}
	w.startBlock(typ, stats)
	return w.bw.Add(rec)
}

// writeIndexChain writes entries (already known to number more than one)
// as a block of IndexRecords, recursing to a second level if that block
// itself doesn't fit in one block, until a single root block remains.
func (w *Writer) writeIndexChain(entries []indexEntry, stats *SectionStats) (uint64, error) {
	for {
		if len(entries) == 0 {
			return 0, nil
		}
		if len(entries) == 1 {
			return entries[0].offset, nil
		}
		var nextLevel []indexEntry
		var lastKey binfmt.Bytes
		for _, e := range entries {
			rec := &record.IndexRecord{LastKey: append([]byte(nil), e.lastKey...), BlockOffset: e.offset}
			if err := w.addToSection(record.TypeIndex, rec, stats, &nextLevel, &lastKey); err != nil {
				return 0, err
			}
		}
		if err := w.flushBlock(stats, &nextLevel); err != nil {
			return 0, err
		}
		entries = nextLevel
	}
}

// maybeWriteIndex only emits an index chain when the section spanned more
// than one data block; a single-block section needs no index.
func (w *Writer) maybeWriteIndex(entries []indexEntry, stats *SectionStats) (uint64, error) {
	if len(entries) <= 1 {
		return 0, nil
	}
	return w.writeIndexChain(entries, stats)
}

// indexHash records that digest is referenced by the ref currently being
// written into the section's in-progress block. w.next still denotes that
// block's start offset at this point, since it only advances on flush, so
// repeated refs to the same object within one block collapse to a single
// offset (mirrors original_source/c/writer.c's writer_index_hash).
func (w *Writer) indexHash(digest []byte) {
	key := string(digest)
	offs := w.objOffsets[key]
	if len(offs) > 0 && offs[len(offs)-1] == w.next {
		return
	}
	w.objOffsets[key] = append(offs, w.next)
}

// AddRef adds a single ref record to the ref section. ref.UpdateIndex is
// stored on disk relative to the Writer's MinUpdateIndex.
func (w *Writer) AddRef(ref *record.RefRecord) error {
	if w.phase == phaseClosed {
		return errWriterClosed
	}
	if w.phase != phaseRef {
		return base.OrderErrorf("reftable: ref records must precede the log section")
	}
	if ref.UpdateIndex < w.opts.MinUpdateIndex || ref.UpdateIndex > w.opts.MaxUpdateIndex {
		return base.OutOfRangeErrorf("reftable: update_index %d outside [%d,%d]", ref.UpdateIndex, w.opts.MinUpdateIndex, w.opts.MaxUpdateIndex)
	}

	wire := *ref
	wire.UpdateIndex = ref.UpdateIndex - w.opts.MinUpdateIndex
	wire.SetHashSize(w.opts.HashSize)

	if err := w.addToSection(record.TypeRef, &wire, &w.stats.Ref, &w.refIndexEntries, &w.refLastKey); err != nil {
		return err
	}

	if w.opts.IndexObjects {
		switch wire.Kind {
		case record.ValueDirect:
			w.indexHash(wire.Value)
		case record.ValuePeeled:
			w.indexHash(wire.Value)
			w.indexHash(wire.TargetValue)
		}
	}
	return nil
}

// dedupSortedOffsets removes adjacent duplicates from an already-sorted
// slice in place.
func dedupSortedOffsets(offs []uint64) []uint64 {
	out := offs[:0]
	var last uint64
	for i, v := range offs {
		if i > 0 && v == last {
			continue
		}
		out = append(out, v)
		last = v
	}
	return out
}

// closeRefSection flushes any open ref block, emits the ref-index chain if
// needed, and — if IndexObjects is set — drains the accumulated digest to
// offsets map into the object and object-index sections. It is idempotent
// past the first call via the phase transition in ensureLogPhase.
func (w *Writer) closeRefSection() error {
	if err := w.flushBlock(&w.stats.Ref, &w.refIndexEntries); err != nil {
		return err
	}
	idxOff, err := w.maybeWriteIndex(w.refIndexEntries, &w.stats.Ref)
	if err != nil {
		return err
	}
	w.stats.Ref.IndexOffset = idxOff

	if !w.opts.IndexObjects || len(w.objOffsets) == 0 {
		return nil
	}

	merged := make(map[string][]uint64, len(w.objOffsets))
	for full, offs := range w.objOffsets {
		key := full
		if len(key) > w.opts.ObjectIDLen {
			key = key[:w.opts.ObjectIDLen]
		}
		merged[key] = append(merged[key], offs...)
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lastKey binfmt.Bytes
	for _, k := range keys {
		offs := merged[k]
		sort.Slice(offs, func(i, j int) bool { return offs[i] < offs[j] })
		offs = dedupSortedOffsets(offs)
		rec := &record.ObjRecord{Digest: []byte(k), Offsets: offs}
		if err := w.addToSection(record.TypeObj, rec, &w.stats.Obj, &w.objIndexEntries, &lastKey); err != nil {
			return err
		}
	}
	if err := w.flushBlock(&w.stats.Obj, &w.objIndexEntries); err != nil {
		return err
	}
	objIdxOff, err := w.maybeWriteIndex(w.objIndexEntries, &w.stats.Obj)
	if err != nil {
		return err
	}
	w.stats.Obj.IndexOffset = objIdxOff
	w.stats.ObjectIDLen = w.opts.ObjectIDLen
	return nil
}

// ensureLogPhase closes the ref (and, if configured, object) sections the
// first time it is called, then locks the Writer into the log phase. It is
// safe to call more than once.
func (w *Writer) ensureLogPhase() error {
	if w.phase != phaseRef {
		return nil
	}
	if err := w.closeRefSection(); err != nil {
		return err
	}
	w.phase = phaseLog
	return nil
}

// AddLog adds a single log record to the log section, closing the ref (and
// object) sections on the first call.
func (w *Writer) AddLog(log *record.LogRecord) error {
	if w.phase == phaseClosed {
		return errWriterClosed
	}
	if err := w.ensureLogPhase(); err != nil {
		return err
	}
	wire := *log
	wire.SetHashSize(w.opts.HashSize)
	return w.addToSection(record.TypeLog, &wire, &w.stats.Log, &w.logIndexEntries, &w.logLastKey)
}

// Close finishes whichever sections have data, writes the footer, and
// flushes it to the sink. The Writer must not be used afterwards.
func (w *Writer) Close() error {
	if w.phase == phaseClosed {
		return nil
	}
	if err := w.ensureLogPhase(); err != nil {
		return err
	}
	if err := w.flushBlock(&w.stats.Log, &w.logIndexEntries); err != nil {
		return err
	}
	logIdxOff, err := w.maybeWriteIndex(w.logIndexEntries, &w.stats.Log)
	if err != nil {
		return err
	}
	w.stats.Log.IndexOffset = logIdxOff

	// An empty table (no ref or log records at all) never opened a block,
	// so the file header was never stamped; write it now as a standalone
	// 24 bytes ahead of the footer.
	if w.next == 0 {
		hdrBuf := make([]byte, headerSize)
		header{
			blockSize:      uint32(w.opts.BlockSize),
			minUpdateIndex: w.opts.MinUpdateIndex,
			maxUpdateIndex: w.opts.MaxUpdateIndex,
		}.encode(hdrBuf)
		if err := w.paddedWrite(hdrBuf, 0); err != nil {
			return err
		}
		w.next = headerSize
	}

	ft := footer{
		header: header{
			blockSize:      uint32(w.opts.BlockSize),
			minUpdateIndex: w.opts.MinUpdateIndex,
			maxUpdateIndex: w.opts.MaxUpdateIndex,
		},
		refIndexOffset:   w.stats.Ref.IndexOffset,
		objSectionOffset: w.stats.Obj.Offset,
		objectIDLen:      w.opts.ObjectIDLen,
		objIndexOffset:   w.stats.Obj.IndexOffset,
		logSectionOffset: w.stats.Log.Offset,
		hasLog:           w.stats.Log.Blocks > 0,
		logIndexOffset:   w.stats.Log.IndexOffset,
	}
	buf := make([]byte, footerSize)
	ft.encode(buf)

	// The final block's trailing padding is never written: the footer
	// follows it immediately, with no gap to fill.
	w.pendingPadding = 0
	if err := writeFull(w.sink, buf); err != nil {
		return err
	}
	w.phase = phaseClosed
	return nil
}

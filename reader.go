package reftable

import (
	"os"
	"strings"
	"time"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/refstore/reftable/block"
	"github.com/refstore/reftable/internal/base"
	"github.com/refstore/reftable/internal/binfmt"
	"github.com/refstore/reftable/record"
)

// slowOpenTracingThreshold mirrors darshanime-pebble/sstable/table.go's
// slowReadTracingThreshold: OpenFile's mmap-and-parse path is the one
// place this core does its own I/O, so it is the one place worth timing.
const slowOpenTracingThreshold = 5 * time.Millisecond

// Reader opens an already-complete reftable file held in memory (spec
// §4.2, §4.3). It never mutates data; OpenFile additionally mmaps a file
// on disk to produce that slice.
type Reader struct {
	data []byte
	opts ReaderOptions
	ft   footer

	refStart, refEnd uint64
	objStart, objEnd uint64
	logStart, logEnd uint64

	closer func() error
}

// NewReader parses the footer and header of data (the complete contents
// of one reftable file) and prepares section boundaries for seeking.
func NewReader(data []byte, opts ReaderOptions) (*Reader, error) {
	opts.setDefaults()
	if len(data) < headerSize+footerSize {
		return nil, base.CorruptionErrorf("reftable: file too small (%d bytes)", len(data))
	}
	hdr, err := decodeHeader(data[0:headerSize])
	if err != nil {
		return nil, err
	}
	ft, err := decodeFooter(data[len(data)-footerSize:])
	if err != nil {
		return nil, err
	}
	if hdr != ft.header {
		return nil, base.CorruptionErrorf("reftable: leading header does not match footer")
	}

	footerStart := uint64(len(data)) - footerSize
	r := &Reader{data: data, opts: opts, ft: ft}

	// An object-index section can only be non-empty when ref records exist
	// (its entries are built from ref-record digests), and the ref section,
	// if non-empty, is always written first and so always starts at
	// absolute offset 0. So objSectionOffset == 0 is unambiguous: it can
	// only mean "no object index". The log section has no such guarantee —
	// a table with no refs writes its log blocks first, legitimately
	// starting at offset 0 — so its presence is tracked by ft.hasLog rather
	// than by the offset field alone.
	r.refStart = 0
	r.refEnd = footerStart
	if ft.objSectionOffset > 0 {
		r.refEnd = ft.objSectionOffset
	} else if ft.hasLog {
		r.refEnd = ft.logSectionOffset
	}

	r.objStart = ft.objSectionOffset
	r.objEnd = footerStart
	if ft.hasLog {
		r.objEnd = ft.logSectionOffset
	}

	r.logStart = ft.logSectionOffset
	r.logEnd = footerStart

	return r, nil
}

// OpenFile mmaps path read-only and returns a Reader over its contents,
// the way perkeep-perkeep's blobserver storage layers favor mmap'd
// read-only access over buffering a whole file in a []byte copy; grounded
// on the edsrzf/mmap-go dependency surfaced by the example pack's module
// graphs.
func OpenFile(path string, opts ReaderOptions) (*Reader, error) {
	opts.setDefaults()
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return nil, base.IOErrorf("reftable: %v", err)
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, base.IOErrorf("reftable: mmap %s: %v", path, err)
	}
	r, err := NewReader(m, opts)
	if err != nil {
		_ = m.Unmap()
		return nil, err
	}
	r.closer = m.Unmap

	// Call IsTracingEnabled first to avoid boxing the duration into an
	// interface{} unless a trace is actually being collected, the same
	// guard table.go's readFooter uses around its own Eventf call.
	ctx := backgroundContext()
	if d := time.Since(start); d >= slowOpenTracingThreshold && opts.Logger.IsTracingEnabled(ctx) {
		opts.Logger.Eventf(ctx, "opening and mmapping %s (%d bytes) took %s", path, len(m), d)
	}
	return r, nil
}

// Close releases any resources OpenFile acquired. It is a no-op for
// readers constructed directly from a []byte via NewReader.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer()
	r.closer = nil
	return err
}

// MinUpdateIndex and MaxUpdateIndex report the table's declared
// update_index bounds.
func (r *Reader) MinUpdateIndex() uint64 { return r.ft.minUpdateIndex }
func (r *Reader) MaxUpdateIndex() uint64 { return r.ft.maxUpdateIndex }

// BlockSize reports the block size this table was written with.
func (r *Reader) BlockSize() int { return int(r.ft.blockSize) }

func (r *Reader) readBlock(offset uint64) (*block.Reader, error) {
	if offset >= uint64(len(r.data)) {
		return nil, base.CorruptionErrorf("reftable: block offset %d out of range", offset)
	}
	headerOff := 0
	if offset == 0 {
		headerOff = headerSize
	}
	return block.NewReader(r.data[offset:], headerOff, r.opts.HashSize)
}

// advance computes the absolute file offset of the block following the
// one at pos. Log blocks are never padded, so their true length
// (block.Reader.Len) is the correct stride; ref/obj blocks are padded out
// to the table's block size by a Writer unless WriterOptions.Unpadded was
// set. For a multi-block ref or obj section written with Unpadded, the
// stride is still the block size, so neither a linear scan nor iteration
// past the block an indexed seek lands in reads the following blocks
// correctly; only lookups answered within that one block are.
func (r *Reader) advance(typ record.Type, br *block.Reader, pos, sectionEnd uint64) uint64 {
	if typ == record.TypeLog {
		return pos + uint64(br.Len())
	}
	next := pos + uint64(r.ft.blockSize)
	if next > sectionEnd {
		next = sectionEnd
	}
	return next
}

// sectionIter streams records of one type across however many blocks a
// section spans, crossing block boundaries transparently.
type sectionIter struct {
	r          *Reader
	typ        record.Type
	sectionEnd uint64
	blockIt    *block.Iter
	nextOff    uint64
}

func (si *sectionIter) next(rec record.Record) (bool, error) {
	for {
		if si.blockIt == nil {
			if si.nextOff >= si.sectionEnd {
				return false, nil
			}
			br, err := si.r.readBlock(si.nextOff)
			if err != nil {
				return false, err
			}
			if br.Type() != si.typ {
				if br.Type() == record.TypeIndex {
					// The data blocks for this section are exhausted and we
					// have walked into its index chain, which a Writer always
					// places directly after the data blocks and before the
					// next section. That is a clean end, not corruption.
					return false, nil
				}
				return false, base.CorruptionErrorf("reftable: unexpected block type %q in section", byte(br.Type()))
			}
			si.nextOff = si.r.advance(si.typ, br, si.nextOff, si.sectionEnd)
			si.blockIt = br.Start()
		}
		ok, err := si.blockIt.Next(rec)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		si.blockIt = nil
	}
}

// seekSectionLinear scans blocks from start, seeking within each via its
// own restart table, until it finds a block whose seek position yields an
// entry (or runs out of section).
func (r *Reader) seekSectionLinear(typ record.Type, start, end uint64, want binfmt.Bytes) (*sectionIter, error) {
	pos := start
	for pos < end {
		br, err := r.readBlock(pos)
		if err != nil {
			return nil, err
		}
		if br.Type() != typ {
			if br.Type() == record.TypeIndex {
				// Ran off the data blocks into the section's index chain
				// without finding a match; same clean-end case as in
				// sectionIter.next.
				break
			}
			return nil, base.CorruptionErrorf("reftable: unexpected block type %q in section", byte(br.Type()))
		}
		it, err := br.Seek(want)
		if err != nil {
			return nil, err
		}
		nextPos := r.advance(typ, br, pos, end)

		scratch, err := record.New(typ)
		if err != nil {
			return nil, err
		}
		probe := *it
		ok, err := probe.Next(scratch)
		if err != nil {
			return nil, err
		}
		if ok {
			return &sectionIter{r: r, typ: typ, sectionEnd: end, blockIt: it, nextOff: nextPos}, nil
		}
		pos = nextPos
	}
	return &sectionIter{r: r, typ: typ, sectionEnd: end, nextOff: pos}, nil
}

// seekIndexed descends an index chain (possibly multi-level) to the data
// block that might hold want, then seeks within it.
func (r *Reader) seekIndexed(typ record.Type, indexOffset, sectionEnd uint64, want binfmt.Bytes) (*sectionIter, error) {
	offset := indexOffset
	for {
		br, err := r.readBlock(offset)
		if err != nil {
			return nil, err
		}
		if br.Type() == record.TypeIndex {
			it, err := br.Seek(want)
			if err != nil {
				return nil, err
			}
			var idx record.IndexRecord
			ok, err := it.Next(&idx)
			if err != nil {
				return nil, err
			}
			if !ok {
				return &sectionIter{r: r, typ: typ, sectionEnd: sectionEnd, nextOff: sectionEnd}, nil
			}
			offset = idx.BlockOffset
			continue
		}
		if br.Type() != typ {
			return nil, base.CorruptionErrorf("reftable: unexpected block type %q at index leaf", byte(br.Type()))
		}
		it, err := br.Seek(want)
		if err != nil {
			return nil, err
		}
		nextOff := r.advance(typ, br, offset, sectionEnd)
		return &sectionIter{r: r, typ: typ, sectionEnd: sectionEnd, blockIt: it, nextOff: nextOff}, nil
	}
}

// RefIterator streams RefRecords with update_index already translated
// back from the on-disk, MinUpdateIndex-relative encoding.
type RefIterator struct {
	si  *sectionIter
	min uint64
}

// Next decodes the next ref record, or reports (nil, false, nil) at the
// end of the ref section.
func (it *RefIterator) Next() (*record.RefRecord, bool, error) {
	rec := &record.RefRecord{}
	ok, err := it.si.next(rec)
	if err != nil || !ok {
		return nil, false, err
	}
	rec.UpdateIndex += it.min
	return rec, true, nil
}

// SeekRef positions an iterator at the smallest ref name >= name,
// descending the ref-index chain if one was written, or scanning blocks
// linearly otherwise.
func (r *Reader) SeekRef(name string) (*RefIterator, error) {
	if r.refEnd <= uint64(headerSize) {
		return &RefIterator{si: &sectionIter{r: r, typ: record.TypeRef, sectionEnd: r.refEnd, nextOff: r.refEnd}, min: r.ft.minUpdateIndex}, nil
	}
	want := binfmt.Bytes(name)
	var (
		si  *sectionIter
		err error
	)
	if r.ft.refIndexOffset != 0 {
		si, err = r.seekIndexed(record.TypeRef, r.ft.refIndexOffset, r.refEnd, want)
	} else {
		si, err = r.seekSectionLinear(record.TypeRef, r.refStart, r.refEnd, want)
	}
	if err != nil {
		return nil, err
	}
	return &RefIterator{si: si, min: r.ft.minUpdateIndex}, nil
}

// RefAt looks up exactly one ref by name, reporting found=false if it is
// absent (a deletion record still counts as present).
func (r *Reader) RefAt(name string) (*record.RefRecord, bool, error) {
	it, err := r.SeekRef(name)
	if err != nil {
		return nil, false, err
	}
	rec, ok, err := it.Next()
	if err != nil || !ok || rec.RefName != name {
		return nil, false, err
	}
	return rec, true, nil
}

// Exists implements refname.Snapshot: it reports whether name is a live
// (non-deletion) ref.
func (r *Reader) Exists(name string) (bool, error) {
	rec, ok, err := r.RefAt(name)
	if err != nil || !ok {
		return false, err
	}
	return !rec.IsDeletion(), nil
}

// ScanLivePrefixed implements refname.Snapshot over this single table.
func (r *Reader) ScanLivePrefixed(prefix string, fn func(name string) (bool, error)) error {
	it, err := r.SeekRef(prefix)
	if err != nil {
		return err
	}
	for {
		rec, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok || !strings.HasPrefix(rec.RefName, prefix) {
			return nil
		}
		if rec.IsDeletion() {
			continue
		}
		cont, err := fn(rec.RefName)
		if err != nil || !cont {
			return err
		}
	}
}

// ObjIterator streams ObjRecords from the object-index section.
type ObjIterator struct {
	si *sectionIter
}

func (it *ObjIterator) Next() (*record.ObjRecord, bool, error) {
	rec := &record.ObjRecord{}
	ok, err := it.si.next(rec)
	if err != nil || !ok {
		return nil, false, err
	}
	return rec, true, nil
}

// SeekObj positions an iterator at the smallest stored object-id prefix
// >= the given truncated digest.
func (r *Reader) SeekObj(idPrefix []byte) (*ObjIterator, error) {
	if r.ft.objSectionOffset == 0 {
		return &ObjIterator{si: &sectionIter{r: r, typ: record.TypeObj, sectionEnd: r.objEnd, nextOff: r.objEnd}}, nil
	}
	want := binfmt.Bytes(idPrefix)
	var (
		si  *sectionIter
		err error
	)
	if r.ft.objIndexOffset != 0 {
		si, err = r.seekIndexed(record.TypeObj, r.ft.objIndexOffset, r.objEnd, want)
	} else {
		si, err = r.seekSectionLinear(record.TypeObj, r.objStart, r.objEnd, want)
	}
	if err != nil {
		return nil, err
	}
	return &ObjIterator{si: si}, nil
}

// LogIterator streams LogRecords for one ref name, newest update_index
// first, following the log section's inverted key ordering.
type LogIterator struct {
	si   *sectionIter
	name string
}

// Next decodes the next log record, stopping (false, nil) once either the
// log section or this ref's run of entries ends.
func (it *LogIterator) Next() (*record.LogRecord, bool, error) {
	rec := &record.LogRecord{}
	ok, err := it.si.next(rec)
	if err != nil || !ok {
		return nil, false, err
	}
	if it.name != "" && rec.RefName != it.name {
		return nil, false, nil
	}
	return rec, true, nil
}

// SeekLog positions a LogIterator at name's first log entry whose
// update_index is <= updateIndex, walking newest-to-oldest from there.
// Pass ^uint64(0) to start at name's newest entry.
func (r *Reader) SeekLog(name string, updateIndex uint64) (*LogIterator, error) {
	if !r.ft.hasLog {
		return &LogIterator{si: &sectionIter{r: r, typ: record.TypeLog, sectionEnd: r.logEnd, nextOff: r.logEnd}}, nil
	}
	want := make([]byte, 0, len(name)+9)
	want = append(want, name...)
	if name != "" {
		want = append(want, 0)
		var inverted [8]byte
		binfmt.PutUint64(inverted[:], ^updateIndex)
		want = append(want, inverted[:]...)
	}

	var (
		si  *sectionIter
		err error
	)
	if r.ft.logIndexOffset != 0 {
		si, err = r.seekIndexed(record.TypeLog, r.ft.logIndexOffset, r.logEnd, want)
	} else {
		si, err = r.seekSectionLinear(record.TypeLog, r.logStart, r.logEnd, want)
	}
	if err != nil {
		return nil, err
	}
	return &LogIterator{si: si, name: name}, nil
}

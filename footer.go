package reftable

import (
	"hash/crc32"

	"github.com/refstore/reftable/internal/base"
	"github.com/refstore/reftable/internal/binfmt"
)

// headerSize is the fixed 24-byte file header repeated at the start of
// the file and inside the footer.
const headerSize = 24

// footerSize is the fixed 68-byte trailer.
const footerSize = 68

var magic = [4]byte{'R', 'E', 'F', 'T'}

const formatVersion = 1

// header is the 24-byte structure repeated verbatim at the start of the
// file and the start of the footer.
type header struct {
	blockSize      uint32
	minUpdateIndex uint64
	maxUpdateIndex uint64
}

func (h header) encode(buf []byte) {
	_ = buf[headerSize-1]
	copy(buf[0:4], magic[:])
	buf[4] = formatVersion
	binfmt.PutUint24(buf[5:8], h.blockSize)
	binfmt.PutUint64(buf[8:16], h.minUpdateIndex)
	binfmt.PutUint64(buf[16:24], h.maxUpdateIndex)
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, base.CorruptionErrorf("reftable: truncated file header")
	}
	if [4]byte(buf[0:4]) != magic {
		return header{}, base.CorruptionErrorf("reftable: bad magic %q", buf[0:4])
	}
	if buf[4] != formatVersion {
		return header{}, base.CorruptionErrorf("reftable: unsupported version %d", buf[4])
	}
	return header{
		blockSize:      binfmt.Uint24(buf[5:8]),
		minUpdateIndex: binfmt.Uint64(buf[8:16]),
		maxUpdateIndex: binfmt.Uint64(buf[16:24]),
	}, nil
}

// footer is the 68-byte trailer closing out every table file.
type footer struct {
	header

	refIndexOffset   uint64
	objSectionOffset uint64
	objectIDLen      int
	objIndexOffset   uint64
	logSectionOffset uint64
	hasLog           bool
	logIndexOffset   uint64
}

func (f footer) encode(buf []byte) {
	_ = buf[footerSize-1]
	f.header.encode(buf[0:headerSize])
	binfmt.PutUint64(buf[24:32], f.refIndexOffset)
	binfmt.PutUint64(buf[32:40], f.objSectionOffset<<5|uint64(f.objectIDLen))
	binfmt.PutUint64(buf[40:48], f.objIndexOffset)
	// The log section is the only one that may legitimately start at file
	// offset 0 (a table with no refs writes its log blocks first), so 0
	// can't double as "no log section" the way it safely can for obj. Bias
	// a present offset by +1 and reserve 0 for "absent".
	var logField uint64
	if f.hasLog {
		logField = f.logSectionOffset + 1
	}
	binfmt.PutUint64(buf[48:56], logField)
	binfmt.PutUint64(buf[56:64], f.logIndexOffset)
	binfmt.PutUint32(buf[64:68], crc32.ChecksumIEEE(buf[0:64]))
}

// decodeFooter parses and validates a trailing 68-byte footer, including
// the CRC-32 over bytes [0..64).
//
// hash/crc32 from the standard library is used directly rather than a
// third-party checksum package: the footer's CRC-32 is a fixed part of
// the wire format, not a pluggable integrity layer, and the one complete
// Go reftable implementation in the example pack (other_examples'
// antgroup-hugescm reftable.go) computes the identical checksum with
// crc32.ChecksumIEEE — there is nothing for a third-party library to add
// here. See DESIGN.md.
func decodeFooter(buf []byte) (footer, error) {
	if len(buf) != footerSize {
		return footer{}, base.CorruptionErrorf("reftable: footer must be %d bytes, got %d", footerSize, len(buf))
	}
	want := binfmt.Uint32(buf[64:68])
	got := crc32.ChecksumIEEE(buf[0:64])
	if want != got {
		return footer{}, base.CorruptionErrorf("reftable: footer CRC mismatch (want %08x, got %08x)", want, got)
	}
	h, err := decodeHeader(buf[0:headerSize])
	if err != nil {
		return footer{}, err
	}
	objField := binfmt.Uint64(buf[32:40])
	logField := binfmt.Uint64(buf[48:56])
	hasLog := logField != 0
	var logSectionOffset uint64
	if hasLog {
		logSectionOffset = logField - 1
	}
	return footer{
		header:           h,
		refIndexOffset:   binfmt.Uint64(buf[24:32]),
		objSectionOffset: objField >> 5,
		objectIDLen:      int(objField & 0x1f),
		objIndexOffset:   binfmt.Uint64(buf[40:48]),
		logSectionOffset: logSectionOffset,
		hasLog:           hasLog,
		logIndexOffset:   binfmt.Uint64(buf[56:64]),
	}, nil
}

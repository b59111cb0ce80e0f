package reftable

import (
	"context"

	"github.com/refstore/reftable/block"
	"github.com/refstore/reftable/internal/base"
)

// MaxBlockSize is the largest block size the 24-bit payload-length field
// can express: 2^24-1.
const MaxBlockSize = 1<<24 - 1

// DefaultHashSize is the digest width used when WriterOptions.HashSize is
// left at zero; it matches the SHA-1 digest size git used before the
// SHA-256 transition.
const DefaultHashSize = 20

// WriterOptions configures a Writer.
type WriterOptions struct {
	// BlockSize bounds every block's on-disk size. Zero selects a
	// conservative default; values above MaxBlockSize are rejected.
	BlockSize int

	// RestartInterval is how often a block writer forces a
	// shared-prefix-free restart point. Zero selects
	// block.DefaultRestartInterval (16).
	RestartInterval int

	// MinUpdateIndex and MaxUpdateIndex bound every ref record's
	// update_index. They may also be set after construction via
	// Writer.SetLimits, as long as no record has been added yet.
	MinUpdateIndex uint64
	MaxUpdateIndex uint64

	// Unpadded disables zero-padding data blocks out to BlockSize. Log
	// blocks are always unpadded regardless of this flag.
	Unpadded bool

	// IndexObjects turns on the object-index section.
	IndexObjects bool

	// ObjectIDLen is how many leading bytes of each object digest are
	// stored in the object-index section (2..31). Zero selects HashSize,
	// capped at 31 (so a 32-byte digest is truncated to 31 bytes).
	ObjectIDLen int

	// HashSize is the width of a digest. Zero selects DefaultHashSize.
	HashSize int

	// Logger receives off-hot-path diagnostics (slow reads, etc). Nil
	// selects base.NopLoggerAndTracer{}.
	Logger base.LoggerAndTracer
}

func (o *WriterOptions) setDefaults() error {
	if o.BlockSize == 0 {
		o.BlockSize = 4096
	}
	if o.BlockSize < 0 || o.BlockSize > MaxBlockSize {
		return base.CorruptionErrorf("reftable: block size %d out of range", o.BlockSize)
	}
	if o.RestartInterval == 0 {
		o.RestartInterval = block.DefaultRestartInterval
	}
	if o.HashSize == 0 {
		o.HashSize = DefaultHashSize
	}
	if o.ObjectIDLen == 0 {
		o.ObjectIDLen = o.HashSize
		if o.ObjectIDLen > 31 {
			// The footer packs object_id_len into the low 5 bits of the
			// obj-section-offset word, so it can never exceed 31 even when
			// HashSize (e.g. 32 for SHA-256) is wider.
			o.ObjectIDLen = 31
		}
	}
	if o.ObjectIDLen < 2 || o.ObjectIDLen > 31 {
		return base.CorruptionErrorf("reftable: object_id_len %d out of range [2,31]", o.ObjectIDLen)
	}
	if o.Logger == nil {
		o.Logger = base.NopLoggerAndTracer{}
	}
	return nil
}

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	// HashSize is the width of a digest. Readers learn the authoritative
	// value from the file itself only if a future header version carries
	// it (version 1 has no hash-id field); until then the caller must
	// supply it, the same contract WriterOptions.HashSize places on the
	// writer.
	HashSize int

	// Logger receives off-hot-path diagnostics.
	Logger base.LoggerAndTracer
}

func (o *ReaderOptions) setDefaults() {
	if o.HashSize == 0 {
		o.HashSize = DefaultHashSize
	}
	if o.Logger == nil {
		o.Logger = base.NopLoggerAndTracer{}
	}
}

// backgroundContext is used for the handful of Logger.Eventf/
// IsTracingEnabled calls the core makes off its own initiative. Readers
// and writers otherwise take no context: every operation here is
// in-memory or a single buffered write/read with no suspension points.
func backgroundContext() context.Context { return context.Background() }

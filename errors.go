package reftable

import "github.com/refstore/reftable/internal/base"

// The error kinds callers actually import and check with errors.Is.
var (
	// ErrIO marks a failure of the caller-supplied sink or source.
	ErrIO = base.ErrIO
	// ErrCorruption marks a bad magic, version, CRC, block type, or
	// varint. A Reader is invalid once this is observed.
	ErrCorruption = base.ErrCorruption
	// ErrOrder marks a non-monotonic record added to a Writer.
	ErrOrder = base.ErrOrder
	// ErrOutOfRange marks an update_index outside a Writer's declared
	// limits.
	ErrOutOfRange = base.ErrOutOfRange
	// ErrRefnameInvalid marks a lexically invalid ref name.
	ErrRefnameInvalid = base.ErrRefnameInvalid
	// ErrNameConflict marks a hierarchical refname conflict.
	ErrNameConflict = base.ErrNameConflict
)

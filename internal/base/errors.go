// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base holds the error kinds and logging surface shared by every
// reftable package, mirroring the role pebble's internal/base plays for
// sstable: a small, dependency-light layer that the leaf packages (block,
// record, refname) and the root package both import.
package base

import (
	"github.com/cockroachdb/errors"
)

// ErrIO marks a failure of the caller-supplied sink or source. The core
// never constructs this itself beyond wrapping what the sink/source
// returned.
var ErrIO = errors.New("reftable: io error")

// ErrCorruption marks a bad magic, version, CRC, block type, or varint.
// Readers become invalid once this is observed.
var ErrCorruption = errors.New("reftable: format error")

// ErrOrder marks a non-monotonic key added to a writer section. This is a
// programmer error: sections must be appended in strictly increasing key
// order.
var ErrOrder = errors.New("reftable: out-of-order write")

// ErrOutOfRange marks a ref record whose update_index falls outside the
// writer's declared [min_update_index, max_update_index] bounds.
var ErrOutOfRange = errors.New("reftable: update_index out of range")

// ErrRefnameInvalid marks a lexically invalid ref name (empty component,
// ".", "..", or a trailing "/").
var ErrRefnameInvalid = errors.New("reftable: invalid refname")

// ErrNameConflict marks a hierarchical refname conflict: one of the added
// names is a prefix (or has a prefix) of an existing, non-deleted ref.
var ErrNameConflict = errors.New("reftable: refname conflict")

// errFull is block-writer-local: add() refused an entry because it would
// not fit. Callers (the table writer) catch this, flush, and retry once;
// if the entry does not fit in the fresh block either, the retry's error
// is returned to the reftable caller.
var errFull = errors.New("reftable: block full")

// CorruptionErrorf wraps cockroachdb/errors to build an ErrCorruption with
// a formatted, redaction-safe message, the same shape as pebble's
// base.CorruptionErrorf in sstable/table.go.
func CorruptionErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruption)
}

// IOErrorf wraps an underlying sink/source failure.
func IOErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrIO)
}

// OrderErrorf reports a non-monotonic write.
func OrderErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrOrder)
}

// OutOfRangeErrorf reports an update_index outside declared limits.
func OutOfRangeErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrOutOfRange)
}

// RefnameErrorf reports a lexically invalid ref name.
func RefnameErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrRefnameInvalid)
}

// NameConflictErrorf reports a hierarchical refname conflict.
func NameConflictErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrNameConflict)
}

// ErrFull reports that a block cannot accept another entry. It is returned
// by block.Writer.Add and handled by the table writer (flush-and-retry-once);
// a second ErrFull on the fresh block is returned to the caller.
func ErrFull() error { return errFull }

// IsFull reports whether err is (or wraps) the block-full sentinel.
func IsFull(err error) bool { return errors.Is(err, errFull) }

// IsCorruption reports whether err is (or wraps) ErrCorruption.
func IsCorruption(err error) bool { return errors.Is(err, ErrCorruption) }

// Package record implements the polymorphic record kinds a reftable block
// carries: ref, object-index, internal-index, and log records. Each kind
// implements the same narrow interface (key, value-type tag, encode,
// decode) so the block writer/reader in package block can stay generic
// over "whatever section this is."
//
// This replaces the C original's vtable-of-function-pointers
// (record.h's `struct record_ops`) with a Go interface and a type-switch
// constructor, the idiomatic substitute for a tagged union dispatched at
// runtime — grounded on original_source/c/block.c's `rec->ops->key`,
// `->encode`, `->decode`, `->val_type` call sites.
package record

import (
	"github.com/cockroachdb/errors"
	"github.com/refstore/reftable/internal/base"
	"github.com/refstore/reftable/internal/binfmt"
)

// Type is a block/record section type byte: 'r' (ref), 'o' (object
// index), 'i' (internal index), 'l' (log). It is also the first byte of
// every block.
type Type byte

// The block/record types this implementation knows about. TypeGroup
// never appears as a record kind on its own (it shares the object-index
// encoding but groups offsets differently in some forks); it is kept
// here for parity with the full type-byte set ('r'|'o'|'i'|'g'|'l').
// IsValid (and so block.NewReader) accepts it, but New has no record kind
// for it and returns an error, and this implementation never emits it.
const (
	TypeRef   Type = 'r'
	TypeObj   Type = 'o'
	TypeIndex Type = 'i'
	TypeGroup Type = 'g'
	TypeLog   Type = 'l'
)

// IsValid reports whether t is one of the five type bytes ever legal on
// the wire.
func (t Type) IsValid() bool {
	switch t {
	case TypeRef, TypeObj, TypeIndex, TypeGroup, TypeLog:
		return true
	default:
		return false
	}
}

// Record is the polymorphic record interface. A concrete Record always
// reports the same Type() for its lifetime; Key() returns the primary
// key bytes compared lexicographically across the section.
type Record interface {
	// Type reports the block/section type this record belongs to.
	Type() Type

	// Key returns the record's primary key, valid until the next call
	// that mutates the record (Reset/Decode).
	Key() binfmt.Bytes

	// ValueType returns the 3-bit tag threaded through the key's
	// varint-encoded (suffix_len<<3)|value_type header, letting Decode
	// know which variant to materialize without re-deriving it from the
	// payload bytes.
	ValueType() uint8

	// Encode writes the record's value payload (not the key — the block
	// writer encodes the shared/suffix key header itself) into buf,
	// returning the number of bytes written, or an error if buf is too
	// small (base.ErrFull-compatible; the block writer interprets a
	// short buffer as "doesn't fit" and retries on a fresh block).
	Encode(buf []byte) (int, error)

	// Decode materializes the record from a decoded key, the 3-bit
	// extra/value-type tag, and the remaining undecoded payload bytes.
	// It returns the number of payload bytes consumed.
	Decode(key binfmt.Bytes, valueType uint8, data []byte) (int, error)

	// Reset clears the record back to its zero value so it can be
	// reused as iteration scratch space (mirrors block_iter reusing one
	// record across Next calls).
	Reset()

	// SetHashSize tells a ref or log record how wide a digest is in this
	// table (a writer-option-supplied constant, typically 20 or 32
	// bytes). Index records ignore it; object-index records store it
	// without using it.
	SetHashSize(n int)
}

// New constructs a zero-value Record for the given type byte, the Go
// stand-in for the C original's `new_record(byte)` dispatch.
func New(t Type) (Record, error) {
	switch t {
	case TypeRef:
		return &RefRecord{}, nil
	case TypeObj:
		return &ObjRecord{}, nil
	case TypeIndex:
		return &IndexRecord{}, nil
	case TypeLog:
		return &LogRecord{}, nil
	default:
		return nil, errors.Mark(errors.Newf("record: unsupported type %q", byte(t)), base.ErrCorruption)
	}
}

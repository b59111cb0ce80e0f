package record

import (
	"github.com/refstore/reftable/internal/base"
	"github.com/refstore/reftable/internal/binfmt"
)

// LogRecord is one reflog-style entry: who changed a ref, from what to
// what, when, and why. Its key is (ref_name, update_index) with
// update_index bitwise-inverted before being appended to the key bytes,
// so that within one ref_name, newer log entries (larger update_index)
// sort first.
type LogRecord struct {
	RefName     string
	UpdateIndex uint64
	Old         []byte // HASH_SIZE bytes
	New         []byte // HASH_SIZE bytes
	Name        string
	Email       string
	Time        uint64 // unix seconds
	TZOffset    int32  // minutes east of UTC
	Message     string

	hashSize int
	keyBuf   []byte
}

var _ Record = (*LogRecord)(nil)

// Type implements Record.
func (l *LogRecord) Type() Type { return TypeLog }

// ValueType implements Record. Log records carry no variant tag.
func (l *LogRecord) ValueType() uint8 { return 0 }

// SetHashSize implements Record.
func (l *LogRecord) SetHashSize(n int) { l.hashSize = n }

// Key implements Record: ref_name, a NUL separator, then the big-endian
// bitwise complement of update_index. Decode locates the separator at a
// fixed 9 bytes from the end of the key; refname.ValidateLexical does not
// check names for NUL bytes.
func (l *LogRecord) Key() binfmt.Bytes {
	l.keyBuf = append(l.keyBuf[:0], l.RefName...)
	l.keyBuf = append(l.keyBuf, 0)
	var inverted [8]byte
	binfmt.PutUint64(inverted[:], ^l.UpdateIndex)
	l.keyBuf = append(l.keyBuf, inverted[:]...)
	return l.keyBuf
}

// Encode implements Record.
func (l *LogRecord) Encode(buf []byte) (int, error) {
	if len(l.Old) != l.hashSize || len(l.New) != l.hashSize {
		return 0, base.CorruptionErrorf("record: log old/new values must be %d bytes", l.hashSize)
	}
	out := buf[:0]
	out = append(out, l.Old...)
	out = append(out, l.New...)
	out = binfmt.PutUvarint(out, uint64(len(l.Name)))
	out = append(out, l.Name...)
	out = binfmt.PutUvarint(out, uint64(len(l.Email)))
	out = append(out, l.Email...)
	out = binfmt.PutUvarint(out, l.Time)
	out = binfmt.PutUvarint(out, binfmt.ZigZagEncode(int64(l.TZOffset)))
	out = binfmt.PutUvarint(out, uint64(len(l.Message)))
	out = append(out, l.Message...)
	if len(out) > len(buf) {
		return 0, base.ErrFull()
	}
	copy(buf, out)
	return len(out), nil
}

// Decode implements Record.
func (l *LogRecord) Decode(key binfmt.Bytes, _ uint8, data []byte) (int, error) {
	sep := len(key) - 9
	if sep < 0 || key[sep] != 0 {
		return 0, base.CorruptionErrorf("record: malformed log key")
	}
	l.RefName = string(key[:sep])
	l.UpdateIndex = ^binfmt.Uint64(key[sep+1:])

	if len(data) < 2*l.hashSize {
		return 0, base.CorruptionErrorf("record: truncated log old/new values")
	}
	l.Old = append([]byte(nil), data[:l.hashSize]...)
	l.New = append([]byte(nil), data[l.hashSize:2*l.hashSize]...)
	consumed := 2 * l.hashSize

	nameLen, n := binfmt.Uvarint(data[consumed:])
	if n == 0 {
		return 0, base.CorruptionErrorf("record: truncated log name length")
	}
	consumed += n
	if uint64(len(data)-consumed) < nameLen {
		return 0, base.CorruptionErrorf("record: truncated log name")
	}
	l.Name = string(data[consumed : consumed+int(nameLen)])
	consumed += int(nameLen)

	emailLen, n := binfmt.Uvarint(data[consumed:])
	if n == 0 {
		return 0, base.CorruptionErrorf("record: truncated log email length")
	}
	consumed += n
	if uint64(len(data)-consumed) < emailLen {
		return 0, base.CorruptionErrorf("record: truncated log email")
	}
	l.Email = string(data[consumed : consumed+int(emailLen)])
	consumed += int(emailLen)

	t, n := binfmt.Uvarint(data[consumed:])
	if n == 0 {
		return 0, base.CorruptionErrorf("record: truncated log time")
	}
	l.Time = t
	consumed += n

	tz, n := binfmt.Uvarint(data[consumed:])
	if n == 0 {
		return 0, base.CorruptionErrorf("record: truncated log tz")
	}
	l.TZOffset = int32(binfmt.ZigZagDecode(tz))
	consumed += n

	msgLen, n := binfmt.Uvarint(data[consumed:])
	if n == 0 {
		return 0, base.CorruptionErrorf("record: truncated log message length")
	}
	consumed += n
	if uint64(len(data)-consumed) < msgLen {
		return 0, base.CorruptionErrorf("record: truncated log message")
	}
	l.Message = string(data[consumed : consumed+int(msgLen)])
	consumed += int(msgLen)

	return consumed, nil
}

// Reset implements Record.
func (l *LogRecord) Reset() {
	hashSize := l.hashSize
	*l = LogRecord{hashSize: hashSize}
}

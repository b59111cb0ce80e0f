package reftable

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"

	"github.com/refstore/reftable/internal/base"
)

// TableName is the structured form of a reftable file's name: the stack
// uses the update_index range to order tables and a random suffix to
// avoid collisions when two processes write concurrently. Grounded on
// the one complete Go reftable reader in the example pack
// (other_examples' antgroup-hugescm reftable.go's Name/ParseName/String).
type TableName struct {
	MinUpdateIndex uint64
	MaxUpdateIndex uint64
	Suffix         string
}

// String renders the canonical "0x<min>-0x<max>-<suffix>.ref" form.
func (n TableName) String() string {
	return fmt.Sprintf("0x%012x-0x%012x-%s.ref", n.MinUpdateIndex, n.MaxUpdateIndex, n.Suffix)
}

var tableNameRegexp = regexp.MustCompile(`^0x([[:xdigit:]]{12,16})-0x([[:xdigit:]]{12,16})-([0-9a-zA-Z]{8})\.ref$`)

// ParseTableName parses a reftable file name back into its structured
// form.
func ParseTableName(name string) (TableName, error) {
	m := tableNameRegexp.FindStringSubmatch(name)
	if m == nil {
		return TableName{}, base.CorruptionErrorf("reftable: malformed table name %q", name)
	}
	min, err := strconv.ParseUint(m[1], 16, 64)
	if err != nil {
		return TableName{}, base.CorruptionErrorf("reftable: bad min update_index in %q: %v", name, err)
	}
	max, err := strconv.ParseUint(m[2], 16, 64)
	if err != nil {
		return TableName{}, base.CorruptionErrorf("reftable: bad max update_index in %q: %v", name, err)
	}
	return TableName{MinUpdateIndex: min, MaxUpdateIndex: max, Suffix: m[3]}, nil
}

// NewTableName builds a fresh table name for the given update_index range
// with a random 8-character suffix, the name a compaction or single
// transaction would give its newly written table before adding it to
// tables.list.
func NewTableName(minUpdateIndex, maxUpdateIndex uint64) (TableName, error) {
	var raw [4]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return TableName{}, base.IOErrorf("reftable: generating table name suffix: %v", err)
	}
	return TableName{
		MinUpdateIndex: minUpdateIndex,
		MaxUpdateIndex: maxUpdateIndex,
		Suffix:         hex.EncodeToString(raw[:]),
	}, nil
}

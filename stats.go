package reftable

// SectionStats tracks the per-section bookkeeping a Writer accumulates
// while it works (reported by Writer.Stats), grounded on
// original_source/c/writer.c's `block_stats`/`stats` structs.
type SectionStats struct {
	// Blocks is the number of blocks written for this section, counting
	// its index-chain blocks as well as its data blocks.
	Blocks int
	// Entries is the total number of records written for this section,
	// counting index-chain records as well as data records.
	Entries int
	// Restarts is the total number of restart points across this
	// section's blocks.
	Restarts int
	// Offset is the file offset of the section's first block, or 0 if
	// the section is empty.
	Offset uint64
	// IndexOffset is the file offset of the root of this section's
	// index chain, or 0 if no index was needed.
	IndexOffset uint64
}

// Stats summarizes a finished table file.
type Stats struct {
	Ref   SectionStats
	Obj   SectionStats
	Log   SectionStats
	// ObjectIDLen is the configured digest-prefix width stored in the
	// object-index section, or 0 if IndexObjects was never enabled.
	ObjectIDLen int
	// Blocks is the total number of blocks across every section.
	Blocks int
}

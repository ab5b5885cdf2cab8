// Package cache implements the simulator's polymorphic cache abstraction: a
// disabled null cache and an N-way set-associative cache with LRU-by-rotation
// replacement. Grounded on original_source/libmem/src/cache/mod.rs.
package cache

import (
	"seisim/isa"
	"seisim/mem"
)

// Status reports why a read missed, or that the cache is disabled.
type Status int

const (
	// Hit is implicit: a successful Get* call returns (value, true).
	Disabled Status = iota
	Cold
	Conflict
)

func (s Status) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Cold:
		return "cold"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Cache is the interface shared by NullCache and Associative. A Get* call
// returns ok=false with a Status explaining the miss kind; a successful
// write reports whether it hit an already-resident line.
type Cache interface {
	GetByte(addr isa.Word) (isa.Byte, Status, bool)
	GetShort(addr isa.Word) (isa.Short, Status, bool)
	GetWord(addr isa.Word) (isa.Word, Status, bool)

	// Write* report the same miss-kind Status as the Get* methods do, so a
	// memory module can classify a write miss as Cold/Conflict exactly like
	// a read miss; ok=true (status Disabled) means the write landed in an
	// already-resident line.
	WriteByte(addr isa.Word, value isa.Byte) (Status, bool)
	WriteShort(addr isa.Word, value isa.Short) (Status, bool)
	WriteWord(addr isa.Word, value isa.Word) (Status, bool)

	HasAddress(addr isa.Word) bool
	LineLen() int

	// WriteLine fetches the line containing addr from dram into the cache,
	// evicting (and writing back if dirty) any line it replaces. It reports
	// whether an eviction occurred.
	WriteLine(addr isa.Word, dram *mem.DRAM) bool

	// Flush writes every dirty line back to dram, clears their dirty bits,
	// and reports how many lines were actually written back.
	Flush(dram *mem.DRAM) int

	String() string
}

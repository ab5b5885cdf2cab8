package cache

import (
	"fmt"
	"testing"

	"seisim/isa"
	"seisim/mem"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

// fill is the access pattern every cache user follows on a miss: read, and
// if the read missed, ask the cache to pull the line in before retrying.
func fill(t *testing.T, c *Associative, dram *mem.DRAM, addr isa.Word) isa.Byte {
	v, st, ok := c.GetByte(addr)
	if ok {
		return v
	}
	assert(t, st == Cold || st == Conflict, "expected a cache-miss status, got %v", st)
	c.WriteLine(addr, dram)
	v, _, ok = c.GetByte(addr)
	assert(t, ok, "expected a hit immediately after WriteLine for addr %#x", addr)
	return v
}

func TestAssociativeColdMissThenHit(t *testing.T) {
	dram := mem.NewDRAM(1)
	dram.WriteByte(0, 0xAB)
	c := NewAssociative(2, 2, 4, true)

	_, st, ok := c.GetByte(0)
	assert(t, !ok, "first access to an empty cache must miss")
	assert(t, st == Cold, "first miss on an empty set must be Cold, got %v", st)

	got := fill(t, c, dram, 0)
	assert(t, got == 0xAB, "expected 0xAB after fill, got %#x", got)

	_, st, ok = c.GetByte(0)
	assert(t, ok && st == Disabled, "repeat access should hit, got status %v ok=%v", st, ok)

	hits, misses, cold, _ := c.Stats()
	assert(t, hits == 2 && misses == 2 && cold == 2, "unexpected stats: hits=%d misses=%d cold=%d", hits, misses, cold)
}

func TestAssociativeConflictMissAndLRUEviction(t *testing.T) {
	dram := mem.NewDRAM(1)
	dram.WriteByte(0, 1)
	dram.WriteByte(8, 2)
	dram.WriteByte(16, 3)

	c := NewAssociative(2, 2, 4, true) // 2 sets, 2 ways, 4-byte lines -> addr 0, 8, 16 all map to set 0

	fill(t, c, dram, 0)
	fill(t, c, dram, 8)

	// Both ways of set 0 are now occupied (addr 0 and addr 8); a third,
	// different tag in the same set must miss with Conflict, not Cold.
	_, st, ok := c.GetByte(16)
	assert(t, !ok, "expected a miss for a third tag in a full set")
	assert(t, st == Conflict, "expected Conflict, got %v", st)

	// Touch addr 0 so addr 8 becomes the LRU member of the set.
	_, _, ok = c.GetByte(0)
	assert(t, ok, "addr 0 should still be resident")

	evicted := c.WriteLine(16, dram)
	assert(t, evicted, "WriteLine should report an eviction")

	// addr 8 (the LRU line) should now be gone; addr 0 and addr 16 remain.
	assert(t, c.HasAddress(16), "addr 16 should now be resident")
	assert(t, c.HasAddress(0), "addr 0 should still be resident")
	assert(t, !c.HasAddress(8), "addr 8 should have been evicted as the LRU member")
}

func TestAssociativeWritebackFlush(t *testing.T) {
	dram := mem.NewDRAM(1)
	c := NewAssociative(1, 1, 4, true)

	fill(t, c, dram, 0)
	_, ok := c.WriteByte(0, 0x7F)
	assert(t, ok, "write to a resident line should succeed")

	// The write is dirty in the cache only until Flush.
	assert(t, dram.ReadByte(0) == 0, "DRAM should be untouched before Flush")

	c.Flush(dram)
	assert(t, dram.ReadByte(0) == 0x7F, "Flush should write the dirty line back to DRAM")
}

func TestAssociativeMisalignedAccessSplitsIntoBytes(t *testing.T) {
	dram := mem.NewDRAM(1)
	dram.WriteWord(0, 0x11223344)
	c := NewAssociative(4, 2, 8, true)

	fill(t, c, dram, 0)
	fill(t, c, dram, 4)

	got, st, ok := c.GetWord(1) // misaligned: bytes 1..4 of the resident line at 0
	assert(t, ok, "misaligned word read should succeed once its bytes are resident, status=%v", st)
	assert(t, got == 0x22334400, "unexpected misaligned word value %#x", got)
}

package cache

import (
	"fmt"

	"seisim/isa"
	"seisim/mem"
)

// line is one cache line: a validity bit, a dirty bit, the stored tag, and
// the backing bytes.
type line struct {
	valid bool
	dirty bool
	tag   isa.Word
	data  []byte
}

// Associative is an N-way set-associative cache with LRU-by-rotation
// replacement: within a set, index 0 is always the most recently used line
// and a hit rotates the prefix up to the hit index right by one so the hit
// line becomes index 0. A direct-mapped (1-way) cache is simply Associative
// constructed with ways=1. Grounded on
// original_source/libmem/src/cache/associative/multi.rs (the N-way case)
// and original_source/libmem/src/cache/associative.rs (the 1-way case,
// which SPEC_FULL.md §4.3 folds into this same type).
type Associative struct {
	sets      [][]line
	ways      int
	lineSize  int // bytes per line, power of two
	setBits   int
	offBits   int
	writeback bool
	writethru bool

	hits, misses, cold, evictions int
}

// NewAssociative builds a cache with the given number of sets, ways per
// set, and line size in bytes (all must be powers of two). writeback
// selects dirty-bit writeback-on-eviction semantics; when false, the
// caller is expected to write through to DRAM itself on every write hit.
func NewAssociative(numSets, ways, lineSize int, writeback bool) *Associative {
	if numSets <= 0 || ways <= 0 || lineSize <= 0 {
		panic("cache: sets, ways, and line size must be positive")
	}
	sets := make([][]line, numSets)
	for i := range sets {
		sets[i] = make([]line, ways)
	}
	return &Associative{
		sets:      sets,
		ways:      ways,
		lineSize:  lineSize,
		setBits:   bits(numSets),
		offBits:   bits(lineSize),
		writeback: writeback,
		writethru: !writeback,
	}
}

func bits(n int) int {
	b := 0
	for (1 << b) < n {
		b++
	}
	return b
}

func (a *Associative) split(addr isa.Word) (tag isa.Word, set int, offset int) {
	offMask := isa.Word(a.lineSize - 1)
	setMask := isa.Word(len(a.sets) - 1)
	offset = int(addr & offMask)
	set = int((addr >> a.offBits) & setMask)
	tag = addr >> (a.offBits + a.setBits)
	return
}

func (a *Associative) lineBase(tag isa.Word, set int) isa.Word {
	return (tag<<a.setBits | isa.Word(set)) << a.offBits
}

func (a *Associative) find(set int, tag isa.Word) int {
	for i, l := range a.sets[set] {
		if l.valid && l.tag == tag {
			return i
		}
	}
	return -1
}

// touch promotes the line at idx to MRU by rotating the prefix [0, idx]
// right by one.
func (a *Associative) touch(set, idx int) {
	if idx == 0 {
		return
	}
	s := a.sets[set]
	hit := s[idx]
	copy(s[1:idx+1], s[0:idx])
	s[0] = hit
}

// full reports whether every way in the set already holds a valid line —
// only then is a miss a Conflict; a miss against a set with a free way is
// still Cold.
func (a *Associative) full(set int) bool {
	for _, l := range a.sets[set] {
		if !l.valid {
			return false
		}
	}
	return true
}

func (a *Associative) GetByte(addr isa.Word) (isa.Byte, Status, bool) {
	tag, set, off := a.split(addr)
	idx := a.find(set, tag)
	if idx < 0 {
		a.misses++
		if a.full(set) {
			return 0, Conflict, false
		}
		a.cold++
		return 0, Cold, false
	}
	a.hits++
	a.touch(set, idx)
	return isa.Byte(a.sets[set][0].data[off]), Disabled, true
}

func (a *Associative) GetShort(addr isa.Word) (isa.Short, Status, bool) {
	if isa.Word(addr)%2 != 0 {
		hi, st, ok := a.GetByte(addr)
		if !ok {
			return 0, st, false
		}
		lo, st2, ok2 := a.GetByte(addr + 1)
		if !ok2 {
			return 0, st2, false
		}
		return isa.Short(hi)<<8 | isa.Short(lo), Disabled, true
	}
	tag, set, off := a.split(addr)
	idx := a.find(set, tag)
	if idx < 0 {
		a.misses++
		if a.full(set) {
			return 0, Conflict, false
		}
		a.cold++
		return 0, Cold, false
	}
	a.hits++
	a.touch(set, idx)
	d := a.sets[set][0].data
	return isa.Short(d[off])<<8 | isa.Short(d[off+1]), Disabled, true
}

func (a *Associative) GetWord(addr isa.Word) (isa.Word, Status, bool) {
	if addr%4 != 0 {
		hi, st, ok := a.GetShort(addr)
		if !ok {
			return 0, st, false
		}
		lo, st2, ok2 := a.GetShort(addr + 2)
		if !ok2 {
			return 0, st2, false
		}
		return isa.Word(hi)<<16 | isa.Word(lo), Disabled, true
	}
	tag, set, off := a.split(addr)
	idx := a.find(set, tag)
	if idx < 0 {
		a.misses++
		if a.full(set) {
			return 0, Conflict, false
		}
		a.cold++
		return 0, Cold, false
	}
	a.hits++
	a.touch(set, idx)
	d := a.sets[set][0].data
	return isa.Word(d[off])<<24 | isa.Word(d[off+1])<<16 | isa.Word(d[off+2])<<8 | isa.Word(d[off+3]), Disabled, true
}

func (a *Associative) WriteByte(addr isa.Word, value isa.Byte) (Status, bool) {
	tag, set, off := a.split(addr)
	idx := a.find(set, tag)
	if idx < 0 {
		if a.full(set) {
			return Conflict, false
		}
		return Cold, false
	}
	a.touch(set, idx)
	a.sets[set][0].data[off] = byte(value)
	if a.writeback {
		a.sets[set][0].dirty = true
	}
	return Disabled, true
}

func (a *Associative) WriteShort(addr isa.Word, value isa.Short) (Status, bool) {
	if st, ok := a.WriteByte(addr, isa.Byte(value>>8)); !ok {
		return st, false
	}
	return a.WriteByte(addr+1, isa.Byte(value))
}

func (a *Associative) WriteWord(addr isa.Word, value isa.Word) (Status, bool) {
	if st, ok := a.WriteByte(addr, isa.Byte(value>>24)); !ok {
		return st, false
	}
	if st, ok := a.WriteByte(addr+1, isa.Byte(value>>16)); !ok {
		return st, false
	}
	if st, ok := a.WriteByte(addr+2, isa.Byte(value>>8)); !ok {
		return st, false
	}
	return a.WriteByte(addr+3, isa.Byte(value))
}

func (a *Associative) HasAddress(addr isa.Word) bool {
	tag, set, _ := a.split(addr)
	return a.find(set, tag) >= 0
}

func (a *Associative) LineLen() int {
	return a.lineSize * 8
}

// WriteLine fetches the line containing addr into the set, evicting and
// (if dirty) writing back whatever occupied the LRU slot.
func (a *Associative) WriteLine(addr isa.Word, dram *mem.DRAM) bool {
	tag, set, _ := a.split(addr)
	if a.find(set, tag) >= 0 {
		return false
	}

	s := a.sets[set]
	lru := s[len(s)-1]
	evicted := lru.valid
	if evicted && lru.dirty {
		dram.WriteLine(a.lineBase(lru.tag, set), lru.data)
		a.evictions++
	}

	base := (addr >> a.offBits) << a.offBits
	fresh := line{valid: true, tag: tag, data: dram.ReadLine(base, a.lineSize)}
	copy(s[1:], s[0:len(s)-1])
	s[0] = fresh
	return evicted
}

// Flush writes back every dirty line across all sets and clears their
// dirty bits, without invalidating them. It reports how many lines were
// written back.
func (a *Associative) Flush(dram *mem.DRAM) int {
	flushed := 0
	for set, s := range a.sets {
		for i := range s {
			if s[i].valid && s[i].dirty {
				dram.WriteLine(a.lineBase(s[i].tag, set), s[i].data)
				s[i].dirty = false
				flushed++
			}
		}
	}
	return flushed
}

// Stats returns (hits, misses, coldMisses, evictions) for instrumentation.
func (a *Associative) Stats() (hits, misses, cold, evictions int) {
	return a.hits, a.misses, a.cold, a.evictions
}

func (a *Associative) String() string {
	return fmt.Sprintf("Associative{sets=%d ways=%d line=%dB hits=%d misses=%d}",
		len(a.sets), a.ways, a.lineSize, a.hits, a.misses)
}

package pipeline

import (
	"seisim/isa"
	"seisim/mem"
	"seisim/mem/cache"
	"seisim/mem/module"
)

// Stats mirrors the simulator control surface's get_stats() in
// SPEC_FULL.md §6.
type Stats struct {
	Clocks              int
	MemoryAccesses      int
	CacheHits           int
	CacheConflictMisses int
	CacheColdMisses     int
	CacheEvictions      int
}

// Simulator is the pipeline driver: it owns the register file, lock
// table, memory module, and all five stages, and clocks them in the
// documented reverse/forward order. Grounded on
// original_source/libpipe/src/piped.rs.
type Simulator struct {
	Regs  Registers
	Locks LockTable
	MM    *module.SingleLevel

	fetch     Fetch
	decode    Decode
	execute   Execute
	memory    Memory
	writeback Writeback

	clocks     int
	haltIssued bool
}

// NewSimulator wires a fresh pipeline around the given memory module. PC
// starts at zero; callers load an image into the module's DRAM before
// running.
func NewSimulator(mm *module.SingleLevel) *Simulator {
	return &Simulator{MM: mm}
}

// NewDefaultSimulator is a convenience constructor building a DRAM-backed
// module with the given page count, N-way data/instruction caches (null
// caches when ways is 0; write-back unless writethrough is set), a fixed
// miss penalty, a separate volatile-access penalty, and a writethrough flag — the shape every SPEC_FULL.md §6 configuration
// ultimately resolves to.
func NewDefaultSimulator(pageCount, setBits, offsetBits, ways, missPenalty, volatilePenalty int, writethrough bool) *Simulator {
	dram := mem.NewDRAM(pageCount)
	var dcache, icache cache.Cache
	if ways == 0 {
		dcache, icache = cache.NewNull(), cache.NewNull()
	} else {
		dcache = cache.NewAssociative(1<<setBits, ways, 1<<offsetBits, !writethrough)
		icache = cache.NewAssociative(1<<setBits, ways, 1<<offsetBits, !writethrough)
	}
	mm := module.NewSingleLevel(dram, dcache, icache, missPenalty, volatilePenalty, writethrough)
	return NewSimulator(mm)
}

// LoadImage copies a flat binary image into DRAM starting at address 0.
func (s *Simulator) LoadImage(image []byte) {
	dram := s.MM.DRAM()
	for i, b := range image {
		dram.WriteByte(isa.Word(i), isa.Byte(b))
	}
}

// Clock advances the simulator by one tick: the memory module advances
// first, then the backward Clock pass runs Writeback→Memory→Execute→
// Decode→Fetch, and finally the forward Status pass runs Fetch→Decode→
// Execute→Memory→Writeback. Grounded on SPEC_FULL.md §4.7.
func (s *Simulator) Clock() Status {
	s.MM.Clock(1)
	s.clocks++

	c := Ready(1)
	if s.haltIssued {
		c = Halt()
	}

	c = s.writeback.ClockStage(c, &s.Regs, &s.Locks)
	c = s.memory.ClockStage(c, s.MM)
	c = s.execute.ClockStage(c)
	c = s.decode.ClockStage(c, &s.Regs, &s.Locks)
	_ = s.fetch.ClockStage(c, &s.Regs, s.MM)

	// A stage hands its finished work on only once the stage below it is
	// idle; otherwise the lower stage would drop the work it still holds.
	fetchStatus := s.fetch.Forward(s.decode.state != decodeIdle)
	decodeStatus := StageReady()
	if s.decode.state != decodeReady || s.execute.state == executeIdle {
		decodeStatus = s.decode.Forward(fetchStatus)
	}
	executeStatus := StageReady()
	if s.execute.state != executeReady || s.memory.state == memIdle {
		executeStatus = s.execute.Forward(decodeStatus)
	}
	memoryStatus := s.memory.Forward(executeStatus)
	writebackStatus := s.writeback.Forward(memoryStatus)

	if writebackStatus.IsDry() {
		s.haltIssued = true
	}
	return writebackStatus
}

// Step clocks the simulator the number of ticks of its smallest pending
// stall (or a single tick if nothing is stalled).
func (s *Simulator) Step() Status {
	status := s.Clock()
	if n, ok := status.StallAmount(); ok && n > 1 {
		for i := 1; i < n; i++ {
			status = s.Clock()
		}
	}
	return status
}

// Run clocks the simulator until Writeback goes Dry (HALT has fully
// drained the pipeline).
func (s *Simulator) Run() {
	for {
		if s.Clock().IsDry() {
			return
		}
	}
}

// Stats reports the external control-surface statistics.
func (s *Simulator) Stats() Stats {
	return Stats{
		Clocks:              s.clocks,
		MemoryAccesses:      s.MM.Accesses(),
		CacheHits:           s.MM.CacheHits(),
		CacheColdMisses:     s.MM.ColdMisses(),
		CacheConflictMisses: s.MM.CacheMisses() - s.MM.ColdMisses(),
		CacheEvictions:      s.MM.Evictions(),
	}
}

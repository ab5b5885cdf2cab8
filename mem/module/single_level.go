// Package module implements the single-level memory module: a pair of
// split instruction/data caches sitting in front of a shared DRAM, gated by
// a busy-counter transaction model so at most one data and one instruction
// request are ever in flight at a time. Grounded on
// original_source/libmem/src/module/single_level.rs and
// original_source/libmem/src/module/mod.rs.
package module

import (
	"seisim/isa"
	"seisim/mem"
	"seisim/mem/cache"
)

// Status mirrors the original Idle/Busy(n) result: either the module
// completed the request immediately, or it is busy for the given number of
// remaining clocks and the caller must retry after clocking.
type Status struct {
	Busy      bool
	Remaining int
}

func idle() Status { return Status{} }

func busy(n int) Status { return Status{Busy: true, Remaining: n} }

type txKind int

const (
	txIdle txKind = iota
	txReadByte
	txReadShort
	txReadWord
	txReadInstr
	txWriteByte
	txWriteShort
	txWriteWord
)

// transaction tracks one in-flight request. done marks a finished
// transaction whose outcome the caller has not yet collected, for all three
// transaction classes. result is only used by the volatile transaction,
// which has no cache line to land in and so must remember its own read
// value until the caller polls again.
type transaction struct {
	kind      txKind
	addr      isa.Word
	value     isa.Word
	result    isa.Word
	remaining int
	done      bool
}

func (t transaction) isIdle() bool { return t.kind == txIdle }

// SingleLevel is the memory module used by the simulator: it owns the DRAM
// and the two caches, and exposes per-class (data vs instruction vs
// volatile) busy transactions to the pipeline's Memory and Fetch stages.
type SingleLevel struct {
	dram            *mem.DRAM
	dcache          cache.Cache
	icache          cache.Cache
	penalty         int // cache-miss service time, in clocks
	volatilePenalty int // clocks charged to a volatile (cache-bypassing) access
	writethrough    bool

	dataTx  transaction
	instrTx transaction
	volTx   transaction

	coldMisses, misses, hits, accesses, evictions int
}

// NewSingleLevel builds a memory module over dram with the given data and
// instruction caches, a fixed cache-miss service penalty, a separate
// penalty for volatile (cache-bypassing) accesses, and a writethrough flag:
// when set, every store is mirrored synchronously into dram as soon as it
// resolves, instead of waiting for its line to be evicted.
func NewSingleLevel(dram *mem.DRAM, dcache, icache cache.Cache, missPenalty, volatilePenalty int, writethrough bool) *SingleLevel {
	return &SingleLevel{
		dram: dram, dcache: dcache, icache: icache,
		penalty: missPenalty, volatilePenalty: volatilePenalty, writethrough: writethrough,
	}
}

// misalignmentPenalty adds the extra service time the original charges for
// a short access straddling an odd byte, or a word access not aligned to
// 4 bytes: 1 + the miss penalty, on top of whatever the line fill already
// costs.
func (m *SingleLevel) misalignmentPenalty(width int, addr isa.Word) int {
	switch width {
	case 2:
		if addr%2 != 0 {
			return 1 + m.penalty
		}
	case 4:
		if addr%4 != 0 {
			return 1 + m.penalty
		}
	}
	return 0
}

// Clock advances outstanding transactions by amount clocks, completing any
// whose remaining count reaches zero: a pending read fills the cache line
// from DRAM (making the next call to the matching Read* a hit), a pending
// write applies the store once its line is resident, and a pending
// volatile access performs its DRAM read/write directly.
func (m *SingleLevel) Clock(amount int) {
	m.step(&m.dataTx, m.dcache, amount)
	m.step(&m.instrTx, m.icache, amount)
	m.stepVolatile(amount)
}

// step advances one in-flight transaction, filling its cache line and
// applying any pending write once remaining reaches zero. It marks the
// transaction done rather than resetting it outright: the caller's next
// poll consumes that result exactly once, so a single logical access never
// gets counted into the stats twice (once on the miss, again on the
// now-resident hit).
func (m *SingleLevel) step(tx *transaction, c cache.Cache, amount int) {
	if tx.isIdle() || tx.done {
		return
	}
	tx.remaining -= amount
	if tx.remaining > 0 {
		return
	}
	if c.WriteLine(tx.addr, m.dram) {
		m.evictions++
	}
	switch tx.kind {
	case txWriteByte:
		c.WriteByte(tx.addr, isa.Byte(tx.value))
		if m.writethrough {
			m.dram.WriteByte(tx.addr, isa.Byte(tx.value))
		}
	case txWriteShort:
		c.WriteShort(tx.addr, isa.Short(tx.value))
		if m.writethrough {
			m.dram.WriteShort(tx.addr, isa.Short(tx.value))
		}
	case txWriteWord:
		c.WriteWord(tx.addr, tx.value)
		if m.writethrough {
			m.dram.WriteWord(tx.addr, tx.value)
		}
	}
	tx.done = true
}

// stepVolatile completes a pending volatile access once its penalty has
// elapsed, performing the DRAM read/write directly and latching the result
// (for reads) so the next poll can collect it.
func (m *SingleLevel) stepVolatile(amount int) {
	if m.volTx.isIdle() {
		return
	}
	m.volTx.remaining -= amount
	if m.volTx.remaining > 0 {
		return
	}
	switch m.volTx.kind {
	case txReadByte:
		m.volTx.result = isa.Word(m.dram.ReadByte(m.volTx.addr))
	case txReadShort:
		m.volTx.result = isa.Word(m.dram.ReadShort(m.volTx.addr))
	case txReadWord:
		m.volTx.result = m.dram.ReadWord(m.volTx.addr)
	case txWriteByte:
		m.dram.WriteByte(m.volTx.addr, isa.Byte(m.volTx.value))
	case txWriteShort:
		m.dram.WriteShort(m.volTx.addr, isa.Short(m.volTx.value))
	case txWriteWord:
		m.dram.WriteWord(m.volTx.addr, m.volTx.value)
	}
	m.volTx.done = true
}

func (m *SingleLevel) startIfIdle(tx *transaction, kind txKind, addr isa.Word, value isa.Word, extra int) Status {
	if !tx.isIdle() {
		return busy(tx.remaining)
	}
	*tx = transaction{kind: kind, addr: addr, value: value, remaining: m.penalty + extra}
	return busy(tx.remaining)
}

// startVolatile begins (or reports the status of) a volatile access. Since
// volatile accesses bypass the cache, there is nothing to probe: the whole
// cost is m.volatilePenalty clocks, charged unconditionally.
func (m *SingleLevel) startVolatile(kind txKind, addr isa.Word, value isa.Word) Status {
	if !m.volTx.isIdle() {
		return busy(m.volTx.remaining)
	}
	m.volTx = transaction{kind: kind, addr: addr, value: value, remaining: m.volatilePenalty}
	if m.volTx.remaining <= 0 {
		m.stepVolatile(0)
		return idle()
	}
	return busy(m.volTx.remaining)
}

// collectVolatile returns the completed volatile result (if any) and
// resets the transaction so the class is free for the next access.
func (m *SingleLevel) collectVolatile() (isa.Word, bool) {
	if !m.volTx.done {
		return 0, false
	}
	v := m.volTx.result
	m.volTx = transaction{}
	return v, true
}

// collectData retrieves and clears a just-completed data transaction
// without touching accesses/hits/misses: those were already charged when
// the transaction was first opened, so the poll that observes it going
// done must not charge them again.
func (m *SingleLevel) collectData() {
	m.dataTx = transaction{}
}

func (m *SingleLevel) collectInstr() {
	m.instrTx = transaction{}
}

func (m *SingleLevel) ReadByte(addr isa.Word) (isa.Byte, Status) {
	if !m.dataTx.isIdle() {
		if !m.dataTx.done {
			return 0, busy(m.dataTx.remaining)
		}
		v, _, _ := m.dcache.GetByte(addr)
		m.collectData()
		return v, idle()
	}
	m.accesses++
	v, st, ok := m.dcache.GetByte(addr)
	if ok {
		m.hits++
		return v, idle()
	}
	m.recordMiss(st)
	return 0, m.startIfIdle(&m.dataTx, txReadByte, addr, 0, 0)
}

func (m *SingleLevel) ReadShort(addr isa.Word) (isa.Short, Status) {
	if !m.dataTx.isIdle() {
		if !m.dataTx.done {
			return 0, busy(m.dataTx.remaining)
		}
		v, _, _ := m.dcache.GetShort(addr)
		m.collectData()
		return v, idle()
	}
	m.accesses++
	v, st, ok := m.dcache.GetShort(addr)
	if ok {
		m.hits++
		return v, idle()
	}
	m.recordMiss(st)
	extra := m.misalignmentPenalty(2, addr)
	return 0, m.startIfIdle(&m.dataTx, txReadShort, addr, 0, extra)
}

func (m *SingleLevel) ReadWord(addr isa.Word) (isa.Word, Status) {
	if !m.dataTx.isIdle() {
		if !m.dataTx.done {
			return 0, busy(m.dataTx.remaining)
		}
		v, _, _ := m.dcache.GetWord(addr)
		m.collectData()
		return v, idle()
	}
	m.accesses++
	v, st, ok := m.dcache.GetWord(addr)
	if ok {
		m.hits++
		return v, idle()
	}
	m.recordMiss(st)
	extra := m.misalignmentPenalty(4, addr)
	return 0, m.startIfIdle(&m.dataTx, txReadWord, addr, 0, extra)
}

// ReadInstruction fetches an aligned instruction word through the separate
// instruction cache/transaction class.
func (m *SingleLevel) ReadInstruction(addr isa.Word) (isa.Word, Status) {
	if !m.instrTx.isIdle() {
		if !m.instrTx.done {
			return 0, busy(m.instrTx.remaining)
		}
		v, _, _ := m.icache.GetWord(addr)
		m.collectInstr()
		return v, idle()
	}
	m.accesses++
	v, st, ok := m.icache.GetWord(addr)
	if ok {
		m.hits++
		return v, idle()
	}
	m.recordMiss(st)
	return 0, m.startIfIdle(&m.instrTx, txReadInstr, addr, 0, 0)
}

func (m *SingleLevel) WriteByte(addr isa.Word, value isa.Byte) Status {
	if !m.dataTx.isIdle() {
		if !m.dataTx.done {
			return busy(m.dataTx.remaining)
		}
		m.collectData()
		return idle()
	}
	m.accesses++
	st, ok := m.dcache.WriteByte(addr, value)
	if ok {
		m.hits++
		if m.writethrough {
			m.dram.WriteByte(addr, value)
		}
		return idle()
	}
	m.recordMiss(st)
	return m.startIfIdle(&m.dataTx, txWriteByte, addr, isa.Word(value), 0)
}

func (m *SingleLevel) WriteShort(addr isa.Word, value isa.Short) Status {
	if !m.dataTx.isIdle() {
		if !m.dataTx.done {
			return busy(m.dataTx.remaining)
		}
		m.collectData()
		return idle()
	}
	m.accesses++
	st, ok := m.dcache.WriteShort(addr, value)
	if ok {
		m.hits++
		if m.writethrough {
			m.dram.WriteShort(addr, value)
		}
		return idle()
	}
	m.recordMiss(st)
	extra := m.misalignmentPenalty(2, addr)
	return m.startIfIdle(&m.dataTx, txWriteShort, addr, isa.Word(value), extra)
}

func (m *SingleLevel) WriteWord(addr isa.Word, value isa.Word) Status {
	if !m.dataTx.isIdle() {
		if !m.dataTx.done {
			return busy(m.dataTx.remaining)
		}
		m.collectData()
		return idle()
	}
	m.accesses++
	st, ok := m.dcache.WriteWord(addr, value)
	if ok {
		m.hits++
		if m.writethrough {
			m.dram.WriteWord(addr, value)
		}
		return idle()
	}
	m.recordMiss(st)
	extra := m.misalignmentPenalty(4, addr)
	return m.startIfIdle(&m.dataTx, txWriteWord, addr, value, extra)
}

// ReadByteVolatile/ReadShortVolatile/ReadWordVolatile bypass the cache
// entirely, reading straight from DRAM — used by memory-mapped I/O
// addressing modes marked volatile in the register ISA category. They
// still charge volatilePenalty clocks and report Busy until it elapses,
// exactly like a cached access charges its miss penalty.
func (m *SingleLevel) ReadByteVolatile(addr isa.Word) (isa.Byte, Status) {
	if v, ok := m.collectVolatile(); ok {
		return isa.Byte(v), idle()
	}
	if st := m.startVolatile(txReadByte, addr, 0); st.Busy {
		return 0, st
	}
	v, _ := m.collectVolatile()
	return isa.Byte(v), idle()
}

func (m *SingleLevel) ReadShortVolatile(addr isa.Word) (isa.Short, Status) {
	if v, ok := m.collectVolatile(); ok {
		return isa.Short(v), idle()
	}
	if st := m.startVolatile(txReadShort, addr, 0); st.Busy {
		return 0, st
	}
	v, _ := m.collectVolatile()
	return isa.Short(v), idle()
}

func (m *SingleLevel) ReadWordVolatile(addr isa.Word) (isa.Word, Status) {
	if v, ok := m.collectVolatile(); ok {
		return v, idle()
	}
	if st := m.startVolatile(txReadWord, addr, 0); st.Busy {
		return 0, st
	}
	v, _ := m.collectVolatile()
	return v, idle()
}

func (m *SingleLevel) WriteByteVolatile(addr isa.Word, v isa.Byte) Status {
	if _, ok := m.collectVolatile(); ok {
		return idle()
	}
	if st := m.startVolatile(txWriteByte, addr, isa.Word(v)); st.Busy {
		return st
	}
	m.collectVolatile()
	return idle()
}

func (m *SingleLevel) WriteShortVolatile(addr isa.Word, v isa.Short) Status {
	if _, ok := m.collectVolatile(); ok {
		return idle()
	}
	if st := m.startVolatile(txWriteShort, addr, isa.Word(v)); st.Busy {
		return st
	}
	m.collectVolatile()
	return idle()
}

func (m *SingleLevel) WriteWordVolatile(addr isa.Word, v isa.Word) Status {
	if _, ok := m.collectVolatile(); ok {
		return idle()
	}
	if st := m.startVolatile(txWriteWord, addr, v); st.Busy {
		return st
	}
	m.collectVolatile()
	return idle()
}

func (m *SingleLevel) recordMiss(st cache.Status) {
	m.misses++
	if st == cache.Cold {
		m.coldMisses++
	}
}

// BusyData reports the remaining clocks of the in-flight data transaction,
// or (0,false) if the data class is idle.
func (m *SingleLevel) BusyData() (int, bool) {
	if m.dataTx.isIdle() {
		return 0, false
	}
	return m.dataTx.remaining, true
}

// BusyInstruction reports the remaining clocks of the in-flight
// instruction transaction, or (0,false) if the instruction class is idle.
func (m *SingleLevel) BusyInstruction() (int, bool) {
	if m.instrTx.isIdle() {
		return 0, false
	}
	return m.instrTx.remaining, true
}

// Flush writes back every dirty cache line in both caches, reporting Idle
// if nothing needed writing back or Busy(n*missPenalty) for the n lines
// that did.
func (m *SingleLevel) Flush() Status {
	flushed := m.dcache.Flush(m.dram) + m.icache.Flush(m.dram)
	if flushed == 0 {
		return idle()
	}
	return busy(flushed * m.penalty)
}

func (m *SingleLevel) ColdMisses() int  { return m.coldMisses }
func (m *SingleLevel) CacheMisses() int { return m.misses }
func (m *SingleLevel) CacheHits() int   { return m.hits }
func (m *SingleLevel) Accesses() int    { return m.accesses }
func (m *SingleLevel) Evictions() int   { return m.evictions }

// DRAM exposes the backing store directly, for the simulator's memory
// inspection surface (SPEC_FULL.md §6).
func (m *SingleLevel) DRAM() *mem.DRAM { return m.dram }

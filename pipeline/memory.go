package pipeline

import (
	"seisim/isa"
	"seisim/mem/module"
)

type memState int

const (
	memIdle memState = iota
	memBusy
	memJsrStep1
	memJsrStep2
	memRetStep1
	memRetStep2
	memReady
	memSquashed
	memHalted
)

// MemResultKind tags what Writeback must do with a completed Memory-stage
// result.
type MemResultKind int

const (
	MemNop MemResultKind = iota
	MemHalt
	MemJump
	MemSubroutine
	MemReturn
	MemWriteReg
	MemWriteRegNoStatus
	MemWriteStatus
	MemIgnore
)

// MemoryResult is what the Memory stage hands to Writeback.
type MemoryResult struct {
	Kind MemResultKind

	Address        isa.Word
	SP, BP, LP     isa.Word
	Dest           isa.Register
	Value          isa.Word
	Flags          Flags
	Regs           isa.RegisterFlags // Ignore: locks to release without writing
}

// Memory is the pipeline's fourth stage. Beyond driving simple loads and
// stores through the memory module, it runs the multi-cycle subroutine
// call-prep (push LP, push BP, SP+=8, BP=SP+8) and return-prep (read BP,
// read LP, SP=BP-8) sequences. Grounded on
// original_source/libpipe/src/stages/memory.rs.
type Memory struct {
	state   memState
	pending Executed
	out     MemoryResult
	scratch isa.Word // holds intermediate read values across multi-step flows
}

func (m *Memory) ClockStage(clock Clock, mm *module.SingleLevel) Clock {
	if clock.IsHalt() {
		m.state = memHalted
		return clock
	}
	if clock.IsSquash() {
		if m.state != memIdle && m.state != memReady {
			m.state = memSquashed
		}
		return clock
	}

	switch m.state {
	case memHalted:
		return clock
	case memSquashed:
		m.state = memIdle
		return clock
	case memReady:
		if clock.IsBlock() {
			return clock
		}
		return clock
	case memIdle:
		return clock
	default:
		return m.drive(mm)
	}
}

func (m *Memory) finish(res MemoryResult) Clock {
	m.out = res
	m.state = memReady
	return Ready(0)
}

func (m *Memory) drive(mm *module.SingleLevel) Clock {
	r := m.pending.Result
	switch m.state {
	case memBusy:
		return m.driveSimple(mm, r)
	case memJsrStep1:
		st := mm.WriteWord(stackAddress(r.SP), r.Link)
		if st.Busy {
			return Block(st.Remaining)
		}
		m.state = memJsrStep2
		return m.drive(mm)
	case memJsrStep2:
		st := mm.WriteWord(stackAddress(r.SP+4), r.BP)
		if st.Busy {
			return Block(st.Remaining)
		}
		newSP := r.SP + 8
		return m.finish(MemoryResult{
			Kind: MemSubroutine, Address: r.Address,
			SP: newSP, BP: newSP, LP: r.Value,
		})
	case memRetStep1:
		// [BP-4] holds the enclosing frame's saved BP.
		v, st := mm.ReadWord(stackAddress(r.BP - 4))
		if st.Busy {
			return Block(st.Remaining)
		}
		m.scratch = v
		m.state = memRetStep2
		return m.drive(mm)
	case memRetStep2:
		// [BP-8] holds the enclosing frame's saved LP, to be restored into
		// the live LP register. The jump target is r.Link, the LP value
		// resolve() snapshotted at Decode for this RET, not a stack read.
		lp, st := mm.ReadWord(stackAddress(r.BP - 8))
		if st.Busy {
			return Block(st.Remaining)
		}
		return m.finish(MemoryResult{
			Kind: MemReturn, Address: r.Link,
			SP: r.BP - 8, BP: m.scratch, LP: lp,
		})
	}
	return Ready(0)
}

// driveSimple handles every result kind that needs at most one memory
// module transaction: plain loads/stores, register push/pop, and the
// kinds that need none at all.
func (m *Memory) driveSimple(mm *module.SingleLevel, r ExecuteResult) Clock {
	switch r.Kind {
	case ResNop:
		return m.finish(MemoryResult{Kind: MemNop})
	case ResHalt:
		return m.finish(MemoryResult{Kind: MemHalt})
	case ResJumpTo:
		return m.finish(MemoryResult{Kind: MemJump, Address: r.Address})
	case ResWriteReg:
		return m.finish(MemoryResult{Kind: MemWriteReg, Dest: r.Dest, Value: r.Value, Flags: r.Flags})
	case ResWriteStatus:
		return m.finish(MemoryResult{Kind: MemWriteStatus, Flags: r.Flags})

	case ResReadMemByte:
		var v isa.Byte
		var st module.Status
		if r.Volatile {
			v, st = mm.ReadByteVolatile(r.Address)
		} else {
			v, st = mm.ReadByte(r.Address)
		}
		if st.Busy {
			return Block(st.Remaining)
		}
		return m.finish(MemoryResult{Kind: MemWriteRegNoStatus, Dest: r.Dest, Value: isa.Word(v)})

	case ResReadMemShort:
		var v isa.Short
		var st module.Status
		if r.Volatile {
			v, st = mm.ReadShortVolatile(r.Address)
		} else {
			v, st = mm.ReadShort(r.Address)
		}
		if st.Busy {
			return Block(st.Remaining)
		}
		return m.finish(MemoryResult{Kind: MemWriteRegNoStatus, Dest: r.Dest, Value: isa.Word(v)})

	case ResReadMemWord:
		var v isa.Word
		var st module.Status
		if r.Volatile {
			v, st = mm.ReadWordVolatile(r.Address)
		} else {
			v, st = mm.ReadWord(r.Address)
		}
		if st.Busy {
			return Block(st.Remaining)
		}
		return m.finish(MemoryResult{Kind: MemWriteRegNoStatus, Dest: r.Dest, Value: v})

	case ResWriteMemByte:
		var st module.Status
		if r.Volatile {
			st = mm.WriteByteVolatile(r.Address, isa.Byte(r.Value))
		} else {
			st = mm.WriteByte(r.Address, isa.Byte(r.Value))
		}
		if st.Busy {
			return Block(st.Remaining)
		}
		return m.finish(MemoryResult{Kind: MemNop})

	case ResWriteMemShort:
		var st module.Status
		if r.Volatile {
			st = mm.WriteShortVolatile(r.Address, isa.Short(r.Value))
		} else {
			st = mm.WriteShort(r.Address, isa.Short(r.Value))
		}
		if st.Busy {
			return Block(st.Remaining)
		}
		return m.finish(MemoryResult{Kind: MemNop})

	case ResWriteMemWord:
		var st module.Status
		if r.Volatile {
			st = mm.WriteWordVolatile(r.Address, r.Value)
		} else {
			st = mm.WriteWord(r.Address, r.Value)
		}
		if st.Busy {
			return Block(st.Remaining)
		}
		return m.finish(MemoryResult{Kind: MemNop})

	case ResWriteRegStack:
		st := mm.WriteWord(stackAddress(r.SP), r.Value)
		if st.Busy {
			return Block(st.Remaining)
		}
		return m.finish(MemoryResult{Kind: MemWriteRegNoStatus, Dest: isa.SP, Value: r.SP + 4})

	case ResReadRegStack:
		v, st := mm.ReadWord(stackAddress(r.SP - 4))
		if st.Busy {
			return Block(st.Remaining)
		}
		return m.finish(MemoryResult{Kind: MemWriteRegNoStatus, Dest: r.Dest, Value: v})

	default:
		return m.finish(MemoryResult{Kind: MemNop})
	}
}

func (m *Memory) Forward(upstream Status) Status {
	if m.state == memHalted {
		return Dry()
	}
	if m.state == memSquashed {
		out := Status{}
		_ = out
		regs := m.pending.Writes
		m.state = memIdle
		return Flow(MemoryResult{Kind: MemIgnore, Regs: regs})
	}
	if m.state == memReady {
		out := m.out
		writes := m.pending.Writes
		m.state = memIdle
		return Flow(withWrites(out, writes))
	}

	switch {
	case upstream.IsFlow():
		e := upstream.Value().(Executed)
		m.pending = e
		m.state = startState(e.Result)
		return StageReady()
	case upstream.IsSquashed():
		m.state = memSquashed
		return Squashed()
	case upstream.IsDry():
		return Dry()
	default:
		if amt, ok := upstream.StallAmount(); ok {
			return Stall(amt)
		}
		return StageReady()
	}
}

// withWritesResult pairs a MemoryResult with the write set Writeback must
// unconditionally release locks for.
type withWritesResult struct {
	MemoryResult
	Writes isa.RegisterFlags
}

func withWrites(r MemoryResult, writes isa.RegisterFlags) withWritesResult {
	return withWritesResult{MemoryResult: r, Writes: writes}
}

func startState(r ExecuteResult) memState {
	switch r.Kind {
	case ResSubroutine:
		return memJsrStep1
	case ResReturn:
		return memRetStep1
	default:
		return memBusy
	}
}

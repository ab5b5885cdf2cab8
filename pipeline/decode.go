package pipeline

import (
	"seisim/isa"
	"seisim/simlog"
)

type decodeState int

const (
	decodeIdle decodeState = iota
	decodeDecoding
	decodeBlocked
	decodeReady
	decodeSquashed
	decodeHalted
)

// Decoded is what Decode hands to Execute: the instruction, a full
// register-value snapshot (with PC overridden to the instruction's own
// address, not the live post-increment PC), and the write set it has
// already claimed in the lock table.
type Decoded struct {
	Instr  isa.Instruction
	Rvals  Registers
	Writes isa.RegisterFlags
}

// Decode is the pipeline's second stage: it decodes the word Fetch handed
// it and performs the register-hazard check before claiming write locks.
// Grounded on original_source/libpipe/src/stages/decode.rs.
type Decode struct {
	state   decodeState
	pending isa.Word
	pc      isa.Word
	reads   isa.RegisterFlags
	decoded Decoded
	out     Decoded
}

func (d *Decode) ClockStage(clock Clock, regs *Registers, locks *LockTable) Clock {
	if clock.IsHalt() {
		d.state = decodeHalted
		return clock
	}
	if clock.IsSquash() {
		d.state = decodeSquashed
		return clock
	}

	switch d.state {
	case decodeHalted:
		return clock

	case decodeSquashed:
		d.state = decodeIdle
		return clock

	case decodeDecoding:
		instr, err := isa.Decode(d.pending)
		if err != nil {
			simlog.Decode(uint32(d.pending), err)
			// treat malformed words as Nop
			instr = isa.Instruction{Cat: isa.CategoryControl, Control: isa.ControlOp{Code: isa.CtlNop}}
		}
		d.reads = instr.Reads()
		d.decoded = Decoded{Instr: instr, Writes: instr.Writes()}
		d.state = decodeBlocked
		fallthrough

	case decodeBlocked:
		if locks.AnyLocked(d.reads) {
			return clock.ToBlock()
		}
		// Snapshot only once no in-flight write to a read register remains.
		snap := regs.Snapshot()
		snap.Set(isa.PC, d.pc)
		d.decoded.Rvals = snap
		locks.LockAll(d.decoded.Writes)
		d.out = d.decoded
		d.state = decodeReady
		return clock

	case decodeReady:
		if clock.IsBlock() {
			return clock
		}
		return clock

	default: // Idle
		return clock
	}
}

func (d *Decode) Forward(upstream Status) Status {
	if d.state == decodeHalted {
		return Dry()
	}
	if d.state == decodeSquashed {
		return Squashed()
	}

	if d.state == decodeReady {
		out := d.out
		d.state = decodeIdle
		return Flow(out)
	}

	switch {
	case upstream.IsFlow():
		in := upstream.Value().(Fetched)
		d.pending = in.Word
		d.pc = in.PC
		d.state = decodeDecoding
		return StageReady()
	case upstream.IsSquashed():
		d.state = decodeSquashed
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

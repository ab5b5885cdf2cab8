package pipeline

import (
	"seisim/isa"
	"seisim/mem/module"
)

type fetchState int

const (
	fetchIdle fetchState = iota
	fetchWaiting
	fetchReady
	fetchSquashed
	fetchHalted
)

// Fetched is what Fetch hands to Decode: the raw word and the address it
// was fetched from (before PC was advanced).
type Fetched struct {
	Word isa.Word
	PC   isa.Word
}

// Fetch is the pipeline's first stage: it issues instruction reads against
// the memory module's instruction class and advances PC on every hit.
// Grounded on original_source/libpipe/src/stages/fetch.rs.
type Fetch struct {
	state  fetchState
	word   isa.Word
	pc     isa.Word
	clocks int
}

// ClockStage advances Fetch by one backward tick.
func (f *Fetch) ClockStage(clock Clock, regs *Registers, mm *module.SingleLevel) Clock {
	if clock.IsHalt() {
		f.state = fetchHalted
		return clock
	}
	if clock.IsSquash() {
		f.state = fetchSquashed
		f.clocks = 2
		return clock
	}

	switch f.state {
	case fetchHalted:
		return clock

	case fetchSquashed:
		f.clocks -= clock.Clocks()
		if f.clocks <= 0 {
			f.state = fetchIdle
		}
		return clock.ToBlock()

	case fetchWaiting:
		pc := regs.Get(isa.PC)
		word, status := mm.ReadInstruction(pc)
		if status.Busy {
			f.clocks = status.Remaining
			return clock.ToBlock()
		}
		f.word, f.pc = word, pc
		f.state = fetchReady
		regs.Set(isa.PC, pc+4)
		return clock

	case fetchReady:
		if clock.IsBlock() {
			return clock
		}
		return clock

	default: // Idle
		pc := regs.Get(isa.PC)
		word, status := mm.ReadInstruction(pc)
		if status.Busy {
			f.state = fetchWaiting
			f.clocks = status.Remaining
			return clock.ToBlock()
		}
		f.word, f.pc = word, pc
		f.state = fetchReady
		regs.Set(isa.PC, pc+4)
		return clock
	}
}

// Forward reports this tick's status to Decode and resets Ready back to
// Idle once consumed.
func (f *Fetch) Forward(downstreamBlocked bool) Status {
	switch f.state {
	case fetchHalted:
		return Dry()
	case fetchSquashed:
		return Squashed()
	case fetchWaiting:
		return Stall(f.clocks)
	case fetchReady:
		if downstreamBlocked {
			return StageReady()
		}
		out := Fetched{Word: f.word, PC: f.pc}
		f.state = fetchIdle
		return Flow(out)
	default:
		return StageReady()
	}
}

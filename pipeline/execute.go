package pipeline

import "seisim/isa"

type executeState int

const (
	executeIdle executeState = iota
	executeWaiting
	executeReady
	executeSquashed
	executeHalted
)

// Executed is what Execute hands to Memory: the resolved result plus the
// write set Writeback must release locks for regardless of outcome.
type Executed struct {
	Result ExecuteResult
	Writes isa.RegisterFlags
}

// Execute is the pipeline's third stage: it holds a decoded instruction
// for instr.ClockRequirement() ticks, then invokes the pure resolver.
// Grounded on original_source/libpipe/src/stages/execute.rs and its
// resolver submodule.
type Execute struct {
	state   executeState
	pending Decoded
	clocks  int
	out     Executed
}

func (e *Execute) ClockStage(clock Clock) Clock {
	if clock.IsHalt() {
		e.state = executeHalted
		return clock
	}
	if clock.IsSquash() {
		if e.state == executeWaiting || e.state == executeReady {
			e.state = executeSquashed
		}
		return clock
	}

	switch e.state {
	case executeHalted:
		return clock

	case executeSquashed:
		e.state = executeIdle
		return clock

	case executeWaiting:
		e.clocks -= clock.Clocks()
		if e.clocks > 0 {
			return clock.ToBlock()
		}
		result := resolve(e.pending.Instr, &e.pending.Rvals)
		e.out = Executed{Result: result, Writes: e.pending.Writes}
		e.state = executeReady
		if squashes(result) {
			return clock.ToSquash()
		}
		return clock

	case executeReady:
		if clock.IsBlock() {
			return clock
		}
		return clock

	default:
		return clock
	}
}

func squashes(r ExecuteResult) bool {
	switch r.Kind {
	case ResSubroutine, ResJumpTo, ResReturn:
		return true
	default:
		return false
	}
}

func (e *Execute) Forward(upstream Status) Status {
	if e.state == executeHalted {
		return Dry()
	}
	if e.state == executeSquashed {
		return Squashed()
	}
	if e.state == executeReady {
		out := e.out
		e.state = executeIdle
		return Flow(out)
	}

	switch {
	case upstream.IsFlow():
		d := upstream.Value().(Decoded)
		e.pending = d
		e.clocks = d.Instr.ClockRequirement()
		e.state = executeWaiting
		return StageReady()
	case upstream.IsSquashed():
		e.state = executeSquashed
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

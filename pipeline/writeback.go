package pipeline

import "seisim/isa"

// Writeback is the pipeline's final stage: it commits register and status
// writes, retires jumps/returns, and always releases the locks the
// original instruction claimed in Decode — whether it completed normally
// or was squashed. Grounded on
// original_source/libpipe/src/stages/writeback.rs.
type Writeback struct {
	pending    withWritesResult
	hasPending bool
	dry        bool
}

// ClockStage commits whatever Memory forwarded to Writeback on the
// previous tick's forward pass: this runs before Decode re-checks locks in
// the same global tick, guaranteeing single-cycle lock release.
func (w *Writeback) ClockStage(clock Clock, regs *Registers, locks *LockTable) Clock {
	if !w.hasPending {
		return clock
	}
	result := w.pending
	w.hasPending = false

	switch result.Kind {
	case MemHalt:
		w.dry = true

	case MemIgnore:
		locks.UnlockAll(result.Regs)
		return clock

	case MemWriteReg:
		regs.Set(result.Dest, result.Value)
		commitFlags(regs, result.Flags)

	case MemWriteRegNoStatus:
		regs.Set(result.Dest, result.Value)

	case MemWriteStatus:
		commitFlags(regs, result.Flags)

	case MemJump:
		regs.Set(isa.PC, result.Address)

	case MemSubroutine, MemReturn:
		regs.Set(isa.PC, result.Address)
		regs.Set(isa.SP, result.SP)
		regs.Set(isa.BP, result.BP)
		regs.Set(isa.LP, result.LP)
	}

	locks.UnlockAll(result.Writes)
	return clock
}

func commitFlags(regs *Registers, f Flags) {
	regs.Set(isa.ZF, boolWord(f.ZF))
	regs.Set(isa.OF, boolWord(f.OF))
	regs.Set(isa.EPS, boolWord(f.EPS))
	regs.Set(isa.NAN, boolWord(f.NAN))
	regs.Set(isa.INF, boolWord(f.INF))
}

func boolWord(b bool) isa.Word {
	if b {
		return 1
	}
	return 0
}

// Forward receives Memory's Status and latches its payload for the next
// tick's ClockStage; it reports this tick's own status downward (there is
// nothing further downstream, so the driver reads this directly).
func (w *Writeback) Forward(upstream Status) Status {
	if w.dry {
		return Dry()
	}
	switch {
	case upstream.IsFlow():
		result := upstream.Value().(withWritesResult)
		w.pending = result
		w.hasPending = true
		if result.Kind == MemHalt {
			return Dry()
		}
		return StageReady()
	case upstream.IsDry():
		return Dry()
	default:
		if amt, ok := upstream.StallAmount(); ok {
			return Stall(amt)
		}
		return StageReady()
	}
}

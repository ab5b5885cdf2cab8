package pipeline

import "seisim/isa"

// Flags is the five-bit status word every WriteReg/WriteStatus result
// carries so Writeback can commit it in a single pass.
type Flags struct {
	ZF, OF, EPS, NAN, INF bool
}

// ResultKind tags the variant of an ExecuteResult.
type ResultKind int

const (
	ResNop ResultKind = iota
	ResHalt
	ResSubroutine
	ResJumpTo
	ResReturn
	ResWriteReg
	ResWriteStatus
	ResWriteMemByte
	ResWriteMemShort
	ResWriteMemWord
	ResReadMemByte
	ResReadMemShort
	ResReadMemWord
	ResReadRegStack
	ResWriteRegStack
	ResSquash
	ResIgnore
	ResPopStack
)

// ExecuteResult is the pure, typed output of the resolver: a description
// of what Memory/Writeback must do, computed from an instruction and a
// snapshot of register values. Grounded on
// original_source/libpipe/src/stages/execute/resolver/*.rs and the
// ExecuteResult enum implied by memory.rs's consumers.
type ExecuteResult struct {
	Kind ResultKind

	Address isa.Word // JumpTo/Subroutine/Return target, or mem address
	Link    isa.Word // Subroutine: LP to save; Return: LP to restore
	SP, BP  isa.Word // Subroutine/Return stack-frame values

	Dest     isa.Register
	Value    isa.Word
	Flags    Flags
	Volatile bool

	Regs isa.RegisterFlags // Squash/Ignore: locks to release without writing
}

// resolve computes the ExecuteResult for a decoded instruction given a
// register snapshot (never the live file).
func resolve(instr isa.Instruction, regs *Registers) ExecuteResult {
	switch instr.Cat {
	case isa.CategoryControl:
		return resolveControl(instr.Control, regs)
	case isa.CategoryInteger:
		return resolveInteger(instr.Integer, regs)
	case isa.CategoryRegister:
		return resolveRegister(instr.Register, regs)
	case isa.CategoryFloat:
		return ExecuteResult{Kind: ResNop}
	default:
		return ExecuteResult{Kind: ResNop}
	}
}

func jumpTarget(j isa.Jump, regs *Registers, pc isa.Word) isa.Word {
	if j.Relative {
		return isa.Word(int64(pc) + int64(j.Offset))
	}
	return regs.Get(j.Register) &^ 0x3
}

// resolveControl implements the predicate table and subroutine/return
// plumbing from original_source/.../resolver/control_ops.rs.
func resolveControl(c isa.ControlOp, regs *Registers) ExecuteResult {
	pc := regs.Get(isa.PC)
	zf := regs.Get(isa.ZF) != 0
	of := regs.Get(isa.OF) != 0

	taken := func() bool {
		switch c.Code {
		case isa.CtlJeq:
			return zf
		case isa.CtlJne:
			return !zf
		case isa.CtlJgt:
			return !zf && of
		case isa.CtlJlt:
			return !zf && !of
		case isa.CtlJge:
			return zf || of
		case isa.CtlJle:
			return zf || !of
		default:
			return true
		}
	}

	switch c.Code {
	case isa.CtlHalt:
		return ExecuteResult{Kind: ResHalt}
	case isa.CtlNop:
		return ExecuteResult{Kind: ResNop}
	case isa.CtlJmp:
		return ExecuteResult{Kind: ResJumpTo, Address: jumpTarget(c.Jump, regs, pc)}
	case isa.CtlJsr:
		return ExecuteResult{
			Kind:    ResSubroutine,
			Address: jumpTarget(c.Jump, regs, pc),
			Link:    regs.Get(isa.LP), // old LP, to be pushed
			Value:   pc + 4,           // return address, becomes the new LP
			SP:      regs.Get(isa.SP),
			BP:      regs.Get(isa.BP),
		}
	case isa.CtlRet:
		// The return address comes from the live LP register, which the
		// matching JSR set to its own pc+4 — not from anything on the
		// stack. The stack only holds the enclosing frame's saved BP/LP.
		return ExecuteResult{Kind: ResReturn, Link: regs.Get(isa.LP), BP: regs.Get(isa.BP)}
	default: // conditional jumps
		if !taken() {
			return ExecuteResult{Kind: ResNop}
		}
		return ExecuteResult{Kind: ResJumpTo, Address: jumpTarget(c.Jump, regs, pc)}
	}
}

// resolveInteger implements the exact flag-setting rules from
// original_source/.../resolver/integer_ops.rs.
func resolveInteger(op isa.IntegerOp, regs *Registers) ExecuteResult {
	l := regs.Get(op.Source)
	var r isa.Word
	if op.UseImm {
		r = isa.Word(op.Imm)
	} else {
		r = regs.Get(op.Operand)
	}

	writeReg := func(dst isa.Register, v isa.Word, f Flags) ExecuteResult {
		return ExecuteResult{Kind: ResWriteReg, Dest: dst, Value: v, Flags: f}
	}
	writeStatus := func(f Flags) ExecuteResult {
		return ExecuteResult{Kind: ResWriteStatus, Flags: f}
	}

	switch op.Code {
	case isa.IntAdd:
		sum := l + r
		return writeReg(op.Dest, sum, Flags{ZF: sum == 0, OF: sum < l})
	case isa.IntSub:
		diff := l - r
		return writeReg(op.Dest, diff, Flags{ZF: diff == 0, OF: r > l})
	case isa.IntMul:
		prod := l * r
		overflow := r != 0 && prod/r != l
		return writeReg(op.Dest, prod, Flags{ZF: prod == 0, OF: overflow})
	case isa.IntDvu:
		if r == 0 {
			return writeReg(op.Dest, 0, Flags{ZF: true, OF: true})
		}
		q := l / r
		return writeReg(op.Dest, q, Flags{ZF: q == 0, OF: false})
	case isa.IntDvs:
		if r == 0 {
			return writeReg(op.Dest, 0, Flags{ZF: true, OF: true})
		}
		q := isa.Word(int32(l) / int32(r))
		return writeReg(op.Dest, q, Flags{ZF: q == 0, OF: false})
	case isa.IntMod:
		if r == 0 {
			return writeReg(op.Dest, 0, Flags{ZF: true, OF: true})
		}
		m := l % r
		return writeReg(op.Dest, m, Flags{ZF: m == 0, OF: false})
	case isa.IntAnd:
		v := l & r
		return writeReg(op.Dest, v, Flags{ZF: v == 0})
	case isa.IntIor:
		v := l | r
		return writeReg(op.Dest, v, Flags{ZF: v == 0})
	case isa.IntXor:
		v := l ^ r
		return writeReg(op.Dest, v, Flags{ZF: v == 0})
	case isa.IntNot:
		v := ^l
		return writeReg(op.Dest, v, Flags{ZF: v == 0})
	case isa.IntSeb:
		v := isa.Word(int32(int8(l)))
		return writeReg(op.Dest, v, Flags{ZF: v == 0})
	case isa.IntSes:
		v := isa.Word(int32(int16(l)))
		return writeReg(op.Dest, v, Flags{ZF: v == 0})
	case isa.IntLsl:
		shift := r & 0x1F
		v := l << shift
		overflow := shift != 0 && (v>>shift) != l
		return writeReg(op.Dest, v, Flags{ZF: v == 0, OF: overflow})
	case isa.IntLsr:
		shift := r & 0x1F
		v := l >> shift
		return writeReg(op.Dest, v, Flags{ZF: v == 0, OF: false})
	case isa.IntAsr:
		shift := r & 0x1F
		v := isa.Word(int32(l) >> shift)
		return writeReg(op.Dest, v, Flags{ZF: v == 0, OF: false})
	case isa.IntRol:
		shift := r & 0x1F
		v := (l << shift) | (l >> (32 - shift))
		if shift == 0 {
			v = l
		}
		return writeReg(op.Dest, v, Flags{ZF: v == 0})
	case isa.IntRor:
		shift := r & 0x1F
		v := (l >> shift) | (l << (32 - shift))
		if shift == 0 {
			v = l
		}
		return writeReg(op.Dest, v, Flags{ZF: v == 0})
	case isa.IntCmp:
		if op.Signed {
			return writeStatus(Flags{ZF: l == r, OF: int32(r) > int32(l)})
		}
		return writeStatus(Flags{ZF: l == r, OF: r > l})
	case isa.IntTst:
		return writeStatus(Flags{ZF: (l & r) == l, OF: false})
	default:
		return ExecuteResult{Kind: ResNop}
	}
}

const stackPage = isa.StackPage

func stackAddress(x isa.Word) isa.Word {
	return stackPage | (x & 0xFFFF)
}

// resolveRegister implements the addressing-mode and transfer/immediate
// semantics from original_source/.../resolver/register_ops.rs.
func resolveRegister(op isa.RegisterOp, regs *Registers) ExecuteResult {
	switch op.Code {
	case isa.RegLbr, isa.RegLsr, isa.RegLlr:
		addr, volatile := memReadAddress(op.Mem, regs)
		kind := map[isa.RegisterCode]ResultKind{
			isa.RegLbr: ResReadMemByte,
			isa.RegLsr: ResReadMemShort,
			isa.RegLlr: ResReadMemWord,
		}[op.Code]
		return ExecuteResult{Kind: kind, Address: addr, Dest: op.Mem.Destination, Volatile: volatile}

	case isa.RegSbr, isa.RegSsr, isa.RegSlr:
		addr, volatile := memWriteAddress(op.Mem, regs)
		kind := map[isa.RegisterCode]ResultKind{
			isa.RegSbr: ResWriteMemByte,
			isa.RegSsr: ResWriteMemShort,
			isa.RegSlr: ResWriteMemWord,
		}[op.Code]
		return ExecuteResult{Kind: kind, Address: addr, Value: regs.Get(op.Mem.Destination), Volatile: volatile}

	case isa.RegTfr:
		return ExecuteResult{Kind: ResWriteReg, Dest: op.Reg.Destination, Value: regs.Get(op.Reg.Source), Flags: currentFlags(regs)}

	case isa.RegLdr:
		if op.Imm.ZeroPageTranslate {
			addr := isa.ZeroPage | isa.Word(op.Imm.Address)
			return ExecuteResult{Kind: ResWriteReg, Dest: op.Imm.Destination, Value: addr, Flags: currentFlags(regs)}
		}
		existing := regs.Get(op.Imm.Destination)
		var value isa.Word
		if op.Imm.Shift == 0 {
			if op.Imm.Zero {
				value = isa.Word(op.Imm.Immediate)
			} else {
				value = (existing &^ 0xFFFF) | isa.Word(op.Imm.Immediate)
			}
		} else {
			if op.Imm.Zero {
				value = isa.Word(op.Imm.Immediate) << 16
			} else {
				value = (existing & 0xFFFF) | (isa.Word(op.Imm.Immediate) << 16)
			}
		}
		return ExecuteResult{Kind: ResWriteReg, Dest: op.Imm.Destination, Value: value, Flags: currentFlags(regs)}

	case isa.RegPush:
		return ExecuteResult{Kind: ResWriteRegStack, Value: regs.Get(op.Stk), SP: regs.Get(isa.SP)}

	case isa.RegPop:
		return ExecuteResult{Kind: ResReadRegStack, Dest: op.Stk, SP: regs.Get(isa.SP)}

	default:
		return ExecuteResult{Kind: ResNop}
	}
}

func currentFlags(regs *Registers) Flags {
	return Flags{
		ZF:  regs.Get(isa.ZF) != 0,
		OF:  regs.Get(isa.OF) != 0,
		EPS: regs.Get(isa.EPS) != 0,
		NAN: regs.Get(isa.NAN) != 0,
		INF: regs.Get(isa.INF) != 0,
	}
}

// memReadAddress/memWriteAddress implement compute_read_address /
// compute_write_address: both compute the address through memAddress, so
// loads and stores share the same five modes.
func memReadAddress(m isa.MemOp, regs *Registers) (isa.Word, bool) {
	return memAddress(m, regs)
}

func memWriteAddress(m isa.MemOp, regs *Registers) (isa.Word, bool) {
	return memAddress(m, regs)
}

func memAddress(m isa.MemOp, regs *Registers) (isa.Word, bool) {
	switch m.Mode {
	case isa.AddrZeroPage:
		return isa.ZeroPage | isa.Word(m.ZeroPageAdr), false
	case isa.AddrIndirect:
		return regs.Get(m.Address), m.Volatile
	case isa.AddrOffset:
		return isa.Word(int64(regs.Get(m.Address)) + int64(int16(m.Offset))), m.Volatile
	case isa.AddrIndexed:
		return regs.Get(m.Address) + regs.Get(m.Index), m.Volatile
	case isa.AddrStackOff:
		return stackAddress(regs.Get(isa.SP) + isa.Word(int64(int16(m.Offset)))), false
	default:
		return 0, false
	}
}

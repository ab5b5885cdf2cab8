package isa

import "fmt"

// Category is the 3-bit instruction class carried in bits [31:29] of every
// word. Grounded on original_source/libseis/src/instruction_set/mod.rs.
type Category Byte

const (
	CategoryControl  Category = 0
	CategoryInteger  Category = 1
	CategoryFloat    Category = 2
	CategoryRegister Category = 3
)

const (
	categoryMask  Word = 0b1110_0000_0000_0000_0000_0000_0000_0000
	categoryShift      = 29
)

func (c Category) String() string {
	switch c {
	case CategoryControl:
		return "control"
	case CategoryInteger:
		return "integer"
	case CategoryFloat:
		return "float"
	case CategoryRegister:
		return "register"
	default:
		return "unknown"
	}
}

// Instruction is the decoded form of a 32-bit big-endian instruction word.
// Exactly one of Control/Integer/Float/Register is meaningful, selected by
// Cat.
type Instruction struct {
	Cat      Category
	Control  ControlOp
	Integer  IntegerOp
	Float    FloatOp
	Register RegisterOp
}

// Decode parses a 32-bit instruction word. It returns a *DecodeError
// (unwrappable via errors.As) on any malformed encoding; the word itself is
// never mutated or consumed.
func Decode(word Word) (Instruction, error) {
	cat := Category((word & categoryMask) >> categoryShift)
	switch cat {
	case CategoryControl:
		c, err := decodeControl(word)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Cat: cat, Control: c}, nil
	case CategoryInteger:
		i, err := decodeInteger(word)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Cat: cat, Integer: i}, nil
	case CategoryFloat:
		f, err := decodeFloat(word)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Cat: cat, Float: f}, nil
	case CategoryRegister:
		r, err := decodeRegister(word)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Cat: cat, Register: r}, nil
	default:
		return Instruction{}, decodeErr(ErrInvalidOpType, word)
	}
}

// Encode is the inverse of Decode: Encode(Decode(w)) == w for every
// validly-decoded w (round-trip law, SPEC_FULL.md §11 property P1).
func Encode(instr Instruction) Word {
	head := Word(instr.Cat) << categoryShift
	switch instr.Cat {
	case CategoryControl:
		return head | instr.Control.encode()
	case CategoryInteger:
		return head | instr.Integer.encode()
	case CategoryFloat:
		return head | instr.Float.encode()
	case CategoryRegister:
		return head | instr.Register.encode()
	default:
		return head
	}
}

// Reads reports the registers this instruction's Execute stage consumes,
// beyond the implicit PC read every instruction performs in Fetch.
func (instr Instruction) Reads() RegisterFlags {
	switch instr.Cat {
	case CategoryControl:
		flags := NewRegisterFlags()
		switch instr.Control.Code {
		case CtlJeq, CtlJne, CtlJgt, CtlJlt, CtlJge, CtlJle:
			flags = flags.Union(NewRegisterFlags(ZF, OF))
		case CtlRet:
			flags = flags.Union(NewRegisterFlags(BP, LP))
		}
		if instr.Control.Code.hasJumpOperand() && !instr.Control.Jump.Relative {
			flags = flags.Union(NewRegisterFlags(instr.Control.Jump.Register))
		}
		if instr.Control.Code == CtlJsr {
			flags = flags.Union(NewRegisterFlags(SP, BP, LP))
		}
		return flags

	case CategoryInteger:
		flags := NewRegisterFlags(instr.Integer.Source)
		if !instr.Integer.UseImm {
			switch instr.Integer.Code {
			case IntNot, IntSeb, IntSes:
			default:
				flags = flags.Union(NewRegisterFlags(instr.Integer.Operand))
			}
		}
		return flags

	case CategoryRegister:
		op := instr.Register
		switch op.Code {
		case RegLbr, RegLsr, RegLlr:
			return memOperandReads(op.Mem)
		case RegSbr, RegSsr, RegSlr:
			return memOperandReads(op.Mem).Union(NewRegisterFlags(op.Mem.Destination))
		case RegTfr:
			return NewRegisterFlags(op.Reg.Source)
		case RegLdr:
			return NewRegisterFlags()
		case RegPush:
			return NewRegisterFlags(op.Stk, SP)
		case RegPop:
			return NewRegisterFlags(SP)
		}
	}
	return NewRegisterFlags()
}

func memOperandReads(m MemOp) RegisterFlags {
	switch m.Mode {
	case AddrIndirect, AddrOffset:
		return NewRegisterFlags(m.Address)
	case AddrIndexed:
		return NewRegisterFlags(m.Address, m.Index)
	case AddrStackOff:
		return NewRegisterFlags(SP)
	default:
		return NewRegisterFlags()
	}
}

// Writes reports the registers this instruction's Writeback stage updates.
func (instr Instruction) Writes() RegisterFlags {
	switch instr.Cat {
	case CategoryControl:
		switch instr.Control.Code {
		case CtlJsr:
			return NewRegisterFlags(PC, SP, BP, LP)
		case CtlRet:
			return NewRegisterFlags(PC, SP, BP, LP)
		case CtlJmp, CtlJeq, CtlJne, CtlJgt, CtlJlt, CtlJge, CtlJle:
			return NewRegisterFlags(PC)
		default:
			return NewRegisterFlags()
		}

	case CategoryInteger:
		switch instr.Integer.Code {
		case IntCmp, IntTst:
			return NewRegisterFlags(ZF, OF)
		default:
			return NewRegisterFlags(instr.Integer.Dest, ZF, OF)
		}

	case CategoryRegister:
		op := instr.Register
		switch op.Code {
		case RegLbr, RegLsr, RegLlr:
			return NewRegisterFlags(op.Mem.Destination)
		case RegSbr, RegSsr, RegSlr:
			return NewRegisterFlags()
		case RegTfr:
			return NewRegisterFlags(op.Reg.Destination)
		case RegLdr:
			return NewRegisterFlags(op.Imm.Destination)
		case RegPush:
			return NewRegisterFlags(SP)
		case RegPop:
			return NewRegisterFlags(op.Stk, SP)
		}
	}
	return NewRegisterFlags()
}

// ClockRequirement reports how many Execute-stage clocks this instruction
// needs in total, per SPEC_FULL.md §4.1/§4.6.3: relative jumps and
// the offset/indexed addressing modes cost 2, everything else costs 1.
func (instr Instruction) ClockRequirement() int {
	switch instr.Cat {
	case CategoryControl:
		if instr.Control.isRelativeJump() {
			return 2
		}
		return 1
	case CategoryRegister:
		op := instr.Register
		switch op.Code {
		case RegLbr, RegLsr, RegLlr, RegSbr, RegSsr, RegSlr:
			if op.Mem.crossesLine() {
				return 2
			}
			return 1
		default:
			return 1
		}
	default:
		return 1
	}
}

func (instr Instruction) String() string {
	switch instr.Cat {
	case CategoryControl:
		return instr.Control.String()
	case CategoryInteger:
		return instr.Integer.String()
	case CategoryFloat:
		return instr.Float.String()
	case CategoryRegister:
		return instr.Register.String()
	default:
		return fmt.Sprintf("??? (%s)", instr.Cat)
	}
}

package isa

import "fmt"

// Jump is the operand carried by every flow-control instruction: either an
// absolute jump through a register, or a PC-relative offset measured in
// words. Grounded on original_source/libseis/src/instruction_set/control.rs.
type Jump struct {
	Register Register // valid iff !Relative
	Relative bool
	Offset   SWord // signed word offset, already scaled by 4 to bytes
}

const (
	jumpRelModeMask Word = 0b0000_0001_0000_0000_0000_0000_0000_0000
	jumpRelMask     Word = 0b0000_0000_1111_1111_1111_1111_1111_1111
	jumpSignBit     Word = 0b0000_0000_1000_0000_0000_0000_0000_0000
	jumpRegMask     Word = 0b0000_0000_1111_0000_0000_0000_0000_0000
	jumpRegShift         = 20
)

// MaxRelativeJumpWords bounds the signed 24-bit relative field the encoder
// accepts, before the ×4 scale to bytes. Resolves Open Question 2 of
// SPEC_FULL.md in favor of the encoder's own range.
const MaxRelativeJumpWords = 1 << 23

func decodeJump(word Word) Jump {
	if word&jumpRelModeMask == 0 {
		return Jump{Register: Register((word & jumpRegMask) >> jumpRegShift)}
	}
	amount := word & jumpRelMask
	var signed SWord
	if amount&jumpSignBit == 0 {
		signed = SWord(amount)
	} else {
		signed = SWord(^jumpRelMask | amount)
	}
	return Jump{Relative: true, Offset: signed << 2}
}

func (j Jump) encode() Word {
	if !j.Relative {
		return Word(j.Register) << jumpRegShift
	}
	return jumpRelModeMask | (Word(j.Offset>>2) & jumpRelMask)
}

func (j Jump) String() string {
	if !j.Relative {
		return fmt.Sprintf("V%X", j.Register)
	}
	return fmt.Sprintf("%+d", j.Offset>>2)
}

// ControlOp is a flow-control instruction. All relative jumps are in terms
// of words rather than bytes; absolute addresses ignore the low 2 bits.
type ControlOp struct {
	Code ControlCode
	Jump Jump // valid for Jmp/Jsr/Jeq/Jne/Jgt/Jlt/Jge/Jle
}

type ControlCode Byte

const (
	CtlHalt ControlCode = 0b0000
	CtlNop  ControlCode = 0b0001
	CtlJmp  ControlCode = 0b0010
	CtlJsr  ControlCode = 0b0011
	CtlRet  ControlCode = 0b0100
	CtlJeq  ControlCode = 0b1000
	CtlJge  ControlCode = 0b1001
	CtlJle  ControlCode = 0b1010
	CtlJne  ControlCode = 0b1100
	CtlJgt  ControlCode = 0b1101
	CtlJlt  ControlCode = 0b1110
)

const (
	controlMask  Word = 0b0001_1110_0000_0000_0000_0000_0000_0000
	controlShift      = 25
)

func decodeControl(word Word) (ControlOp, error) {
	code := ControlCode((word & controlMask) >> controlShift)
	switch code {
	case CtlHalt, CtlNop, CtlRet:
		return ControlOp{Code: code}, nil
	case CtlJmp, CtlJsr, CtlJeq, CtlJne, CtlJgt, CtlJlt, CtlJge, CtlJle:
		return ControlOp{Code: code, Jump: decodeJump(word)}, nil
	default:
		return ControlOp{}, decodeErr(ErrInvalidControlOp, word)
	}
}

func (c ControlOp) encode() Word {
	head := Word(c.Code) << controlShift
	switch c.Code {
	case CtlJmp, CtlJsr, CtlJeq, CtlJne, CtlJgt, CtlJlt, CtlJge, CtlJle:
		return head | c.Jump.encode()
	default:
		return head
	}
}

// hasJumpOperand reports whether this opcode carries a Jump field.
func (c ControlCode) hasJumpOperand() bool {
	switch c {
	case CtlJmp, CtlJsr, CtlJeq, CtlJne, CtlJgt, CtlJlt, CtlJge, CtlJle:
		return true
	default:
		return false
	}
}

// isRelativeJump reports whether c, paired with jump, is a relative jump
// (clock_requirement = 2 per SPEC_FULL.md §4.1).
func (c ControlOp) isRelativeJump() bool {
	return c.Code.hasJumpOperand() && c.Jump.Relative
}

func (c ControlOp) String() string {
	switch c.Code {
	case CtlHalt:
		return "HALT"
	case CtlNop:
		return "NOP"
	case CtlRet:
		return "RET"
	case CtlJmp:
		return "JMP " + c.Jump.String()
	case CtlJsr:
		return "JSR " + c.Jump.String()
	case CtlJeq:
		return "JEQ " + c.Jump.String()
	case CtlJne:
		return "JNE " + c.Jump.String()
	case CtlJgt:
		return "JGT " + c.Jump.String()
	case CtlJlt:
		return "JLT " + c.Jump.String()
	case CtlJge:
		return "JGE " + c.Jump.String()
	case CtlJle:
		return "JLE " + c.Jump.String()
	default:
		return "???"
	}
}

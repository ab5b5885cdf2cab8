package isa

import "fmt"

// RegisterOp is the register-and-memory instruction category: loads/stores
// through five addressing modes, register transfer, immediate load, and
// stack push/pop. Grounded on
// original_source/libseis/src/instruction_set/register.rs, with the
// push/pop operand simplified to a single register — see SPEC_FULL.md §12
// ("Push/Pop single-register simplification") for why.
type RegisterOp struct {
	Code RegisterCode
	Mem  MemOp   // valid for Lbr/Lsr/Llr/Sbr/Ssr/Slr
	Reg  RegOp   // valid for Tfr
	Imm  ImmOp   // valid for Ldr
	Stk  Register // valid for Push/Pop
}

type RegisterCode Byte

const (
	RegPush RegisterCode = 0b0000
	RegPop  RegisterCode = 0b0001
	RegLbr  RegisterCode = 0b0010
	RegSbr  RegisterCode = 0b0011
	RegLsr  RegisterCode = 0b0100
	RegSsr  RegisterCode = 0b0101
	RegLlr  RegisterCode = 0b0110
	RegSlr  RegisterCode = 0b0111
	RegTfr  RegisterCode = 0b1000
	RegLdr  RegisterCode = 0b1001
)

const (
	registerMask  Word = 0b0001_1110_0000_0000_0000_0000_0000_0000
	registerShift      = 25

	stackRegMask Word = 0b0000_0000_0000_0000_0000_0000_0000_1111
)

// RegOp is the register-to-register transfer operand (Tfr).
type RegOp struct {
	Source      Register
	Destination Register
}

const (
	regOpSrcMask Word = 0b0000_0000_0000_0000_1111_1111_0000_0000
	regOpDstMask Word = 0b0000_0000_0000_0000_0000_0000_1111_1111
)

func decodeRegOp(word Word) RegOp {
	return RegOp{
		Source:      Register((word & regOpSrcMask) >> 8),
		Destination: Register(word & regOpDstMask),
	}
}

func (r RegOp) encode() Word {
	return Word(r.Source)<<8 | Word(r.Destination)
}

// ImmOp loads a 16-bit immediate into a selected half of a register, or
// translates a zero-page short address into a full address.
type ImmOp struct {
	ZeroPageTranslate bool
	Zero              bool // zero the other half-word
	Shift             Byte // 0 or 1 half-word selector
	Immediate         Short
	Address           Short // valid iff ZeroPageTranslate
	Destination       Register
}

const (
	immZpgTranslate Word = 0b0000_0000_1000_0000_0000_0000_0000_0000
	immZeroFlag     Word = 0b0000_0000_0100_0000_0000_0000_0000_0000
	immDestMask     Word = 0b0000_0000_0000_0000_0000_0000_0000_1111
	immValueMask    Word = 0b0000_0000_0000_1111_1111_1111_1111_0000
	immValueShift        = 4
	immBshiftMask   Word = 0b0000_0000_0011_0000_0000_0000_0000_0000
	immBshiftShift       = 20
)

func decodeImmOp(word Word) ImmOp {
	dest := Register(word & immDestMask)
	if word&immZpgTranslate == 0 {
		return ImmOp{
			Zero:        word&immZeroFlag == 0,
			Shift:       Byte((word & immBshiftMask) >> immBshiftShift),
			Immediate:   Short((word & immValueMask) >> immValueShift),
			Destination: dest,
		}
	}
	return ImmOp{
		ZeroPageTranslate: true,
		Address:           Short((word & immValueMask) >> immValueShift),
		Destination:       dest,
	}
}

func (i ImmOp) encode() Word {
	if i.ZeroPageTranslate {
		return immZpgTranslate | Word(i.Address)<<immValueShift | Word(i.Destination)
	}
	head := Word(i.Destination) | Word(i.Immediate)<<immValueShift | Word(i.Shift)<<immBshiftShift
	if !i.Zero {
		head |= immZeroFlag
	}
	return head
}

func (i ImmOp) String() string {
	if i.ZeroPageTranslate {
		return fmt.Sprintf("&%d => V%X", i.Address, i.Destination)
	}
	if i.Shift == 0 {
		if i.Zero {
			return fmt.Sprintf("#%d => V%X", i.Immediate, i.Destination)
		}
		return fmt.Sprintf("#%d => V%X.0", i.Immediate, i.Destination)
	}
	return fmt.Sprintf("#%d => V%X.%d", i.Immediate, i.Destination, i.Shift)
}

// AddrMode enumerates the five memory addressing modes.
type AddrMode Byte

const (
	AddrIndirect AddrMode = 0b000
	AddrOffset   AddrMode = 0b001
	AddrIndexed  AddrMode = 0b010
	AddrStackOff AddrMode = 0b011
	AddrZeroPage AddrMode = 0b111
)

// MemOp is the addressing-mode operand shared by loads and stores.
type MemOp struct {
	Mode        AddrMode
	Volatile    bool
	Address     Register // valid for Indirect/Offset/Indexed
	Index       Register // valid for Indexed
	Offset      Short    // valid for Offset/StackOffset
	ZeroPageAdr Short    // valid for ZeroPage
	Destination Register // destination for loads, source for stores
}

const (
	memDestMask    Word = 0b0000_0000_0000_0000_0000_0000_0000_1111
	memZpgAdrMask  Word = 0b0000_0000_0000_1111_1111_1111_1111_0000
	memZpgAdrShift      = 4
	memModeMask    Word = 0b0000_0000_1110_0000_0000_0000_0000_0000
	memModeShift        = 21
	memAddrRegMask Word = 0b0000_0000_0000_0000_0000_0000_1111_0000
	memAddrShift        = 4
	memIndexMask   Word = 0b0000_0000_0000_0000_0000_1111_0000_0000
	memIndexShift       = 8
	memOffsetMask  Word = 0b0000_0000_0000_1111_1111_1111_0000_0000
	memOffsetShift      = 8
	memVolatileBit Word = 0b100 // within the 3-bit mode field
)

func decodeMemOp(word Word) (MemOp, error) {
	modeField := (word & memModeMask) >> memModeShift
	dest := Register(word & memDestMask)

	if modeField == Word(AddrZeroPage) {
		return MemOp{
			Mode:        AddrZeroPage,
			ZeroPageAdr: Short((word & memZpgAdrMask) >> memZpgAdrShift),
			Destination: dest,
		}, nil
	}

	switch modeField &^ memVolatileBit {
	case Word(AddrIndirect):
		return MemOp{
			Mode:        AddrIndirect,
			Volatile:    modeField&memVolatileBit != 0,
			Address:     Register((word & memAddrRegMask) >> memAddrShift),
			Destination: dest,
		}, nil
	case Word(AddrOffset):
		return MemOp{
			Mode:        AddrOffset,
			Volatile:    modeField&memVolatileBit != 0,
			Address:     Register((word & memAddrRegMask) >> memAddrShift),
			Offset:      Short((word & memOffsetMask) >> memOffsetShift),
			Destination: dest,
		}, nil
	case Word(AddrIndexed):
		return MemOp{
			Mode:        AddrIndexed,
			Volatile:    modeField&memVolatileBit != 0,
			Address:     Register((word & memAddrRegMask) >> memAddrShift),
			Index:       Register((word & memIndexMask) >> memIndexShift),
			Destination: dest,
		}, nil
	case Word(AddrStackOff):
		return MemOp{
			Mode:        AddrStackOff,
			Offset:      Short((word & memOffsetMask) >> memOffsetShift),
			Destination: dest,
		}, nil
	}

	return MemOp{}, decodeErr(ErrInvalidAddressingMode, word)
}

func (m MemOp) encode() Word {
	switch m.Mode {
	case AddrZeroPage:
		return Word(AddrZeroPage)<<memModeShift | Word(m.ZeroPageAdr)<<memZpgAdrShift | Word(m.Destination)
	case AddrIndirect:
		head := Word(AddrIndirect) << memModeShift
		if m.Volatile {
			head |= memVolatileBit << memModeShift
		}
		return head | Word(m.Address)<<memAddrShift | Word(m.Destination)
	case AddrOffset:
		head := Word(AddrOffset) << memModeShift
		if m.Volatile {
			head |= memVolatileBit << memModeShift
		}
		return head | Word(m.Address)<<memAddrShift | Word(m.Offset)<<memOffsetShift | Word(m.Destination)
	case AddrIndexed:
		head := Word(AddrIndexed) << memModeShift
		if m.Volatile {
			head |= memVolatileBit << memModeShift
		}
		return head | Word(m.Address)<<memAddrShift | Word(m.Index)<<memIndexShift | Word(m.Destination)
	case AddrStackOff:
		return Word(AddrStackOff)<<memModeShift | Word(m.Offset)<<memOffsetShift | Word(m.Destination)
	}
	return 0
}

// crossesLine reports whether this addressing mode crosses a cache line
// (offset/indexed modes cost 2 cycles, everything else costs 1).
func (m MemOp) crossesLine() bool {
	return m.Mode == AddrOffset || m.Mode == AddrIndexed
}

func (m MemOp) String() string {
	assign := "=>"
	if m.Volatile {
		assign = "=>>"
	}
	switch m.Mode {
	case AddrZeroPage:
		return fmt.Sprintf("@%#x => V%X", m.ZeroPageAdr, m.Destination)
	case AddrIndirect:
		return fmt.Sprintf("V%X %s V%X", m.Address, assign, m.Destination)
	case AddrOffset:
		return fmt.Sprintf("V%X + #%d %s V%X", m.Address, m.Offset, assign, m.Destination)
	case AddrIndexed:
		return fmt.Sprintf("V%X[V%X] %s V%X", m.Address, m.Index, assign, m.Destination)
	case AddrStackOff:
		return fmt.Sprintf("%%%d => V%X", m.Offset, m.Destination)
	default:
		return "???"
	}
}

func decodeRegister(word Word) (RegisterOp, error) {
	code := RegisterCode((word & registerMask) >> registerShift)

	switch code {
	case RegPush, RegPop:
		return RegisterOp{Code: code, Stk: Register(word & stackRegMask)}, nil
	case RegLbr, RegSbr, RegLsr, RegSsr, RegLlr, RegSlr:
		m, err := decodeMemOp(word)
		if err != nil {
			return RegisterOp{}, err
		}
		return RegisterOp{Code: code, Mem: m}, nil
	case RegTfr:
		return RegisterOp{Code: code, Reg: decodeRegOp(word)}, nil
	case RegLdr:
		return RegisterOp{Code: code, Imm: decodeImmOp(word)}, nil
	default:
		return RegisterOp{}, decodeErr(ErrInvalidRegisterOp, word)
	}
}

func (op RegisterOp) encode() Word {
	head := Word(op.Code) << registerShift
	switch op.Code {
	case RegPush, RegPop:
		return head | Word(op.Stk)
	case RegLbr, RegSbr, RegLsr, RegSsr, RegLlr, RegSlr:
		return head | op.Mem.encode()
	case RegTfr:
		return head | op.Reg.encode()
	case RegLdr:
		return head | op.Imm.encode()
	}
	return head
}

// isLoad reports whether op reads memory (vs. writes).
func (op RegisterOp) isLoad() bool {
	switch op.Code {
	case RegLbr, RegLsr, RegLlr:
		return true
	}
	return false
}

// isStore reports whether op writes memory.
func (op RegisterOp) isStore() bool {
	switch op.Code {
	case RegSbr, RegSsr, RegSlr:
		return true
	}
	return false
}

func (op RegisterOp) String() string {
	switch op.Code {
	case RegLbr:
		return "LBR " + op.Mem.String()
	case RegLsr:
		return "LSR " + op.Mem.String()
	case RegLlr:
		return "LLR " + op.Mem.String()
	case RegSbr:
		return "SBR " + op.Mem.String()
	case RegSsr:
		return "SSR " + op.Mem.String()
	case RegSlr:
		return "SLR " + op.Mem.String()
	case RegTfr:
		return fmt.Sprintf("TFR V%X => V%X", op.Reg.Source, op.Reg.Destination)
	case RegLdr:
		return "LDR " + op.Imm.String()
	case RegPush:
		return fmt.Sprintf("PUSH V%X", op.Stk)
	case RegPop:
		return fmt.Sprintf("POP V%X", op.Stk)
	default:
		return "???"
	}
}

package isa

import (
	"fmt"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

// roundTrip exercises the codec's central law: decoding then re-encoding a
// word must reproduce it exactly.
func roundTrip(t *testing.T, word Word) {
	instr, err := Decode(word)
	assert(t, err == nil, "failed to decode %#08x: %v", word, err)
	got := Encode(instr)
	assert(t, got == word, "round trip broke: decode(%#08x)=%+v, encode=%#08x", word, instr, got)
}

func TestControlCodecRoundTrip(t *testing.T) {
	words := []Word{
		ControlOp{Code: CtlNop}.encode(),
		ControlOp{Code: CtlHalt}.encode(),
		ControlOp{Code: CtlRet}.encode(),
		ControlOp{Code: CtlJmp, Jump: Jump{Register: V3}}.encode(),
		ControlOp{Code: CtlJsr, Jump: Jump{Relative: true, Offset: 128}}.encode(),
		ControlOp{Code: CtlJeq, Jump: Jump{Relative: true, Offset: -128}}.encode(),
		ControlOp{Code: CtlJge, Jump: Jump{Relative: true, Offset: 0}}.encode(),
	}
	for _, w := range words {
		w |= Word(CategoryControl) << categoryShift
		roundTrip(t, w)
	}
}

func TestIntegerCodecRoundTrip(t *testing.T) {
	ops := []IntegerOp{
		{Code: IntAdd, Source: V0, Operand: V1, Dest: V2},
		{Code: IntSub, Source: V3, UseImm: true, Imm: 0x1234, Dest: V4},
		{Code: IntNot, Source: V5, Dest: V6},
		{Code: IntSeb, Dest: V7},
		{Code: IntSes, Dest: V8, SignedWidth: 1},
		{Code: IntCmp, Source: V9, Operand: VA, Signed: true},
		{Code: IntCmp, Source: VB, UseImm: true, Imm: 42},
		{Code: IntTst, Source: VC, Operand: VD},
		{Code: IntLsl, Source: VE, Operand: VF, Dest: V0},
	}
	for _, op := range ops {
		w := Word(CategoryInteger)<<categoryShift | op.encode()
		roundTrip(t, w)
	}
}

func TestRegisterCodecRoundTrip(t *testing.T) {
	ops := []RegisterOp{
		{Code: RegPush, Stk: V0},
		{Code: RegPop, Stk: VF},
		{Code: RegLbr, Mem: MemOp{Mode: AddrIndirect, Address: V0, Destination: V1}},
		{Code: RegSbr, Mem: MemOp{Mode: AddrOffset, Volatile: true, Address: V2, Offset: 100, Destination: V3}},
		{Code: RegLsr, Mem: MemOp{Mode: AddrIndexed, Address: V4, Index: V5, Destination: V6}},
		{Code: RegSsr, Mem: MemOp{Mode: AddrStackOff, Offset: 16, Destination: V7}},
		{Code: RegLlr, Mem: MemOp{Mode: AddrZeroPage, ZeroPageAdr: 0x3ff, Destination: V8}},
		{Code: RegTfr, Reg: RegOp{Source: V9, Destination: VA}},
		{Code: RegLdr, Imm: ImmOp{Zero: true, Immediate: 0xbeef, Destination: VB}},
		{Code: RegLdr, Imm: ImmOp{Shift: 1, Immediate: 0x1111, Destination: VC}},
		{Code: RegLdr, Imm: ImmOp{ZeroPageTranslate: true, Address: 0x200, Destination: VD}},
	}
	for _, op := range ops {
		w := Word(CategoryRegister)<<categoryShift | op.encode()
		roundTrip(t, w)
	}
}

func TestFloatCodecRoundTrip(t *testing.T) {
	w := Word(CategoryFloat)<<categoryShift | 0x1234
	roundTrip(t, w)
}

func TestDecodeRejectsInvalidOpcodes(t *testing.T) {
	// Control category with an opcode value that decodeControl doesn't map.
	bad := Word(CategoryControl)<<categoryShift | (0b0111 << controlShift)
	_, err := Decode(bad)
	assert(t, err != nil, "expected an error decoding an unmapped control opcode")

	var de *DecodeError
	assert(t, errorsAs(err, &de), "expected a *DecodeError, got %T", err)
	assert(t, de.Kind == ErrInvalidControlOp, "expected ErrInvalidControlOp, got %v", de.Kind)
}

func errorsAs(err error, target **DecodeError) bool {
	de, ok := err.(*DecodeError)
	if !ok {
		return false
	}
	*target = de
	return true
}

package asm

import (
	"fmt"
	"testing"

	"seisim/isa"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func assembleAndDecode(t *testing.T, source string) []isa.Instruction {
	image, err := Assemble(source)
	assert(t, err == nil, "failed to assemble: %v", err)
	assert(t, len(image)%4 == 0, "image length %d is not a multiple of 4", len(image))

	var out []isa.Instruction
	for off := 0; off < len(image); off += 4 {
		word := isa.Word(image[off])<<24 | isa.Word(image[off+1])<<16 | isa.Word(image[off+2])<<8 | isa.Word(image[off+3])
		instr, err := isa.Decode(word)
		assert(t, err == nil, "failed to decode assembled word %#x: %v", word, err)
		out = append(out, instr)
	}
	return out
}

func TestAssembleControlAndLabels(t *testing.T) {
	source := `
	start:
		NOP
		JEQ start
		JMP done
	done:
		HALT
	`
	instrs := assembleAndDecode(t, source)
	assert(t, len(instrs) == 4, "expected 4 instructions, got %d", len(instrs))

	assert(t, instrs[0].Control.Code == isa.CtlNop, "line 0 should be NOP")

	jeq := instrs[1].Control
	assert(t, jeq.Code == isa.CtlJeq, "line 1 should be JEQ")
	assert(t, jeq.Jump.Relative, "JEQ to a label must be relative")
	assert(t, jeq.Jump.Offset>>2 == -1, "JEQ start should jump back one word, got %d", jeq.Jump.Offset>>2)

	jmp := instrs[2].Control
	assert(t, jmp.Code == isa.CtlJmp, "line 2 should be JMP")
	assert(t, jmp.Jump.Offset>>2 == 1, "JMP done should be +1 word, got %d", jmp.Jump.Offset>>2)

	assert(t, instrs[3].Control.Code == isa.CtlHalt, "line 3 should be HALT")
}

func TestAssembleIntegerOps(t *testing.T) {
	source := `
		ADD V0, V1, V2
		ADD V0, #10, V2
		CMP V3, V4
		CMP V3, #7
		TST V5, V6
		NOT V0, V1
		SEB V2
	`
	instrs := assembleAndDecode(t, source)
	assert(t, len(instrs) == 7, "expected 7 instructions, got %d", len(instrs))

	add := instrs[0].Integer
	assert(t, add.Code == isa.IntAdd && !add.UseImm && add.Source == isa.V0 && add.Operand == isa.V1 && add.Dest == isa.V2,
		"unexpected register ADD decode: %+v", add)

	addImm := instrs[1].Integer
	assert(t, addImm.UseImm && addImm.Imm == 10, "unexpected immediate ADD decode: %+v", addImm)

	cmp := instrs[2].Integer
	assert(t, cmp.Code == isa.IntCmp && cmp.Signed && cmp.Operand == isa.V4, "unexpected CMP decode: %+v", cmp)

	cmpImm := instrs[3].Integer
	assert(t, cmpImm.UseImm && cmpImm.Imm == 7, "unexpected immediate CMP decode: %+v", cmpImm)

	tst := instrs[4].Integer
	assert(t, tst.Code == isa.IntTst && tst.Source == isa.V5 && tst.Operand == isa.V6, "unexpected TST decode: %+v", tst)

	not := instrs[5].Integer
	assert(t, not.Code == isa.IntNot && not.Source == isa.V0 && not.Dest == isa.V1, "unexpected NOT decode: %+v", not)

	seb := instrs[6].Integer
	assert(t, seb.Code == isa.IntSeb && seb.Dest == isa.V2, "unexpected SEB decode: %+v", seb)
}

func TestAssembleRegisterAddressingModes(t *testing.T) {
	source := `
		LBR V0 => V1
		LBR V0 + #4 => V2
		LBR V0[V3] => V4
		LBR %8 => V5
		LBR @0x20 => V6
		SBR V7 => V0
		TFR V0 => V1
		LDR #100 => V2
		LDR #5 => V2.1
		LDR &0x30 => V3
		PUSH V0
		POP V1
	`
	instrs := assembleAndDecode(t, source)
	assert(t, len(instrs) == 12, "expected 12 instructions, got %d", len(instrs))

	indirect := instrs[0].Register.Mem
	assert(t, indirect.Mode == isa.AddrIndirect && indirect.Address == isa.V0 && indirect.Destination == isa.V1,
		"unexpected indirect decode: %+v", indirect)

	offset := instrs[1].Register.Mem
	assert(t, offset.Mode == isa.AddrOffset && offset.Offset == 4 && offset.Destination == isa.V2,
		"unexpected offset decode: %+v", offset)

	indexed := instrs[2].Register.Mem
	assert(t, indexed.Mode == isa.AddrIndexed && indexed.Address == isa.V0 && indexed.Index == isa.V3,
		"unexpected indexed decode: %+v", indexed)

	stackOff := instrs[3].Register.Mem
	assert(t, stackOff.Mode == isa.AddrStackOff && stackOff.Offset == 8, "unexpected stack-offset decode: %+v", stackOff)

	zpg := instrs[4].Register.Mem
	assert(t, zpg.Mode == isa.AddrZeroPage && zpg.ZeroPageAdr == 0x20, "unexpected zero-page decode: %+v", zpg)

	store := instrs[5].Register
	assert(t, store.Code == isa.RegSbr && store.Mem.Address == isa.V7 && store.Mem.Destination == isa.V0,
		"unexpected SBR decode: %+v", store)

	tfr := instrs[6].Register.Reg
	assert(t, tfr.Source == isa.V0 && tfr.Destination == isa.V1, "unexpected TFR decode: %+v", tfr)

	ldr := instrs[7].Register.Imm
	assert(t, !ldr.ZeroPageTranslate && ldr.Zero && ldr.Shift == 0 && ldr.Immediate == 100 && ldr.Destination == isa.V2,
		"unexpected LDR decode: %+v", ldr)

	ldrShift := instrs[8].Register.Imm
	assert(t, ldrShift.Shift == 1 && ldrShift.Immediate == 5, "unexpected shifted LDR decode: %+v", ldrShift)

	ldrZpg := instrs[9].Register.Imm
	assert(t, ldrZpg.ZeroPageTranslate && ldrZpg.Address == 0x30, "unexpected zero-page LDR decode: %+v", ldrZpg)

	assert(t, instrs[10].Register.Code == isa.RegPush && instrs[10].Register.Stk == isa.V0, "unexpected PUSH decode")
	assert(t, instrs[11].Register.Code == isa.RegPop && instrs[11].Register.Stk == isa.V1, "unexpected POP decode")
}

func TestAssembleRejectsUnknownMnemonic(t *testing.T) {
	_, err := Assemble("BOGUS V0, V1")
	assert(t, err != nil, "expected an error for an unknown mnemonic")
}

func TestAssembleRejectsDuplicateLabel(t *testing.T) {
	source := `
	here:
		NOP
	here:
		HALT
	`
	_, err := Assemble(source)
	assert(t, err != nil, "expected an error for a duplicate label")
}

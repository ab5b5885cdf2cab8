// Package asm is a minimal two-pass line assembler: one label/operand
// syntax line in, one encoded instruction word out. Syntax deliberately
// mirrors isa's own String() rendering of each instruction category so
// that `seisim disasm` output re-assembles unchanged. Grounded on
// vm/parse.go and vm/compile.go's label/comment-stripping structure,
// re-targeted at fixed-width word instructions instead of variable-length
// stack bytecode.
package asm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"seisim/isa"
)

var commentPattern = regexp.MustCompile(`;.*$`)

// Assemble turns assembly source into a flat big-endian binary image: one
// 4-byte instruction word per non-blank, non-label line.
func Assemble(source string) ([]byte, error) {
	lines, labels, err := firstPass(source)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(lines)*4)
	for _, ln := range lines {
		instr, err := parseLine(ln.text, ln.addr, labels)
		if err != nil {
			return nil, fmt.Errorf("asm: line %d: %w", ln.lineNo, err)
		}
		word := isa.Encode(instr)
		out = append(out,
			byte(word>>24), byte(word>>16), byte(word>>8), byte(word))
	}
	return out, nil
}

type sourceLine struct {
	text   string
	addr   isa.Word
	lineNo int
}

// firstPass strips comments and blank lines, records label addresses, and
// returns the remaining instruction lines with their resolved byte
// addresses (each instruction is exactly one word).
func firstPass(source string) ([]sourceLine, map[string]isa.Word, error) {
	labels := make(map[string]isa.Word)
	var lines []sourceLine

	var addr isa.Word
	for i, raw := range strings.Split(source, "\n") {
		line := strings.TrimSpace(commentPattern.ReplaceAllString(raw, ""))
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, ":") {
			label := strings.TrimSuffix(line, ":")
			if _, exists := labels[label]; exists {
				return nil, nil, fmt.Errorf("asm: line %d: duplicate label %q", i+1, label)
			}
			labels[label] = addr
			continue
		}
		lines = append(lines, sourceLine{text: line, addr: addr, lineNo: i + 1})
		addr += 4
	}
	return lines, labels, nil
}

func parseLine(line string, addr isa.Word, labels map[string]isa.Word) (isa.Instruction, error) {
	fields := strings.SplitN(line, " ", 2)
	mnemonic := strings.ToUpper(fields[0])
	rest := ""
	if len(fields) > 1 {
		rest = strings.TrimSpace(fields[1])
	}

	if op, ok := parseControl(mnemonic, rest, addr, labels); ok {
		return isa.Instruction{Cat: isa.CategoryControl, Control: op}, nil
	}
	if op, ok, err := parseInteger(mnemonic, rest); ok || err != nil {
		if err != nil {
			return isa.Instruction{}, err
		}
		return isa.Instruction{Cat: isa.CategoryInteger, Integer: op}, nil
	}
	if op, ok, err := parseRegister(mnemonic, rest); ok || err != nil {
		if err != nil {
			return isa.Instruction{}, err
		}
		return isa.Instruction{Cat: isa.CategoryRegister, Register: op}, nil
	}
	return isa.Instruction{}, fmt.Errorf("unknown mnemonic %q", mnemonic)
}

func parseControl(mnemonic, rest string, addr isa.Word, labels map[string]isa.Word) (isa.ControlOp, bool) {
	simple := map[string]isa.ControlCode{
		"NOP": isa.CtlNop, "HALT": isa.CtlHalt, "RET": isa.CtlRet,
	}
	if code, ok := simple[mnemonic]; ok {
		return isa.ControlOp{Code: code}, true
	}

	jumps := map[string]isa.ControlCode{
		"JMP": isa.CtlJmp, "JSR": isa.CtlJsr,
		"JEQ": isa.CtlJeq, "JNE": isa.CtlJne, "JGT": isa.CtlJgt,
		"JLT": isa.CtlJlt, "JGE": isa.CtlJge, "JLE": isa.CtlJle,
	}
	code, ok := jumps[mnemonic]
	if !ok {
		return isa.ControlOp{}, false
	}

	jump := parseJump(rest, addr, labels)
	return isa.ControlOp{Code: code, Jump: jump}, true
}

// parseJump accepts either a register operand ("V3") for an absolute jump,
// or a label/decimal word offset for a PC-relative one.
func parseJump(operand string, addr isa.Word, labels map[string]isa.Word) isa.Jump {
	if r, ok := isa.LookupRegister(strings.ToUpper(operand)); ok {
		return isa.Jump{Register: r}
	}
	if target, ok := labels[operand]; ok {
		offset := isa.SWord(target) - isa.SWord(addr)
		return isa.Jump{Relative: true, Offset: offset}
	}
	// bare signed word-count offset, e.g. "+2" or "-1"
	n, _ := strconv.ParseInt(operand, 0, 32)
	return isa.Jump{Relative: true, Offset: isa.SWord(n) << 2}
}

var integerMnemonics = map[string]isa.IntegerCode{
	"ADD": isa.IntAdd, "SUB": isa.IntSub, "MUL": isa.IntMul,
	"DVU": isa.IntDvu, "DVS": isa.IntDvs, "MOD": isa.IntMod,
	"AND": isa.IntAnd, "IOR": isa.IntIor, "XOR": isa.IntXor,
	"NOT": isa.IntNot, "SEB": isa.IntSeb, "SES": isa.IntSes,
	"LSL": isa.IntLsl, "LSR": isa.IntLsr, "ASR": isa.IntAsr,
	"ROL": isa.IntRol, "ROR": isa.IntRor, "CMP": isa.IntCmp, "TST": isa.IntTst,
}

func parseInteger(mnemonic, rest string) (isa.IntegerOp, bool, error) {
	code, ok := integerMnemonics[mnemonic]
	if !ok {
		return isa.IntegerOp{}, false, nil
	}
	args := splitArgs(rest)

	switch code {
	case isa.IntNot:
		src, dst, err := twoRegs(args)
		return isa.IntegerOp{Code: code, Source: src, Dest: dst}, true, err

	case isa.IntSeb, isa.IntSes:
		if len(args) != 1 {
			return isa.IntegerOp{}, true, fmt.Errorf("%s expects one register", mnemonic)
		}
		r, err := reg(args[0])
		return isa.IntegerOp{Code: code, Dest: r, SignedWidth: boolToWidth(code == isa.IntSes)}, true, err

	case isa.IntCmp:
		if len(args) != 2 {
			return isa.IntegerOp{}, true, fmt.Errorf("CMP expects two operands")
		}
		src, err := reg(args[0])
		if err != nil {
			return isa.IntegerOp{}, true, err
		}
		op := isa.IntegerOp{Code: code, Source: src, Signed: true}
		if err := setOperand(&op, args[1]); err != nil {
			return isa.IntegerOp{}, true, err
		}
		return op, true, nil

	case isa.IntTst:
		if len(args) != 2 {
			return isa.IntegerOp{}, true, fmt.Errorf("TST expects two operands")
		}
		src, err := reg(args[0])
		if err != nil {
			return isa.IntegerOp{}, true, err
		}
		op := isa.IntegerOp{Code: code, Source: src}
		if err := setOperand(&op, args[1]); err != nil {
			return isa.IntegerOp{}, true, err
		}
		return op, true, nil

	default: // binary ALU op: SRC, OPERAND, DEST
		if len(args) != 3 {
			return isa.IntegerOp{}, true, fmt.Errorf("%s expects three operands", mnemonic)
		}
		src, err := reg(args[0])
		if err != nil {
			return isa.IntegerOp{}, true, err
		}
		dst, err := reg(args[2])
		if err != nil {
			return isa.IntegerOp{}, true, err
		}
		op := isa.IntegerOp{Code: code, Source: src, Dest: dst}
		if err := setOperand(&op, args[1]); err != nil {
			return isa.IntegerOp{}, true, err
		}
		return op, true, nil
	}
}

func boolToWidth(short bool) isa.Byte {
	if short {
		return 1
	}
	return 0
}

// setOperand fills either the Operand register or the UseImm/Imm pair from
// a textual operand ("V3" or "#123").
func setOperand(op *isa.IntegerOp, operand string) error {
	if strings.HasPrefix(operand, "#") {
		n, err := strconv.ParseInt(strings.TrimPrefix(operand, "#"), 0, 32)
		if err != nil {
			return fmt.Errorf("bad immediate %q: %w", operand, err)
		}
		op.UseImm = true
		op.Imm = isa.Short(n)
		return nil
	}
	r, err := reg(operand)
	if err != nil {
		return err
	}
	op.Operand = r
	return nil
}

var registerMnemonics = map[string]isa.RegisterCode{
	"LBR": isa.RegLbr, "LSR": isa.RegLsr, "LLR": isa.RegLlr,
	"SBR": isa.RegSbr, "SSR": isa.RegSsr, "SLR": isa.RegSlr,
	"TFR": isa.RegTfr, "LDR": isa.RegLdr, "PUSH": isa.RegPush, "POP": isa.RegPop,
}

func parseRegister(mnemonic, rest string) (isa.RegisterOp, bool, error) {
	code, ok := registerMnemonics[mnemonic]
	if !ok {
		return isa.RegisterOp{}, false, nil
	}

	switch code {
	case isa.RegPush, isa.RegPop:
		r, err := reg(strings.TrimSpace(rest))
		return isa.RegisterOp{Code: code, Stk: r}, true, err

	case isa.RegTfr:
		src, dst, err := arrowPair(rest)
		if err != nil {
			return isa.RegisterOp{}, true, err
		}
		sr, err := reg(src)
		if err != nil {
			return isa.RegisterOp{}, true, err
		}
		dr, err := reg(dst)
		if err != nil {
			return isa.RegisterOp{}, true, err
		}
		return isa.RegisterOp{Code: code, Reg: isa.RegOp{Source: sr, Destination: dr}}, true, nil

	case isa.RegLdr:
		imm, err := parseImmOp(rest)
		return isa.RegisterOp{Code: code, Imm: imm}, true, err

	default: // Lbr/Sbr/Lsr/Ssr/Llr/Slr
		m, err := parseMemOp(rest)
		return isa.RegisterOp{Code: code, Mem: m}, true, err
	}
}

// arrowPair splits "lhs => rhs" (or the volatile "=>>" form), returning the
// trimmed left and right operand strings.
func arrowPair(s string) (string, string, error) {
	sep := "=>"
	if strings.Contains(s, "=>>") {
		sep = "=>>"
	}
	parts := strings.SplitN(s, sep, 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("expected %q in operand %q", "=>", s)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

// parseImmOp parses an LDR operand: "#imm => Vd", "#imm => Vd.N" (half-word
// select), or "&addr => Vd" (zero-page translate).
func parseImmOp(rest string) (isa.ImmOp, error) {
	lhs, rhs, err := arrowPair(rest)
	if err != nil {
		return isa.ImmOp{}, err
	}

	destName := rhs
	shift := isa.Byte(0)
	if dot := strings.Index(rhs, "."); dot >= 0 {
		destName = rhs[:dot]
		n, err := strconv.ParseInt(rhs[dot+1:], 10, 8)
		if err != nil {
			return isa.ImmOp{}, fmt.Errorf("bad half-word selector %q: %w", rhs, err)
		}
		shift = isa.Byte(n)
	}
	dst, err := reg(destName)
	if err != nil {
		return isa.ImmOp{}, err
	}

	if strings.HasPrefix(lhs, "&") {
		addr, err := strconv.ParseInt(strings.TrimPrefix(lhs, "&"), 0, 32)
		if err != nil {
			return isa.ImmOp{}, fmt.Errorf("bad zero-page address %q: %w", lhs, err)
		}
		return isa.ImmOp{ZeroPageTranslate: true, Address: isa.Short(addr), Destination: dst}, nil
	}

	if !strings.HasPrefix(lhs, "#") {
		return isa.ImmOp{}, fmt.Errorf("expected #immediate or &address, got %q", lhs)
	}
	imm, err := strconv.ParseInt(strings.TrimPrefix(lhs, "#"), 0, 32)
	if err != nil {
		return isa.ImmOp{}, fmt.Errorf("bad immediate %q: %w", lhs, err)
	}
	return isa.ImmOp{Zero: dot(rhs) < 0, Shift: shift, Immediate: isa.Short(imm), Destination: dst}, nil
}

func dot(s string) int { return strings.Index(s, ".") }

// parseMemOp parses one of the five addressing-mode operands shared by
// loads and stores:
//
//	Vbase => Vdest            indirect
//	Vbase + #off => Vdest     offset
//	Vbase[Vindex] => Vdest    indexed
//	%off => Vdest             stack offset
//	@addr => Vdest            zero page
//
// Any "=>" may instead be "=>>" to mark the access volatile.
func parseMemOp(rest string) (isa.MemOp, error) {
	lhs, rhs, err := arrowPair(rest)
	if err != nil {
		return isa.MemOp{}, err
	}
	volatile := strings.Contains(rest, "=>>")
	dst, err := reg(rhs)
	if err != nil {
		return isa.MemOp{}, err
	}

	switch {
	case strings.HasPrefix(lhs, "@"):
		addr, err := strconv.ParseInt(strings.TrimPrefix(lhs, "@"), 0, 32)
		if err != nil {
			return isa.MemOp{}, fmt.Errorf("bad zero-page address %q: %w", lhs, err)
		}
		return isa.MemOp{Mode: isa.AddrZeroPage, ZeroPageAdr: isa.Short(addr), Destination: dst}, nil

	case strings.HasPrefix(lhs, "%"):
		off, err := strconv.ParseInt(strings.TrimPrefix(lhs, "%"), 0, 16)
		if err != nil {
			return isa.MemOp{}, fmt.Errorf("bad stack offset %q: %w", lhs, err)
		}
		return isa.MemOp{Mode: isa.AddrStackOff, Offset: isa.Short(off), Destination: dst}, nil

	case strings.Contains(lhs, "["):
		open := strings.Index(lhs, "[")
		close := strings.Index(lhs, "]")
		if close < open {
			return isa.MemOp{}, fmt.Errorf("malformed indexed operand %q", lhs)
		}
		base, err := reg(strings.TrimSpace(lhs[:open]))
		if err != nil {
			return isa.MemOp{}, err
		}
		idx, err := reg(strings.TrimSpace(lhs[open+1 : close]))
		if err != nil {
			return isa.MemOp{}, err
		}
		return isa.MemOp{Mode: isa.AddrIndexed, Volatile: volatile, Address: base, Index: idx, Destination: dst}, nil

	case strings.Contains(lhs, "+"):
		plus := strings.Index(lhs, "+")
		base, err := reg(strings.TrimSpace(lhs[:plus]))
		if err != nil {
			return isa.MemOp{}, err
		}
		offStr := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lhs[plus+1:]), "#"))
		off, err := strconv.ParseInt(offStr, 0, 16)
		if err != nil {
			return isa.MemOp{}, fmt.Errorf("bad offset %q: %w", lhs, err)
		}
		return isa.MemOp{Mode: isa.AddrOffset, Volatile: volatile, Address: base, Offset: isa.Short(off), Destination: dst}, nil

	default:
		base, err := reg(strings.TrimSpace(lhs))
		if err != nil {
			return isa.MemOp{}, err
		}
		return isa.MemOp{Mode: isa.AddrIndirect, Volatile: volatile, Address: base, Destination: dst}, nil
	}
}

func reg(name string) (isa.Register, error) {
	if r, ok := isa.LookupRegister(strings.ToUpper(name)); ok {
		return r, nil
	}
	return 0, fmt.Errorf("unknown register %q", name)
}

func splitArgs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

func twoRegs(args []string) (isa.Register, isa.Register, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("expected two registers")
	}
	a, err := reg(args[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := reg(args[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

package isa

import "fmt"

// DecodeError is returned by Decode when a word does not correspond to any
// valid instruction. Decode errors are recoverable: the pipeline logs them
// and treats the word as a Nop rather than aborting (see package pipeline).
type DecodeError struct {
	Kind  DecodeErrorKind
	Word  Word
	Extra string
}

// DecodeErrorKind enumerates the distinct ways a word can fail to decode,
// grounded on original_source/libseis/src/instruction_set/error.rs.
type DecodeErrorKind int

const (
	ErrInvalidOpType DecodeErrorKind = iota
	ErrInvalidControlOp
	ErrInvalidIntegerOp
	ErrInvalidFloatingPointOp
	ErrInvalidRegisterOp
	ErrInvalidAddressingMode
	ErrInvalidRegister
)

func (k DecodeErrorKind) String() string {
	switch k {
	case ErrInvalidOpType:
		return "invalid instruction category"
	case ErrInvalidControlOp:
		return "invalid control opcode"
	case ErrInvalidIntegerOp:
		return "invalid integer opcode"
	case ErrInvalidFloatingPointOp:
		return "invalid floating-point opcode"
	case ErrInvalidRegisterOp:
		return "invalid register opcode"
	case ErrInvalidAddressingMode:
		return "invalid addressing mode"
	case ErrInvalidRegister:
		return "invalid register id"
	default:
		return "unknown decode error"
	}
}

func (e *DecodeError) Error() string {
	if e.Extra != "" {
		return fmt.Sprintf("%s: %#08x (%s)", e.Kind, e.Word, e.Extra)
	}
	return fmt.Sprintf("%s: %#08x", e.Kind, e.Word)
}

func decodeErr(kind DecodeErrorKind, word Word) error {
	return &DecodeError{Kind: kind, Word: word}
}

// Package pipeline implements the five-stage in-order pipeline (Fetch,
// Decode, Execute, Memory, Writeback) and the driver that clocks them in
// reverse order and collects status in forward order. Grounded on
// original_source/libpipe/src/stages/mod.rs and
// original_source/libpipe/src/piped.rs.
package pipeline

import "fmt"

// Clock is the backward-flowing per-tick signal: how many clocks just
// elapsed, and whether the receiving stage should block or squash.
type Clock struct {
	kind   clockKind
	clocks int
}

type clockKind int

const (
	clockReady clockKind = iota
	clockBlock
	clockSquash
	clockHalt
)

func Ready(n int) Clock  { return Clock{kind: clockReady, clocks: n} }
func Block(n int) Clock  { return Clock{kind: clockBlock, clocks: n} }
func Squash(n int) Clock { return Clock{kind: clockSquash, clocks: n} }
func Halt() Clock        { return Clock{kind: clockHalt} }

func (c Clock) Clocks() int       { return c.clocks }
func (c Clock) IsBlock() bool     { return c.kind == clockBlock }
func (c Clock) IsSquash() bool    { return c.kind == clockSquash }
func (c Clock) IsFlow() bool      { return c.kind == clockReady }
func (c Clock) IsHalt() bool      { return c.kind == clockHalt }
func (c Clock) ToBlock() Clock    { return Clock{kind: clockBlock, clocks: c.clocks} }
func (c Clock) ToSquash() Clock   { return Clock{kind: clockSquash, clocks: c.clocks} }
func (c Clock) ToFlow() Clock     { return Clock{kind: clockReady, clocks: c.clocks} }

func (c Clock) String() string {
	switch c.kind {
	case clockReady:
		return fmt.Sprintf("Ready(%d)", c.clocks)
	case clockBlock:
		return fmt.Sprintf("Block(%d)", c.clocks)
	case clockSquash:
		return fmt.Sprintf("Squash(%d)", c.clocks)
	case clockHalt:
		return "Halt"
	default:
		return "?"
	}
}

// Status is the forward-flowing per-tick signal a stage reports about the
// job it just processed (or didn't).
type Status struct {
	kind statusKind
	flow any
}

type statusKind int

const (
	statusStall statusKind = iota
	statusFlow
	statusReady
	statusSquashed
	statusDry
)

func Stall(n int) Status     { return Status{kind: statusStall, flow: n} }
func Flow(v any) Status      { return Status{kind: statusFlow, flow: v} }
func StageReady() Status     { return Status{kind: statusReady} }
func Squashed() Status       { return Status{kind: statusSquashed} }
func Dry() Status            { return Status{kind: statusDry} }

func (s Status) IsStall() bool    { return s.kind == statusStall }
func (s Status) IsFlow() bool     { return s.kind == statusFlow }
func (s Status) IsReady() bool    { return s.kind == statusReady }
func (s Status) IsSquashed() bool { return s.kind == statusSquashed }
func (s Status) IsDry() bool      { return s.kind == statusDry }

// StallAmount returns the stall count and true, if s is a Stall.
func (s Status) StallAmount() (int, bool) {
	if s.kind != statusStall {
		return 0, false
	}
	return s.flow.(int), true
}

// Value returns the payload carried by a Flow status.
func (s Status) Value() any { return s.flow }

func (s Status) String() string {
	switch s.kind {
	case statusStall:
		return fmt.Sprintf("Stall(%d)", s.flow)
	case statusFlow:
		return fmt.Sprintf("Flow(%v)", s.flow)
	case statusReady:
		return "Ready"
	case statusSquashed:
		return "Squashed"
	case statusDry:
		return "Dry"
	default:
		return "?"
	}
}

package pipeline

import "seisim/isa"

// Registers is the flat architectural register file: all 25 registers
// addressed by isa.Register id. Grounded on
// original_source/libpipe/src/registers.rs, re-expressed as a plain array
// instead of a transmuted struct union.
type Registers [isa.RegisterCount]isa.Word

// Get reads a register; out-of-range ids read as zero, mirroring the
// original's bounds-checked fallback.
func (r *Registers) Get(id isa.Register) isa.Word {
	if int(id) >= len(r) {
		return 0
	}
	return r[id]
}

// Set writes a register; out-of-range ids are ignored.
func (r *Registers) Set(id isa.Register, value isa.Word) {
	if int(id) < len(r) {
		r[id] = value
	}
}

// Snapshot returns a copy, used by Execute so it reads committed values
// only — never the live file a concurrent Decode might be mutating.
func (r *Registers) Snapshot() Registers {
	return *r
}

// LockTable holds a per-register pending-write counter. A register is
// readable without hazard iff its counter is zero. Grounded on
// original_source/libpipe/src/reg_locks.rs, dropping the union-based name
// aliasing in favor of a flat array indexed by isa.Register.
type LockTable [isa.RegisterCount]byte

// MaxLockCount is the invariant ceiling documented in SPEC_FULL.md §4.5:
// no register should ever have more than 4 outstanding write claims.
const MaxLockCount = 4

// Lock increments r's counter, claiming a pending write.
func (l *LockTable) Lock(r isa.Register) {
	l[r]++
}

// LockAll increments the counter of every register flagged in regs.
func (l *LockTable) LockAll(regs isa.RegisterFlags) {
	for _, r := range regs.Registers() {
		l.Lock(r)
	}
}

// Unlock decrements r's counter, releasing a completed or squashed write.
func (l *LockTable) Unlock(r isa.Register) {
	if l[r] > 0 {
		l[r]--
	}
}

// UnlockAll decrements the counter of every register flagged in regs.
func (l *LockTable) UnlockAll(regs isa.RegisterFlags) {
	for _, r := range regs.Registers() {
		l.Unlock(r)
	}
}

// IsLocked reports whether r has at least one pending write.
func (l *LockTable) IsLocked(r isa.Register) bool {
	return l[r] != 0
}

// AnyLocked reports whether any register flagged in regs is locked.
func (l *LockTable) AnyLocked(regs isa.RegisterFlags) bool {
	for _, r := range regs.Registers() {
		if l.IsLocked(r) {
			return true
		}
	}
	return false
}

// AllZero reports whether every register's lock count is zero — the
// end-of-run invariant from SPEC_FULL.md §11 property 5.
func (l *LockTable) AllZero() bool {
	for _, c := range l {
		if c != 0 {
			return false
		}
	}
	return true
}

// Package mem implements the simulator's paged DRAM. The cache abstraction
// and the single-level memory module built on it live in the subpackages
// mem/cache and mem/module.
package mem

import (
	"fmt"

	"seisim/isa"
)

// PageSize is the size in bytes of one DRAM page.
const PageSize = int(isa.PageSize)

// DRAM is paged, byte-addressable, big-endian memory. Pages are allocated
// lazily on first write; an unwritten page reads as all zero. Grounded on
// original_source/libmem/src/memory/mod.rs, re-expressed with byte-slice
// pages rather than word arrays with unsafe transmutes — the page-spanning
// read/write semantics are unchanged.
type DRAM struct {
	pages [][]byte
}

// NewDRAM builds a DRAM of the given page count. count must be positive.
func NewDRAM(count int) *DRAM {
	if count <= 0 {
		panic("mem: page count must be greater than 0")
	}
	return &DRAM{pages: make([][]byte, count)}
}

// MaxAddress returns the highest addressable byte offset.
func (d *DRAM) MaxAddress() isa.Word {
	return isa.Word(len(d.pages))*isa.Word(PageSize) - 1
}

func (d *DRAM) pageFor(addr isa.Word) int {
	return int(addr) / PageSize
}

func (d *DRAM) ensurePage(index int) []byte {
	if d.pages[index] == nil {
		d.pages[index] = make([]byte, PageSize)
	}
	return d.pages[index]
}

// ReadByte reads a single byte. Unallocated pages read as zero; an address
// beyond the last page panics.
func (d *DRAM) ReadByte(addr isa.Word) isa.Byte {
	page := d.pageFor(addr)
	if d.pages[page] == nil {
		return 0
	}
	return isa.Byte(d.pages[page][int(addr)%PageSize])
}

// ReadShort reads a big-endian 16-bit value, transparently spanning a page
// boundary if addr falls on the last byte of a page.
func (d *DRAM) ReadShort(addr isa.Word) isa.Short {
	hi := d.ReadByte(addr)
	lo := d.ReadByte(addr + 1)
	return isa.Short(hi)<<8 | isa.Short(lo)
}

// ReadWord reads a big-endian 32-bit value, transparently spanning page
// boundaries.
func (d *DRAM) ReadWord(addr isa.Word) isa.Word {
	b0 := d.ReadByte(addr)
	b1 := d.ReadByte(addr + 1)
	b2 := d.ReadByte(addr + 2)
	b3 := d.ReadByte(addr + 3)
	return isa.Word(b0)<<24 | isa.Word(b1)<<16 | isa.Word(b2)<<8 | isa.Word(b3)
}

// WriteByte writes a single byte, allocating the backing page if needed.
func (d *DRAM) WriteByte(addr isa.Word, value isa.Byte) {
	page := d.pageFor(addr)
	d.ensurePage(page)[int(addr)%PageSize] = byte(value)
}

// WriteShort writes a big-endian 16-bit value, spanning pages if needed.
func (d *DRAM) WriteShort(addr isa.Word, value isa.Short) {
	d.WriteByte(addr, isa.Byte(value>>8))
	d.WriteByte(addr+1, isa.Byte(value))
}

// WriteWord writes a big-endian 32-bit value, spanning pages if needed.
func (d *DRAM) WriteWord(addr isa.Word, value isa.Word) {
	d.WriteByte(addr, isa.Byte(value>>24))
	d.WriteByte(addr+1, isa.Byte(value>>16))
	d.WriteByte(addr+2, isa.Byte(value>>8))
	d.WriteByte(addr+3, isa.Byte(value))
}

// ReadLine reads a contiguous run of bytes, for cache line fills. It may
// span page boundaries.
func (d *DRAM) ReadLine(addr isa.Word, length int) []byte {
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = byte(d.ReadByte(addr + isa.Word(i)))
	}
	return out
}

// WriteLine writes a contiguous run of bytes back to DRAM, for cache line
// eviction writeback.
func (d *DRAM) WriteLine(addr isa.Word, data []byte) {
	for i, b := range data {
		d.WriteByte(addr+isa.Word(i), isa.Byte(b))
	}
}

// Erase resets every page to unallocated (reads as zero).
func (d *DRAM) Erase() {
	for i := range d.pages {
		d.pages[i] = nil
	}
}

func (d *DRAM) String() string {
	allocated := 0
	for _, p := range d.pages {
		if p != nil {
			allocated++
		}
	}
	return fmt.Sprintf("DRAM{%d/%d pages allocated}", allocated, len(d.pages))
}

// Package program holds the compiled artifact handed to an executor: an
// append-only byte stream plus an address table mapping each linked entry to
// its byte offset in that stream.
//
// An address embedded in an entry is a link index, not a byte offset.
// Executors must map it through Offset (or the Addresses table) before
// seeking into Code.
package program

import (
	"fmt"
	"math"
)

// Address identifies one linked entry. Addresses are assigned in link order,
// starting at zero, and index the address table.
type Address uint32

// NoAddress is embedded in place of an absent child.
const NoAddress Address = math.MaxUint32

// IsValid reports whether a is a real address rather than the sentinel.
func (a Address) IsValid() bool {
	return a != NoAddress
}

func (a Address) String() string {
	if a == NoAddress {
		return "@-"
	}
	return fmt.Sprintf("@%d", uint32(a))
}

// Program is the output of a compile. It is read-only once returned by an
// Encoder; the slices it exposes must not be modified.
type Program struct {
	code    []byte
	offsets []uint32
}

// Code returns the raw byte stream.
func (p *Program) Code() []byte {
	return p.code
}

// Size returns the byte stream length.
func (p *Program) Size() int {
	return len(p.code)
}

// Len returns the number of entries in the address table.
func (p *Program) Len() int {
	return len(p.offsets)
}

// Offset returns the byte offset of the entry at addr.
func (p *Program) Offset(addr Address) (int, bool) {
	if !addr.IsValid() || int(addr) >= len(p.offsets) {
		return 0, false
	}
	return int(p.offsets[addr]), true
}

// Opcode returns the opcode tag of the entry at addr.
func (p *Program) Opcode(addr Address) (byte, bool) {
	off, ok := p.Offset(addr)
	if !ok {
		return 0, false
	}
	return p.code[off], true
}

// Entry returns the bytes of the entry at addr, opcode tag included.
func (p *Program) Entry(addr Address) []byte {
	off, ok := p.Offset(addr)
	if !ok {
		return nil
	}
	end := len(p.code)
	if next := int(addr) + 1; next < len(p.offsets) {
		end = int(p.offsets[next])
	}
	return p.code[off:end]
}

// Addresses returns a copy of the address table.
func (p *Program) Addresses() []uint32 {
	out := make([]uint32, len(p.offsets))
	copy(out, p.offsets)
	return out
}

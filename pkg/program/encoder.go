package program

import (
	"encoding/binary"
	"math"
)

// Encoder appends entries to a byte stream. All multi-byte values are little
// endian. It is used by the linker; consumers only ever see a Program.
//
// Every value written belongs to the entry opened by the latest Begin. The
// Encoder does not know argument sizes; op.Decode and the linker's Verify
// option check them.
type Encoder struct {
	code    []byte
	offsets []uint32
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Begin starts a new entry with the given opcode tag and returns the address
// it was assigned.
func (e *Encoder) Begin(opcode byte) Address {
	addr := Address(len(e.offsets))
	e.offsets = append(e.offsets, uint32(len(e.code)))
	e.code = append(e.code, opcode)
	return addr
}

// Next returns the address the next call to Begin will assign.
func (e *Encoder) Next() Address {
	return Address(len(e.offsets))
}

// Size returns the number of bytes emitted so far.
func (e *Encoder) Size() int {
	return len(e.code)
}

// Address appends an embedded address.
func (e *Encoder) Address(a Address) {
	e.U32(uint32(a))
}

// U8 appends a byte.
func (e *Encoder) U8(v uint8) {
	e.mustBeOpen()
	e.code = append(e.code, v)
}

// U32 appends an unsigned 32 bit value.
func (e *Encoder) U32(v uint32) {
	e.mustBeOpen()
	e.code = binary.LittleEndian.AppendUint32(e.code, v)
}

// I32 appends a signed 32 bit value.
func (e *Encoder) I32(v int32) {
	e.U32(uint32(v))
}

// F64 appends a float64 by its IEEE 754 bits.
func (e *Encoder) F64(v float64) {
	e.mustBeOpen()
	e.code = binary.LittleEndian.AppendUint64(e.code, math.Float64bits(v))
}

// Program returns a snapshot of everything encoded so far. Further encoding
// does not affect the returned Program.
func (e *Encoder) Program() *Program {
	p := &Program{
		code:    make([]byte, len(e.code)),
		offsets: make([]uint32, len(e.offsets)),
	}
	copy(p.code, e.code)
	copy(p.offsets, e.offsets)
	return p
}

// mustBeOpen panics unless an entry has been begun.
func (e *Encoder) mustBeOpen() {
	if len(e.offsets) == 0 {
		panic("program: argument written before the first Begin")
	}
}

package program

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// ErrShortEntry is returned when an entry ends before its arguments do.
var ErrShortEntry = errors.New("program: entry truncated")

// Decoder reads the arguments of one entry. The first error is sticky; check
// Err once after reading every field.
type Decoder struct {
	addr Address
	buf  []byte
	pos  int
	err  error
}

// NewDecoder returns a Decoder positioned just after the opcode tag of the
// entry at addr.
func NewDecoder(p *Program, addr Address) (*Decoder, error) {
	entry := p.Entry(addr)
	if len(entry) == 0 {
		return nil, errors.Errorf("program: no entry at %s", addr)
	}
	return &Decoder{addr: addr, buf: entry, pos: 1}, nil
}

// Opcode returns the opcode tag of the entry.
func (d *Decoder) Opcode() byte {
	return d.buf[0]
}

// Remaining returns the number of unread argument bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// Err returns the first decoding error, if any.
func (d *Decoder) Err() error {
	return d.err
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.pos+n > len(d.buf) {
		d.err = errors.Wrapf(ErrShortEntry, "entry %s needs %d more bytes", d.addr, d.pos+n-len(d.buf))
		return nil
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b
}

// Address reads an embedded address.
func (d *Decoder) Address() Address {
	return Address(d.U32())
}

// U8 reads a byte.
func (d *Decoder) U8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// U32 reads an unsigned 32 bit value.
func (d *Decoder) U32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// I32 reads a signed 32 bit value.
func (d *Decoder) I32() int32 {
	return int32(d.U32())
}

// F64 reads a float64.
func (d *Decoder) F64() float64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

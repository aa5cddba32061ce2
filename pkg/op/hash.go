package op

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// hasher feeds fixed-width values into an xxhash digest, or records their
// bytes when d is nil.
type hasher struct {
	d   *xxhash.Digest
	raw []byte
	buf [8]byte
}

func newHasher() *hasher {
	return &hasher{d: xxhash.New()}
}

func (h *hasher) write(p []byte) {
	if h.d == nil {
		h.raw = append(h.raw, p...)
		return
	}
	_, _ = h.d.Write(p)
}

func (h *hasher) u8(v uint8) {
	h.buf[0] = v
	h.write(h.buf[:1])
}

func (h *hasher) u32(v uint32) {
	binary.LittleEndian.PutUint32(h.buf[:4], v)
	h.write(h.buf[:4])
}

// f64 writes the bits of v with -0 folded into +0. NaNs keep their bits, so
// two NaN params are alike exactly when they are bitwise identical.
func (h *hasher) f64(v float64) {
	if v == 0 {
		v = 0
	}
	binary.LittleEndian.PutUint64(h.buf[:], math.Float64bits(v))
	h.write(h.buf[:])
}

func (h *hasher) sum() uint64 {
	return h.d.Sum64()
}

// sameParams reports whether a and b, of the same kind, write the same
// parameter bytes.
func sameParams(a, b Op) bool {
	ha, hb := &hasher{}, &hasher{}
	a.hashParams(ha)
	b.hashParams(hb)
	return bytes.Equal(ha.raw, hb.raw)
}

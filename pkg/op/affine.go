package op

import (
	"fmt"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Affine is a 3x4 row-major affine transform: the upper three rows of a 4x4
// homogeneous matrix whose last row is (0, 0, 0, 1).
type Affine [12]float64

// Identity returns the identity transform.
func Identity() Affine {
	return AffineFromM44(sdf.Identity3d())
}

// AffineFromM44 captures an sdfx matrix. Only the affine part is kept.
func AffineFromM44(m sdf.M44) Affine {
	t := m.MulPosition(v3.Vec{})
	x := m.MulPosition(v3.Vec{X: 1}).Sub(t)
	y := m.MulPosition(v3.Vec{Y: 1}).Sub(t)
	z := m.MulPosition(v3.Vec{Z: 1}).Sub(t)
	return Affine{
		x.X, y.X, z.X, t.X,
		x.Y, y.Y, z.Y, t.Y,
		x.Z, y.Z, z.Z, t.Z,
	}
}

// Apply transforms the point p.
func (a Affine) Apply(p v3.Vec) v3.Vec {
	return v3.Vec{
		X: a[0]*p.X + a[1]*p.Y + a[2]*p.Z + a[3],
		Y: a[4]*p.X + a[5]*p.Y + a[6]*p.Z + a[7],
		Z: a[8]*p.X + a[9]*p.Y + a[10]*p.Z + a[11],
	}
}

func (a Affine) String() string {
	return fmt.Sprintf("[%g %g %g %g; %g %g %g %g; %g %g %g %g]",
		a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7], a[8], a[9], a[10], a[11])
}

// Package geometry turns series orientation metadata into an axis-aligned
// reslice transform and applies it to voxel buffers.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mrsinham/dicomexporter/internal/volume"
)

// ErrDegenerateOrientation is returned when both orientation rows snap to the
// same axis, leaving no invertible frame.
var ErrDegenerateOrientation = errors.New("degenerate orientation")

// ResliceTransform maps output grid coordinates back into the source buffer's
// coordinate system. The zero value is the identity sentinel.
type ResliceTransform struct {
	axes *mat.Dense
}

// Identity returns the identity sentinel.
func Identity() ResliceTransform {
	return ResliceTransform{}
}

// IsIdentity reports whether t is the identity sentinel. Resampling with it is a no-op.
func (t ResliceTransform) IsIdentity() bool {
	return t.axes == nil
}

// At returns element (i, j) of the 4x4 homogeneous matrix.
func (t ResliceTransform) At(i, j int) float64 {
	if t.axes == nil {
		if i == j {
			return 1
		}
		return 0
	}
	return t.axes.At(i, j)
}

// Array copies the matrix out as a row-major [4][4]float64.
func (t ResliceTransform) Array() [4][4]float64 {
	var a [4][4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			a[i][j] = t.At(i, j)
		}
	}
	return a
}

func (t ResliceTransform) String() string {
	if t.IsIdentity() {
		return "identity"
	}
	return fmt.Sprintf("%v", mat.Formatted(t.axes, mat.Squeeze()))
}

// SnapAxis returns the signed unit vector along the coordinate axis closest to
// the direction cosines in row. Ties keep the lowest axis index; a zero or
// negative dominant component yields -1.
func SnapAxis(row []float64) r3.Vec {
	best := 0
	for i := 1; i < 3; i++ {
		if math.Abs(row[i]) > math.Abs(row[best]) {
			best = i
		}
	}
	sign := -1.0
	if row[best] > 0 {
		sign = 1
	}

	var v [3]float64
	v[best] = sign
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

// Resolve builds the reslice transform for a series. When orientation or
// position is absent the identity sentinel is returned.
func Resolve(g volume.SeriesGeometry) (ResliceTransform, error) {
	if !g.HasOrientation() || !g.HasPosition() {
		return Identity(), nil
	}

	dirX := SnapAxis(g.Orientation[0:3])
	dirY := SnapAxis(g.Orientation[3:6])
	dirZ := r3.Cross(dirX, dirY)
	if r3.Norm(dirZ) == 0 {
		return Identity(), fmt.Errorf("%w: rows %v and %v snap to the same axis",
			ErrDegenerateOrientation, g.Orientation[0:3], g.Orientation[3:6])
	}

	pos := g.Position
	frame := mat.NewDense(4, 4, []float64{
		dirX.X, dirY.X, dirZ.X, pos[0],
		dirX.Y, dirY.Y, dirZ.Y, pos[1],
		dirX.Z, dirY.Z, dirZ.Z, pos[2],
		0, 0, 0, 1,
	})

	var axes mat.Dense
	if err := axes.Inverse(frame); err != nil {
		return Identity(), fmt.Errorf("invert orientation frame: %w", err)
	}
	return ResliceTransform{axes: &axes}, nil
}

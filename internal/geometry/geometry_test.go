package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mrsinham/dicomexporter/internal/volume"
)

func TestSnapAxis(t *testing.T) {
	tests := []struct {
		name string
		row  []float64
		want r3.Vec
	}{
		{"x positive", []float64{0.99, 0.1, 0.05}, r3.Vec{X: 1}},
		{"y negative", []float64{0.2, -0.9, 0.1}, r3.Vec{Y: -1}},
		{"z positive", []float64{0.1, 0.2, 0.97}, r3.Vec{Z: 1}},
		{"tie keeps first axis", []float64{0.7, 0.7, 0.0}, r3.Vec{X: 1}},
		{"tie with sign keeps first axis", []float64{-0.7, 0.7, 0.0}, r3.Vec{X: -1}},
		{"later tie", []float64{0.1, -0.7, 0.7}, r3.Vec{Y: -1}},
		{"all zero snaps negative x", []float64{0, 0, 0}, r3.Vec{X: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SnapAxis(tt.row); got != tt.want {
				t.Errorf("SnapAxis(%v) = %v, want %v", tt.row, got, tt.want)
			}
		})
	}
}

func TestResolve_AbsentMetadata(t *testing.T) {
	tests := []struct {
		name string
		g    volume.SeriesGeometry
	}{
		{"nothing", volume.SeriesGeometry{}},
		{"orientation only", volume.SeriesGeometry{Orientation: []float64{1, 0, 0, 0, 1, 0}}},
		{"position only", volume.SeriesGeometry{Position: []float64{1, 2, 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := Resolve(tt.g)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if !tr.IsIdentity() {
				t.Errorf("Resolve(%s) = %v, want identity sentinel", tt.name, tr)
			}
		})
	}
}

func TestResolve_Axial(t *testing.T) {
	tr, err := Resolve(volume.SeriesGeometry{
		Orientation: []float64{1, 0, 0, 0, 1, 0},
		Position:    []float64{-120, -80, 35.5},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := [4][4]float64{
		{1, 0, 0, 120},
		{0, 1, 0, 80},
		{0, 0, 1, -35.5},
		{0, 0, 0, 1},
	}
	if diff := cmp.Diff(want, tr.Array(), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("axial transform mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_SignedPermutations(t *testing.T) {
	orientations := [][]float64{
		{1, 0, 0, 0, 1, 0},
		{0, 1, 0, 0, 0, -1},
		{1, 0, 0, 0, 0, -1},
		{-1, 0, 0, 0, -1, 0},
		{0.98, 0.17, 0.02, -0.17, 0.98, 0.05},
		{0.1, 0.2, -0.97, 0.95, 0.1, 0.1},
		{0, -1, 0, 0, 0, 1},
	}

	for _, o := range orientations {
		tr, err := Resolve(volume.SeriesGeometry{Orientation: o, Position: []float64{3, -4, 5}})
		if err != nil {
			t.Fatalf("Resolve(%v): %v", o, err)
		}
		a := tr.Array()

		// The rotation block of the inverse is the transpose of the frame rotation.
		dirX := r3.Vec{X: a[0][0], Y: a[0][1], Z: a[0][2]}
		dirY := r3.Vec{X: a[1][0], Y: a[1][1], Z: a[1][2]}
		dirZ := r3.Vec{X: a[2][0], Y: a[2][1], Z: a[2][2]}

		if dirX != SnapAxis(o[0:3]) || dirY != SnapAxis(o[3:6]) {
			t.Errorf("orientation %v: snapped rows (%v, %v) do not match SnapAxis", o, dirX, dirY)
		}
		if dirZ != r3.Cross(dirX, dirY) {
			t.Errorf("orientation %v: dirZ = %v, want cross %v", o, dirZ, r3.Cross(dirX, dirY))
		}
		for j := 0; j < 3; j++ {
			nonZero := 0
			for i := 0; i < 3; i++ {
				switch a[i][j] {
				case 0:
				case 1, -1:
					nonZero++
				default:
					t.Errorf("orientation %v: element (%d,%d) = %v is not 0 or ±1", o, i, j, a[i][j])
				}
			}
			if nonZero != 1 {
				t.Errorf("orientation %v: column %d has %d non-zero entries", o, j, nonZero)
			}
		}
		if a[3] != [4]float64{0, 0, 0, 1} {
			t.Errorf("orientation %v: bottom row = %v", o, a[3])
		}
	}
}

func TestResolve_Degenerate(t *testing.T) {
	_, err := Resolve(volume.SeriesGeometry{
		Orientation: []float64{1, 0, 0, 0.9, 0.1, 0},
		Position:    []float64{0, 0, 0},
	})
	if !errors.Is(err, ErrDegenerateOrientation) {
		t.Errorf("Resolve with parallel rows error = %v, want ErrDegenerateOrientation", err)
	}
}

func rampBuffer(t *testing.T, dims [3]int) *volume.Buffer {
	t.Helper()
	buf, err := volume.NewBuffer(dims, 1, volume.Uint8)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	for i := range buf.Data {
		buf.Data[i] = byte(i)
	}
	return buf
}

func TestReslice_IdentityIsNoOp(t *testing.T) {
	buf := rampBuffer(t, [3]int{4, 3, 2})
	before := append([]byte(nil), buf.Data...)

	out, err := Reslice(buf, Identity())
	if err != nil {
		t.Fatalf("Reslice: %v", err)
	}
	if out != buf {
		t.Error("identity reslice should return the input buffer")
	}
	if diff := cmp.Diff(before, out.Data); diff != "" {
		t.Errorf("identity reslice changed data:\n%s", diff)
	}
}

func TestReslice_AxialKeepsDataMovesOrigin(t *testing.T) {
	buf := rampBuffer(t, [3]int{4, 3, 2})
	buf.Spacing = [3]float64{0.5, 0.5, 2}

	tr, err := Resolve(volume.SeriesGeometry{
		Orientation: []float64{1, 0, 0, 0, 1, 0},
		Position:    []float64{10, 20, 30},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	out, err := Reslice(buf, tr)
	if err != nil {
		t.Fatalf("Reslice: %v", err)
	}

	if out.Dims != buf.Dims {
		t.Errorf("Dims = %v, want %v", out.Dims, buf.Dims)
	}
	if out.Spacing != buf.Spacing {
		t.Errorf("Spacing = %v, want %v", out.Spacing, buf.Spacing)
	}
	if diff := cmp.Diff([3]float64{10, 20, 30}, out.Origin, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Origin mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(buf.Data, out.Data); diff != "" {
		t.Errorf("data mismatch:\n%s", diff)
	}
}

func TestReslice_Flip(t *testing.T) {
	dims := [3]int{3, 2, 2}
	buf := rampBuffer(t, dims)

	// dirX = -x, dirY = +y, so dirZ = -z.
	tr, err := Resolve(volume.SeriesGeometry{
		Orientation: []float64{-1, 0, 0, 0, 1, 0},
		Position:    []float64{0, 0, 0},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	out, err := Reslice(buf, tr)
	if err != nil {
		t.Fatalf("Reslice: %v", err)
	}

	if out.Dims != dims {
		t.Fatalf("Dims = %v, want %v", out.Dims, dims)
	}
	if diff := cmp.Diff([3]float64{-2, 0, -1}, out.Origin, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Origin mismatch (-want +got):\n%s", diff)
	}
	for z := 0; z < dims[2]; z++ {
		for y := 0; y < dims[1]; y++ {
			for x := 0; x < dims[0]; x++ {
				got := out.Data[out.Offset(x, y, z)]
				want := buf.Data[buf.Offset(dims[0]-1-x, y, dims[2]-1-z)]
				if got != want {
					t.Errorf("out(%d,%d,%d) = %d, want %d", x, y, z, got, want)
				}
			}
		}
	}
}

func TestReslice_Transpose(t *testing.T) {
	buf := rampBuffer(t, [3]int{3, 2, 1})
	buf.Spacing = [3]float64{0.5, 2, 3}
	buf.Fields.Set(volume.FieldArray{Name: "tag", Components: 1, Values: []float32{7}})

	// Rows swapped: dirX = +y, dirY = +x, dirZ = -z.
	tr, err := Resolve(volume.SeriesGeometry{
		Orientation: []float64{0, 1, 0, 1, 0, 0},
		Position:    []float64{0, 0, 0},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	out, err := Reslice(buf, tr)
	if err != nil {
		t.Fatalf("Reslice: %v", err)
	}

	if out.Dims != [3]int{2, 3, 1} {
		t.Fatalf("Dims = %v, want [2 3 1]", out.Dims)
	}
	if out.Spacing != [3]float64{2, 0.5, 3} {
		t.Errorf("Spacing = %v, want [2 0.5 3]", out.Spacing)
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 2; x++ {
			got := out.Data[out.Offset(x, y, 0)]
			want := buf.Data[buf.Offset(y, x, 0)]
			if got != want {
				t.Errorf("out(%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}
	if _, ok := out.Fields.Get("tag"); !ok {
		t.Error("field data should travel with the resliced buffer")
	}
}

func TestReslice_MultiComponent(t *testing.T) {
	buf, err := volume.NewBuffer([3]int{2, 1, 1}, 3, volume.Uint8)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	copy(buf.Data, []byte{1, 2, 3, 4, 5, 6})

	tr, _ := Resolve(volume.SeriesGeometry{
		Orientation: []float64{-1, 0, 0, 0, 1, 0},
		Position:    []float64{0, 0, 0},
	})
	out, err := Reslice(buf, tr)
	if err != nil {
		t.Fatalf("Reslice: %v", err)
	}
	if diff := cmp.Diff([]byte{4, 5, 6, 1, 2, 3}, out.Data); diff != "" {
		t.Errorf("RGB voxels should move as a unit (-want +got):\n%s", diff)
	}
}

func TestReslice_RejectsEmptyDimension(t *testing.T) {
	buf := &volume.Buffer{
		Dims:       [3]int{4, 0, 2},
		Spacing:    [3]float64{1, 1, 1},
		Components: 1,
		Kind:       volume.Uint8,
	}
	tr, _ := Resolve(volume.SeriesGeometry{
		Orientation: []float64{1, 0, 0, 0, 1, 0},
		Position:    []float64{0, 0, 0},
	})

	_, err := Reslice(buf, tr)
	if !errors.Is(err, volume.ErrEmptyDimension) {
		t.Errorf("Reslice error = %v, want ErrEmptyDimension", err)
	}
}

func TestResliceTransform_IdentityAt(t *testing.T) {
	tr := Identity()
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if got := tr.At(i, j); math.Abs(got-want) > 0 {
				t.Errorf("Identity().At(%d,%d) = %v, want %v", i, j, got, want)
			}
		}
	}
}

package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mrsinham/dicomexporter/internal/volume"
)

// Reslice resamples buf onto the axis-aligned grid described by t using
// nearest-neighbour sampling. The identity sentinel returns buf unchanged.
//
// The output grid follows vtkImageReslice defaults: output axis i takes the
// dimension and spacing of the input axis it is permuted from, and the grid is
// centred on the transformed centre of the input. Samples falling outside the
// input are zero.
func Reslice(buf *volume.Buffer, t ResliceTransform) (*volume.Buffer, error) {
	if t.IsIdentity() {
		return buf, nil
	}
	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("reslice: %w", err)
	}

	axes := t.Array()

	var outDims [3]int
	var outSpacing [3]float64
	for i := 0; i < 3; i++ {
		src := -1
		for j := 0; j < 3; j++ {
			if math.Abs(axes[j][i]) > 0.5 {
				src = j
				break
			}
		}
		if src < 0 {
			return nil, fmt.Errorf("reslice: %w: output axis %d has no source axis", ErrDegenerateOrientation, i)
		}
		outDims[i] = buf.Dims[src]
		outSpacing[i] = math.Abs(buf.Spacing[src])
	}

	var frame mat.Dense
	if err := frame.Inverse(t.axes); err != nil {
		return nil, fmt.Errorf("reslice: invert axes: %w", err)
	}
	inCenter := mat.NewVecDense(4, []float64{
		buf.Origin[0] + buf.Spacing[0]*float64(buf.Dims[0]-1)/2,
		buf.Origin[1] + buf.Spacing[1]*float64(buf.Dims[1]-1)/2,
		buf.Origin[2] + buf.Spacing[2]*float64(buf.Dims[2]-1)/2,
		1,
	})
	var center mat.VecDense
	center.MulVec(&frame, inCenter)

	var outOrigin [3]float64
	for i := 0; i < 3; i++ {
		outOrigin[i] = center.AtVec(i) - outSpacing[i]*float64(outDims[i]-1)/2
	}

	out := buf.CloneShape(outDims)
	out.Spacing = outSpacing
	out.Origin = outOrigin

	voxel := buf.VoxelBytes()
	dst := 0
	for z := 0; z < outDims[2]; z++ {
		pz := outOrigin[2] + float64(z)*outSpacing[2]
		for y := 0; y < outDims[1]; y++ {
			py := outOrigin[1] + float64(y)*outSpacing[1]
			for x := 0; x < outDims[0]; x++ {
				px := outOrigin[0] + float64(x)*outSpacing[0]

				var idx [3]int
				inside := true
				for k := 0; k < 3; k++ {
					q := axes[k][0]*px + axes[k][1]*py + axes[k][2]*pz + axes[k][3]
					n := int(math.Round((q - buf.Origin[k]) / buf.Spacing[k]))
					if n < 0 || n >= buf.Dims[k] {
						inside = false
						break
					}
					idx[k] = n
				}
				if inside {
					src := buf.Offset(idx[0], idx[1], idx[2])
					copy(out.Data[dst:dst+voxel], buf.Data[src:src+voxel])
				}
				dst += voxel
			}
		}
	}

	return out, nil
}

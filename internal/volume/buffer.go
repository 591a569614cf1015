// Package volume holds the in-memory voxel grid handed between conversion stages
// and the series metadata that travels with it.
package volume

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyDimension is returned for a buffer with a zero-length axis.
	ErrEmptyDimension = errors.New("volume has an empty dimension")
	// ErrDataSize is returned when Data does not match dims, components and kind.
	ErrDataSize = errors.New("voxel data size mismatch")
)

// Buffer is a dense 3-D grid of scalars stored x-fastest in little-endian order.
//
// Stages pass buffers by pointer and never copy one they do not modify.
type Buffer struct {
	Dims       [3]int
	Origin     [3]float64
	Spacing    [3]float64
	Components int
	Kind       ScalarKind
	Data       []byte

	// Fields is the sidecar field data (e.g. window_level) written next to the scalars.
	Fields FieldData
}

// NewBuffer allocates a zeroed buffer with unit spacing and zero origin.
func NewBuffer(dims [3]int, components int, kind ScalarKind) (*Buffer, error) {
	b := &Buffer{
		Dims:       dims,
		Spacing:    [3]float64{1, 1, 1},
		Components: components,
		Kind:       kind,
	}
	if err := b.checkShape(); err != nil {
		return nil, err
	}
	b.Data = make([]byte, b.ByteLen())
	return b, nil
}

// NumVoxels returns dims.x*dims.y*dims.z.
func (b *Buffer) NumVoxels() int {
	return b.Dims[0] * b.Dims[1] * b.Dims[2]
}

// NumScalars returns the number of components across all voxels.
func (b *Buffer) NumScalars() int {
	return b.NumVoxels() * b.Components
}

// ByteLen returns the expected length of Data.
func (b *Buffer) ByteLen() int {
	return b.NumScalars() * b.Kind.Size()
}

// VoxelBytes returns the size of one voxel (all components) in bytes.
func (b *Buffer) VoxelBytes() int {
	return b.Components * b.Kind.Size()
}

// Offset returns the byte offset of voxel (x, y, z).
func (b *Buffer) Offset(x, y, z int) int {
	return ((z*b.Dims[1]+y)*b.Dims[0] + x) * b.VoxelBytes()
}

func (b *Buffer) checkShape() error {
	for i, d := range b.Dims {
		if d <= 0 {
			return fmt.Errorf("%w: axis %d has length %d", ErrEmptyDimension, i, d)
		}
	}
	if b.Components < 1 {
		return fmt.Errorf("invalid component count %d", b.Components)
	}
	if b.Kind.Size() == 0 {
		return fmt.Errorf("%w: %v", ErrUnsupportedScalarKind, b.Kind)
	}
	return nil
}

// Validate checks the buffer invariants: positive dims and spacing, a known
// kind, and a data length matching the shape.
func (b *Buffer) Validate() error {
	if err := b.checkShape(); err != nil {
		return err
	}
	for i, s := range b.Spacing {
		if !(s > 0) {
			return fmt.Errorf("invalid spacing %v on axis %d", s, i)
		}
	}
	if len(b.Data) != b.ByteLen() {
		return fmt.Errorf("%w: have %d bytes, want %d", ErrDataSize, len(b.Data), b.ByteLen())
	}
	return nil
}

// ScalarAt decodes the i-th scalar (component index, not voxel index) as float64.
func (b *Buffer) ScalarAt(i int) float64 {
	size := b.Kind.Size()
	p := b.Data[i*size : (i+1)*size]
	switch b.Kind {
	case Uint8:
		return float64(p[0])
	case Int8:
		return float64(int8(p[0]))
	case Uint16:
		return float64(binary.LittleEndian.Uint16(p))
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(p)))
	case Uint32:
		return float64(binary.LittleEndian.Uint32(p))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(p)))
	case Uint64:
		return float64(binary.LittleEndian.Uint64(p))
	case Int64:
		return float64(int64(binary.LittleEndian.Uint64(p)))
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p)))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(p))
	}
	return math.NaN()
}

// Range returns the minimum and maximum scalar over all components.
// An empty buffer yields (0, 0).
func (b *Buffer) Range() (lo, hi float64) {
	n := b.NumScalars()
	if n == 0 || len(b.Data) < b.ByteLen() {
		return 0, 0
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := 0; i < n; i++ {
		v := b.ScalarAt(i)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// CloneShape returns an empty buffer with the same kind, components and field data.
func (b *Buffer) CloneShape(dims [3]int) *Buffer {
	out := &Buffer{
		Dims:       dims,
		Spacing:    b.Spacing,
		Origin:     b.Origin,
		Components: b.Components,
		Kind:       b.Kind,
		Fields:     b.Fields.Clone(),
	}
	out.Data = make([]byte, out.ByteLen())
	return out
}

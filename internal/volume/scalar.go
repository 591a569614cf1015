package volume

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedScalarKind is returned when a sample layout has no scalar kind.
var ErrUnsupportedScalarKind = errors.New("unsupported scalar kind")

// ScalarKind is the numeric type of a single voxel component.
type ScalarKind int

const (
	KindUnknown ScalarKind = iota
	Uint8
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Uint64
	Int64
	Float32
	Float64
)

var kindNames = map[ScalarKind]string{
	Uint8:   "uint8",
	Int8:    "int8",
	Uint16:  "uint16",
	Int16:   "int16",
	Uint32:  "uint32",
	Int32:   "int32",
	Uint64:  "uint64",
	Int64:   "int64",
	Float32: "float32",
	Float64: "float64",
}

// String returns the lowercase Go-style name of the kind
func (k ScalarKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Size returns the width of one component in bytes, or 0 for KindUnknown.
func (k ScalarKind) Size() int {
	switch k {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	case Uint64, Int64, Float64:
		return 8
	default:
		return 0
	}
}

// Signed reports whether the kind can hold negative values.
func (k ScalarKind) Signed() bool {
	switch k {
	case Int8, Int16, Int32, Int64, Float32, Float64:
		return true
	}
	return false
}

// ParseScalarKind parses a kind name such as "uint16" (case insensitive)
func ParseScalarKind(s string) (ScalarKind, error) {
	want := strings.ToLower(s)
	for k, name := range kindNames {
		if name == want {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrUnsupportedScalarKind, s)
}

// KindForSamples maps a stored sample layout to a scalar kind.
// bitsAllocated is the container width, signed the pixel representation.
func KindForSamples(bitsAllocated int, signed bool) (ScalarKind, error) {
	switch {
	case bitsAllocated == 8 && !signed:
		return Uint8, nil
	case bitsAllocated == 8 && signed:
		return Int8, nil
	case bitsAllocated == 16 && !signed:
		return Uint16, nil
	case bitsAllocated == 16 && signed:
		return Int16, nil
	case bitsAllocated == 32 && !signed:
		return Uint32, nil
	case bitsAllocated == 32 && signed:
		return Int32, nil
	}
	return KindUnknown, fmt.Errorf("%w: %d bits allocated (signed=%t)", ErrUnsupportedScalarKind, bitsAllocated, signed)
}

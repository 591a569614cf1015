// Package postprocess rewrites the blobs of a written directory container in
// place: optional 12-bit packing followed by optional gzip compression.
package postprocess

import (
	"errors"
	"fmt"
	"os"
)

// ErrSizeMismatch is returned when a stream to pack is not a whole number of 4-byte groups.
var ErrSizeMismatch = errors.New("size mismatch")

// PackGroup is the number of input bytes consumed per packed group.
const PackGroup = 4

// Pack12 repacks a little-endian stream of 16-bit samples holding 12 significant
// bits. Each group of four bytes b0..b3 becomes three:
//
//	out0 = b0<<4 | b1>>4
//	out1 = b1<<4 | b2&0x0F
//	out2 = b3
//
// truncated to 8 bits. Only the low nibble of b2 is kept, so its high
// (unused) bits never leak into out1. The output is exactly 3*len(src)/4 bytes long.
func Pack12(src []byte) ([]byte, error) {
	if len(src)%PackGroup != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrSizeMismatch, len(src), PackGroup)
	}

	dst := make([]byte, 0, len(src)/PackGroup*3)
	for i := 0; i < len(src); i += PackGroup {
		b0, b1, b2, b3 := src[i], src[i+1], src[i+2], src[i+3]
		dst = append(dst,
			b0<<4|b1>>4,
			b1<<4|b2&0x0F,
			b3,
		)
	}
	return dst, nil
}

// PackFile packs the file at path and atomically replaces it with the result.
// On failure the original file is left as it was.
func PackFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	packed, err := Pack12(src)
	if err != nil {
		return fmt.Errorf("pack %s: %w", path, err)
	}
	return replaceFile(path, ".as12bits", func(f *os.File) error {
		_, err := f.Write(packed)
		return err
	})
}

// Package util holds small helpers shared by the converter and the
// synthetic series writer.
package util

import (
	"crypto/sha256"
	"math/big"
)

// uidRoot is the example root used for generated UIDs.
const uidRoot = "1.2.826.0.1.3680043.8.498."

// GenerateDeterministicUID derives a DICOM UID from seed. The same seed
// always yields the same UID, and the result never exceeds 64 characters.
func GenerateDeterministicUID(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	n := new(big.Int).SetBytes(sum[:16])
	suffix := n.String()
	if max := 64 - len(uidRoot); len(suffix) > max {
		suffix = suffix[:max]
	}
	// A UID component must not start with 0 unless it is exactly "0".
	if len(suffix) > 1 && suffix[0] == '0' {
		suffix = "1" + suffix[1:]
	}
	return uidRoot + suffix
}

package util

import (
	"fmt"
	"regexp"
	"strconv"
)

var sizePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)(B|KB|MB|GB)$`)

var sizeMultipliers = map[string]int64{
	"B":  1,
	"KB": 1024,
	"MB": 1024 * 1024,
	"GB": 1024 * 1024 * 1024,
}

// ParseSize parses a size string (e.g., "10MB", "512KB") into bytes.
//
// Supported units: B, KB, MB, GB (binary multiples).
func ParseSize(sizeStr string) (int64, error) {
	matches := sizePattern.FindStringSubmatch(sizeStr)
	if matches == nil {
		return 0, fmt.Errorf("invalid format: '%s'. Use format like '512KB', '10MB'", sizeStr)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value: %v", err)
	}

	return int64(value * float64(sizeMultipliers[matches[2]])), nil
}

// ParseBlockSize parses a size that must be a positive number of bytes
// fitting an int, as used for compression block sizes.
func ParseBlockSize(sizeStr string) (int, error) {
	n, err := ParseSize(sizeStr)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("block size must be > 0, got '%s'", sizeStr)
	}
	if n > 1<<31-1 {
		return 0, fmt.Errorf("block size '%s' is too large", sizeStr)
	}
	return int(n), nil
}

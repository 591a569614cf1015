package dicom

import (
	"fmt"
	"sort"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// Field is a DICOM attribute the converter reads into series geometry.
type Field struct {
	Name string
	Tag  tag.Tag
}

// Key returns the metadata dictionary key of the field, e.g. "0028|0101".
func (f Field) Key() string {
	return TagKey(f.Tag)
}

// TagKey formats a tag as a lowercase "gggg|eeee" dictionary key.
func TagKey(t tag.Tag) string {
	return fmt.Sprintf("%04x|%04x", t.Group, t.Element)
}

var (
	FieldBitsStored           = Field{Name: "BitsStored", Tag: tag.BitsStored}
	FieldSpacingBetweenSlices = Field{Name: "SpacingBetweenSlices", Tag: tag.SpacingBetweenSlices}
	FieldImagePosition        = Field{Name: "ImagePositionPatient", Tag: tag.ImagePositionPatient}
	FieldImageOrientation     = Field{Name: "ImageOrientationPatient", Tag: tag.ImageOrientationPatient}
	FieldPixelSpacing         = Field{Name: "PixelSpacing", Tag: tag.PixelSpacing}
	FieldWindowCenter         = Field{Name: "WindowCenter", Tag: tag.WindowCenter}
	FieldWindowWidth          = Field{Name: "WindowWidth", Tag: tag.WindowWidth}
)

// fieldRegistry maps lowercase field names to fields.
var fieldRegistry = map[string]Field{
	"bitsstored":              FieldBitsStored,
	"spacingbetweenslices":    FieldSpacingBetweenSlices,
	"imagepositionpatient":    FieldImagePosition,
	"imageorientationpatient": FieldImageOrientation,
	"pixelspacing":            FieldPixelSpacing,
	"windowcenter":            FieldWindowCenter,
	"windowwidth":             FieldWindowWidth,
}

// GeometryFields returns the registered fields sorted by name.
func GeometryFields() []Field {
	out := make([]Field, 0, len(fieldRegistry))
	for _, f := range fieldRegistry {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FieldByName returns the field for a name such as "WindowCenter".
// The lookup is case-insensitive. Unknown names get a suggestion for the
// closest registered name (Levenshtein distance).
func FieldByName(name string) (Field, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if f, ok := fieldRegistry[normalized]; ok {
		return f, nil
	}

	if suggestion := closestFieldName(normalized); suggestion != "" {
		return Field{}, fmt.Errorf("unknown field %q, did you mean %q?", name, suggestion)
	}
	return Field{}, fmt.Errorf("unknown field %q", name)
}

// closestFieldName returns "" when nothing is within distance 5.
func closestFieldName(input string) string {
	const maxDistance = 5
	bestDistance := maxDistance + 1
	var bestMatch string

	for key, f := range fieldRegistry {
		d := levenshteinDistance(input, key)
		if d < bestDistance || (d == bestDistance && f.Name < bestMatch) {
			bestDistance = d
			bestMatch = f.Name
		}
	}

	if bestDistance <= maxDistance {
		return bestMatch
	}
	return ""
}

func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}
	return matrix[len(a)][len(b)]
}

package dicom

import (
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"

	"github.com/mrsinham/dicomexporter/internal/volume"
)

// Metadata maps "gggg|eeee" keys to attribute values. Multi-valued
// attributes are joined with a backslash, as stored in the file.
type Metadata map[string]string

// Lookup returns the value for key, trying the key as given and then with
// its letter case inverted, so "7FE0|0010" also finds "7fe0|0010".
func (m Metadata) Lookup(key string) (string, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	v, ok := m[invertCase(key)]
	return v, ok
}

func invertCase(s string) string {
	if strings.ToUpper(s) == s {
		return strings.ToLower(s)
	}
	return strings.ToUpper(s)
}

// Values returns the backslash-separated values of key, trimmed, or nil when absent.
func (m Metadata) Values(key string) []string {
	v, ok := m.Lookup(key)
	if !ok {
		return nil
	}
	parts := strings.Split(v, `\`)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Float returns the first value of key as a float.
func (m Metadata) Float(key string) *float64 {
	vs := m.Values(key)
	if len(vs) == 0 {
		return nil
	}
	f, err := strconv.ParseFloat(vs[0], 64)
	if err != nil {
		return nil
	}
	return &f
}

// Int returns the first value of key as an integer.
func (m Metadata) Int(key string) *int {
	vs := m.Values(key)
	if len(vs) == 0 {
		return nil
	}
	n, err := strconv.Atoi(vs[0])
	if err != nil {
		// IS values are sometimes written as "12.0"
		f, ferr := strconv.ParseFloat(vs[0], 64)
		if ferr != nil {
			return nil
		}
		n = int(f)
	}
	return &n
}

// Floats returns exactly n float values of key, or nil if the attribute is
// absent, has a different count, or does not parse.
func (m Metadata) Floats(key string, n int) []float64 {
	vs := m.Values(key)
	if len(vs) != n {
		return nil
	}
	out := make([]float64, n)
	for i, s := range vs {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		out[i] = f
	}
	return out
}

// Geometry extracts the series geometry fields. Absent or malformed fields
// are left nil.
func (m Metadata) Geometry() volume.SeriesGeometry {
	return volume.SeriesGeometry{
		BitsStored:     m.Int(FieldBitsStored.Key()),
		SliceSpacing:   m.Float(FieldSpacingBetweenSlices.Key()),
		InPlaneSpacing: m.Floats(FieldPixelSpacing.Key(), 2),
		Orientation:    m.Floats(FieldImageOrientation.Key(), 6),
		Position:       m.Floats(FieldImagePosition.Key(), 3),
		WindowCenter:   m.Float(FieldWindowCenter.Key()),
		WindowWidth:    m.Float(FieldWindowWidth.Key()),
	}
}

// MetadataFromDataset builds the dictionary from the top-level elements of
// ds. Binary values, sequences and pixel data are skipped.
func MetadataFromDataset(ds dicom.Dataset) Metadata {
	m := make(Metadata, len(ds.Elements))
	for _, elem := range ds.Elements {
		if elem == nil || elem.Value == nil {
			continue
		}
		if v, ok := valueString(elem.Value.GetValue()); ok {
			m[TagKey(elem.Tag)] = v
		}
	}
	return m
}

func valueString(v interface{}) (string, bool) {
	switch vals := v.(type) {
	case []string:
		parts := make([]string, len(vals))
		for i, s := range vals {
			parts[i] = strings.TrimRight(s, " \x00")
		}
		return strings.Join(parts, `\`), true
	case []int:
		parts := make([]string, len(vals))
		for i, n := range vals {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, `\`), true
	case []float64:
		parts := make([]string, len(vals))
		for i, f := range vals {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return strings.Join(parts, `\`), true
	default:
		return "", false
	}
}

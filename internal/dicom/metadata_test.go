package dicom

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/dicomexporter/internal/volume"
)

func TestMetadata_Lookup(t *testing.T) {
	m := Metadata{
		"0028|0101": "12",
		"7FE0|0010": "pixels",
	}

	tests := []struct {
		key    string
		want   string
		wantOK bool
	}{
		{"0028|0101", "12", true},
		{"7FE0|0010", "pixels", true},
		{"7fe0|0010", "pixels", true}, // case fallback
		{"0028|0100", "", false},
	}
	for _, tt := range tests {
		got, ok := m.Lookup(tt.key)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Lookup(%q) = %q, %t; want %q, %t", tt.key, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestMetadata_Values(t *testing.T) {
	m := Metadata{
		FieldWindowCenter.Key():     `40 \ 400`,
		FieldBitsStored.Key():       "12.0",
		FieldPixelSpacing.Key():     `0.7\0.8`,
		FieldImagePosition.Key():    `1\2`,
		FieldImageOrientation.Key(): `1\0\0\0\x\0`,
	}

	if got := m.Float(FieldWindowCenter.Key()); got == nil || *got != 40 {
		t.Errorf("Float(window center) = %v, want first value 40", got)
	}
	if got := m.Int(FieldBitsStored.Key()); got == nil || *got != 12 {
		t.Errorf("Int(bits stored) = %v, want 12", got)
	}
	if diff := cmp.Diff([]float64{0.7, 0.8}, m.Floats(FieldPixelSpacing.Key(), 2)); diff != "" {
		t.Errorf("Floats(pixel spacing) mismatch (-want +got):\n%s", diff)
	}
	if got := m.Floats(FieldImagePosition.Key(), 3); got != nil {
		t.Errorf("Floats with wrong count = %v, want nil", got)
	}
	if got := m.Floats(FieldImageOrientation.Key(), 6); got != nil {
		t.Errorf("Floats with bad value = %v, want nil", got)
	}
	if got := m.Float(FieldWindowWidth.Key()); got != nil {
		t.Errorf("Float(absent) = %v, want nil", *got)
	}
}

func TestMetadata_Geometry(t *testing.T) {
	m := Metadata{
		FieldBitsStored.Key():           "12",
		FieldSpacingBetweenSlices.Key(): "3",
		FieldPixelSpacing.Key():         `0.5\0.6`,
		FieldImageOrientation.Key():     `1\0\0\0\1\0`,
		FieldImagePosition.Key():        `-1\-2\-3`,
		FieldWindowWidth.Key():          "400",
	}

	want := volume.SeriesGeometry{
		BitsStored:     volume.Int(12),
		SliceSpacing:   volume.Float(3),
		InPlaneSpacing: []float64{0.5, 0.6},
		Orientation:    []float64{1, 0, 0, 0, 1, 0},
		Position:       []float64{-1, -2, -3},
		WindowWidth:    volume.Float(400),
	}
	if diff := cmp.Diff(want, m.Geometry()); diff != "" {
		t.Errorf("Geometry mismatch (-want +got):\n%s", diff)
	}
}

func TestTagKey(t *testing.T) {
	if got := TagKey(tag.PixelData); got != "7fe0|0010" {
		t.Errorf("TagKey(PixelData) = %q, want 7fe0|0010", got)
	}
	if got := FieldImageOrientation.Key(); got != "0020|0037" {
		t.Errorf("ImageOrientationPatient key = %q, want 0020|0037", got)
	}
}

func TestFieldByName(t *testing.T) {
	f, err := FieldByName("windowcenter")
	if err != nil {
		t.Fatalf("FieldByName: %v", err)
	}
	if f != FieldWindowCenter {
		t.Errorf("FieldByName(windowcenter) = %+v", f)
	}

	_, err = FieldByName("PixelSpaceing")
	if err == nil || !strings.Contains(err.Error(), `did you mean "PixelSpacing"`) {
		t.Errorf("FieldByName(PixelSpaceing) error = %v, want suggestion", err)
	}

	_, err = FieldByName("CompletelyUnrelatedAttribute")
	if err == nil || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("FieldByName(unrelated) error = %v, want no suggestion", err)
	}
}

func TestGeometryFields_Sorted(t *testing.T) {
	fields := GeometryFields()
	if len(fields) != 7 {
		t.Fatalf("got %d fields, want 7", len(fields))
	}
	for i := 1; i < len(fields); i++ {
		if fields[i-1].Name >= fields[i].Name {
			t.Errorf("fields not sorted: %s before %s", fields[i-1].Name, fields[i].Name)
		}
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"windowcenter", "windowcentre", 2},
	}
	for _, tt := range tests {
		if got := levenshteinDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

// Package modalities provides MR and CT acquisition profiles for
// synthetic series: pixel layout, default geometry and modality elements.
package modalities

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/suyashkumar/dicom"

	"github.com/mrsinham/dicomexporter/internal/volume"
)

// Modality represents a DICOM imaging modality type.
type Modality string

const (
	MR Modality = "MR" // Magnetic Resonance
	CT Modality = "CT" // Computed Tomography
)

// AllModalities returns all supported modalities.
func AllModalities() []Modality {
	return []Modality{MR, CT}
}

// IsValid checks if a modality string is valid.
func IsValid(m string) bool {
	for _, valid := range AllModalities() {
		if string(valid) == m {
			return true
		}
	}
	return false
}

// Parse returns the modality for s, ignoring case.
func Parse(s string) (Modality, error) {
	m := strings.ToUpper(strings.TrimSpace(s))
	if !IsValid(m) {
		return "", fmt.Errorf("unknown modality %q (supported: MR, CT)", s)
	}
	return Modality(m), nil
}

// Scanner represents an imaging device configuration.
type Scanner struct {
	Manufacturer string
	Model        string
	// MR-specific
	FieldStrength float64 // Tesla (1.5, 3.0)
	// CT-specific
	DetectorRows int
}

// SeriesParams holds modality-specific parameters for a series.
type SeriesParams struct {
	Modality     Modality
	Scanner      Scanner
	WindowCenter float64
	WindowWidth  float64

	// MR-specific
	EchoTime              float64
	RepetitionTime        float64
	FlipAngle             float64
	SequenceName          string
	MagneticFieldStrength float64
	ImagingFrequency      float64

	// CT-specific
	KVP               float64 // Tube voltage (kV)
	XRayTubeCurrent   int     // Tube current (mA)
	ConvolutionKernel string
	RescaleIntercept  float64
	RescaleSlope      float64

	PixelSpacing         float64
	SliceThickness       float64
	SpacingBetweenSlices float64
}

// PixelConfig holds pixel data configuration for a modality.
type PixelConfig struct {
	BitsAllocated       uint16
	BitsStored          uint16
	HighBit             uint16
	PixelRepresentation uint16 // 0 = unsigned, 1 = signed
	MinValue            int    // lowest stored value
	MaxValue            int    // highest stored value
}

// Signed reports whether samples are two's complement.
func (c PixelConfig) Signed() bool {
	return c.PixelRepresentation == 1
}

// Kind returns the voxel scalar kind a reader produces for this layout.
func (c PixelConfig) Kind() volume.ScalarKind {
	kind, err := volume.KindForSamples(int(c.BitsAllocated), c.Signed())
	if err != nil {
		return volume.KindUnknown
	}
	return kind
}

// Clamp limits v to the stored value range.
func (c PixelConfig) Clamp(v int) int {
	return max(c.MinValue, min(c.MaxValue, v))
}

// Generator defines the interface for modality-specific profiles.
type Generator interface {
	// Modality returns the modality type.
	Modality() Modality

	// SOPClassUID returns the SOP Class UID for this modality.
	SOPClassUID() string

	// Scanners returns available scanner configurations.
	Scanners() []Scanner

	// GenerateSeriesParams draws acquisition parameters for a series.
	GenerateSeriesParams(scanner Scanner, rng *rand.Rand) SeriesParams

	// PixelConfig returns pixel data configuration.
	PixelConfig() PixelConfig

	// AppendModalityElements appends modality-specific DICOM elements to a dataset.
	AppendModalityElements(ds *dicom.Dataset, params SeriesParams) error

	// WindowPresets returns default window presets for this modality.
	WindowPresets() []WindowPreset
}

// WindowPreset represents a window/level preset.
type WindowPreset struct {
	Name   string
	Center float64
	Width  float64
}

// GetGenerator returns the generator for the specified modality.
func GetGenerator(m Modality) Generator {
	switch m {
	case CT:
		return &CTGenerator{}
	case MR:
		fallthrough
	default:
		return &MRGenerator{}
	}
}

// FindPreset returns the named window preset of g, ignoring case.
func FindPreset(g Generator, name string) (WindowPreset, bool) {
	for _, p := range g.WindowPresets() {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return WindowPreset{}, false
}

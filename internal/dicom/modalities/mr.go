package modalities

import (
	"math/rand/v2"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// MRGenerator describes MR (Magnetic Resonance) series.
type MRGenerator struct{}

func (g *MRGenerator) Modality() Modality {
	return MR
}

// SOPClassUID returns the MR Image Storage SOP Class UID.
func (g *MRGenerator) SOPClassUID() string {
	return "1.2.840.10008.5.1.4.1.1.4"
}

func (g *MRGenerator) Scanners() []Scanner {
	return []Scanner{
		{Manufacturer: "SIEMENS", Model: "Avanto", FieldStrength: 1.5},
		{Manufacturer: "SIEMENS", Model: "Skyra", FieldStrength: 3.0},
		{Manufacturer: "GE MEDICAL SYSTEMS", Model: "Discovery MR750", FieldStrength: 3.0},
		{Manufacturer: "PHILIPS", Model: "Ingenia", FieldStrength: 3.0},
	}
}

// GenerateSeriesParams draws MR parameters. Spacing values are rounded to
// 0.1 mm so they survive the DS round trip unchanged.
func (g *MRGenerator) GenerateSeriesParams(scanner Scanner, rng *rand.Rand) SeriesParams {
	sequences := []string{"T1_MPRAGE", "T1_SE", "T2_FSE", "T2_FLAIR"}

	params := SeriesParams{
		Modality:              MR,
		Scanner:               scanner,
		PixelSpacing:          roundTenth(0.5 + rng.Float64()*1.5), // 0.5-2.0 mm
		SliceThickness:        roundTenth(1.0 + rng.Float64()*4.0), // 1.0-5.0 mm
		EchoTime:              10.0 + rng.Float64()*20.0,
		RepetitionTime:        400.0 + rng.Float64()*400.0,
		FlipAngle:             60.0 + rng.Float64()*30.0,
		SequenceName:          sequences[rng.IntN(len(sequences))],
		MagneticFieldStrength: scanner.FieldStrength,
		ImagingFrequency:      scanner.FieldStrength * 42.58, // MHz
	}
	params.SpacingBetweenSlices = params.SliceThickness

	preset := g.WindowPresets()[rng.IntN(len(g.WindowPresets()))]
	params.WindowCenter, params.WindowWidth = preset.Center, preset.Width
	return params
}

// PixelConfig returns MR pixel data configuration: 12 bits stored in 16.
func (g *MRGenerator) PixelConfig() PixelConfig {
	return PixelConfig{
		BitsAllocated:       16,
		BitsStored:          12,
		HighBit:             11,
		PixelRepresentation: 0,
		MinValue:            0,
		MaxValue:            4095,
	}
}

func (g *MRGenerator) AppendModalityElements(ds *dicom.Dataset, params SeriesParams) error {
	elements := []*dicom.Element{
		mustNewElement(tag.MagneticFieldStrength, []string{floatToDS(params.MagneticFieldStrength)}),
		mustNewElement(tag.ImagingFrequency, []string{floatToDS(params.ImagingFrequency)}),
	}

	if params.EchoTime != 0 {
		elements = append(elements, mustNewElement(tag.EchoTime, []string{floatToDS(params.EchoTime)}))
	}
	if params.RepetitionTime != 0 {
		elements = append(elements, mustNewElement(tag.RepetitionTime, []string{floatToDS(params.RepetitionTime)}))
	}
	if params.FlipAngle != 0 {
		elements = append(elements, mustNewElement(tag.FlipAngle, []string{floatToDS(params.FlipAngle)}))
	}
	if params.SequenceName != "" {
		elements = append(elements, mustNewElement(tag.SequenceName, []string{params.SequenceName}))
	}

	ds.Elements = append(ds.Elements, elements...)
	return nil
}

func (g *MRGenerator) WindowPresets() []WindowPreset {
	return []WindowPreset{
		{Name: "DEFAULT", Center: 2048, Width: 4096},
		{Name: "BRIGHT", Center: 1200, Width: 2400},
		{Name: "CONTRAST", Center: 2400, Width: 1200},
	}
}

func roundTenth(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

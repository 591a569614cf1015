package modalities

import (
	"math/rand/v2"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// CTGenerator describes CT (Computed Tomography) series.
type CTGenerator struct{}

func (g *CTGenerator) Modality() Modality {
	return CT
}

// SOPClassUID returns the CT Image Storage SOP Class UID.
func (g *CTGenerator) SOPClassUID() string {
	return "1.2.840.10008.5.1.4.1.1.2"
}

func (g *CTGenerator) Scanners() []Scanner {
	return []Scanner{
		{Manufacturer: "SIEMENS", Model: "SOMATOM Force", DetectorRows: 192},
		{Manufacturer: "GE MEDICAL SYSTEMS", Model: "Revolution CT", DetectorRows: 256},
		{Manufacturer: "PHILIPS", Model: "Brilliance iCT", DetectorRows: 256},
		{Manufacturer: "CANON", Model: "Aquilion ONE", DetectorRows: 320},
	}
}

// GenerateSeriesParams draws CT parameters. The window follows the
// reconstruction kernel.
func (g *CTGenerator) GenerateSeriesParams(scanner Scanner, rng *rand.Rand) SeriesParams {
	kvpOptions := []float64{80, 100, 120, 140}
	kernels := []string{"SOFT", "STANDARD", "BONE", "LUNG"}
	kernel := kernels[rng.IntN(len(kernels))]

	presetName := "MEDIASTINUM"
	switch kernel {
	case "BONE":
		presetName = "BONE"
	case "LUNG":
		presetName = "LUNG"
	}
	preset, _ := FindPreset(g, presetName)

	params := SeriesParams{
		Modality:          CT,
		Scanner:           scanner,
		PixelSpacing:      roundTenth(0.5 + rng.Float64()*0.5), // 0.5-1.0 mm
		SliceThickness:    roundTenth(0.5 + rng.Float64()*2.5), // 0.5-3.0 mm
		KVP:               kvpOptions[rng.IntN(len(kvpOptions))],
		XRayTubeCurrent:   100 + rng.IntN(301),
		ConvolutionKernel: kernel,
		RescaleIntercept:  0,
		RescaleSlope:      1,
		WindowCenter:      preset.Center,
		WindowWidth:       preset.Width,
	}
	params.SpacingBetweenSlices = params.SliceThickness

	return params
}

// PixelConfig returns CT pixel data configuration: signed 16-bit
// Hounsfield units.
func (g *CTGenerator) PixelConfig() PixelConfig {
	return PixelConfig{
		BitsAllocated:       16,
		BitsStored:          16,
		HighBit:             15,
		PixelRepresentation: 1,
		MinValue:            -1024, // air
		MaxValue:            3071,  // dense bone
	}
}

func (g *CTGenerator) AppendModalityElements(ds *dicom.Dataset, params SeriesParams) error {
	elements := []*dicom.Element{
		mustNewElement(tag.KVP, []string{floatToDS(params.KVP)}),
		mustNewElement(tag.XRayTubeCurrent, []string{intToIS(params.XRayTubeCurrent)}),
		mustNewElement(tag.ConvolutionKernel, []string{params.ConvolutionKernel}),
		mustNewElement(tag.RescaleIntercept, []string{floatToDS(params.RescaleIntercept)}),
		mustNewElement(tag.RescaleSlope, []string{floatToDS(params.RescaleSlope)}),
		mustNewElement(tag.RescaleType, []string{"HU"}),
	}

	ds.Elements = append(ds.Elements, elements...)
	return nil
}

func (g *CTGenerator) WindowPresets() []WindowPreset {
	return []WindowPreset{
		{Name: "BRAIN", Center: 40, Width: 80},
		{Name: "BONE", Center: 400, Width: 2000},
		{Name: "LUNG", Center: -600, Width: 1500},
		{Name: "MEDIASTINUM", Center: 40, Width: 400},
		{Name: "LIVER", Center: 60, Width: 150},
	}
}

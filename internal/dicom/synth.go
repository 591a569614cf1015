package dicom

import (
	"fmt"
	"hash/fnv"
	"math"
	randv2 "math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mrsinham/dicomexporter/internal/dicom/modalities"
	"github.com/mrsinham/dicomexporter/internal/util"
)

// Plane is the acquisition plane of a synthetic series.
type Plane string

const (
	PlaneAxial    Plane = "axial"
	PlaneCoronal  Plane = "coronal"
	PlaneSagittal Plane = "sagittal"
)

// ParsePlane returns the plane named s, ignoring case. An empty string is axial.
func ParsePlane(s string) (Plane, error) {
	switch p := Plane(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PlaneAxial, nil
	case PlaneAxial, PlaneCoronal, PlaneSagittal:
		return p, nil
	}
	return "", fmt.Errorf("unknown plane %q (supported: axial, coronal, sagittal)", s)
}

// Orientation returns the ImageOrientationPatient row and column cosines.
func (p Plane) Orientation() [6]float64 {
	switch p {
	case PlaneCoronal:
		return [6]float64{1, 0, 0, 0, 0, -1}
	case PlaneSagittal:
		return [6]float64{0, 1, 0, 0, 0, -1}
	default:
		return [6]float64{1, 0, 0, 0, 1, 0}
	}
}

// Normal returns the slice normal, row cosine × column cosine.
func (p Plane) Normal() r3.Vec {
	o := p.Orientation()
	return r3.Cross(r3.Vec{X: o[0], Y: o[1], Z: o[2]}, r3.Vec{X: o[3], Y: o[4], Z: o[5]})
}

// SynthOptions contains all parameters needed to write a synthetic series.
type SynthOptions struct {
	OutputDir string
	Slices    int
	Rows      int
	Columns   int
	Seed      int64 // 0 derives a seed from OutputDir
	Workers   int   // 0 = runtime.NumCPU()

	Modality modalities.Modality
	Plane    Plane
	Origin   [3]float64

	// Zero values take the spacing drawn for the modality.
	PixelSpacing float64
	SliceSpacing float64

	// Label burns "n/N" into each slice. Noise adds seeded jitter to the ramp.
	Label bool
	Noise bool

	// Omit lists geometry fields (by name, e.g. "ImageOrientationPatient")
	// left out of every file.
	Omit []string

	// ReverseNames numbers files from the last slice, so that file name order
	// disagrees with spatial order.
	ReverseNames bool

	// DICOMDIR moves the files into a PT*/ST*/SE* tree indexed by a DICOMDIR.
	DICOMDIR bool

	Logger           *zerolog.Logger
	ProgressCallback func(current, total int)
}

// SyntheticSeries describes what WriteSyntheticSeries wrote.
type SyntheticSeries struct {
	Dir          string
	Files        []string // in slice order
	InstanceUIDs []string // in slice order
	PatientID    string
	PatientName  string
	StudyUID     string
	SeriesUID    string
	SOPClassUID  string
	Modality     modalities.Modality
	Plane        Plane
	Dims         [3]int
	PixelSpacing float64
	SliceSpacing float64
	WindowCenter float64
	WindowWidth  float64
	PixelConfig  modalities.PixelConfig
}

// sliceTask contains all data needed to write one slice.
type sliceTask struct {
	index    int
	filePath string
	uid      string
	label    string
	seed     uint64
	metadata []*dicom.Element
}

// WriteSyntheticSeries writes a single-series, uncompressed DICOM volume.
// Sample values follow rampValue, so a reader can check them voxel by voxel
// when Label and Noise are off.
func WriteSyntheticSeries(opts SynthOptions) (*SyntheticSeries, error) {
	if opts.Slices <= 0 || opts.Rows <= 0 || opts.Columns <= 0 {
		return nil, fmt.Errorf("slices, rows and columns must be > 0, got %d, %d, %d", opts.Slices, opts.Rows, opts.Columns)
	}
	if opts.Modality == "" {
		opts.Modality = modalities.MR
	}
	plane, err := ParsePlane(string(opts.Plane))
	if err != nil {
		return nil, err
	}

	omit := make(map[tag.Tag]bool)
	for _, name := range opts.Omit {
		f, err := FieldByName(name)
		if err != nil {
			return nil, fmt.Errorf("omit field: %w", err)
		}
		omit[f.Tag] = true
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	seed := opts.Seed
	if seed == 0 {
		h := fnv.New64a()
		_, _ = h.Write([]byte(opts.OutputDir)) // hash.Write never returns an error
		seed = int64(h.Sum64())
	}
	rng := randv2.New(randv2.NewPCG(uint64(seed), uint64(seed)))
	patientID := fmt.Sprintf("SYN%06d", uint64(seed)%1000000)
	const patientName = "SYNTHETIC^VOLUME"

	gen := modalities.GetGenerator(opts.Modality)
	scanners := gen.Scanners()
	scanner := scanners[rng.IntN(len(scanners))]
	params := gen.GenerateSeriesParams(scanner, rng)
	if opts.PixelSpacing > 0 {
		params.PixelSpacing = opts.PixelSpacing
	}
	if opts.SliceSpacing > 0 {
		params.SliceThickness = opts.SliceSpacing
		params.SpacingBetweenSlices = opts.SliceSpacing
	}
	pixelConfig := gen.PixelConfig()

	uidSeed := fmt.Sprintf("%s_%d", opts.OutputDir, seed)
	studyUID := util.GenerateDeterministicUID(uidSeed + "_study")
	seriesUID := util.GenerateDeterministicUID(uidSeed + "_series")
	frameOfReferenceUID := util.GenerateDeterministicUID(uidSeed + "_frame")

	orientation := plane.Orientation()
	normal := plane.Normal()
	origin := r3.Vec{X: opts.Origin[0], Y: opts.Origin[1], Z: opts.Origin[2]}

	log.Info().
		Str("modality", string(gen.Modality())).
		Str("plane", string(plane)).
		Int("slices", opts.Slices).
		Str("resolution", fmt.Sprintf("%dx%d", opts.Columns, opts.Rows)).
		Msg("writing synthetic series")

	// Phase 1: build all tasks sequentially (keeps the output deterministic).
	tasks := make([]sliceTask, opts.Slices)
	for i := range tasks {
		pos := r3.Add(origin, r3.Scale(float64(i)*params.SpacingBetweenSlices, normal))
		instanceUID := util.GenerateDeterministicUID(fmt.Sprintf("%s_instance_%d", uidSeed, i))
		fileIndex := i + 1
		if opts.ReverseNames {
			fileIndex = opts.Slices - i
		}

		metadata := []*dicom.Element{
			mustNewElement(tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
			mustNewElement(tag.PatientName, []string{patientName}),
			mustNewElement(tag.PatientID, []string{patientID}),
			mustNewElement(tag.StudyInstanceUID, []string{studyUID}),
			mustNewElement(tag.SeriesInstanceUID, []string{seriesUID}),
			mustNewElement(tag.SeriesNumber, []string{"1"}),
			mustNewElement(tag.SeriesDescription, []string{fmt.Sprintf("Synthetic %s %s", gen.Modality(), plane)}),
			mustNewElement(tag.Modality, []string{string(gen.Modality())}),
			mustNewElement(tag.SOPInstanceUID, []string{instanceUID}),
			mustNewElement(tag.SOPClassUID, []string{gen.SOPClassUID()}),
			mustNewElement(tag.InstanceNumber, []string{strconv.Itoa(i + 1)}),
			mustNewElement(tag.FrameOfReferenceUID, []string{frameOfReferenceUID}),
			mustNewElement(tag.Manufacturer, []string{scanner.Manufacturer}),
			mustNewElement(tag.ManufacturerModelName, []string{scanner.Model}),
			mustNewElement(tag.PixelSpacing, []string{floatToDS(params.PixelSpacing), floatToDS(params.PixelSpacing)}),
			mustNewElement(tag.SliceThickness, []string{floatToDS(params.SliceThickness)}),
			mustNewElement(tag.SpacingBetweenSlices, []string{floatToDS(params.SpacingBetweenSlices)}),
			mustNewElement(tag.WindowCenter, []string{floatToDS(params.WindowCenter)}),
			mustNewElement(tag.WindowWidth, []string{floatToDS(params.WindowWidth)}),
			mustNewElement(tag.ImagePositionPatient, []string{floatToDS(pos.X), floatToDS(pos.Y), floatToDS(pos.Z)}),
			mustNewElement(tag.ImageOrientationPatient, floatsToDS(orientation[:])),
			mustNewElement(tag.Rows, []int{opts.Rows}),
			mustNewElement(tag.Columns, []int{opts.Columns}),
			mustNewElement(tag.BitsAllocated, []int{int(pixelConfig.BitsAllocated)}),
			mustNewElement(tag.BitsStored, []int{int(pixelConfig.BitsStored)}),
			mustNewElement(tag.HighBit, []int{int(pixelConfig.HighBit)}),
			mustNewElement(tag.PixelRepresentation, []int{int(pixelConfig.PixelRepresentation)}),
			mustNewElement(tag.SamplesPerPixel, []int{1}),
			mustNewElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
		}

		ds := &dicom.Dataset{Elements: metadata}
		if err := gen.AppendModalityElements(ds, params); err != nil {
			return nil, fmt.Errorf("add modality elements for slice %d: %w", i, err)
		}
		metadata = ds.Elements[:0]
		for _, elem := range ds.Elements {
			if !omit[elem.Tag] {
				metadata = append(metadata, elem)
			}
		}

		pixelSeedHash := fnv.New64a()
		_, _ = fmt.Fprintf(pixelSeedHash, "%d_pixel_%d", seed, i)

		tasks[i] = sliceTask{
			index:    i,
			filePath: filepath.Join(opts.OutputDir, fmt.Sprintf("IMG%04d.dcm", fileIndex)),
			uid:      instanceUID,
			label:    fmt.Sprintf("%d/%d", i+1, opts.Slices),
			seed:     pixelSeedHash.Sum64(),
			metadata: metadata,
		}
	}

	// Phase 2: write slices in parallel.
	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	numWorkers = min(numWorkers, len(tasks))

	type result struct {
		index int
		err   error
	}
	taskChan := make(chan sliceTask, len(tasks))
	resultChan := make(chan result, len(tasks))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskChan {
				err := writeSlice(task, opts, pixelConfig)
				resultChan <- result{task.index, err}
			}
		}()
	}

	for _, task := range tasks {
		taskChan <- task
	}
	close(taskChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	completed := 0
	var firstErr error
	for r := range resultChan {
		if r.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("write slice %d: %w", r.index, r.err)
		}
		completed++
		if opts.ProgressCallback != nil {
			opts.ProgressCallback(completed, len(tasks))
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	series := &SyntheticSeries{
		Dir:          opts.OutputDir,
		PatientID:    patientID,
		PatientName:  patientName,
		StudyUID:     studyUID,
		SeriesUID:    seriesUID,
		SOPClassUID:  gen.SOPClassUID(),
		Modality:     gen.Modality(),
		Plane:        plane,
		Dims:         [3]int{opts.Columns, opts.Rows, opts.Slices},
		PixelSpacing: params.PixelSpacing,
		SliceSpacing: params.SpacingBetweenSlices,
		WindowCenter: params.WindowCenter,
		WindowWidth:  params.WindowWidth,
		PixelConfig:  pixelConfig,
	}
	for _, task := range tasks {
		series.Files = append(series.Files, task.filePath)
		series.InstanceUIDs = append(series.InstanceUIDs, task.uid)
	}
	if opts.DICOMDIR {
		if err := OrganizeIntoDICOMDIR(series); err != nil {
			return nil, err
		}
	}
	log.Info().Int("files", len(series.Files)).Str("dir", opts.OutputDir).Msg("synthetic series written")
	return series, nil
}

// rampValue is the noiseless sample at (x, y, z): a ramp along each axis
// wrapped into the stored range.
func rampValue(cfg modalities.PixelConfig, x, y, z int) int {
	span := cfg.MaxValue - cfg.MinValue + 1
	return cfg.MinValue + (x+3*y+7*z)%span
}

func writeSlice(task sliceTask, opts SynthOptions, cfg modalities.PixelConfig) error {
	width, height := opts.Columns, opts.Rows
	samples := make([]int, width*height)

	rng := randv2.New(randv2.NewPCG(task.seed, task.seed))
	noiseAmplitude := float64(cfg.MaxValue-cfg.MinValue) * 0.02
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := rampValue(cfg, x, y, task.index)
			if opts.Noise {
				v += int(math.Round((rng.Float64() - 0.5) * noiseAmplitude))
			}
			samples[y*width+x] = cfg.Clamp(v)
		}
	}
	if opts.Label {
		drawLabel(samples, width, height, task.label, cfg.MaxValue, cfg.MinValue)
	}

	nativeFrame := frame.NewNativeFrame[uint16](int(cfg.BitsAllocated), height, width, width*height, 1)
	for i, v := range samples {
		// Signed values keep their two's complement bit pattern.
		nativeFrame.RawData[i] = uint16(int16(v))
	}
	pixelDataInfo := dicom.PixelDataInfo{
		Frames: []*frame.Frame{
			{
				Encapsulated: false,
				NativeData:   nativeFrame,
			},
		},
	}

	elements := make([]*dicom.Element, len(task.metadata)+1)
	copy(elements, task.metadata)
	elements[len(task.metadata)] = mustNewElement(tag.PixelData, pixelDataInfo)

	return writeDatasetToFile(task.filePath, dicom.Dataset{Elements: elements})
}

func writeDatasetToFile(filename string, ds dicom.Dataset, opts ...dicom.WriteOption) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := dicom.Write(f, ds, opts...); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// mustNewElement creates a new DICOM element, panicking on error.
func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}

// floatToDS formats a Decimal String value.
func floatToDS(f float64) string {
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'g', 10, 64)
}

func floatsToDS(fs []float64) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = floatToDS(f)
	}
	return out
}

// Package dicom reads a directory of DICOM slices into a voxel buffer and
// writes synthetic series for demos and tests.
package dicom

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mrsinham/dicomexporter/internal/volume"
)

var (
	// ErrNoSeries is returned when a directory holds no readable DICOM image.
	ErrNoSeries = errors.New("no DICOM series found")
	// ErrEncapsulatedPixelData is returned for compressed transfer syntaxes.
	ErrEncapsulatedPixelData = errors.New("encapsulated pixel data is not supported")
	// ErrInconsistentSlices is returned when slices of one series disagree on layout.
	ErrInconsistentSlices = errors.New("inconsistent slices")
)

// Series is a decoded volume plus what was learned about it while reading.
type Series struct {
	UID      string
	Files    []string
	Buffer   *volume.Buffer
	Metadata Metadata

	// SeriesCount is the number of series found in the directory. Only the
	// first one (by UID) is read.
	SeriesCount int
}

// Geometry returns the series geometry fields from the first slice's metadata.
func (s *Series) Geometry() volume.SeriesGeometry {
	return s.Metadata.Geometry()
}

// SeriesReader reads one series from a directory tree. The zero value is ready to use.
type SeriesReader struct {
	Logger *zerolog.Logger
}

func (r *SeriesReader) logger() *zerolog.Logger {
	if r == nil || r.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return r.Logger
}

// Read implements the volume source used by the exporter.
func (r *SeriesReader) Read(dir string) (*volume.Buffer, volume.SeriesGeometry, error) {
	s, err := r.ReadSeries(dir)
	if err != nil {
		return nil, volume.SeriesGeometry{}, err
	}
	return s.Buffer, s.Geometry(), nil
}

// sliceHeader is what the header scan keeps about one file.
type sliceHeader struct {
	path        string
	seriesUID   string
	instance    int
	position    []float64
	orientation []float64
}

// ReadSeries scans dir recursively, groups files by SeriesInstanceUID, and
// decodes the first series. Slices are ordered by their position along the
// slice normal, falling back to InstanceNumber and then file name.
func (r *SeriesReader) ReadSeries(dir string) (*Series, error) {
	log := r.logger()

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open series directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open series directory: %s is not a directory", dir)
	}

	groups := make(map[string][]sliceHeader)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() || strings.EqualFold(d.Name(), DICOMDIRName) {
			return nil
		}
		h, err := scanHeader(path)
		if err != nil {
			log.Debug().Str("file", path).Err(err).Msg("skipping non-DICOM file")
			return nil
		}
		groups[h.seriesUID] = append(groups[h.seriesUID], h)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSeries, dir)
	}

	uids := make([]string, 0, len(groups))
	for uid := range groups {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	if len(uids) > 1 {
		log.Warn().Int("series", len(uids)).Str("using", uids[0]).Msg("directory holds several series, converting the first one only")
	}

	slices := groups[uids[0]]
	sortSlices(slices)

	s := &Series{UID: uids[0], SeriesCount: len(uids)}
	for _, h := range slices {
		s.Files = append(s.Files, h.path)
	}
	log.Info().Str("series", s.UID).Int("slices", len(slices)).Msg("reading series")

	if err := r.decode(s, slices); err != nil {
		return nil, err
	}
	return s, nil
}

// scanHeader parses a file without its pixel data. It tolerates damaged
// trailing elements the way a viewer would: whatever parsed is kept.
func scanHeader(path string) (sliceHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return sliceHeader{}, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return sliceHeader{}, err
	}

	p, err := dicom.NewParser(f, info.Size(), nil, dicom.SkipPixelData())
	if err != nil {
		return sliceHeader{}, err
	}

	var elements []*dicom.Element
	for {
		elem, err := p.Next()
		if err != nil {
			break
		}
		elements = append(elements, elem)
	}
	if len(elements) == 0 {
		return sliceHeader{}, fmt.Errorf("no elements parsed")
	}
	ds := dicom.Dataset{Elements: elements}

	if _, err := ds.FindElementByTag(tag.PixelData); err != nil {
		return sliceHeader{}, fmt.Errorf("no pixel data")
	}

	h := sliceHeader{path: path}
	if uid := elementStrings(ds, tag.SeriesInstanceUID); len(uid) > 0 {
		h.seriesUID = uid[0]
	}
	if n, ok := elementInt(ds, tag.InstanceNumber); ok {
		h.instance = n
	}
	h.position = elementFloats(ds, tag.ImagePositionPatient, 3)
	h.orientation = elementFloats(ds, tag.ImageOrientationPatient, 6)
	return h, nil
}

func sortSlices(slices []sliceHeader) {
	byPosition := len(slices) > 0 && slices[0].orientation != nil
	for _, h := range slices {
		if h.position == nil {
			byPosition = false
			break
		}
	}

	var normal r3.Vec
	if byPosition {
		o := slices[0].orientation
		normal = r3.Cross(r3.Vec{X: o[0], Y: o[1], Z: o[2]}, r3.Vec{X: o[3], Y: o[4], Z: o[5]})
	}
	distance := func(h sliceHeader) float64 {
		return r3.Dot(normal, r3.Vec{X: h.position[0], Y: h.position[1], Z: h.position[2]})
	}

	sort.SliceStable(slices, func(i, j int) bool {
		if byPosition {
			di, dj := distance(slices[i]), distance(slices[j])
			if di != dj {
				return di < dj
			}
		}
		if slices[i].instance != slices[j].instance {
			return slices[i].instance < slices[j].instance
		}
		return slices[i].path < slices[j].path
	})
}

// sliceLayout is the sample layout every slice of a series must share.
type sliceLayout struct {
	rows, cols      int
	bitsAllocated   int
	samplesPerPixel int
	signed          bool
}

func readLayout(ds dicom.Dataset) (sliceLayout, error) {
	var l sliceLayout
	var ok bool
	if l.rows, ok = elementInt(ds, tag.Rows); !ok {
		return l, fmt.Errorf("missing Rows")
	}
	if l.cols, ok = elementInt(ds, tag.Columns); !ok {
		return l, fmt.Errorf("missing Columns")
	}
	if l.bitsAllocated, ok = elementInt(ds, tag.BitsAllocated); !ok {
		return l, fmt.Errorf("missing BitsAllocated")
	}
	if l.samplesPerPixel, ok = elementInt(ds, tag.SamplesPerPixel); !ok {
		l.samplesPerPixel = 1
	}
	if rep, ok := elementInt(ds, tag.PixelRepresentation); ok {
		l.signed = rep == 1
	}
	return l, nil
}

func (r *SeriesReader) decode(s *Series, slices []sliceHeader) error {
	log := r.logger()

	var layout sliceLayout
	var kind volume.ScalarKind
	var data []byte
	frames := 0

	for i, h := range slices {
		ds, err := dicom.ParseFile(h.path, nil)
		if err != nil {
			return fmt.Errorf("parse %s: %w", h.path, err)
		}

		l, err := readLayout(ds)
		if err != nil {
			return fmt.Errorf("read layout of %s: %w", h.path, err)
		}
		if i == 0 {
			layout = l
			if kind, err = volume.KindForSamples(l.bitsAllocated, l.signed); err != nil {
				return fmt.Errorf("%s: %w", h.path, err)
			}
			s.Metadata = MetadataFromDataset(ds)
			data = make([]byte, 0, len(slices)*l.rows*l.cols*l.samplesPerPixel*kind.Size())
		} else if l != layout {
			return fmt.Errorf("%w: %s is %dx%d/%d bits, first slice is %dx%d/%d bits", ErrInconsistentSlices,
				h.path, l.cols, l.rows, l.bitsAllocated, layout.cols, layout.rows, layout.bitsAllocated)
		}

		elem, err := ds.FindElementByTag(tag.PixelData)
		if err != nil {
			return fmt.Errorf("%s: pixel data: %w", h.path, err)
		}
		info, ok := pixelDataInfo(elem.Value.GetValue())
		if !ok {
			return fmt.Errorf("%s: unexpected pixel data value", h.path)
		}
		for _, fr := range info.Frames {
			if fr == nil {
				continue
			}
			if fr.Encapsulated {
				return fmt.Errorf("%s: %w", h.path, ErrEncapsulatedPixelData)
			}
			before := len(data)
			if data, err = appendNativeFrame(data, fr.NativeData, kind.Size()); err != nil {
				return fmt.Errorf("%s: %w", h.path, err)
			}
			want := layout.rows * layout.cols * layout.samplesPerPixel * kind.Size()
			if len(data)-before != want {
				return fmt.Errorf("%w: %s frame has %d bytes, want %d", ErrInconsistentSlices, h.path, len(data)-before, want)
			}
			frames++
		}
		log.Debug().Str("file", h.path).Int("slice", i).Msg("decoded slice")
	}

	if frames == 0 {
		return fmt.Errorf("%w: no frames decoded", ErrNoSeries)
	}

	buf := &volume.Buffer{
		Dims:       [3]int{layout.cols, layout.rows, frames},
		Spacing:    sliceSpacing(s.Metadata, slices),
		Components: layout.samplesPerPixel,
		Kind:       kind,
		Data:       data,
	}
	if pos := slices[0].position; pos != nil {
		buf.Origin = [3]float64{pos[0], pos[1], pos[2]}
	}
	if err := buf.Validate(); err != nil {
		return fmt.Errorf("assemble volume: %w", err)
	}
	s.Buffer = buf
	return nil
}

// sliceSpacing returns (column spacing, row spacing, slice distance). The
// slice distance is measured between the first two slices along the normal,
// falling back to SpacingBetweenSlices, SliceThickness and finally 1.
func sliceSpacing(m Metadata, slices []sliceHeader) [3]float64 {
	spacing := [3]float64{1, 1, 1}
	if ps := m.Floats(FieldPixelSpacing.Key(), 2); ps != nil && ps[0] > 0 && ps[1] > 0 {
		spacing[0], spacing[1] = ps[1], ps[0]
	}

	if len(slices) > 1 && slices[0].position != nil && slices[1].position != nil {
		a, b := slices[0].position, slices[1].position
		d := r3.Norm(r3.Sub(r3.Vec{X: b[0], Y: b[1], Z: b[2]}, r3.Vec{X: a[0], Y: a[1], Z: a[2]}))
		if d > 1e-6 {
			spacing[2] = d
			return spacing
		}
	}
	if v := m.Float(FieldSpacingBetweenSlices.Key()); v != nil && *v > 0 {
		spacing[2] = *v
	} else if v := m.Float(TagKey(tag.SliceThickness)); v != nil && *v > 0 {
		spacing[2] = *v
	}
	return spacing
}

func pixelDataInfo(v interface{}) (dicom.PixelDataInfo, bool) {
	switch info := v.(type) {
	case dicom.PixelDataInfo:
		return info, true
	case *dicom.PixelDataInfo:
		if info != nil {
			return *info, true
		}
	}
	return dicom.PixelDataInfo{}, false
}

// appendNativeFrame appends the samples of a native frame little-endian,
// each written with size bytes.
func appendNativeFrame(dst []byte, native interface{}, size int) ([]byte, error) {
	switch nf := native.(type) {
	case *frame.NativeFrame[uint8]:
		return appendSamples(dst, nf.RawData, size), nil
	case *frame.NativeFrame[uint16]:
		return appendSamples(dst, nf.RawData, size), nil
	case *frame.NativeFrame[uint32]:
		return appendSamples(dst, nf.RawData, size), nil
	case *frame.NativeFrame[int8]:
		return appendSamples(dst, nf.RawData, size), nil
	case *frame.NativeFrame[int16]:
		return appendSamples(dst, nf.RawData, size), nil
	case *frame.NativeFrame[int32]:
		return appendSamples(dst, nf.RawData, size), nil
	default:
		return dst, fmt.Errorf("%w: native frame %T", volume.ErrUnsupportedScalarKind, native)
	}
}

func appendSamples[T uint8 | uint16 | uint32 | int8 | int16 | int32](dst []byte, samples []T, size int) []byte {
	for _, v := range samples {
		switch size {
		case 1:
			dst = append(dst, byte(v))
		case 2:
			dst = binary.LittleEndian.AppendUint16(dst, uint16(v))
		default:
			dst = binary.LittleEndian.AppendUint32(dst, uint32(v))
		}
	}
	return dst
}

func findElement(ds dicom.Dataset, t tag.Tag) (*dicom.Element, bool) {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem == nil || elem.Value == nil {
		return nil, false
	}
	return elem, true
}

func elementStrings(ds dicom.Dataset, t tag.Tag) []string {
	elem, ok := findElement(ds, t)
	if !ok {
		return nil
	}
	switch v := elem.Value.GetValue().(type) {
	case []string:
		out := make([]string, len(v))
		for i, s := range v {
			out[i] = strings.TrimSpace(strings.TrimRight(s, "\x00"))
		}
		return out
	case []int:
		out := make([]string, len(v))
		for i, n := range v {
			out[i] = strconv.Itoa(n)
		}
		return out
	case []float64:
		out := make([]string, len(v))
		for i, f := range v {
			out[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return out
	}
	return nil
}

func elementInt(ds dicom.Dataset, t tag.Tag) (int, bool) {
	vs := elementStrings(ds, t)
	if len(vs) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(vs[0])
	if err != nil {
		f, ferr := strconv.ParseFloat(vs[0], 64)
		if ferr != nil || math.IsNaN(f) {
			return 0, false
		}
		n = int(f)
	}
	return n, true
}

func elementFloats(ds dicom.Dataset, t tag.Tag, n int) []float64 {
	vs := elementStrings(ds, t)
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

package vtk

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/mrsinham/dicomexporter/internal/volume"
)

const (
	// IndexName is the manifest file of a directory container.
	IndexName = "index.json"
	// DataDir holds the binary blobs of a directory container.
	DataDir = "data"
)

var jsTypeNames = map[volume.ScalarKind]string{
	volume.Uint8:   "Uint8Array",
	volume.Int8:    "Int8Array",
	volume.Uint16:  "Uint16Array",
	volume.Int16:   "Int16Array",
	volume.Uint32:  "Uint32Array",
	volume.Int32:   "Int32Array",
	volume.Uint64:  "BigUint64Array",
	volume.Int64:   "BigInt64Array",
	volume.Float32: "Float32Array",
	volume.Float64: "Float64Array",
}

type jsImageData struct {
	VtkClass  string        `json:"vtkClass"`
	Origin    [3]float64    `json:"origin"`
	Spacing   [3]float64    `json:"spacing"`
	Extent    [6]int        `json:"extent"`
	Direction [9]float64    `json:"direction"`
	PointData jsAttributes  `json:"pointData"`
	FieldData *jsAttributes `json:"fieldData,omitempty"`
}

type jsAttributes struct {
	VtkClass      string         `json:"vtkClass"`
	ActiveScalars *int           `json:"activeScalars,omitempty"`
	Arrays        []jsArrayEntry `json:"arrays"`
}

type jsArrayEntry struct {
	Data jsDataArray `json:"data"`
}

type jsDataArray struct {
	VtkClass           string    `json:"vtkClass"`
	Name               string    `json:"name"`
	NumberOfComponents int       `json:"numberOfComponents"`
	Size               int       `json:"size"`
	DataType           string    `json:"dataType"`
	Ranges             []jsRange `json:"ranges,omitempty"`
	Ref                jsRef     `json:"ref"`
}

type jsRange struct {
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Component *int    `json:"component"`
}

type jsRef struct {
	Encode       string `json:"encode"`
	Basepath     string `json:"basepath"`
	ID           string `json:"id"`
	Registration string `json:"registration,omitempty"`
}

// blobID names a blob by the md5 of its content.
func blobID(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func encodeVTKJS(dir string, buf *volume.Buffer) error {
	dataDir := filepath.Join(dir, DataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	typeName, ok := jsTypeNames[buf.Kind]
	if !ok {
		return fmt.Errorf("encode vtkjs: %w: %v", volume.ErrUnsupportedScalarKind, buf.Kind)
	}

	writeBlob := func(data []byte) (string, error) {
		id := blobID(data)
		path := filepath.Join(dataDir, id)
		if _, err := os.Stat(path); err == nil {
			return id, nil
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return "", fmt.Errorf("write blob %s: %w", id, err)
		}
		return id, nil
	}

	scalarsID, err := writeBlob(buf.Data)
	if err != nil {
		return err
	}

	active := 0
	scalars := jsDataArray{
		VtkClass:           "vtkDataArray",
		Name:               ScalarsName,
		NumberOfComponents: buf.Components,
		Size:               buf.NumScalars(),
		DataType:           typeName,
		Ref: jsRef{
			Encode:       "LittleEndian",
			Basepath:     DataDir,
			ID:           scalarsID,
			Registration: "setScalars",
		},
	}
	if buf.Components == 1 {
		// JSON has no NaN or Inf, so a range over non-finite data is dropped.
		lo, hi := buf.Range()
		if !math.IsNaN(lo) && !math.IsNaN(hi) && !math.IsInf(lo, 0) && !math.IsInf(hi, 0) {
			scalars.Ranges = []jsRange{{Min: lo, Max: hi}}
		}
	}

	doc := jsImageData{
		VtkClass:  "vtkImageData",
		Origin:    buf.Origin,
		Spacing:   buf.Spacing,
		Extent:    extent(buf.Dims),
		Direction: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		PointData: jsAttributes{
			VtkClass:      "vtkDataSetAttributes",
			ActiveScalars: &active,
			Arrays:        []jsArrayEntry{{Data: scalars}},
		},
	}

	if len(buf.Fields) > 0 {
		fd := &jsAttributes{VtkClass: "vtkDataSetAttributes"}
		for _, fa := range buf.Fields {
			id, err := writeBlob(float32Bytes(fa.Values))
			if err != nil {
				return err
			}
			fd.Arrays = append(fd.Arrays, jsArrayEntry{Data: jsDataArray{
				VtkClass:           "vtkDataArray",
				Name:               fa.Name,
				NumberOfComponents: max(fa.Components, 1),
				Size:               len(fa.Values),
				DataType:           "Float32Array",
				Ref: jsRef{
					Encode:   "LittleEndian",
					Basepath: DataDir,
					ID:       id,
				},
			}})
		}
		doc.FieldData = fd
	}

	index, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, IndexName), index, 0644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// ReadVTKJS loads a directory container. Gzip-compressed blobs are inflated
// transparently; packed 12-bit blobs cannot be read back.
func ReadVTKJS(dir string) (*volume.Buffer, error) {
	raw, err := os.ReadFile(filepath.Join(dir, IndexName))
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var doc jsImageData
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	if doc.VtkClass != "vtkImageData" {
		return nil, fmt.Errorf("parse index: unexpected class %q", doc.VtkClass)
	}
	if len(doc.PointData.Arrays) == 0 {
		return nil, fmt.Errorf("parse index: no point data")
	}

	buf := &volume.Buffer{
		Origin:  doc.Origin,
		Spacing: doc.Spacing,
	}
	for i := 0; i < 3; i++ {
		buf.Dims[i] = doc.Extent[2*i+1] - doc.Extent[2*i] + 1
	}

	scalars := doc.PointData.Arrays[0].Data
	for kind, name := range jsTypeNames {
		if name == scalars.DataType {
			buf.Kind = kind
		}
	}
	if buf.Kind == volume.KindUnknown {
		return nil, fmt.Errorf("parse index: %w: %q", volume.ErrUnsupportedScalarKind, scalars.DataType)
	}
	buf.Components = max(scalars.NumberOfComponents, 1)
	if buf.Data, err = readBlob(dir, scalars.Ref); err != nil {
		return nil, err
	}

	if doc.FieldData != nil {
		for _, entry := range doc.FieldData.Arrays {
			data, err := readBlob(dir, entry.Data.Ref)
			if err != nil {
				return nil, err
			}
			buf.Fields.Set(volume.FieldArray{
				Name:       entry.Data.Name,
				Components: max(entry.Data.NumberOfComponents, 1),
				Values:     bytesFloat32(data),
			})
		}
	}

	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("read vtkjs: %w", err)
	}
	return buf, nil
}

func readBlob(dir string, ref jsRef) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, ref.Basepath, ref.ID))
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", ref.ID, err)
	}
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("inflate blob %s: %w", ref.ID, err)
		}
		defer func() { _ = zr.Close() }()
		if data, err = io.ReadAll(zr); err != nil {
			return nil, fmt.Errorf("inflate blob %s: %w", ref.ID, err)
		}
	}
	return data, nil
}

// ReadVTI loads a monolithic .vti file.
func ReadVTI(path string) (*volume.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return DecodeVTI(f)
}

// Read loads a container written by Writer.Write, choosing the format by extension.
func Read(path string) (*volume.Buffer, error) {
	format, err := ParseFormat(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatVTI:
		return ReadVTI(path)
	case FormatVTKJS:
		return ReadVTKJS(path)
	}
	return nil, ErrUnsupportedFormat
}

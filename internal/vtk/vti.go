package vtk

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/mrsinham/dicomexporter/internal/volume"
)

const zlibCompressor = "vtkZLibDataCompressor"

var vtkTypeNames = map[volume.ScalarKind]string{
	volume.Uint8:   "UInt8",
	volume.Int8:    "Int8",
	volume.Uint16:  "UInt16",
	volume.Int16:   "Int16",
	volume.Uint32:  "UInt32",
	volume.Int32:   "Int32",
	volume.Uint64:  "UInt64",
	volume.Int64:   "Int64",
	volume.Float32: "Float32",
	volume.Float64: "Float64",
}

type vtiFile struct {
	XMLName    xml.Name     `xml:"VTKFile"`
	Type       string       `xml:"type,attr"`
	Version    string       `xml:"version,attr"`
	ByteOrder  string       `xml:"byte_order,attr"`
	HeaderType string       `xml:"header_type,attr"`
	Compressor string       `xml:"compressor,attr,omitempty"`
	ImageData  vtiImageData `xml:"ImageData"`
}

type vtiImageData struct {
	WholeExtent string        `xml:"WholeExtent,attr"`
	Origin      string        `xml:"Origin,attr"`
	Spacing     string        `xml:"Spacing,attr"`
	Direction   string        `xml:"Direction,attr"`
	FieldData   *vtiArrayList `xml:"FieldData"`
	Piece       vtiPiece      `xml:"Piece"`
}

type vtiPiece struct {
	Extent    string       `xml:"Extent,attr"`
	PointData vtiPointData `xml:"PointData"`
	CellData  vtiArrayList `xml:"CellData"`
}

type vtiPointData struct {
	Scalars string         `xml:"Scalars,attr,omitempty"`
	Arrays  []vtiDataArray `xml:"DataArray"`
}

type vtiArrayList struct {
	Arrays []vtiDataArray `xml:"DataArray"`
}

type vtiDataArray struct {
	Type               string `xml:"type,attr"`
	Name               string `xml:"Name,attr"`
	NumberOfTuples     int    `xml:"NumberOfTuples,attr,omitempty"`
	NumberOfComponents int    `xml:"NumberOfComponents,attr"`
	Format             string `xml:"format,attr"`
	RangeMin           string `xml:"RangeMin,attr,omitempty"`
	RangeMax           string `xml:"RangeMax,attr,omitempty"`
	Payload            string `xml:",chardata"`
}

// EncodeVTI writes buf as a VTK XML ImageData document with inline binary
// (base64) arrays and UInt64 headers. With compress set each array is split
// into blocks of blockSize bytes that are zlib-compressed individually.
func EncodeVTI(w io.Writer, buf *volume.Buffer, compress bool, blockSize int) error {
	typeName, ok := vtkTypeNames[buf.Kind]
	if !ok {
		return fmt.Errorf("encode vti: %w: %v", volume.ErrUnsupportedScalarKind, buf.Kind)
	}
	if compress && blockSize <= 0 {
		return fmt.Errorf("encode vti: invalid block size %d", blockSize)
	}

	doc := vtiFile{
		Type:       "ImageData",
		Version:    "1.0",
		ByteOrder:  "LittleEndian",
		HeaderType: "UInt64",
	}
	if compress {
		doc.Compressor = zlibCompressor
	}

	ext := extent(buf.Dims)
	doc.ImageData = vtiImageData{
		WholeExtent: formatInts(ext[:]...),
		Origin:      formatFloats(buf.Origin[:]...),
		Spacing:     formatFloats(buf.Spacing[:]...),
		Direction:   "1 0 0 0 1 0 0 0 1",
	}

	if len(buf.Fields) > 0 {
		list := &vtiArrayList{}
		for _, fa := range buf.Fields {
			payload, err := encodePayload(float32Bytes(fa.Values), compress, blockSize)
			if err != nil {
				return fmt.Errorf("encode field %s: %w", fa.Name, err)
			}
			comps := max(fa.Components, 1)
			list.Arrays = append(list.Arrays, vtiDataArray{
				Type:               "Float32",
				Name:               fa.Name,
				NumberOfTuples:     len(fa.Values) / comps,
				NumberOfComponents: comps,
				Format:             "binary",
				Payload:            payload,
			})
		}
		doc.ImageData.FieldData = list
	}

	payload, err := encodePayload(buf.Data, compress, blockSize)
	if err != nil {
		return fmt.Errorf("encode scalars: %w", err)
	}
	scalars := vtiDataArray{
		Type:               typeName,
		Name:               ScalarsName,
		NumberOfComponents: buf.Components,
		Format:             "binary",
		Payload:            payload,
	}
	if buf.Components == 1 {
		lo, hi := buf.Range()
		scalars.RangeMin = formatFloats(lo)
		scalars.RangeMax = formatFloats(hi)
	}
	doc.ImageData.Piece = vtiPiece{
		Extent: doc.ImageData.WholeExtent,
		PointData: vtiPointData{
			Scalars: ScalarsName,
			Arrays:  []vtiDataArray{scalars},
		},
	}

	if _, err := io.WriteString(w, "<?xml version=\"1.0\"?>\n"); err != nil {
		return fmt.Errorf("write vti header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("write vti: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("write vti: %w", err)
	}
	return nil
}

// encodePayload produces the inline binary text of one array.
//
// Uncompressed: base64(size || data).
// Compressed: base64(nblocks, blocksize, lastblocksize, csize...) followed by
// base64(block0 || block1 ...). A last block size of 0 means the last block is full.
func encodePayload(data []byte, compress bool, blockSize int) (string, error) {
	if !compress {
		raw := make([]byte, 8+len(data))
		binary.LittleEndian.PutUint64(raw, uint64(len(data)))
		copy(raw[8:], data)
		return base64.StdEncoding.EncodeToString(raw), nil
	}

	n := len(data)
	last := n % blockSize
	nblocks := n / blockSize
	if last > 0 {
		nblocks++
	}

	header := make([]byte, 8*(3+nblocks))
	binary.LittleEndian.PutUint64(header[0:], uint64(nblocks))
	binary.LittleEndian.PutUint64(header[8:], uint64(blockSize))
	binary.LittleEndian.PutUint64(header[16:], uint64(last))

	var blocks bytes.Buffer
	for i := 0; i < nblocks; i++ {
		chunk := data[i*blockSize : min((i+1)*blockSize, n)]
		before := blocks.Len()
		zw := zlib.NewWriter(&blocks)
		if _, err := zw.Write(chunk); err != nil {
			return "", fmt.Errorf("compress block %d: %w", i, err)
		}
		if err := zw.Close(); err != nil {
			return "", fmt.Errorf("compress block %d: %w", i, err)
		}
		binary.LittleEndian.PutUint64(header[8*(3+i):], uint64(blocks.Len()-before))
	}

	return base64.StdEncoding.EncodeToString(header) + base64.StdEncoding.EncodeToString(blocks.Bytes()), nil
}

// DecodeVTI reads a document produced by EncodeVTI back into a buffer.
func DecodeVTI(r io.Reader) (*volume.Buffer, error) {
	var doc vtiFile
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse vti: %w", err)
	}
	if doc.Type != "ImageData" {
		return nil, fmt.Errorf("parse vti: unexpected type %q", doc.Type)
	}
	if doc.HeaderType != "UInt64" || doc.ByteOrder != "LittleEndian" {
		return nil, fmt.Errorf("parse vti: unsupported header %s/%s", doc.HeaderType, doc.ByteOrder)
	}
	compressed := doc.Compressor != ""
	if compressed && doc.Compressor != zlibCompressor {
		return nil, fmt.Errorf("parse vti: unsupported compressor %q", doc.Compressor)
	}

	ext, err := parseInts(doc.ImageData.WholeExtent, 6)
	if err != nil {
		return nil, fmt.Errorf("parse WholeExtent: %w", err)
	}
	origin, err := parseFloats(doc.ImageData.Origin, 3)
	if err != nil {
		return nil, fmt.Errorf("parse Origin: %w", err)
	}
	spacing, err := parseFloats(doc.ImageData.Spacing, 3)
	if err != nil {
		return nil, fmt.Errorf("parse Spacing: %w", err)
	}

	buf := &volume.Buffer{}
	for i := 0; i < 3; i++ {
		buf.Dims[i] = ext[2*i+1] - ext[2*i] + 1
		buf.Origin[i] = origin[i]
		buf.Spacing[i] = spacing[i]
	}

	arrays := doc.ImageData.Piece.PointData.Arrays
	if len(arrays) == 0 {
		return nil, fmt.Errorf("parse vti: no point data")
	}
	scalars := arrays[0]
	for _, a := range arrays {
		if a.Name == doc.ImageData.Piece.PointData.Scalars {
			scalars = a
		}
	}
	for kind, name := range vtkTypeNames {
		if name == scalars.Type {
			buf.Kind = kind
		}
	}
	if buf.Kind == volume.KindUnknown {
		return nil, fmt.Errorf("parse vti: %w: %q", volume.ErrUnsupportedScalarKind, scalars.Type)
	}
	buf.Components = max(scalars.NumberOfComponents, 1)
	if buf.Data, err = decodePayload(scalars.Payload, compressed); err != nil {
		return nil, fmt.Errorf("decode scalars: %w", err)
	}

	if doc.ImageData.FieldData != nil {
		for _, a := range doc.ImageData.FieldData.Arrays {
			if a.Type != "Float32" {
				continue
			}
			raw, err := decodePayload(a.Payload, compressed)
			if err != nil {
				return nil, fmt.Errorf("decode field %s: %w", a.Name, err)
			}
			buf.Fields.Set(volume.FieldArray{
				Name:       a.Name,
				Components: max(a.NumberOfComponents, 1),
				Values:     bytesFloat32(raw),
			})
		}
	}

	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("parse vti: %w", err)
	}
	return buf, nil
}

func decodePayload(text string, compressed bool) ([]byte, error) {
	text = strings.TrimSpace(text)
	enc := base64.StdEncoding

	if !compressed {
		raw, err := enc.DecodeString(text)
		if err != nil {
			return nil, err
		}
		if len(raw) < 8 {
			return nil, fmt.Errorf("payload too short")
		}
		size := binary.LittleEndian.Uint64(raw)
		if uint64(len(raw)-8) < size {
			return nil, fmt.Errorf("payload truncated: have %d bytes, header says %d", len(raw)-8, size)
		}
		return raw[8 : 8+size], nil
	}

	// The first three UInt64 values are 24 bytes, exactly 32 base64 characters.
	if len(text) < 32 {
		return nil, fmt.Errorf("compressed header too short")
	}
	head, err := enc.DecodeString(text[:32])
	if err != nil {
		return nil, fmt.Errorf("compressed header: %w", err)
	}
	nblocks := int(binary.LittleEndian.Uint64(head[0:]))
	blockSize := int(binary.LittleEndian.Uint64(head[8:]))
	last := int(binary.LittleEndian.Uint64(head[16:]))

	headerLen := 8 * (3 + nblocks)
	encodedLen := enc.EncodedLen(headerLen)
	if len(text) < encodedLen {
		return nil, fmt.Errorf("compressed header truncated")
	}
	header, err := enc.DecodeString(text[:encodedLen])
	if err != nil {
		return nil, fmt.Errorf("compressed header: %w", err)
	}
	blocks, err := enc.DecodeString(text[encodedLen:])
	if err != nil {
		return nil, fmt.Errorf("compressed blocks: %w", err)
	}

	var out bytes.Buffer
	off := 0
	for i := 0; i < nblocks; i++ {
		csize := int(binary.LittleEndian.Uint64(header[8*(3+i):]))
		if off+csize > len(blocks) {
			return nil, fmt.Errorf("block %d truncated", i)
		}
		zr, err := zlib.NewReader(bytes.NewReader(blocks[off : off+csize]))
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		want := blockSize
		if i == nblocks-1 && last > 0 {
			want = last
		}
		n, err := io.Copy(&out, zr)
		_ = zr.Close()
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		if int(n) != want {
			return nil, fmt.Errorf("block %d: inflated to %d bytes, want %d", i, n, want)
		}
		off += csize
	}
	return out.Bytes(), nil
}

func float32Bytes(vs []float32) []byte {
	out := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

func bytesFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}

func formatInts(vs ...int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

func parseInts(s string, n int) ([]int, error) {
	fields := strings.Fields(s)
	if len(fields) != n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(fields))
	}
	out := make([]int, n)
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	fields := strings.Fields(s)
	if len(fields) != n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(fields))
	}
	out := make([]float64, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

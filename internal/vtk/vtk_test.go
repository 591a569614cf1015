package vtk

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/mrsinham/dicomexporter/internal/volume"
)

func testBuffer(t *testing.T, kind volume.ScalarKind) *volume.Buffer {
	t.Helper()
	buf, err := volume.NewBuffer([3]int{5, 4, 3}, 1, kind)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	for i := range buf.Data {
		buf.Data[i] = byte(i * 7)
	}
	buf.Origin = [3]float64{-10, 2.5, 30}
	buf.Spacing = [3]float64{0.5, 0.75, 2}
	volume.AnnotateWindow(buf, volume.Float(40), volume.Float(400))
	return buf
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"out.vti", FormatVTI},
		{"/tmp/dir/out.vtkjs", FormatVTKJS},
		{"a.b.vti", FormatVTI},
		{"out/volume.vtkjs/", FormatVTKJS},
		{"out/volume.vtkjs//", FormatVTKJS},
		{"out.vti/", FormatVTI},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.path)
		if err != nil {
			t.Fatalf("ParseFormat(%q): %v", tt.path, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}

	for _, bad := range []string{"out.png", "out", "out.VTI", "out.vtk", "out.vti.gz", "", "/", "out/"} {
		if _, err := ParseFormat(bad); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("ParseFormat(%q) error = %v, want ErrUnsupportedFormat", bad, err)
		}
	}
}

func TestFormat_IsDirectory(t *testing.T) {
	if FormatVTI.IsDirectory() {
		t.Error("vti should not be a directory format")
	}
	if !FormatVTKJS.IsDirectory() {
		t.Error("vtkjs should be a directory format")
	}
}

func TestEncodePayload_CompressedBlocks(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 10) // 100 bytes

	tests := []struct {
		name      string
		blockSize int
	}{
		{"partial last block", 32},
		{"exact multiple", 25},
		{"single block", 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := encodePayload(data, true, tt.blockSize)
			if err != nil {
				t.Fatalf("encodePayload: %v", err)
			}
			got, err := decodePayload(text, true)
			if err != nil {
				t.Fatalf("decodePayload: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Error("compressed payload did not round trip")
			}
		})
	}
}

func TestEncodePayload_Empty(t *testing.T) {
	for _, compress := range []bool{false, true} {
		text, err := encodePayload(nil, compress, 16)
		if err != nil {
			t.Fatalf("encodePayload(compress=%t): %v", compress, err)
		}
		got, err := decodePayload(text, compress)
		if err != nil {
			t.Fatalf("decodePayload(compress=%t): %v", compress, err)
		}
		if len(got) != 0 {
			t.Errorf("decoded %d bytes, want 0", len(got))
		}
	}
}

func TestVTI_RoundTrip(t *testing.T) {
	kinds := []volume.ScalarKind{volume.Uint8, volume.Int16, volume.Uint16, volume.Float32}

	for _, kind := range kinds {
		for _, compress := range []bool{false, true} {
			t.Run(kind.String(), func(t *testing.T) {
				buf := testBuffer(t, kind)

				var out bytes.Buffer
				if err := EncodeVTI(&out, buf, compress, 64); err != nil {
					t.Fatalf("EncodeVTI: %v", err)
				}
				if !strings.HasPrefix(out.String(), "<?xml version=\"1.0\"?>\n<VTKFile type=\"ImageData\"") {
					t.Errorf("unexpected document start: %.80q", out.String())
				}
				if got := strings.Contains(out.String(), "vtkZLibDataCompressor"); got != compress {
					t.Errorf("compressor attribute present = %t, want %t", got, compress)
				}

				got, err := DecodeVTI(&out)
				if err != nil {
					t.Fatalf("DecodeVTI: %v", err)
				}
				if diff := cmp.Diff(buf, got); diff != "" {
					t.Errorf("round trip mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestVTI_WindowLevelNaN(t *testing.T) {
	buf := testBuffer(t, volume.Uint8)
	volume.AnnotateWindow(buf, nil, volume.Float(80))

	var out bytes.Buffer
	if err := EncodeVTI(&out, buf, true, DefaultBlockSize); err != nil {
		t.Fatalf("EncodeVTI: %v", err)
	}
	got, err := DecodeVTI(&out)
	if err != nil {
		t.Fatalf("DecodeVTI: %v", err)
	}
	wl, ok := got.Fields.Get(volume.WindowLevelName)
	if !ok {
		t.Fatal("window_level missing")
	}
	if !math.IsNaN(float64(wl.Values[0])) || wl.Values[1] != 80 {
		t.Errorf("window_level = %v, want [NaN 80]", wl.Values)
	}
}

func TestWriter_VTI(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "volume.vti")
	buf := testBuffer(t, volume.Uint16)

	var w Writer
	if err := w.Write(path, buf, WriteOptions{Format: FormatVTI, Compress: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(buf, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("output directory has %d entries, want 1 (no temp files)", len(entries))
	}
}

func TestWriter_VTKJS(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "volume.vtkjs")
	buf := testBuffer(t, volume.Uint16)

	var w Writer
	if err := w.Write(path, buf, WriteOptions{Format: FormatVTKJS}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(path, IndexName))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	var doc jsImageData
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("parse index: %v", err)
	}
	if doc.VtkClass != "vtkImageData" {
		t.Errorf("vtkClass = %q", doc.VtkClass)
	}
	if doc.Extent != [6]int{0, 4, 0, 3, 0, 2} {
		t.Errorf("extent = %v", doc.Extent)
	}

	arr := doc.PointData.Arrays[0].Data
	if arr.DataType != "Uint16Array" || arr.Size != 60 {
		t.Errorf("scalars = %+v", arr)
	}
	blob, err := os.ReadFile(filepath.Join(path, DataDir, arr.Ref.ID))
	if err != nil {
		t.Fatalf("read scalars blob: %v", err)
	}
	if blobID(blob) != arr.Ref.ID {
		t.Errorf("blob id %s does not match content md5 %s", arr.Ref.ID, blobID(blob))
	}

	if doc.FieldData == nil || doc.FieldData.Arrays[0].Data.Name != volume.WindowLevelName {
		t.Fatalf("fieldData = %+v, want window_level", doc.FieldData)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(buf, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "volume.vtkjs" {
		t.Errorf("unexpected entries next to the container: %v", entries)
	}
}

func TestWriter_InvalidBufferLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	buf := testBuffer(t, volume.Uint8)
	buf.Data = buf.Data[:10]

	var w Writer
	for _, f := range Formats() {
		path := filepath.Join(dir, "out."+f.Extension())
		if err := w.Write(path, buf, WriteOptions{Format: f}); err == nil {
			t.Errorf("%v: Write with truncated data should fail", f)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("failed writes left %d entries behind", len(entries))
	}
}

func TestWriter_UnknownFormat(t *testing.T) {
	var w Writer
	err := w.Write(filepath.Join(t.TempDir(), "x.vti"), testBuffer(t, volume.Uint8), WriteOptions{})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Write with zero format error = %v, want ErrUnsupportedFormat", err)
	}
}

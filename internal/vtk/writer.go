package vtk

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mrsinham/dicomexporter/internal/volume"
)

// DefaultBlockSize is the uncompressed size of one zlib block in .vti output.
const DefaultBlockSize = 10 * 1024 * 1024

// ScalarsName is the point data array holding the voxels.
const ScalarsName = "Scalars"

// WriteOptions configures a Writer.Write call.
type WriteOptions struct {
	Format Format

	// Compress enables zlib block compression for FormatVTI. It has no
	// effect on FormatVTKJS, whose blobs are compressed after writing.
	Compress  bool
	BlockSize int
}

// Writer writes buffers to disk. The zero value is ready to use.
type Writer struct {
	Logger *zerolog.Logger
}

func (w *Writer) logger() *zerolog.Logger {
	if w == nil || w.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return w.Logger
}

// Write serializes buf to path in the requested format. Output is staged in a
// temporary sibling and renamed into place, so a failed write leaves nothing
// at path.
func (w *Writer) Write(path string, buf *volume.Buffer, opts WriteOptions) error {
	path = filepath.Clean(path)
	if err := buf.Validate(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	switch opts.Format {
	case FormatVTI:
		blockSize := opts.BlockSize
		if blockSize <= 0 {
			blockSize = DefaultBlockSize
		}
		w.logger().Debug().Str("path", path).Bool("compress", opts.Compress).Int("block_size", blockSize).Msg("writing vti")
		return writeFileAtomic(path, func(f *os.File) error {
			return EncodeVTI(f, buf, opts.Compress, blockSize)
		})
	case FormatVTKJS:
		w.logger().Debug().Str("path", path).Msg("writing vtkjs")
		return writeDirAtomic(path, func(dir string) error {
			return encodeVTKJS(dir, buf)
		})
	default:
		return fmt.Errorf("write %s: %w", path, ErrUnsupportedFormat)
	}
}

func writeFileAtomic(path string, fill func(*os.File) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = fill(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

func writeDirAtomic(path string, fill func(dir string) error) (err error) {
	tmp, err := os.MkdirTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp directory: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(tmp)
		}
	}()

	if err = fill(tmp); err != nil {
		return err
	}
	if err = os.Chmod(tmp, 0755); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

func formatFloats(vs ...float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

func extent(dims [3]int) [6]int {
	return [6]int{0, dims[0] - 1, 0, dims[1] - 1, 0, dims[2] - 1}
}

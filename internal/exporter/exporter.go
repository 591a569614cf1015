// Package exporter runs the conversion pipeline: read a DICOM series,
// reorient it onto an axis-aligned grid, annotate the display window, write
// a VTK container, then post-process the container's blobs.
package exporter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/mrsinham/dicomexporter/internal/dicom"
	"github.com/mrsinham/dicomexporter/internal/geometry"
	"github.com/mrsinham/dicomexporter/internal/postprocess"
	"github.com/mrsinham/dicomexporter/internal/volume"
	"github.com/mrsinham/dicomexporter/internal/vtk"
)

// Source reads a volume and its geometry from a DICOM directory.
type Source interface {
	Read(dir string) (*volume.Buffer, volume.SeriesGeometry, error)
}

// Sink serializes a volume to path.
type Sink interface {
	Write(path string, buf *volume.Buffer, opts vtk.WriteOptions) error
}

// Target describes the requested output. The format follows from the
// extension of Path.
type Target struct {
	Path           string
	Overwrite      bool
	Compress       bool
	ConvertTo12Bit bool
	BlockSize      int // bytes; 0 = vtk.DefaultBlockSize
}

// Result summarises a successful conversion.
type Result struct {
	Format    vtk.Format
	Path      string
	Dims      [3]int
	Spacing   [3]float64
	Origin    [3]float64
	Kind      volume.ScalarKind
	Resliced  bool
	Transform geometry.ResliceTransform
	Packed    int   // blobs packed to 12 bits
	Gzipped   int   // blobs gzip-compressed
	Bytes     int64 // on-disk size of the output
	Replaced  bool  // an existing output was removed first
}

// Converter runs conversions. The zero value reads with dicom.SeriesReader
// and writes with vtk.Writer.
type Converter struct {
	Source Source
	Sink   Sink
	Logger *zerolog.Logger

	// Workers bounds post-processing parallelism (0 = NumCPU, 1 = sequential).
	Workers int

	// ProgressCallback reports post-processed blobs.
	ProgressCallback func(done, total int)
}

// New returns a Converter using the default source and sink, both logging to logger.
func New(logger *zerolog.Logger) *Converter {
	return &Converter{
		Source: &dicom.SeriesReader{Logger: logger},
		Sink:   &vtk.Writer{Logger: logger},
		Logger: logger,
	}
}

func (c *Converter) logger() *zerolog.Logger {
	if c.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return c.Logger
}

// Convert reads the series under dicomDir and writes it to target.
//
// With Overwrite, an existing output is removed before the source is read,
// so a later failure leaves no output at all. Without it, an existing
// output fails the call with OutputExists and is left untouched.
func (c *Converter) Convert(dicomDir string, target Target) (*Result, error) {
	log := c.logger()

	format, err := vtk.ParseFormat(target.Path)
	if err != nil {
		return nil, newError(UnsupportedFormat, "parse output path", err)
	}
	target.Path = filepath.Clean(target.Path)
	res := &Result{Format: format, Path: target.Path}

	if _, err := os.Lstat(target.Path); err == nil {
		if !target.Overwrite {
			return nil, newError(OutputExists, "check output", fmt.Errorf("%s already exists (use overwrite to replace it)", target.Path))
		}
		if err := removeOutput(target.Path, format); err != nil {
			return nil, newError(SinkWriteFailed, "remove existing output", err)
		}
		res.Replaced = true
		log.Info().Str("path", target.Path).Msg("removed existing output")
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, newError(SinkWriteFailed, "check output", err)
	}

	source := c.Source
	if source == nil {
		source = &dicom.SeriesReader{Logger: c.Logger}
	}
	buf, geom, err := source.Read(dicomDir)
	if err != nil {
		if errors.Is(err, volume.ErrUnsupportedScalarKind) {
			return nil, newError(UnsupportedScalarKind, "read series", err)
		}
		return nil, newError(SourceReadFailed, "read series", err)
	}
	log.Info().
		Ints("dims", buf.Dims[:]).
		Str("kind", buf.Kind.String()).
		Int("components", buf.Components).
		Msg("series loaded")

	if spacing, ok := geom.SpacingOverride(); ok {
		log.Debug().Floats64("spacing", spacing[:]).Msg("using spacing from series metadata")
		buf.Spacing = spacing
	}

	buf.Origin = [3]float64{}
	transform, err := geometry.Resolve(geom)
	if err != nil {
		return nil, newError(InvalidGeometry, "resolve orientation", err)
	}
	res.Transform = transform
	if !transform.IsIdentity() {
		log.Debug().Stringer("transform", transform).Msg("reslicing to axis-aligned grid")
		if buf, err = geometry.Reslice(buf, transform); err != nil {
			return nil, newError(InvalidGeometry, "reslice", err)
		}
		res.Resliced = true
	}

	volume.AnnotateWindow(buf, geom.WindowCenter, geom.WindowWidth)

	sink := c.Sink
	if sink == nil {
		sink = &vtk.Writer{Logger: c.Logger}
	}
	opts := vtk.WriteOptions{Format: format, Compress: target.Compress, BlockSize: target.BlockSize}
	if err := sink.Write(target.Path, buf, opts); err != nil {
		return nil, newError(SinkWriteFailed, "write output", err)
	}
	log.Info().Str("path", target.Path).Str("format", format.String()).Msg("volume written")

	pack := target.ConvertTo12Bit && geom.Is12Bit()
	if target.ConvertTo12Bit && !pack {
		log.Warn().Msg("12-bit conversion requested but the series does not store 12 bits, skipping")
	}
	if format.IsDirectory() && (pack || target.Compress) {
		stats, err := postprocess.ProcessDir(filepath.Join(target.Path, vtk.DataDir), postprocess.Options{
			Pack12:           pack,
			Compress:         target.Compress,
			Workers:          c.Workers,
			Logger:           c.Logger,
			ProgressCallback: c.ProgressCallback,
		})
		if err != nil {
			// Half-processed blobs are unreadable, so nothing is left behind.
			_ = removeOutput(target.Path, format)
			if errors.Is(err, postprocess.ErrSizeMismatch) {
				return nil, newError(SizeMismatch, "pack blobs", err)
			}
			return nil, newError(PostProcessFailed, "post-process blobs", err)
		}
		res.Packed, res.Gzipped = stats.Packed, stats.Compressed
		log.Info().Int("files", stats.Files).Bool("pack12", pack).Bool("gzip", target.Compress).Msg("blobs post-processed")
	}

	res.Dims, res.Spacing, res.Origin, res.Kind = buf.Dims, buf.Spacing, buf.Origin, buf.Kind
	res.Bytes = diskUsage(target.Path)
	return res, nil
}

func removeOutput(path string, format vtk.Format) error {
	if format.IsDirectory() {
		return os.RemoveAll(path)
	}
	return os.Remove(path)
}

// diskUsage returns the total size of the regular files at or below path.
func diskUsage(path string) int64 {
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}

// Package vtk serializes voxel buffers as VTK XML ImageData (.vti) files or
// vtk.js directory containers (.vtkjs).
package vtk

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for an output path whose extension names no known container.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Format is the container kind. It is a closed set: add a kind here and in
// every switch over it.
type Format int

const (
	FormatUnknown Format = iota
	FormatVTI            // monolithic XML ImageData file
	FormatVTKJS          // directory with index.json and data/ blobs
)

// Formats lists the supported container kinds.
func Formats() []Format {
	return []Format{FormatVTI, FormatVTKJS}
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatVTI:
		return "vti"
	case FormatVTKJS:
		return "vtkjs"
	default:
		return ""
	}
}

func (f Format) String() string {
	if ext := f.Extension(); ext != "" {
		return ext
	}
	return "unknown"
}

// IsDirectory reports whether the container is written as a directory.
func (f Format) IsDirectory() bool {
	return f == FormatVTKJS
}

// ParseFormat selects the container from the extension of path. The
// extension must match exactly; "out.VTI" is not accepted. Trailing path
// separators are ignored, so "out.vtkjs/" names a vtk.js directory.
func ParseFormat(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(strings.TrimRight(path, "/"+string(filepath.Separator))), ".")
	for _, f := range Formats() {
		if f.Extension() == ext {
			return f, nil
		}
	}
	if ext == "" {
		return FormatUnknown, fmt.Errorf("%w: %q has no extension (want one of %s)", ErrUnsupportedFormat, path, extensionList())
	}
	return FormatUnknown, fmt.Errorf("%w: %q (want one of %s)", ErrUnsupportedFormat, ext, extensionList())
}

func extensionList() string {
	var exts []string
	for _, f := range Formats() {
		exts = append(exts, "."+f.Extension())
	}
	return strings.Join(exts, ", ")
}

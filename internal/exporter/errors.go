package exporter

import (
	"errors"
	"fmt"
)

// Kind classifies why a conversion failed.
type Kind int

const (
	KindUnknown Kind = iota
	UnsupportedFormat
	OutputExists
	SourceReadFailed
	UnsupportedScalarKind
	SizeMismatch
	SinkWriteFailed
	InvalidGeometry
	PostProcessFailed
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	UnsupportedFormat:     "unsupported format",
	OutputExists:          "output exists",
	SourceReadFailed:      "source read failed",
	UnsupportedScalarKind: "unsupported scalar kind",
	SizeMismatch:          "size mismatch",
	SinkWriteFailed:       "sink write failed",
	InvalidGeometry:       "invalid geometry",
	PostProcessFailed:     "post-processing failed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is returned by Converter.Convert. Op names the pipeline step.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind carried by err, or KindUnknown if err is not
// (and does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

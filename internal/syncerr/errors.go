// Package syncerr defines the failure kinds a sync job can end with.
//
// Kinds are attached as cockroachdb/errors marks, so a wrapped error still
// answers errors.Is(err, ErrSinkWrite) after any amount of extra context.
package syncerr

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrConfiguration       = errors.New("configuration error")
	ErrSourceUnreachable   = errors.New("source unreachable")
	ErrSourceShapeMismatch = errors.New("source shape mismatch")
	ErrRowCoercion         = errors.New("row coercion failure")
	ErrSinkWrite           = errors.New("sink write failure")
	ErrNoData              = errors.New("no data")
)

func Configuration(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfiguration)
}

func SourceUnreachable(err error, format string, args ...any) error {
	return mark(err, ErrSourceUnreachable, format, args...)
}

func ShapeMismatch(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrSourceShapeMismatch)
}

func RowCoercion(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrRowCoercion)
}

func SinkWrite(err error, format string, args ...any) error {
	return mark(err, ErrSinkWrite, format, args...)
}

func mark(err error, kind error, format string, args ...any) error {
	if err == nil {
		return errors.Mark(errors.Newf(format, args...), kind)
	}
	return errors.Mark(errors.Wrapf(err, format, args...), kind)
}

// Kind names the failure class of err for logs and events.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrSourceUnreachable):
		return "source_unreachable"
	case errors.Is(err, ErrSourceShapeMismatch):
		return "source_shape_mismatch"
	case errors.Is(err, ErrRowCoercion):
		return "row_coercion"
	case errors.Is(err, ErrSinkWrite):
		return "sink_write"
	case errors.Is(err, ErrNoData):
		return "no_data"
	default:
		return "unknown"
	}
}

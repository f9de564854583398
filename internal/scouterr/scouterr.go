// Package scouterr defines the error taxonomy shared by every rustscout
// subsystem.
//
// Each error carries a Kind so callers can branch on the class of failure
// without string matching, while the wrapped cause stays reachable through
// errors.Is/errors.As. IO classifies a filesystem error into the
// not-found, permission-denied or generic I/O kind.
package scouterr

import (
	"errors"
	"fmt"
	"os"
)

// Kind classifies an error.
type Kind int

const (
	// KindInvalidPattern covers bad regexes, missing boundary markers, and
	// out-of-range capture references.
	KindInvalidPattern Kind = iota
	// KindFileNotFound is a missing file or directory.
	KindFileNotFound
	// KindPermissionDenied is an access failure.
	KindPermissionDenied
	// KindIO is any other filesystem error.
	KindIO
	// KindConfig covers invalid modes, incompatible flags, missing fields,
	// and plan-construction violations such as overlapping tasks.
	KindConfig
	// KindSerialization covers malformed undo records and workspace metadata.
	KindSerialization
	// KindCache covers VCS probe failures and corrupt cache files.
	KindCache
)

// String returns the stable name used in structured output.
func (k Kind) String() string {
	switch k {
	case KindInvalidPattern:
		return "invalid-pattern"
	case KindFileNotFound:
		return "file-not-found"
	case KindPermissionDenied:
		return "permission-denied"
	case KindIO:
		return "io"
	case KindConfig:
		return "config"
	case KindSerialization:
		return "serialization"
	case KindCache:
		return "cache"
	}
	return "unknown"
}

// Error is a classified rustscout error. Path is set when the error is
// tied to a specific file.
type Error struct {
	Kind Kind
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Path)
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Is treats two scouterr errors with the same Kind as equivalent, so
// callers can match with errors.Is(err, &Error{Kind: KindConfig}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Path == "" || t.Path == e.Path)
}

// IsKind reports whether err (or anything it wraps) is a scouterr error
// of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}

// KindOf returns the kind of err, or KindIO if err is not classified.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindIO
}

// InvalidPattern reports a pattern that cannot be compiled or used.
func InvalidPattern(format string, args ...any) error {
	return &Error{Kind: KindInvalidPattern, Msg: fmt.Sprintf(format, args...)}
}

// Config reports an invalid configuration or plan-construction violation.
func Config(format string, args ...any) error {
	return &Error{Kind: KindConfig, Msg: fmt.Sprintf(format, args...)}
}

// Serialization wraps a marshalling or unmarshalling failure.
func Serialization(msg string, err error) error {
	return &Error{Kind: KindSerialization, Msg: msg, Err: err}
}

// Cache wraps a cache or VCS-probe failure.
func Cache(msg string, err error) error {
	return &Error{Kind: KindCache, Msg: msg, Err: err}
}

// IO classifies a filesystem error for path. Not-found and
// permission-denied get their own kinds; everything else is KindIO.
func IO(path string, err error) error {
	if err == nil {
		return nil
	}
	kind := KindIO
	switch {
	case errors.Is(err, os.ErrNotExist):
		kind = KindFileNotFound
	case errors.Is(err, os.ErrPermission):
		kind = KindPermissionDenied
	}
	return &Error{Kind: kind, Path: path, Err: err}
}

// FileError is one entry in an aggregate failure report: the file it
// concerns, the error class, and the message.
type FileError struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewFileError builds a FileError from any error.
func NewFileError(path string, err error) FileError {
	return FileError{Path: path, Kind: KindOf(err).String(), Message: err.Error()}
}

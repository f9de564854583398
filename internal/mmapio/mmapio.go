// Package mmapio memory-maps files read-only for the large-file search
// and replace strategies. Platforms without a POSIX mmap report
// ErrUnsupported and callers fall back to buffered I/O.
package mmapio

import "errors"

// ErrUnsupported signals that this platform has no usable mmap.
var ErrUnsupported = errors.New("mmap unsupported on this platform")

//go:build !unix

package mmapio

// Map always fails on this platform; callers fall back to buffered
// reading.
func Map(string) ([]byte, func(), error) {
	return nil, nil, ErrUnsupported
}

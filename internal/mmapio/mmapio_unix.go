//go:build unix

package mmapio

import (
	"os"

	"golang.org/x/sys/unix"
)

// Map maps the file at path read-only. The returned done func unmaps
// it; data must not be used afterwards. Empty files cannot be mapped
// and are returned as an empty slice with a no-op cleanup.
func Map(path string) (data []byte, done func(), err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size := info.Size()
	if size == 0 {
		return nil, func() {}, nil
	}

	data, err = unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, func() { _ = unix.Munmap(data) }, nil
}

//go:build unix

package mmap

import (
	"golang.org/x/sys/unix"
)

// New creates a new memory mapping for the given file descriptor at a
// page-aligned offset. ulog callers always pass offset 0: writer/follower
// handles map the full MaxLogLen reservation and grow the backing file in
// place (mapfile.go), while an inspector maps the exact file length.
func New(fd int, offset int64, length int, writable bool) (*Map, error) {
	if length <= 0 {
		return nil, ErrInvalidSize
	}

	prot := unix.PROT_READ
	flags := unix.MAP_PRIVATE
	if writable {
		prot |= unix.PROT_WRITE
		flags = unix.MAP_SHARED
	}

	data, err := unix.Mmap(fd, offset, length, prot, flags)
	if err != nil {
		return nil, &Error{Op: "mmap", Err: err}
	}

	return &Map{
		data:     data,
		fd:       fd,
		size:     int64(length),
		writable: writable,
	}, nil
}

// Sync flushes the full mapping to disk synchronously.
func (m *Map) Sync() error {
	if m.data == nil {
		return ErrNotMapped
	}
	return unix.Msync(m.data, unix.MS_SYNC)
}

// SyncRange flushes a byte range to disk synchronously. Callers are
// responsible for page-aligning offset/length (spec section 4.E); this
// is the primitive sync_slot and sync_header are built from.
func (m *Map) SyncRange(offset, length int64) error {
	if m.data == nil {
		return ErrNotMapped
	}
	if offset < 0 || length < 0 || offset+length > m.size {
		return ErrInvalidRange
	}
	return unix.Msync(m.data[offset:offset+length], unix.MS_SYNC)
}

// Close releases the memory mapping.
func (m *Map) Close() error {
	if m.data == nil {
		return nil
	}

	err := unix.Munmap(m.data)
	m.data = nil
	m.size = 0
	return err
}

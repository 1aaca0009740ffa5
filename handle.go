package ulog

import (
	"os"
	"sync"

	"github.com/opencreds/ulog/codec"
	"github.com/opencreds/ulog/mmap"
	"github.com/opencreds/ulog/store"
)

// Role mirrors the source's iprop_role: a process declares whether it is
// the primary writer, a follower, or neither (spec section 6/9, design
// note on the role-toggle trick).
type Role int

const (
	// RoleNone means the caller does not participate in replication:
	// Lock is a no-op (spec section 4.C) and Replay never mirrors.
	RoleNone Role = iota
	// RolePrimary is the single logical writer.
	RolePrimary
	// RoleFollower consumes updates pulled from a primary and mirrors
	// them into its own local log.
	RoleFollower
)

// inspector is a read-only caller that must fail on a missing file
// (spec section 4.B, "FKPROPLOG" in the source) rather than create one.
// It is not part of the exported Role enum because it never writes and
// never holds the handle past a single read.
type callerKind int

const (
	callerWriter callerKind = iota
	callerInspector
)

// LogHandle is the explicit, passed-everywhere state that replaces the
// source's global kdblog_context/pagesize (design note: "global writable
// state"). One LogHandle corresponds to one mapped ulog file.
type LogHandle struct {
	mu sync.Mutex // serializes operations within this process; flock serializes across processes

	path     string
	file     *os.File
	lockFile *os.File // separate advisory-lock file; see lockunix.go/lockwindows.go
	mapping  *mmap.Map
	pagesize int
	capacity uint32
	role     Role
	codec    codec.Codec
	store    store.PrincipalStore // principal_store capability (spec section 1); nil for read-only inspectors

	headerSize int64 // page-aligned size of the header region
}

// Capacity returns the ring's configured slot count.
func (h *LogHandle) Capacity() uint32 {
	return h.capacity
}

// Role returns the handle's current role.
func (h *LogHandle) Role() Role {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.role
}

// SetRole changes the handle's role (spec section 6/9: "ulog_set_role").
// Safe to call from any goroutine: it takes h.mu, so it waits for any
// operation in progress on this handle. Recovery's role suppression does
// not go through SetRole; Check assigns the field directly while it
// already holds h.mu.
func (h *LogHandle) SetRole(role Role) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.role = role
}

// header reads the current header from the mapping.
func (h *LogHandle) header() Header {
	return decodeHeader(h.mapping.Data()[:headerEncodedSize])
}

// setHeader writes hdr into the mapping (does not sync).
func (h *LogHandle) setHeader(hdr Header) {
	encodeHeader(h.mapping.Data()[:headerEncodedSize], hdr)
}

// slot returns a SlotView over ring index i for the given block size.
func (h *LogHandle) slot(i uint32, block uint32) SlotView {
	off := slotOffset(h.headerSize, i, block)
	return newSlotView(h.mapping.Data()[off : off+int64(block)])
}

// Close releases the mapping and file handles. Closing the lock file
// also drops any advisory lock this handle still holds on it.
func (h *LogHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	if h.mapping != nil {
		if err := h.mapping.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		h.mapping = nil
	}
	if h.lockFile != nil {
		if err := h.lockFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		h.lockFile = nil
	}
	if h.file != nil {
		if err := h.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		h.file = nil
	}
	return firstErr
}

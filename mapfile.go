package ulog

import (
	"os"
	"syscall"

	"github.com/opencreds/ulog/codec"
	"github.com/opencreds/ulog/mmap"
	"github.com/opencreds/ulog/store"
)

// sysPageSize is the system's memory page size, cached at init time,
// matching the teacher's sysPageSize (env.go).
var sysPageSize = syscall.Getpagesize()

// Map opens or creates the ulog file at path and memory-maps it for a
// writer or follower (spec section 4.B). capacity is the ring's slot
// count and must be >= MinCapacity. role is the replication role the
// handle starts in. ps is the principal_store capability Recovery and
// Replay drive (spec section 1); it must be non-nil for any role other
// than RoleNone. Recovery runs automatically before Map returns for any
// role other than RoleNone.
func Map(path string, capacity uint32, role Role, ps store.PrincipalStore) (*LogHandle, error) {
	if role != RoleNone && ps == nil {
		return nil, NewError(ErrLogError, "principal store is required for primary/follower roles")
	}
	return mapLog(path, capacity, role, callerWriter, ps)
}

// MapReadOnly opens an existing ulog file for read-only inspection
// (spec section 4.B, "read-only inspector"): it never creates the file
// and maps MAP_PRIVATE at the file's exact current length, mirroring
// the source's FKPROPLOG caller. It never runs Recovery.
func MapReadOnly(path string, capacity uint32) (*LogHandle, error) {
	return mapLog(path, capacity, RoleNone, callerInspector, nil)
}

func mapLog(path string, capacity uint32, role Role, kind callerKind, ps store.PrincipalStore) (*LogHandle, error) {
	if capacity < MinCapacity {
		return nil, NewError(ErrLogError, "capacity must be >= MinCapacity")
	}

	headerSize := headerRegionSize(sysPageSize)

	if kind == callerInspector {
		return mapInspector(path, capacity, headerSize)
	}
	return mapWriter(path, capacity, role, headerSize, ps)
}

func mapInspector(path string, capacity uint32, headerSize int64) (*LogHandle, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewError(ErrLogError, "ulog file not found")
		}
		return nil, WrapError(ErrLogError, "open ulog file", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, WrapError(ErrLogError, "stat ulog file", err)
	}

	m, err := mmap.New(int(f.Fd()), 0, int(info.Size()), false)
	if err != nil {
		f.Close()
		return nil, WrapError(ErrLogError, "mmap ulog file", err)
	}

	h := &LogHandle{
		path:       path,
		file:       f,
		mapping:    m,
		pagesize:   sysPageSize,
		capacity:   capacity,
		role:       RoleNone,
		headerSize: headerSize,
	}

	hdr := h.header()
	if hdr.Magic != 0 && hdr.Magic != headerMagic {
		h.Close()
		return nil, ErrCorrupt
	}
	return h, nil
}

func mapWriter(path string, capacity uint32, role Role, headerSize int64, ps store.PrincipalStore) (*LogHandle, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, WrapError(ErrLogError, "open ulog file", err)
	}

	required := headerSize + int64(capacity)*int64(ULOGBlock)
	if required > MaxLogLen {
		f.Close()
		return nil, NewError(ErrLogError, "capacity exceeds MaxLogLen at default block size")
	}
	if err := extendFile(f, required); err != nil {
		f.Close()
		return nil, err
	}

	lockPath := path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		f.Close()
		return nil, WrapError(ErrLogError, "open ulog lock file", err)
	}

	m, err := mmap.New(int(f.Fd()), 0, int(MaxLogLen), true)
	if err != nil {
		lockFile.Close()
		f.Close()
		return nil, WrapError(ErrLogError, "mmap ulog file", err)
	}

	h := &LogHandle{
		path:       path,
		file:       f,
		lockFile:   lockFile,
		mapping:    m,
		pagesize:   sysPageSize,
		capacity:   capacity,
		role:       role,
		codec:      codec.BinaryCodec{},
		store:      ps,
		headerSize: headerSize,
	}

	if err := h.openHeader(capacity); err != nil {
		h.Close()
		return nil, err
	}

	if role != RoleNone {
		if err := h.Lock(LockExclusive); err != nil {
			h.Close()
			return nil, err
		}
		err := h.Check()
		unlockErr := h.Unlock()
		if err != nil {
			h.Close()
			return nil, err
		}
		if unlockErr != nil {
			h.Close()
			return nil, unlockErr
		}
	}

	return h, nil
}

// openHeader validates or installs the header, and reconciles a changed
// capacity against the stored live window (spec section 4.B).
func (h *LogHandle) openHeader(capacity uint32) error {
	hdr := h.header()

	if hdr.Magic == 0 {
		hdr = Header{
			Magic:   headerMagic,
			Version: headerVersion,
			State:   Stable,
			Block:   ULOGBlock,
		}
		h.setHeader(hdr)
		if err := h.syncHeader(); err != nil {
			return err
		}
		return nil
	}

	if hdr.Magic != headerMagic {
		hdr.State = Corrupt
		h.setHeader(hdr)
		_ = h.syncHeader()
		return ErrCorrupt
	}

	if hdr.Num != capacity {
		reset := hdr.Num > capacity
		if !reset && hdr.Num > 0 {
			reset = hdr.FirstSNO < hdr.LastSNO-uint64(hdr.Num)+1
		}
		if reset {
			hdr = Header{
				Magic:   headerMagic,
				Version: headerVersion,
				State:   Stable,
				Block:   hdr.Block,
			}
			if hdr.Block == 0 {
				hdr.Block = ULOGBlock
			}
			h.setHeader(hdr)
			if err := h.syncHeader(); err != nil {
				return err
			}
		} else {
			required := h.headerSize + int64(capacity)*int64(hdr.Block)
			if err := extendFile(h.file, required); err != nil {
				return err
			}
		}
	}

	return nil
}

//go:build windows

package ulog

import (
	"golang.org/x/sys/windows"
)

// LockMode selects the lock mode Lock acquires (spec section 4.C).
type LockMode int

const (
	LockShared LockMode = iota
	LockExclusive
)

// lockFD acquires a non-blocking, whole-file lock in the given mode,
// following the teacher's Windows lock path (lock_windows.go:
// tryLockWriter) — LockFileEx with LOCKFILE_FAIL_IMMEDIATELY, collapsing
// ERROR_LOCK_VIOLATION to ErrBusy rather than a hard error.
func lockFD(fd int, mode LockMode) error {
	handle := windows.Handle(fd)
	flags := uint32(windows.LOCKFILE_FAIL_IMMEDIATELY)
	if mode == LockExclusive {
		flags |= windows.LOCKFILE_EXCLUSIVE_LOCK
	}

	var overlapped windows.Overlapped
	err := windows.LockFileEx(handle, flags, 0, 1, 0, &overlapped)
	if err == nil {
		return nil
	}
	if err == windows.ERROR_LOCK_VIOLATION {
		return ErrBusy
	}
	return WrapError(ErrLogError, "LockFileEx", err)
}

// unlockFD releases whatever lock fd currently holds.
func unlockFD(fd int) error {
	handle := windows.Handle(fd)
	var overlapped windows.Overlapped
	if err := windows.UnlockFileEx(handle, 0, 1, 0, &overlapped); err != nil {
		return WrapError(ErrLogError, "UnlockFileEx", err)
	}
	return nil
}

// Lock acquires the whole-file advisory lock in the given mode. A
// RoleNone handle never contends for the lock (spec section 4.C).
func (h *LogHandle) Lock(mode LockMode) error {
	h.mu.Lock()
	role := h.role
	lockFile := h.lockFile
	h.mu.Unlock()

	if role == RoleNone {
		return nil
	}
	return lockFD(int(lockFile.Fd()), mode)
}

// Unlock releases the lock acquired by Lock.
func (h *LogHandle) Unlock() error {
	h.mu.Lock()
	role := h.role
	lockFile := h.lockFile
	h.mu.Unlock()

	if role == RoleNone {
		return nil
	}
	return unlockFD(int(lockFile.Fd()))
}

package ulog

import (
	"fmt"
	"os"
)

// extendFile grows f to at least newSize bytes by writing zeros from the
// current end of file (spec section 4.A). It never truncates and it
// refuses to grow past maxFileSize.
func extendFile(f *os.File, newSize int64) error {
	if newSize > maxFileSize {
		return NewError(ErrLogError, fmt.Sprintf("requested size %d exceeds maximum %d", newSize, maxFileSize))
	}

	info, err := f.Stat()
	if err != nil {
		return WrapError(ErrLogError, "stat log file", err)
	}
	if info.Size() >= newSize {
		return nil
	}

	const zeroChunk = 64 * 1024
	var zeros [zeroChunk]byte

	remaining := newSize - info.Size()
	if _, err := f.Seek(0, os.SEEK_END); err != nil {
		return WrapError(ErrLogError, "seek to end of log file", err)
	}
	for remaining > 0 {
		n := int64(zeroChunk)
		if remaining < n {
			n = remaining
		}
		written, err := f.Write(zeros[:n])
		if err != nil {
			return WrapError(ErrLogError, "extend log file", err)
		}
		remaining -= int64(written)
	}
	return nil
}

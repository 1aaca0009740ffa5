package ulog

import "fmt"

// roundUpBlock returns the smallest multiple of ULOGBlock that is >=
// size (spec section 4.G).
func roundUpBlock(size uint32) uint32 {
	if size == 0 {
		return ULOGBlock
	}
	n := (size + ULOGBlock - 1) / ULOGBlock
	return n * ULOGBlock
}

// resize reinitialises the ring with a block size large enough to hold
// recordSize, discarding all existing history (spec section 4.G). The
// caller must hold the exclusive lock.
func (h *LogHandle) resize(recordSize uint32) error {
	newBlock := roundUpBlock(recordSize)

	required := h.headerSize + int64(h.capacity)*int64(newBlock)
	if required > MaxLogLen {
		return NewError(ErrLogError, fmt.Sprintf("resized log (%d bytes) exceeds MaxLogLen (%d)", required, MaxLogLen))
	}

	hdr := Header{
		Magic:   headerMagic,
		Version: headerVersion,
		State:   Stable,
		Block:   newBlock,
	}
	h.setHeader(hdr)
	if err := h.syncHeader(); err != nil {
		return err
	}

	if err := extendFile(h.file, required); err != nil {
		return err
	}
	return nil
}

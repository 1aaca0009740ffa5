package ulog

import (
	"fmt"
	"log"
	"os"
)

// abortHook is called by syncHeader on a flush failure, immediately
// before the process aborts (spec section 4.E / 9: "abort() on sync
// failure... expose it as an injectable hook for tests so abort can be
// observed"). Production code leaves it at its default; tests replace
// it to observe the abort decision without actually killing the test
// binary.
var abortHook = func(err error) {
	log.Printf("ulog: header sync failed, aborting: %v", err)
	os.Exit(2)
}

// syncSlot flushes the page-aligned region covering slot i to stable
// storage (spec section 4.E).
func (h *LogHandle) syncSlot(i uint32, block uint32) error {
	off := slotOffset(h.headerSize, i, block)
	end := off + int64(block)
	if ps := int64(h.pagesize); ps > 0 {
		off -= off % ps
	}
	if err := h.mapping.SyncRange(off, end-off); err != nil {
		return WrapError(ErrLogError, "sync slot", err)
	}
	return nil
}

// syncHeader flushes the header's page to stable storage. A failure
// here is fatal: a torn header write leaves every other process unable
// to distinguish a live append from corruption, so the policy is to
// abort rather than continue (spec section 4.E, 5, 9).
func (h *LogHandle) syncHeader() error {
	if err := h.mapping.SyncRange(0, h.headerSize); err != nil {
		abortHook(fmt.Errorf("sync_header: %w", err))
		return WrapError(ErrLogError, "sync header", err)
	}
	return nil
}

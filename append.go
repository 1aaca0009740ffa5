package ulog

import (
	"time"

	"github.com/opencreds/ulog/codec"
)

func nowTimestamp() Timestamp {
	now := time.Now()
	return Timestamp{Seconds: now.Unix(), Micros: int64(now.Nanosecond() / 1000)}
}

// AddUpdate appends one update to the log (spec section 4.F). The
// caller must hold the exclusive lock (spec section 5: "Appender
// acquires exclusive before step 1 and releases after step 10" — Lock
// is the caller's responsibility so that a batch of appends can share
// one acquisition).
func (h *LogHandle) AddUpdate(u codec.Update) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ts := nowTimestamp()

	encodedSize := h.codec.Size(u)
	recordSize := slotFixedSize + encodedSize

	hdr := h.header()

	if uint32(recordSize) > hdr.Block {
		if err := h.resize(uint32(recordSize)); err != nil {
			return err
		}
		hdr = h.header()
	}

	newSNO := hdr.LastSNO + 1
	if hdr.LastSNO == MaxSNO || hdr.LastSNO == 0 || hdr.Num > h.capacity {
		hdr.Num = 0
		newSNO = 1
	}

	idx := slotIndex(newSNO, h.capacity)
	slot := h.slot(idx, hdr.Block)

	payload := h.codec.Encode(u)

	slot.Reset()
	slot.WriteEntry(newSNO, ts, false, payload)

	// Fold the num/first_*/last_* bookkeeping (spec steps 9-10) into the
	// same header write as the unstable transition (step 6), rather than
	// applying it only after the final header sync (step 8) as the
	// numbered list's literal order would suggest. Recovery's scan
	// window is derived entirely from last_sno/num, so if those fields
	// lagged behind the slot write, a crash between "slot written
	// uncommitted" and "slot marked committed" could leave a durable,
	// uncommitted tail slot that Recovery's window never reaches — the
	// exact case scenario 4 requires Recovery to repair. See DESIGN.md.
	var newFirstSNO uint64
	var newFirstTime Timestamp
	if hdr.Num >= h.capacity {
		nextIdx := slotIndex(newSNO+1, h.capacity)
		oldest := h.slot(nextIdx, hdr.Block)
		newFirstSNO = oldest.SNO()
		newFirstTime = oldest.Time()
	}
	hdr = advanceWindow(hdr, h.capacity, newSNO, ts, newFirstSNO, newFirstTime)

	hdr.State = Unstable
	h.setHeader(hdr)
	if err := h.syncSlot(idx, hdr.Block); err != nil {
		return err
	}
	if err := h.syncHeader(); err != nil {
		return err
	}

	slot.SetCommitted(true)
	hdr.State = Stable
	h.setHeader(hdr)

	if err := h.syncSlot(idx, hdr.Block); err != nil {
		return err
	}
	return h.syncHeader()
}

// DeleteUpdate appends a delete update (spec section 4.F, "a delete is
// an add_update whose payload's deleted flag is true").
func (h *LogHandle) DeleteUpdate(principal string) error {
	return h.AddUpdate(codec.Update{Deleted: true, Principal: principal})
}

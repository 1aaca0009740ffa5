package ulog

import (
	"github.com/opencreds/ulog/codec"
	"github.com/opencreds/ulog/store"
)

// ReplayEntry pairs an update with the serial number and timestamp that
// identify it (spec section 3/4.I). Recovery's self-replay and a
// follower's pulled batch both carry this identity alongside the
// update itself: the mirrored copy a follower writes into its own ring
// must occupy slot (sno-1) mod capacity for the *primary's* sno, not a
// freshly incremented follower-local counter.
type ReplayEntry struct {
	SNO    uint64
	Time   Timestamp
	Update codec.Update
}

// Replay applies a vector of updates (put or delete) to the principal
// store, in order; on a follower role it also mirrors each update into
// its own log ring at the update's own SNO (spec section 4.I). entries
// are expected to arrive in SNO order from the primary; Replay does not
// reorder them.
func (h *LogHandle) Replay(entries []ReplayEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.role == RoleFollower {
		// the in-process mutex above already serializes this handle;
		// the flock additionally serializes other processes sharing
		// the same file (spec section 5). lockFD/unlockFD are used
		// directly (rather than Lock/Unlock) because h.mu is already
		// held and Lock/Unlock re-acquire it.
		if err := lockFD(int(h.lockFile.Fd()), LockExclusive); err != nil {
			return err
		}
		defer unlockFD(int(h.lockFile.Fd()))
	}

	return h.replayLocked(entries)
}

// replayLocked is the body of Replay, callable while h.mu is already
// held (Recovery calls this directly — the design note's alternative of
// splitting "apply_to_store" from "apply_and_mirror": Recovery always
// runs with role temporarily forced to RoleNone, so the mirror branch
// below never fires during self-heal).
func (h *LogHandle) replayLocked(entries []ReplayEntry) error {
	if h.store == nil {
		return NewError(ErrLogError, "replay requires a principal store")
	}

	if err := h.store.LockExclusive(); err != nil {
		return err
	}
	defer h.store.Unlock()

	for _, e := range entries {
		u := e.Update
		if u.Deleted {
			if err := h.store.Delete(u.Principal); err != nil {
				return WrapError(ErrLogError, "apply delete", err)
			}
		} else {
			if err := h.store.Put(store.Record{Principal: u.Principal, Data: u.Data}); err != nil {
				return WrapError(ErrLogError, "apply put", err)
			}
		}

		if h.role == RoleFollower {
			if err := h.mirror(e); err != nil {
				return err
			}
		}
	}

	return nil
}

// mirror writes one update into this (follower) log's own ring at the
// slot its own SNO addresses, keeping num/first_*/last_* consistent via
// advanceWindow exactly as Appender does (spec section 4.I).
func (h *LogHandle) mirror(e ReplayEntry) error {
	hdr := h.header()

	encodedSize := h.codec.Size(e.Update)
	recordSize := slotFixedSize + encodedSize
	if uint32(recordSize) > hdr.Block {
		if err := h.resize(uint32(recordSize)); err != nil {
			return err
		}
		hdr = h.header()
	}

	sno := e.SNO
	ts := e.Time

	idx := slotIndex(sno, h.capacity)
	slot := h.slot(idx, hdr.Block)
	payload := h.codec.Encode(e.Update)

	slot.Reset()
	slot.WriteEntry(sno, ts, true, payload)
	if err := h.syncSlot(idx, hdr.Block); err != nil {
		return err
	}

	var newFirstSNO uint64
	var newFirstTime Timestamp
	full := hdr.Num >= h.capacity
	if full {
		nextIdx := slotIndex(sno+1, h.capacity)
		oldest := h.slot(nextIdx, hdr.Block)
		if oldest.Magic() != slotMagic {
			// the slot we are about to call "first" was never
			// written: collapse to a single-entry window rather than
			// publish a bogus first_sno (spec section 4.I, open
			// question on this exact behaviour — see DESIGN.md).
			hdr.Num = 1
			hdr.FirstSNO = sno
			hdr.FirstTime = ts
			hdr.LastSNO = sno
			hdr.LastTime = ts
			h.setHeader(hdr)
			return h.syncHeader()
		}
		newFirstSNO = oldest.SNO()
		newFirstTime = oldest.Time()
	}

	hdr = advanceWindow(hdr, h.capacity, sno, ts, newFirstSNO, newFirstTime)

	if hdr.Num > h.capacity {
		hdr.Num = 1
		hdr.FirstSNO = sno
		hdr.FirstTime = ts
	}

	h.setHeader(hdr)
	return h.syncHeader()
}

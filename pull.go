package ulog

import (
	"time"

	"github.com/opencreds/ulog/codec"
)

// LastSeen is a follower's bookmark into the log: the SNO and timestamp
// of the last update it has applied (spec section 4.J).
type LastSeen struct {
	SNO  uint64
	Time Timestamp
}

// PullStatus is the outcome of GetEntries (spec section 4.J).
type PullStatus int

const (
	// PullNil means the follower is already current.
	PullNil PullStatus = iota
	// PullBusy means retry later; never indicates a problem with the log.
	PullBusy
	// PullOK carries an ordered vector of updates to apply.
	PullOK
	// PullFullResync means the follower's bookmark can no longer be
	// reconciled incrementally; it must re-snapshot from the primary.
	PullFullResync
	// PullError is a protocol or corruption failure.
	PullError
)

// PulledEntry is one update returned by a successful pull, tagged with
// its SNO and timestamp so the follower can advance its own bookmark
// entry-by-entry if it chooses to.
type PulledEntry struct {
	SNO   uint64
	Time  Timestamp
	Value codec.Update
}

// PullResponse is the result of GetEntries.
type PullResponse struct {
	Status  PullStatus
	Updates []PulledEntry
	NewLast LastSeen
	Err     error
}

// GetEntries computes the incremental-update response for a follower
// given its last-seen bookmark (spec section 4.J). It acquires the
// ulog lock shared and non-blocking, degrading to PullBusy rather than
// queuing, and the principal store lock shared from the history-window
// check until it returns.
func (h *LogHandle) GetEntries(lastSeen LastSeen) PullResponse {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := lockFD(int(h.lockFile.Fd()), LockShared); err != nil {
		if IsBusy(err) {
			return PullResponse{Status: PullBusy}
		}
		return PullResponse{Status: PullError, Err: err}
	}
	defer unlockFD(int(h.lockFile.Fd()))

	hdr := h.header()

	if hdr.State == Corrupt {
		return PullResponse{Status: PullError, Err: ErrCorrupt}
	}

	now := time.Now()
	if now.Unix()-hdr.LastTime.Seconds <= int64(IdleDebounce/time.Second) {
		return PullResponse{Status: PullBusy}
	}

	if hdr.Num == 0 && hdr.LastSNO == 0 {
		return PullResponse{Status: PullBusy}
	}
	if hdr.LastSNO == 0 {
		return PullResponse{Status: PullError, Err: NewError(ErrLogError, "last_sno is zero with a nonempty window")}
	}

	if h.store == nil {
		return PullResponse{Status: PullError, Err: NewError(ErrLogError, "pull requires a principal store")}
	}
	if err := h.store.LockShared(); err != nil {
		return PullResponse{Status: PullError, Err: err}
	}
	defer h.store.Unlock()

	newLast := LastSeen{SNO: hdr.LastSNO, Time: hdr.LastTime}

	s := lastSeen.SNO
	if s > hdr.LastSNO || s < hdr.FirstSNO || s == 0 {
		return PullResponse{Status: PullFullResync, NewLast: newLast}
	}

	switch {
	case s == hdr.LastSNO:
		if !lastSeen.Time.Equal(hdr.LastTime) {
			return PullResponse{Status: PullFullResync, NewLast: newLast}
		}
		return PullResponse{Status: PullNil}
	case s == hdr.FirstSNO:
		if !lastSeen.Time.Equal(hdr.FirstTime) {
			return PullResponse{Status: PullFullResync, NewLast: newLast}
		}
	default:
		idx := slotIndex(s, h.capacity)
		slot := h.slot(idx, hdr.Block)
		if !lastSeen.Time.Equal(slot.Time()) {
			return PullResponse{Status: PullFullResync, NewLast: newLast}
		}
	}

	count := hdr.LastSNO - s
	entries := make([]PulledEntry, 0, count)
	for k := uint64(1); k <= count; k++ {
		sno := s + k
		idx := slotIndex(sno, h.capacity)
		slot := h.slot(idx, hdr.Block)

		u, err := h.codec.Decode(slot.Payload())
		if err != nil {
			return PullResponse{Status: PullError, Err: WrapError(ErrLogConv, "decode pulled entry", err)}
		}
		entries = append(entries, PulledEntry{SNO: slot.SNO(), Time: slot.Time(), Value: u})
	}

	return PullResponse{Status: PullOK, Updates: entries, NewLast: newLast}
}

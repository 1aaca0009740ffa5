package ulog

import (
	"testing"

	"github.com/opencreds/ulog/codec"
)

// Scenario 4: crash mid-append (spec section 8, scenario 4). Simulates
// a process kill between "slot written uncommitted" and "slot marked
// committed" by hand-constructing that exact on-disk state, then
// verifies Check() self-heals it.
func TestCheckRecoversUncommittedTailSlot(t *testing.T) {
	h, ps := newTestHandle(t, 4)

	if err := h.AddUpdate(codec.Update{Principal: "alice@REALM"}); err != nil {
		t.Fatalf("AddUpdate u1: %v", err)
	}

	hdr := h.header()
	if hdr.Num != 1 || hdr.LastSNO != 1 {
		t.Fatalf("header after u1 = %+v", hdr)
	}

	// Hand-simulate the crash point of a second append: slot written
	// uncommitted, header bumped to unstable, then nothing further.
	ts2 := Timestamp{Seconds: hdr.LastTime.Seconds + 1}
	newSNO := hdr.LastSNO + 1
	idx := slotIndex(newSNO, h.capacity)
	slot := h.slot(idx, hdr.Block)
	payload := h.codec.Encode(codec.Update{Principal: "bob@REALM"})

	slot.Reset()
	slot.WriteEntry(newSNO, ts2, false, payload)

	hdr = advanceWindow(hdr, h.capacity, newSNO, ts2, 0, Timestamp{})
	hdr.State = Unstable
	h.setHeader(hdr)
	if err := h.syncSlot(idx, hdr.Block); err != nil {
		t.Fatalf("syncSlot: %v", err)
	}
	if err := h.syncHeader(); err != nil {
		t.Fatalf("syncHeader: %v", err)
	}

	// "Reopen": run Recovery directly, as Map would on next open.
	if err := h.Lock(LockExclusive); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	err := h.Check()
	if unlockErr := h.Unlock(); unlockErr != nil {
		t.Fatalf("Unlock: %v", unlockErr)
	}
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	got := h.header()
	if got.State != Stable || got.Num != 2 || got.LastSNO != 2 {
		t.Fatalf("header after Check = %+v, want num=2 last_sno=2 stable", got)
	}
	if !h.slot(idx, got.Block).Committed() {
		t.Fatalf("tail slot still uncommitted after Check")
	}

	if err := ps.LockShared(); err != nil {
		t.Fatalf("LockShared: %v", err)
	}
	defer ps.Unlock()
	if _, ok := ps.Get("bob@REALM"); !ok {
		t.Fatalf("Check did not replay the recovered update into the principal store")
	}
}

func TestCheckRejectsBadSlotMagic(t *testing.T) {
	h, _ := newTestHandle(t, 4)

	if err := h.AddUpdate(codec.Update{Principal: "alice@REALM"}); err != nil {
		t.Fatalf("AddUpdate: %v", err)
	}

	hdr := h.header()
	idx := slotIndex(hdr.LastSNO, h.capacity)
	slot := h.slot(idx, hdr.Block)
	slot.Reset() // clears the magic, simulating corruption

	if err := h.Lock(LockExclusive); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	err := h.Check()
	h.Unlock()

	if !IsCorrupt(err) {
		t.Fatalf("Check() on bad magic = %v, want IsCorrupt", err)
	}
	if h.header().State != Corrupt {
		t.Fatalf("header State = %v, want Corrupt", h.header().State)
	}
}

func TestCheckNormalizesEmptyWindowWithStaleLast(t *testing.T) {
	h, _ := newTestHandle(t, 4)

	hdr := h.header()
	hdr.Num = 0
	hdr.FirstSNO = 0
	hdr.LastSNO = 5
	hdr.LastTime = Timestamp{Seconds: 99}
	h.setHeader(hdr)

	if err := h.Lock(LockExclusive); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	err := h.Check()
	h.Unlock()
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	got := h.header()
	if got.FirstSNO != 5 || !got.FirstTime.Equal(Timestamp{Seconds: 99}) {
		t.Fatalf("header after Check = %+v, want first normalized to last", got)
	}
}

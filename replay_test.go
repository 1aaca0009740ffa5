package ulog

import (
	"path/filepath"
	"testing"

	"github.com/opencreds/ulog/codec"
	"github.com/opencreds/ulog/store"
)

func TestReplayAppliesPutAndDeleteToStore(t *testing.T) {
	h, ps := newTestHandle(t, 4)
	h.SetRole(RoleNone)

	entries := []ReplayEntry{
		{SNO: 1, Time: Timestamp{Seconds: 1}, Update: codec.Update{Principal: "alice@REALM", Data: []byte{1}}},
		{SNO: 2, Time: Timestamp{Seconds: 2}, Update: codec.Update{Principal: "bob@REALM", Data: []byte{2}}},
		{SNO: 3, Time: Timestamp{Seconds: 3}, Update: codec.Update{Deleted: true, Principal: "alice@REALM"}},
	}
	if err := h.Replay(entries); err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if err := ps.LockShared(); err != nil {
		t.Fatalf("LockShared: %v", err)
	}
	defer ps.Unlock()

	if _, ok := ps.Get("alice@REALM"); ok {
		t.Fatalf("alice@REALM should have been deleted")
	}
	if v, ok := ps.Get("bob@REALM"); !ok || len(v) != 1 {
		t.Fatalf("bob@REALM = %v, %v, want present with 1 byte", v, ok)
	}
}

func TestReplayOnFollowerMirrorsIntoLocalLogAtPrimarySNO(t *testing.T) {
	dir := t.TempDir()
	ps, err := store.OpenBoltStore(filepath.Join(dir, "principal.db"))
	if err != nil {
		t.Fatalf("OpenBoltStore: %v", err)
	}
	defer ps.Close()

	h, err := Map(filepath.Join(dir, "ulog"), 4, RoleFollower, ps)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	defer h.Close()

	// The primary's SNO for this update is 7, far from the follower's
	// own empty-log counter (which would otherwise fabricate sno=1):
	// the mirrored slot must be addressed and stamped with 7, not 1.
	entry := ReplayEntry{SNO: 7, Time: Timestamp{Seconds: 42}, Update: codec.Update{Principal: "carol@REALM"}}
	if err := h.Replay([]ReplayEntry{entry}); err != nil {
		t.Fatalf("Replay: %v", err)
	}

	hdr := h.header()
	if hdr.Num != 1 || hdr.LastSNO != 7 || hdr.FirstSNO != 7 {
		t.Fatalf("follower header after mirrored replay = %+v, want num=1 first=last=7", hdr)
	}
	idx := slotIndex(7, h.capacity)
	slot := h.slot(idx, hdr.Block)
	if !slot.Committed() || slot.SNO() != 7 {
		t.Fatalf("mirrored slot = sno=%d committed=%v, want sno=7 committed=true", slot.SNO(), slot.Committed())
	}
}

// Regression for a follower that pulls a batch from a primed primary:
// the mirrored slots must carry the primary's real SNOs (8, 9, 10), not
// a freshly incremented follower-local counter restarting from 1.
func TestReplayOfPulledBatchPreservesPrimarySNOs(t *testing.T) {
	primaryDir := t.TempDir()
	primaryStore, err := store.OpenBoltStore(filepath.Join(primaryDir, "principal.db"))
	if err != nil {
		t.Fatalf("OpenBoltStore (primary): %v", err)
	}
	defer primaryStore.Close()

	primary, err := Map(filepath.Join(primaryDir, "ulog"), 10, RolePrimary, primaryStore)
	if err != nil {
		t.Fatalf("Map (primary): %v", err)
	}
	defer primary.Close()

	appendN(t, primary, 10) // first_sno=1, last_sno=10, no overflow
	backdateLastTime(primary)

	primaryHdr := primary.header()
	slot7 := primary.slot(slotIndex(7, primary.capacity), primaryHdr.Block)
	resp := primary.GetEntries(LastSeen{SNO: 7, Time: slot7.Time()})
	if resp.Status != PullOK {
		t.Fatalf("GetEntries = %+v, want PullOK", resp)
	}
	if len(resp.Updates) != 3 {
		t.Fatalf("len(Updates) = %d, want 3", len(resp.Updates))
	}

	followerDir := t.TempDir()
	followerStore, err := store.OpenBoltStore(filepath.Join(followerDir, "principal.db"))
	if err != nil {
		t.Fatalf("OpenBoltStore (follower): %v", err)
	}
	defer followerStore.Close()

	follower, err := Map(filepath.Join(followerDir, "ulog"), 10, RoleFollower, followerStore)
	if err != nil {
		t.Fatalf("Map (follower): %v", err)
	}
	defer follower.Close()

	entries := make([]ReplayEntry, len(resp.Updates))
	for i, pulled := range resp.Updates {
		entries[i] = ReplayEntry{SNO: pulled.SNO, Time: pulled.Time, Update: pulled.Value}
	}
	if err := follower.Replay(entries); err != nil {
		t.Fatalf("Replay pulled batch: %v", err)
	}

	followerHdr := follower.header()
	if followerHdr.Num != 3 || followerHdr.FirstSNO != 8 || followerHdr.LastSNO != 10 {
		t.Fatalf("follower header after replaying pulled batch = %+v, want num=3 first=8 last=10", followerHdr)
	}
	for _, wantSNO := range []uint64{8, 9, 10} {
		idx := slotIndex(wantSNO, follower.capacity)
		slot := follower.slot(idx, followerHdr.Block)
		if slot.SNO() != wantSNO {
			t.Fatalf("follower slot %d SNO = %d, want %d", idx, slot.SNO(), wantSNO)
		}
	}
}

func TestReplayFailsWithoutPrincipalStore(t *testing.T) {
	h, _ := newTestHandle(t, 4)
	h.SetRole(RoleNone)
	h.store = nil // Replay has no principal store to apply to

	err := h.Replay([]ReplayEntry{{SNO: 1, Update: codec.Update{Principal: "x"}}})
	if err == nil {
		t.Fatalf("Replay with nil store = nil error, want error")
	}
}

package ulog

// Check runs the startup recovery scan (spec section 4.H). It must be
// called with the exclusive lock already held; Map does this
// automatically for writer/follower roles.
func (h *LogHandle) Check() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	hdr := h.header()

	if hdr.Num == 0 && hdr.FirstSNO == 0 && hdr.LastSNO > 0 {
		hdr.FirstSNO = hdr.LastSNO
		hdr.FirstTime = hdr.LastTime
		h.setHeader(hdr)
	}

	if hdr.Num == 0 {
		return nil
	}

	startSNO := hdr.LastSNO - uint64(hdr.Num) + 1

	for i := uint32(0); i < hdr.Num; i++ {
		sno := startSNO + uint64(i)
		idx := slotIndex(sno, h.capacity)
		slot := h.slot(idx, hdr.Block)

		if slot.Magic() != slotMagic {
			hdr.State = Corrupt
			h.setHeader(hdr)
			_ = h.syncHeader()
			return ErrCorrupt
		}

		if !slot.Committed() {
			u, err := h.codec.Decode(slot.Payload())
			if err != nil {
				hdr.State = Corrupt
				h.setHeader(hdr)
				_ = h.syncHeader()
				return WrapError(ErrLogCorrupt, "decode uncommitted tail entry", err)
			}

			savedRole := h.role
			h.role = RoleNone // suppress follower mirroring while self-healing (design note)
			err = h.replayLocked([]ReplayEntry{{SNO: sno, Time: slot.Time(), Update: u}})
			h.role = savedRole
			if err != nil {
				return WrapError(ErrLogError, "replay recovered entry", err)
			}

			slot.SetCommitted(true)
			if err := h.syncSlot(idx, hdr.Block); err != nil {
				return err
			}
		}
	}

	// every slot in the live window has now been scanned and, if needed,
	// healed: the header can safely return to stable (spec section 4.H,
	// 8 scenario 4 — ulog_check unconditionally restores KDB_STABLE).
	hdr.State = Stable
	h.setHeader(hdr)
	return h.syncHeader()
}

package ulog

import (
	"encoding/binary"
)

// slotMagic identifies a live slot record.
const slotMagic uint64 = 0x4B44425F534C4F54 // "KDB_SLOT" in ASCII, stored little-endian

// slotFixedSize is the byte length of a slot's fixed fields, before the
// variable-length payload and trailing pad to Block (spec section 3/6).
const slotFixedSize = 8 + 4 + 8 + 8 + 8 + 1

// slotIndex maps a live SNO to its position in the ring (spec section
// 4.D): "the live slot for SNO s occupies index (s-1) mod capacity".
func slotIndex(sno uint64, capacity uint32) uint32 {
	return uint32((sno - 1) % uint64(capacity))
}

// slotOffset computes the byte offset of slot i (spec section 4.D):
// index(i) = sizeof(header) + i*block.
func slotOffset(headerSize int64, i uint32, block uint32) int64 {
	return headerSize + int64(i)*int64(block)
}

// SlotView is a validated accessor over one slot's raw bytes. All
// cross-field reads/writes to a slot go through this type rather than
// raw pointer arithmetic into the mapping, per the design note.
type SlotView struct {
	buf []byte // exactly Block bytes
}

func newSlotView(buf []byte) SlotView {
	return SlotView{buf: buf}
}

// Magic returns the slot magic field.
func (s SlotView) Magic() uint64 {
	return binary.LittleEndian.Uint64(s.buf[0:8])
}

// EntrySize returns the encoded payload length in bytes.
func (s SlotView) EntrySize() uint32 {
	return binary.LittleEndian.Uint32(s.buf[8:12])
}

// SNO returns the slot's serial number.
func (s SlotView) SNO() uint64 {
	return binary.LittleEndian.Uint64(s.buf[12:20])
}

// Time returns the slot's timestamp.
func (s SlotView) Time() Timestamp {
	return Timestamp{
		Seconds: int64(binary.LittleEndian.Uint64(s.buf[20:28])),
		Micros:  int64(binary.LittleEndian.Uint64(s.buf[28:36])),
	}
}

// Committed returns the slot's committed flag.
func (s SlotView) Committed() bool {
	return s.buf[36] != 0
}

// Payload returns the slot's encoded update bytes (length EntrySize()).
func (s SlotView) Payload() []byte {
	n := s.EntrySize()
	return s.buf[slotFixedSize : slotFixedSize+int(n)]
}

// Reset zeroes the whole slot, matching the source's memset before
// writing a new entry (spec section 4.F step 5).
func (s SlotView) Reset() {
	for i := range s.buf {
		s.buf[i] = 0
	}
}

// WriteEntry writes magic/size/sno/time/committed and the payload. buf
// must already be large enough to hold slotFixedSize+len(payload).
func (s SlotView) WriteEntry(sno uint64, ts Timestamp, committed bool, payload []byte) {
	binary.LittleEndian.PutUint64(s.buf[0:8], slotMagic)
	binary.LittleEndian.PutUint32(s.buf[8:12], uint32(len(payload)))
	binary.LittleEndian.PutUint64(s.buf[12:20], sno)
	binary.LittleEndian.PutUint64(s.buf[20:28], uint64(ts.Seconds))
	binary.LittleEndian.PutUint64(s.buf[28:36], uint64(ts.Micros))
	s.SetCommitted(committed)
	copy(s.buf[slotFixedSize:], payload)
}

// SetCommitted flips the committed flag in place without touching the
// rest of the slot (spec section 4.F step 7 / 4.H).
func (s SlotView) SetCommitted(committed bool) {
	if committed {
		s.buf[36] = 1
	} else {
		s.buf[36] = 0
	}
}

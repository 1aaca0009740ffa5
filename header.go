package ulog

import (
	"encoding/binary"
	"fmt"
)

// State is the three-state header state machine of spec section 4 / 4.J.
type State uint32

const (
	// Stable means the tail entry is fully committed; readers may trust
	// every slot in the live window.
	Stable State = iota + 1
	// Unstable means an append is mid-flight: at most the tail slot may
	// have committed == false.
	Unstable
	// Corrupt is terminal until an operator resets the log out of band.
	Corrupt
)

func (s State) String() string {
	switch s {
	case Stable:
		return "stable"
	case Unstable:
		return "unstable"
	case Corrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

// headerMagic identifies a valid ulog header. version is bumped whenever
// the on-disk layout changes incompatibly.
const (
	headerMagic  uint64 = 0x4B44425F554C4F47 // "KDB_ULOG" in ASCII, stored little-endian
	headerVersion uint32 = 1
)

// Timestamp is the wall-clock pair captured at append time (spec section
// 3). Followers use it to detect a primary log reset even when SNOs
// happen to collide.
type Timestamp struct {
	Seconds int64
	Micros  int64
}

// Equal reports whether two timestamps denote the same instant.
func (t Timestamp) Equal(o Timestamp) bool {
	return t.Seconds == o.Seconds && t.Micros == o.Micros
}

// IsZero reports whether t is the zero timestamp.
func (t Timestamp) IsZero() bool {
	return t.Seconds == 0 && t.Micros == 0
}

// Header is the fixed region at file offset 0 (spec section 3/6). It is
// kept as a plain Go value; encodeHeader/decodeHeader move it to and
// from the mapped bytes so every field access goes through one validated
// view, per the design note on raw pointer arithmetic.
type Header struct {
	Magic     uint64
	Version   uint32
	State     State
	Block     uint32
	Num       uint32
	FirstSNO  uint64
	FirstTime Timestamp
	LastSNO   uint64
	LastTime  Timestamp
}

// headerEncodedSize is the byte length of the fields above, before
// page-alignment padding. The mapped header region is always padded out
// to a full page (headerRegionSize), matching the source's page-aligned
// msync of the header (kdb_log.c: ulog_sync_header).
const headerEncodedSize = 8 + 4 + 4 + 4 + 4 + 8 + 8 + 8 + 8 + 8 + 8

// headerRegionSize returns the page-aligned size of the header region
// for the given OS page size.
func headerRegionSize(pagesize int) int64 {
	if pagesize <= 0 {
		pagesize = 4096
	}
	n := int64(headerEncodedSize)
	pages := (n + int64(pagesize) - 1) / int64(pagesize)
	if pages < 1 {
		pages = 1
	}
	return pages * int64(pagesize)
}

// encodeHeader marshals h into the first headerEncodedSize bytes of buf.
func encodeHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint64(buf[0:8], h.Magic)
	binary.LittleEndian.PutUint32(buf[8:12], h.Version)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.State))
	binary.LittleEndian.PutUint32(buf[16:20], h.Block)
	binary.LittleEndian.PutUint32(buf[20:24], h.Num)
	binary.LittleEndian.PutUint64(buf[24:32], h.FirstSNO)
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.FirstTime.Seconds))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(h.FirstTime.Micros))
	binary.LittleEndian.PutUint64(buf[48:56], h.LastSNO)
	binary.LittleEndian.PutUint64(buf[56:64], uint64(h.LastTime.Seconds))
	binary.LittleEndian.PutUint64(buf[64:72], uint64(h.LastTime.Micros))
}

// decodeHeader unmarshals the first headerEncodedSize bytes of buf.
func decodeHeader(buf []byte) Header {
	var h Header
	h.Magic = binary.LittleEndian.Uint64(buf[0:8])
	h.Version = binary.LittleEndian.Uint32(buf[8:12])
	h.State = State(binary.LittleEndian.Uint32(buf[12:16]))
	h.Block = binary.LittleEndian.Uint32(buf[16:20])
	h.Num = binary.LittleEndian.Uint32(buf[20:24])
	h.FirstSNO = binary.LittleEndian.Uint64(buf[24:32])
	h.FirstTime.Seconds = int64(binary.LittleEndian.Uint64(buf[32:40]))
	h.FirstTime.Micros = int64(binary.LittleEndian.Uint64(buf[40:48]))
	h.LastSNO = binary.LittleEndian.Uint64(buf[48:56])
	h.LastTime.Seconds = int64(binary.LittleEndian.Uint64(buf[56:64]))
	h.LastTime.Micros = int64(binary.LittleEndian.Uint64(buf[64:72]))
	return h
}

package ulog

import "time"

const (
	// ULOGBlock is the default slot size in bytes: must be a power-of-two
	// multiple of 512 (spec section 6). 2KiB matches the source's
	// ULOG_BLOCK default.
	ULOGBlock = 2048

	// MaxLogLen is the upper bound on the mapped region for a
	// writer/follower handle: a pre-reserved upper bound so in-place
	// growth never needs a remap (spec section 4.B).
	MaxLogLen = 256 << 20 // 256 MiB

	// IdleDebounce is the minimum elapsed wall-clock time since the last
	// committed append before a follower pull is allowed to proceed
	// (spec section 4.J step 2).
	IdleDebounce = 1 * time.Second

	// MinCapacity is the minimum number of ring slots (spec section 6).
	MinCapacity = 2

	// MaxSNO is the largest serial number before wraparound forces a
	// reset (spec section 3, design note on SNO width). The wire
	// protocol's SNO field is treated as 64-bit per the design note;
	// this is recorded as an explicit choice, see DESIGN.md.
	MaxSNO uint64 = ^uint64(0)

	// maxFileSize bounds extend(): a file extension request above this
	// is rejected (spec section 4.A, "≤ INT_MAX" in the source).
	maxFileSize = int64(^uint32(0) >> 1)
)

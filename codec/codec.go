// Package codec implements the update_codec capability spec.md treats as
// an opaque external collaborator (section 1): "encode to byte buffer,
// decode from byte buffer, report encoded size". The ring log never
// interprets a payload's bytes directly — it only asks the codec for its
// size (to size a slot, spec section 4.F step 2) and calls Encode when it
// writes a slot (append, follower mirroring) and Decode when it reads one
// back (pull, recovery).
//
// The default implementation here is a small fixed-layout binary codec
// in the spirit of the teacher's endian_le.go/endian_be.go page codecs —
// explicit byte offsets, little-endian, no reflection — standing in for the
// source's XDR encoding of kdb_incr_update_t.
package codec

import (
	"encoding/binary"
	"errors"
)

// ErrDecode is returned when a byte buffer does not decode to a valid
// Update (spec error code log_conv).
var ErrDecode = errors.New("codec: malformed update")

// Update is the wire-level principal mutation the log carries. Put
// updates carry Principal + Data (an opaque principal-record blob the
// principal_store capability knows how to apply); delete updates carry
// only Principal.
type Update struct {
	Deleted   bool
	Principal string
	Data      []byte
}

// Codec is the external update_codec capability.
type Codec interface {
	// Size reports the number of bytes Encode would produce for u.
	Size(u Update) int
	// Encode writes u into a fresh byte slice.
	Encode(u Update) []byte
	// Decode parses an Update previously produced by Encode.
	Decode(buf []byte) (Update, error)
}

// BinaryCodec is the default Codec: a fixed-layout encoding of
// [deleted(1)][princLen(4)][princ][dataLen(4)][data].
type BinaryCodec struct{}

var _ Codec = BinaryCodec{}

func (BinaryCodec) Size(u Update) int {
	return 1 + 4 + len(u.Principal) + 4 + len(u.Data)
}

func (c BinaryCodec) Encode(u Update) []byte {
	buf := make([]byte, c.Size(u))
	i := 0
	if u.Deleted {
		buf[i] = 1
	}
	i++
	binary.LittleEndian.PutUint32(buf[i:], uint32(len(u.Principal)))
	i += 4
	i += copy(buf[i:], u.Principal)
	binary.LittleEndian.PutUint32(buf[i:], uint32(len(u.Data)))
	i += 4
	copy(buf[i:], u.Data)
	return buf
}

func (BinaryCodec) Decode(buf []byte) (Update, error) {
	if len(buf) < 1+4 {
		return Update{}, ErrDecode
	}
	var u Update
	i := 0
	u.Deleted = buf[i] != 0
	i++

	princLen := int(binary.LittleEndian.Uint32(buf[i:]))
	i += 4
	if princLen < 0 || i+princLen+4 > len(buf) {
		return Update{}, ErrDecode
	}
	u.Principal = string(buf[i : i+princLen])
	i += princLen

	dataLen := int(binary.LittleEndian.Uint32(buf[i:]))
	i += 4
	if dataLen < 0 || i+dataLen > len(buf) {
		return Update{}, ErrDecode
	}
	u.Data = append([]byte(nil), buf[i:i+dataLen]...)

	return u, nil
}

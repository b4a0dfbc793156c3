package codec

import "crypto/rand"

// NewID generates a fresh 128-bit entity id. Ids are opaque and carry no
// ordering meaning of their own; lexicographic key order over ids is only
// ever used for scan stability, not for anything semantic.
func NewID() [16]byte {
	var id [16]byte
	_, _ = rand.Read(id[:])
	return id
}

// ZeroID is the all-zero id, used as a sentinel for "no entry point yet".
var ZeroID [16]byte

func IsZeroID(id [16]byte) bool { return id == ZeroID }

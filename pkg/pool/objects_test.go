package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDSliceRoundTrip(t *testing.T) {
	s := GetIDSlice()
	assert.Empty(t, s)
	s = append(s, [16]byte{1}, [16]byte{2})
	PutIDSlice(s)

	reused := GetIDSlice()
	assert.Empty(t, reused)
}

func TestByteBufferRoundTrip(t *testing.T) {
	buf := GetByteBuffer()
	assert.Empty(t, buf)
	buf = append(buf, []byte("hello")...)
	PutByteBuffer(buf)

	reused := GetByteBuffer()
	assert.Empty(t, reused)
}

func TestScoreMapRoundTrip(t *testing.T) {
	m := GetScoreMap()
	assert.Empty(t, m)
	m[[16]byte{9}] = 1.5
	PutScoreMap(m)

	reused := GetScoreMap()
	assert.Empty(t, reused)
}

func TestOversizedObjectsAreNotPooled(t *testing.T) {
	Configure(true, 4)
	defer Configure(true, 4096)

	big := make([][16]byte, 0, 1000)
	PutIDSlice(big) // dropped, not pooled — exceeds MaxCap

	s := GetIDSlice()
	assert.Less(t, cap(s), 1000)
}

package pool

import "sync"

// objectConfig mirrors the tunables a caller might want over the scratch
// pools below: whether pooling is active at all, and a ceiling past which a
// returned object is simply dropped instead of recycled (oversized buffers
// pinning megabytes of memory in a pool defeats the point of pooling).
type objectConfig struct {
	Enabled bool
	MaxCap  int
}

var objCfg = objectConfig{Enabled: true, MaxCap: 4096}

// Configure sets global scratch-pool behavior. Call during startup, before
// any traversal runs.
func Configure(enabled bool, maxCap int) {
	objCfg = objectConfig{Enabled: enabled, MaxCap: maxCap}
}

var idSlicePool = sync.Pool{
	New: func() any { return make([][16]byte, 0, 64) },
}

// GetIDSlice returns a zero-length [16]byte id slice from the pool — the
// traversal fabric's most common scratch shape (node/edge/vector id lists
// built up while walking adjacency).
func GetIDSlice() [][16]byte {
	if !objCfg.Enabled {
		return make([][16]byte, 0, 64)
	}
	return idSlicePool.Get().([][16]byte)[:0]
}

// PutIDSlice returns an id slice to the pool.
func PutIDSlice(s [][16]byte) {
	if !objCfg.Enabled || cap(s) > objCfg.MaxCap {
		return
	}
	idSlicePool.Put(s[:0])
}

var byteBufferPool = sync.Pool{
	New: func() any { return make([]byte, 0, 256) },
}

// GetByteBuffer returns a zero-length byte buffer from the pool, sized for
// one bincode-style property-record encode.
func GetByteBuffer() []byte {
	if !objCfg.Enabled {
		return make([]byte, 0, 256)
	}
	return byteBufferPool.Get().([]byte)[:0]
}

// PutByteBuffer returns a byte buffer to the pool.
func PutByteBuffer(buf []byte) {
	if !objCfg.Enabled || cap(buf) > objCfg.MaxCap*4 {
		return
	}
	byteBufferPool.Put(buf[:0])
}

var scoreMapPool = sync.Pool{
	New: func() any { return make(map[[16]byte]float64, 16) },
}

// GetScoreMap returns a cleared id-to-score map from the pool — used by
// BM25 term scoring, which accumulates a running score per candidate
// before sorting.
func GetScoreMap() map[[16]byte]float64 {
	if !objCfg.Enabled {
		return make(map[[16]byte]float64, 16)
	}
	m := scoreMapPool.Get().(map[[16]byte]float64)
	for k := range m {
		delete(m, k)
	}
	return m
}

// PutScoreMap returns a score map to the pool.
func PutScoreMap(m map[[16]byte]float64) {
	if !objCfg.Enabled || m == nil || len(m) > objCfg.MaxCap {
		return
	}
	for k := range m {
		delete(m, k)
	}
	scoreMapPool.Put(m)
}

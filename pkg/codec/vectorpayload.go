package codec

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// NativeEndian is the machine's native byte order, matching the storage
// engine's vector-payload format: raw f64 arrays in native endianness for
// zero-copy reads on the common case, with an explicit migration path
// (see package migration) for the cross-architecture open case.
var NativeEndian binary.ByteOrder = func() binary.ByteOrder {
	var x uint16 = 1
	if *(*byte)(unsafe.Pointer(&x)) == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}()

// EncodeVectorPayload packs a []float64 as a raw native-endian byte array.
func EncodeVectorPayload(data []float64) []byte {
	return EncodeVectorPayloadOrder(data, NativeEndian)
}

// EncodeVectorPayloadOrder packs data using an explicit byte order — used
// by the migration package to rewrite payloads that were written under a
// different machine's endianness.
func EncodeVectorPayloadOrder(data []float64, order binary.ByteOrder) []byte {
	out := make([]byte, 8*len(data))
	for i, f := range data {
		order.PutUint64(out[i*8:], math.Float64bits(f))
	}
	return out
}

// DecodeVectorPayload unpacks a raw native-endian byte array into a []float64.
func DecodeVectorPayload(b []byte) []float64 {
	return DecodeVectorPayloadOrder(b, NativeEndian)
}

// DecodeVectorPayloadOrder unpacks b using an explicit byte order.
func DecodeVectorPayloadOrder(b []byte, order binary.ByteOrder) []float64 {
	n := len(b) / 8
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float64frombits(order.Uint64(b[i*8:]))
	}
	return out
}

package embcache

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Cached vectors are raw little-endian float32s, the same layout the
// search index stores.

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, 0, len(v)*4)
	for _, f := range v {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("cached vector has %d bytes, not a multiple of 4", len(data))
	}
	vec := make([]float32, 0, len(data)/4)
	for off := 0; off < len(data); off += 4 {
		vec = append(vec, math.Float32frombits(binary.LittleEndian.Uint32(data[off:])))
	}
	return vec, nil
}

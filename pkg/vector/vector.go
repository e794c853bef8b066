// Package vector holds the on-disk and on-wire encoding of embedding vectors:
// little-endian IEEE-754 float32, four bytes per dimension. The layout matches
// sqlite-vec's BLOB format so the same bytes serve every backend and cache.
package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode converts a float32 slice to a little-endian byte slice.
func Encode(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Decode converts a little-endian byte slice back to a float32 slice.
func Decode(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: blob length %d is not divisible by 4", ErrMalformed, len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

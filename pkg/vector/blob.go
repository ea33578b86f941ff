package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeBlob converts a float32 slice to the little-endian byte layout used by
// sqlite-vec BLOB columns.
func EncodeBlob(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeBlob converts a little-endian byte slice back to a float32 slice.
func DecodeBlob(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: length %d is not divisible by 4", ErrBlob, len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

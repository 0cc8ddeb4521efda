package vec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeVector packs an embedding into little-endian float64 bytes for BLOB
// storage. The encoding is what the vec_dist sqlite function expects on both
// sides of a comparison.
func EncodeVector(vector []float64) []byte {
	buf := make([]byte, len(vector)*8)
	for i, f := range vector {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("vector blob of %d bytes is not a multiple of 8", len(data))
	}
	vector := make([]float64, len(data)/8)
	for i := range vector {
		vector[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return vector, nil
}

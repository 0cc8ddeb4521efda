package vec

import (
	"bytes"
	"math"
	"reflect"
	"testing"
)

func TestEncodeVector(t *testing.T) {
	testCases := []struct {
		name   string
		input  []float64
		length int // expected length of the output in bytes
	}{
		{
			name:   "Empty vector",
			input:  []float64{},
			length: 0,
		},
		{
			name:   "Single value",
			input:  []float64{1.23},
			length: 8,
		},
		{
			name:   "Multiple values",
			input:  []float64{1.23, 4.56, 7.89},
			length: 24,
		},
		{
			name:   "Special values",
			input:  []float64{0, -0, math.MaxFloat64, math.SmallestNonzeroFloat64},
			length: 32,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := EncodeVector(tc.input)
			if len(encoded) != tc.length {
				t.Errorf("EncodeVector() produced %d bytes, want %d", len(encoded), tc.length)
			}

			decoded, err := DecodeVector(encoded)
			if err != nil {
				t.Fatalf("DecodeVector() error = %v", err)
			}
			if !reflect.DeepEqual(decoded, tc.input) {
				t.Errorf("roundtrip = %v, want %v", decoded, tc.input)
			}
		})
	}
}

func TestDecodeVectorBadLength(t *testing.T) {
	for _, n := range []int{1, 7, 9, 15} {
		if _, err := DecodeVector(bytes.Repeat([]byte{0}, n)); err == nil {
			t.Errorf("DecodeVector() should have failed for %d bytes", n)
		}
	}
}

func TestCosineDistance(t *testing.T) {
	testCases := []struct {
		name    string
		left    []float64
		right   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "Identical vectors",
			left:  []float64{1, 2, 3},
			right: []float64{1, 2, 3},
			want:  -1,
		},
		{
			name:  "Opposite vectors",
			left:  []float64{1, 0},
			right: []float64{-1, 0},
			want:  1,
		},
		{
			name:  "Orthogonal vectors",
			left:  []float64{1, 0},
			right: []float64{0, 1},
			want:  0,
		},
		{
			name:  "Zero vector",
			left:  []float64{0, 0},
			right: []float64{1, 1},
			want:  0,
		},
		{
			name:    "Length mismatch",
			left:    []float64{1, 2},
			right:   []float64{1, 2, 3},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CosineDistance(tc.left, tc.right)
			if tc.wantErr {
				if err == nil {
					t.Errorf("CosineDistance() should have returned an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("CosineDistance() error = %v", err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("CosineDistance() = %v, want %v", got, tc.want)
			}
		})
	}
}

func FuzzDecodeVector(f *testing.F) {
	seeds := [][]float64{
		{},
		{0},
		{1.5},
		{-2.718},
		{1, 2, 3},
		{1.2e3, 4.5e-2, 6.7e+8},
	}

	for _, seed := range seeds {
		f.Add(EncodeVector(seed))
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		decoded, err := DecodeVector(data)
		if err != nil {
			if len(data)%8 == 0 {
				t.Errorf("DecodeVector() failed for valid length %d: %v", len(data), err)
			}
			return
		}

		reencoded := EncodeVector(decoded)
		if !bytes.Equal(reencoded, data) {
			t.Errorf("roundtrip mismatch for %d bytes", len(data))
		}
	})
}

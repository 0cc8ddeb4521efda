package vec

import (
	"database/sql/driver"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"modernc.org/sqlite"
)

var vecDistTot = atomic.Int64{}
var vecDistCount = atomic.Int64{}

// Statistics logs aggregate timing for vec_dist comparisons made during the
// lifetime of the process.
func Statistics() {
	if vecDistCount.Load() == 0 {
		return
	}
	avg := time.Duration(vecDistTot.Load() / vecDistCount.Load())
	slog.Default().Debug("vec_dist comparison stats",
		"count", vecDistCount.Load(),
		"tot", time.Duration(vecDistTot.Load()),
		"avg", avg)
}

func init() {

	sqlite.MustRegisterDeterministicScalarFunction("vec_dist", 2, func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		start := time.Now()
		defer func() {
			vecDistTot.Add(int64(time.Since(start)))
			vecDistCount.Add(1)
		}()

		if len(args) != 2 {
			return nil, fmt.Errorf("expected 2 arguments, got %d", len(args))
		}

		leftbin, ok := args[0].([]uint8)
		if !ok {
			return nil, fmt.Errorf("expected blob, got %T", args[0])
		}
		rightbin, ok := args[1].([]uint8)
		if !ok {
			return nil, fmt.Errorf("expected blob, got %T", args[1])
		}

		left, err := DecodeVector(leftbin)
		if err != nil {
			return nil, err
		}
		right, err := DecodeVector(rightbin)
		if err != nil {
			return nil, err
		}

		return CosineDistance(left, right)
	})

}

// CosineDistance returns the negated cosine similarity of two equal-length
// vectors, so that sorting ascending puts the most similar pair first.
func CosineDistance(left, right []float64) (float64, error) {
	if len(left) != len(right) {
		return 0, fmt.Errorf("expected equal length vectors, got %d and %d", len(left), len(right))
	}

	var dotProduct float64
	var normA float64
	var normB float64

	for i := 0; i < len(left); i++ {
		dotProduct += left[i] * right[i]
		normA += left[i] * left[i]
		normB += right[i] * right[i]
	}

	// Prevent division by zero
	if normA == 0 || normB == 0 {
		return 0.0, nil
	}

	return -(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}

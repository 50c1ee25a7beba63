package vecsketch

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/hupe1980/vecsketch/internal/sortutil"
)

// Report summarizes the error between a vector and its restored form.
// Errors are restored minus original.
type Report struct {
	N         int
	RMSE      float64
	MeanError float64
	StdDev    float64
	MaxAbs    float64
	P50Abs    float64
	P90Abs    float64
	P99Abs    float64
}

// Evaluate compares original and restored element-wise.
func Evaluate(original, restored []float64) (Report, error) {
	if len(original) != len(restored) {
		return Report{}, translateError("evaluate", fmt.Errorf("%w: %d original, %d restored", ErrLengthMismatch, len(original), len(restored)))
	}
	n := len(original)
	if n == 0 {
		return Report{}, nil
	}

	diff := make([]float64, n)
	floats.SubTo(diff, restored, original)
	mean, std := stat.PopMeanStdDev(diff, nil)

	abs := make([]float64, n)
	for i, d := range diff {
		abs[i] = math.Abs(d)
	}

	return Report{
		N:         n,
		RMSE:      floats.Norm(diff, 2) / math.Sqrt(float64(n)),
		MeanError: mean,
		StdDev:    std,
		MaxAbs:    floats.Max(abs),
		P50Abs:    absQuantile(abs, 0.50),
		P90Abs:    absQuantile(abs, 0.90),
		P99Abs:    absQuantile(abs, 0.99),
	}, nil
}

// absQuantile returns the nearest-rank quantile. It reorders xs.
func absQuantile(xs []float64, p float64) float64 {
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	k = max(0, min(k, len(xs)-1))
	return sortutil.Select(xs, k)
}

// Ratio returns originalBytes / compressedBytes, or 0 when nothing was
// written.
func Ratio(originalBytes, compressedBytes int) float64 {
	if compressedBytes <= 0 {
		return 0
	}
	return float64(originalBytes) / float64(compressedBytes)
}

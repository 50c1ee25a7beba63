// Package quantization discretizes real-valued gradient vectors into bin
// indices.
//
// Two variants are available:
//
//   - Uniform: splits at min + k*(max-min)/binNum for k = 1..binNum-1.
//   - Quantile: splits at the empirical k/binNum quantiles, estimated with a
//     mergeable streaming summary. Repeated quantiles are collapsed, so the
//     achieved BinNum can be lower than requested.
//
// # Boundaries
//
// Bin i is the half-open interval [splits[i-1], splits[i]). A value equal to
// a split belongs to the upper bin. For splits [-1, 0, 1]:
//
//	IndexOf(-1) == 1
//	IndexOf(0)  == 2
//	IndexOf(1)  == 3
//
// # Usage
//
//	q, err := quantization.New(quantization.Quantile, 256)
//	if err != nil {
//		return err
//	}
//	if err := q.Quantize(values); err != nil {
//		return err
//	}
//	reps := q.Values()
//	approx := reps[q.Bins()[i]]
//
// ParallelQuantize produces the same splits and bins using a
// resource.Controller to fan the work out.
package quantization

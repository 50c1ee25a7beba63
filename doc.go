// Package vecsketch compresses gradient vectors for distributed training.
//
// Values are quantized into bins (uniform or quantile splits). Dense vectors
// keep one bin index per element. Sparse vectors keep their keys in
// delta-encoded sorted runs and each key's bin in a grouped min-max sketch,
// so only a handful of bits per key survive compression.
//
// # Quick Start
//
//	c, _ := vecsketch.New(vecsketch.Sparse, vecsketch.WithBinNum(64))
//	_ = c.CompressSparse(keys, values)
//	data, _ := c.MarshalBinary()
//
//	restored, _ := vecsketch.Unmarshal(data)
//	keys, values, _ := restored.DecompressSparse()
//
// # Sketch Bias
//
// The min-max sketch keeps, per cell, the bin closest to the zero bin and
// answers with the farthest candidate across rows. A restored bin is never
// farther from zero than the true one, so restored magnitudes are biased
// toward zero. The answer is exact whenever one row holds the key alone.
//
// # Parallelism
//
// Parallel entry points take an explicit *resource.Controller that bounds
// workers, working-set memory and IO throughput:
//
//	rc, _ := resource.NewController(resource.Config{MaxWorkers: 4})
//	defer rc.Close()
//	_ = c.ParallelCompressSparse(ctx, rc, keys, values)
//
// Parallel and sequential compression of the same input with the same seed
// produce identical records while the quantile summary is exact.
//
// # Storage
//
// Save and Load wrap a record in a checksummed frame with optional LZ4,
// ZSTD or Snappy block compression.
//
// # Errors
//
// Every exported operation returns *Error. Its Kind classifies the failure
// and the wrapped sentinel is available through errors.Is.
package vecsketch

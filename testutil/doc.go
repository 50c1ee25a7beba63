// Package testutil provides testing utilities for vecsketch.
//
// This package is intended for use in tests and benchmarks only.
// It generates reproducible gradient-like vectors.
//
// # Dense Gradients
//
//	rng := testutil.NewRNG(seed)
//	g := rng.Gaussian(1024, 0.01)   // N(0, 0.01²)
//	g = rng.Laplace(1024, 0.01)     // heavy-tailed
//
// # Sparse Gradients
//
//	keys, values := rng.Sparse(1<<20, 4096, 0.01)
package testutil

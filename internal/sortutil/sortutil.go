// Package sortutil provides the two ordering helpers the compressors need:
// a stable sort of parallel key/value arrays and k-th order statistic
// selection.
package sortutil

import (
	"cmp"
	"sort"
)

type byKey[V any] struct {
	keys []int32
	vals []V
}

func (s byKey[V]) Len() int           { return len(s.keys) }
func (s byKey[V]) Less(i, j int) bool { return s.keys[i] < s.keys[j] }
func (s byKey[V]) Swap(i, j int) {
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
	s.vals[i], s.vals[j] = s.vals[j], s.vals[i]
}

// SortByKey sorts keys ascending in place and applies the same permutation to
// vals. Equal keys keep their relative order. It panics if the lengths
// differ.
func SortByKey[V any](keys []int32, vals []V) {
	if len(keys) != len(vals) {
		panic("sortutil: keys and values differ in length")
	}
	sort.Stable(byKey[V]{keys: keys, vals: vals})
}

// Select returns the k-th smallest element (0-based) of xs, partially
// reordering xs in place. It panics if k is out of range.
func Select[T cmp.Ordered](xs []T, k int) T {
	if k < 0 || k >= len(xs) {
		panic("sortutil: select index out of range")
	}
	lo, hi := 0, len(xs)-1
	for lo < hi {
		p := partition(xs, lo, hi)
		switch {
		case k == p:
			return xs[k]
		case k < p:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
	return xs[k]
}

// partition uses the median of three as pivot (Lomuto scheme) and returns the
// pivot's final index.
func partition[T cmp.Ordered](xs []T, lo, hi int) int {
	mid := lo + (hi-lo)/2
	if xs[mid] < xs[lo] {
		xs[mid], xs[lo] = xs[lo], xs[mid]
	}
	if xs[hi] < xs[lo] {
		xs[hi], xs[lo] = xs[lo], xs[hi]
	}
	if xs[mid] < xs[hi] {
		xs[mid], xs[hi] = xs[hi], xs[mid]
	}
	pivot := xs[hi]
	i := lo
	for j := lo; j < hi; j++ {
		if xs[j] < pivot {
			xs[i], xs[j] = xs[j], xs[i]
			i++
		}
	}
	xs[i], xs[hi] = xs[hi], xs[i]
	return i
}

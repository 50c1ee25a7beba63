// Package quantile implements a mergeable streaming quantile summary based on
// the KLL compactor hierarchy (Karnin, Lang, Liberty, 2016).
//
// The summary is exact until more than K values have been added. Past that,
// level 0 is sorted and randomly halved into level 1, and so on up the chain;
// an item at level h stands for 2^h inputs. Rank error is O(1/K).
package quantile

import (
	"math"
	"slices"
)

// DefaultK is the default accuracy parameter.
const DefaultK = 1024

const minLevelCap = 8

// pow3 holds 3^i for i in [0,30], used by levelCap.
var pow3 = [31]uint64{
	1, 3, 9, 27, 81, 243, 729, 2187, 6561, 19683, 59049, 177147, 531441,
	1594323, 4782969, 14348907, 43046721, 129140163, 387420489, 1162261467,
	3486784401, 10460353203, 31381059609, 94143178827, 282429536481,
	847288609443, 2541865828329, 7625597484987, 22876792454961, 68630377364883,
	205891132094649,
}

// levelCap returns max(minLevelCap, floor(k * (2/3)^depth)) where depth
// counts levels above h.
func levelCap(k, numLevels, h int) int {
	depth := numLevels - h - 1
	if depth <= 0 {
		return max(minLevelCap, k)
	}
	if depth >= len(pow3) {
		return minLevelCap
	}
	twok := uint64(k) * 2
	tmp := (twok << uint(depth)) / pow3[depth]
	return max(minLevelCap, int((tmp+1)>>1))
}

// Summary is a KLL quantile summary over float64 values.
// It is not safe for concurrent use; build one per worker and Merge.
type Summary struct {
	// levels[0] is the unsorted input buffer; higher levels stay sorted.
	levels [][]float64
	k      int
	n      int64
	min    float64
	max    float64
	rng    uint64
}

// New creates a summary with accuracy parameter k (DefaultK if k <= 0).
func New(k int) *Summary {
	if k <= 0 {
		k = DefaultK
	}
	return &Summary{
		levels: [][]float64{make([]float64, 0, min(k, 4096))},
		k:      k,
		min:    math.Inf(1),
		max:    math.Inf(-1),
		rng:    0x9e3779b97f4a7c15,
	}
}

// Count returns the number of values added, including merged summaries.
func (s *Summary) Count() int64 { return s.n }

// Min returns the smallest value seen, or 0 when empty.
func (s *Summary) Min() float64 {
	if s.n == 0 {
		return 0
	}
	return s.min
}

// Max returns the largest value seen, or 0 when empty.
func (s *Summary) Max() float64 {
	if s.n == 0 {
		return 0
	}
	return s.max
}

// Update adds a value. NaN is ignored.
func (s *Summary) Update(v float64) {
	if math.IsNaN(v) {
		return
	}
	s.n++
	s.min = min(s.min, v)
	s.max = max(s.max, v)
	if len(s.levels[0]) >= levelCap(s.k, len(s.levels), 0) {
		s.compact(0)
	}
	s.levels[0] = append(s.levels[0], v)
}

// Merge folds other into s. other is left unchanged.
func (s *Summary) Merge(other *Summary) {
	if other == nil || other.n == 0 {
		return
	}
	s.n += other.n
	s.min = min(s.min, other.min)
	s.max = max(s.max, other.max)

	for len(s.levels) < len(other.levels) {
		s.levels = append(s.levels, nil)
	}
	s.levels[0] = append(s.levels[0], other.levels[0]...)
	for h := 1; h < len(other.levels); h++ {
		s.levels[h] = mergeSorted(s.levels[h], other.levels[h])
	}

	// A level may hold exactly its capacity, as it does after Update.
	for h := 0; h < len(s.levels); h++ {
		if len(s.levels[h]) > levelCap(s.k, len(s.levels), h) {
			s.compact(h)
		}
	}
}

// Quantiles returns the n-1 values at fractions 1/n, 2/n, ..., (n-1)/n in
// non-decreasing order. It returns nil for an empty summary or n < 2.
func (s *Summary) Quantiles(n int) []float64 {
	if s.n == 0 || n < 2 {
		return nil
	}

	type entry struct {
		val    float64
		weight int64
	}
	var all []entry
	for h, lv := range s.levels {
		w := int64(1) << h
		for _, v := range lv {
			all = append(all, entry{v, w})
		}
	}
	slices.SortStableFunc(all, func(a, b entry) int {
		switch {
		case a.val < b.val:
			return -1
		case a.val > b.val:
			return 1
		default:
			return 0
		}
	})

	var total int64
	for i := range all {
		total += all[i].weight
		all[i].weight = total
	}

	out := make([]float64, n-1)
	for i := 1; i < n; i++ {
		// First entry whose cumulative weight exceeds the target rank.
		target := int64(float64(i) * float64(total) / float64(n))
		idx, _ := slices.BinarySearchFunc(all, target+1, func(e entry, t int64) int {
			switch {
			case e.weight < t:
				return -1
			case e.weight > t:
				return 1
			default:
				return 0
			}
		})
		idx = min(idx, len(all)-1)
		out[i-1] = all[idx].val
	}
	return out
}

// compact sorts level h if needed, keeps every other item starting at a
// random offset and merges the survivors into level h+1.
func (s *Summary) compact(h int) {
	if h+1 >= len(s.levels) {
		s.levels = append(s.levels, make([]float64, 0, levelCap(s.k, len(s.levels)+1, h+1)))
	}

	items := s.levels[h]
	if h == 0 {
		slices.Sort(items)
	}

	var leftover float64
	hasLeftover := len(items)%2 == 1
	if hasLeftover {
		leftover = items[0]
		items = items[1:]
	}

	offset := s.randomBit()
	half := make([]float64, 0, len(items)/2)
	for i := offset; i < len(items); i += 2 {
		half = append(half, items[i])
	}
	s.levels[h+1] = mergeSorted(half, s.levels[h+1])

	if hasLeftover {
		s.levels[h] = s.levels[h][:1]
		s.levels[h][0] = leftover
	} else {
		s.levels[h] = s.levels[h][:0]
	}

	if len(s.levels[h+1]) >= levelCap(s.k, len(s.levels), h+1) {
		s.compact(h + 1)
	}
}

func (s *Summary) randomBit() int {
	s.rng ^= s.rng << 13
	s.rng ^= s.rng >> 7
	s.rng ^= s.rng << 17
	return int(s.rng & 1)
}

func mergeSorted(a, b []float64) []float64 {
	out := make([]float64, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

package sketch

// GroupEdges splits the bin range [0, binNum) into groupNum bands and returns
// their exclusive upper bounds. With two groups the bands are the bins below
// zeroIdx and the rest. Otherwise the bands are binNum/groupNum wide and the
// first edge is shifted so a band boundary falls next to zeroIdx; the last
// band absorbs the remainder. groupNum must be in [1, binNum].
func GroupEdges(zeroIdx, binNum, groupNum int) []int {
	if groupNum == 2 {
		return []int{zeroIdx, binNum}
	}

	edges := make([]int, groupNum)
	width := binNum / groupNum
	switch {
	case zeroIdx < width:
		edges[0] = zeroIdx
	case zeroIdx%width < width/2:
		edges[0] = width + zeroIdx%width
	default:
		edges[0] = zeroIdx % width
	}
	for i := 1; i < groupNum-1; i++ {
		edges[i] = edges[i-1] + width
	}
	edges[groupNum-1] = binNum
	return edges
}

// band returns the index of the first edge above bin.
func band(edges []int, bin int32) int {
	b := int(bin)
	for i, e := range edges {
		if b < e {
			return i
		}
	}
	return len(edges) - 1
}

// partition distributes (key, bin) pairs over the bands defined by edges.
// The returned slices are owned by the caller.
func partition(keys, bins []int32, edges []int) ([][]int32, [][]int32) {
	counts := make([]int, len(edges))
	for _, b := range bins {
		counts[band(edges, b)]++
	}

	partKeys := make([][]int32, len(edges))
	partBins := make([][]int32, len(edges))
	for i, c := range counts {
		partKeys[i] = make([]int32, 0, c)
		partBins[i] = make([]int32, 0, c)
	}
	for i, b := range bins {
		g := band(edges, b)
		partKeys[g] = append(partKeys[g], keys[i])
		partBins[g] = append(partBins[g], b)
	}
	return partKeys, partBins
}

// bandWidth returns the number of bins band i covers.
func bandWidth(edges []int, i int) int {
	if i == 0 {
		return edges[0]
	}
	return edges[i] - edges[i-1]
}

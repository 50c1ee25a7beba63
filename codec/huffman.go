package codec

import (
	"container/heap"
	"fmt"
	"slices"

	"github.com/hupe1980/vecsketch/internal/bitio"
	"github.com/hupe1980/vecsketch/internal/wire"
)

// maxCodeLen bounds code lengths so a code fits the persisted int32 field.
const maxCodeLen = 31

// HuffmanItem is one entry of the code table.
type HuffmanItem struct {
	Symbol int32
	Code   uint32 // code bits, most significant first
	Len    uint8  // number of code bits
}

// HuffmanCodec stores an optimal prefix code over the distinct symbols of
// its input plus the encoded bitstream. Codes are written MSB-first.
type HuffmanCodec struct {
	items  []HuffmanItem // sorted by symbol
	stream bitstream
	size   int
}

var _ BinaryCodec = (*HuffmanCodec)(nil)

// Kind returns Huffman.
func (c *HuffmanCodec) Kind() Kind { return Huffman }

// Size returns the number of encoded symbols.
func (c *HuffmanCodec) Size() int { return c.size }

// Items returns the code table sorted by symbol. The slice must not be
// modified.
func (c *HuffmanCodec) Items() []HuffmanItem { return c.items }

// BitLen returns the length of the encoded bitstream in bits.
func (c *HuffmanCodec) BitLen() int { return int(c.stream.bits) }

// SizeInBytes returns the record length.
func (c *HuffmanCodec) SizeInBytes() int {
	// itemCount, items, stream, size
	return 4 + 12*len(c.items) + c.stream.sizeInBytes() + 4
}

// hnode is an arena node. Leaves have left == right == -1.
type hnode struct {
	symbol int32
	weight int
	left   int32
	right  int32
}

func (n *hnode) leaf() bool { return n.left < 0 && n.right < 0 }

// hentry orders the build heap by weight, then by insertion sequence, so
// ties break deterministically.
type hentry struct {
	weight int
	seq    int
	node   int32
}

type hheap []hentry

func (h hheap) Len() int { return len(h) }
func (h hheap) Less(i, j int) bool {
	if h[i].weight != h[j].weight {
		return h[i].weight < h[j].weight
	}
	return h[i].seq < h[j].seq
}
func (h hheap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *hheap) Push(x any)   { *h = append(*h, x.(hentry)) }
func (h *hheap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Encode builds the code from the symbol frequencies of values and encodes
// them.
func (c *HuffmanCodec) Encode(values []int32) error {
	counts := make(map[int32]int)
	for _, v := range values {
		counts[v]++
	}
	symbols := make([]int32, 0, len(counts))
	for s := range counts {
		symbols = append(symbols, s)
	}
	slices.Sort(symbols)

	items, err := buildCode(symbols, counts)
	if err != nil {
		return err
	}

	lookup := make(map[int32]HuffmanItem, len(items))
	for _, it := range items {
		lookup[it.Symbol] = it
	}
	w := bitio.NewWriter()
	for _, v := range values {
		it := lookup[v]
		w.WriteMSB(uint64(it.Code), uint(it.Len))
	}

	c.items = items
	c.stream = streamOf(w)
	c.size = len(values)
	return nil
}

// buildCode runs the greedy merge over an arena of nodes and returns the
// code table sorted by symbol.
func buildCode(symbols []int32, counts map[int32]int) ([]HuffmanItem, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	arena := make([]hnode, 0, 2*len(symbols)-1)
	h := make(hheap, 0, len(symbols))
	for _, s := range symbols {
		arena = append(arena, hnode{symbol: s, weight: counts[s], left: -1, right: -1})
		h = append(h, hentry{weight: counts[s], seq: len(arena) - 1, node: int32(len(arena) - 1)})
	}
	heap.Init(&h)

	for h.Len() > 1 {
		x := heap.Pop(&h).(hentry)
		y := heap.Pop(&h).(hentry)
		arena = append(arena, hnode{weight: x.weight + y.weight, left: x.node, right: y.node})
		idx := int32(len(arena) - 1)
		heap.Push(&h, hentry{weight: x.weight + y.weight, seq: int(idx), node: idx})
	}
	root := h[0].node

	// A lone symbol still needs one bit per occurrence.
	if arena[root].leaf() {
		return []HuffmanItem{{Symbol: arena[root].symbol, Code: 0, Len: 1}}, nil
	}

	type frame struct {
		node  int32
		code  uint32
		depth int
	}
	items := make([]HuffmanItem, 0, len(symbols))
	stack := []frame{{node: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &arena[f.node]
		if n.leaf() {
			items = append(items, HuffmanItem{Symbol: n.symbol, Code: f.code, Len: uint8(f.depth)})
			continue
		}
		if f.depth+1 > maxCodeLen {
			return nil, fmt.Errorf("%w: more than %d bits", ErrCodeTooLong, maxCodeLen)
		}
		stack = append(stack,
			frame{node: n.right, code: f.code<<1 | 1, depth: f.depth + 1},
			frame{node: n.left, code: f.code << 1, depth: f.depth + 1},
		)
	}
	slices.SortFunc(items, func(a, b HuffmanItem) int {
		switch {
		case a.Symbol < b.Symbol:
			return -1
		case a.Symbol > b.Symbol:
			return 1
		default:
			return 0
		}
	})
	return items, nil
}

// buildTrie rebuilds the decode trie from the code table. Node 0 is the
// root.
func buildTrie(items []HuffmanItem) ([]hnode, error) {
	trie := []hnode{{left: -1, right: -1}}
	for _, it := range items {
		if it.Len == 0 || it.Len > maxCodeLen || uint64(it.Code) >= 1<<it.Len {
			return nil, fmt.Errorf("%w: invalid code for symbol %d", ErrCorruptCodec, it.Symbol)
		}
		cur := int32(0)
		for i := int(it.Len) - 1; i >= 0; i-- {
			if trie[cur].weight == 1 {
				return nil, fmt.Errorf("%w: code for symbol %d extends another code", ErrCorruptCodec, it.Symbol)
			}
			child := &trie[cur].left
			if it.Code&(1<<i) != 0 {
				child = &trie[cur].right
			}
			if *child < 0 {
				*child = int32(len(trie))
				trie = append(trie, hnode{left: -1, right: -1, weight: -1})
			}
			cur = *child
		}
		if trie[cur].weight != -1 || !trie[cur].leaf() {
			return nil, fmt.Errorf("%w: conflicting code for symbol %d", ErrCorruptCodec, it.Symbol)
		}
		trie[cur].symbol = it.Symbol
		// weight 1 marks a terminal node.
		trie[cur].weight = 1
	}
	return trie, nil
}

// Decode walks the trie bit by bit. Walking to a missing child, or bits left
// over after the last symbol, means the table and bitstream do not belong
// together.
func (c *HuffmanCodec) Decode() ([]int32, error) {
	if c.size == 0 {
		return []int32{}, nil
	}
	trie, err := buildTrie(c.items)
	if err != nil {
		return nil, err
	}

	r := c.stream.reader()
	res := make([]int32, c.size)
	for i := range res {
		cur := int32(0)
		for {
			var next int32
			if r.ReadBit() {
				next = trie[cur].right
			} else {
				next = trie[cur].left
			}
			if next < 0 {
				return nil, fmt.Errorf("%w: walked off the code trie at symbol %d", ErrCorruptCodec, i)
			}
			cur = next
			if trie[cur].weight == 1 {
				break
			}
		}
		res[i] = trie[cur].symbol
	}
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("%w: after %d symbols: %w", ErrCorruptCodec, c.size, err)
	}
	return res, nil
}

func (c *HuffmanCodec) writeRecord(w *wire.Writer) {
	w.Len32(len(c.items))
	for _, it := range c.items {
		w.Int32(it.Symbol)
		w.Int32(int32(it.Code))
		w.Int32(int32(it.Len))
	}
	writeStream(w, c.stream)
	w.Len32(c.size)
}

func (c *HuffmanCodec) readRecord(r *wire.Reader) error {
	n := r.Len32()
	if !r.Fits(n, 12) {
		return readErr(r)
	}
	items := make([]HuffmanItem, n)
	for i := range items {
		sym := r.Int32()
		code := r.Int32()
		length := r.Int32()
		if length < 1 || length > maxCodeLen || code < 0 {
			return fmt.Errorf("%w: invalid code length %d for symbol %d", ErrCorruptCodec, length, sym)
		}
		items[i] = HuffmanItem{Symbol: sym, Code: uint32(code), Len: uint8(length)}
	}
	stream, err := readStream(r)
	if err != nil {
		return err
	}
	size := r.Len32()
	if err := readErr(r); err != nil {
		return err
	}
	if size > 0 && len(items) == 0 {
		return fmt.Errorf("%w: %d symbols but empty code table", ErrCorruptCodec, size)
	}
	if size == 0 && stream.bits != 0 {
		return fmt.Errorf("%w: %d bits stored for no symbols", ErrCorruptCodec, stream.bits)
	}

	c.items = items
	c.stream = stream
	c.size = size
	return nil
}

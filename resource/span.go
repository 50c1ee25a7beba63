package resource

// Span is a half-open index range [From, To).
type Span struct {
	From int
	To   int
}

// Len returns the number of indices covered.
func (s Span) Len() int { return s.To - s.From }

// Split divides [0, n) into at most parts contiguous, non-overlapping spans.
// Every span but the last has n/parts elements; the last takes the remainder.
// Empty input yields no spans.
func Split(n, parts int) []Span {
	if n <= 0 {
		return nil
	}
	parts = max(1, min(parts, n))
	per := n / parts
	spans := make([]Span, parts)
	for i := range spans {
		from := i * per
		to := from + per
		if i == parts-1 {
			to = n
		}
		spans[i] = Span{From: from, To: to}
	}
	return spans
}

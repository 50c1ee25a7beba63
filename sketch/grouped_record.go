package sketch

import (
	"fmt"

	"github.com/hupe1980/vecsketch/codec"
	"github.com/hupe1980/vecsketch/internal/wire"
)

// EncodeGrouped writes the grouped record. Every band is preceded by a
// presence byte so empty bands round-trip.
func EncodeGrouped(w *wire.Writer, g *GroupedMinMaxSketch) error {
	if !g.built {
		return ErrNotBuilt
	}
	w.Len32(g.groupNum)
	w.Len32(g.rowNum)
	w.Float64(g.colRatio)
	w.Len32(g.binNum)
	w.Int32(g.zeroValue)

	for _, s := range g.sketches {
		w.Bool(s != nil)
		if s == nil {
			continue
		}
		if err := Encode(w, s); err != nil {
			return err
		}
	}
	for _, c := range g.codecs {
		w.Bool(c != nil)
		if c != nil {
			codec.Marshal(w, c)
		}
	}
	return w.Err()
}

// DecodeGrouped reads a record written by EncodeGrouped. Options apply to
// the returned sketch as they do in NewGroupedMinMaxSketch.
func DecodeGrouped(r *wire.Reader, optFns ...GroupedOption) (*GroupedMinMaxSketch, error) {
	groupNum := r.Len32()
	rowNum := r.Len32()
	colRatio := r.Float64()
	binNum := r.Len32()
	zeroValue := r.Int32()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSketch, err)
	}
	if groupNum > binNum {
		return nil, fmt.Errorf("%w: %d groups over %d bins", ErrCorruptSketch, groupNum, binNum)
	}

	g, err := NewGroupedMinMaxSketch(groupNum, rowNum, colRatio, binNum, zeroValue, optFns...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSketch, err)
	}

	sketches := make([]*MinMaxSketch, groupNum)
	for i := range sketches {
		if !r.Bool() {
			continue
		}
		s, err := Decode(r)
		if err != nil {
			return nil, fmt.Errorf("band %d: %w", i, err)
		}
		if s.rowNum != rowNum || s.zeroValue != zeroValue {
			return nil, fmt.Errorf("%w: band %d sketch does not match header", ErrCorruptSketch, i)
		}
		sketches[i] = s
	}

	codecs := make([]codec.BinaryCodec, groupNum)
	size := 0
	for i := range codecs {
		present := r.Bool()
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptSketch, err)
		}
		if present != (sketches[i] != nil) {
			return nil, fmt.Errorf("%w: band %d has a sketch without keys or keys without a sketch", ErrCorruptSketch, i)
		}
		if !present {
			continue
		}
		c, err := codec.Unmarshal(r)
		if err != nil {
			return nil, fmt.Errorf("band %d: %w", i, err)
		}
		if !c.Kind().Sorted() {
			return nil, fmt.Errorf("%w: band %d keys stored with %s", ErrCorruptSketch, i, c.Kind())
		}
		codecs[i] = c
		size += c.Size()
	}

	g.install(sketches, codecs, size)
	return g, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (g *GroupedMinMaxSketch) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(g.MemoryBytes())
	if err := EncodeGrouped(w, g); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. The receiver keeps
// its logger and key codec.
func (g *GroupedMinMaxSketch) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(data)
	opts := []GroupedOption{WithKeyCodec(codec.Delta)}
	if g.logger != nil {
		opts = append(opts, WithLogger(g.logger))
	}
	if g.keyCodec.Sorted() {
		opts = append(opts, WithKeyCodec(g.keyCodec))
	}
	dec, err := DecodeGrouped(r, opts...)
	if err != nil {
		return err
	}
	if r.Remaining() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorruptSketch, r.Remaining())
	}
	*g = *dec
	return nil
}

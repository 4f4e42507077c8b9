// Package ring maps logical rings onto one contiguous, directly driven strip.
package ring

import (
	"errors"
	"fmt"

	"github.com/coreman2200/ringlights/internal/pixel"
)

var (
	// ErrExhausted is returned when a reservation runs past the end of the strip.
	ErrExhausted = errors.New("strip pixels exhausted")
	ErrCount     = errors.New("invalid ring pixel count")
)

// Strip is the shared pixel array rings write through to. Indexes are global.
type Strip interface {
	SetPixelColor(i int, p pixel.Pixel)
	GetPixelColor(i int) pixel.Pixel
	NumPixels() int
}

// Direction orders a ring's pixels along the strip.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

// Map turns a local index into an offset from the start of the span.
func (d Direction) Map(i, count int) int {
	if d == Reverse {
		return count - i - 1
	}
	return i
}

// Unmap is the inverse of Map.
func (d Direction) Unmap(j, count int) int {
	// Both mappings are involutions.
	return d.Map(j, count)
}

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// Span is a reserved, half-open range [Offset, Offset+Count) of the strip.
type Span struct {
	Offset int
	Count  int
}

func (s Span) End() int {
	return s.Offset + s.Count
}

// Allocator hands out non-overlapping spans of a strip in construction order.
// It isn't safe for concurrent use: build the topology once, before the first
// tick.
type Allocator struct {
	total  int
	cursor int
}

func NewAllocator(total int) *Allocator {
	return &Allocator{total: total}
}

// Reserve returns the next count pixels.
func (a *Allocator) Reserve(count int) (Span, error) {
	if count <= 0 {
		return Span{}, fmt.Errorf("%w: %d", ErrCount, count)
	}
	if a.cursor+count > a.total {
		return Span{}, fmt.Errorf("%w: %d more pixels at offset %d, strip has %d", ErrExhausted, count, a.cursor, a.total)
	}
	s := Span{Offset: a.cursor, Count: count}
	a.cursor += count
	return s, nil
}

// Used is the number of pixels reserved so far.
func (a *Allocator) Used() int {
	return a.cursor
}

func (a *Allocator) Remaining() int {
	return a.total - a.cursor
}

// Ring reserves count pixels of s and returns a ring over them. The
// allocator must not cover more pixels than s has.
func (a *Allocator) Ring(s Strip, count int, d Direction) (*Ring, error) {
	if n := s.NumPixels(); a.total > n {
		return nil, fmt.Errorf("%w: allocator covers %d pixels, strip has %d", ErrExhausted, a.total, n)
	}
	span, err := a.Reserve(count)
	if err != nil {
		return nil, err
	}
	return New(s, span, d), nil
}

// Ring is a view over a span of a shared strip. It holds no pixels itself and
// mustn't outlive the strip.
type Ring struct {
	strip Strip
	span  Span
	dir   Direction
}

func New(s Strip, span Span, d Direction) *Ring {
	return &Ring{strip: s, span: span, dir: d}
}

func (r *Ring) NumPixels() int {
	return r.span.Count
}

func (r *Ring) Offset() int {
	return r.span.Offset
}

func (r *Ring) Span() Span {
	return r.span
}

func (r *Ring) Direction() Direction {
	return r.dir
}

// Global maps local index i onto the strip.
func (r *Ring) Global(i int) (int, error) {
	if i < 0 || i >= r.span.Count {
		return 0, fmt.Errorf("%w: %d not in [0,%d) on ring at %d", pixel.ErrIndex, i, r.span.Count, r.span.Offset)
	}
	return r.span.Offset + r.dir.Map(i, r.span.Count), nil
}

// Local is the inverse of Global.
func (r *Ring) Local(g int) (int, error) {
	if g < r.span.Offset || g >= r.span.End() {
		return 0, fmt.Errorf("%w: strip index %d not in ring [%d,%d)", pixel.ErrIndex, g, r.span.Offset, r.span.End())
	}
	return r.dir.Unmap(g-r.span.Offset, r.span.Count), nil
}

func (r *Ring) SetPixel(i int, p pixel.Pixel) error {
	g, err := r.Global(i)
	if err != nil {
		return err
	}
	r.strip.SetPixelColor(g, p)
	return nil
}

func (r *Ring) Pixel(i int) (pixel.Pixel, error) {
	g, err := r.Global(i)
	if err != nil {
		return pixel.Off, err
	}
	return r.strip.GetPixelColor(g), nil
}

// Fill sets every pixel of the ring to p.
func (r *Ring) Fill(p pixel.Pixel) {
	for g := r.span.Offset; g < r.span.End(); g++ {
		r.strip.SetPixelColor(g, p)
	}
}

// Darken scales every pixel of the ring in place on the strip.
func (r *Ring) Darken(f float64) error {
	if err := pixel.ValidFactor(f); err != nil {
		return err
	}
	for g := r.span.Offset; g < r.span.End(); g++ {
		r.strip.SetPixelColor(g, r.strip.GetPixelColor(g).Darken(f))
	}
	return nil
}

package expander

import (
	"fmt"

	"github.com/coreman2200/ringlights/internal/pixel"
)

// Buffer is the pixel store for one expander channel. Its length is fixed at
// construction. A Buffer is dirty after any mutation until the compositor has
// sent it.
type Buffer struct {
	channel uint8
	pixels  []pixel.Pixel
	dirty   bool
}

// NewBuffer allocates n pixels for channel. New buffers start dirty so the
// first commit pushes their (blank) state.
func NewBuffer(channel uint8, n int) (*Buffer, error) {
	if err := checkChannel(channel); err != nil {
		return nil, err
	}
	if n < 0 || n > MaxPixels {
		return nil, fmt.Errorf("%w: buffer of %d pixels", ErrEncoding, n)
	}
	return &Buffer{
		channel: channel,
		pixels:  make([]pixel.Pixel, n),
		dirty:   true,
	}, nil
}

func (b *Buffer) Channel() uint8 {
	return b.channel
}

func (b *Buffer) NumPixels() int {
	return len(b.pixels)
}

func (b *Buffer) SetPixel(i int, p pixel.Pixel) error {
	if i < 0 || i >= len(b.pixels) {
		return fmt.Errorf("%w: %d not in [0,%d) on channel %d", pixel.ErrIndex, i, len(b.pixels), b.channel)
	}
	b.pixels[i] = p
	b.dirty = true
	return nil
}

func (b *Buffer) Pixel(i int) (pixel.Pixel, error) {
	if i < 0 || i >= len(b.pixels) {
		return pixel.Off, fmt.Errorf("%w: %d not in [0,%d) on channel %d", pixel.ErrIndex, i, len(b.pixels), b.channel)
	}
	return b.pixels[i], nil
}

// Pixels returns a copy of the buffer contents.
func (b *Buffer) Pixels() []pixel.Pixel {
	out := make([]pixel.Pixel, len(b.pixels))
	copy(out, b.pixels)
	return out
}

func (b *Buffer) Fill(p pixel.Pixel) {
	for i := range b.pixels {
		b.pixels[i] = p
	}
	b.dirty = true
}

// Darken multiplies every channel of every pixel by f, truncating.
func (b *Buffer) Darken(f float64) error {
	if err := pixel.ValidFactor(f); err != nil {
		return err
	}
	for i, p := range b.pixels {
		b.pixels[i] = p.Darken(f)
	}
	b.dirty = true
	return nil
}

// Serialize returns the raw payload in pixel.DefaultOrder.
func (b *Buffer) Serialize() []byte {
	return b.SerializeOrder(pixel.DefaultOrder)
}

func (b *Buffer) SerializeOrder(o pixel.Order) []byte {
	return o.Append(make([]byte, 0, len(b.pixels)*pixel.BytesPerPixel), b.pixels)
}

func (b *Buffer) Dirty() bool {
	return b.dirty
}

func (b *Buffer) MarkDirty() {
	b.dirty = true
}

func (b *Buffer) MarkClean() {
	b.dirty = false
}

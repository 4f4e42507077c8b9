package pixel

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOrder is returned when an Order is not a permutation of R, G, B, W.
var ErrOrder = errors.New("invalid channel order")

// BytesPerPixel is the number of elements sent for every pixel.
const BytesPerPixel = 4

// Order gives the position (0..3) inside a transmitted pixel of each colour.
type Order struct {
	R, G, B, W uint8
}

var (
	// GRBW is what the expander firmware expects.
	GRBW      = Order{R: 1, G: 0, B: 2, W: 3}
	RGBWOrder = Order{R: 0, G: 1, B: 2, W: 3}

	DefaultOrder = GRBW
)

// ParseOrder turns a string such as "GRBW" into an Order.
func ParseOrder(s string) (Order, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != BytesPerPixel {
		return Order{}, fmt.Errorf("%w: %q", ErrOrder, s)
	}
	var o Order
	var seen [4]bool
	for i := 0; i < len(s); i++ {
		pos := uint8(i)
		switch s[i] {
		case 'R':
			o.R = pos
		case 'G':
			o.G = pos
		case 'B':
			o.B = pos
		case 'W':
			o.W = pos
		default:
			return Order{}, fmt.Errorf("%w: %q", ErrOrder, s)
		}
		idx := strings.IndexByte("RGBW", s[i])
		if seen[idx] {
			return Order{}, fmt.Errorf("%w: %q repeats %c", ErrOrder, s, s[i])
		}
		seen[idx] = true
	}
	return o, nil
}

// OrderFromByte unpacks a channel-order byte.
func OrderFromByte(b byte) (Order, error) {
	o := Order{
		R: b & 0x3,
		G: (b >> 2) & 0x3,
		B: (b >> 4) & 0x3,
		W: (b >> 6) & 0x3,
	}
	if err := o.Validate(); err != nil {
		return Order{}, err
	}
	return o, nil
}

// Validate checks that every position is used exactly once.
func (o Order) Validate() error {
	var seen [4]bool
	for _, p := range [4]uint8{o.R, o.G, o.B, o.W} {
		if p > 3 || seen[p] {
			return fmt.Errorf("%w: R=%d G=%d B=%d W=%d", ErrOrder, o.R, o.G, o.B, o.W)
		}
		seen[p] = true
	}
	return nil
}

// Byte packs the order into four 2-bit fields, R in the low bits.
func (o Order) Byte() byte {
	return o.R&0x3 | (o.G&0x3)<<2 | (o.B&0x3)<<4 | (o.W&0x3)<<6
}

// Put writes p into dst[0:4] in this order.
func (o Order) Put(dst []byte, p Pixel) {
	_ = dst[3]
	dst[o.R] = p.R
	dst[o.G] = p.G
	dst[o.B] = p.B
	dst[o.W] = p.W
}

// Get reads a pixel from src[0:4] in this order.
func (o Order) Get(src []byte) Pixel {
	_ = src[3]
	return Pixel{R: src[o.R], G: src[o.G], B: src[o.B], W: src[o.W]}
}

// Append serializes pixels onto dst.
func (o Order) Append(dst []byte, pixels []Pixel) []byte {
	n := len(dst)
	dst = append(dst, make([]byte, len(pixels)*BytesPerPixel)...)
	for i, p := range pixels {
		o.Put(dst[n+i*BytesPerPixel:], p)
	}
	return dst
}

func (o Order) String() string {
	if o.Validate() != nil {
		return "invalid"
	}
	var b [4]byte
	b[o.R], b[o.G], b[o.B], b[o.W] = 'R', 'G', 'B', 'W'
	return string(b[:])
}

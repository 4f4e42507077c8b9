// Package pixel holds the 4-channel colour value shared by every strip type.
package pixel

import (
	"errors"
	"fmt"
)

var (
	// ErrIndex is returned for a pixel index outside [0, NumPixels).
	ErrIndex = errors.New("pixel index out of range")
	// ErrFactor is returned for a darken factor outside (0, 1].
	ErrFactor = errors.New("darken factor out of range")
)

const (
	WHITE_OFFSET uint8 = 0x18
	RED_OFFSET   uint8 = 0x10
	GREEN_OFFSET uint8 = 0x08
	BLUE_OFFSET  uint8 = 0x0
)

// Pixel is an RGBW colour, 8 bits per channel.
type Pixel struct {
	R uint8
	G uint8
	B uint8
	W uint8
}

// Off is the all-zero pixel.
var Off = Pixel{}

func RGB(r, g, b uint8) Pixel {
	return Pixel{R: r, G: g, B: b}
}

func RGBW(r, g, b, w uint8) Pixel {
	return Pixel{R: r, G: g, B: b, W: w}
}

// FromPacked splits a 0xWWRRGGBB colour integer.
func FromPacked(c uint32) Pixel {
	return Pixel{
		R: getcolor(c, RED_OFFSET),
		G: getcolor(c, GREEN_OFFSET),
		B: getcolor(c, BLUE_OFFSET),
		W: getcolor(c, WHITE_OFFSET),
	}
}

// Packed returns the colour as 0xWWRRGGBB, the layout rpi_ws281x uses.
func (p Pixel) Packed() uint32 {
	return uint32(p.W)<<WHITE_OFFSET | uint32(p.R)<<RED_OFFSET | uint32(p.G)<<GREEN_OFFSET | uint32(p.B)<<BLUE_OFFSET
}

func getcolor(c uint32, off uint8) uint8 {
	var mask uint32 = 0xFF << off
	return uint8((c & mask) >> off)
}

// Darken scales every channel by f, truncating toward zero.
// The caller validates f; see ValidFactor.
func (p Pixel) Darken(f float64) Pixel {
	return Pixel{
		R: uint8(float64(p.R) * f),
		G: uint8(float64(p.G) * f),
		B: uint8(float64(p.B) * f),
		W: uint8(float64(p.W) * f),
	}
}

// ValidFactor reports ErrFactor unless 0 < f <= 1.
func ValidFactor(f float64) error {
	if !(f > 0 && f <= 1) {
		return fmt.Errorf("%w: %v", ErrFactor, f)
	}
	return nil
}

func (p Pixel) IsOff() bool {
	return p == Off
}

func (p Pixel) String() string {
	return fmt.Sprintf("%02x%02x%02x%02x", p.R, p.G, p.B, p.W)
}

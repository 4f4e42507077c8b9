// Package strip is the directly driven pixel strip: an in-memory shadow of
// every pixel, pushed to an output device on Show.
package strip

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/ringlights/internal/pixel"
)

// Device is an output for a whole strip of pixels.
type Device interface {
	Show(pixels []pixel.Pixel) error
	Halt() error
}

// Strip holds the pixel state for one physically contiguous strip. Rings are
// views over it. It isn't safe for concurrent use.
type Strip struct {
	pixels     []pixel.Pixel
	out        []pixel.Pixel
	brightness uint8
	dev        Device
}

func New(n int, dev Device, brightness uint8) *Strip {
	if dev == nil {
		dev = Discard{}
	}
	return &Strip{
		pixels:     make([]pixel.Pixel, n),
		out:        make([]pixel.Pixel, n),
		brightness: brightness,
		dev:        dev,
	}
}

func (s *Strip) NumPixels() int {
	return len(s.pixels)
}

// SetPixelColor writes pixel i. Indexes off the strip are ignored.
func (s *Strip) SetPixelColor(i int, p pixel.Pixel) {
	if i < 0 || i >= len(s.pixels) {
		return
	}
	s.pixels[i] = p
}

// GetPixelColor reads pixel i; pixels off the strip read as Off.
func (s *Strip) GetPixelColor(i int) pixel.Pixel {
	if i < 0 || i >= len(s.pixels) {
		return pixel.Off
	}
	return s.pixels[i]
}

func (s *Strip) SetPixel(i int, p pixel.Pixel) error {
	if i < 0 || i >= len(s.pixels) {
		return fmt.Errorf("%w: %d not in [0,%d) on strip", pixel.ErrIndex, i, len(s.pixels))
	}
	s.pixels[i] = p
	return nil
}

func (s *Strip) Fill(p pixel.Pixel) {
	for i := range s.pixels {
		s.pixels[i] = p
	}
}

func (s *Strip) Darken(f float64) error {
	if err := pixel.ValidFactor(f); err != nil {
		return err
	}
	for i, p := range s.pixels {
		s.pixels[i] = p.Darken(f)
	}
	return nil
}

// Pixels returns a copy of the unscaled pixel state.
func (s *Strip) Pixels() []pixel.Pixel {
	out := make([]pixel.Pixel, len(s.pixels))
	copy(out, s.pixels)
	return out
}

func (s *Strip) Brightness() uint8 {
	return s.brightness
}

func (s *Strip) SetBrightness(b uint8) {
	s.brightness = b
}

// Show scales the pixels by the global brightness and pushes them out.
func (s *Strip) Show() error {
	scale := uint16(s.brightness) + 1
	for i, p := range s.pixels {
		s.out[i] = pixel.Pixel{
			R: uint8(uint16(p.R) * scale >> 8),
			G: uint8(uint16(p.G) * scale >> 8),
			B: uint8(uint16(p.B) * scale >> 8),
			W: uint8(uint16(p.W) * scale >> 8),
		}
	}
	if err := s.dev.Show(s.out); err != nil {
		return fmt.Errorf("strip show: %w", err)
	}
	return nil
}

// Close blanks the strip and releases the device.
func (s *Strip) Close() error {
	if err := s.dev.Halt(); err != nil {
		log.Warn().Err(err).Msg("strip halt")
		return err
	}
	return nil
}

// Discard drops every frame. It stands in when no strip is attached.
type Discard struct{}

func (Discard) Show([]pixel.Pixel) error { return nil }
func (Discard) Halt() error              { return nil }

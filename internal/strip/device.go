package strip

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
	"periph.io/x/host/v3"

	"github.com/coreman2200/ringlights/internal/pixel"
)

// DefaultFreq is the SPI clock for NRZ encoding of an 800kHz WS281x stream.
const DefaultFreq = 2500 * physic.KiloHertz

// NRZ drives WS281x/SK6812 RGBW pixels through an SPI port with periph's
// nrzled encoder.
type NRZ struct {
	dev    *nrzled.Dev
	raw    []byte
	closer io.Closer
}

func NewNRZ(p spi.Port, n int, freq physic.Frequency) (*NRZ, error) {
	if freq == 0 {
		freq = DefaultFreq
	}
	d, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: n,
		Channels:  pixel.BytesPerPixel,
		Freq:      freq,
	})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	if err := d.Halt(); err != nil {
		return nil, fmt.Errorf("nrzled halt: %w", err)
	}
	return &NRZ{dev: d, raw: make([]byte, n*pixel.BytesPerPixel)}, nil
}

// OpenSPI initialises the host and opens the named SPI port ("" picks the
// first one).
func OpenSPI(name string, n int, freq physic.Frequency) (*NRZ, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", name, err)
	}
	d, err := NewNRZ(p, n, freq)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	d.closer = p
	log.Info().Str("spi", p.String()).Int("pixels", n).Msg("nrz strip open")
	return d, nil
}

func (d *NRZ) Show(pixels []pixel.Pixel) error {
	d.raw = pixel.RGBWOrder.Append(d.raw[:0], pixels)
	_, err := d.dev.Write(d.raw)
	return err
}

func (d *NRZ) Halt() error {
	err := d.dev.Halt()
	if d.closer != nil {
		if cerr := d.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (d *NRZ) String() string {
	return d.dev.String()
}

// Display renders the strip as a one-pixel-high image on any periph drawer.
// White is folded into RGB.
type Display struct {
	d   display.Drawer
	img *image.NRGBA
}

func NewDisplay(d display.Drawer, n int) *Display {
	return &Display{d: d, img: image.NewNRGBA(image.Rect(0, 0, n, 1))}
}

// NewConsole prints the strip to the terminal with ANSI colours.
func NewConsole(n int) *Display {
	return NewDisplay(screen.New(n), n)
}

func (d *Display) Show(pixels []pixel.Pixel) error {
	for x := 0; x < d.img.Rect.Max.X && x < len(pixels); x++ {
		d.img.SetNRGBA(x, 0, toNRGBA(pixels[x]))
	}
	return d.d.Draw(d.d.Bounds(), d.img, image.Point{})
}

func (d *Display) Halt() error {
	return d.d.Halt()
}

func toNRGBA(p pixel.Pixel) color.NRGBA {
	return color.NRGBA{R: addW(p.R, p.W), G: addW(p.G, p.W), B: addW(p.B, p.W), A: 255}
}

func addW(c, w uint8) uint8 {
	if s := uint16(c) + uint16(w); s < 255 {
		return uint8(s)
	}
	return 255
}

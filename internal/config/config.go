package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/ringlights/internal/expander"
	"github.com/coreman2200/ringlights/internal/pixel"
	"github.com/coreman2200/ringlights/internal/transport"
)

var ErrInvalid = errors.New("invalid config")

type Ring struct {
	Count   int  `yaml:"count"`
	Reverse bool `yaml:"reverse,omitempty"`
}

type Channel struct {
	ID     uint8 `yaml:"id"`
	Pixels int   `yaml:"pixels"`
}

type Strip struct {
	Driver     string `yaml:"driver"` // "spi" | "console" | "none"
	SPI        string `yaml:"spi,omitempty"`
	FreqKHz    int    `yaml:"freq_khz,omitempty"`
	Pixels     int    `yaml:"pixels"`
	Brightness int    `yaml:"brightness"`
}

type Expander struct {
	Port       string    `yaml:"port"` // empty disables the expander
	Baud       int       `yaml:"baud"`
	ColorOrder string    `yaml:"color_order"`
	Channels   []Channel `yaml:"channels"`
}

type Preview struct {
	Addr string `yaml:"addr,omitempty"` // e.g. :8080, empty disables
}

type Config struct {
	Strip    Strip    `yaml:"strip"`
	Rings    []Ring   `yaml:"rings"`
	Expander Expander `yaml:"expander"`
	Preview  Preview  `yaml:"preview"`
	Clear    bool     `yaml:"clear"`
}

// Default is the 432-pixel, 22-ring installation with a two-pixel expander
// channel.
func Default() *Config {
	counts := []int{16, 35, 8, 16, 24, 35, 8, 16, 45, 24, 8, 16, 24, 24, 16, 8, 45, 8, 16, 16, 16, 8}
	reverse := map[int]bool{1: true, 3: true, 7: true, 9: true, 11: true, 13: true, 15: true, 17: true, 19: true, 21: true}
	rings := make([]Ring, len(counts))
	for i, n := range counts {
		rings[i] = Ring{Count: n, Reverse: reverse[i]}
	}
	return &Config{
		Strip: Strip{
			Driver:     "spi",
			FreqKHz:    2500,
			Pixels:     432,
			Brightness: 6,
		},
		Rings: rings,
		Expander: Expander{
			Port:       transport.DefaultPort,
			Baud:       transport.DefaultBaud,
			ColorOrder: pixel.DefaultOrder.String(),
			Channels:   []Channel{{ID: 0, Pixels: 2}},
		},
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// RingTotal is the number of strip pixels the rings cover.
func (c *Config) RingTotal() int {
	n := 0
	for _, r := range c.Rings {
		n += r.Count
	}
	return n
}

func (c *Config) Order() (pixel.Order, error) {
	if c.Expander.ColorOrder == "" {
		return pixel.DefaultOrder, nil
	}
	return pixel.ParseOrder(c.Expander.ColorOrder)
}

func (c *Config) Validate() error {
	switch c.Strip.Driver {
	case "spi", "console", "none":
	default:
		return fmt.Errorf("%w: strip driver %q", ErrInvalid, c.Strip.Driver)
	}
	if c.Strip.Pixels < 0 {
		return fmt.Errorf("%w: strip pixels %d", ErrInvalid, c.Strip.Pixels)
	}
	if c.Strip.Brightness < 0 || c.Strip.Brightness > 255 {
		return fmt.Errorf("%w: brightness %d not in 0..255", ErrInvalid, c.Strip.Brightness)
	}
	for i, r := range c.Rings {
		if r.Count <= 0 {
			return fmt.Errorf("%w: ring %d has %d pixels", ErrInvalid, i, r.Count)
		}
	}
	if total := c.RingTotal(); total > c.Strip.Pixels {
		return fmt.Errorf("%w: rings need %d pixels, strip has %d", ErrInvalid, total, c.Strip.Pixels)
	}
	if _, err := c.Order(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Expander.Port != "" && c.Expander.Baud <= 0 {
		return fmt.Errorf("%w: baud %d", ErrInvalid, c.Expander.Baud)
	}
	seen := map[uint8]bool{}
	for _, ch := range c.Expander.Channels {
		if ch.ID > expander.MaxChannel {
			return fmt.Errorf("%w: channel %d is reserved", ErrInvalid, ch.ID)
		}
		if seen[ch.ID] {
			return fmt.Errorf("%w: channel %d listed twice", ErrInvalid, ch.ID)
		}
		seen[ch.ID] = true
		if ch.Pixels <= 0 || ch.Pixels > expander.MaxPixels {
			return fmt.Errorf("%w: channel %d has %d pixels", ErrInvalid, ch.ID, ch.Pixels)
		}
	}
	return nil
}

// Package compositor owns the expander transport and the directly driven
// strip, and turns the current pixel state into one consistent frame per
// tick.
//
// A tick always runs in the same order: every dirty expander buffer is encoded
// (ascending channel), every frame is written, a single latch follows, and
// only then is the strip shown. A transport failure ends the tick early with
// no latch and no show, leaving the unsent buffers dirty for the next one.
package compositor

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/ringlights/internal/expander"
	"github.com/coreman2200/ringlights/internal/pixel"
	"github.com/coreman2200/ringlights/internal/transport"
)

var ErrDuplicateChannel = errors.New("channel already registered")

// Shower is the directly driven strip as the compositor sees it.
type Shower interface {
	Show() error
	Fill(p pixel.Pixel)
	Pixels() []pixel.Pixel
}

// Snapshot is what a tick put on the wire and on the strip.
type Snapshot struct {
	Tick     uint64                  `json:"tick"`
	Strip    []pixel.Pixel           `json:"strip,omitempty"`
	Channels map[uint8][]pixel.Pixel `json:"channels,omitempty"`
}

// Observer is told about every committed tick. It runs on the committing
// goroutine and must not block.
type Observer interface {
	Committed(s Snapshot)
}

type ObserverFunc func(Snapshot)

func (f ObserverFunc) Committed(s Snapshot) { f(s) }

type Option func(*Compositor)

// WithExpander sends expander frames to w. Writes are made whole-frame and
// failures wrap transport.ErrTransport.
func WithExpander(w io.Writer, codec *expander.Codec) Option {
	return func(c *Compositor) {
		tw, ok := w.(*transport.Writer)
		if !ok {
			tw = transport.NewWriter(w)
		}
		if codec == nil {
			codec = &expander.Codec{}
		}
		c.w = tw
		c.codec = codec
	}
}

func WithStrip(s Shower) Option {
	return func(c *Compositor) {
		c.strip = s
	}
}

func WithObserver(o Observer) Option {
	return func(c *Compositor) {
		c.observers = append(c.observers, o)
	}
}

// Compositor isn't safe for concurrent use; effects call Commit from the
// goroutine that owns it.
type Compositor struct {
	w         *transport.Writer
	codec     *expander.Codec
	strip     Shower
	buffers   []*expander.Buffer
	observers []Observer
	tick      uint64
}

func New(opts ...Option) *Compositor {
	c := &Compositor{}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Add registers an expander buffer. Channels must be unique.
func (c *Compositor) Add(b *expander.Buffer) error {
	for _, have := range c.buffers {
		if have.Channel() == b.Channel() {
			return fmt.Errorf("%w: %d", ErrDuplicateChannel, b.Channel())
		}
	}
	c.buffers = append(c.buffers, b)
	sort.Slice(c.buffers, func(i, j int) bool {
		return c.buffers[i].Channel() < c.buffers[j].Channel()
	})
	return nil
}

func (c *Compositor) Buffers() []*expander.Buffer {
	return append([]*expander.Buffer(nil), c.buffers...)
}

// Tick is the number of committed ticks.
func (c *Compositor) Tick() uint64 {
	return c.tick
}

// Commit pushes one tick out.
func (c *Compositor) Commit() error {
	if c.w != nil {
		if err := c.flush(); err != nil {
			return err
		}
	}
	if c.strip != nil {
		if err := c.strip.Show(); err != nil {
			return err
		}
	}
	c.tick++
	if len(c.observers) > 0 {
		s := c.snapshot()
		for _, o := range c.observers {
			o.Committed(s)
		}
	}
	return nil
}

// Clear turns every buffer and every strip pixel off and commits.
func (c *Compositor) Clear() error {
	for _, b := range c.buffers {
		b.Fill(pixel.Off)
	}
	if c.strip != nil {
		c.strip.Fill(pixel.Off)
	}
	return c.Commit()
}

func (c *Compositor) flush() error {
	type pending struct {
		b     *expander.Buffer
		frame []byte
	}
	var frames []pending
	for _, b := range c.buffers {
		if !b.Dirty() {
			continue
		}
		f, err := c.codec.EncodeBuffer(b)
		if err != nil {
			return fmt.Errorf("encode channel %d: %w", b.Channel(), err)
		}
		frames = append(frames, pending{b, f})
	}

	n := 0
	for _, p := range frames {
		if _, err := c.w.Write(p.frame); err != nil {
			log.Warn().Err(err).Uint8("channel", p.b.Channel()).Msg("expander write")
			return fmt.Errorf("channel %d: %w", p.b.Channel(), err)
		}
		n += len(p.frame)
	}
	latch := c.codec.EncodeLatchFrame()
	if _, err := c.w.Write(latch); err != nil {
		log.Warn().Err(err).Msg("expander latch")
		return fmt.Errorf("latch: %w", err)
	}
	n += len(latch)

	for _, p := range frames {
		p.b.MarkClean()
	}
	log.Debug().Uint64("tick", c.tick).Int("frames", len(frames)).Int("bytes", n).Msg("expander commit")
	return nil
}

func (c *Compositor) snapshot() Snapshot {
	s := Snapshot{Tick: c.tick}
	if c.strip != nil {
		s.Strip = c.strip.Pixels()
	}
	if len(c.buffers) > 0 {
		s.Channels = make(map[uint8][]pixel.Pixel, len(c.buffers))
		for _, b := range c.buffers {
			s.Channels[b.Channel()] = b.Pixels()
		}
	}
	return s
}

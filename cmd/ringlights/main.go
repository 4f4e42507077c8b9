package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/ringlights/internal/compositor"
	"github.com/coreman2200/ringlights/internal/config"
	"github.com/coreman2200/ringlights/internal/effects"
	"github.com/coreman2200/ringlights/internal/expander"
	"github.com/coreman2200/ringlights/internal/pixel"
	"github.com/coreman2200/ringlights/internal/preview"
	"github.com/coreman2200/ringlights/internal/ring"
	"github.com/coreman2200/ringlights/internal/strip"
	"github.com/coreman2200/ringlights/internal/transport"
)

const (
	frameWait    = 20 * time.Millisecond
	expanderWait = 3600 * time.Microsecond
)

type options struct {
	configPath string
	driver     string
	spi        string
	pixels     int
	brightness int
	port       string
	baud       int
	order      string
	addr       string
	loops      int
	test       string
	clear      bool
	verbose    bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*options, error) {
	def := config.Default()
	o := &options{}
	fs.StringVar(&o.configPath, "config", "ringlights.yaml", "path to the YAML config")
	fs.StringVar(&o.driver, "driver", def.Strip.Driver, "strip driver: spi | console | none")
	fs.StringVar(&o.spi, "spi", def.Strip.SPI, "SPI port name (empty picks the first)")
	fs.IntVar(&o.pixels, "pixels", def.Strip.Pixels, "pixels on the strip")
	fs.IntVar(&o.brightness, "brightness", def.Strip.Brightness, "strip brightness 0..255")
	fs.StringVar(&o.port, "port", def.Expander.Port, "expander serial port (empty disables)")
	fs.IntVar(&o.baud, "baud", def.Expander.Baud, "expander baud rate")
	fs.StringVar(&o.order, "order", def.Expander.ColorOrder, "expander colour order, e.g. GRBW")
	fs.StringVar(&o.addr, "addr", "", "preview listen address, e.g. :8080")
	fs.IntVar(&o.loops, "loops", 0, "playlist passes, 0 runs until interrupted")
	fs.StringVar(&o.test, "test", "", "run a wiring test instead of the show: index_sweep | rgbw_channels")
	fs.BoolVar(&o.clear, "clear", false, "clear the display on any exit")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return o, nil
}

// apply copies the flags given on the command line onto cfg. Flags left at
// their defaults don't touch what the config file set.
func (o *options) apply(cfg *config.Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "driver":
			cfg.Strip.Driver = o.driver
		case "spi":
			cfg.Strip.SPI = o.spi
		case "pixels":
			cfg.Strip.Pixels = o.pixels
		case "brightness":
			cfg.Strip.Brightness = o.brightness
		case "port":
			cfg.Expander.Port = o.port
		case "baud":
			cfg.Expander.Baud = o.baud
		case "order":
			cfg.Expander.ColorOrder = o.order
		case "addr":
			cfg.Preview.Addr = o.addr
		case "clear":
			cfg.Clear = o.clear
		}
	})
}

// loadConfig layers defaults, the config file and then explicit flags.
func loadConfig(o *options, fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		log.Info().Str("path", o.configPath).Msg("no config file; using flags")
		cfg = config.Default()
	default:
		log.Warn().Err(err).Str("path", o.configPath).Msg("config load failed; proceeding with flags")
		cfg = config.Default()
	}
	o.apply(cfg, fs)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	o, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if o.verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := loadConfig(o, flag.CommandLine)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if err := run(cfg, o); err != nil {
		log.Fatal().Err(err).Msg("ringlights")
	}
}

// run owns every opened device; returning lets the deferred closes release
// SPI and serial on any failure.
func run(cfg *config.Config, o *options) error {
	// ---- Strip and rings ----
	s := strip.New(cfg.Strip.Pixels, openDevice(cfg), uint8(cfg.Strip.Brightness))
	defer s.Close()

	alloc := ring.NewAllocator(s.NumPixels())
	var rings []effects.Canvas
	var top preview.Topology
	top.Pixels = s.NumPixels()
	for i, rc := range cfg.Rings {
		dir := ring.Forward
		if rc.Reverse {
			dir = ring.Reverse
		}
		r, err := alloc.Ring(s, rc.Count, dir)
		if err != nil {
			return fmt.Errorf("ring %d: %w", i, err)
		}
		rings = append(rings, r)
		top.Rings = append(top.Rings, preview.RingInfo{Offset: r.Offset(), Count: r.NumPixels(), Reverse: rc.Reverse})
	}
	log.Info().Int("rings", len(rings)).Int("used", alloc.Used()).Int("pixels", s.NumPixels()).Msg("ring layout")

	opts := []compositor.Option{compositor.WithStrip(s)}

	// ---- Expander ----
	var bufs []*expander.Buffer
	if cfg.Expander.Port != "" {
		order, err := cfg.Order()
		if err != nil {
			return err
		}
		codec, err := expander.NewCodec(order)
		if err != nil {
			return fmt.Errorf("expander codec: %w", err)
		}
		p, err := transport.Open(transport.Options{Port: cfg.Expander.Port, Baud: cfg.Expander.Baud})
		if err != nil {
			log.Warn().Err(err).Msg("expander unavailable; running the strip only")
		} else {
			defer p.Close()
			opts = append(opts, compositor.WithExpander(p, codec))
			for _, ch := range cfg.Expander.Channels {
				b, err := expander.NewBuffer(ch.ID, ch.Pixels)
				if err != nil {
					return fmt.Errorf("expander channel %d: %w", ch.ID, err)
				}
				bufs = append(bufs, b)
			}
		}
	}

	// ---- Preview ----
	if cfg.Preview.Addr != "" {
		top.Channels = map[uint8]int{}
		for _, b := range bufs {
			top.Channels[b.Channel()] = b.NumPixels()
		}
		hub := preview.NewHub(top)
		opts = append(opts, compositor.WithObserver(hub))
		srv := &http.Server{
			Addr:         cfg.Preview.Addr,
			Handler:      hub.Handler(),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Preview.Addr).Msg("preview server starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("preview server")
			}
		}()
		defer srv.Close()
	}

	comp := compositor.New(opts...)
	for _, b := range bufs {
		if err := comp.Add(b); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := comp.Clear(); err != nil {
		log.Error().Err(err).Msg("initial clear")
	}
	log.Info().Msg("press Ctrl-C to quit")
	if !cfg.Clear {
		log.Info().Msg(`use "-clear" to clear the display on any exit`)
	}

	show := playlist(s, rings, bufs)
	if o.test != "" {
		kind := effects.Kind(o.test)
		show = effects.Playlist{effects.Func{N: "test " + o.test, F: func(ctx context.Context, commit effects.Commit) error {
			return effects.Calibrate(ctx, s, kind, 10*frameWait, commit)
		}}}
	}
	err := show.Run(ctx, comp.Commit, o.loops)
	switch {
	case ctx.Err() != nil:
		log.Info().Msg("interrupted")
		if err := comp.Clear(); err != nil {
			log.Error().Err(err).Msg("clear")
		}
		return nil
	case err != nil:
		if cfg.Clear {
			_ = comp.Clear()
		}
		return fmt.Errorf("playlist stopped at tick %d: %w", comp.Tick(), err)
	case cfg.Clear:
		_ = comp.Clear()
	}
	return nil
}

func openDevice(cfg *config.Config) strip.Device {
	n := cfg.Strip.Pixels
	switch cfg.Strip.Driver {
	case "spi":
		freq := physic.Frequency(cfg.Strip.FreqKHz) * physic.KiloHertz
		d, err := strip.OpenSPI(cfg.Strip.SPI, n, freq)
		if err != nil {
			log.Warn().Err(err).Str("driver", "spi").Msg("SPI init failed; falling back to console")
			return strip.NewConsole(n)
		}
		return d
	case "console":
		return strip.NewConsole(n)
	default:
		return strip.Discard{}
	}
}

// playlist is the show: the expander demo frame, then rainbows over the
// rings and the whole strip.
func playlist(s *strip.Strip, rings []effects.Canvas, bufs []*expander.Buffer) effects.Playlist {
	whole := []effects.Canvas{s}
	var p effects.Playlist
	if len(bufs) > 0 {
		p = append(p, effects.Func{N: "expander", F: func(ctx context.Context, commit effects.Commit) error {
			return expanderDemo(ctx, bufs, commit)
		}})
	}
	p = append(p,
		effects.Func{N: "rainbow (rings)", F: func(ctx context.Context, commit effects.Commit) error {
			return effects.Rainbow(ctx, rings, frameWait, 1, commit)
		}},
		effects.Func{N: "rainbow (strip)", F: func(ctx context.Context, commit effects.Commit) error {
			return effects.Rainbow(ctx, whole, frameWait, 1, commit)
		}},
		effects.Func{N: "rainbow cycle (strip)", F: func(ctx context.Context, commit effects.Commit) error {
			return effects.RainbowCycle(ctx, whole, frameWait, 5, commit)
		}},
		effects.Func{N: "rainbow cycle (rings)", F: func(ctx context.Context, commit effects.Commit) error {
			return effects.RainbowCycle(ctx, rings, frameWait, 5, commit)
		}},
		effects.Func{N: "firefly (rings)", F: func(ctx context.Context, commit effects.Commit) error {
			return effects.Firefly(ctx, rings, rand.New(rand.NewSource(time.Now().UnixNano())), 2, 0.85, 512, frameWait, commit)
		}},
	)
	return p
}

var demo = []pixel.Pixel{pixel.RGBW(0, 255, 0, 0x2f), pixel.RGBW(0, 255, 0, 0)}

// expanderDemo resends the demo frame on every channel at the expander's
// pace. Pixels past the demo pair walk the colour wheel.
func expanderDemo(ctx context.Context, bufs []*expander.Buffer, commit effects.Commit) error {
	t := time.NewTicker(expanderWait)
	defer t.Stop()
	for j := 0; j < 256; j++ {
		for _, b := range bufs {
			for i := 0; i < b.NumPixels(); i++ {
				p := effects.Wheel(uint8((i + j) & 255))
				if i < len(demo) {
					p = demo[i]
				}
				_ = b.SetPixel(i, p)
			}
		}
		if err := commit(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

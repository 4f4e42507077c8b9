// Command expanderdump decodes an expander frame stream from a serial port,
// a file or stdin and logs every frame it finds.
package main

import (
	"errors"
	"flag"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/ringlights/internal/expander"
	"github.com/coreman2200/ringlights/internal/transport"
)

func main() {
	var (
		port    = flag.String("port", "", "serial port to read (default: -in or stdin)")
		baud    = flag.Int("baud", transport.DefaultBaud, "baud rate")
		in      = flag.String("in", "-", "capture file, - for stdin")
		pixels  = flag.Bool("pixels", false, "log decoded pixels")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMicro})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	var r io.Reader
	switch {
	case *port != "":
		p, err := transport.Open(transport.Options{Port: *port, Baud: *baud})
		if err != nil {
			log.Fatal().Err(err).Msg("open port")
		}
		defer p.Close()
		r = p
	case *in == "-":
		r = os.Stdin
	default:
		f, err := os.Open(*in)
		if err != nil {
			log.Fatal().Err(err).Msg("open capture")
		}
		defer f.Close()
		r = f
	}

	st := dump(expander.NewDecoder(r), *pixels)
	log.Info().
		Int("frames", st.frames).
		Int("latches", st.latches).
		Int("bad_crc", st.badCRC).
		Int("bad_frames", st.badFrames).
		Int("skipped", st.skipped).
		Msg("done")
}

type stats struct {
	frames, latches, badCRC, badFrames, skipped int
}

func dump(d *expander.Decoder, withPixels bool) stats {
	var st stats
	for {
		f, err := d.Next()
		switch {
		case err == nil:
		case errors.Is(err, expander.ErrChecksum):
			st.badCRC++
			log.Warn().Uint8("channel", f.Channel).Uint32("crc", f.CRC).Msg("checksum mismatch")
			continue
		case errors.Is(err, expander.ErrFrame):
			st.badFrames++
			log.Warn().Err(err).Msg("bad frame")
			continue
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			if errors.Is(err, io.ErrUnexpectedEOF) {
				log.Warn().Msg("stream ended mid-frame")
			}
			st.skipped = d.Skipped()
			return st
		default:
			log.Error().Err(err).Msg("read")
			st.skipped = d.Skipped()
			return st
		}

		if f.IsLatch() {
			st.latches++
			log.Info().Msg("latch")
			continue
		}
		st.frames++
		ev := log.Info().
			Uint8("channel", f.Channel).
			Str("order", f.Order.String()).
			Int("count", f.Count).
			Int("bytes", f.Len)
		if withPixels {
			px := make([]string, 0, f.Count)
			for _, p := range f.Pixels() {
				px = append(px, p.String())
			}
			ev = ev.Strs("pixels", px)
		}
		ev.Msg("pixels")
	}
}

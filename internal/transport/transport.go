// Package transport carries expander frames over a serial link.
package transport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tarm/serial"
)

// ErrTransport wraps every failure to hand bytes to the link.
var ErrTransport = errors.New("transport write failed")

const (
	DefaultPort = "/dev/ttyS0"
	DefaultBaud = 2000000
)

// Options configures the serial port.
type Options struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
}

// Port is an open serial link.
type Port interface {
	io.ReadWriteCloser
	Flush() error
}

// Open opens the serial port described by o, filling in defaults.
func Open(o Options) (Port, error) {
	if o.Port == "" {
		o.Port = DefaultPort
	}
	if o.Baud <= 0 {
		o.Baud = DefaultBaud
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        o.Port,
		Baud:        o.Baud,
		ReadTimeout: o.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", o.Port, err)
	}
	log.Info().Str("port", o.Port).Int("baud", o.Baud).Msg("serial port open")
	return p, nil
}

// Writer hands whole frames to an underlying byte sink. Each Write blocks until
// the sink has accepted all of p; a short write or sink error comes back
// wrapping ErrTransport.
type Writer struct {
	w     io.Writer
	bytes int64
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (t *Writer) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	t.bytes += int64(n)
	if err != nil {
		return n, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if n != len(p) {
		return n, fmt.Errorf("%w: %v (%d of %d bytes)", ErrTransport, io.ErrShortWrite, n, len(p))
	}
	return n, nil
}

// Written is the total number of bytes accepted by the sink.
func (t *Writer) Written() int64 {
	return t.bytes
}

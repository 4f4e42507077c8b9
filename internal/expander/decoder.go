package expander

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/coreman2200/ringlights/internal/pixel"
)

var (
	// ErrFrame is returned for a structurally invalid frame.
	ErrFrame = errors.New("malformed expander frame")
	// ErrChecksum is returned when the CRC trailer doesn't match the frame body.
	ErrChecksum = errors.New("expander frame checksum mismatch")
)

// Header is the fixed part of a frame, as far as it can be parsed without the
// payload.
type Header struct {
	Channel  uint8
	Type     uint8
	Elements uint8
	Order    pixel.Order
	Count    int
	// Len is the full frame length including payload and trailer.
	Len int
}

// ParseHeader reads the header at the start of b.
func ParseHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < FrameHeaderLen {
		return h, fmt.Errorf("%w: %d bytes is too short for a header", ErrFrame, len(b))
	}
	if [4]byte(b[:4]) != Magic {
		return h, fmt.Errorf("%w: bad magic % x", ErrFrame, b[:4])
	}
	h.Channel, h.Type = b[4], b[5]
	switch h.Type {
	case RecordLatch:
		if h.Channel != LatchChannel {
			return h, fmt.Errorf("%w: latch on channel %d", ErrFrame, h.Channel)
		}
		h.Len = LatchFrameLen
		return h, nil
	case RecordPixels:
		if h.Channel == LatchChannel {
			return h, fmt.Errorf("%w: pixel data on latch channel", ErrFrame)
		}
	default:
		return h, fmt.Errorf("%w: unknown record type %d", ErrFrame, h.Type)
	}
	if len(b) < FrameHeaderLen+ChannelHeaderLen {
		return h, fmt.Errorf("%w: %d bytes is too short for a channel header", ErrFrame, len(b))
	}
	if err := h.parseChannelHeader(b[FrameHeaderLen : FrameHeaderLen+ChannelHeaderLen]); err != nil {
		return h, err
	}
	return h, nil
}

func (h *Header) parseChannelHeader(ch []byte) error {
	h.Elements = ch[0]
	if h.Elements != pixel.BytesPerPixel {
		return fmt.Errorf("%w: %d elements per pixel", ErrFrame, h.Elements)
	}
	o, err := pixel.OrderFromByte(ch[1])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFrame, err)
	}
	h.Order = o
	h.Count = int(binary.LittleEndian.Uint16(ch[2:4]))
	h.Len = PixelFrameLen(h.Count)
	return nil
}

// Frame is one decoded frame.
type Frame struct {
	Header
	Payload []byte
	CRC     uint32
}

func (f *Frame) IsLatch() bool {
	return f.Type == RecordLatch
}

// Pixels decodes the payload using the frame's declared order.
func (f *Frame) Pixels() []pixel.Pixel {
	out := make([]pixel.Pixel, f.Count)
	for i := range out {
		out[i] = f.Order.Get(f.Payload[i*pixel.BytesPerPixel:])
	}
	return out
}

// Decoder reads frames from a byte stream, the way the expander does. It has
// to walk the header to learn where each frame ends.
type Decoder struct {
	r       *bufio.Reader
	skipped int
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Skipped is the number of bytes discarded while hunting for a magic.
func (d *Decoder) Skipped() int {
	return d.skipped
}

// Next returns the next frame. A checksum mismatch returns the parsed frame
// together with ErrChecksum, so the caller can decide what to do with it.
// io.EOF is returned only on a clean frame boundary.
func (d *Decoder) Next() (Frame, error) {
	var f Frame
	if err := d.sync(); err != nil {
		return f, err
	}
	body := make([]byte, FrameHeaderLen, PixelFrameOverhead)
	copy(body, Magic[:])
	if err := d.read(body[len(Magic):]); err != nil {
		return f, err
	}
	h, err := ParseHeader(body)
	switch {
	case err == nil:
	case h.Type == RecordPixels && h.Channel != LatchChannel:
		// Header is too short so far; pull in the channel header.
		body = body[:FrameHeaderLen+ChannelHeaderLen]
		if err := d.read(body[FrameHeaderLen:]); err != nil {
			return f, err
		}
		if h, err = ParseHeader(body); err != nil {
			return f, err
		}
	default:
		return f, err
	}
	f.Header = h
	if h.Type == RecordPixels {
		f.Payload = make([]byte, h.Count*pixel.BytesPerPixel)
		if err := d.read(f.Payload); err != nil {
			return f, err
		}
	}
	var trailer [TrailerLen]byte
	if err := d.read(trailer[:]); err != nil {
		return f, err
	}
	f.CRC = binary.LittleEndian.Uint32(trailer[:])

	crc := crc32.NewIEEE()
	crc.Write(body)
	crc.Write(f.Payload)
	if sum := crc.Sum32(); sum != f.CRC {
		return f, fmt.Errorf("%w: channel %d got %08x, computed %08x", ErrChecksum, h.Channel, f.CRC, sum)
	}
	return f, nil
}

func (d *Decoder) sync() error {
	var window [len(Magic)]byte
	n := 0
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			if err == io.EOF && n > 0 {
				d.skipped += n
				return io.ErrUnexpectedEOF
			}
			return err
		}
		copy(window[:], window[1:])
		window[len(window)-1] = c
		n++
		if n >= len(window) && window == Magic {
			d.skipped += n - len(window)
			return nil
		}
	}
}

func (d *Decoder) read(b []byte) error {
	if _, err := io.ReadFull(d.r, b); err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

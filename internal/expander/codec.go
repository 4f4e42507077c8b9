// Package expander implements the framing protocol spoken to the serial
// pixel expander, and the per-channel pixel buffers it carries.
//
// Every frame starts with the "UPXL" magic, a channel byte and a record type.
// Pixel-data frames follow that with a 4-byte channel header and the raw
// pixel payload; latch frames carry nothing else. Both end in a little-endian
// CRC-32 (IEEE, zlib compatible) computed over every byte before it. There is
// no outer length field: the payload length comes from the pixel count in the
// channel header.
package expander

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/coreman2200/ringlights/internal/pixel"
)

var (
	// ErrEncoding is returned when a payload can't be represented on the wire.
	ErrEncoding = errors.New("expander encoding error")
	// ErrInvalidChannel is returned for pixel data addressed to the reserved channel.
	ErrInvalidChannel = errors.New("invalid expander channel")
)

var Magic = [4]byte{'U', 'P', 'X', 'L'}

const (
	// LatchChannel is reserved for the draw command and never carries pixels.
	LatchChannel uint8 = 0xff
	MaxChannel   uint8 = LatchChannel - 1

	RecordPixels uint8 = 1
	RecordLatch  uint8 = 2

	// MaxPixels is the largest count the 16-bit channel header can carry.
	MaxPixels = 0xffff

	FrameHeaderLen   = len(Magic) + 2
	ChannelHeaderLen = 4
	TrailerLen       = 4

	// PixelFrameOverhead is the size of a pixel frame without its payload.
	PixelFrameOverhead = FrameHeaderLen + ChannelHeaderLen + TrailerLen
	LatchFrameLen      = FrameHeaderLen + TrailerLen
)

// PixelFrameLen is the encoded size of a pixel frame carrying n pixels.
func PixelFrameLen(n int) int {
	return PixelFrameOverhead + n*pixel.BytesPerPixel
}

// Codec turns pixel data into wire frames. It holds no pixel state and does
// no I/O; the zero value uses pixel.DefaultOrder.
type Codec struct {
	Order pixel.Order
}

func NewCodec(order pixel.Order) (*Codec, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return &Codec{Order: order}, nil
}

// order is the order frames are built in. Only the zero Order means the
// default; any other invalid order is an encoding error.
func (c *Codec) order() (pixel.Order, error) {
	if c == nil || c.Order == (pixel.Order{}) {
		return pixel.DefaultOrder, nil
	}
	if err := c.Order.Validate(); err != nil {
		return pixel.Order{}, fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	return c.Order, nil
}

// EncodePixelFrame builds a pixel-data frame for channel.
func (c *Codec) EncodePixelFrame(channel uint8, pixels []pixel.Pixel) ([]byte, error) {
	if err := checkChannel(channel); err != nil {
		return nil, err
	}
	if len(pixels) > MaxPixels {
		return nil, fmt.Errorf("%w: %d pixels exceeds %d", ErrEncoding, len(pixels), MaxPixels)
	}
	o, err := c.order()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, PixelFrameLen(len(pixels)))
	buf = appendPixelHeader(buf, channel, o, len(pixels))
	buf = o.Append(buf, pixels)
	return appendCRC(buf), nil
}

// EncodeRawFrame builds a pixel-data frame from a payload already laid out in
// the codec's order.
func (c *Codec) EncodeRawFrame(channel uint8, payload []byte) ([]byte, error) {
	if err := checkChannel(channel); err != nil {
		return nil, err
	}
	if len(payload)%pixel.BytesPerPixel != 0 {
		return nil, fmt.Errorf("%w: payload of %d bytes is not whole pixels", ErrEncoding, len(payload))
	}
	n := len(payload) / pixel.BytesPerPixel
	if n > MaxPixels {
		return nil, fmt.Errorf("%w: %d pixels exceeds %d", ErrEncoding, n, MaxPixels)
	}
	o, err := c.order()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, PixelFrameLen(n))
	buf = appendPixelHeader(buf, channel, o, n)
	buf = append(buf, payload...)
	return appendCRC(buf), nil
}

// EncodeBuffer serializes b in the codec's order and frames it.
func (c *Codec) EncodeBuffer(b *Buffer) ([]byte, error) {
	o, err := c.order()
	if err != nil {
		return nil, err
	}
	return c.EncodeRawFrame(b.Channel(), b.SerializeOrder(o))
}

// EncodeLatchFrame builds the draw command telling the expander to render
// everything received since the previous latch.
func (c *Codec) EncodeLatchFrame() []byte {
	buf := make([]byte, 0, LatchFrameLen)
	buf = appendFrameHeader(buf, LatchChannel, RecordLatch)
	return appendCRC(buf)
}

func checkChannel(channel uint8) error {
	if channel == LatchChannel {
		return fmt.Errorf("%w: channel %d is reserved for latch", ErrInvalidChannel, channel)
	}
	return nil
}

func appendFrameHeader(buf []byte, channel, record uint8) []byte {
	buf = append(buf, Magic[:]...)
	return append(buf, channel, record)
}

func appendPixelHeader(buf []byte, channel uint8, o pixel.Order, n int) []byte {
	buf = appendFrameHeader(buf, channel, RecordPixels)
	buf = append(buf, pixel.BytesPerPixel, o.Byte())
	return binary.LittleEndian.AppendUint16(buf, uint16(n))
}

func appendCRC(buf []byte) []byte {
	return binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
}

package expander

import (
	"encoding/binary"
	"hash/crc32"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/ringlights/internal/pixel"
)

func trailerOK(t *testing.T, frame []byte) {
	t.Helper()
	require.GreaterOrEqual(t, len(frame), TrailerLen)
	body := frame[:len(frame)-TrailerLen]
	got := binary.LittleEndian.Uint32(frame[len(frame)-TrailerLen:])
	assert.Equal(t, crc32.ChecksumIEEE(body), got, "crc trailer")
}

func TestPixelFrameLength(t *testing.T) {
	c := &Codec{}
	for _, n := range []int{0, 1, 2, 3, 255, 1024, MaxPixels} {
		for _, ch := range []uint8{0, 1, 127, MaxChannel} {
			t.Run(strconv.Itoa(int(ch))+"x"+strconv.Itoa(n), func(t *testing.T) {
				frame, err := c.EncodePixelFrame(ch, make([]pixel.Pixel, n))
				require.NoError(t, err)
				assert.Len(t, frame, 14+4*n)
				trailerOK(t, frame)

				h, err := ParseHeader(frame)
				require.NoError(t, err)
				assert.Equal(t, ch, h.Channel)
				assert.Equal(t, RecordPixels, h.Type)
				assert.Equal(t, n, h.Count)
				assert.Equal(t, len(frame), h.Len)
			})
		}
	}
}

func TestLatchFrame(t *testing.T) {
	frame := (&Codec{}).EncodeLatchFrame()
	require.Len(t, frame, 10)
	assert.Equal(t, []byte("UPXL"), frame[:4])
	assert.Equal(t, byte(0xff), frame[4])
	assert.Equal(t, byte(0x02), frame[5])
	trailerOK(t, frame)
	assert.Equal(t, crc32.ChecksumIEEE([]byte{'U', 'P', 'X', 'L', 0xff, 0x02}), binary.LittleEndian.Uint32(frame[6:]))
}

func TestReservedChannel(t *testing.T) {
	c := &Codec{}
	_, err := c.EncodePixelFrame(LatchChannel, []pixel.Pixel{{}})
	assert.ErrorIs(t, err, ErrInvalidChannel)
	_, err = c.EncodePixelFrame(LatchChannel, nil)
	assert.ErrorIs(t, err, ErrInvalidChannel)
	_, err = c.EncodeRawFrame(LatchChannel, nil)
	assert.ErrorIs(t, err, ErrInvalidChannel)
	_, err = NewBuffer(LatchChannel, 1)
	assert.ErrorIs(t, err, ErrInvalidChannel)
}

func TestCountOverflow(t *testing.T) {
	c := &Codec{}
	_, err := c.EncodePixelFrame(0, make([]pixel.Pixel, MaxPixels+1))
	assert.ErrorIs(t, err, ErrEncoding)
	_, err = c.EncodeRawFrame(0, make([]byte, (MaxPixels+1)*4))
	assert.ErrorIs(t, err, ErrEncoding)
	_, err = c.EncodeRawFrame(0, make([]byte, 7))
	assert.ErrorIs(t, err, ErrEncoding)
	_, err = NewBuffer(0, MaxPixels+1)
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestMatchesReceiverBytes(t *testing.T) {
	// Two pixels on channel 0, as the expander bring-up script sent them.
	payload := []byte{0xff, 0x00, 0x00, 0x2f, 0xff, 0x00, 0x00, 0x00}
	frame, err := (&Codec{}).EncodeRawFrame(0, payload)
	require.NoError(t, err)
	want := []byte{'U', 'P', 'X', 'L', 0x00, 0x01, 0x04, 0xe1, 0x02, 0x00}
	want = append(want, payload...)
	assert.Equal(t, want, frame[:len(frame)-TrailerLen])
	trailerOK(t, frame)
}

func TestBufferScenario(t *testing.T) {
	b, err := NewBuffer(2, 3)
	require.NoError(t, err)
	require.NoError(t, b.SetPixel(1, pixel.RGBW(255, 0, 0, 0)))

	c := &Codec{}
	frame, err := c.EncodeRawFrame(b.Channel(), b.Serialize())
	require.NoError(t, err)

	assert.Equal(t, byte(2), frame[4], "channel")
	assert.Equal(t, byte(1), frame[5], "type")
	assert.Equal(t, byte(4), frame[6], "elements")
	assert.Equal(t, pixel.DefaultOrder.Byte(), frame[7], "order")
	assert.Equal(t, uint16(3), binary.LittleEndian.Uint16(frame[8:10]), "count")

	want := make([]byte, 4)
	pixel.DefaultOrder.Put(want, pixel.RGBW(255, 0, 0, 0))
	assert.Equal(t, want, frame[10+4:10+8])
	assert.Equal(t, []byte{0x00, 0xff, 0x00, 0x00}, frame[10+4:10+8])
	trailerOK(t, frame)

	viaBuffer, err := c.EncodeBuffer(b)
	require.NoError(t, err)
	assert.Equal(t, frame, viaBuffer)
}

func TestCodecOrder(t *testing.T) {
	c, err := NewCodec(pixel.RGBWOrder)
	require.NoError(t, err)
	frame, err := c.EncodePixelFrame(5, []pixel.Pixel{pixel.RGBW(1, 2, 3, 4)})
	require.NoError(t, err)
	assert.Equal(t, pixel.RGBWOrder.Byte(), frame[7])
	assert.Equal(t, []byte{1, 2, 3, 4}, frame[10:14])

	_, err = NewCodec(pixel.Order{})
	assert.ErrorIs(t, err, pixel.ErrOrder)
}

func TestZeroCodecUsesDefaultOrder(t *testing.T) {
	frame, err := (&Codec{}).EncodePixelFrame(0, []pixel.Pixel{{R: 1}})
	require.NoError(t, err)
	assert.Equal(t, byte(0xe1), frame[7])
	assert.Equal(t, []byte{0, 1, 0, 0}, frame[10:14])
}

func TestInvalidCodecOrder(t *testing.T) {
	c := &Codec{Order: pixel.Order{R: 1, G: 1, B: 2, W: 3}}
	_, err := c.EncodePixelFrame(0, []pixel.Pixel{pixel.RGB(1, 2, 3)})
	assert.ErrorIs(t, err, ErrEncoding)
	assert.ErrorIs(t, err, pixel.ErrOrder)

	_, err = c.EncodeRawFrame(0, make([]byte, 4))
	assert.ErrorIs(t, err, ErrEncoding)

	b, err := NewBuffer(0, 1)
	require.NoError(t, err)
	_, err = c.EncodeBuffer(b)
	assert.ErrorIs(t, err, ErrEncoding)
}

package compositor

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/ringlights/internal/expander"
	"github.com/coreman2200/ringlights/internal/pixel"
	"github.com/coreman2200/ringlights/internal/transport"
)

// wire records every Write as one chunk and can fail the nth one.
type wire struct {
	chunks [][]byte
	failAt int
	events *[]string
}

func (w *wire) Write(p []byte) (int, error) {
	if w.failAt > 0 && len(w.chunks)+1 == w.failAt {
		return 0, errors.New("unplugged")
	}
	w.chunks = append(w.chunks, append([]byte(nil), p...))
	if w.events != nil {
		*w.events = append(*w.events, "write")
	}
	return len(p), nil
}

func (w *wire) frames(t *testing.T) []expander.Frame {
	t.Helper()
	d := expander.NewDecoder(bytes.NewReader(bytes.Join(w.chunks, nil)))
	var out []expander.Frame
	for {
		f, err := d.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, f)
	}
}

type fakeStrip struct {
	pixels []pixel.Pixel
	shows  int
	err    error
	events *[]string
}

func (s *fakeStrip) Show() error {
	if s.err != nil {
		return s.err
	}
	s.shows++
	if s.events != nil {
		*s.events = append(*s.events, "show")
	}
	return nil
}

func (s *fakeStrip) Fill(p pixel.Pixel) {
	for i := range s.pixels {
		s.pixels[i] = p
	}
}

func (s *fakeStrip) Pixels() []pixel.Pixel {
	return append([]pixel.Pixel(nil), s.pixels...)
}

func buffers(t *testing.T, c *Compositor, channels ...uint8) []*expander.Buffer {
	t.Helper()
	var out []*expander.Buffer
	for _, ch := range channels {
		b, err := expander.NewBuffer(ch, 2)
		require.NoError(t, err)
		require.NoError(t, c.Add(b))
		out = append(out, b)
	}
	return out
}

func TestCommitOrder(t *testing.T) {
	var events []string
	w := &wire{events: &events}
	s := &fakeStrip{pixels: make([]pixel.Pixel, 3), events: &events}
	c := New(WithExpander(w, nil), WithStrip(s))
	buffers(t, c, 7, 2, 4)

	require.NoError(t, c.Commit())
	frames := w.frames(t)
	require.Len(t, frames, 4)
	assert.Equal(t, uint8(2), frames[0].Channel)
	assert.Equal(t, uint8(4), frames[1].Channel)
	assert.Equal(t, uint8(7), frames[2].Channel)
	assert.True(t, frames[3].IsLatch(), "latch goes last")
	assert.Equal(t, []string{"write", "write", "write", "write", "show"}, events)
	assert.Equal(t, uint64(1), c.Tick())

	for _, b := range c.Buffers() {
		assert.False(t, b.Dirty())
	}
}

func TestCommitOnlyDirty(t *testing.T) {
	w := &wire{}
	c := New(WithExpander(w, nil))
	bs := buffers(t, c, 0, 1)
	require.NoError(t, c.Commit())

	w.chunks = nil
	require.NoError(t, bs[1].SetPixel(0, pixel.RGB(1, 2, 3)))
	require.NoError(t, c.Commit())
	frames := w.frames(t)
	require.Len(t, frames, 2)
	assert.Equal(t, uint8(1), frames[0].Channel)
	assert.Equal(t, pixel.RGB(1, 2, 3), frames[0].Pixels()[0])
	assert.True(t, frames[1].IsLatch())

	// nothing dirty still latches
	w.chunks = nil
	require.NoError(t, c.Commit())
	frames = w.frames(t)
	require.Len(t, frames, 1)
	assert.True(t, frames[0].IsLatch())
}

func TestCommitTransportFailure(t *testing.T) {
	w := &wire{failAt: 2}
	s := &fakeStrip{pixels: make([]pixel.Pixel, 1)}
	c := New(WithExpander(w, nil), WithStrip(s))
	bs := buffers(t, c, 0, 1, 2)

	err := c.Commit()
	assert.ErrorIs(t, err, transport.ErrTransport)
	require.Len(t, w.chunks, 1, "writes stop at the failure")
	for _, f := range w.frames(t) {
		assert.False(t, f.IsLatch())
	}
	assert.Zero(t, s.shows)
	assert.Zero(t, c.Tick())
	for _, b := range bs {
		assert.True(t, b.Dirty())
	}

	w.failAt = 0
	w.chunks = nil
	require.NoError(t, c.Commit())
	assert.Len(t, w.frames(t), 4)
	assert.Equal(t, 1, s.shows)
}

func TestCommitLatchFailure(t *testing.T) {
	w := &wire{failAt: 2}
	s := &fakeStrip{}
	c := New(WithExpander(w, nil), WithStrip(s))
	bs := buffers(t, c, 3)

	assert.ErrorIs(t, c.Commit(), transport.ErrTransport)
	assert.True(t, bs[0].Dirty())
	assert.Zero(t, s.shows)
}

func TestCommitStripOnly(t *testing.T) {
	s := &fakeStrip{pixels: make([]pixel.Pixel, 2)}
	c := New(WithStrip(s))
	require.NoError(t, c.Commit())
	assert.Equal(t, 1, s.shows)

	boom := errors.New("boom")
	s.err = boom
	assert.ErrorIs(t, c.Commit(), boom)
	assert.Equal(t, uint64(1), c.Tick())
}

func TestClear(t *testing.T) {
	w := &wire{}
	s := &fakeStrip{pixels: []pixel.Pixel{pixel.RGB(1, 1, 1), pixel.RGB(2, 2, 2)}}
	c := New(WithExpander(w, nil), WithStrip(s))
	bs := buffers(t, c, 5, 1)
	require.NoError(t, bs[0].SetPixel(1, pixel.RGB(9, 9, 9)))
	require.NoError(t, c.Commit())
	w.chunks = nil

	require.NoError(t, c.Clear())
	frames := w.frames(t)
	require.Len(t, frames, 3, "every channel then the latch")
	assert.Equal(t, uint8(1), frames[0].Channel)
	assert.Equal(t, uint8(5), frames[1].Channel)
	assert.True(t, frames[2].IsLatch())
	for _, f := range frames[:2] {
		for _, p := range f.Pixels() {
			assert.True(t, p.IsOff())
		}
	}
	for _, p := range s.pixels {
		assert.True(t, p.IsOff())
	}
}

func TestAddDuplicate(t *testing.T) {
	c := New()
	buffers(t, c, 3)
	b, err := expander.NewBuffer(3, 1)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Add(b), ErrDuplicateChannel)
}

func TestCodecOrderOnWire(t *testing.T) {
	w := &wire{}
	c := New(WithExpander(w, &expander.Codec{Order: pixel.RGBWOrder}))
	bs := buffers(t, c, 0)
	require.NoError(t, bs[0].SetPixel(0, pixel.RGBW(1, 2, 3, 4)))
	require.NoError(t, c.Commit())

	frames := w.frames(t)
	require.Len(t, frames, 2)
	assert.Equal(t, pixel.RGBWOrder, frames[0].Order)
	assert.Equal(t, []byte{1, 2, 3, 4}, frames[0].Payload[:4])
	assert.Equal(t, pixel.RGBW(1, 2, 3, 4), frames[0].Pixels()[0])
}

func TestObserverSnapshot(t *testing.T) {
	var got []Snapshot
	s := &fakeStrip{pixels: []pixel.Pixel{pixel.RGB(4, 5, 6)}}
	c := New(WithExpander(&wire{}, nil), WithStrip(s), WithObserver(ObserverFunc(func(s Snapshot) {
		got = append(got, s)
	})))
	bs := buffers(t, c, 9)
	require.NoError(t, bs[0].SetPixel(1, pixel.RGB(7, 7, 7)))

	require.NoError(t, c.Commit())
	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].Tick)
	assert.Equal(t, []pixel.Pixel{pixel.RGB(4, 5, 6)}, got[0].Strip)
	assert.Equal(t, []pixel.Pixel{pixel.Off, pixel.RGB(7, 7, 7)}, got[0].Channels[9])
}

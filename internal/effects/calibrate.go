package effects

import (
	"context"
	"fmt"
	"time"

	"github.com/coreman2200/ringlights/internal/pixel"
)

// Kind names a wiring test pattern.
type Kind string

const (
	IndexSweep Kind = "index_sweep"
	// ChannelTest lights every pixel red, green, blue and then white.
	ChannelTest Kind = "rgbw_channels"
)

var channelPhases = []pixel.Pixel{
	pixel.RGB(255, 0, 0),
	pixel.RGB(0, 255, 0),
	pixel.RGB(0, 0, 255),
	pixel.RGBW(0, 0, 0, 255),
}

// Calibrate runs a test pattern on c. IndexSweep walks a single white pixel
// from index 0 up, which shows where each ring starts and which way it runs.
func Calibrate(ctx context.Context, c Canvas, kind Kind, d time.Duration, commit Commit) error {
	n := c.NumPixels()
	switch kind {
	case IndexSweep:
		for i := 0; i < n; i++ {
			Clear(c)
			_ = c.SetPixel(i, pixel.RGBW(0, 0, 0, 255))
			if err := frame(ctx, commit, d); err != nil {
				return err
			}
		}
	case ChannelTest:
		for _, p := range channelPhases {
			for i := 0; i < n; i++ {
				_ = c.SetPixel(i, p)
			}
			if err := frame(ctx, commit, d); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown test pattern %q", kind)
	}
	Clear(c)
	return commit()
}

// Package effects animates anything that looks like a strip. Effects only
// mutate pixels and call the supplied Commit after each frame; they know
// nothing about how frames reach hardware.
package effects

import (
	"context"
	"math/rand"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/ringlights/internal/pixel"
)

// Canvas is the capability effects draw on. Expander buffers, rings and the
// strip itself all satisfy it.
type Canvas interface {
	SetPixel(i int, p pixel.Pixel) error
	NumPixels() int
	Darken(f float64) error
}

// Commit pushes the current frame out.
type Commit func() error

// Effect is a runnable animation bound to its canvases.
type Effect interface {
	Name() string
	Run(ctx context.Context, commit Commit) error
}

// Func adapts a closure to an Effect.
type Func struct {
	N string
	F func(ctx context.Context, commit Commit) error
}

func (f Func) Name() string                                 { return f.N }
func (f Func) Run(ctx context.Context, commit Commit) error { return f.F(ctx, commit) }

// wait sleeps for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func frame(ctx context.Context, commit Commit, d time.Duration) error {
	if err := commit(); err != nil {
		return err
	}
	return wait(ctx, d)
}

// Wheel walks 0..255 round the colour wheel, red to green to blue and back.
func Wheel(pos uint8) pixel.Pixel {
	switch {
	case pos < 85:
		return pixel.RGB(pos*3, 255-pos*3, 0)
	case pos < 170:
		pos -= 85
		return pixel.RGB(255-pos*3, 0, pos*3)
	default:
		pos -= 170
		return pixel.RGB(0, pos*3, 255-pos*3)
	}
}

// Clear turns every pixel of c off without committing.
func Clear(c Canvas) {
	for i := 0; i < c.NumPixels(); i++ {
		_ = c.SetPixel(i, pixel.Off)
	}
}

// ColorWipe lights one pixel at a time, committing after each.
func ColorWipe(ctx context.Context, c Canvas, color pixel.Pixel, d time.Duration, commit Commit) error {
	for i := 0; i < c.NumPixels(); i++ {
		if err := c.SetPixel(i, color); err != nil {
			return err
		}
		if err := frame(ctx, commit, d); err != nil {
			return err
		}
	}
	return nil
}

// TheaterChase runs every third pixel along like a marquee.
func TheaterChase(ctx context.Context, c Canvas, color pixel.Pixel, d time.Duration, iterations int, commit Commit) error {
	n := c.NumPixels()
	for j := 0; j < iterations; j++ {
		for q := 0; q < 3; q++ {
			for i := q; i < n; i += 3 {
				_ = c.SetPixel(i, color)
			}
			if err := frame(ctx, commit, d); err != nil {
				return err
			}
			for i := q; i < n; i += 3 {
				_ = c.SetPixel(i, pixel.Off)
			}
		}
	}
	return nil
}

// Rainbow shifts the wheel along every canvas at once, one commit per step.
func Rainbow(ctx context.Context, canvases []Canvas, d time.Duration, iterations int, commit Commit) error {
	for j := 0; j < 256*iterations; j++ {
		for _, c := range canvases {
			for i := 0; i < c.NumPixels(); i++ {
				_ = c.SetPixel(i, Wheel(uint8((i+j)&255)))
			}
		}
		if err := frame(ctx, commit, d); err != nil {
			return err
		}
	}
	return nil
}

// RainbowCycle spreads one full wheel across each canvas and rotates it.
func RainbowCycle(ctx context.Context, canvases []Canvas, d time.Duration, iterations int, commit Commit) error {
	for j := 0; j < 256*iterations; j++ {
		for _, c := range canvases {
			n := c.NumPixels()
			for i := 0; i < n; i++ {
				_ = c.SetPixel(i, Wheel(uint8((i*256/n+j)&255)))
			}
		}
		if err := frame(ctx, commit, d); err != nil {
			return err
		}
	}
	return nil
}

// TheaterChaseRainbow is TheaterChase with wheel colours.
func TheaterChaseRainbow(ctx context.Context, c Canvas, d time.Duration, commit Commit) error {
	n := c.NumPixels()
	for j := 0; j < 256; j++ {
		for q := 0; q < 3; q++ {
			for i := q; i < n; i += 3 {
				_ = c.SetPixel(i, Wheel(uint8((i+j)%255)))
			}
			if err := frame(ctx, commit, d); err != nil {
				return err
			}
			for i := q; i < n; i += 3 {
				_ = c.SetPixel(i, pixel.Off)
			}
		}
	}
	return nil
}

// Fade darkens every canvas by factor, steps times.
func Fade(ctx context.Context, canvases []Canvas, factor float64, steps int, d time.Duration, commit Commit) error {
	if err := pixel.ValidFactor(factor); err != nil {
		return err
	}
	for s := 0; s < steps; s++ {
		for _, c := range canvases {
			if err := c.Darken(factor); err != nil {
				return err
			}
		}
		if err := frame(ctx, commit, d); err != nil {
			return err
		}
	}
	return nil
}

// Firefly drops random bright sparks that decay by factor each step.
func Firefly(ctx context.Context, canvases []Canvas, rng *rand.Rand, sparks int, factor float64, steps int, d time.Duration, commit Commit) error {
	if err := pixel.ValidFactor(factor); err != nil {
		return err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	log.Debug().Int("canvases", len(canvases)).Int("sparks", sparks).Msg("firefly")
	for s := 0; s < steps; s++ {
		for _, c := range canvases {
			if err := c.Darken(factor); err != nil {
				return err
			}
			n := c.NumPixels()
			if n == 0 {
				continue
			}
			for k := 0; k < sparks; k++ {
				if rng.Intn(4) != 0 {
					continue
				}
				r, g, b := colorful.Hsv(rng.Float64()*360, 1, 1).RGB255()
				_ = c.SetPixel(rng.Intn(n), pixel.RGB(r, g, b))
			}
		}
		if err := frame(ctx, commit, d); err != nil {
			return err
		}
	}
	return nil
}

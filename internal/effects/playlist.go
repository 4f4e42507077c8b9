package effects

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Playlist runs effects one after another.
type Playlist []Effect

// Run plays the list loops times, or forever when loops is 0. It stops at the
// first error, including ctx being done.
func (p Playlist) Run(ctx context.Context, commit Commit, loops int) error {
	if len(p) == 0 {
		return nil
	}
	for n := 0; loops == 0 || n < loops; n++ {
		for _, e := range p {
			if err := ctx.Err(); err != nil {
				return err
			}
			log.Info().Str("effect", e.Name()).Int("pass", n).Msg("playing")
			if err := e.Run(ctx, commit); err != nil {
				return err
			}
		}
	}
	return nil
}

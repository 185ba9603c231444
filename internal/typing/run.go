package typing

import (
	"context"
	"time"
)

// RenderFunc receives each display string produced by the cycler.
// Returning an error stops Run.
type RenderFunc func(text string) error

// Run drives c on a single one-shot timer until ctx is done or render
// fails. The first Tick happens after startDelay. Only one timer is ever
// pending; cancelling ctx discards it.
func Run(ctx context.Context, c *Cycler, startDelay time.Duration, render RenderFunc) error {
	timer := time.NewTimer(startDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		text, next := c.Tick()
		if err := render(text); err != nil {
			return err
		}
		timer.Reset(next)
	}
}

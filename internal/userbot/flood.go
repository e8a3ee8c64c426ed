package userbot

import (
	"context"
	"fmt"
	"time"

	"github.com/gotd/td/tgerr"
)

// floodBuffer is added on top of the server-announced flood wait before
// retrying; retrying at the exact boundary tends to trip the limiter again.
const floodBuffer = 5 * time.Second

// FloodWaitError reports a flood wait longer than the configured threshold.
// The caller is expected to rotate to another session instead of sleeping.
type FloodWaitError struct {
	Wait time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("userbot: flood wait of %s exceeds threshold", e.Wait)
}

// invoke runs fn, sleeping through flood waits below the threshold and
// converting longer ones into *FloodWaitError.
func (c *Client) invoke(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		wait, ok := tgerr.AsFloodWait(err)
		if !ok {
			return err
		}
		wait += floodBuffer

		if wait > c.opts.FloodThreshold {
			c.log.Warn("long flood wait", "op", op, "wait", wait)
			return &FloodWaitError{Wait: wait}
		}

		c.log.Warn("flood wait, sleeping", "op", op, "wait", wait)
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

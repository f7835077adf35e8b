package daemon

import (
	"context"
	"log"
	"time"
)

// Run keeps the client connected until ctx is cancelled: it dials, pings every
// HeartbeatInterval, and on any failure reports the disconnect and retries after
// RetryDelay. onStatusChange is called on every transition.
func (c *Client) Run(ctx context.Context, onStatusChange func(connected bool)) {
	onStatusChange(false)

	for {
		if ctx.Err() != nil {
			log.Println("[Daemon] Connection loop shutting down.")
			return
		}

		if err := c.Connect(ctx); err != nil {
			if err == ErrClosed {
				return
			}
			log.Printf("[Daemon] Failed to connect: %v", err)
			if !sleepCtx(ctx, c.opts.RetryDelay) {
				return
			}
			continue
		}

		log.Printf("[Daemon] Connected to %s", c.url)
		onStatusChange(true)
		c.watch(ctx)
		onStatusChange(false)

		if !sleepCtx(ctx, c.opts.RetryDelay) {
			return
		}
	}
}

// watch returns when the current connection ends or ctx is cancelled.
func (c *Client) watch(ctx context.Context) {
	conn, done := c.current()
	if conn == nil {
		return
	}

	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Ping(ctx); err != nil {
				log.Printf("[Daemon] Heartbeat failed: %v", err)
				c.drop(conn)
				<-done
				return
			}
		case <-done:
			log.Println("[Daemon] Connection lost.")
			return
		case <-ctx.Done():
			log.Println("[Daemon] Disconnecting due to shutdown...")
			c.drop(conn)
			<-done
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

package workers

import (
	"context"
	"log"
	"time"
)

// SessionReaper closes editing sessions that nobody touched for a while.
type SessionReaper interface {
	ReapIdle(timeout time.Duration) int
}

// StartSessionReaper checks for idle sessions every interval until ctx is
// done. The returned channel is closed once the worker has exited.
func StartSessionReaper(ctx context.Context, r SessionReaper, interval, timeout time.Duration) <-chan struct{} {
	return Every(ctx, interval, func() {
		if n := r.ReapIdle(timeout); n > 0 {
			log.Printf("Reaped %d idle editing sessions", n)
		}
	})
}

// Every runs fn on each tick of interval until ctx is done.
func Every(ctx context.Context, interval time.Duration, fn func()) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-ctx.Done():
				return
			}
		}
	}()
	return done
}

package statemachine

import (
	"context"
	"time"
)

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Poll calls check every interval until it reports done or timeout elapses.
// It returns the time waited and whether the condition was met. A zero timeout
// polls until ctx is done.
func Poll(ctx context.Context, interval, timeout time.Duration, check func() bool) (time.Duration, bool, error) {
	start := time.Now()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if check() {
			return time.Since(start), true, nil
		}
		if timeout > 0 && time.Since(start) >= timeout {
			return time.Since(start), false, nil
		}
		select {
		case <-ctx.Done():
			return time.Since(start), false, ctx.Err()
		case <-ticker.C:
		}
	}
}

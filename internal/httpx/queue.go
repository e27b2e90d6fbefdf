package httpx

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Queue serialises logical calls: at most concurrency run at once and at
// most cap may start within any interval. Starts are spaced interval/cap
// apart with no burst, so no window of length interval holds more than cap.
// A whole retry sequence counts as one call.
type Queue struct {
	limiter *rate.Limiter
	slots   chan struct{}
}

func NewQueue(concurrency int, interval time.Duration, cap int) *Queue {
	if concurrency <= 0 {
		concurrency = 1
	}
	if cap <= 0 {
		cap = 1
	}
	return &Queue{
		limiter: rate.NewLimiter(rate.Every(interval/time.Duration(cap)), 1),
		slots:   make(chan struct{}, concurrency),
	}
}

// Do waits for a slot and a rate token, then runs fn.
func (q *Queue) Do(ctx context.Context, fn func(context.Context) error) error {
	select {
	case q.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-q.slots }()

	if err := q.limiter.Wait(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

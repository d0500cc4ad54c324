package rate

import (
	"context"
	"fmt"
	"time"
)

const (
	minuteWindow = time.Minute
	tenSecWindow = 10 * time.Second
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Limit bounds one action over two sliding windows. A zero bound disables
// that window.
type Limit struct {
	PerMinute int
	Per10Sec  int
}

// Limiter throttles actions per subject (buyer, IP) against redis-backed
// counters. Constructed once and injected; it keeps no in-process counters.
type Limiter struct {
	store  WindowStore
	limits map[string]Limit
}

func NewLimiter(store WindowStore, limits map[string]Limit) *Limiter {
	normalized := make(map[string]Limit, len(limits))
	for action, limit := range limits {
		if limit.PerMinute < 0 {
			limit.PerMinute = 0
		}
		if limit.Per10Sec < 0 {
			limit.Per10Sec = 0
		}
		normalized[action] = limit
	}

	return &Limiter{store: store, limits: normalized}
}

// Allow reports whether the subject may perform the action now. When blocked,
// retryAfterSec is the number of seconds until the widest exceeded window
// expires. Unknown actions are always allowed.
func (l *Limiter) Allow(ctx context.Context, action, subject string) (int64, bool, error) {
	if action == "" || subject == "" {
		return 0, false, fmt.Errorf("action and subject are required")
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	limit, ok := l.limits[action]
	if !ok {
		return 0, true, nil
	}

	retryAfterSec := int64(0)

	if limit.PerMinute > 0 {
		count, ttl, err := l.store.IncrementWindow(ctx, windowKey(action, "min", subject), minuteWindow)
		if err != nil {
			return 0, false, err
		}
		if count > int64(limit.PerMinute) {
			retryAfterSec = maxInt64(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if limit.Per10Sec > 0 {
		count, ttl, err := l.store.IncrementWindow(ctx, windowKey(action, "10s", subject), tenSecWindow)
		if err != nil {
			return 0, false, err
		}
		if count > int64(limit.Per10Sec) {
			retryAfterSec = maxInt64(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if retryAfterSec > 0 {
		return retryAfterSec, false, nil
	}

	return 0, true, nil
}

func windowKey(action, window, subject string) string {
	return "rate:" + action + ":" + window + ":" + subject
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

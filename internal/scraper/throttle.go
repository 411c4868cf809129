package scraper

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Throttle imposes a fixed plus random delay before every outbound fetch.
type Throttle struct {
	min    time.Duration
	random time.Duration

	mu    sync.Mutex
	rnd   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

func NewThrottle(min, random time.Duration) *Throttle {
	return &Throttle{
		min:    min,
		random: random,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  sleepContext,
	}
}

// Delay returns the next wait: min + rand[0,1) * random.
func (t *Throttle) Delay() time.Duration {
	if t == nil {
		return 0
	}
	d := t.min
	if t.random > 0 {
		t.mu.Lock()
		f := t.rnd.Float64()
		t.mu.Unlock()
		d += time.Duration(f * float64(t.random))
	}
	if d < 0 {
		return 0
	}
	return d
}

func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return ctx.Err()
	}
	d := t.Delay()
	if d <= 0 {
		return ctx.Err()
	}
	return t.sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

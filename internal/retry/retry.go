// Package retry runs operations through cenkalti/backoff with linear waits and
// provides the fixed pauses used between fetches and summary batches.
package retry

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits for d. It returns ctx.Err() if the context ends first.
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

// Linear is a backoff.BackOff waiting attempt × Step after each failure.
// Step may be changed by the operation before the next wait is computed.
type Linear struct {
	Step    time.Duration
	attempt int
}

// NextBackOff implements backoff.BackOff.
func (l *Linear) NextBackOff() time.Duration {
	l.attempt++
	return time.Duration(l.attempt) * l.Step
}

// Reset implements backoff.BackOff.
func (l *Linear) Reset() { l.attempt = 0 }

// paced performs each wait through sleep and hands the library a zero delay.
type paced struct {
	ctx   context.Context
	next  backoff.BackOff
	sleep SleepFunc
}

func (p *paced) NextBackOff() time.Duration {
	d := p.next.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	if err := p.sleep(p.ctx, d); err != nil {
		return backoff.Stop
	}
	return 0
}

func (p *paced) Reset() { p.next.Reset() }

// Do runs op at most tries times, waiting b.NextBackOff() between attempts.
// Errors wrapped with backoff.Permanent stop immediately. A nil sleep lets the
// library timer wait; otherwise sleep performs every wait.
func Do[T any](ctx context.Context, op backoff.Operation[T], b backoff.BackOff, tries int, sleep SleepFunc) (T, error) {
	if sleep != nil {
		b = &paced{ctx: ctx, next: b, sleep: sleep}
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(max(tries, 1))),
		backoff.WithMaxElapsedTime(0),
	)
}

// Recorder is a SleepFunc that records requested pauses without waiting.
type Recorder struct {
	mu     sync.Mutex
	pauses []time.Duration
}

// Sleep records d and returns immediately.
func (r *Recorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.pauses = append(r.pauses, d)
	r.mu.Unlock()
	return ctx.Err()
}

// Pauses returns the recorded pauses in call order.
func (r *Recorder) Pauses() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.pauses...)
}

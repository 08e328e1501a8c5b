// Package pacing spaces repeated executions at a fixed rate.
//
// A Pacer keeps a virtual schedule that advances by one interval per start.
// A caller that falls behind the schedule starts immediately, but the missed
// slots are not banked, so a slow run is never followed by a burst.
package pacing

import (
	"context"
	"sync"
	"time"
)

// Pacer hands out start times at most rate per second. A nil *Pacer never
// waits. Pacer is safe for concurrent use.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
	waited   time.Duration
	starts   int64
	now      func() time.Time
}

// Option configures a Pacer.
type Option func(*Pacer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pacer) { p.now = now }
}

// New returns a pacer allowing perSecond starts per second. A non-positive
// rate means unpaced and yields nil.
func New(perSecond float64, opts ...Option) *Pacer {
	if perSecond <= 0 {
		return nil
	}
	p := &Pacer{
		interval: time.Duration(float64(time.Second) / perSecond),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the spacing between starts.
func (p *Pacer) Interval() time.Duration {
	if p == nil {
		return 0
	}
	return p.interval
}

// Next reserves the next slot and returns when it begins. The first slot
// begins immediately.
func (p *Pacer) Next() time.Time {
	if p == nil {
		return time.Now()
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	start := p.next
	if start.Before(now) {
		start = now
	}
	p.next = start.Add(p.interval)
	p.waited += start.Sub(now)
	p.starts++
	return start
}

// Wait blocks until the next slot begins or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	delay := p.Next().Sub(p.now())
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Stats reports how many slots were handed out and the total scheduled delay.
func (p *Pacer) Stats() (starts int64, waited time.Duration) {
	if p == nil {
		return 0, 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts, p.waited
}

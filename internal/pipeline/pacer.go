package pipeline

import (
	"context"
	"sync"
	"time"
)

// pacer enforces a minimum interval between provider calls. The gate applies
// regardless of whether the previous call succeeded; a failed call still
// counts against the provider's rate limit.
type pacer struct {
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

// wait blocks until the interval since the last stamped call has elapsed, or
// the context is cancelled.
func (p *pacer) wait(ctx context.Context) error {
	if p.interval <= 0 {
		return nil
	}

	p.mu.Lock()
	d := time.Until(p.last.Add(p.interval))
	p.mu.Unlock()

	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// stamp records that a provider call just finished.
func (p *pacer) stamp() {
	if p.interval <= 0 {
		return
	}
	p.mu.Lock()
	p.last = time.Now()
	p.mu.Unlock()
}

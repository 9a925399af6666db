package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Strob0t/CodeMentor/internal/domain"
)

// AdmissionGate is a per-key token bucket guarding every user-facing chat
// operation. A caller briefly over budget is delayed until its next token;
// beyond maxDelay it is rejected with domain.ErrRateLimited. The gate is
// checked before any state mutation begins.
type AdmissionGate struct {
	mu         sync.Mutex
	buckets    map[string]*gateBucket
	rate       float64 // tokens per second
	burst      int
	maxDelay   time.Duration
	maxBuckets int
	now        func() time.Time // for testing
	sleep      func(context.Context, time.Duration) error
}

type gateBucket struct {
	tokens    float64
	updatedAt time.Time
	lastSeen  time.Time
}

// NewAdmissionGate creates a gate with the given sustained rate (requests per
// second), burst size, and maximum admission delay.
func NewAdmissionGate(rate float64, burst int, maxDelay time.Duration) *AdmissionGate {
	return &AdmissionGate{
		buckets:    make(map[string]*gateBucket),
		rate:       rate,
		burst:      burst,
		maxDelay:   maxDelay,
		maxBuckets: 100000,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Admit admits one request for key, suspending up to the configured maximum
// delay when the bucket is briefly empty. It returns an error wrapping
// domain.ErrRateLimited when the wait would exceed the maximum, and ctx.Err()
// if the context is cancelled while waiting.
func (g *AdmissionGate) Admit(ctx context.Context, key string) error {
	wait, ok := g.reserve(key)
	if !ok {
		return fmt.Errorf("admission gate: key %q over budget: %w", key, domain.ErrRateLimited)
	}
	if wait > 0 {
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}

// reserve takes one token for key, returning the delay before the admission
// becomes effective and whether admission is possible at all.
func (g *AdmissionGate) reserve(key string) (wait time.Duration, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	b, exists := g.buckets[key]
	if !exists {
		if len(g.buckets) >= g.maxBuckets {
			return 0, false // reject when at capacity
		}
		b = &gateBucket{tokens: float64(g.burst), updatedAt: now}
		g.buckets[key] = b
	}

	elapsed := now.Sub(b.updatedAt).Seconds()
	b.tokens += elapsed * g.rate
	if b.tokens > float64(g.burst) {
		b.tokens = float64(g.burst)
	}
	b.updatedAt = now
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}

	// Bucket is empty: compute the delay until the next token accrues.
	delay := time.Duration((1 - b.tokens) / g.rate * float64(time.Second))
	if delay > g.maxDelay {
		return 0, false
	}
	b.tokens-- // reserve the token that accrues during the delay
	return delay, true
}

// StartCleanup spawns a goroutine that removes stale buckets every interval.
// Returns a cancel function that stops the cleanup goroutine.
func (g *AdmissionGate) StartCleanup(interval, maxIdle time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.cleanup(maxIdle)
			}
		}
	}()
	return cancel
}

func (g *AdmissionGate) cleanup(maxIdle time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cutoff := g.now().Add(-maxIdle)
	for key, b := range g.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(g.buckets, key)
		}
	}
}

// Len returns the number of tracked buckets (for metrics and testing).
func (g *AdmissionGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.buckets)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Package httpx implements the shared REST transport: a resty-backed client
// with nested rate limiting and exchange-agnostic retry/error mapping.
package httpx

import (
	"context"
	"sync"
	"time"
)

// TokenBucket implements a token-bucket rate limiter with continuous
// (fractional) refill. Callers block in Wait() until a token is available
// or the context is cancelled.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens refilled per second
	lastTime time.Time
}

// NewTokenBucket creates a rate limiter with the given capacity and refill rate.
func NewTokenBucket(capacity, ratePerSecond float64) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTime = now

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Semaphore bounds total concurrent requests regardless of endpoint.
type Semaphore struct {
	ch chan struct{}
}

// NewSemaphore creates a semaphore with the given concurrency limit. A
// limit <= 0 disables the bound (acquire/release become no-ops).
func NewSemaphore(limit int) *Semaphore {
	if limit <= 0 {
		return &Semaphore{}
	}
	return &Semaphore{ch: make(chan struct{}, limit)}
}

// Acquire blocks until a slot is free or ctx is cancelled.
func (s *Semaphore) Acquire(ctx context.Context) error {
	if s.ch == nil {
		return nil
	}
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot acquired by Acquire.
func (s *Semaphore) Release() {
	if s.ch == nil {
		return
	}
	<-s.ch
}

// RateLimiter composes a global concurrency semaphore with per-endpoint
// token buckets, per spec §4.2.1: acquisition order is global then
// endpoint; release is reverse.
type RateLimiter struct {
	global    *Semaphore
	mu        sync.Mutex
	endpoints map[string]*TokenBucket
	rps       float64
	burst     float64
	minDelay  time.Duration // global minimum inter-request delay
	lastReq   time.Time
	lastMu    sync.Mutex
}

// NewRateLimiter creates a limiter with a global concurrency bound and a
// default per-endpoint (rps, burst) used to lazily create buckets.
func NewRateLimiter(globalConcurrency int, rps, burst float64, minDelay time.Duration) *RateLimiter {
	return &RateLimiter{
		global:    NewSemaphore(globalConcurrency),
		endpoints: make(map[string]*TokenBucket),
		rps:       rps,
		burst:     burst,
		minDelay:  minDelay,
	}
}

func (rl *RateLimiter) bucketFor(endpoint string) *TokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	tb, ok := rl.endpoints[endpoint]
	if !ok {
		tb = NewTokenBucket(rl.burst, rl.rps)
		rl.endpoints[endpoint] = tb
	}
	return tb
}

// Acquire blocks until both the global and endpoint-specific budgets admit
// a request, and the global minimum inter-request delay has elapsed. It
// returns a release function the caller must invoke after the request
// completes.
func (rl *RateLimiter) Acquire(ctx context.Context, endpoint string) (release func(), err error) {
	if err := rl.global.Acquire(ctx); err != nil {
		return nil, err
	}
	tb := rl.bucketFor(endpoint)
	if err := tb.Wait(ctx); err != nil {
		rl.global.Release()
		return nil, err
	}
	if rl.minDelay > 0 {
		rl.lastMu.Lock()
		wait := rl.minDelay - time.Since(rl.lastReq)
		if wait > 0 {
			rl.lastMu.Unlock()
			select {
			case <-ctx.Done():
				rl.global.Release()
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			rl.lastMu.Lock()
		}
		rl.lastReq = time.Now()
		rl.lastMu.Unlock()
	}
	return func() { rl.global.Release() }, nil
}

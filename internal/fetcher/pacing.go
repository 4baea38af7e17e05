package fetcher

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PacingConfig controls the adaptive delay applied before each request. A
// zero BaseMax disables pacing entirely (used by tests).
type PacingConfig struct {
	BaseMin time.Duration // lower bound of the per-request delay
	BaseMax time.Duration // upper bound of the per-request delay
	// Every ThinkEvery-th request widens the delay to [ThinkMin, ThinkMax],
	// a periodic pause that keeps traffic from looking machine-regular.
	ThinkEvery int
	ThinkMin   time.Duration
	ThinkMax   time.Duration
}

// DefaultPacing mirrors non-automated browsing: short randomized gaps with a
// longer pause every tenth request.
func DefaultPacing() PacingConfig {
	return PacingConfig{
		BaseMin:    500 * time.Millisecond,
		BaseMax:    1500 * time.Millisecond,
		ThinkEvery: 10,
		ThinkMin:   3 * time.Second,
		ThinkMax:   7 * time.Second,
	}
}

// pacer spaces out requests. A token-bucket limiter enforces the minimum
// interval; on top of it a randomized target delay is applied, skipped to the
// extent wall-clock time has already passed since the previous request.
type pacer struct {
	cfg     PacingConfig
	limiter *rate.Limiter

	mu       sync.Mutex
	last     time.Time
	requests int
}

func newPacer(cfg PacingConfig) *pacer {
	p := &pacer{cfg: cfg}
	if cfg.BaseMin > 0 {
		p.limiter = rate.NewLimiter(rate.Every(cfg.BaseMin), 1)
	}
	return p
}

// Wait blocks until the next request may be issued.
func (p *pacer) Wait(ctx context.Context) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if p.cfg.BaseMax <= 0 {
		return nil
	}

	p.mu.Lock()
	p.requests++
	lo, hi := p.cfg.BaseMin, p.cfg.BaseMax
	if p.cfg.ThinkEvery > 0 && p.requests%p.cfg.ThinkEvery == 0 {
		lo, hi = p.cfg.ThinkMin, p.cfg.ThinkMax
		slog.Debug("Applying longer pause", "requests", p.requests)
	}
	elapsed := time.Since(p.last)
	p.mu.Unlock()

	target := randomDuration(lo, hi)
	if elapsed < target {
		if err := sleepCtx(ctx, target-elapsed); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.last = time.Now()
	p.mu.Unlock()
	return nil
}

func randomDuration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
}

// sleepCtx sleeps for d or until the context is cancelled.
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

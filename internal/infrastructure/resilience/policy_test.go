package resilience

import (
	"testing"
	"time"
)

func TestNormalizeFillsInvalidValues(t *testing.T) {
	cfg := Config{
		CallTimeout:         -time.Second,
		RetryInitialBackoff: time.Second,
		RetryMaxBackoff:     10 * time.Millisecond,
		RetryMultiplier:     0.5,
		BreakerFailureRatio: 2,
	}.normalize()

	def := DefaultConfig()
	if cfg.CallTimeout != 0 {
		t.Fatalf("negative call timeout must clamp to 0, got %s", cfg.CallTimeout)
	}
	if cfg.RetryMaxAttempts != def.RetryMaxAttempts {
		t.Fatalf("RetryMaxAttempts = %d, want %d", cfg.RetryMaxAttempts, def.RetryMaxAttempts)
	}
	if cfg.RetryMaxBackoff != time.Second {
		t.Fatalf("max backoff must not undercut initial backoff, got %s", cfg.RetryMaxBackoff)
	}
	if cfg.RetryMultiplier != def.RetryMultiplier || cfg.BreakerFailureRatio != def.BreakerFailureRatio {
		t.Fatalf("unexpected multiplier/ratio: %+v", cfg)
	}
	if cfg.BreakerHalfOpenMaxCalls != def.BreakerHalfOpenMaxCalls || cfg.BreakerOpenTimeout != def.BreakerOpenTimeout {
		t.Fatalf("breaker defaults not applied: %+v", cfg)
	}
}

func TestBackoffGrowsUntilCap(t *testing.T) {
	cfg := Config{
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     300 * time.Millisecond,
		RetryMultiplier:     2,
	}.normalize()

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		if got := cfg.backoff(i + 1); got != w {
			t.Fatalf("backoff(%d) = %s, want %s", i+1, got, w)
		}
	}
}

func TestTrippedNeedsMinimumRequests(t *testing.T) {
	cfg := Config{BreakerMinRequests: 4, BreakerFailureRatio: 0.5}.normalize()

	if cfg.tripped(3, 3) {
		t.Fatalf("breaker must not trip below the request minimum")
	}
	if !cfg.tripped(4, 2) {
		t.Fatalf("breaker must trip at the failure ratio")
	}
	if cfg.tripped(10, 4) {
		t.Fatalf("breaker must stay closed under the failure ratio")
	}
}

package application

import (
	"context"
	"testing"
	"time"

	"faucet-gateway/faucet/domain"
	"faucet-gateway/faucet/infra"
)

func testRules(ip, fp, global int) map[domain.Category]domain.Rule {
	return map[domain.Category]domain.Rule{
		domain.CategoryIP:          {Limit: ip, Window: time.Hour},
		domain.CategoryFingerprint: {Limit: fp, Window: time.Hour},
		domain.CategoryGlobal:      {Limit: global, Window: time.Hour},
	}
}

func newTestLimiter(t *testing.T, clock *manualClock, store domain.QuotaStore, ip, fp, global int) *RateLimiter {
	t.Helper()
	l, err := NewRateLimiter(Quota{Store: store, Configured: true}, testRules(ip, fp, global))
	if err != nil {
		t.Fatalf("NewRateLimiter: %v", err)
	}
	l.now = clock.Now
	return l
}

func TestRateLimiter_DeniesAfterLimitWithRetryAfter(t *testing.T) {
	clock := newManualClock()
	store := infra.NewMemoryQuotaStore(infra.WithClock(clock.Now))
	l := newTestLimiter(t, clock, store, 3, 5, 50)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		dec, err := l.Check(ctx, domain.CategoryIP, "1.2.3.4")
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !dec.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		clock.Advance(time.Minute)
	}

	dec, err := l.Check(ctx, domain.CategoryIP, "1.2.3.4")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if dec.Allowed {
		t.Fatalf("4th request should be denied")
	}
	// primeiro hit em t0, agora t0+3m: faltam 57 minutos.
	if dec.RetryAfter != 57*time.Minute {
		t.Fatalf("expected retry after 57m, got %s", dec.RetryAfter)
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	clock := newManualClock()
	store := infra.NewMemoryQuotaStore(infra.WithClock(clock.Now))
	l := newTestLimiter(t, clock, store, 1, 5, 50)
	ctx := context.Background()

	if dec, _ := l.Check(ctx, domain.CategoryIP, "ip"); !dec.Allowed {
		t.Fatalf("first request should be allowed")
	}
	clock.Advance(time.Hour)
	if dec, _ := l.Check(ctx, domain.CategoryIP, "ip"); dec.Allowed {
		t.Fatalf("hit exactly one window ago still counts")
	}
	clock.Advance(time.Millisecond)
	if dec, _ := l.Check(ctx, domain.CategoryIP, "ip"); !dec.Allowed {
		t.Fatalf("request after the window should be allowed")
	}
}

func TestRateLimiter_RetryAfterIsAtLeastOneSecond(t *testing.T) {
	clock := newManualClock()
	store := infra.NewMemoryQuotaStore(infra.WithClock(clock.Now))
	l := newTestLimiter(t, clock, store, 1, 5, 50)
	ctx := context.Background()

	_, _ = l.Check(ctx, domain.CategoryIP, "ip")
	clock.Advance(time.Hour - 10*time.Millisecond)

	dec, err := l.Check(ctx, domain.CategoryIP, "ip")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if dec.Allowed || dec.RetryAfter != time.Second {
		t.Fatalf("expected denial with 1s retry, got %+v", dec)
	}
}

func TestRateLimiter_CategoriesAreIsolated(t *testing.T) {
	clock := newManualClock()
	store := infra.NewMemoryQuotaStore(infra.WithClock(clock.Now))
	l := newTestLimiter(t, clock, store, 1, 1, 50)
	ctx := context.Background()

	if dec, _ := l.Check(ctx, domain.CategoryIP, "same"); !dec.Allowed {
		t.Fatalf("ip should be allowed")
	}
	if dec, _ := l.Check(ctx, domain.CategoryFingerprint, "same"); !dec.Allowed {
		t.Fatalf("fingerprint window must not share the ip window")
	}
	if dec, _ := l.Check(ctx, domain.CategoryIP, "other"); !dec.Allowed {
		t.Fatalf("other ip must have its own window")
	}
}

func TestRateLimiter_GlobalIgnoresKey(t *testing.T) {
	clock := newManualClock()
	store := infra.NewMemoryQuotaStore(infra.WithClock(clock.Now))
	l := newTestLimiter(t, clock, store, 10, 10, 2)
	ctx := context.Background()

	_, _ = l.Check(ctx, domain.CategoryGlobal, "a")
	_, _ = l.Check(ctx, domain.CategoryGlobal, "b")
	dec, _ := l.Check(ctx, domain.CategoryGlobal, "c")
	if dec.Allowed {
		t.Fatalf("global window should be shared by every key")
	}
}

func TestRateLimiter_UnconfiguredAllowsEverything(t *testing.T) {
	store := infra.NewMemoryQuotaStore()
	l, err := NewRateLimiter(Quota{Store: store, Configured: false}, testRules(1, 1, 1))
	if err != nil {
		t.Fatalf("NewRateLimiter: %v", err)
	}
	if l.Configured() {
		t.Fatalf("limiter must report unconfigured")
	}
	for i := 0; i < 10; i++ {
		dec, err := l.Check(context.Background(), domain.CategoryIP, "1.2.3.4")
		if err != nil || !dec.Allowed {
			t.Fatalf("unconfigured limiter must allow, got %+v err=%v", dec, err)
		}
	}
}

func TestNewRateLimiter_RequiresAllRules(t *testing.T) {
	rules := testRules(1, 1, 1)
	delete(rules, domain.CategoryGlobal)
	if _, err := NewRateLimiter(Quota{}, rules); err == nil {
		t.Fatalf("expected error for missing global rule")
	}

	rules = testRules(1, 0, 1)
	if _, err := NewRateLimiter(Quota{}, rules); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}

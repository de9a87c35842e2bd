package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"faucet-gateway/faucet/domain"
)

func TestRedisStatsStore_Record(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewRedisStatsStore(rdb, WithStatsPrefix("test:stats:"), WithStatsTTL(time.Hour))
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := s.Record(ctx, domain.StatsEvent{Outcome: domain.OutcomeDisbursed, At: at}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	_ = s.Record(ctx, domain.StatsEvent{Outcome: domain.OutcomeCooldown, At: at})

	if got := mr.HGet("test:stats:total", "disbursed"); got != "2" {
		t.Fatalf("expected total disbursed 2, got %q", got)
	}
	bucket := "test:stats:minute:202503040506"
	if got := mr.HGet(bucket, "address_cooldown"); got != "1" {
		t.Fatalf("expected minute bucket count 1, got %q", got)
	}
	if ttl := mr.TTL(bucket); ttl != time.Hour {
		t.Fatalf("expected bucket ttl 1h, got %s", ttl)
	}
	if ttl := mr.TTL("test:stats:total"); ttl != 0 {
		t.Fatalf("total must not expire, got %s", ttl)
	}
}

func TestRedisStatsStore_NilIsNoop(t *testing.T) {
	var s *RedisStatsStore
	if err := s.Record(context.Background(), domain.StatsEvent{Outcome: domain.OutcomeInvalid}); err != nil {
		t.Fatalf("nil store should be a no-op, got %v", err)
	}
}

func TestPromStatsStore_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewPromStatsStore(reg)

	_ = s.Record(context.Background(), domain.StatsEvent{Outcome: domain.OutcomeWalletDry})
	_ = s.Record(context.Background(), domain.StatsEvent{Outcome: domain.OutcomeWalletDry})

	if got := testutil.ToFloat64(s.outcomes.WithLabelValues("wallet_dry")); got != 2 {
		t.Fatalf("expected 2 wallet_dry, got %v", got)
	}
}

type errStats struct{ calls int }

func (e *errStats) Record(context.Context, domain.StatsEvent) error {
	e.calls++
	return errors.New("boom")
}

func TestMultiStats_FansOutAndReturnsFirstError(t *testing.T) {
	a, b := &errStats{}, &errStats{}
	m := MultiStats{a, nil, b}

	if err := m.Record(context.Background(), domain.StatsEvent{Outcome: domain.OutcomeInvalid}); err == nil {
		t.Fatalf("expected error")
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("every store must be called, got a=%d b=%d", a.calls, b.calls)
	}
}

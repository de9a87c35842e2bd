package ratelimit

import (
	"testing"
	"time"
)

func TestBucketStore_GetSameKeyReturnsSameLimiter(t *testing.T) {
	s := NewBucketStore(10, 1)

	if s.Get("k") != s.Get("k") {
		t.Fatalf("expected same limiter pointer for same key")
	}
}

func TestBucketStore_TakeReportsWait(t *testing.T) {
	s := NewBucketStore(1, 1)

	if ok, _ := s.Take("k"); !ok {
		t.Fatalf("expected first Take to succeed")
	}
	ok, wait := s.Take("k")
	if ok {
		t.Fatalf("expected second immediate Take to fail (burst=1)")
	}
	if wait <= 0 || wait > time.Second {
		t.Fatalf("expected wait in (0, 1s], got %s", wait)
	}
	// a reserva cancelada não pode ter consumido o próximo token
	time.Sleep(wait + 20*time.Millisecond)
	if ok, _ := s.Take("k"); !ok {
		t.Fatalf("expected Take to succeed after waiting")
	}
}

func TestBucketStore_CleanupRemovesIdleEntries(t *testing.T) {
	s := NewBucketStore(10, 1, WithIdleTTL(2*time.Millisecond), WithCleanupEvery(0))

	before := s.Get("k")
	time.Sleep(4 * time.Millisecond)

	s.Cleanup()
	if s.Len() != 0 {
		t.Fatalf("expected idle entry to be removed")
	}

	after := s.Get("k")
	if before == after {
		t.Fatalf("expected limiter to be recreated after cleanup")
	}
}

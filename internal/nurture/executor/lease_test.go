package executor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"nurture_backend/platform/logger"
)

func TestLeadLocksLocalGuard(t *testing.T) {
	locks := NewLeadLocks(nil, time.Minute, logger.New("development"))
	ctx := context.Background()
	leadID := uuid.New()

	if !locks.TryAcquire(ctx, leadID) {
		t.Fatal("first acquire failed")
	}
	if locks.TryAcquire(ctx, leadID) {
		t.Fatal("second acquire succeeded while held")
	}
	if !locks.TryAcquire(ctx, uuid.New()) {
		t.Fatal("unrelated lead was blocked")
	}

	locks.Release(ctx, leadID)
	if !locks.TryAcquire(ctx, leadID) {
		t.Fatal("acquire after release failed")
	}
}

func TestLeadLocksRedisLeaseAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	log := logger.New("development")
	clientA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer clientA.Close()
	defer clientB.Close()

	instanceA := NewLeadLocks(clientA, time.Minute, log)
	instanceB := NewLeadLocks(clientB, time.Minute, log)
	ctx := context.Background()
	leadID := uuid.New()

	if !instanceA.TryAcquire(ctx, leadID) {
		t.Fatal("instance A could not acquire")
	}
	if instanceB.TryAcquire(ctx, leadID) {
		t.Fatal("instance B acquired a lead held by A")
	}

	instanceA.Release(ctx, leadID)
	if !instanceB.TryAcquire(ctx, leadID) {
		t.Fatal("instance B could not acquire after A released")
	}
}

func TestLeadLocksReleaseKeepsForeignLease(t *testing.T) {
	mr := miniredis.RunT(t)
	log := logger.New("development")
	clientA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer clientA.Close()
	defer clientB.Close()

	instanceA := NewLeadLocks(clientA, time.Minute, log)
	instanceB := NewLeadLocks(clientB, time.Minute, log)
	ctx := context.Background()
	leadID := uuid.New()

	if !instanceA.TryAcquire(ctx, leadID) {
		t.Fatal("instance A could not acquire")
	}

	// A crashes without releasing; the TTL expires the lease and B
	// claims the lead.
	mr.FastForward(2 * time.Minute)
	if !instanceB.TryAcquire(ctx, leadID) {
		t.Fatal("instance B could not claim an expired lease")
	}

	// A's stale release must not free B's lease.
	instanceA.Release(ctx, leadID)
	if instanceA.TryAcquire(ctx, leadID) {
		t.Fatal("instance A reclaimed a lead held by B")
	}
}

func TestLeadLocksRedisDownUsesLocalGuard(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	locks := NewLeadLocks(client, time.Minute, logger.New("development"))
	mr.Close()

	ctx := context.Background()
	leadID := uuid.New()
	if !locks.TryAcquire(ctx, leadID) {
		t.Fatal("acquire failed with redis down")
	}
	if locks.TryAcquire(ctx, leadID) {
		t.Fatal("local guard did not hold with redis down")
	}
}

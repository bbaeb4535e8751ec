package executor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"nurture_backend/platform/logger"
)

// LeadLocks guarantees at most one concurrent nurture execution per lead.
// An in-process guard covers everything running in this instance; when a
// Redis client is configured, a SET NX PX lease extends the guarantee
// across instances. The lease TTL is a crash backstop, not the normal
// release path.
type LeadLocks struct {
	mu     sync.Mutex
	active map[uuid.UUID]struct{}
	redis  *redis.Client
	ttl    time.Duration
	owner  string
	log    *logger.Logger
}

func NewLeadLocks(redisClient *redis.Client, ttl time.Duration, log *logger.Logger) *LeadLocks {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &LeadLocks{
		active: make(map[uuid.UUID]struct{}),
		redis:  redisClient,
		ttl:    ttl,
		owner:  uuid.New().String(),
		log:    log,
	}
}

// TryAcquire attempts to claim the lead. Returns false when a run for
// this lead is already in flight, either here or on another instance.
// When Redis is unreachable the local guard alone decides; a degraded
// lease is better than a stalled pipeline.
func (l *LeadLocks) TryAcquire(ctx context.Context, leadID uuid.UUID) bool {
	l.mu.Lock()
	if _, held := l.active[leadID]; held {
		l.mu.Unlock()
		return false
	}
	l.active[leadID] = struct{}{}
	l.mu.Unlock()

	if l.redis == nil {
		return true
	}

	ok, err := l.redis.SetNX(ctx, leaseKey(leadID), l.owner, l.ttl).Result()
	if err != nil {
		l.log.Warn("lead lease unavailable, proceeding on local guard", "leadId", leadID, "error", err)
		return true
	}
	if !ok {
		l.release(leadID)
		return false
	}
	return true
}

// Release frees the lead for the next run. Only a lease this instance
// owns is deleted; an expired-and-reclaimed lease belongs to someone
// else.
func (l *LeadLocks) Release(ctx context.Context, leadID uuid.UUID) {
	l.release(leadID)

	if l.redis == nil {
		return
	}

	key := leaseKey(leadID)
	holder, err := l.redis.Get(ctx, key).Result()
	if err != nil || holder != l.owner {
		return
	}
	if err := l.redis.Del(ctx, key).Err(); err != nil {
		l.log.Warn("lead lease release failed, ttl will expire it", "leadId", leadID, "error", err)
	}
}

func (l *LeadLocks) release(leadID uuid.UUID) {
	l.mu.Lock()
	delete(l.active, leadID)
	l.mu.Unlock()
}

func leaseKey(id uuid.UUID) string {
	return "nurture:lease:" + id.String()
}

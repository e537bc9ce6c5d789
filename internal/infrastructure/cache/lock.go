package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sangkips/coopmart-api/pkg/apperror"
	"github.com/sangkips/coopmart-api/pkg/logger"
	"go.uber.org/zap"
)

// MemberLocker serializes order admission for one member
type MemberLocker interface {
	// Lock blocks until the member's lock is held; release must be called once
	Lock(ctx context.Context, memberNo string) (release func(), err error)
}

// NoopLocker admits concurrent orders; eligibility stays a point-in-time check
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// RedisMemberLocker holds a Redis lock per member for the duration of check and create
type RedisMemberLocker struct {
	locker *redislock.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisMemberLocker creates a member locker on top of client
func NewRedisMemberLocker(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisMemberLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisMemberLocker{locker: redislock.New(client), ttl: ttl, log: logger.OrNop(log)}
}

func (l *RedisMemberLocker) Lock(ctx context.Context, memberNo string) (func(), error) {
	lock, err := l.locker.Obtain(ctx, "eligibility:member:"+memberNo, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), int(l.ttl/(100*time.Millisecond))),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, apperror.NewConflictError("another order for this member is being processed")
	}
	if err != nil {
		return nil, err
	}

	return func() {
		// a fresh context so a cancelled request still releases the lock
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.Warn("failed to release member lock", zap.String("member_no", memberNo), zap.Error(err))
		}
	}, nil
}

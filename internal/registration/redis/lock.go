package redis

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Lock serializes registration attempts per email. A double-submitted form
// (or two browser tabs) takes the lock once; the loser is told to retry. The
// TTL is a safety valve so a crashed holder cannot wedge an email forever.
type Lock struct {
	Client *redis.Client
}

func NewLock(client *redis.Client) *Lock {
	return &Lock{Client: client}
}

func (l *Lock) lockTTL() time.Duration {
	defaultTTL := 30 * time.Second

	ttlStr := os.Getenv("REGISTRATION_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultTTL
	}

	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		return defaultTTL
	}
	return time.Duration(ttlSec) * time.Second
}

// AcquireRegistration locks an email for the duration of one registration
// attempt. Returns false when another attempt holds the lock.
func (l *Lock) AcquireRegistration(ctx context.Context, email, token string) (bool, error) {
	key := "registration_lock:" + email
	return l.Client.SetNX(ctx, key, token, l.lockTTL()).Result()
}

// ReleaseRegistration releases the lock if this attempt still owns it.
func (l *Lock) ReleaseRegistration(ctx context.Context, email, token string) error {
	key := "registration_lock:" + email
	val, err := l.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released or expired
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err := l.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

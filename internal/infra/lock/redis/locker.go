package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"rentals/internal/app/policies"
)

const keyPrefix = "rentals:lock:"

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a single-instance Redis lock (SET NX PX with a random token). TTL must
// exceed the longest command that runs under the lock.
type Locker struct {
	Client *goredis.Client
	TTL    time.Duration
	Wait   time.Duration
	Poll   time.Duration
	Logger *slog.Logger
}

func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return client, nil
}

func NewLocker(client *goredis.Client, ttl, wait time.Duration, logger *slog.Logger) *Locker {
	return &Locker{Client: client, TTL: ttl, Wait: wait, Poll: 25 * time.Millisecond, Logger: logger}
}

func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	if l.Client == nil {
		return nil, errors.New("redis: locker has no client")
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	poll := l.Poll
	if poll <= 0 {
		poll = 25 * time.Millisecond
	}
	if l.Wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Wait)
		defer cancel()
	}

	redisKey := keyPrefix + key
	token := uuid.NewString()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		ok, err := l.Client.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("redis: acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", policies.ErrLockTimeout, key, ctx.Err())
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the caller's ctx may already be done
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.Client, []string{redisKey}, token).Err(); err != nil && l.Logger != nil {
				l.Logger.Warn("redis lock release failed", "key", key, "error", err)
			}
		})
	}, nil
}

var _ policies.Locker = (*Locker)(nil)

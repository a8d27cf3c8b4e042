package slotlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	keyPrefix     = "vetsched:"
	retryInterval = 25 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock that was re-acquired elsewhere is left alone.
const releaseScript = `
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`

// Redis is a Locker shared by every server instance pointed at the same
// Redis. Locks expire after ttl so a crashed holder cannot wedge a day.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
	logger zerolog.Logger

	newToken func() string
}

func NewRedis(client redis.Cmdable, ttl, wait time.Duration, logger zerolog.Logger) *Redis {
	return &Redis{
		client:   client,
		ttl:      ttl,
		wait:     wait,
		retry:    retryInterval,
		logger:   logger,
		newToken: func() string { return uuid.NewString() },
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	k := keyPrefix + key
	token := r.newToken()
	deadline := time.Now().Add(r.wait)

	for {
		ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire slot lock %s: %w", key, err)
		}
		if ok {
			var once sync.Once
			return func() { once.Do(func() { r.release(k, token) }) }, nil
		}
		if !time.Now().Before(deadline) {
			return nil, ErrBusy
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retry):
		}
	}
}

func (r *Redis) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := r.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("release slot lock")
	}
}

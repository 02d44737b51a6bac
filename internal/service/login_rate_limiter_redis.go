package service

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisLoginFailureScript suma un fallo y arma el TTL de la ventana con el primero.
const redisLoginFailureScript = `
local failures = redis.call("INCR", KEYS[1])
if failures == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return failures
`

const redisLimiterTimeout = 500 * time.Millisecond

type redisLoginRateLimiter struct {
	client redisLimiterClient
	window time.Duration
	max    int
	prefix string
}

type redisLimiterClient interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewRedisLoginRateLimiter comparte el conteo de fallos entre réplicas.
// Si redis falla, deja pasar el intento.
func NewRedisLoginRateLimiter(client *redis.Client, window time.Duration, max int) LoginRateLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisLoginRateLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "login:rl:",
	}
}

func (l *redisLoginRateLimiter) key(key string) (string, bool) {
	key = strings.TrimSpace(key)
	if l == nil || l.client == nil || key == "" {
		return "", false
	}
	return l.prefix + key, true
}

func (l *redisLoginRateLimiter) Allow(ctx context.Context, key string) bool {
	redisKey, ok := l.key(key)
	if !ok {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, redisLimiterTimeout)
	defer cancel()

	failures, err := l.client.Get(ctx, redisKey).Int()
	if err != nil {
		// redis.Nil es "sin fallos"; con cualquier otro error también se deja pasar.
		return true
	}
	return failures < l.max
}

func (l *redisLoginRateLimiter) RecordFailure(ctx context.Context, key string) {
	redisKey, ok := l.key(key)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, redisLimiterTimeout)
	defer cancel()

	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 60
	}
	_ = l.client.Eval(ctx, redisLoginFailureScript, []string{redisKey}, seconds).Err()
}

func (l *redisLoginRateLimiter) Reset(ctx context.Context, key string) {
	redisKey, ok := l.key(key)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, redisLimiterTimeout)
	defer cancel()
	_ = l.client.Del(ctx, redisKey).Err()
}

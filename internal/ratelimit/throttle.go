package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Throttle paces outbound calls to one vendor backend.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Window expresses a requests-per-second figure as a sliding window the Redis
// limiter can enforce: Limit requests per Window.
type Window struct {
	Limit  int64
	Window time.Duration
}

// WindowFromRPS converts a requests-per-second rate. Rates below one request per
// second become one request per 1/rps seconds.
func WindowFromRPS(rps float64) Window {
	if rps >= 1 {
		return Window{Limit: int64(math.Round(rps)), Window: time.Second}
	}
	return Window{Limit: 1, Window: time.Duration(float64(time.Second) / rps)}
}

// NewThrottle picks the backend throttle: unlimited when rps is not positive,
// Redis-backed when a client is available, process-local otherwise.
func NewThrottle(backend string, rps float64, burst int, rdb *redis.Client) Throttle {
	if rps <= 0 {
		return unlimited{}
	}
	if rdb != nil {
		return &RedisThrottle{limiter: NewLimiter(rdb), key: backend, window: WindowFromRPS(rps)}
	}
	return NewLocalThrottle(rps, burst)
}

type unlimited struct{}

func (unlimited) Wait(context.Context) error { return nil }

// LocalThrottle is a token bucket private to this process.
type LocalThrottle struct {
	limiter *rate.Limiter
}

func NewLocalThrottle(rps float64, burst int) *LocalThrottle {
	if burst < 1 {
		burst = 1
	}
	return &LocalThrottle{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *LocalThrottle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// RedisThrottle shares one sliding window between all replicas.
type RedisThrottle struct {
	limiter *Limiter
	key     string
	window  Window
}

func (t *RedisThrottle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx, t.key, t.window.Limit, t.window.Window)
}

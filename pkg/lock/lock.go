// Package lock provides short keyed leases guarding check-then-write sequences.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder owns the key for the whole wait window.
var ErrNotAcquired = errors.New("lock not acquired")

// Release frees a held lease. It is safe to call more than once.
type Release func(ctx context.Context) error

// Locker acquires a lease on key, waiting up to the locker's wait window.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// Options tunes lease lifetime and acquisition retries.
type Options struct {
	TTL        time.Duration
	Wait       time.Duration
	RetryEvery time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 5 * time.Second
	}
	if o.Wait < 0 {
		o.Wait = 0
	}
	if o.RetryEvery <= 0 {
		o.RetryEvery = 25 * time.Millisecond
	}
	return o
}

// Noop never blocks; it backs the default single-actor scheduler.
type Noop struct{}

// Acquire implements Locker.
func (Noop) Acquire(context.Context, string) (Release, error) {
	return func(context.Context) error { return nil }, nil
}

// Local is an in-process keyed mutex for single-replica deployments.
type Local struct {
	opts Options
	mu   sync.Mutex
	held map[string]chan struct{}
}

// NewLocal builds an in-process keyed locker.
func NewLocal(opts Options) *Local {
	return &Local{opts: opts.withDefaults(), held: make(map[string]chan struct{})}
}

// Acquire implements Locker.
func (l *Local) Acquire(ctx context.Context, key string) (Release, error) {
	deadline := time.NewTimer(l.opts.Wait)
	defer deadline.Stop()

	for {
		l.mu.Lock()
		ch, busy := l.held[key]
		if !busy {
			done := make(chan struct{})
			l.held[key] = done
			l.mu.Unlock()
			var once sync.Once
			return func(context.Context) error {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, key)
					l.mu.Unlock()
					close(done)
				})
				return nil
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ch:
		case <-deadline.C:
			return nil, ErrNotAcquired
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lease shared across replicas using SET NX PX.
type Redis struct {
	client *redis.Client
	prefix string
	opts   Options
}

// NewRedis builds a Redis backed locker. Keys are namespaced by prefix.
func NewRedis(client *redis.Client, prefix string, opts Options) *Redis {
	return &Redis{client: client, prefix: prefix, opts: opts.withDefaults()}
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, key string) (Release, error) {
	fullKey := r.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(r.opts.Wait)

	for {
		ok, err := r.client.SetNX(ctx, fullKey, token, r.opts.TTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			var once sync.Once
			return func(ctx context.Context) error {
				var relErr error
				once.Do(func() {
					relErr = releaseScript.Run(ctx, r.client, []string{fullKey}, token).Err()
				})
				return relErr
			}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, ErrNotAcquired
		}

		select {
		case <-time.After(r.opts.RetryEvery):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

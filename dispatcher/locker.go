package dispatcher

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/logger"
)

// Locker serializes work on one aggregate key. The returned func releases
// the lock and is always safe to call.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// KeyedLocker is an in-process per-key mutex. Entries are reference
// counted and dropped once no goroutine holds or waits for them.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLockRef
}

type keyedLockRef struct {
	ch   chan struct{}
	refs int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyedLockRef)}
}

func (l *KeyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l == nil {
		return func() {}, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return func() {}, nil
	}

	l.mu.Lock()
	ref, ok := l.locks[key]
	if !ok || ref == nil {
		ref = &keyedLockRef{ch: make(chan struct{}, 1)}
		l.locks[key] = ref
	}
	ref.refs++
	l.mu.Unlock()

	select {
	case ref.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, ref)
		return func() {}, manufacture.NewError(manufacture.ErrLockNotObtained, "", ctx.Err(), map[string]any{
			"key": key,
		})
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-ref.ch
			l.release(key, ref)
		})
	}, nil
}

func (l *KeyedLocker) release(key string, ref *keyedLockRef) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ref.refs--
	if ref.refs <= 0 {
		delete(l.locks, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (l *KeyedLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// RedisLocker serializes aggregates across worker processes with redislock.
type RedisLocker struct {
	client  *redislock.Client
	logger  logger.Logger
	prefix  string
	ttl     time.Duration
	backoff time.Duration
	retries int
}

// RedisLockerOption configures a RedisLocker.
type RedisLockerOption func(*RedisLocker)

func WithLockPrefix(prefix string) RedisLockerOption {
	return func(l *RedisLocker) {
		l.prefix = prefix
	}
}

// WithLockTTL sets how long a lock is held before redis expires it.
func WithLockTTL(ttl time.Duration) RedisLockerOption {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithLockRetry sets the linear backoff and retry count used while waiting.
func WithLockRetry(backoff time.Duration, retries int) RedisLockerOption {
	return func(l *RedisLocker) {
		l.backoff = backoff
		l.retries = retries
	}
}

// WithLockLogger sets the logger that reports failed releases.
func WithLockLogger(lgr logger.Logger) RedisLockerOption {
	return func(l *RedisLocker) {
		if lgr != nil {
			l.logger = lgr
		}
	}
}

func NewRedisLocker(client redislock.RedisClient, opts ...RedisLockerOption) *RedisLocker {
	l := &RedisLocker{
		client:  redislock.New(client),
		logger:  logger.Nop{},
		prefix:  "lock:",
		ttl:     30 * time.Second,
		backoff: 50 * time.Millisecond,
		retries: 200,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return func() {}, nil
	}

	lock, err := l.client.Obtain(ctx, l.prefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.backoff), l.retries),
	})
	if err != nil {
		meta := map[string]any{"key": key}
		if stderrors.Is(err, redislock.ErrNotObtained) {
			return func() {}, manufacture.NewError(manufacture.ErrLockNotObtained, "", err, meta)
		}
		return func() {}, manufacture.NewError(manufacture.ErrLockNotObtained, "redis lock failure", err, meta)
	}

	return releaser(l.logger, key, l.ttl, lock.Release), nil
}

// releaser returns the unlock func of a held lock. A failed release leaves
// the aggregate blocked until the ttl runs out, so it is reported.
func releaser(lgr logger.Logger, key string, ttl time.Duration, release func(context.Context) error) func() {
	return func() {
		// a fresh context so cancellation of the dispatch still releases the key
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := release(ctx); err != nil {
			logger.With(lgr, map[string]any{"key": key}).
				Warn("releasing aggregate lock failed, held for up to %s: %v", ttl, err)
		}
	}
}

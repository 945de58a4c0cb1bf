package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
)

// KeyLocker serializes work per key. unlock must be called exactly once.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LocalKeyLocker serializes within one process. Entries are dropped when unused.
type LocalKeyLocker struct {
	mu   sync.Mutex
	keys map[string]*keyEntry
}

type keyEntry struct {
	sem  chan struct{}
	refs int
}

func NewLocalKeyLocker() *LocalKeyLocker {
	return &LocalKeyLocker{keys: map[string]*keyEntry{}}
}

func (l *LocalKeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e := l.keys[key]
	if e == nil {
		e = &keyEntry{sem: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(key, e)
		})
	}, nil
}

func (l *LocalKeyLocker) release(key string, e *keyEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
	l.mu.Unlock()
}

func (l *LocalKeyLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

// RedisKeyLocker serializes across importer processes sharing one Redis.
type RedisKeyLocker struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

func NewRedisKeyLocker(client *redislock.Client, ttl time.Duration) *RedisKeyLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisKeyLocker{
		client: client,
		prefix: "po-import:",
		ttl:    ttl,
		// keep retrying for roughly one ttl before giving up
		retry: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), int(ttl/(100*time.Millisecond))),
	}
}

func (l *RedisKeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, l.prefix+key, l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("could not obtain lock for %s: %w", key, err)
	} else if err != nil {
		return nil, err
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}

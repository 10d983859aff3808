// Package locks serializes work on a single key (an assignment, a user) across
// goroutines and, with Redis, across replicas.
package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultTTL          = 30 * time.Second
	defaultPollInterval = 50 * time.Millisecond
)

// ErrLockTimeout is returned when the caller's context ends before the lock is obtained.
var ErrLockTimeout = errors.New("lock wait timed out")

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func()

// Locker blocks until key is held or ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// store is the subset of pkg/redis.Client used by RedisLocker.
type store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, owner string) (bool, error)
}

// RedisLocker implements Locker with SET NX + TTL and an owner token per holder.
type RedisLocker struct {
	client store
	prefix string
	ttl    time.Duration
	poll   time.Duration
}

// RedisOption customizes a RedisLocker.
type RedisOption func(*RedisLocker)

// WithPollInterval overrides how often a waiting caller retries SET NX.
func WithPollInterval(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.poll = d
		}
	}
}

// NewRedisLocker constructs a Redis-backed locker. prefix namespaces every key.
func NewRedisLocker(client store, prefix string, ttl time.Duration, opts ...RedisOption) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for locker")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	l := &RedisLocker{client: client, prefix: prefix, ttl: ttl, poll: defaultPollInterval}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Lock polls SET NX until it wins or ctx ends.
func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	fullKey := key
	if l.prefix != "" {
		fullKey = l.prefix + ":" + key
	}
	owner := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, fullKey, owner, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("setnx %s: %w", fullKey, err)
		}
		if ok {
			return l.releaser(fullKey, owner), nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, fullKey)
		case <-ticker.C:
		}
	}
}

// releaser frees the key only while the owner value still matches. Release runs
// on a fresh context so a cancelled request still gives the lock back; an
// expired or stolen key is left alone.
func (l *RedisLocker) releaser(key, owner string) Unlock {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, _ = l.client.ReleaseIfOwner(ctx, key, owner)
		})
	}
}

// LocalLocker is an in-process keyed mutex for single-replica deployments.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker returns an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

// Lock waits for key's slot or ctx.
func (l *LocalLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, s)
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.drop(key, s)
		})
	}, nil
}

func (l *LocalLocker) drop(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

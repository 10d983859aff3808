package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/fieldops-backend/pkg/locks"
)

const defaultLockWait = 200 * time.Millisecond

// Lock coordinates exclusive cron runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockerLock adapts a blocking locks.Locker into a try-once Lock: a cycle that
// cannot get the key quickly is skipped, not queued.
type LockerLock struct {
	locker locks.Locker
	key    string
	wait   time.Duration
	unlock locks.Unlock
}

// NewLock builds a cron lock on key. wait bounds how long Acquire polls.
func NewLock(locker locks.Locker, key string, wait time.Duration) (*LockerLock, error) {
	if locker == nil {
		return nil, errors.New("locker required for cron lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &LockerLock{locker: locker, key: key, wait: wait}, nil
}

// Acquire reports false when another instance holds the key.
func (l *LockerLock) Acquire(ctx context.Context) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()
	unlock, err := l.locker.Lock(waitCtx, l.key)
	if err != nil {
		if errors.Is(err, locks.ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	l.unlock = unlock
	return true, nil
}

// Release frees the key if this instance holds it.
func (l *LockerLock) Release(context.Context) error {
	if l.unlock == nil {
		return nil
	}
	l.unlock()
	l.unlock = nil
	return nil
}

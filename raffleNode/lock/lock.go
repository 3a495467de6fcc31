// Package lock provides keyed mutual exclusion for raffle mutations and job
// leadership, either in-process or across replicas through Redis.
package lock

import (
	"context"
	"sync"
	"time"

	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
)

// Locker acquires a named lock. The returned release func is safe to call
// more than once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

const tryWait = 100 * time.Millisecond

// ErrBusy is returned when a lock could not be obtained before ctx ended.
var ErrBusy = rerrors.New(rerrors.ErrCodeConflict, "resource is busy, try again", nil)

// Local is an in-process Locker built from per-key channel semaphores. The
// ttl is ignored: a local holder cannot outlive the process.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal returns an empty in-process Locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// Acquire blocks until key is free or ctx ends.
func (l *Local) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	s := l.ref(key)

	select {
	case s.ch <- struct{}{}:
	default:
		select {
		case s.ch <- struct{}{}:
		case <-ctx.Done():
			l.unref(key)
			return nil, ErrBusy
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(key)
		})
	}, nil
}

func (l *Local) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// TryAcquire attempts a lock, waiting at most tryWait for it.
func TryAcquire(l Locker, key string, ttl time.Duration) (func(), bool) {
	ctx, cancel := context.WithTimeout(context.Background(), tryWait)
	defer cancel()
	release, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return nil, false
	}
	return release, true
}

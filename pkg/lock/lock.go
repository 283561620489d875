// Package lock serializes engine operations that the database alone
// cannot order, such as svlan allocation combined with device
// provisioning. A single-process deployment uses the local locker; a
// fleet of engine instances shares a Redis locker.
package lock

import (
	"context"
	"sort"
	"sync"
)

// Locker acquires named locks. Acquire blocks until the lock is held
// or ctx is done, and returns the release function.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// AcquireAll takes every key in sorted order so two operations locking
// overlapping sets cannot deadlock. On error the locks already held
// are released.
func AcquireAll(ctx context.Context, l Locker, keys ...string) (release func(), err error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var releases []func()
	for _, key := range sorted {
		rel, err := l.Acquire(ctx, key)
		if err != nil {
			for i := len(releases) - 1; i >= 0; i-- {
				releases[i]()
			}
			return nil, err
		}
		releases = append(releases, rel)
	}
	return func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}, nil
}

// Local is a process-wide keyed mutex.
type Local struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]*sync.Mutex)}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return m.Unlock, nil
	case <-ctx.Done():
		// The goroutine will still take the mutex; hand it straight
		// back once it does.
		go func() {
			<-acquired
			m.Unlock()
		}()
		return nil, ctx.Err()
	}
}

package slotlock

import (
	"context"
	"sync"
	"time"
)

type localSlot struct {
	sem  chan struct{}
	refs int
}

// Local is an in-process Locker. It only protects a single server instance.
type Local struct {
	wait time.Duration

	mu    sync.Mutex
	slots map[string]*localSlot
}

// NewLocal returns a Local locker. A non-positive wait blocks until the lock
// is free or the context ends.
func NewLocal(wait time.Duration) *Local {
	return &Local{wait: wait, slots: make(map[string]*localSlot)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &localSlot{sem: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	var timeout <-chan time.Time
	if l.wait > 0 {
		timer := time.NewTimer(l.wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case s.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.sem
				l.release(key, s)
			})
		}, nil
	case <-timeout:
		l.release(key, s)
		return nil, ErrBusy
	case <-ctx.Done():
		l.release(key, s)
		return nil, ctx.Err()
	}
}

func (l *Local) release(key string, s *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// held returns the number of keys with an owner or waiter.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

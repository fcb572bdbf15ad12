package lock

import (
	"context"
	"errors"
	"sync"
)

var ErrNotAcquired = errors.New("date lock not acquired")

// Locker guards the read-check-write of an approval. Every approval for the
// same preferred date runs inside the same critical section.
type Locker interface {
	WithDateLock(ctx context.Context, date string, fn func(ctx context.Context) error) error
}

type localEntry struct {
	mu   sync.Mutex
	refs int
}

// Local serialises callers inside one process with a mutex per date.
// Entries are dropped once no caller holds or waits on them.
type Local struct {
	mu    sync.Mutex
	dates map[string]*localEntry
}

func NewLocal() *Local {
	return &Local{dates: make(map[string]*localEntry)}
}

func (l *Local) WithDateLock(ctx context.Context, date string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := l.acquire(date)
	e.mu.Lock()
	defer l.release(date, e)

	return fn(ctx)
}

func (l *Local) acquire(date string) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.dates[date]
	if !ok {
		e = &localEntry{}
		l.dates[date] = e
	}
	e.refs++
	return e
}

func (l *Local) release(date string, e *localEntry) {
	e.mu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.dates, date)
	}
}

// held reports how many dates currently have an entry.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.dates)
}

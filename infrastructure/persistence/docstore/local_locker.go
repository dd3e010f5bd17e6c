package docstore

import (
	"context"
	"sync"
	"time"

	"knowde-backend/application/ports"
)

// LocalRunLocker implements ports.RunLocker with in-process mutexes, for
// development and tests. It serializes runs within one process only.
type LocalRunLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalRunLocker creates an in-process run locker
func NewLocalRunLocker() *LocalRunLocker {
	return &LocalRunLocker{locks: make(map[string]*sync.Mutex)}
}

// Acquire implements ports.RunLocker
func (l *LocalRunLocker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (ports.RunLock, error) {
	l.mu.Lock()
	keyLock, exists := l.locks[key]
	if !exists {
		keyLock = &sync.Mutex{}
		l.locks[key] = keyLock
	}
	l.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		keyLock.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return &localRunLock{lock: keyLock}, nil
	case <-ctx.Done():
		// The goroutine will eventually grab and immediately drop the lock
		go func() {
			<-acquired
			keyLock.Unlock()
		}()
		return nil, ctx.Err()
	}
}

type localRunLock struct {
	lock *sync.Mutex
	once sync.Once
}

// Release implements ports.RunLock
func (rl *localRunLock) Release(ctx context.Context) error {
	rl.once.Do(rl.lock.Unlock)
	return nil
}

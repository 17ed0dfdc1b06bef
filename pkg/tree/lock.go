package tree

import "context"

// Locker serialises mutating tree operations. Without one, concurrent moves
// and inserts touching the same parent may race.
type Locker interface {
	// Lock blocks until the lock is held or ctx is done. The returned
	// function releases it.
	Lock(ctx context.Context) (unlock func(), err error)
}

// MutexLocker is an in-process Locker. It does not coordinate separate
// processes sharing one store.
type MutexLocker struct {
	ch chan struct{}
}

func NewMutexLocker() *MutexLocker {
	return &MutexLocker{ch: make(chan struct{}, 1)}
}

func (l *MutexLocker) Lock(ctx context.Context) (func(), error) {
	select {
	case l.ch <- struct{}{}:
		return func() { <-l.ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

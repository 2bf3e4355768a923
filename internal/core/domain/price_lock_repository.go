package domain

import "context"

// PriceLockRepository is the abstraction for any kind of database intended to
// persist price locks. Locks are append-only: there is no delete.
type PriceLockRepository interface {
	// AddPriceLock persists a new lock.
	AddPriceLock(ctx context.Context, lock *PriceLock) error
	// GetPriceLock returns the lock with the given id, or ErrPriceLockNotFound.
	GetPriceLock(ctx context.Context, id string) (*PriceLock, error)
	// GetPendingPriceLocks returns all locks past New but not yet Mature.
	GetPendingPriceLocks(ctx context.Context) ([]*PriceLock, error)
	// GetUnrelayedPriceLocks returns all locks not yet pushed to peers.
	GetUnrelayedPriceLocks(ctx context.Context) ([]*PriceLock, error)
	// UpdatePriceLock commits multiple changes to the same lock in a
	// transactional way.
	UpdatePriceLock(
		ctx context.Context, id string,
		updateFn func(l *PriceLock) (*PriceLock, error),
	) error
}

package inmemory

import (
	"context"
	"errors"
	"sync"

	"github.com/x42protocol/xserverd/internal/core/domain"
)

// PriceLockRepositoryImpl is a map-backed PriceLockRepository used by tests
// and by light deployments.
type PriceLockRepositoryImpl struct {
	mtx   sync.RWMutex
	locks map[string]*domain.PriceLock
}

// NewPriceLockRepositoryImpl ...
func NewPriceLockRepositoryImpl() *PriceLockRepositoryImpl {
	return &PriceLockRepositoryImpl{locks: map[string]*domain.PriceLock{}}
}

func (r *PriceLockRepositoryImpl) AddPriceLock(
	ctx context.Context, lock *domain.PriceLock,
) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.locks[lock.Id]; ok {
		return errors.New("price lock already exists")
	}
	clone := *lock
	r.locks[lock.Id] = &clone
	return nil
}

func (r *PriceLockRepositoryImpl) GetPriceLock(
	ctx context.Context, id string,
) (*domain.PriceLock, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	lock, ok := r.locks[id]
	if !ok {
		return nil, domain.ErrPriceLockNotFound
	}
	clone := *lock
	return &clone, nil
}

func (r *PriceLockRepositoryImpl) GetPendingPriceLocks(
	ctx context.Context,
) ([]*domain.PriceLock, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.filter(func(l *domain.PriceLock) bool { return l.IsPending() }), nil
}

func (r *PriceLockRepositoryImpl) GetUnrelayedPriceLocks(
	ctx context.Context,
) ([]*domain.PriceLock, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.filter(func(l *domain.PriceLock) bool { return !l.Relayed }), nil
}

func (r *PriceLockRepositoryImpl) UpdatePriceLock(
	ctx context.Context, id string,
	updateFn func(l *domain.PriceLock) (*domain.PriceLock, error),
) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	lock, ok := r.locks[id]
	if !ok {
		return domain.ErrPriceLockNotFound
	}
	clone := *lock
	updated, err := updateFn(&clone)
	if err != nil {
		return err
	}
	r.locks[id] = updated
	return nil
}

func (r *PriceLockRepositoryImpl) filter(
	keep func(l *domain.PriceLock) bool,
) []*domain.PriceLock {
	out := make([]*domain.PriceLock, 0, len(r.locks))
	for _, l := range r.locks {
		if keep(l) {
			clone := *l
			out = append(out, &clone)
		}
	}
	return out
}

package dbbadger

import (
	"context"

	"github.com/timshannon/badgerhold/v4"

	"github.com/x42protocol/xserverd/internal/core/domain"
)

type priceLockRepositoryImpl struct {
	store *badgerhold.Store
}

func newPriceLockRepositoryImpl(store *badgerhold.Store) domain.PriceLockRepository {
	return priceLockRepositoryImpl{store}
}

func (r priceLockRepositoryImpl) AddPriceLock(
	ctx context.Context, lock *domain.PriceLock,
) error {
	return r.store.Insert(lock.Id, lock)
}

func (r priceLockRepositoryImpl) GetPriceLock(
	ctx context.Context, id string,
) (*domain.PriceLock, error) {
	var lock domain.PriceLock
	if err := r.store.Get(id, &lock); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrPriceLockNotFound
		}
		return nil, err
	}
	return &lock, nil
}

func (r priceLockRepositoryImpl) GetPendingPriceLocks(
	ctx context.Context,
) ([]*domain.PriceLock, error) {
	return r.findLocks(badgerhold.Where("Status").In(
		domain.PriceLockStatusWaitingForConfirmation,
		domain.PriceLockStatusConfirmed,
	))
}

func (r priceLockRepositoryImpl) GetUnrelayedPriceLocks(
	ctx context.Context,
) ([]*domain.PriceLock, error) {
	return r.findLocks(badgerhold.Where("Relayed").Eq(false))
}

func (r priceLockRepositoryImpl) UpdatePriceLock(
	ctx context.Context, id string,
	updateFn func(l *domain.PriceLock) (*domain.PriceLock, error),
) error {
	lock, err := r.GetPriceLock(ctx, id)
	if err != nil {
		return err
	}

	updated, err := updateFn(lock)
	if err != nil {
		return err
	}
	return r.store.Update(id, *updated)
}

func (r priceLockRepositoryImpl) findLocks(
	query *badgerhold.Query,
) ([]*domain.PriceLock, error) {
	var locks []domain.PriceLock
	if err := r.store.Find(&locks, query); err != nil {
		return nil, err
	}

	out := make([]*domain.PriceLock, 0, len(locks))
	for i := range locks {
		out = append(out, &locks[i])
	}
	return out, nil
}

package dbbadger

import (
	"context"

	"github.com/timshannon/badgerhold/v4"

	"github.com/x42protocol/xserverd/internal/core/domain"
)

type profileRepositoryImpl struct {
	store *badgerhold.Store
}

func newProfileRepositoryImpl(store *badgerhold.Store) domain.ProfileRepository {
	return profileRepositoryImpl{store}
}

// checkIdentityFree enforces name/key-address uniqueness across the union of
// reservations and profiles.
func (r profileRepositoryImpl) checkIdentityFree(name, keyAddress string) error {
	count, err := r.store.Count(
		&domain.Profile{}, badgerhold.Where("Name").Eq(name),
	)
	if err != nil {
		return err
	}
	if count <= 0 {
		count, err = r.store.Count(
			&domain.ProfileReservation{}, badgerhold.Where("Name").Eq(name),
		)
		if err != nil {
			return err
		}
	}
	if count > 0 {
		return domain.ErrProfileNameExists
	}

	count, err = r.store.Count(
		&domain.Profile{}, badgerhold.Where("KeyAddress").Eq(keyAddress),
	)
	if err != nil {
		return err
	}
	if count <= 0 {
		count, err = r.store.Count(
			&domain.ProfileReservation{}, badgerhold.Where("KeyAddress").Eq(keyAddress),
		)
		if err != nil {
			return err
		}
	}
	if count > 0 {
		return domain.ErrProfileKeyAddressExists
	}
	return nil
}

func (r profileRepositoryImpl) AddReservation(
	ctx context.Context, reservation *domain.ProfileReservation,
) error {
	if err := r.checkIdentityFree(reservation.Name, reservation.KeyAddress); err != nil {
		return err
	}
	return r.store.Insert(reservation.Id, reservation)
}

func (r profileRepositoryImpl) GetReservationByName(
	ctx context.Context, name string,
) (*domain.ProfileReservation, error) {
	return r.findOneReservation(badgerhold.Where("Name").Eq(name))
}

func (r profileRepositoryImpl) GetReservationByKeyAddress(
	ctx context.Context, keyAddress string,
) (*domain.ProfileReservation, error) {
	return r.findOneReservation(badgerhold.Where("KeyAddress").Eq(keyAddress))
}

func (r profileRepositoryImpl) GetAllReservations(
	ctx context.Context,
) ([]*domain.ProfileReservation, error) {
	return r.findReservations(nil)
}

func (r profileRepositoryImpl) GetUnrelayedReservations(
	ctx context.Context,
) ([]*domain.ProfileReservation, error) {
	return r.findReservations(badgerhold.Where("Relayed").Eq(false))
}

func (r profileRepositoryImpl) UpdateReservation(
	ctx context.Context, id string,
	updateFn func(res *domain.ProfileReservation) (*domain.ProfileReservation, error),
) error {
	var reservation domain.ProfileReservation
	if err := r.store.Get(id, &reservation); err != nil {
		if err == badgerhold.ErrNotFound {
			return domain.ErrReservationNotFound
		}
		return err
	}

	updated, err := updateFn(&reservation)
	if err != nil {
		return err
	}
	return r.store.Update(id, *updated)
}

func (r profileRepositoryImpl) DeleteReservation(ctx context.Context, id string) error {
	if err := r.store.Delete(id, &domain.ProfileReservation{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return domain.ErrReservationNotFound
		}
		return err
	}
	return nil
}

func (r profileRepositoryImpl) AddProfile(
	ctx context.Context, profile *domain.Profile,
) error {
	count, err := r.store.Count(
		&domain.Profile{}, badgerhold.Where("Name").Eq(profile.Name),
	)
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrProfileNameExists
	}
	count, err = r.store.Count(
		&domain.Profile{}, badgerhold.Where("KeyAddress").Eq(profile.KeyAddress),
	)
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrProfileKeyAddressExists
	}
	return r.store.Insert(profile.Id, profile)
}

func (r profileRepositoryImpl) GetProfileByName(
	ctx context.Context, name string,
) (*domain.Profile, error) {
	return r.findOneProfile(badgerhold.Where("Name").Eq(name))
}

func (r profileRepositoryImpl) GetProfileByKeyAddress(
	ctx context.Context, keyAddress string,
) (*domain.Profile, error) {
	return r.findOneProfile(badgerhold.Where("KeyAddress").Eq(keyAddress))
}

func (r profileRepositoryImpl) GetProfilesFromBlock(
	ctx context.Context, fromBlock int64, limit int,
) ([]*domain.Profile, error) {
	return r.findProfiles(
		badgerhold.Where("BlockConfirmed").Gt(fromBlock).
			SortBy("BlockConfirmed").
			Limit(limit),
	)
}

func (r profileRepositoryImpl) GetUnrelayedProfiles(
	ctx context.Context,
) ([]*domain.Profile, error) {
	return r.findProfiles(badgerhold.Where("Relayed").Eq(false))
}

func (r profileRepositoryImpl) UpdateProfile(
	ctx context.Context, id string,
	updateFn func(p *domain.Profile) (*domain.Profile, error),
) error {
	var profile domain.Profile
	if err := r.store.Get(id, &profile); err != nil {
		if err == badgerhold.ErrNotFound {
			return domain.ErrProfileNotFound
		}
		return err
	}

	updated, err := updateFn(&profile)
	if err != nil {
		return err
	}
	return r.store.Update(id, *updated)
}

func (r profileRepositoryImpl) findOneReservation(
	query *badgerhold.Query,
) (*domain.ProfileReservation, error) {
	reservations, err := r.findReservations(query)
	if err != nil {
		return nil, err
	}
	if len(reservations) <= 0 {
		return nil, domain.ErrReservationNotFound
	}
	return reservations[0], nil
}

func (r profileRepositoryImpl) findReservations(
	query *badgerhold.Query,
) ([]*domain.ProfileReservation, error) {
	var reservations []domain.ProfileReservation
	if err := r.store.Find(&reservations, query); err != nil {
		return nil, err
	}
	out := make([]*domain.ProfileReservation, 0, len(reservations))
	for i := range reservations {
		out = append(out, &reservations[i])
	}
	return out, nil
}

func (r profileRepositoryImpl) findOneProfile(
	query *badgerhold.Query,
) (*domain.Profile, error) {
	profiles, err := r.findProfiles(query)
	if err != nil {
		return nil, err
	}
	if len(profiles) <= 0 {
		return nil, domain.ErrProfileNotFound
	}
	return profiles[0], nil
}

func (r profileRepositoryImpl) findProfiles(
	query *badgerhold.Query,
) ([]*domain.Profile, error) {
	var profiles []domain.Profile
	if err := r.store.Find(&profiles, query); err != nil {
		return nil, err
	}
	out := make([]*domain.Profile, 0, len(profiles))
	for i := range profiles {
		out = append(out, &profiles[i])
	}
	return out, nil
}

package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/x42protocol/xserverd/internal/core/domain"
)

// ProfileRepositoryImpl is a map-backed ProfileRepository used by tests and
// by light deployments. Name and key address are unique across the union of
// reservations and profiles, mirroring the store-level constraints.
type ProfileRepositoryImpl struct {
	mtx          sync.RWMutex
	reservations map[string]*domain.ProfileReservation
	profiles     map[string]*domain.Profile
}

// NewProfileRepositoryImpl ...
func NewProfileRepositoryImpl() *ProfileRepositoryImpl {
	return &ProfileRepositoryImpl{
		reservations: map[string]*domain.ProfileReservation{},
		profiles:     map[string]*domain.Profile{},
	}
}

func (r *ProfileRepositoryImpl) identityTaken(name, keyAddress string) error {
	for _, p := range r.profiles {
		if p.Name == name {
			return domain.ErrProfileNameExists
		}
		if p.KeyAddress == keyAddress {
			return domain.ErrProfileKeyAddressExists
		}
	}
	for _, res := range r.reservations {
		if res.Name == name {
			return domain.ErrProfileNameExists
		}
		if res.KeyAddress == keyAddress {
			return domain.ErrProfileKeyAddressExists
		}
	}
	return nil
}

func (r *ProfileRepositoryImpl) AddReservation(
	ctx context.Context, reservation *domain.ProfileReservation,
) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if err := r.identityTaken(reservation.Name, reservation.KeyAddress); err != nil {
		return err
	}
	clone := *reservation
	r.reservations[reservation.Id] = &clone
	return nil
}

func (r *ProfileRepositoryImpl) GetReservationByName(
	ctx context.Context, name string,
) (*domain.ProfileReservation, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	for _, res := range r.reservations {
		if res.Name == name {
			clone := *res
			return &clone, nil
		}
	}
	return nil, domain.ErrReservationNotFound
}

func (r *ProfileRepositoryImpl) GetReservationByKeyAddress(
	ctx context.Context, keyAddress string,
) (*domain.ProfileReservation, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	for _, res := range r.reservations {
		if res.KeyAddress == keyAddress {
			clone := *res
			return &clone, nil
		}
	}
	return nil, domain.ErrReservationNotFound
}

func (r *ProfileRepositoryImpl) GetAllReservations(
	ctx context.Context,
) ([]*domain.ProfileReservation, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	out := make([]*domain.ProfileReservation, 0, len(r.reservations))
	for _, res := range r.reservations {
		clone := *res
		out = append(out, &clone)
	}
	return out, nil
}

func (r *ProfileRepositoryImpl) GetUnrelayedReservations(
	ctx context.Context,
) ([]*domain.ProfileReservation, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	out := make([]*domain.ProfileReservation, 0)
	for _, res := range r.reservations {
		if !res.Relayed {
			clone := *res
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *ProfileRepositoryImpl) UpdateReservation(
	ctx context.Context, id string,
	updateFn func(res *domain.ProfileReservation) (*domain.ProfileReservation, error),
) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	reservation, ok := r.reservations[id]
	if !ok {
		return domain.ErrReservationNotFound
	}
	clone := *reservation
	updated, err := updateFn(&clone)
	if err != nil {
		return err
	}
	r.reservations[id] = updated
	return nil
}

func (r *ProfileRepositoryImpl) DeleteReservation(ctx context.Context, id string) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.reservations[id]; !ok {
		return domain.ErrReservationNotFound
	}
	delete(r.reservations, id)
	return nil
}

func (r *ProfileRepositoryImpl) AddProfile(
	ctx context.Context, profile *domain.Profile,
) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	for _, p := range r.profiles {
		if p.Name == profile.Name {
			return domain.ErrProfileNameExists
		}
		if p.KeyAddress == profile.KeyAddress {
			return domain.ErrProfileKeyAddressExists
		}
	}
	if _, ok := r.profiles[profile.Id]; ok {
		return errors.New("profile already exists")
	}
	clone := *profile
	r.profiles[profile.Id] = &clone
	return nil
}

func (r *ProfileRepositoryImpl) GetProfileByName(
	ctx context.Context, name string,
) (*domain.Profile, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	for _, p := range r.profiles {
		if p.Name == name {
			clone := *p
			return &clone, nil
		}
	}
	return nil, domain.ErrProfileNotFound
}

func (r *ProfileRepositoryImpl) GetProfileByKeyAddress(
	ctx context.Context, keyAddress string,
) (*domain.Profile, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	for _, p := range r.profiles {
		if p.KeyAddress == keyAddress {
			clone := *p
			return &clone, nil
		}
	}
	return nil, domain.ErrProfileNotFound
}

func (r *ProfileRepositoryImpl) GetProfilesFromBlock(
	ctx context.Context, fromBlock int64, limit int,
) ([]*domain.Profile, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	out := make([]*domain.Profile, 0)
	for _, p := range r.profiles {
		if p.BlockConfirmed > fromBlock {
			clone := *p
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BlockConfirmed < out[j].BlockConfirmed
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ProfileRepositoryImpl) GetUnrelayedProfiles(
	ctx context.Context,
) ([]*domain.Profile, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	out := make([]*domain.Profile, 0)
	for _, p := range r.profiles {
		if !p.Relayed {
			clone := *p
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *ProfileRepositoryImpl) UpdateProfile(
	ctx context.Context, id string,
	updateFn func(p *domain.Profile) (*domain.Profile, error),
) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	profile, ok := r.profiles[id]
	if !ok {
		return domain.ErrProfileNotFound
	}
	clone := *profile
	updated, err := updateFn(&clone)
	if err != nil {
		return err
	}
	r.profiles[id] = updated
	return nil
}

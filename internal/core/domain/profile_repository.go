package domain

import "context"

// ProfileRepository is the abstraction for any kind of database intended to
// persist profile reservations and confirmed profiles. Name and key address
// are each unique across the union of the two tables; the repository enforces
// this on insert.
type ProfileRepository interface {
	// AddReservation persists a reservation. Returns ErrProfileNameExists or
	// ErrProfileKeyAddressExists when the name or key address is already
	// taken by a reservation or a profile.
	AddReservation(ctx context.Context, reservation *ProfileReservation) error
	// GetReservationByName returns the pending reservation with the given
	// name, or ErrReservationNotFound.
	GetReservationByName(ctx context.Context, name string) (*ProfileReservation, error)
	// GetReservationByKeyAddress returns the pending reservation bound to the
	// given key address, or ErrReservationNotFound.
	GetReservationByKeyAddress(ctx context.Context, keyAddress string) (*ProfileReservation, error)
	// GetAllReservations returns all pending reservations.
	GetAllReservations(ctx context.Context) ([]*ProfileReservation, error)
	// GetUnrelayedReservations returns reservations not yet pushed to peers.
	GetUnrelayedReservations(ctx context.Context) ([]*ProfileReservation, error)
	// UpdateReservation commits multiple changes to the same reservation in a
	// transactional way.
	UpdateReservation(
		ctx context.Context, id string,
		updateFn func(r *ProfileReservation) (*ProfileReservation, error),
	) error
	// DeleteReservation removes an expired or promoted reservation.
	DeleteReservation(ctx context.Context, id string) error

	// AddProfile persists a confirmed profile, with the same uniqueness
	// errors as AddReservation.
	AddProfile(ctx context.Context, profile *Profile) error
	// GetProfileByName returns the confirmed profile with the given name, or
	// ErrProfileNotFound.
	GetProfileByName(ctx context.Context, name string) (*Profile, error)
	// GetProfileByKeyAddress returns the confirmed profile bound to the given
	// key address, or ErrProfileNotFound.
	GetProfileByKeyAddress(ctx context.Context, keyAddress string) (*Profile, error)
	// GetProfilesFromBlock pages through profiles confirmed at a block height
	// greater than fromBlock. An empty result means the end of the page set.
	GetProfilesFromBlock(ctx context.Context, fromBlock int64, limit int) ([]*Profile, error)
	// GetUnrelayedProfiles returns profiles not yet pushed to peers.
	GetUnrelayedProfiles(ctx context.Context) ([]*Profile, error)
	// UpdateProfile commits multiple changes to the same profile in a
	// transactional way.
	UpdateProfile(
		ctx context.Context, id string,
		updateFn func(p *Profile) (*Profile, error),
	) error
}

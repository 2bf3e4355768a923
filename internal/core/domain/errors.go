package domain

import "errors"

var (
	// ErrPriceLockNotNew is returned when trying to mutate a price lock that
	// already left the New status.
	ErrPriceLockNotNew = errors.New("price lock is not in New status")
	// ErrPriceLockAlreadySigned ...
	ErrPriceLockAlreadySigned = errors.New("price lock is already signed")
	// ErrPriceLockNotSigned ...
	ErrPriceLockNotSigned = errors.New("price lock is not signed")
	// ErrPriceLockMustBeWaiting is returned when confirming a lock whose
	// payment was never submitted.
	ErrPriceLockMustBeWaiting = errors.New("price lock must be waiting for confirmation")
	// ErrPriceLockMustBeConfirmed ...
	ErrPriceLockMustBeConfirmed = errors.New("price lock must be confirmed")
	// ErrInvalidTier ...
	ErrInvalidTier = errors.New("tier is not a valid tier class")
	// ErrServerNodeInvalidAddress is returned for loopback, unspecified or
	// otherwise non-routable peer network addresses.
	ErrServerNodeInvalidAddress = errors.New("server node network address is not routable")
	// ErrReservationNotReserved ...
	ErrReservationNotReserved = errors.New("profile reservation is not in Reserved status")

	// ErrPriceLockNotFound ...
	ErrPriceLockNotFound = errors.New("price lock not found")
	// ErrServerNodeNotFound ...
	ErrServerNodeNotFound = errors.New("server node not found")
	// ErrServerNodeAlreadyExists is returned on inserting a node whose
	// signature is already known. Duplicate inserts racing between
	// reconciliation and relay resolve harmlessly through this error.
	ErrServerNodeAlreadyExists = errors.New("server node already exists")
	// ErrProfileNameExists ...
	ErrProfileNameExists = errors.New("profile name already exists")
	// ErrProfileKeyAddressExists ...
	ErrProfileKeyAddressExists = errors.New("profile key address already exists")
	// ErrReservationNotFound ...
	ErrReservationNotFound = errors.New("profile reservation not found")
	// ErrProfileNotFound ...
	ErrProfileNotFound = errors.New("profile not found")
)

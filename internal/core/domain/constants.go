package domain

// Tier is the collateral-gated capability class of an xServer.
type Tier int

const (
	TierUndefined Tier = iota
	TierSeed
	TierTwo
	TierThree
)

func (t Tier) String() string {
	switch t {
	case TierSeed:
		return "seed"
	case TierTwo:
		return "two"
	case TierThree:
		return "three"
	default:
		return "undefined"
	}
}

// IsValid returns whether the tier is one of the declared classes.
func (t Tier) IsValid() bool {
	return t >= TierSeed && t <= TierThree
}

// PriceLockStatus enumerates the forward-only statuses of a price lock.
type PriceLockStatus int

const (
	PriceLockStatusNew PriceLockStatus = iota
	PriceLockStatusWaitingForConfirmation
	PriceLockStatusConfirmed
	PriceLockStatusMature
	// PriceLockStatusRejected is terminal and reachable only from New.
	PriceLockStatusRejected PriceLockStatus = 100
)

func (s PriceLockStatus) String() string {
	switch s {
	case PriceLockStatusNew:
		return "new"
	case PriceLockStatusWaitingForConfirmation:
		return "waiting_for_confirmation"
	case PriceLockStatusConfirmed:
		return "confirmed"
	case PriceLockStatusMature:
		return "mature"
	case PriceLockStatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ProfileStatus enumerates the statuses of a profile reservation and of a
// confirmed profile.
type ProfileStatus int

const (
	ProfileStatusReserved ProfileStatus = iota
	ProfileStatusNameExists
	ProfileStatusKeyAddressExists
	ProfileStatusRejected
	ProfileStatusCreated
)

func (s ProfileStatus) String() string {
	switch s {
	case ProfileStatusReserved:
		return "reserved"
	case ProfileStatusNameExists:
		return "name_exists"
	case ProfileStatusKeyAddressExists:
		return "key_address_exists"
	case ProfileStatusRejected:
		return "rejected"
	case ProfileStatusCreated:
		return "created"
	default:
		return "unknown"
	}
}

package domain

import "github.com/google/uuid"

// ProfileReservation is the pending stage of a profile: a unique name bound
// to a key address, waiting for its backing price lock to be paid and
// confirmed on chain. A reservation either becomes a Profile or is deleted by
// the expiration sweep.
type ProfileReservation struct {
	Id            string
	Name          string
	KeyAddress    string
	ReturnAddress string
	Signature     string
	Status        ProfileStatus
	PriceLockId   string
	ExpireBlock   int64
	// BlockConfirmed is set only on relay messages wrapping an already
	// settled profile, so receivers can promote without re-resolving the
	// payment height.
	BlockConfirmed int64
	Relayed        bool
}

// NewProfileReservation returns a Reserved, unrelayed reservation with a
// fresh id.
func NewProfileReservation(
	name, keyAddress, returnAddress, signature, priceLockId string,
	expireBlock int64,
) *ProfileReservation {
	return &ProfileReservation{
		Id:            uuid.New().String(),
		Name:          name,
		KeyAddress:    keyAddress,
		ReturnAddress: returnAddress,
		Signature:     signature,
		Status:        ProfileStatusReserved,
		PriceLockId:   priceLockId,
		ExpireBlock:   expireBlock,
	}
}

// SignaturePayload returns the message the reserving key signs.
func (r *ProfileReservation) SignaturePayload() string {
	return r.Name + r.ReturnAddress
}

// IsExpired returns whether the reservation's expiration block has passed.
func (r *ProfileReservation) IsExpired(currentHeight int64) bool {
	return currentHeight > r.ExpireBlock
}

// MarkRelayed flags the reservation as already pushed to peers.
func (r *ProfileReservation) MarkRelayed() {
	r.Relayed = true
}

// Promote converts the reservation into a confirmed Profile at the block
// height the backing payment confirmed. A reservation holding a settled
// relay, already in Created status, promotes the same way once its lock
// resolves locally.
func (r *ProfileReservation) Promote(blockConfirmed int64) (*Profile, error) {
	if r.Status != ProfileStatusReserved && r.Status != ProfileStatusCreated {
		return nil, ErrReservationNotReserved
	}
	return &Profile{
		Id:             r.Id,
		Name:           r.Name,
		KeyAddress:     r.KeyAddress,
		ReturnAddress:  r.ReturnAddress,
		Signature:      r.Signature,
		Status:         ProfileStatusCreated,
		PriceLockId:    r.PriceLockId,
		BlockConfirmed: blockConfirmed,
	}, nil
}

// Profile is a confirmed unique name bound to a key address, settled by a
// confirmed price-lock payment.
type Profile struct {
	Id             string
	Name           string
	KeyAddress     string
	ReturnAddress  string
	Signature      string
	Status         ProfileStatus
	PriceLockId    string
	BlockConfirmed int64
	Relayed        bool
}

// SignaturePayload returns the message the owning key signed at reservation
// time.
func (p *Profile) SignaturePayload() string {
	return p.Name + p.ReturnAddress
}

// MarkRelayed flags the profile as already pushed to peers.
func (p *Profile) MarkRelayed() {
	p.Relayed = true
}

package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceLock is a signed quote binding a requested fiat amount to a coin
// amount at a point in time. Once signed, the amount fields are immutable and
// the status only moves forward: New -> WaitingForConfirmation -> Confirmed
// -> Mature. A lock can be rejected only while still New. Locks are never
// physically deleted.
type PriceLock struct {
	Id                 string
	Status             PriceLockStatus
	RequestAmount      decimal.Decimal
	RequestCurrency    string
	DestinationAmount  decimal.Decimal
	DestinationAddress string
	FeeAmount          decimal.Decimal
	FeeAddress         string
	SignAddress        string
	PriceLockSignature string
	PayeeSignature     string
	TransactionId      string
	ExpireBlock        int64
	Relayed            bool
}

// NewPriceLock returns an unsigned lock in New status with a fresh id.
func NewPriceLock(
	requestAmount decimal.Decimal, currency string,
	destinationAmount decimal.Decimal, destinationAddress string,
	feeAmount decimal.Decimal, feeAddress string,
	expireBlock int64,
) *PriceLock {
	return &PriceLock{
		Id:                 uuid.New().String(),
		Status:             PriceLockStatusNew,
		RequestAmount:      requestAmount,
		RequestCurrency:    currency,
		DestinationAmount:  destinationAmount,
		DestinationAddress: destinationAddress,
		FeeAmount:          feeAmount,
		FeeAddress:         feeAddress,
		ExpireBlock:        expireBlock,
	}
}

// SignaturePayload returns the message the quoting node signs. Payers verify
// the quote, and prove payment intent, against this exact concatenation.
func (p *PriceLock) SignaturePayload() string {
	return fmt.Sprintf(
		"%s%s%s%s%s",
		p.Id,
		p.DestinationAddress, p.DestinationAmount.String(),
		p.FeeAddress, p.FeeAmount.String(),
	)
}

// Sign attaches the quoting node's signature. Only an unsigned New lock can
// be signed.
func (p *PriceLock) Sign(signAddress, signature string) error {
	if p.Status != PriceLockStatusNew {
		return ErrPriceLockNotNew
	}
	if len(p.PriceLockSignature) > 0 {
		return ErrPriceLockAlreadySigned
	}
	p.SignAddress = signAddress
	p.PriceLockSignature = signature
	return nil
}

// ApplyPayment brings a New lock to WaitingForConfirmation with the payee's
// signature and the settlement transaction id.
func (p *PriceLock) ApplyPayment(payeeSignature, txId string) error {
	if p.Status != PriceLockStatusNew {
		return ErrPriceLockNotNew
	}
	if len(p.PriceLockSignature) <= 0 {
		return ErrPriceLockNotSigned
	}
	p.PayeeSignature = payeeSignature
	p.TransactionId = txId
	p.Status = PriceLockStatusWaitingForConfirmation
	p.Relayed = false
	return nil
}

// Confirm brings the lock to Confirmed once its settlement transaction has at
// least one confirmation. Confirming an already confirmed or mature lock is a
// no-op.
func (p *PriceLock) Confirm() (bool, error) {
	if p.Status == PriceLockStatusConfirmed || p.Status == PriceLockStatusMature {
		return true, nil
	}
	if p.Status != PriceLockStatusWaitingForConfirmation {
		return false, ErrPriceLockMustBeWaiting
	}
	p.Status = PriceLockStatusConfirmed
	p.Relayed = false
	return true, nil
}

// Mature brings a Confirmed lock to its terminal Mature status.
func (p *PriceLock) Mature() (bool, error) {
	if p.Status == PriceLockStatusMature {
		return true, nil
	}
	if p.Status != PriceLockStatusConfirmed {
		return false, ErrPriceLockMustBeConfirmed
	}
	p.Status = PriceLockStatusMature
	p.Relayed = false
	return true, nil
}

// Reject marks the lock rejected. Only a New lock can be rejected.
func (p *PriceLock) Reject() error {
	if p.Status != PriceLockStatusNew {
		return ErrPriceLockNotNew
	}
	p.Status = PriceLockStatusRejected
	return nil
}

// MarkRelayed flags the lock as already pushed to peers.
func (p *PriceLock) MarkRelayed() {
	p.Relayed = true
}

// IsNew returns whether the lock is still in New status.
func (p *PriceLock) IsNew() bool {
	return p.Status == PriceLockStatusNew
}

// IsPending returns whether the lock is past New but not yet Mature, ie. it
// still needs confirmation polling.
func (p *PriceLock) IsPending() bool {
	return p.Status == PriceLockStatusWaitingForConfirmation ||
		p.Status == PriceLockStatusConfirmed
}

// IsConfirmed returns whether the lock's payment has at least one
// confirmation.
func (p *PriceLock) IsConfirmed() bool {
	return p.Status == PriceLockStatusConfirmed || p.Status == PriceLockStatusMature
}

// IsSigned returns whether the quote carries the quoting node's signature.
func (p *PriceLock) IsSigned() bool {
	return len(p.PriceLockSignature) > 0
}

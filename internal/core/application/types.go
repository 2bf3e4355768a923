package application

import (
	"github.com/shopspring/decimal"

	"github.com/x42protocol/xserverd/internal/core/domain"
)

// CreatePriceLockRequest is a quote request for pinning a fiat amount to a
// coin amount.
type CreatePriceLockRequest struct {
	RequestAmount   decimal.Decimal
	RequestCurrency string
}

// SubmitPaymentRequest carries the payment proof for a New price lock.
// TransactionHex is optional; when set, the raw transaction is broadcast
// through the ledger after validation.
type SubmitPaymentRequest struct {
	PriceLockId    string
	PayeeSignature string
	TransactionId  string
	TransactionHex string
}

// SubmitPaymentResult is the structured success/failure returned to payment
// callers.
type SubmitPaymentResult struct {
	Success   bool
	ErrorCode PaymentErrorCode
}

// ReserveProfileRequest asks for a name reservation backed by a fee quote.
type ReserveProfileRequest struct {
	Name          string
	KeyAddress    string
	ReturnAddress string
	Signature     string
}

// ReserveProfileResult reports the reservation outcome, including the fee
// quote the caller must pay.
type ReserveProfileResult struct {
	Success     bool
	Status      domain.ProfileStatus
	PriceLock   *domain.PriceLock
	ExpireBlock int64
}

// ProfileInfo is the caller-facing view of a name, pending or final.
type ProfileInfo struct {
	Name           string
	KeyAddress     string
	ReturnAddress  string
	Signature      string
	Status         domain.ProfileStatus
	PriceLockId    string
	BlockConfirmed int64
	Pending        bool
}

package application

import "errors"

var (
	// ErrInsufficientPriceData is returned when creating a quote for a
	// currency without enough samples to compute a consensus price.
	ErrInsufficientPriceData = errors.New("insufficient price data for currency")
	// ErrPriceLockCapExceeded is returned when a requested quote would exceed
	// the coin amount sanity cap.
	ErrPriceLockCapExceeded = errors.New("requested amount exceeds coin amount cap")
	// ErrPriceLockSigningFailed is returned when the node fails to sign a
	// freshly created quote. The lock is unusable and the caller must retry
	// creation.
	ErrPriceLockSigningFailed = errors.New("price lock could not be signed")
	// ErrProfileValidationFailed is returned for a reservation whose
	// signature does not verify against its key address.
	ErrProfileValidationFailed = errors.New("profile signature validation failed")
	// ErrProfileNotFound ...
	ErrProfileNotFound = errors.New("no profile or reservation found")
	// ErrTierNotJustified is returned when a node's collateral no longer
	// supports its declared tier.
	ErrTierNotJustified = errors.New("collateral does not justify declared tier")
	// ErrNetworkNotReady is returned by operations gated on startup
	// sequencing having completed.
	ErrNetworkNotReady = errors.New("network is not ready")
)

// PaymentErrorCode classifies payment submission failures. These are
// validation errors returned to the caller as data, never thrown.
type PaymentErrorCode int

const (
	PaymentErrorNone PaymentErrorCode = iota
	PaymentErrorPriceLockNotFound
	PaymentErrorNotNew
	PaymentErrorInvalidSignature
	PaymentErrorTransactionError
	PaymentErrorTransactionDestNotFound
	PaymentErrorTransactionFeeNotFound
	PaymentErrorAlreadyExists
)

func (c PaymentErrorCode) String() string {
	switch c {
	case PaymentErrorNone:
		return "none"
	case PaymentErrorPriceLockNotFound:
		return "price_lock_not_found"
	case PaymentErrorNotNew:
		return "not_new"
	case PaymentErrorInvalidSignature:
		return "invalid_signature"
	case PaymentErrorTransactionError:
		return "transaction_error"
	case PaymentErrorTransactionDestNotFound:
		return "transaction_dest_not_found"
	case PaymentErrorTransactionFeeNotFound:
		return "transaction_fee_not_found"
	case PaymentErrorAlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

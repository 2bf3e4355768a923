package application

import (
	"context"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/x42protocol/xserverd/internal/core/domain"
	"github.com/x42protocol/xserverd/internal/core/ports"
	"github.com/x42protocol/xserverd/pkg/mathutil"
)

const (
	// coinAmountCap is the sanity cap on a single quote's coin amount.
	coinAmountCap = 42_000_000
	// confirmationsForConfirmed ...
	confirmationsForConfirmed = 1
	// confirmationsForMature ...
	confirmationsForMature = 500
)

var coinAmountCapDecimal = decimal.NewFromInt(coinAmountCap)

// PriceLockService owns the price-lock state machine: quote creation, payment
// submission validation, confirmation polling, maturity promotion and
// relay-to-peers bookkeeping.
type PriceLockService struct {
	repo       domain.PriceLockRepository
	nodeRepo   domain.ServerNodeRepository
	aggregator *PriceAggregator
	ledger     ports.LedgerClient
	oracle     ports.SignatureOracle
	peerClient ports.PeerClient
	sources    []ports.PriceSource

	currencies   []string
	signAddress  string
	feeAddress   string
	feePercent   decimal.Decimal
	expireBlocks int64
}

// PriceLockServiceOpts defines the parameters needed for creating a price
// lock service with NewPriceLockService.
type PriceLockServiceOpts struct {
	Repo         domain.PriceLockRepository
	NodeRepo     domain.ServerNodeRepository
	Aggregator   *PriceAggregator
	Ledger       ports.LedgerClient
	Oracle       ports.SignatureOracle
	PeerClient   ports.PeerClient
	Sources      []ports.PriceSource
	Currencies   []string
	SignAddress  string
	FeeAddress   string
	FeePercent   decimal.Decimal
	ExpireBlocks int64
}

// NewPriceLockService returns the price-lock ledger service.
func NewPriceLockService(opts PriceLockServiceOpts) *PriceLockService {
	return &PriceLockService{
		repo:         opts.Repo,
		nodeRepo:     opts.NodeRepo,
		aggregator:   opts.Aggregator,
		ledger:       opts.Ledger,
		oracle:       opts.Oracle,
		peerClient:   opts.PeerClient,
		sources:      opts.Sources,
		currencies:   opts.Currencies,
		signAddress:  opts.SignAddress,
		feeAddress:   opts.FeeAddress,
		feePercent:   opts.FeePercent,
		expireBlocks: opts.ExpireBlocks,
	}
}

// SampleOwnPrices queries every configured price source for every configured
// currency and pushes the observations into the own windows. Source failures
// are skipped silently.
func (s *PriceLockService) SampleOwnPrices(ctx context.Context) error {
	for _, currency := range s.currencies {
		for _, source := range s.sources {
			price, err := source.FetchPrice(ctx, currency)
			if err != nil {
				log.WithError(err).Debugf(
					"pricelock: sampling %s from %s", currency, source.Name(),
				)
				continue
			}
			if price.IsPositive() {
				s.aggregator.AddOwnSample(currency, price)
			}
		}
	}
	return nil
}

// Aggregator exposes the sample windows to the sampling tasks and the
// getprices endpoint.
func (s *PriceLockService) Aggregator() *PriceAggregator {
	return s.aggregator
}

// CreatePriceLock computes a quote at the current consensus price, persists
// it and signs it. An unsigned lock is a failed creation: on signing failure
// the persisted row is rejected and the caller must retry creation.
func (s *PriceLockService) CreatePriceLock(
	ctx context.Context, req CreatePriceLockRequest, destinationAddress string,
) (*domain.PriceLock, error) {
	consensusPrice, err := s.aggregator.ConsensusPrice(req.RequestCurrency)
	if err != nil {
		return nil, err
	}

	coinAmount := mathutil.DivRound8(req.RequestAmount, consensusPrice)
	if coinAmount.GreaterThanOrEqual(coinAmountCapDecimal) {
		return nil, ErrPriceLockCapExceeded
	}
	feeAmount := mathutil.Percent(coinAmount, s.feePercent)

	info, err := s.ledger.GetBlockchainInfo(ctx)
	if err != nil {
		return nil, err
	}

	lock := domain.NewPriceLock(
		req.RequestAmount, req.RequestCurrency,
		coinAmount, destinationAddress,
		feeAmount, s.feeAddress,
		info.Blocks+s.expireBlocks,
	)
	if err := s.repo.AddPriceLock(ctx, lock); err != nil {
		return nil, err
	}

	signature, err := s.oracle.Sign(ctx, lock.SignaturePayload())
	if err != nil {
		if rejectErr := s.repo.UpdatePriceLock(ctx, lock.Id,
			func(l *domain.PriceLock) (*domain.PriceLock, error) {
				if err := l.Reject(); err != nil {
					return nil, err
				}
				return l, nil
			},
		); rejectErr != nil {
			log.WithError(rejectErr).Warnf("pricelock: failed to reject unsigned lock %s", lock.Id)
		}
		return nil, ErrPriceLockSigningFailed
	}

	if err := s.repo.UpdatePriceLock(ctx, lock.Id,
		func(l *domain.PriceLock) (*domain.PriceLock, error) {
			if err := l.Sign(s.signAddress, signature); err != nil {
				return nil, err
			}
			return l, nil
		},
	); err != nil {
		return nil, err
	}

	lock.SignAddress = s.signAddress
	lock.PriceLockSignature = signature
	return lock, nil
}

// GetPriceLock returns the lock with the given id.
func (s *PriceLockService) GetPriceLock(ctx context.Context, id string) (*domain.PriceLock, error) {
	return s.repo.GetPriceLock(ctx, id)
}

// SubmitPayment validates a payment proof against a New lock and moves it to
// WaitingForConfirmation. All failures are typed results, never errors.
func (s *PriceLockService) SubmitPayment(
	ctx context.Context, req SubmitPaymentRequest,
) SubmitPaymentResult {
	lock, err := s.repo.GetPriceLock(ctx, req.PriceLockId)
	if err != nil {
		return SubmitPaymentResult{ErrorCode: PaymentErrorPriceLockNotFound}
	}
	if !lock.IsNew() {
		if lock.TransactionId == req.TransactionId {
			return SubmitPaymentResult{ErrorCode: PaymentErrorAlreadyExists}
		}
		return SubmitPaymentResult{ErrorCode: PaymentErrorNotNew}
	}

	var tx *ports.RawTransaction
	if len(req.TransactionHex) > 0 {
		tx, err = s.ledger.DecodeRawTransaction(ctx, req.TransactionHex)
	} else {
		tx, err = s.ledger.GetRawTransaction(ctx, req.TransactionId)
	}
	if err != nil {
		return SubmitPaymentResult{ErrorCode: PaymentErrorTransactionError}
	}

	if !hasOutput(tx, lock.DestinationAddress, lock.DestinationAmount) {
		return SubmitPaymentResult{ErrorCode: PaymentErrorTransactionDestNotFound}
	}
	if !hasOutput(tx, lock.FeeAddress, lock.FeeAmount) {
		return SubmitPaymentResult{ErrorCode: PaymentErrorTransactionFeeNotFound}
	}

	if !s.verifyPayeeSignature(ctx, tx, req.PayeeSignature, lock.Id) {
		return SubmitPaymentResult{ErrorCode: PaymentErrorInvalidSignature}
	}

	if err := s.repo.UpdatePriceLock(ctx, lock.Id,
		func(l *domain.PriceLock) (*domain.PriceLock, error) {
			if err := l.ApplyPayment(req.PayeeSignature, req.TransactionId); err != nil {
				return nil, err
			}
			return l, nil
		},
	); err != nil {
		if err == domain.ErrPriceLockNotNew {
			return SubmitPaymentResult{ErrorCode: PaymentErrorNotNew}
		}
		return SubmitPaymentResult{ErrorCode: PaymentErrorTransactionError}
	}

	if len(req.TransactionHex) > 0 {
		if _, err := s.ledger.SendRawTransaction(ctx, req.TransactionHex); err != nil {
			log.WithError(err).Warnf("pricelock: broadcast of %s failed", req.TransactionId)
		}
	}

	return SubmitPaymentResult{Success: true}
}

// hasOutput reports whether the transaction pays the exact amount to the
// address.
func hasOutput(tx *ports.RawTransaction, address string, amount decimal.Decimal) bool {
	for _, out := range tx.Outputs {
		if !out.Amount.Equal(amount) {
			continue
		}
		for _, addr := range out.Addresses {
			if addr == address {
				return true
			}
		}
	}
	return false
}

// verifyPayeeSignature walks every input of the payment transaction, resolves
// the addresses of the outputs being spent and accepts if any of them signed
// the price-lock id. This proves the payer controls a key feeding the
// transaction without requiring a specific input ordering.
func (s *PriceLockService) verifyPayeeSignature(
	ctx context.Context, tx *ports.RawTransaction, payeeSignature, lockId string,
) bool {
	for _, in := range tx.Inputs {
		spent, err := s.ledger.GetRawTransaction(ctx, in.TxId)
		if err != nil {
			continue
		}
		if int(in.Vout) >= len(spent.Outputs) {
			continue
		}
		for _, addr := range spent.Outputs[in.Vout].Addresses {
			ok, err := s.oracle.Verify(ctx, addr, payeeSignature, lockId)
			if err != nil {
				continue
			}
			if ok {
				return true
			}
		}
	}
	return false
}

// ReceivePriceLock merges a lock state pushed by a peer. Unknown locks are
// inserted as already relayed; known locks only ever move forward.
func (s *PriceLockService) ReceivePriceLock(ctx context.Context, lock *domain.PriceLock) error {
	existing, err := s.repo.GetPriceLock(ctx, lock.Id)
	if err != nil {
		remote := *lock
		remote.Relayed = true
		return s.repo.AddPriceLock(ctx, &remote)
	}

	if lock.Status <= existing.Status {
		return nil
	}

	return s.repo.UpdatePriceLock(ctx, lock.Id,
		func(l *domain.PriceLock) (*domain.PriceLock, error) {
			if l.IsNew() && len(lock.PayeeSignature) > 0 {
				if err := l.ApplyPayment(lock.PayeeSignature, lock.TransactionId); err != nil {
					return nil, err
				}
			}
			if lock.Status >= domain.PriceLockStatusConfirmed && lock.Status != domain.PriceLockStatusRejected {
				if _, err := l.Confirm(); err != nil {
					return nil, err
				}
			}
			if lock.Status == domain.PriceLockStatusMature {
				if _, err := l.Mature(); err != nil {
					return nil, err
				}
			}
			l.Relayed = true
			return l, nil
		},
	)
}

// CheckMaturity polls confirmation counts for every pending lock. Errors are
// swallowed per lock and retried next cycle.
func (s *PriceLockService) CheckMaturity(ctx context.Context) error {
	locks, err := s.repo.GetPendingPriceLocks(ctx)
	if err != nil {
		return err
	}

	for _, lock := range locks {
		tx, err := s.ledger.GetRawTransaction(ctx, lock.TransactionId)
		if err != nil {
			log.WithError(err).Debugf("pricelock: confirmation check for %s", lock.Id)
			continue
		}

		if tx.Confirmations < confirmationsForConfirmed {
			continue
		}
		if err := s.repo.UpdatePriceLock(ctx, lock.Id,
			func(l *domain.PriceLock) (*domain.PriceLock, error) {
				if _, err := l.Confirm(); err != nil {
					return nil, err
				}
				if tx.Confirmations >= confirmationsForMature {
					if _, err := l.Mature(); err != nil {
						return nil, err
					}
				}
				return l, nil
			},
		); err != nil {
			log.WithError(err).Warnf("pricelock: maturity update for %s", lock.Id)
		}
	}
	return nil
}

// RelayLocks pushes every unrelayed lock to all active tier-3 peers and marks
// it relayed regardless of delivery outcome. A peer that misses the push
// learns about the lock on its own next pull.
func (s *PriceLockService) RelayLocks(ctx context.Context) error {
	locks, err := s.repo.GetUnrelayedPriceLocks(ctx)
	if err != nil {
		return err
	}
	if len(locks) <= 0 {
		return nil
	}

	peers, err := s.nodeRepo.GetActiveServerNodes(ctx, domain.TierThree)
	if err != nil {
		return err
	}

	for _, lock := range locks {
		lock := lock
		g, gctx := errgroup.WithContext(ctx)
		for _, peer := range peers {
			peer := peer
			g.Go(func() error {
				if err := s.peerClient.UpdatePriceLock(gctx, peer, lock); err != nil {
					log.WithError(err).Debugf(
						"pricelock: relay of %s to %s", lock.Id, peer.ProfileName,
					)
				}
				return nil
			})
		}
		g.Wait()

		if err := s.repo.UpdatePriceLock(ctx, lock.Id,
			func(l *domain.PriceLock) (*domain.PriceLock, error) {
				l.MarkRelayed()
				return l, nil
			},
		); err != nil {
			log.WithError(err).Warnf("pricelock: marking %s relayed", lock.Id)
		}
	}
	return nil
}

// SampleNetworkPrices pulls price samples from every active tier-3 peer into
// the network windows. Per-peer failures are skipped silently.
func (s *PriceLockService) SampleNetworkPrices(ctx context.Context) error {
	peers, err := s.nodeRepo.GetActiveServerNodes(ctx, domain.TierThree)
	if err != nil {
		return err
	}

	for _, peer := range peers {
		samples, err := s.peerClient.GetPrices(ctx, peer)
		if err != nil {
			continue
		}
		for _, sample := range samples {
			if sample.Price.IsPositive() {
				s.aggregator.AddNetworkSample(sample.Currency, sample.Price)
			}
		}
	}
	return nil
}

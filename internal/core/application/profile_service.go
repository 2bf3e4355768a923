package application

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/x42protocol/xserverd/internal/core/domain"
	"github.com/x42protocol/xserverd/internal/core/ports"
)

// ProfileService owns the profile reservation and registration state machine:
// reservation creation backed by a price lock, payment-triggered promotion to
// a permanent profile, expiration sweeping and relay/sync bookkeeping.
type ProfileService struct {
	repo       domain.ProfileRepository
	nodeRepo   domain.ServerNodeRepository
	priceLocks *PriceLockService
	ledger     ports.LedgerClient
	oracle     ports.SignatureOracle
	peerClient ports.PeerClient

	feeAmount   decimal.Decimal
	feeCurrency string
	feeAddress  string

	watermarkMtx sync.Mutex
	watermark    int64
}

// ProfileServiceOpts defines the parameters needed for creating a profile
// service with NewProfileService.
type ProfileServiceOpts struct {
	Repo        domain.ProfileRepository
	NodeRepo    domain.ServerNodeRepository
	PriceLocks  *PriceLockService
	Ledger      ports.LedgerClient
	Oracle      ports.SignatureOracle
	PeerClient  ports.PeerClient
	FeeAmount   decimal.Decimal
	FeeCurrency string
	FeeAddress  string
}

// NewProfileService returns the profile registry service.
func NewProfileService(opts ProfileServiceOpts) *ProfileService {
	return &ProfileService{
		repo:        opts.Repo,
		nodeRepo:    opts.NodeRepo,
		priceLocks:  opts.PriceLocks,
		ledger:      opts.Ledger,
		oracle:      opts.Oracle,
		peerClient:  opts.PeerClient,
		feeAmount:   opts.FeeAmount,
		feeCurrency: opts.FeeCurrency,
		feeAddress:  opts.FeeAddress,
	}
}

// Reserve creates a reservation for a unique name bound to a key address,
// backed by a freshly quoted registration fee lock.
func (s *ProfileService) Reserve(
	ctx context.Context, req ReserveProfileRequest,
) (*ReserveProfileResult, error) {
	if taken, status := s.identityTaken(ctx, req.Name, req.KeyAddress); taken {
		return &ReserveProfileResult{Status: status}, nil
	}

	payload := req.Name + req.ReturnAddress
	ok, err := s.oracle.Verify(ctx, req.KeyAddress, req.Signature, payload)
	if err != nil || !ok {
		return nil, ErrProfileValidationFailed
	}

	lock, err := s.createFeeLock(ctx)
	if err != nil {
		return nil, err
	}

	reservation := domain.NewProfileReservation(
		req.Name, req.KeyAddress, req.ReturnAddress, req.Signature,
		lock.Id, lock.ExpireBlock,
	)
	if err := s.repo.AddReservation(ctx, reservation); err != nil {
		switch err {
		case domain.ErrProfileNameExists:
			return &ReserveProfileResult{Status: domain.ProfileStatusNameExists}, nil
		case domain.ErrProfileKeyAddressExists:
			return &ReserveProfileResult{Status: domain.ProfileStatusKeyAddressExists}, nil
		}
		return nil, err
	}

	return &ReserveProfileResult{
		Success:     true,
		Status:      domain.ProfileStatusReserved,
		PriceLock:   lock,
		ExpireBlock: reservation.ExpireBlock,
	}, nil
}

// createFeeLock quotes the fixed registration fee, locally when this node
// aggregates prices, otherwise through a tier-3 peer.
func (s *ProfileService) createFeeLock(ctx context.Context) (*domain.PriceLock, error) {
	lock, err := s.priceLocks.CreatePriceLock(ctx, CreatePriceLockRequest{
		RequestAmount:   s.feeAmount,
		RequestCurrency: s.feeCurrency,
	}, s.feeAddress)
	if err == nil {
		return lock, nil
	}
	if err != ErrInsufficientPriceData {
		return nil, err
	}

	peers, peersErr := s.nodeRepo.GetActiveServerNodes(ctx, domain.TierThree)
	if peersErr != nil {
		return nil, err
	}
	for _, peer := range peers {
		remote, remoteErr := s.peerClient.CreatePriceLock(ctx, peer, ports.CreateLockRequest{
			RequestAmount:   s.feeAmount,
			RequestCurrency: s.feeCurrency,
		})
		if remoteErr != nil {
			continue
		}
		return remote, nil
	}
	return nil, err
}

func (s *ProfileService) identityTaken(
	ctx context.Context, name, keyAddress string,
) (bool, domain.ProfileStatus) {
	if _, err := s.repo.GetProfileByName(ctx, name); err == nil {
		return true, domain.ProfileStatusNameExists
	}
	if _, err := s.repo.GetReservationByName(ctx, name); err == nil {
		return true, domain.ProfileStatusNameExists
	}
	if _, err := s.repo.GetProfileByKeyAddress(ctx, keyAddress); err == nil {
		return true, domain.ProfileStatusKeyAddressExists
	}
	if _, err := s.repo.GetReservationByKeyAddress(ctx, keyAddress); err == nil {
		return true, domain.ProfileStatusKeyAddressExists
	}
	return false, domain.ProfileStatusReserved
}

// ReceiveReservation inserts a reservation relayed by a peer. The quote was
// already produced elsewhere so no local fee lock is created; the signature
// is re-validated before insertion and duplicates are idempotent. A relay
// wrapping an already settled profile is promoted on the spot when its
// backing lock resolves as confirmed.
func (s *ProfileService) ReceiveReservation(
	ctx context.Context, reservation *domain.ProfileReservation,
) error {
	ok, err := s.oracle.Verify(
		ctx, reservation.KeyAddress, reservation.Signature,
		reservation.SignaturePayload(),
	)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProfileValidationFailed
	}

	if reservation.Status == domain.ProfileStatusCreated && reservation.BlockConfirmed > 0 {
		if lock, err := s.resolveLock(ctx, reservation.PriceLockId); err == nil && lock.IsConfirmed() {
			profile := &domain.Profile{
				Id:             reservation.Id,
				Name:           reservation.Name,
				KeyAddress:     reservation.KeyAddress,
				ReturnAddress:  reservation.ReturnAddress,
				Signature:      reservation.Signature,
				Status:         domain.ProfileStatusCreated,
				PriceLockId:    reservation.PriceLockId,
				BlockConfirmed: reservation.BlockConfirmed,
				Relayed:        true,
			}
			if err := s.repo.AddProfile(ctx, profile); err != nil {
				if err == domain.ErrProfileNameExists || err == domain.ErrProfileKeyAddressExists {
					return nil
				}
				return err
			}
			s.advanceWatermark(profile.BlockConfirmed)
			return nil
		}
		// Lock not resolvable yet. Keep the relay as a pending reservation
		// and let the sweep promote once the lock confirms locally.
	}

	if err := s.repo.AddReservation(ctx, reservation); err != nil {
		if err == domain.ErrProfileNameExists || err == domain.ErrProfileKeyAddressExists {
			return nil
		}
		return err
	}
	return nil
}

// resolveLock finds the backing price lock, locally first and then through
// tier-3 peers.
func (s *ProfileService) resolveLock(
	ctx context.Context, priceLockId string,
) (*domain.PriceLock, error) {
	if lock, err := s.priceLocks.GetPriceLock(ctx, priceLockId); err == nil {
		return lock, nil
	}

	peers, err := s.nodeRepo.GetActiveServerNodes(ctx, domain.TierThree)
	if err != nil {
		return nil, err
	}
	for _, peer := range peers {
		lock, err := s.peerClient.GetPriceLock(ctx, peer, priceLockId)
		if err != nil {
			continue
		}
		return lock, nil
	}
	return nil, domain.ErrPriceLockNotFound
}

// SweepReservations runs the confirmation and expiration passes over all
// pending reservations. A reservation whose backing lock confirmed is
// promoted to a Profile at the payment transaction's block height; an expired
// reservation whose lock never progressed, or which a profile already
// satisfies, is deleted.
func (s *ProfileService) SweepReservations(ctx context.Context) error {
	reservations, err := s.repo.GetAllReservations(ctx)
	if err != nil {
		return err
	}
	if len(reservations) <= 0 {
		return nil
	}

	info, err := s.ledger.GetBlockchainInfo(ctx)
	if err != nil {
		return err
	}

	for _, reservation := range reservations {
		lock, lockErr := s.resolveLock(ctx, reservation.PriceLockId)

		if lockErr == nil && lock.IsConfirmed() {
			if err := s.promote(ctx, reservation, lock); err != nil {
				log.WithError(err).Warnf("profile: promoting %s", reservation.Name)
			}
			continue
		}

		if !reservation.IsExpired(info.Blocks) {
			continue
		}
		lockNeverPaid := lockErr != nil || lock.IsNew() ||
			lock.Status == domain.PriceLockStatusRejected
		if lockNeverPaid || s.profileExists(ctx, reservation) {
			if err := s.repo.DeleteReservation(ctx, reservation.Id); err != nil {
				log.WithError(err).Warnf("profile: expiring %s", reservation.Name)
				continue
			}
			log.Debugf("profile: reservation %s expired", reservation.Name)
		}
	}
	return nil
}

func (s *ProfileService) profileExists(
	ctx context.Context, reservation *domain.ProfileReservation,
) bool {
	if _, err := s.repo.GetProfileByName(ctx, reservation.Name); err == nil {
		return true
	}
	if _, err := s.repo.GetProfileByKeyAddress(ctx, reservation.KeyAddress); err == nil {
		return true
	}
	return false
}

func (s *ProfileService) promote(
	ctx context.Context, reservation *domain.ProfileReservation, lock *domain.PriceLock,
) error {
	if s.profileExists(ctx, reservation) {
		return s.repo.DeleteReservation(ctx, reservation.Id)
	}

	tx, err := s.ledger.GetRawTransaction(ctx, lock.TransactionId)
	if err != nil {
		return err
	}

	profile, err := reservation.Promote(tx.BlockHeight)
	if err != nil {
		return err
	}
	if err := s.repo.AddProfile(ctx, profile); err != nil {
		if err != domain.ErrProfileNameExists && err != domain.ErrProfileKeyAddressExists {
			return err
		}
	}
	s.advanceWatermark(profile.BlockConfirmed)

	log.Infof("profile: %s created at height %d", profile.Name, profile.BlockConfirmed)
	return s.repo.DeleteReservation(ctx, reservation.Id)
}

func (s *ProfileService) advanceWatermark(height int64) {
	s.watermarkMtx.Lock()
	defer s.watermarkMtx.Unlock()
	if height > s.watermark {
		s.watermark = height
	}
}

// Watermark returns the highest profile block height seen locally.
func (s *ProfileService) Watermark() int64 {
	s.watermarkMtx.Lock()
	defer s.watermarkMtx.Unlock()
	return s.watermark
}

// RelayProfiles pushes unrelayed reservations, and unrelayed profiles
// re-wrapped as reservation-shaped relay messages carrying their paid state,
// to all active tier-2 peers. Entries are marked relayed after the attempt.
func (s *ProfileService) RelayProfiles(ctx context.Context) error {
	peers, err := s.nodeRepo.GetActiveServerNodes(ctx, domain.TierTwo)
	if err != nil {
		return err
	}

	reservations, err := s.repo.GetUnrelayedReservations(ctx)
	if err != nil {
		return err
	}
	for _, reservation := range reservations {
		for _, peer := range peers {
			if err := s.peerClient.ReceiveProfileReservation(ctx, peer, reservation); err != nil {
				log.WithError(err).Debugf(
					"profile: relaying reservation %s to %s", reservation.Name, peer.ProfileName,
				)
			}
		}
		if err := s.repo.UpdateReservation(ctx, reservation.Id,
			func(r *domain.ProfileReservation) (*domain.ProfileReservation, error) {
				r.MarkRelayed()
				return r, nil
			},
		); err != nil {
			log.WithError(err).Warnf("profile: marking reservation %s relayed", reservation.Name)
		}
	}

	profiles, err := s.repo.GetUnrelayedProfiles(ctx)
	if err != nil {
		return err
	}
	for _, profile := range profiles {
		relay := &domain.ProfileReservation{
			Id:             profile.Id,
			Name:           profile.Name,
			KeyAddress:     profile.KeyAddress,
			ReturnAddress:  profile.ReturnAddress,
			Signature:      profile.Signature,
			Status:         domain.ProfileStatusCreated,
			PriceLockId:    profile.PriceLockId,
			BlockConfirmed: profile.BlockConfirmed,
			Relayed:        true,
		}
		for _, peer := range peers {
			if err := s.peerClient.ReceiveProfileReservation(ctx, peer, relay); err != nil {
				log.WithError(err).Debugf(
					"profile: relaying profile %s to %s", profile.Name, peer.ProfileName,
				)
			}
		}
		if err := s.repo.UpdateProfile(ctx, profile.Id,
			func(p *domain.Profile) (*domain.Profile, error) {
				p.MarkRelayed()
				return p, nil
			},
		); err != nil {
			log.WithError(err).Warnf("profile: marking %s relayed", profile.Name)
		}
	}
	return nil
}

// Sync pulls confirmed profiles past the local watermark from every active
// tier-2 peer, page by page. A remote profile is accepted only if its
// signature verifies and its backing lock resolves as Confirmed; anything
// else is dropped silently, not retried indefinitely.
func (s *ProfileService) Sync(ctx context.Context) error {
	peers, err := s.nodeRepo.GetActiveServerNodes(ctx, domain.TierTwo)
	if err != nil {
		return err
	}

	for _, peer := range peers {
		if err := s.syncPeer(ctx, peer); err != nil {
			log.WithError(err).Warnf("profile: syncing from %s", peer.ProfileName)
		}
	}
	return nil
}

func (s *ProfileService) syncPeer(ctx context.Context, peer *domain.ServerNode) error {
	fromBlock := s.Watermark()

	for {
		page, err := s.peerClient.GetNextProfiles(ctx, peer, fromBlock)
		if err != nil {
			return err
		}
		if len(page) <= 0 {
			return nil
		}

		for _, remote := range page {
			if remote.BlockConfirmed > fromBlock {
				fromBlock = remote.BlockConfirmed
			}
			if _, err := s.repo.GetProfileByName(ctx, remote.Name); err == nil {
				continue
			}

			ok, err := s.oracle.Verify(
				ctx, remote.KeyAddress, remote.Signature, remote.SignaturePayload(),
			)
			if err != nil || !ok {
				log.Debugf("profile: dropping synced %s, bad signature", remote.Name)
				continue
			}

			lock, err := s.resolveLock(ctx, remote.PriceLockId)
			if err != nil || !lock.IsConfirmed() {
				log.Debugf("profile: dropping synced %s, lock not confirmed", remote.Name)
				continue
			}

			accepted := *remote
			accepted.Relayed = true
			if err := s.repo.AddProfile(ctx, &accepted); err != nil &&
				err != domain.ErrProfileNameExists && err != domain.ErrProfileKeyAddressExists {
				return err
			}
			s.advanceWatermark(accepted.BlockConfirmed)
		}
	}
}

// NextProfiles serves the paginated confirmed-profiles pull of the sync
// protocol.
func (s *ProfileService) NextProfiles(
	ctx context.Context, fromBlock int64,
) ([]*domain.Profile, error) {
	return s.repo.GetProfilesFromBlock(ctx, fromBlock, reconcilePageSize)
}

// GetProfile returns the confirmed profile for the given name or key
// address, falling back to the pending reservation so callers can observe
// pending versus final state.
func (s *ProfileService) GetProfile(
	ctx context.Context, name, keyAddress string,
) (*ProfileInfo, error) {
	var profile *domain.Profile
	var err error
	if len(name) > 0 {
		profile, err = s.repo.GetProfileByName(ctx, name)
	} else {
		profile, err = s.repo.GetProfileByKeyAddress(ctx, keyAddress)
	}
	if err == nil {
		return &ProfileInfo{
			Name:           profile.Name,
			KeyAddress:     profile.KeyAddress,
			ReturnAddress:  profile.ReturnAddress,
			Signature:      profile.Signature,
			Status:         profile.Status,
			PriceLockId:    profile.PriceLockId,
			BlockConfirmed: profile.BlockConfirmed,
		}, nil
	}

	var reservation *domain.ProfileReservation
	if len(name) > 0 {
		reservation, err = s.repo.GetReservationByName(ctx, name)
	} else {
		reservation, err = s.repo.GetReservationByKeyAddress(ctx, keyAddress)
	}
	if err != nil {
		return nil, ErrProfileNotFound
	}
	return &ProfileInfo{
		Name:          reservation.Name,
		KeyAddress:    reservation.KeyAddress,
		ReturnAddress: reservation.ReturnAddress,
		Signature:     reservation.Signature,
		Status:        reservation.Status,
		PriceLockId:   reservation.PriceLockId,
		Pending:       true,
	}, nil
}

package application

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/x42protocol/xserverd/internal/core/domain"
	"github.com/x42protocol/xserverd/internal/core/ports"
)

const readinessPollInterval = 5 * time.Second

// Task cadences per protocol. Reconciliation additionally runs once at
// startup as part of the readiness sequence.
const (
	healthCheckInterval     = 180 * time.Second
	peerRelayInterval       = 10 * time.Second
	reconcileInterval       = 86400 * time.Second
	priceLockRelayInterval  = 10 * time.Second
	ownPriceInterval        = 600 * time.Second
	networkPriceInterval    = 1800 * time.Second
	maturityCheckInterval   = 60 * time.Second
	profileSweepInterval    = 60 * time.Second
	profileRelayInterval    = 2 * time.Second
	profileSyncInterval     = 60 * time.Second
)

// NetworkService is the façade wiring membership, price locks and profiles
// together. It owns this node's attestation, the collateral-gated tier of the
// local node and the startup readiness gate every periodic task polls.
type NetworkService struct {
	membership *MembershipService
	priceLocks *PriceLockService
	profiles   *ProfileService
	ledger     ports.LedgerClient
	nodeRepo   domain.ServerNodeRepository

	self  *domain.ServerNode
	seeds []*domain.ServerNode

	mtx      sync.RWMutex
	ready    bool
	selfTier domain.Tier
}

// NetworkServiceOpts defines the parameters needed for creating a network
// service with NewNetworkService.
type NetworkServiceOpts struct {
	Membership *MembershipService
	PriceLocks *PriceLockService
	Profiles   *ProfileService
	Ledger     ports.LedgerClient
	NodeRepo   domain.ServerNodeRepository
	Self       *domain.ServerNode
	Seeds      []*domain.ServerNode
}

// NewNetworkService returns the network coordinator façade.
func NewNetworkService(opts NetworkServiceOpts) *NetworkService {
	return &NetworkService{
		membership: opts.Membership,
		priceLocks: opts.PriceLocks,
		profiles:   opts.Profiles,
		ledger:     opts.Ledger,
		nodeRepo:   opts.NodeRepo,
		self:       opts.Self,
		seeds:      opts.Seeds,
		selfTier:   opts.Self.Tier,
	}
}

// Membership ...
func (s *NetworkService) Membership() *MembershipService { return s.membership }

// PriceLocks ...
func (s *NetworkService) PriceLocks() *PriceLockService { return s.priceLocks }

// Profiles ...
func (s *NetworkService) Profiles() *ProfileService { return s.profiles }

// Self returns this node's signed attestation.
func (s *NetworkService) Self() *domain.ServerNode { return s.self }

// Ready reports whether the startup sequencing has completed.
func (s *NetworkService) Ready() bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.ready
}

// SelfTier returns the tier the local node's collateral currently justifies.
func (s *NetworkService) SelfTier() domain.Tier {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.selfTier
}

// RefreshSelfTier recomputes the local node's collateral-backed tier.
func (s *NetworkService) RefreshSelfTier(ctx context.Context) error {
	collateral, err := s.membership.Collateral(ctx, s.self)
	if err != nil {
		return err
	}
	tier := s.membership.TierFor(collateral)

	s.mtx.Lock()
	if tier != s.selfTier {
		log.Infof("network: local tier is now %s", tier)
	}
	s.selfTier = tier
	s.mtx.Unlock()

	if tier < s.self.Tier {
		return ErrTierNotJustified
	}
	return nil
}

// WaitUntilReady blocks until the node can do useful work: ledger and store
// reachable, chain synced, address indexer caught up, at least one tier-2 and
// one tier-3 peer known, one profile sync and one reconciliation done. Each
// step polls every 5 seconds with no backoff cap: the node is useless until
// caught up, so it blocks rather than degrading.
func (s *NetworkService) WaitUntilReady(ctx context.Context) error {
	steps := []struct {
		name string
		done func(ctx context.Context) bool
	}{
		{"collaborators reachable", s.collaboratorsReachable},
		{"chain synced", s.chainSynced},
		{"address indexer caught up", s.indexerCaughtUp},
		{"peers known", s.peersKnown},
	}

	for _, step := range steps {
		for !step.done(ctx) {
			log.Infof("network: waiting, %s", step.name)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(readinessPollInterval):
			}
		}
	}

	if err := s.RefreshSelfTier(ctx); err != nil && err != ErrTierNotJustified {
		log.WithError(err).Warn("network: initial tier refresh")
	}
	if err := s.profiles.Sync(ctx); err != nil {
		log.WithError(err).Warn("network: initial profile sync")
	}
	if err := s.membership.Reconcile(ctx, s.self); err != nil {
		log.WithError(err).Warn("network: initial reconciliation")
	}
	if err := s.membership.Register(ctx, s.self); err != nil &&
		err != domain.ErrServerNodeAlreadyExists {
		log.WithError(err).Warn("network: self registration")
	}

	s.mtx.Lock()
	s.ready = true
	s.mtx.Unlock()
	log.Info("network: ready")
	return nil
}

func (s *NetworkService) collaboratorsReachable(ctx context.Context) bool {
	if _, err := s.ledger.GetBlockchainInfo(ctx); err != nil {
		return false
	}
	if _, err := s.nodeRepo.GetAllServerNodes(ctx); err != nil {
		return false
	}
	return true
}

func (s *NetworkService) chainSynced(ctx context.Context) bool {
	info, err := s.ledger.GetBlockchainInfo(ctx)
	if err != nil {
		return false
	}
	return !info.InitialBlockDownload
}

func (s *NetworkService) indexerCaughtUp(ctx context.Context) bool {
	info, err := s.ledger.GetBlockchainInfo(ctx)
	if err != nil {
		return false
	}
	tip, err := s.ledger.GetAddressIndexerTip(ctx)
	if err != nil {
		return false
	}
	return tip >= info.Blocks
}

// peersKnown requires at least one tier-2 and one tier-3 peer, bootstrapping
// from the configured seeds while the directory is empty.
func (s *NetworkService) peersKnown(ctx context.Context) bool {
	tierTwo, err := s.nodeRepo.GetActiveServerNodes(ctx, domain.TierTwo)
	if err != nil {
		return false
	}
	tierThree, err := s.nodeRepo.GetActiveServerNodes(ctx, domain.TierThree)
	if err != nil {
		return false
	}
	if len(tierTwo) > 0 && len(tierThree) > 0 {
		return true
	}

	for _, seed := range s.seeds {
		if err := s.membership.Bootstrap(ctx, seed); err != nil {
			log.WithError(err).Debugf("network: bootstrap from %s", seed.NetworkAddress)
		}
	}
	return false
}

// RegisterTasks wires the full task table into the scheduler.
func (s *NetworkService) RegisterTasks(scheduler *Scheduler) {
	ready := func() bool { return s.Ready() }
	tierTwoReady := func() bool { return s.Ready() && s.SelfTier() >= domain.TierTwo }
	tierThree := func() bool { return s.SelfTier() >= domain.TierThree }
	tierThreeReady := func() bool { return s.Ready() && s.SelfTier() >= domain.TierThree }

	scheduler.AddTask(Task{
		Name:         "health_check",
		Interval:     healthCheckInterval,
		Precondition: ready,
		Run: func(ctx context.Context) error {
			if err := s.RefreshSelfTier(ctx); err != nil && err != ErrTierNotJustified {
				log.WithError(err).Warn("network: tier refresh")
			}
			return s.membership.HealthSweep(ctx)
		},
	})
	scheduler.AddTask(Task{
		Name:     "peer_relay",
		Interval: peerRelayInterval,
		Run:      s.membership.RelayNewNodes,
	})
	scheduler.AddTask(Task{
		Name:         "reconciliation",
		Interval:     reconcileInterval,
		Precondition: ready,
		Run: func(ctx context.Context) error {
			return s.membership.Reconcile(ctx, s.self)
		},
	})
	scheduler.AddTask(Task{
		Name:     "pricelock_relay",
		Interval: priceLockRelayInterval,
		Run:      s.priceLocks.RelayLocks,
	})
	scheduler.AddTask(Task{
		Name:         "own_price_sampling",
		Interval:     ownPriceInterval,
		Precondition: tierThree,
		Run:          s.priceLocks.SampleOwnPrices,
		RunAtStart:   true,
	})
	scheduler.AddTask(Task{
		Name:         "network_price_sampling",
		Interval:     networkPriceInterval,
		Precondition: tierThree,
		Run:          s.priceLocks.SampleNetworkPrices,
	})
	scheduler.AddTask(Task{
		Name:         "pricelock_maturity",
		Interval:     maturityCheckInterval,
		Precondition: tierThreeReady,
		Run:          s.priceLocks.CheckMaturity,
	})
	scheduler.AddTask(Task{
		Name:         "profile_sweep",
		Interval:     profileSweepInterval,
		Precondition: tierTwoReady,
		Run:          s.profiles.SweepReservations,
		FatalOnError: true,
	})
	scheduler.AddTask(Task{
		Name:         "profile_relay",
		Interval:     profileRelayInterval,
		Precondition: tierTwoReady,
		Run:          s.profiles.RelayProfiles,
		FatalOnError: true,
	})
	scheduler.AddTask(Task{
		Name:         "profile_sync",
		Interval:     profileSyncInterval,
		Precondition: ready,
		Run:          s.profiles.Sync,
		FatalOnError: true,
	})
}

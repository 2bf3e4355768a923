package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/x42protocol/xserverd/internal/core/domain"
	"github.com/x42protocol/xserverd/internal/core/ports"
)

const reconcilePageSize = 100

// TierRequirements maps each tier to its minimum collateral.
type TierRequirements map[domain.Tier]decimal.Decimal

// MembershipService owns the xServer peer table: tier classification,
// liveness and the pull-based gossip reconciliation against peers.
type MembershipService struct {
	repo       domain.ServerNodeRepository
	ledger     ports.LedgerClient
	oracle     ports.SignatureOracle
	peerClient ports.PeerClient

	tierRequirements TierRequirements
	downtimeGrace    time.Duration
	blockGrace       int64
	heightGrace      int64
}

// MembershipServiceOpts defines the parameters needed for creating a
// membership service with NewMembershipService.
type MembershipServiceOpts struct {
	Repo             domain.ServerNodeRepository
	Ledger           ports.LedgerClient
	Oracle           ports.SignatureOracle
	PeerClient       ports.PeerClient
	TierRequirements TierRequirements
	DowntimeGrace    time.Duration
	BlockGrace       int64
	HeightGrace      int64
}

// NewMembershipService returns the peer directory service.
func NewMembershipService(opts MembershipServiceOpts) *MembershipService {
	return &MembershipService{
		repo:             opts.Repo,
		ledger:           opts.Ledger,
		oracle:           opts.Oracle,
		peerClient:       opts.PeerClient,
		tierRequirements: opts.TierRequirements,
		downtimeGrace:    opts.DowntimeGrace,
		blockGrace:       opts.BlockGrace,
		heightGrace:      opts.HeightGrace,
	}
}

// Register validates and inserts a node attestation, either self-submitted or
// pushed by a peer. Duplicate registrations are idempotent.
func (s *MembershipService) Register(ctx context.Context, node *domain.ServerNode) error {
	if !node.Tier.IsValid() {
		return domain.ErrInvalidTier
	}
	if !domain.IsRoutableAddress(node.NetworkAddress) {
		return domain.ErrServerNodeInvalidAddress
	}

	ok, err := s.oracle.Verify(ctx, node.KeyAddress, node.Signature, node.SignaturePayload())
	if err != nil {
		return err
	}
	if !ok {
		return ErrProfileValidationFailed
	}

	// A verified attestation counts as a sighting. The health sweep demotes
	// nodes that stop responding.
	node.MarkSeen(time.Now())
	if err := s.repo.AddServerNode(ctx, node); err != nil {
		if err == domain.ErrServerNodeAlreadyExists {
			return nil
		}
		return err
	}
	return nil
}

// TierFor returns the highest tier the given collateral justifies.
func (s *MembershipService) TierFor(collateral decimal.Decimal) domain.Tier {
	tier := domain.TierUndefined
	for _, t := range []domain.Tier{domain.TierSeed, domain.TierTwo, domain.TierThree} {
		min, ok := s.tierRequirements[t]
		if !ok {
			continue
		}
		if collateral.GreaterThanOrEqual(min) {
			tier = t
		}
	}
	return tier
}

// Collateral reads the confirmed balance at the node's key address over the
// block grace window.
func (s *MembershipService) Collateral(ctx context.Context, node *domain.ServerNode) (decimal.Decimal, error) {
	return s.ledger.GetAddressBalance(ctx, node.KeyAddress, s.blockGrace)
}

// CheckActive performs a liveness and eligibility re-check of a peer: the
// node responds to ping, its chain height is within grace of the local height
// and its collateral still supports the declared tier. The stored active flag
// and last-seen are updated accordingly.
func (s *MembershipService) CheckActive(ctx context.Context, node *domain.ServerNode) (bool, error) {
	alive := func() bool {
		peerHeight, err := s.peerClient.Ping(ctx, node)
		if err != nil {
			return false
		}

		info, err := s.ledger.GetBlockchainInfo(ctx)
		if err != nil {
			return false
		}
		diff := info.Blocks - peerHeight
		if diff < 0 {
			diff = -diff
		}
		if diff > s.heightGrace {
			return false
		}

		collateral, err := s.Collateral(ctx, node)
		if err != nil {
			return false
		}
		return s.TierFor(collateral) >= node.Tier
	}()

	err := s.repo.UpdateServerNode(ctx, node.Id,
		func(n *domain.ServerNode) (*domain.ServerNode, error) {
			if alive {
				n.MarkSeen(time.Now())
			} else {
				n.Deactivate()
			}
			return n, nil
		},
	)
	return alive, err
}

// HealthSweep re-checks every known node and then evicts inactive nodes past
// the downtime grace period, and nodes whose declared tier the collateral no
// longer justifies. Per-node failures are logged and skipped.
func (s *MembershipService) HealthSweep(ctx context.Context) error {
	nodes, err := s.repo.GetAllServerNodes(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, node := range nodes {
		active, err := s.CheckActive(ctx, node)
		if err != nil {
			log.WithError(err).Warnf("membership: health check for %s", node.ProfileName)
			continue
		}
		if active {
			continue
		}

		evict := node.IsStale(s.downtimeGrace, now)
		if !evict {
			collateral, err := s.Collateral(ctx, node)
			if err == nil && s.TierFor(collateral) < node.Tier {
				evict = true
			}
		}
		if evict {
			if err := s.repo.DeleteServerNode(ctx, node.Id); err != nil {
				log.WithError(err).Warnf("membership: evicting %s", node.ProfileName)
				continue
			}
			log.Infof("membership: evicted %s", node.ProfileName)
		}
	}
	return nil
}

// Reconcile pulls every active peer's member list, page by page, and inserts
// every member not already known, matched by signature. Remote attestations
// are trusted as-is; the eligibility sweep corrects forged tiers later. If
// this node's own attestation is missing from a peer's list, it re-advertises
// itself to that peer. A failure on one peer never aborts reconciliation with
// the others.
func (s *MembershipService) Reconcile(ctx context.Context, self *domain.ServerNode) error {
	peers, err := s.repo.GetActiveServerNodes(ctx, domain.TierSeed)
	if err != nil {
		return err
	}

	for _, peer := range peers {
		if peer.Signature == self.Signature {
			continue
		}
		if err := s.reconcilePeer(ctx, peer, self); err != nil {
			log.WithError(err).Warnf("membership: reconciling with %s", peer.ProfileName)
		}
	}
	return nil
}

func (s *MembershipService) reconcilePeer(
	ctx context.Context, peer, self *domain.ServerNode,
) error {
	selfSeen := false
	fromId := uint64(0)

	for {
		page, err := s.peerClient.GetActiveServerNodes(ctx, peer, fromId)
		if err != nil {
			return err
		}
		if len(page) <= 0 {
			break
		}

		for _, member := range page {
			if member.Id > fromId {
				fromId = member.Id
			}
			if member.Signature == self.Signature {
				selfSeen = true
				continue
			}

			if _, err := s.repo.GetServerNodeBySignature(ctx, member.Signature); err == nil {
				continue
			}

			remote := *member
			remote.Id = 0
			remote.Relayed = true
			remote.MarkSeen(time.Now())
			if err := s.repo.AddServerNode(ctx, &remote); err != nil &&
				err != domain.ErrServerNodeAlreadyExists {
				log.WithError(err).Warnf("membership: inserting %s", member.ProfileName)
			}
		}
	}

	if !selfSeen {
		if err := s.peerClient.RegisterServer(ctx, peer, self); err != nil {
			log.WithError(err).Debugf("membership: self-advertising to %s", peer.ProfileName)
		}
	}
	return nil
}

// Bootstrap seeds the directory from a peer's known-member snapshot. Used
// when the local directory is empty and nothing can be reconciled yet.
func (s *MembershipService) Bootstrap(ctx context.Context, seed *domain.ServerNode) error {
	members, err := s.peerClient.GetServerNodeStats(ctx, seed)
	if err != nil {
		return err
	}

	for _, member := range members {
		remote := *member
		remote.Id = 0
		remote.Relayed = true
		remote.MarkSeen(time.Now())
		if err := s.repo.AddServerNode(ctx, &remote); err != nil &&
			err != domain.ErrServerNodeAlreadyExists {
			log.WithError(err).Warnf("membership: bootstrap insert of %s", member.ProfileName)
		}
	}
	return nil
}

// RelayNewNodes pushes every unrelayed node to all active peers and marks it
// relayed after the attempt. Delivery is best effort: a peer miss means that
// peer learns about the node on its own next reconciliation pass.
func (s *MembershipService) RelayNewNodes(ctx context.Context) error {
	nodes, err := s.repo.GetUnrelayedServerNodes(ctx)
	if err != nil {
		return err
	}
	if len(nodes) <= 0 {
		return nil
	}

	peers, err := s.repo.GetActiveServerNodes(ctx, domain.TierSeed)
	if err != nil {
		return err
	}

	for _, node := range nodes {
		for _, peer := range peers {
			if peer.Signature == node.Signature {
				continue
			}
			if err := s.peerClient.RegisterServer(ctx, peer, node); err != nil {
				log.WithError(err).Debugf(
					"membership: relaying %s to %s", node.ProfileName, peer.ProfileName,
				)
			}
		}

		if err := s.repo.UpdateServerNode(ctx, node.Id,
			func(n *domain.ServerNode) (*domain.ServerNode, error) {
				n.MarkRelayed()
				return n, nil
			},
		); err != nil {
			log.WithError(err).Warnf("membership: marking %s relayed", node.ProfileName)
		}
	}
	return nil
}

// ActiveServerNodesSince serves the paginated active-members pull of the
// gossip protocol.
func (s *MembershipService) ActiveServerNodesSince(
	ctx context.Context, fromId uint64,
) ([]*domain.ServerNode, error) {
	return s.repo.GetActiveServerNodesSince(ctx, fromId, reconcilePageSize)
}

// AllServerNodes returns the known-member snapshot served by the stats
// endpoint.
func (s *MembershipService) AllServerNodes(ctx context.Context) ([]*domain.ServerNode, error) {
	return s.repo.GetAllServerNodes(ctx)
}

package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/x42protocol/xserverd/internal/core/application"
	"github.com/x42protocol/xserverd/internal/core/domain"
	"github.com/x42protocol/xserverd/internal/core/ports"
	"github.com/x42protocol/xserverd/internal/infrastructure/storage/db/inmemory"
)

type membershipFixture struct {
	service    *application.MembershipService
	repo       *inmemory.ServerNodeRepositoryImpl
	ledger     *mockLedger
	oracle     *mockOracle
	peerClient *mockPeerClient
}

func newMembershipFixture() *membershipFixture {
	repo := inmemory.NewServerNodeRepositoryImpl()
	ledger := &mockLedger{}
	oracle := &mockOracle{}
	peerClient := &mockPeerClient{}

	service := application.NewMembershipService(application.MembershipServiceOpts{
		Repo:       repo,
		Ledger:     ledger,
		Oracle:     oracle,
		PeerClient: peerClient,
		TierRequirements: application.TierRequirements{
			domain.TierSeed:  decimal.Zero,
			domain.TierTwo:   decimal.NewFromInt(20_000),
			domain.TierThree: decimal.NewFromInt(100_000),
		},
		DowntimeGrace: 30 * time.Minute,
		BlockGrace:    6,
		HeightGrace:   6,
	})
	return &membershipFixture{
		service:    service,
		repo:       repo,
		ledger:     ledger,
		oracle:     oracle,
		peerClient: peerClient,
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("valid_attestation", func(t *testing.T) {
		f := newMembershipFixture()
		node := activeNode("alice", domain.TierTwo)
		f.oracle.On("Verify", ctx, node.KeyAddress, node.Signature, node.SignaturePayload()).
			Return(true, nil)

		require.NoError(t, f.service.Register(ctx, node))

		stored, err := f.repo.GetServerNodeBySignature(ctx, node.Signature)
		require.NoError(t, err)
		require.Equal(t, "alice", stored.ProfileName)
	})

	t.Run("duplicate_registration_is_idempotent", func(t *testing.T) {
		f := newMembershipFixture()
		node := activeNode("alice", domain.TierTwo)
		f.oracle.On("Verify", ctx, mock.Anything, mock.Anything, mock.Anything).
			Return(true, nil)

		require.NoError(t, f.service.Register(ctx, node))
		require.NoError(t, f.service.Register(ctx, activeNode("alice", domain.TierTwo)))

		nodes, err := f.repo.GetAllServerNodes(ctx)
		require.NoError(t, err)
		require.Len(t, nodes, 1)
	})

	t.Run("forged_signature", func(t *testing.T) {
		f := newMembershipFixture()
		node := activeNode("mallory", domain.TierTwo)
		f.oracle.On("Verify", ctx, mock.Anything, mock.Anything, mock.Anything).
			Return(false, nil)

		err := f.service.Register(ctx, node)
		require.EqualError(t, err, application.ErrProfileValidationFailed.Error())
	})

	t.Run("invalid_tier", func(t *testing.T) {
		f := newMembershipFixture()
		node := activeNode("alice", domain.TierTwo)
		node.Tier = domain.Tier(42)
		err := f.service.Register(ctx, node)
		require.EqualError(t, err, domain.ErrInvalidTier.Error())
	})

	t.Run("loopback_address", func(t *testing.T) {
		f := newMembershipFixture()
		node := activeNode("alice", domain.TierTwo)
		node.NetworkAddress = "127.0.0.1"
		err := f.service.Register(ctx, node)
		require.EqualError(t, err, domain.ErrServerNodeInvalidAddress.Error())
	})
}

func TestTierFor(t *testing.T) {
	f := newMembershipFixture()

	tests := []struct {
		collateral string
		expected   domain.Tier
	}{
		{"0", domain.TierSeed},
		{"19999", domain.TierSeed},
		{"20000", domain.TierTwo},
		{"99999.99999999", domain.TierTwo},
		{"100000", domain.TierThree},
		{"5000000", domain.TierThree},
	}
	for _, tt := range tests {
		got := f.service.TierFor(decimal.RequireFromString(tt.collateral))
		require.Equal(t, tt.expected, got, "collateral %s", tt.collateral)
	}
}

func TestCheckActive(t *testing.T) {
	ctx := context.Background()

	setup := func(f *membershipFixture) *domain.ServerNode {
		node := activeNode("alice", domain.TierTwo)
		require.NoError(t, f.repo.AddServerNode(ctx, node))
		return node
	}

	t.Run("healthy_peer_stays_active", func(t *testing.T) {
		f := newMembershipFixture()
		node := setup(f)
		f.peerClient.On("Ping", ctx, node).Return(int64(1000), nil)
		f.ledger.On("GetBlockchainInfo", ctx).
			Return(&ports.BlockchainInfo{Blocks: 1003}, nil)
		f.ledger.On("GetAddressBalance", ctx, node.KeyAddress, int64(6)).
			Return(decimal.NewFromInt(25_000), nil)

		active, err := f.service.CheckActive(ctx, node)
		require.NoError(t, err)
		require.True(t, active)
	})

	t.Run("unreachable_peer_is_deactivated", func(t *testing.T) {
		f := newMembershipFixture()
		node := setup(f)
		f.peerClient.On("Ping", ctx, node).
			Return(int64(0), context.DeadlineExceeded)

		active, err := f.service.CheckActive(ctx, node)
		require.NoError(t, err)
		require.False(t, active)

		stored, err := f.repo.GetServerNodeBySignature(ctx, node.Signature)
		require.NoError(t, err)
		require.False(t, stored.Active)
	})

	t.Run("peer_too_far_behind_the_chain", func(t *testing.T) {
		f := newMembershipFixture()
		node := setup(f)
		f.peerClient.On("Ping", ctx, node).Return(int64(900), nil)
		f.ledger.On("GetBlockchainInfo", ctx).
			Return(&ports.BlockchainInfo{Blocks: 1000}, nil)

		active, err := f.service.CheckActive(ctx, node)
		require.NoError(t, err)
		require.False(t, active)
	})

	t.Run("collateral_no_longer_supports_the_tier", func(t *testing.T) {
		f := newMembershipFixture()
		node := setup(f)
		f.peerClient.On("Ping", ctx, node).Return(int64(1000), nil)
		f.ledger.On("GetBlockchainInfo", ctx).
			Return(&ports.BlockchainInfo{Blocks: 1000}, nil)
		f.ledger.On("GetAddressBalance", ctx, node.KeyAddress, int64(6)).
			Return(decimal.NewFromInt(500), nil)

		active, err := f.service.CheckActive(ctx, node)
		require.NoError(t, err)
		require.False(t, active)
	})
}

func TestHealthSweepEviction(t *testing.T) {
	ctx := context.Background()

	t.Run("stale_inactive_node_is_evicted", func(t *testing.T) {
		f := newMembershipFixture()
		node := activeNode("alice", domain.TierTwo)
		node.LastSeen = time.Now().Add(-time.Hour).Unix()
		require.NoError(t, f.repo.AddServerNode(ctx, node))

		f.peerClient.On("Ping", ctx, mock.Anything).
			Return(int64(0), context.DeadlineExceeded)
		f.ledger.On("GetAddressBalance", ctx, mock.Anything, mock.Anything).
			Return(decimal.NewFromInt(25_000), nil)

		require.NoError(t, f.service.HealthSweep(ctx))

		nodes, err := f.repo.GetAllServerNodes(ctx)
		require.NoError(t, err)
		require.Empty(t, nodes)
	})

	t.Run("recently_seen_node_survives_a_missed_check", func(t *testing.T) {
		f := newMembershipFixture()
		node := activeNode("alice", domain.TierTwo)
		require.NoError(t, f.repo.AddServerNode(ctx, node))

		f.peerClient.On("Ping", ctx, mock.Anything).
			Return(int64(0), context.DeadlineExceeded)
		f.ledger.On("GetAddressBalance", ctx, mock.Anything, mock.Anything).
			Return(decimal.NewFromInt(25_000), nil)

		require.NoError(t, f.service.HealthSweep(ctx))

		nodes, err := f.repo.GetAllServerNodes(ctx)
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		require.False(t, nodes[0].Active)
	})

	t.Run("undercollateralized_node_is_evicted_immediately", func(t *testing.T) {
		f := newMembershipFixture()
		node := activeNode("alice", domain.TierThree)
		require.NoError(t, f.repo.AddServerNode(ctx, node))

		f.peerClient.On("Ping", ctx, mock.Anything).Return(int64(1000), nil)
		f.ledger.On("GetBlockchainInfo", ctx).
			Return(&ports.BlockchainInfo{Blocks: 1000}, nil)
		f.ledger.On("GetAddressBalance", ctx, mock.Anything, mock.Anything).
			Return(decimal.NewFromInt(500), nil)

		require.NoError(t, f.service.HealthSweep(ctx))

		nodes, err := f.repo.GetAllServerNodes(ctx)
		require.NoError(t, err)
		require.Empty(t, nodes)
	})
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown_members_are_inserted_once", func(t *testing.T) {
		f := newMembershipFixture()
		self := activeNode("self", domain.TierTwo)
		peer := activeNode("peer", domain.TierThree)
		require.NoError(t, f.repo.AddServerNode(ctx, peer))

		member := activeNode("carol", domain.TierTwo)
		member.Id = 7
		selfCopy := *self
		selfCopy.Id = 8

		f.peerClient.On("GetActiveServerNodes", ctx, mock.Anything, uint64(0)).
			Return([]*domain.ServerNode{member, &selfCopy}, nil)
		f.peerClient.On("GetActiveServerNodes", ctx, mock.Anything, uint64(8)).
			Return([]*domain.ServerNode{}, nil)

		require.NoError(t, f.service.Reconcile(ctx, self))
		// Second pass must not duplicate carol.
		require.NoError(t, f.service.Reconcile(ctx, self))

		nodes, err := f.repo.GetAllServerNodes(ctx)
		require.NoError(t, err)
		require.Len(t, nodes, 2) // peer + carol

		carol, err := f.repo.GetServerNodeBySignature(ctx, member.Signature)
		require.NoError(t, err)
		require.True(t, carol.Relayed)
		f.peerClient.AssertNotCalled(t, "RegisterServer", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("self_missing_from_peer_triggers_advertisement", func(t *testing.T) {
		f := newMembershipFixture()
		self := activeNode("self", domain.TierTwo)
		peer := activeNode("peer", domain.TierThree)
		require.NoError(t, f.repo.AddServerNode(ctx, peer))

		f.peerClient.On("GetActiveServerNodes", ctx, mock.Anything, uint64(0)).
			Return([]*domain.ServerNode{}, nil)
		f.peerClient.On("RegisterServer", ctx, mock.Anything, self).Return(nil)

		require.NoError(t, f.service.Reconcile(ctx, self))
		f.peerClient.AssertCalled(t, "RegisterServer", ctx, mock.Anything, self)
	})

	t.Run("failing_peer_does_not_abort_the_pass", func(t *testing.T) {
		f := newMembershipFixture()
		self := activeNode("self", domain.TierTwo)
		bad := activeNode("bad", domain.TierTwo)
		good := activeNode("good", domain.TierThree)
		require.NoError(t, f.repo.AddServerNode(ctx, bad))
		require.NoError(t, f.repo.AddServerNode(ctx, good))

		f.peerClient.On("GetActiveServerNodes", ctx, bad, uint64(0)).
			Return(nil, context.DeadlineExceeded).Once()
		f.peerClient.On("GetActiveServerNodes", ctx, mock.Anything, uint64(0)).
			Return([]*domain.ServerNode{}, nil)
		f.peerClient.On("RegisterServer", ctx, mock.Anything, self).Return(nil)

		require.NoError(t, f.service.Reconcile(ctx, self))
	})
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()

	f := newMembershipFixture()
	seed := activeNode("seed", domain.TierSeed)
	member := activeNode("carol", domain.TierTwo)
	member.Id = 12

	f.peerClient.On("GetServerNodeStats", ctx, seed).
		Return([]*domain.ServerNode{member}, nil)

	require.NoError(t, f.service.Bootstrap(ctx, seed))

	nodes, err := f.repo.GetAllServerNodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, "carol", nodes[0].ProfileName)
	require.NotEqual(t, uint64(12), nodes[0].Id) // ids are local
}

func TestRelayNewNodes(t *testing.T) {
	ctx := context.Background()

	f := newMembershipFixture()
	node := activeNode("alice", domain.TierTwo)
	peer := activeNode("bob", domain.TierThree)
	peer.Relayed = true
	require.NoError(t, f.repo.AddServerNode(ctx, node))
	require.NoError(t, f.repo.AddServerNode(ctx, peer))

	f.peerClient.On("RegisterServer", ctx, mock.Anything, mock.Anything).
		Return(context.DeadlineExceeded)

	require.NoError(t, f.service.RelayNewNodes(ctx))

	unrelayed, err := f.repo.GetUnrelayedServerNodes(ctx)
	require.NoError(t, err)
	require.Empty(t, unrelayed)
}

package application_test

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/x42protocol/xserverd/internal/core/domain"
	"github.com/x42protocol/xserverd/internal/core/ports"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) GetBlockchainInfo(ctx context.Context) (*ports.BlockchainInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.BlockchainInfo), args.Error(1)
}

func (m *mockLedger) GetAddressBalance(
	ctx context.Context, address string, minConf int64,
) (decimal.Decimal, error) {
	args := m.Called(ctx, address, minConf)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockLedger) GetRawTransaction(
	ctx context.Context, txId string,
) (*ports.RawTransaction, error) {
	args := m.Called(ctx, txId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.RawTransaction), args.Error(1)
}

func (m *mockLedger) DecodeRawTransaction(
	ctx context.Context, txHex string,
) (*ports.RawTransaction, error) {
	args := m.Called(ctx, txHex)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.RawTransaction), args.Error(1)
}

func (m *mockLedger) SendRawTransaction(ctx context.Context, txHex string) (string, error) {
	args := m.Called(ctx, txHex)
	return args.String(0), args.Error(1)
}

func (m *mockLedger) SignMessage(ctx context.Context, address, message string) (string, error) {
	args := m.Called(ctx, address, message)
	return args.String(0), args.Error(1)
}

func (m *mockLedger) VerifyMessage(
	ctx context.Context, address, signature, message string,
) (bool, error) {
	args := m.Called(ctx, address, signature, message)
	return args.Bool(0), args.Error(1)
}

func (m *mockLedger) GetAddressIndexerTip(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) Sign(ctx context.Context, message string) (string, error) {
	args := m.Called(ctx, message)
	return args.String(0), args.Error(1)
}

func (m *mockOracle) Verify(
	ctx context.Context, address, signature, message string,
) (bool, error) {
	args := m.Called(ctx, address, signature, message)
	return args.Bool(0), args.Error(1)
}

type mockPeerClient struct {
	mock.Mock
}

func (m *mockPeerClient) Ping(ctx context.Context, peer *domain.ServerNode) (int64, error) {
	args := m.Called(ctx, peer)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPeerClient) RegisterServer(ctx context.Context, peer, node *domain.ServerNode) error {
	args := m.Called(ctx, peer, node)
	return args.Error(0)
}

func (m *mockPeerClient) GetActiveServerNodes(
	ctx context.Context, peer *domain.ServerNode, fromId uint64,
) ([]*domain.ServerNode, error) {
	args := m.Called(ctx, peer, fromId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ServerNode), args.Error(1)
}

func (m *mockPeerClient) GetServerNodeStats(
	ctx context.Context, peer *domain.ServerNode,
) ([]*domain.ServerNode, error) {
	args := m.Called(ctx, peer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ServerNode), args.Error(1)
}

func (m *mockPeerClient) UpdatePriceLock(
	ctx context.Context, peer *domain.ServerNode, lock *domain.PriceLock,
) error {
	args := m.Called(ctx, peer, lock)
	return args.Error(0)
}

func (m *mockPeerClient) GetPriceLock(
	ctx context.Context, peer *domain.ServerNode, priceLockId string,
) (*domain.PriceLock, error) {
	args := m.Called(ctx, peer, priceLockId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PriceLock), args.Error(1)
}

func (m *mockPeerClient) CreatePriceLock(
	ctx context.Context, peer *domain.ServerNode, req ports.CreateLockRequest,
) (*domain.PriceLock, error) {
	args := m.Called(ctx, peer, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PriceLock), args.Error(1)
}

func (m *mockPeerClient) GetPrices(
	ctx context.Context, peer *domain.ServerNode,
) ([]ports.PriceSample, error) {
	args := m.Called(ctx, peer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.PriceSample), args.Error(1)
}

func (m *mockPeerClient) ReceiveProfileReservation(
	ctx context.Context, peer *domain.ServerNode, reservation *domain.ProfileReservation,
) error {
	args := m.Called(ctx, peer, reservation)
	return args.Error(0)
}

func (m *mockPeerClient) GetNextProfiles(
	ctx context.Context, peer *domain.ServerNode, fromBlock int64,
) ([]*domain.Profile, error) {
	args := m.Called(ctx, peer, fromBlock)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Profile), args.Error(1)
}

type mockPriceSource struct {
	mock.Mock
	name string
}

func (m *mockPriceSource) Name() string {
	return m.name
}

func (m *mockPriceSource) FetchPrice(
	ctx context.Context, currency string,
) (decimal.Decimal, error) {
	args := m.Called(ctx, currency)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/x42protocol/xserverd/internal/core/domain"
)

// PriceSample is a single price observation reported by a tier-3 node.
type PriceSample struct {
	Currency string
	Price    decimal.Decimal
	Time     int64
}

// CreateLockRequest is the quote request pushed to a tier-3 node.
type CreateLockRequest struct {
	RequestAmount   decimal.Decimal
	RequestCurrency string
}

// PeerClient is the HTTP surface this engine consumes on other xServers.
// Every call targets a single peer and honors the caller's context; a slow
// peer delays only the calling task's current iteration.
type PeerClient interface {
	// Ping probes liveness and returns the peer's best block height.
	Ping(ctx context.Context, peer *domain.ServerNode) (int64, error)
	// RegisterServer pushes a node attestation to a peer.
	RegisterServer(ctx context.Context, peer, node *domain.ServerNode) error
	// GetActiveServerNodes pulls one page of the peer's active members with
	// id greater than fromId. An empty page ends the pull.
	GetActiveServerNodes(ctx context.Context, peer *domain.ServerNode, fromId uint64) ([]*domain.ServerNode, error)
	// GetServerNodeStats returns the peer's known-member snapshot, used as a
	// bootstrap source when the local directory is empty.
	GetServerNodeStats(ctx context.Context, peer *domain.ServerNode) ([]*domain.ServerNode, error)
	// UpdatePriceLock pushes a lock's current state to a peer.
	UpdatePriceLock(ctx context.Context, peer *domain.ServerNode, lock *domain.PriceLock) error
	// GetPriceLock fetches a lock's current state from a peer.
	GetPriceLock(ctx context.Context, peer *domain.ServerNode, priceLockId string) (*domain.PriceLock, error)
	// CreatePriceLock requests a new quote from a tier-3 peer.
	CreatePriceLock(ctx context.Context, peer *domain.ServerNode, req CreateLockRequest) (*domain.PriceLock, error)
	// GetPrices fetches a tier-3 peer's current consensus price samples.
	GetPrices(ctx context.Context, peer *domain.ServerNode) ([]PriceSample, error)
	// ReceiveProfileReservation pushes a reservation to a peer.
	ReceiveProfileReservation(ctx context.Context, peer *domain.ServerNode, reservation *domain.ProfileReservation) error
	// GetNextProfiles pulls one page of the peer's profiles confirmed past
	// fromBlock. An empty page ends the pull.
	GetNextProfiles(ctx context.Context, peer *domain.ServerNode, fromBlock int64) ([]*domain.Profile, error)
}

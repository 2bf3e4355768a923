package domain

import "context"

// ServerNodeRepository is the abstraction for any kind of database intended
// to persist the peer table. Entries are keyed by an insertion sequence used
// as the paging cursor of the active-members endpoint; the signature is the
// logical identity.
type ServerNodeRepository interface {
	// AddServerNode persists a node, or returns ErrServerNodeAlreadyExists if
	// a node with the same signature is already known.
	AddServerNode(ctx context.Context, node *ServerNode) error
	// GetServerNodeBySignature returns the node attested by the given
	// signature, or ErrServerNodeNotFound.
	GetServerNodeBySignature(ctx context.Context, signature string) (*ServerNode, error)
	// GetAllServerNodes returns the whole peer table.
	GetAllServerNodes(ctx context.Context) ([]*ServerNode, error)
	// GetActiveServerNodes returns all active nodes of at least the given
	// tier, ordered by priority.
	GetActiveServerNodes(ctx context.Context, minTier Tier) ([]*ServerNode, error)
	// GetActiveServerNodesSince pages through active nodes with id greater
	// than fromId, up to limit entries. An empty result means the end of the
	// page set.
	GetActiveServerNodesSince(ctx context.Context, fromId uint64, limit int) ([]*ServerNode, error)
	// GetUnrelayedServerNodes returns nodes not yet pushed to peers.
	GetUnrelayedServerNodes(ctx context.Context) ([]*ServerNode, error)
	// UpdateServerNode commits multiple changes to the same node in a
	// transactional way.
	UpdateServerNode(
		ctx context.Context, id uint64,
		updateFn func(n *ServerNode) (*ServerNode, error),
	) error
	// DeleteServerNode evicts a node from the table.
	DeleteServerNode(ctx context.Context, id uint64) error
}

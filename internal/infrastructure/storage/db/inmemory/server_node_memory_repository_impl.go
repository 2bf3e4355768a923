package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/x42protocol/xserverd/internal/core/domain"
)

// ServerNodeRepositoryImpl is a map-backed ServerNodeRepository used by
// tests and by light deployments.
type ServerNodeRepositoryImpl struct {
	mtx    sync.RWMutex
	nextId uint64
	nodes  map[uint64]*domain.ServerNode
}

// NewServerNodeRepositoryImpl ...
func NewServerNodeRepositoryImpl() *ServerNodeRepositoryImpl {
	return &ServerNodeRepositoryImpl{nodes: map[uint64]*domain.ServerNode{}}
}

func (r *ServerNodeRepositoryImpl) AddServerNode(
	ctx context.Context, node *domain.ServerNode,
) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	for _, n := range r.nodes {
		if n.Signature == node.Signature {
			return domain.ErrServerNodeAlreadyExists
		}
	}

	r.nextId++
	node.Id = r.nextId
	clone := *node
	r.nodes[node.Id] = &clone
	return nil
}

func (r *ServerNodeRepositoryImpl) GetServerNodeBySignature(
	ctx context.Context, signature string,
) (*domain.ServerNode, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	for _, n := range r.nodes {
		if n.Signature == signature {
			clone := *n
			return &clone, nil
		}
	}
	return nil, domain.ErrServerNodeNotFound
}

func (r *ServerNodeRepositoryImpl) GetAllServerNodes(
	ctx context.Context,
) ([]*domain.ServerNode, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.sorted(func(n *domain.ServerNode) bool { return true }), nil
}

func (r *ServerNodeRepositoryImpl) GetActiveServerNodes(
	ctx context.Context, minTier domain.Tier,
) ([]*domain.ServerNode, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.sorted(func(n *domain.ServerNode) bool {
		return n.Active && n.Tier >= minTier
	}), nil
}

func (r *ServerNodeRepositoryImpl) GetActiveServerNodesSince(
	ctx context.Context, fromId uint64, limit int,
) ([]*domain.ServerNode, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	nodes := r.sorted(func(n *domain.ServerNode) bool {
		return n.Active && n.Id > fromId
	})
	if len(nodes) > limit {
		nodes = nodes[:limit]
	}
	return nodes, nil
}

func (r *ServerNodeRepositoryImpl) GetUnrelayedServerNodes(
	ctx context.Context,
) ([]*domain.ServerNode, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.sorted(func(n *domain.ServerNode) bool { return !n.Relayed }), nil
}

func (r *ServerNodeRepositoryImpl) UpdateServerNode(
	ctx context.Context, id uint64,
	updateFn func(n *domain.ServerNode) (*domain.ServerNode, error),
) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	node, ok := r.nodes[id]
	if !ok {
		return domain.ErrServerNodeNotFound
	}
	clone := *node
	updated, err := updateFn(&clone)
	if err != nil {
		return err
	}
	r.nodes[id] = updated
	return nil
}

func (r *ServerNodeRepositoryImpl) DeleteServerNode(ctx context.Context, id uint64) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.nodes[id]; !ok {
		return domain.ErrServerNodeNotFound
	}
	delete(r.nodes, id)
	return nil
}

func (r *ServerNodeRepositoryImpl) sorted(
	keep func(n *domain.ServerNode) bool,
) []*domain.ServerNode {
	out := make([]*domain.ServerNode, 0, len(r.nodes))
	for _, n := range r.nodes {
		if keep(n) {
			clone := *n
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

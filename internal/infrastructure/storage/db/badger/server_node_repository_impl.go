package dbbadger

import (
	"context"

	"github.com/timshannon/badgerhold/v4"

	"github.com/x42protocol/xserverd/internal/core/domain"
)

type serverNodeRepositoryImpl struct {
	store *badgerhold.Store
}

func newServerNodeRepositoryImpl(store *badgerhold.Store) domain.ServerNodeRepository {
	return serverNodeRepositoryImpl{store}
}

func (r serverNodeRepositoryImpl) AddServerNode(
	ctx context.Context, node *domain.ServerNode,
) error {
	count, err := r.store.Count(
		&domain.ServerNode{}, badgerhold.Where("Signature").Eq(node.Signature),
	)
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrServerNodeAlreadyExists
	}

	if err := r.store.Insert(badgerhold.NextSequence(), node); err != nil {
		if err == badgerhold.ErrKeyExists {
			return domain.ErrServerNodeAlreadyExists
		}
		return err
	}
	return nil
}

func (r serverNodeRepositoryImpl) GetServerNodeBySignature(
	ctx context.Context, signature string,
) (*domain.ServerNode, error) {
	nodes, err := r.findNodes(badgerhold.Where("Signature").Eq(signature))
	if err != nil {
		return nil, err
	}
	if len(nodes) <= 0 {
		return nil, domain.ErrServerNodeNotFound
	}
	return &nodes[0], nil
}

func (r serverNodeRepositoryImpl) GetAllServerNodes(
	ctx context.Context,
) ([]*domain.ServerNode, error) {
	nodes, err := r.findNodes(nil)
	if err != nil {
		return nil, err
	}
	return toNodePointers(nodes), nil
}

func (r serverNodeRepositoryImpl) GetActiveServerNodes(
	ctx context.Context, minTier domain.Tier,
) ([]*domain.ServerNode, error) {
	nodes, err := r.findNodes(
		badgerhold.Where("Active").Eq(true).
			And("Tier").Ge(minTier).
			SortBy("Priority"),
	)
	if err != nil {
		return nil, err
	}
	return toNodePointers(nodes), nil
}

func (r serverNodeRepositoryImpl) GetActiveServerNodesSince(
	ctx context.Context, fromId uint64, limit int,
) ([]*domain.ServerNode, error) {
	nodes, err := r.findNodes(
		badgerhold.Where(badgerhold.Key).Gt(fromId).
			And("Active").Eq(true).
			SortBy("Id").
			Limit(limit),
	)
	if err != nil {
		return nil, err
	}
	return toNodePointers(nodes), nil
}

func (r serverNodeRepositoryImpl) GetUnrelayedServerNodes(
	ctx context.Context,
) ([]*domain.ServerNode, error) {
	nodes, err := r.findNodes(badgerhold.Where("Relayed").Eq(false))
	if err != nil {
		return nil, err
	}
	return toNodePointers(nodes), nil
}

func (r serverNodeRepositoryImpl) UpdateServerNode(
	ctx context.Context, id uint64,
	updateFn func(n *domain.ServerNode) (*domain.ServerNode, error),
) error {
	var node domain.ServerNode
	if err := r.store.Get(id, &node); err != nil {
		if err == badgerhold.ErrNotFound {
			return domain.ErrServerNodeNotFound
		}
		return err
	}

	updated, err := updateFn(&node)
	if err != nil {
		return err
	}
	return r.store.Update(id, *updated)
}

func (r serverNodeRepositoryImpl) DeleteServerNode(ctx context.Context, id uint64) error {
	if err := r.store.Delete(id, &domain.ServerNode{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return domain.ErrServerNodeNotFound
		}
		return err
	}
	return nil
}

func (r serverNodeRepositoryImpl) findNodes(
	query *badgerhold.Query,
) ([]domain.ServerNode, error) {
	var nodes []domain.ServerNode
	if err := r.store.Find(&nodes, query); err != nil {
		return nil, err
	}
	return nodes, nil
}

func toNodePointers(nodes []domain.ServerNode) []*domain.ServerNode {
	out := make([]*domain.ServerNode, 0, len(nodes))
	for i := range nodes {
		out = append(out, &nodes[i])
	}
	return out
}

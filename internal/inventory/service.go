package inventory

import (
	"context"
	"fmt"
	"sort"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Item, error)
	Get(ctx context.Context, id int64) (Item, error)
	ListBelowReorder(ctx context.Context) ([]Item, error)
}

// Service exposes read access to stock for catalog, checkout and jobs.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns items, optionally restricted to those with stock on hand.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Item, error) {
	return s.repo.List(ctx, filter)
}

// Get loads an item by id.
func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, ErrItemNotFound
	}
	return s.repo.Get(ctx, id)
}

// LowStock lists items at or below their reorder level.
func (s *Service) LowStock(ctx context.Context) ([]Item, error) {
	return s.repo.ListBelowReorder(ctx)
}

// ApplyDecrements subtracts each decrement inside tx, in item id order so
// concurrent commits lock rows in the same sequence. It returns the remaining
// stock per item.
func ApplyDecrements(ctx context.Context, tx TxRepository, decrements []Decrement, allowNegative bool) (map[int64]float64, error) {
	ordered := make([]Decrement, len(decrements))
	copy(ordered, decrements)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ItemID < ordered[j].ItemID })

	remaining := make(map[int64]float64, len(ordered))
	for _, d := range ordered {
		left, err := tx.Decrement(ctx, d, allowNegative)
		if err != nil {
			return nil, fmt.Errorf("decrement item %d: %w", d.ItemID, err)
		}
		remaining[d.ItemID] = left
	}
	return remaining, nil
}

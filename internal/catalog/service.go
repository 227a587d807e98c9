package catalog

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/counterpos/counterpos/internal/availability"
	"github.com/counterpos/counterpos/internal/inventory"
	"github.com/counterpos/counterpos/internal/recipes"
)

// ItemLister lists inventory items.
type ItemLister interface {
	List(ctx context.Context, filter inventory.ListFilter) ([]inventory.Item, error)
}

// ProductLister lists finished products with their recipe lines.
type ProductLister interface {
	List(ctx context.Context) ([]recipes.Product, error)
}

// Service loads snapshots from the stores of record.
type Service struct {
	items    ItemLister
	products ProductLister
}

// NewService builds Service.
func NewService(items ItemLister, products ProductLister) *Service {
	return &Service{items: items, products: products}
}

// Snapshot reads inventory, and recipes for recipe sales, concurrently.
func (s *Service) Snapshot(ctx context.Context, kind Kind) (*Snapshot, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	var (
		items    []inventory.Item
		products []recipes.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.items.List(gctx, inventory.ListFilter{})
		if err != nil {
			return fmt.Errorf("catalog: load inventory: %w", err)
		}
		return nil
	})
	if kind == KindRecipe {
		g.Go(func() error {
			var err error
			products, err = s.products.List(gctx)
			if err != nil {
				return fmt.Errorf("catalog: load recipes: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewSnapshot(kind, items, products), nil
}

// Listing loads a fresh snapshot and lists it against reservations.
func (s *Service) Listing(ctx context.Context, kind Kind, reservations []availability.Reservation) ([]Sellable, error) {
	snap, err := s.Snapshot(ctx, kind)
	if err != nil {
		return nil, err
	}
	return snap.Listing(reservations), nil
}

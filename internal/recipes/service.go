package recipes

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/counterpos/counterpos/internal/inventory"
)

// RepositoryPort abstracts recipe persistence.
type RepositoryPort interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
}

// IngredientSource lists inventory items used to cost recipes.
type IngredientSource interface {
	List(ctx context.Context, filter inventory.ListFilter) ([]inventory.Item, error)
}

// Service exposes finished products and their cost roll-up.
type Service struct {
	repo        RepositoryPort
	ingredients IngredientSource
}

// NewService builds Service.
func NewService(repo RepositoryPort, ingredients IngredientSource) *Service {
	return &Service{repo: repo, ingredients: ingredients}
}

// List returns all finished products.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx)
}

// Get loads one finished product.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrProductNotFound
	}
	return s.repo.Get(ctx, id)
}

// Cost computes the current ingredient cost of one unit of a saved product.
func (s *Service) Cost(ctx context.Context, id int64) (Product, CostBreakdown, error) {
	var (
		product Product
		items   map[int64]inventory.Item
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		product, err = s.Get(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = s.itemIndex(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Product{}, CostBreakdown{}, err
	}
	breakdown, err := RollUp(product.Lines, items)
	if err != nil {
		return Product{}, CostBreakdown{}, err
	}
	return product, breakdown.WithPrice(product.SellingPrice), nil
}

// Preview costs an unsaved recipe while it is being authored.
func (s *Service) Preview(ctx context.Context, lines []Line, price decimal.Decimal) (CostBreakdown, error) {
	items, err := s.itemIndex(ctx)
	if err != nil {
		return CostBreakdown{}, err
	}
	breakdown, err := RollUp(lines, items)
	if err != nil {
		return CostBreakdown{}, err
	}
	return breakdown.WithPrice(price), nil
}

func (s *Service) itemIndex(ctx context.Context) (map[int64]inventory.Item, error) {
	items, err := s.ingredients.List(ctx, inventory.ListFilter{})
	if err != nil {
		return nil, err
	}
	return IndexItems(items), nil
}

// IndexItems keys items by id.
func IndexItems(items []inventory.Item) map[int64]inventory.Item {
	out := make(map[int64]inventory.Item, len(items))
	for _, item := range items {
		out[item.ID] = item
	}
	return out
}

package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/yfarmers/feedledger/internal/shared"
)

// ChangeNotifier is told whenever data feeding derived balances changes.
type ChangeNotifier interface {
	Bump(ctx context.Context) error
}

// ProductInput carries the mutable product fields.
type ProductInput struct {
	ID           string          `json:"id" validate:"required,max=64"`
	Name         string          `json:"name" validate:"required,max=128"`
	CostPrice    decimal.Decimal `json:"cost_price" validate:"gte=0"`
	SellingPrice decimal.Decimal `json:"selling_price" validate:"gte=0"`
}

// Service exposes catalog operations.
type Service struct {
	repo     Repository
	validate *validator.Validate
	notifier ChangeNotifier
	logger   *slog.Logger
}

// NewService constructs the catalog service. notifier may be nil.
func NewService(repo Repository, notifier ChangeNotifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, validate: shared.NewValidator(), notifier: notifier, logger: logger}
}

// List returns products in catalog order.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, &shared.StorageError{Op: "list products", Err: err}
	}
	return products, nil
}

// Catalog returns an immutable snapshot for the computation engines.
func (s *Service) Catalog(ctx context.Context) (Catalog, error) {
	products, err := s.List(ctx)
	if err != nil {
		return Catalog{}, err
	}
	return New(products)
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return Product{}, err
		}
		return Product{}, &shared.StorageError{Op: "get product", Err: err}
	}
	return p, nil
}

// Upsert creates or replaces a product. Ids are matched exactly.
func (s *Service) Upsert(ctx context.Context, input ProductInput) (Product, error) {
	input.ID = strings.TrimSpace(input.ID)
	input.Name = strings.TrimSpace(input.Name)
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return Product{}, err
	}
	p := Product{ID: input.ID, Name: input.Name, CostPrice: input.CostPrice, SellingPrice: input.SellingPrice}
	if err := s.repo.UpsertProduct(ctx, p); err != nil {
		return Product{}, &shared.StorageError{Op: "upsert product", Err: err}
	}
	s.bump(ctx)
	s.logger.Info("catalog product saved", slog.String("product", p.ID))
	return p, nil
}

// Delete removes a product. Ledger entries that still reference it keep their raw id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return err
		}
		return &shared.StorageError{Op: "delete product", Err: err}
	}
	s.bump(ctx)
	s.logger.Info("catalog product deleted", slog.String("product", id))
	return nil
}

// Seed inserts products whose ids are not yet present and returns how many were added.
func (s *Service) Seed(ctx context.Context, products []Product) (int, error) {
	existing, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	current, err := New(existing)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, p := range products {
		if current.Has(p.ID) {
			continue
		}
		if err := s.repo.UpsertProduct(ctx, p); err != nil {
			return added, &shared.StorageError{Op: "seed product", Err: err}
		}
		added++
	}
	if added > 0 {
		s.bump(ctx)
	}
	return added, nil
}

func (s *Service) bump(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Bump(ctx); err != nil {
		s.logger.Warn("catalog cache bump", slog.Any("error", err))
	}
}

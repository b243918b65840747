package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists the product catalog.
type Repository interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	UpsertProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id string) error
}

type memoryRepository struct {
	mu       sync.RWMutex
	products []Product
}

// NewMemoryRepository returns an in-process repository seeded with products.
func NewMemoryRepository(seed []Product) Repository {
	products := make([]Product, len(seed))
	copy(products, seed)
	return &memoryRepository{products: products}
}

func (r *memoryRepository) ListProducts(ctx context.Context) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Product, len(r.products))
	copy(out, r.products)
	return out, nil
}

func (r *memoryRepository) GetProduct(ctx context.Context, id string) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, ErrProductNotFound
}

func (r *memoryRepository) UpsertProduct(ctx context.Context, p Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.products {
		if r.products[i].ID == p.ID {
			r.products[i] = p
			return nil
		}
	}
	r.products = append(r.products, p)
	return nil
}

func (r *memoryRepository) DeleteProduct(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.products {
		if r.products[i].ID == id {
			r.products = append(r.products[:i], r.products[i+1:]...)
			return nil
		}
	}
	return ErrProductNotFound
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository returns a repository backed by the catalog_products table.
func NewPGRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const productColumns = `id, name, cost_price::text, selling_price::text`

func (r *pgRepository) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM catalog_products ORDER BY sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *pgRepository) GetProduct(ctx context.Context, id string) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM catalog_products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

// UpsertProduct keeps the original sort position of existing rows; new rows go last.
func (r *pgRepository) UpsertProduct(ctx context.Context, p Product) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO catalog_products (id, name, cost_price, selling_price, sort_order)
VALUES ($1, $2, $3::numeric, $4::numeric, (SELECT COALESCE(MAX(sort_order), 0) + 1 FROM catalog_products))
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, cost_price = EXCLUDED.cost_price,
    selling_price = EXCLUDED.selling_price, updated_at = NOW()`,
		p.ID, p.Name, p.CostPrice.String(), p.SellingPrice.String())
	return err
}

func (r *pgRepository) DeleteProduct(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM catalog_products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var costRaw, sellRaw string
	if err := row.Scan(&p.ID, &p.Name, &costRaw, &sellRaw); err != nil {
		return Product{}, err
	}
	var err error
	if p.CostPrice, err = decimal.NewFromString(costRaw); err != nil {
		return Product{}, fmt.Errorf("catalog: cost price of %s: %w", p.ID, err)
	}
	if p.SellingPrice, err = decimal.NewFromString(sellRaw); err != nil {
		return Product{}, fmt.Errorf("catalog: selling price of %s: %w", p.ID, err)
	}
	return p, nil
}

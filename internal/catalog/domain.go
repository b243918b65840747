package catalog

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/yfarmers/feedledger/internal/shared"
)

// Product is a feed product sold by the bag.
type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
}

// ErrDuplicateProduct is returned when two products share an id.
var ErrDuplicateProduct = errors.New("catalog: duplicate product id")

// ErrProductNotFound is returned when a product id is unknown.
var ErrProductNotFound = fmt.Errorf("catalog: product %w", shared.ErrNotFound)

// Catalog is an immutable snapshot of the product reference data.
type Catalog struct {
	products []Product
	byID     map[string]int
}

// New builds a Catalog, rejecting duplicate ids.
func New(products []Product) (Catalog, error) {
	c := Catalog{
		products: make([]Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	for _, p := range products {
		if _, dup := c.byID[p.ID]; dup {
			return Catalog{}, ErrDuplicateProduct
		}
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}
	return c, nil
}

// MustNew is New for static seeds.
func MustNew(products []Product) Catalog {
	c, err := New(products)
	if err != nil {
		panic(err)
	}
	return c
}

// Products returns the products in catalog order.
func (c Catalog) Products() []Product {
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// IDs returns product ids in catalog order.
func (c Catalog) IDs() []string {
	ids := make([]string, 0, len(c.products))
	for _, p := range c.products {
		ids = append(ids, p.ID)
	}
	return ids
}

// Lookup finds a product by id.
func (c Catalog) Lookup(id string) (Product, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Product{}, false
	}
	return c.products[idx], true
}

// Has reports whether id is part of the catalog.
func (c Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// SellingPrice returns the current selling price, zero for unknown ids.
func (c Catalog) SellingPrice(id string) decimal.Decimal {
	if p, ok := c.Lookup(id); ok {
		return p.SellingPrice
	}
	return decimal.Zero
}

// Len returns the number of products.
func (c Catalog) Len() int {
	return len(c.products)
}

package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Product struct {
	Key         string `json:"key"` // unik, lowercase
	Name        string `json:"name"`
	Description string `json:"description"`
	UnitPrice   int    `json:"unit_price"` // rupiah, tanpa desimal
	Stock       int    `json:"stock"`
	ImageRef    string `json:"image_ref,omitempty"`
}

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InsufficientStockError membawa stok saat pengecekan, untuk dipakai di pesan balasan.
type InsufficientStockError struct {
	ProductKey string
	Name       string
	Required   int
	Available  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: required %d, available %d", e.ProductKey, e.Required, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// Store adalah penyimpanan katalog. ListProducts wajib urut stabil (berdasarkan key)
// karena fuzzy matcher memakai urutan itu sebagai tie-break.
type Store interface {
	GetProduct(ctx context.Context, key string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	PutProduct(ctx context.Context, p Product) error
	SetProductStock(ctx context.Context, key string, stock int) (Product, error)
	SetProductPrice(ctx context.Context, key string, price int) (Product, error)
	DeleteProduct(ctx context.Context, key string) error
}

// Find resolves a free-text reference: exact key first, then the fuzzy matcher.
func Find(ctx context.Context, s Store, ref string) (Product, error) {
	key := strings.ToLower(strings.TrimSpace(ref))
	if key == "" {
		return Product{}, ErrProductNotFound
	}
	p, err := s.GetProduct(ctx, key)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrProductNotFound) {
		return Product{}, err
	}
	all, err := s.ListProducts(ctx)
	if err != nil {
		return Product{}, err
	}
	if p, ok := Match(all, ref); ok {
		return p, nil
	}
	return Product{}, ErrProductNotFound
}

// Summary is the compact catalog listing handed to the intent classifier.
func Summary(products []Product) string {
	parts := make([]string, 0, len(products))
	for _, p := range products {
		parts = append(parts, fmt.Sprintf("%s (%s)", p.Key, p.Name))
	}
	return strings.Join(parts, ", ")
}

// Seed adalah katalog awal untuk backend in-memory / database kosong.
var Seed = []Product{
	{Key: "premium", Name: "Roti Premium", Description: "Roti lembut isi", UnitPrice: 12000, Stock: 10},
}

// Package memory is the in-process backend for the catalog and the order
// table. One lock covers both so approval can check and deduct stock
// together with the status change.
package memory

import (
	"context"
	"github.com/ariefcatur/go-roti-bot/internal/catalog"
	"github.com/ariefcatur/go-roti-bot/internal/orders"
	"sort"
	"sync"
	"time"
)

type Store struct {
	mu       sync.RWMutex
	products map[string]catalog.Product
	orders   map[string]orders.Order
	Now      func() time.Time
}

func NewStore(seed ...catalog.Product) *Store {
	s := &Store{
		products: make(map[string]catalog.Product, len(seed)),
		orders:   make(map[string]orders.Order),
	}
	for _, p := range seed {
		s.products[p.Key] = p
	}
	return s
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ---- catalog.Store ----

func (s *Store) GetProduct(_ context.Context, key string) (catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[key]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (s *Store) ListProducts(_ context.Context) ([]catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) PutProduct(_ context.Context, p catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[p.Key] = p
	return nil
}

func (s *Store) SetProductStock(_ context.Context, key string, stock int) (catalog.Product, error) {
	return s.updateProduct(key, func(p *catalog.Product) { p.Stock = stock })
}

func (s *Store) SetProductPrice(_ context.Context, key string, price int) (catalog.Product, error) {
	return s.updateProduct(key, func(p *catalog.Product) { p.UnitPrice = price })
}

func (s *Store) updateProduct(key string, fn func(*catalog.Product)) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[key]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	fn(&p)
	s.products[key] = p
	return p, nil
}

func (s *Store) DeleteProduct(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[key]; !ok {
		return catalog.ErrProductNotFound
	}
	delete(s.products, key)
	return nil
}

// ---- orders.Store ----

func (s *Store) CreateOrder(_ context.Context, o orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID]; exists {
		return orders.ErrAlreadyExists
	}
	s.orders[o.ID] = o
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return o, nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID string, limit int) ([]orders.Order, error) {
	out := s.filter(func(o orders.Order) bool { return o.UserID == userID })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return truncate(out, limit), nil
}

func (s *Store) ListOrdersByStatus(_ context.Context, status orders.Status, limit int) ([]orders.Order, error) {
	out := s.filter(func(o orders.Order) bool { return o.Status == status })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return truncate(out, limit), nil
}

func (s *Store) filter(keep func(orders.Order) bool) []orders.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []orders.Order
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

func truncate(list []orders.Order, limit int) []orders.Order {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}

func (s *Store) TransitionOrder(_ context.Context, id string, from, to orders.Status) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	if o.Status != from || !orders.CanTransition(from, to) {
		return o, &orders.TransitionError{OrderID: id, Current: o.Status, Wanted: to}
	}
	o.Status = to
	o.UpdatedAt = s.now()
	s.orders[id] = o
	return o, nil
}

func (s *Store) ApproveOrder(_ context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	if o.Status != orders.StatusPending {
		return o, &orders.TransitionError{OrderID: id, Current: o.Status, Wanted: orders.StatusApproved}
	}

	o.UpdatedAt = s.now()
	p, ok := s.products[o.ProductKey]
	if !ok || p.Stock < o.Quantity {
		o.Status = orders.StatusRejected
		s.orders[id] = o
		return o, &orders.InsufficientStockError{
			ProductKey: o.ProductKey, Name: o.ProductName, Required: o.Quantity, Available: p.Stock,
		}
	}
	p.Stock -= o.Quantity
	s.products[p.Key] = p
	o.Status = orders.StatusApproved
	s.orders[id] = o
	return o, nil
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-roti-bot/internal/catalog"
)

var (
	ErrProductNotFound   = catalog.ErrProductNotFound
	ErrInsufficientStock = catalog.ErrInsufficientStock
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrOrderNotFound     = errors.New("order not found")
	ErrForbidden         = errors.New("forbidden")
	ErrAlreadyTerminal   = errors.New("order already in terminal status")
	ErrAlreadyExists     = errors.New("order already exists")
)

type InsufficientStockError = catalog.InsufficientStockError

// TransitionError: status sekarang bukan status asal yang diharapkan.
type TransitionError struct {
	OrderID string
	Current Status
	Wanted  Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s is %s, cannot move to %s", e.OrderID, e.Current, e.Wanted)
}

func (e *TransitionError) Is(target error) bool { return target == ErrAlreadyTerminal }

// Store menyimpan order. Semua perubahan status lewat TransitionOrder /
// ApproveOrder yang melakukan check-then-set secara atomik per order.
type Store interface {
	CreateOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, id string) (Order, error)
	// newest first
	ListOrdersByUser(ctx context.Context, userID string, limit int) ([]Order, error)
	// oldest first
	ListOrdersByStatus(ctx context.Context, status Status, limit int) ([]Order, error)
	// TransitionOrder sets status to `to` only if it is currently `from`;
	// otherwise it returns a *TransitionError and changes nothing.
	TransitionOrder(ctx context.Context, id string, from, to Status) (Order, error)
	// ApproveOrder atomically moves a Pending order to Approved and deducts its
	// quantity from the product stock. If the stock is short the order moves to
	// Rejected instead and the returned error is a *InsufficientStockError.
	ApproveOrder(ctx context.Context, id string) (Order, error)
}

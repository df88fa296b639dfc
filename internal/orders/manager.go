package orders

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-roti-bot/internal/catalog"
	"github.com/google/uuid"
	"log/slog"
	"strings"
	"time"
)

// Notifier dipanggil setelah order tersimpan / dibatalkan (biasanya approval.Workflow).
type Notifier interface {
	OrderPlaced(ctx context.Context, o Order)
	OrderCancelled(ctx context.Context, o Order, byAdmin bool)
}

type PlaceOrderRequest struct {
	UserID     string
	OriginChat string
	ProductRef string // key, nama, atau typo-nya
	Quantity   *int   // nil = tidak disebut, default 1
}

const createAttempts = 3

type Manager struct {
	Catalog  catalog.Store
	Orders   Store
	Notifier Notifier
	Events   EventPublisher // optional
	Service  string
	Now      func() time.Time
	NewID    func(time.Time) string
	Log      *slog.Logger
}

// PlaceOrder creates a Pending order. Stock is checked but not deducted;
// deduction happens on approval.
func (m *Manager) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (Order, error) {
	p, err := catalog.Find(ctx, m.Catalog, req.ProductRef)
	if err != nil {
		return Order{}, err
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	if qty <= 0 {
		return Order{}, ErrInvalidQuantity
	}
	if p.Stock < qty {
		return Order{}, &InsufficientStockError{ProductKey: p.Key, Name: p.Name, Required: qty, Available: p.Stock}
	}

	now := m.now()
	o := Order{
		UserID:      req.UserID,
		OriginChat:  req.OriginChat,
		ProductKey:  p.Key,
		ProductName: p.Name,
		UnitPrice:   p.UnitPrice,
		Quantity:    qty,
		Total:       p.UnitPrice * qty,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for attempt := 1; ; attempt++ {
		o.ID = m.newID(now)
		err = m.Orders.CreateOrder(ctx, o)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrAlreadyExists) || attempt == createAttempts {
			return Order{}, fmt.Errorf("create order: %w", err)
		}
	}

	m.log().Info("order placed", "order_id", o.ID, "user_id", o.UserID, "product", o.ProductKey, "qty", o.Quantity, "total", o.Total)
	if m.Notifier != nil {
		m.Notifier.OrderPlaced(ctx, o)
	}
	m.publish(ctx, EventOrderPlaced, o, "")
	return o, nil
}

// CancelOrder lets the owner or the admin cancel a Pending order.
func (m *Manager) CancelOrder(ctx context.Context, actorID, orderID string, isAdmin bool) (Order, error) {
	if _, err := m.GetStatus(ctx, actorID, orderID, isAdmin); err != nil {
		return Order{}, err
	}
	o, err := m.Orders.TransitionOrder(ctx, NormalizeID(orderID), StatusPending, StatusCancelled)
	if err != nil {
		return o, err
	}

	byAdmin := isAdmin && actorID != o.UserID
	m.log().Info("order cancelled", "order_id", o.ID, "actor", actorID, "by_admin", byAdmin)
	if m.Notifier != nil {
		m.Notifier.OrderCancelled(ctx, o, byAdmin)
	}
	reason := ReasonCancelledByUser
	if byAdmin {
		reason = ReasonCancelledByAdmin
	}
	m.publish(ctx, EventOrderCancelled, o, reason)
	return o, nil
}

// GetStatus is read-only and follows the same owner-or-admin rule as CancelOrder.
func (m *Manager) GetStatus(ctx context.Context, actorID, orderID string, isAdmin bool) (Order, error) {
	id := NormalizeID(orderID)
	if id == "" {
		return Order{}, ErrOrderNotFound
	}
	o, err := m.Orders.GetOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !isAdmin && o.UserID != actorID {
		return Order{}, ErrForbidden
	}
	return o, nil
}

func (m *Manager) ListByUser(ctx context.Context, userID string, limit int) ([]Order, error) {
	return m.Orders.ListOrdersByUser(ctx, userID, limit)
}

func (m *Manager) ListPending(ctx context.Context, limit int) ([]Order, error) {
	return m.Orders.ListOrdersByStatus(ctx, StatusPending, limit)
}

func (m *Manager) publish(ctx context.Context, eventType string, o Order, reason string) {
	if m.Events == nil {
		return
	}
	env, err := NewEnvelope(m.Service, eventType, o, reason, m.now())
	if err == nil {
		err = m.Events.PublishOrderEvent(ctx, env)
	}
	if err != nil {
		m.log().Warn("publish order event", "event", eventType, "order_id", o.ID, "err", err)
	}
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Manager) newID(now time.Time) string {
	if m.NewID != nil {
		return m.NewID(now)
	}
	return NewInvoiceID(now)
}

func (m *Manager) log() *slog.Logger {
	if m.Log != nil {
		return m.Log
	}
	return slog.Default()
}

var invoiceEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewInvoiceID returns INV-<yymmdd>-<16 base32 chars>, i.e. 80 random bits per day.
func NewInvoiceID(now time.Time) string {
	var b [10]byte
	if _, err := rand.Read(b[:]); err != nil {
		u := uuid.New()
		copy(b[:], u[:])
	}
	return "INV-" + now.UTC().Format("060102") + "-" + invoiceEncoding.EncodeToString(b[:])
}

// NormalizeID: user sering mengetik id dengan huruf kecil / spasi.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

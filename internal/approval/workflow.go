// Package approval gates the final transition of an order behind the single
// configured administrator and tells the people involved what happened.
package approval

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-roti-bot/internal/catalog"
	"github.com/ariefcatur/go-roti-bot/internal/chat"
	"github.com/ariefcatur/go-roti-bot/internal/orders"
	"log/slog"
	"time"
)

type Workflow struct {
	Orders      orders.Store
	Sink        chat.Sink // dipakai hanya di luar event (tanpa outbox)
	AdminID     string
	AdminChatID string
	Events      orders.EventPublisher // optional
	Service     string
	Now         func() time.Time
	Log         *slog.Logger
}

func (w *Workflow) IsAdmin(userID string) bool {
	return w.AdminID != "" && userID == w.AdminID
}

// Approve deducts stock and approves a Pending order. When stock has run
// short since placement the order is rejected instead and the returned error
// is a *catalog.InsufficientStockError.
func (w *Workflow) Approve(ctx context.Context, adminID, orderID string) (orders.Order, error) {
	if !w.IsAdmin(adminID) {
		return orders.Order{}, orders.ErrForbidden
	}
	o, err := w.Orders.ApproveOrder(ctx, orders.NormalizeID(orderID))

	var stockErr *catalog.InsufficientStockError
	switch {
	case err == nil:
		w.log().Info("order approved", "order_id", o.ID, "product", o.ProductKey, "qty", o.Quantity)
		w.notify(ctx, chat.Reply{
			ChatID: o.OriginChat,
			Text: fmt.Sprintf("Pesanan `%s` sudah *disetujui* oleh admin ✅\n• %s x%d\n• Total: %s",
				o.ID, chat.EscapeMarkdown(o.ProductName), o.Quantity, catalog.FormatPrice(o.Total)),
			Format: chat.FormatMarkdown,
		})
		w.publish(ctx, orders.EventOrderApproved, o, "")
	case errors.As(err, &stockErr):
		w.log().Info("order auto-rejected", "order_id", o.ID, "required", stockErr.Required, "available", stockErr.Available)
		w.notify(ctx, chat.Reply{
			ChatID: o.OriginChat,
			Text: fmt.Sprintf("Maaf kak 🙏 pesanan `%s` tidak bisa diproses karena stok *%s* tinggal %d.",
				o.ID, chat.EscapeMarkdown(o.ProductName), stockErr.Available),
			Format: chat.FormatMarkdown,
		})
		w.publish(ctx, orders.EventOrderRejected, o, orders.ReasonOutOfStock)
	}
	return o, err
}

func (w *Workflow) Reject(ctx context.Context, adminID, orderID string) (orders.Order, error) {
	if !w.IsAdmin(adminID) {
		return orders.Order{}, orders.ErrForbidden
	}
	o, err := w.Orders.TransitionOrder(ctx, orders.NormalizeID(orderID), orders.StatusPending, orders.StatusRejected)
	if err != nil {
		return o, err
	}
	w.log().Info("order rejected", "order_id", o.ID)
	w.notify(ctx, chat.Reply{
		ChatID: o.OriginChat,
		Text:   fmt.Sprintf("Maaf kak 🙏 pesanan `%s` *ditolak* oleh admin.", o.ID),
		Format: chat.FormatMarkdown,
	})
	w.publish(ctx, orders.EventOrderRejected, o, orders.ReasonRejectedByAdmin)
	return o, nil
}

// OrderPlaced sends the admin an actionable notice with approve/reject buttons.
func (w *Workflow) OrderPlaced(ctx context.Context, o orders.Order) {
	w.notify(ctx, chat.Reply{
		ChatID: w.adminChat(),
		Text: fmt.Sprintf("🆕 *Order Baru* (id: `%s`)\nUser: %s\nProduk: *%s* (key: %s)\nJumlah: %d\nTotal: %s",
			o.ID, chat.EscapeMarkdown(o.UserID), chat.EscapeMarkdown(o.ProductName), chat.EscapeMarkdown(o.ProductKey), o.Quantity, catalog.FormatPrice(o.Total)),
		Format: chat.FormatMarkdown,
		Buttons: [][]chat.Button{{
			chat.NewAction(chat.ActionAdminApprove, o.ID).Button("✅ Setujui"),
			chat.NewAction(chat.ActionAdminReject, o.ID).Button("❌ Tolak"),
		}},
	})
}

// OrderCancelled tells the other party: the admin when the owner cancelled,
// the owner when the admin did.
func (w *Workflow) OrderCancelled(ctx context.Context, o orders.Order, byAdmin bool) {
	if byAdmin {
		w.notify(ctx, chat.Reply{
			ChatID: o.OriginChat,
			Text:   fmt.Sprintf("Pesanan `%s` dibatalkan oleh admin.", o.ID),
			Format: chat.FormatMarkdown,
		})
		return
	}
	w.notify(ctx, chat.Reply{
		ChatID: w.adminChat(),
		Text:   fmt.Sprintf("ℹ️ Pesanan `%s` (%s x%d) dibatalkan oleh pemilik.", o.ID, chat.EscapeMarkdown(o.ProductName), o.Quantity),
		Format: chat.FormatMarkdown,
	})
}

func (w *Workflow) adminChat() string {
	if w.AdminChatID != "" {
		return w.AdminChatID
	}
	return w.AdminID
}

// notify never fails the caller. Inside an event the reply joins the
// event's outbox; otherwise it goes to Sink and delivery problems are only logged.
func (w *Workflow) notify(ctx context.Context, r chat.Reply) {
	if r.ChatID == "" {
		return
	}
	if box, ok := chat.OutboxFrom(ctx); ok {
		box.Add(r)
		return
	}
	if w.Sink == nil {
		w.log().Warn("notification dropped, no sink", "chat_id", r.ChatID)
		return
	}
	if err := w.Sink.Send(ctx, r); err != nil {
		w.log().Warn("send notification", "chat_id", r.ChatID, "err", err)
	}
}

func (w *Workflow) publish(ctx context.Context, eventType string, o orders.Order, reason string) {
	if w.Events == nil {
		return
	}
	now := time.Now()
	if w.Now != nil {
		now = w.Now()
	}
	env, err := orders.NewEnvelope(w.Service, eventType, o, reason, now)
	if err == nil {
		err = w.Events.PublishOrderEvent(ctx, env)
	}
	if err != nil {
		w.log().Warn("publish order event", "event", eventType, "order_id", o.ID, "err", err)
	}
}

func (w *Workflow) log() *slog.Logger {
	if w.Log != nil {
		return w.Log
	}
	return slog.Default()
}

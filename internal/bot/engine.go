// Package bot turns inbound chat events into reply instructions. It owns the
// command surface, the button callbacks and the free-text dialogue; the
// business rules live in orders, approval and convo.
package bot

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-roti-bot/internal/approval"
	"github.com/ariefcatur/go-roti-bot/internal/catalog"
	"github.com/ariefcatur/go-roti-bot/internal/chat"
	"github.com/ariefcatur/go-roti-bot/internal/convo"
	"github.com/ariefcatur/go-roti-bot/internal/hours"
	"github.com/ariefcatur/go-roti-bot/internal/intent"
	"github.com/ariefcatur/go-roti-bot/internal/orders"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"
)

const listLimit = 10

type Engine struct {
	Catalog   catalog.Store
	Resolver  *intent.Resolver
	Flow      *convo.Flow
	Orders    *orders.Manager
	Approvals *approval.Workflow
	Hours     *hours.Policy // nil = selalu buka
	Now       func() time.Time
	Log       *slog.Logger

	mu sync.Mutex
}

// Handle processes one event and returns the replies to deliver: the direct
// reply first, then notifications for other chats. Events are handled one at
// a time; a panic inside one event is logged and answered with a generic
// failure reply.
func (e *Engine) Handle(ctx context.Context, ev chat.Event) (replies []chat.Reply) {
	if err := ev.Validate(); err != nil {
		e.log().Warn("drop invalid event", "event_id", ev.ID, "err", err)
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	// notifikasi untuk chat lain ikut dikembalikan setelah balasan langsung
	box := &chat.Outbox{}
	ctx = chat.WithOutbox(ctx, box)
	defer func() {
		if r := recover(); r != nil {
			e.log().Error("panic while handling event", "event_id", ev.ID, "user_id", ev.UserID(), "panic", r, "stack", string(debug.Stack()))
			replies = []chat.Reply{text(ev.ChatID(), render("failure", nil))}
		}
		replies = append(replies, box.Replies()...)
	}()

	if ev.Callback != nil {
		return e.handleCallback(ctx, *ev.Callback)
	}
	return e.handleMessage(ctx, *ev.Message)
}

// ---------- text ----------

func (e *Engine) handleMessage(ctx context.Context, m chat.Message) []chat.Reply {
	body := strings.TrimSpace(m.Text)
	if strings.HasPrefix(body, "/") {
		return e.handleCommand(ctx, m, body)
	}

	st, err := e.Flow.States.Get(ctx, m.UserID)
	if err != nil {
		e.log().Warn("load conversation state", "user_id", m.UserID, "err", err)
		st = convo.Idle(m.UserID)
	}
	if replies, ok := e.continueFlow(ctx, m, st, body); ok {
		return replies
	}

	res := e.Resolver.Resolve(ctx, body, &st)
	e.log().Debug("intent resolved", "user_id", m.UserID, "intent", res.Intent, "product", res.Product)
	switch res.Intent {
	case intent.ListProducts:
		return e.menu(ctx, m.ChatID)
	case intent.AskStock:
		if res.Product == "" {
			return one(m.ChatID, render("which_product", nil))
		}
		return e.stock(ctx, m.ChatID, m.UserID, res.Product)
	case intent.Order:
		if res.Product == "" {
			return one(m.ChatID, render("which_product", nil))
		}
		return e.placeOrder(ctx, m.UserID, m.ChatID, res.Product, res.Quantity)
	default:
		return one(m.ChatID, render("unknown", nil))
	}
}

var (
	yesWords = []string{"ya", "iya", "y", "yes", "mau", "boleh", "ok", "oke", "lanjut", "jadi"}
	noWords  = []string{"tidak", "tdk", "gak", "ga", "gk", "nggak", "enggak", "no", "batal", "gajadi", "ga jadi", "nggak jadi"}
)

func isOneOf(s string, words []string) bool {
	s = strings.Trim(strings.ToLower(strings.Join(strings.Fields(s), " ")), "!.? ")
	for _, w := range words {
		if s == w {
			return true
		}
	}
	return false
}

// continueFlow answers text that belongs to a dialogue in progress. ok=false
// hands the text over to intent resolution.
func (e *Engine) continueFlow(ctx context.Context, m chat.Message, st convo.State, body string) ([]chat.Reply, bool) {
	switch st.Step {
	case convo.StepAwaitingInterest:
		switch {
		case isOneOf(body, yesWords):
			return e.interest(ctx, m.UserID, m.ChatID, st.ProductKey, true), true
		case isOneOf(body, noWords):
			return e.interest(ctx, m.UserID, m.ChatID, st.ProductKey, false), true
		}
	case convo.StepAwaitingQuantity:
		if isOneOf(body, noWords) {
			return e.cancelFlow(ctx, m.UserID, m.ChatID), true
		}
		return e.quantity(ctx, m.UserID, m.ChatID, body), true
	case convo.StepAwaitingConfirmation:
		switch {
		case isOneOf(body, yesWords):
			return e.confirm(ctx, m.UserID, m.ChatID, st.ProductKey, st.Quantity), true
		case isOneOf(body, noWords):
			return e.cancelFlow(ctx, m.UserID, m.ChatID), true
		}
	}
	return nil, false
}

// ---------- commands ----------

func (e *Engine) handleCommand(ctx context.Context, m chat.Message, body string) []chat.Reply {
	cmd, arg, _ := strings.Cut(body, " ")
	cmd, _, _ = strings.Cut(strings.ToLower(cmd), "@") // /menu@RotiBot
	arg = strings.TrimSpace(arg)
	admin := e.Approvals.IsAdmin(m.UserID)

	switch cmd {
	case "/start":
		return one(m.ChatID, render("welcome", nil))
	case "/help":
		return one(m.ChatID, render("help", helpData(admin)))
	case "/menu", "/products":
		return e.menu(ctx, m.ChatID)
	case "/stok", "/stock":
		if arg == "" {
			return one(m.ChatID, render("usage", "/stok <produk>"))
		}
		return e.stock(ctx, m.ChatID, m.UserID, arg)
	case "/pesan", "/order":
		ref, qty, err := parseOrderArgs(arg)
		if err != nil {
			return one(m.ChatID, render("usage", "/pesan <produk> <jumlah>"))
		}
		return e.placeOrder(ctx, m.UserID, m.ChatID, ref, qty)
	case "/status":
		if arg == "" {
			return one(m.ChatID, render("usage", "/status <id>"))
		}
		o, err := e.Orders.GetStatus(ctx, m.UserID, arg, admin)
		if err != nil {
			return e.fail(m.ChatID, err)
		}
		return one(m.ChatID, render("status", o))
	case "/cancel", "/batal":
		if arg == "" {
			return e.cancelFlow(ctx, m.UserID, m.ChatID)
		}
		return e.cancelOrder(ctx, m.UserID, m.ChatID, arg)
	case "/pesanan", "/orders":
		list, err := e.Orders.ListByUser(ctx, m.UserID, listLimit)
		if err != nil {
			return e.fail(m.ChatID, err)
		}
		return one(m.ChatID, render("my_orders", list))
	}

	if reply, ok := e.handleAdminCommand(ctx, m, cmd, arg, admin); ok {
		return reply
	}
	return one(m.ChatID, render("unknown_command", nil))
}

// handleAdminCommand checks the caller before reading any argument, so a
// non-admin learns nothing about orders or products.
func (e *Engine) handleAdminCommand(ctx context.Context, m chat.Message, cmd, arg string, admin bool) ([]chat.Reply, bool) {
	switch cmd {
	case "/approve", "/reject", "/pending", "/addproduct", "/setstock", "/setprice", "/delproduct":
	default:
		return nil, false
	}
	if !admin {
		return one(m.ChatID, render("admin_only", nil)), true
	}

	switch cmd {
	case "/approve":
		if arg == "" {
			return one(m.ChatID, render("usage", "/approve <id>")), true
		}
		return e.approve(ctx, m.UserID, m.ChatID, arg), true
	case "/reject":
		if arg == "" {
			return one(m.ChatID, render("usage", "/reject <id>")), true
		}
		return e.reject(ctx, m.UserID, m.ChatID, arg), true
	case "/pending":
		list, err := e.Orders.ListPending(ctx, listLimit)
		if err != nil {
			return e.fail(m.ChatID, err), true
		}
		replies := one(m.ChatID, render("pending", list))
		for _, o := range list {
			replies[0].Buttons = append(replies[0].Buttons, []chat.Button{
				chat.NewAction(chat.ActionAdminApprove, o.ID).Button("✅ " + o.ID),
				chat.NewAction(chat.ActionAdminReject, o.ID).Button("❌ Tolak"),
			})
		}
		return replies, true
	case "/addproduct":
		p, err := catalog.ParseProduct(arg)
		if err != nil {
			return one(m.ChatID, render("usage", catalog.UsageAddProduct)), true
		}
		if err := e.Catalog.PutProduct(ctx, p); err != nil {
			return e.fail(m.ChatID, err), true
		}
		e.log().Info("product saved", "admin", m.UserID, "key", p.Key, "price", p.UnitPrice, "stock", p.Stock)
		return one(m.ChatID, render("product_saved", p)), true
	case "/setstock":
		key, n, err := catalog.ParseStockUpdate(arg)
		if err != nil {
			return one(m.ChatID, render("usage", catalog.UsageSetStock)), true
		}
		p, err := e.Catalog.SetProductStock(ctx, key, n)
		if err != nil {
			return e.fail(m.ChatID, err), true
		}
		e.log().Info("stock updated", "admin", m.UserID, "key", key, "stock", n)
		return one(m.ChatID, render("stock_updated", p)), true
	case "/setprice":
		key, n, err := catalog.ParsePriceUpdate(arg)
		if err != nil {
			return one(m.ChatID, render("usage", catalog.UsageSetPrice)), true
		}
		p, err := e.Catalog.SetProductPrice(ctx, key, n)
		if err != nil {
			return e.fail(m.ChatID, err), true
		}
		e.log().Info("price updated", "admin", m.UserID, "key", key, "price", n)
		return one(m.ChatID, render("price_updated", p)), true
	case "/delproduct":
		key, err := catalog.ParseKey(arg)
		if err != nil {
			return one(m.ChatID, render("usage", catalog.UsageDeleteProduct)), true
		}
		if err := e.Catalog.DeleteProduct(ctx, key); err != nil {
			return e.fail(m.ChatID, err), true
		}
		e.log().Info("product deleted", "admin", m.UserID, "key", key)
		return one(m.ChatID, render("product_deleted", key)), true
	}
	return nil, false
}

// parseOrderArgs reads "<produk...> [jumlah]".
func parseOrderArgs(arg string) (string, *int, error) {
	fields := strings.Fields(arg)
	if len(fields) == 0 {
		return "", nil, errors.New("empty order")
	}
	last := fields[len(fields)-1]
	if n, err := strconv.Atoi(last); err == nil {
		if len(fields) == 1 {
			return "", nil, errors.New("missing product")
		}
		return strings.Join(fields[:len(fields)-1], " "), &n, nil
	}
	return strings.Join(fields, " "), nil, nil
}

func helpData(admin bool) any {
	return struct {
		Admin       bool
		UsageAdd    string
		UsageStock  string
		UsagePrice  string
		UsageDelete string
	}{admin, catalog.UsageAddProduct, catalog.UsageSetStock, catalog.UsageSetPrice, catalog.UsageDeleteProduct}
}

// ---------- callbacks ----------

func (e *Engine) handleCallback(ctx context.Context, cb chat.Callback) []chat.Reply {
	a, err := chat.ParseAction(cb.Action)
	if err != nil {
		e.log().Info("malformed action", "user_id", cb.UserID, "err", err)
		return one(cb.ChatID, render("invalid_action", nil))
	}

	switch a.Name {
	case chat.ActionSelectProduct:
		return e.selectProduct(ctx, cb.UserID, cb.ChatID, a.Args[0])
	case chat.ActionInterestYes:
		return e.interest(ctx, cb.UserID, cb.ChatID, a.Args[0], true)
	case chat.ActionInterestNo:
		return e.interest(ctx, cb.UserID, cb.ChatID, a.Args[0], false)
	case chat.ActionConfirmOrder:
		// token milik user lain (mis. pesan di-forward) tidak berlaku
		if a.Args[2] != cb.UserID {
			return one(cb.ChatID, render("invalid_action", nil))
		}
		return e.confirm(ctx, cb.UserID, cb.ChatID, a.Args[0], a.Quantity())
	case chat.ActionCancelFlow:
		if a.Args[0] != cb.UserID {
			return one(cb.ChatID, render("invalid_action", nil))
		}
		return e.cancelFlow(ctx, cb.UserID, cb.ChatID)
	case chat.ActionCancelOrder:
		return e.cancelOrder(ctx, cb.UserID, cb.ChatID, a.Args[0])
	case chat.ActionAdminApprove:
		return e.approve(ctx, cb.UserID, cb.ChatID, a.Args[0])
	case chat.ActionAdminReject:
		return e.reject(ctx, cb.UserID, cb.ChatID, a.Args[0])
	}
	return one(cb.ChatID, render("invalid_action", nil))
}

// ---------- operations ----------

func (e *Engine) menu(ctx context.Context, chatID string) []chat.Reply {
	products, err := e.Catalog.ListProducts(ctx)
	if err != nil {
		return e.fail(chatID, err)
	}
	r := chat.Reply{ChatID: chatID, Text: render("menu", products), Format: chat.FormatMarkdown}
	for _, p := range products {
		r.Buttons = append(r.Buttons, []chat.Button{
			chat.NewAction(chat.ActionSelectProduct, p.Key).Button(fmt.Sprintf("%s (%s)", p.Name, catalog.FormatPrice(p.UnitPrice))),
		})
	}
	return []chat.Reply{r}
}

// stock answers a stock question and opens the dialogue for that product.
func (e *Engine) stock(ctx context.Context, chatID, userID, ref string) []chat.Reply {
	p, err := catalog.Find(ctx, e.Catalog, ref)
	if err != nil {
		return e.fail(chatID, err)
	}
	if _, err := e.Flow.Select(ctx, userID, p.Key); err != nil {
		e.log().Warn("save conversation state", "user_id", userID, "err", err)
		return one(chatID, render("stock", p))
	}
	r := chat.Reply{ChatID: chatID, Text: render("stock", p) + "\n\nMau pesan kak?", Format: chat.FormatMarkdown}
	r.Buttons = interestButtons(p.Key)
	return []chat.Reply{r}
}

func (e *Engine) selectProduct(ctx context.Context, userID, chatID, key string) []chat.Reply {
	p, err := e.Catalog.GetProduct(ctx, key)
	if err != nil {
		return e.fail(chatID, err)
	}
	if _, err := e.Flow.Select(ctx, userID, p.Key); err != nil {
		return e.fail(chatID, err)
	}
	r := chat.Reply{ChatID: chatID, Text: render("ask_interest", p), Format: chat.FormatMarkdown}
	r.Buttons = interestButtons(p.Key)
	return []chat.Reply{r}
}

func interestButtons(key string) [][]chat.Button {
	return [][]chat.Button{{
		chat.NewAction(chat.ActionInterestYes, key).Button("✅ Mau"),
		chat.NewAction(chat.ActionInterestNo, key).Button("❌ Tidak"),
	}}
}

func (e *Engine) interest(ctx context.Context, userID, chatID, key string, yes bool) []chat.Reply {
	st, err := e.Flow.Interest(ctx, userID, key, yes)
	if err != nil {
		return e.fail(chatID, err)
	}
	if !yes {
		return one(chatID, render("flow_cancelled", nil))
	}
	p, err := e.Catalog.GetProduct(ctx, st.ProductKey)
	if err != nil {
		_ = e.Flow.States.Clear(ctx, userID)
		return e.fail(chatID, err)
	}
	r := chat.Reply{ChatID: chatID, Text: render("ask_quantity", p), Format: chat.FormatMarkdown}
	r.Buttons = [][]chat.Button{{chat.NewAction(chat.ActionCancelFlow, userID).Button("Batal")}}
	return []chat.Reply{r}
}

func (e *Engine) quantity(ctx context.Context, userID, chatID, input string) []chat.Reply {
	st, err := e.Flow.Quantity(ctx, userID, input)
	if errors.Is(err, convo.ErrNotAQuantity) {
		r := chat.Reply{ChatID: chatID, Text: render("reprompt", nil), Format: chat.FormatMarkdown}
		r.Buttons = [][]chat.Button{{chat.NewAction(chat.ActionCancelFlow, userID).Button("Batal")}}
		return []chat.Reply{r}
	}
	if err != nil {
		return e.fail(chatID, err)
	}

	p, err := e.Catalog.GetProduct(ctx, st.ProductKey)
	if err != nil {
		return e.fail(chatID, err)
	}
	r := chat.Reply{
		ChatID: chatID,
		Text: render("confirm", struct {
			Name            string
			Quantity, Total int
		}{p.Name, st.Quantity, p.UnitPrice * st.Quantity}),
		Format: chat.FormatMarkdown,
		Buttons: [][]chat.Button{{
			chat.ConfirmOrder(p.Key, st.Quantity, userID).Button("✅ Pesan"),
			chat.NewAction(chat.ActionCancelFlow, userID).Button("❌ Batal"),
		}},
	}
	return []chat.Reply{r}
}

func (e *Engine) confirm(ctx context.Context, userID, chatID, key string, qty int) []chat.Reply {
	var replies []chat.Reply
	err := e.Flow.Confirm(ctx, userID, key, qty, func(st convo.State) error {
		q := st.Quantity
		o, err := e.Orders.PlaceOrder(ctx, orders.PlaceOrderRequest{
			UserID: userID, OriginChat: chatID, ProductRef: st.ProductKey, Quantity: &q,
		})
		if err != nil {
			return err
		}
		replies = e.placed(chatID, o)
		return nil
	})
	if err != nil {
		return e.fail(chatID, err)
	}
	return replies
}

func (e *Engine) placeOrder(ctx context.Context, userID, chatID, ref string, qty *int) []chat.Reply {
	o, err := e.Orders.PlaceOrder(ctx, orders.PlaceOrderRequest{
		UserID: userID, OriginChat: chatID, ProductRef: ref, Quantity: qty,
	})
	if err != nil {
		return e.fail(chatID, err)
	}
	// pesanan langsung menggantikan dialog yang sedang berjalan
	if err := e.Flow.States.Clear(ctx, userID); err != nil {
		e.log().Warn("clear conversation state", "user_id", userID, "err", err)
	}
	return e.placed(chatID, o)
}

func (e *Engine) placed(chatID string, o orders.Order) []chat.Reply {
	now := e.now()
	data := struct {
		Order    orders.Order
		Open     bool
		NextOpen string
	}{Order: o, Open: true}
	if e.Hours != nil && !e.Hours.IsWithinServiceWindow(now) {
		data.Open = false
		next := e.Hours.NextWindowOpen(now)
		data.NextOpen = next.Format("15:04")
		if local := now.In(next.Location()); local.YearDay() != next.YearDay() {
			data.NextOpen = "besok " + data.NextOpen
		}
	}
	r := chat.Reply{ChatID: chatID, Text: render("placed", data), Format: chat.FormatMarkdown}
	r.Buttons = [][]chat.Button{{chat.NewAction(chat.ActionCancelOrder, o.ID).Button("Batalkan pesanan")}}
	return []chat.Reply{r}
}

func (e *Engine) cancelFlow(ctx context.Context, userID, chatID string) []chat.Reply {
	if err := e.Flow.Cancel(ctx, userID); err != nil {
		return e.fail(chatID, err)
	}
	return one(chatID, render("flow_cancelled", nil))
}

func (e *Engine) cancelOrder(ctx context.Context, userID, chatID, orderID string) []chat.Reply {
	o, err := e.Orders.CancelOrder(ctx, userID, orderID, e.Approvals.IsAdmin(userID))
	if err != nil {
		return e.fail(chatID, err)
	}
	return one(chatID, render("order_cancelled", o))
}

func (e *Engine) approve(ctx context.Context, adminID, chatID, orderID string) []chat.Reply {
	if !e.Approvals.IsAdmin(adminID) {
		return one(chatID, render("admin_only", nil))
	}
	o, err := e.Approvals.Approve(ctx, adminID, orderID)
	var stockErr *catalog.InsufficientStockError
	switch {
	case err == nil:
		return one(chatID, render("approved_ack", o))
	case errors.As(err, &stockErr):
		return one(chatID, render("auto_rejected_ack", struct {
			ID                  string
			Name                string
			Available, Required int
		}{o.ID, stockErr.Name, stockErr.Available, stockErr.Required}))
	}
	return e.fail(chatID, err)
}

func (e *Engine) reject(ctx context.Context, adminID, chatID, orderID string) []chat.Reply {
	if !e.Approvals.IsAdmin(adminID) {
		return one(chatID, render("admin_only", nil))
	}
	o, err := e.Approvals.Reject(ctx, adminID, orderID)
	if err != nil {
		return e.fail(chatID, err)
	}
	return one(chatID, render("rejected_ack", o))
}

// fail maps an error kind to its templated reply. Unexpected errors are
// logged and answered generically.
func (e *Engine) fail(chatID string, err error) []chat.Reply {
	var (
		stockErr *catalog.InsufficientStockError
		transErr *orders.TransitionError
	)
	switch {
	case errors.As(err, &stockErr):
		return one(chatID, render("insufficient", stockErr))
	case errors.Is(err, catalog.ErrProductNotFound):
		return one(chatID, render("not_found", e.suggestions()))
	case errors.Is(err, orders.ErrInvalidQuantity):
		return one(chatID, render("invalid_qty", nil))
	// Forbidden dijawab sama dengan not found supaya keberadaan order orang lain tidak bocor.
	case errors.Is(err, orders.ErrOrderNotFound), errors.Is(err, orders.ErrForbidden):
		return one(chatID, render("order_not_found", nil))
	case errors.As(err, &transErr):
		return one(chatID, render("already_terminal", struct {
			ID     string
			Status orders.Status
		}{transErr.OrderID, transErr.Current}))
	case errors.Is(err, orders.ErrAlreadyTerminal):
		return one(chatID, render("already_terminal", struct {
			ID     string
			Status orders.Status
		}{}))
	case errors.Is(err, convo.ErrNoPendingFlow):
		return one(chatID, render("start_over", nil))
	case errors.Is(err, chat.ErrMalformedAction):
		return one(chatID, render("invalid_action", nil))
	}
	e.log().Error("handle event", "chat_id", chatID, "err", err)
	return one(chatID, render("failure", nil))
}

func (e *Engine) suggestions() string {
	products, err := e.Catalog.ListProducts(context.Background())
	if err != nil {
		return ""
	}
	return catalog.Summary(products)
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) log() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

func text(chatID, body string) chat.Reply {
	return chat.Reply{ChatID: chatID, Text: body, Format: chat.FormatMarkdown}
}

func one(chatID, body string) []chat.Reply {
	return []chat.Reply{text(chatID, body)}
}

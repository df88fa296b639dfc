package approval

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-roti-bot/internal/catalog"
	"github.com/ariefcatur/go-roti-bot/internal/chat"
	"github.com/ariefcatur/go-roti-bot/internal/memory"
	"github.com/ariefcatur/go-roti-bot/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
)

type recordingSink struct {
	mu      sync.Mutex
	replies []chat.Reply
	err     error
}

func (s *recordingSink) Send(_ context.Context, r chat.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, r)
	return s.err
}

func (s *recordingSink) to(chatID string) []chat.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []chat.Reply
	for _, r := range s.replies {
		if r.ChatID == chatID {
			out = append(out, r)
		}
	}
	return out
}

type fixture struct {
	store *memory.Store
	sink  *recordingSink
	wf    *Workflow
	mgr   *orders.Manager
}

func newFixture(stock int) *fixture {
	store := memory.NewStore(catalog.Product{Key: "premium", Name: "Roti Premium", UnitPrice: 12000, Stock: stock})
	sink := &recordingSink{}
	wf := &Workflow{Orders: store, Sink: sink, AdminID: "admin", AdminChatID: "admin-chat"}
	mgr := &orders.Manager{Catalog: store, Orders: store, Notifier: wf}
	return &fixture{store: store, sink: sink, wf: wf, mgr: mgr}
}

func (f *fixture) place(t *testing.T, n int) orders.Order {
	t.Helper()
	o, err := f.mgr.PlaceOrder(context.Background(), orders.PlaceOrderRequest{
		UserID: "u1", OriginChat: "c1", ProductRef: "premium", Quantity: &n,
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) stock(t *testing.T) int {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), "premium")
	require.NoError(t, err)
	return p.Stock
}

func TestOrderPlaced_NotifiesAdminWithButtons(t *testing.T) {
	f := newFixture(10)
	o := f.place(t, 2)

	notes := f.sink.to("admin-chat")
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Text, "Order Baru")
	assert.Contains(t, notes[0].Text, o.ID)
	assert.Contains(t, notes[0].Text, "Rp24.000")
	require.Len(t, notes[0].Buttons, 1)
	assert.Equal(t, "admin_approve|"+o.ID, notes[0].Buttons[0][0].Action)
	assert.Equal(t, "admin_reject|"+o.ID, notes[0].Buttons[0][1].Action)
}

func TestApprove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(10)
	o := f.place(t, 2)
	assert.Equal(t, 10, f.stock(t))

	approved, err := f.wf.Approve(ctx, "admin", o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusApproved, approved.Status)
	assert.Equal(t, 8, f.stock(t))

	owner := f.sink.to("c1")
	require.Len(t, owner, 1)
	assert.Contains(t, owner[0].Text, "disetujui")

	// double click
	_, err = f.wf.Approve(ctx, "admin", o.ID)
	assert.ErrorIs(t, err, orders.ErrAlreadyTerminal)
	assert.Equal(t, 8, f.stock(t))
	_, err = f.wf.Reject(ctx, "admin", o.ID)
	assert.ErrorIs(t, err, orders.ErrAlreadyTerminal)
	assert.Len(t, f.sink.to("c1"), 1)
}

func TestApprove_ForbiddenDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(10)
	o := f.place(t, 2)

	_, err := f.wf.Approve(ctx, "u1", o.ID)
	assert.ErrorIs(t, err, orders.ErrForbidden)
	_, err = f.wf.Reject(ctx, "u1", o.ID)
	assert.ErrorIs(t, err, orders.ErrForbidden)
	// same answer whether or not the order exists
	_, err = f.wf.Approve(ctx, "u1", "INV-NOPE")
	assert.ErrorIs(t, err, orders.ErrForbidden)

	got, _ := f.store.GetOrder(ctx, o.ID)
	assert.Equal(t, orders.StatusPending, got.Status)
	assert.Equal(t, 10, f.stock(t))
}

func TestApprove_StockDroppedSincePlacement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(10)
	o := f.place(t, 5)
	_, err := f.store.SetProductStock(ctx, "premium", 3)
	require.NoError(t, err)

	got, err := f.wf.Approve(ctx, "admin", o.ID)
	var stockErr *catalog.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 3, stockErr.Available)
	assert.Equal(t, orders.StatusRejected, got.Status)
	assert.Equal(t, 3, f.stock(t))

	owner := f.sink.to("c1")
	require.Len(t, owner, 1)
	assert.Contains(t, owner[0].Text, "tinggal 3")
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(10)
	o := f.place(t, 1)

	got, err := f.wf.Reject(ctx, "admin", o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusRejected, got.Status)
	assert.Equal(t, 10, f.stock(t))
	assert.Contains(t, f.sink.to("c1")[0].Text, "ditolak")

	_, err = f.wf.Approve(ctx, "admin", o.ID)
	assert.ErrorIs(t, err, orders.ErrAlreadyTerminal)
}

func TestApproveAfterCancelRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(10)
	o := f.place(t, 4)

	var wg sync.WaitGroup
	var approveErr, cancelErr error
	wg.Add(2)
	go func() { defer wg.Done(); _, approveErr = f.wf.Approve(ctx, "admin", o.ID) }()
	go func() { defer wg.Done(); _, cancelErr = f.mgr.CancelOrder(ctx, "u1", o.ID, false) }()
	wg.Wait()

	// exactly one wins
	assert.True(t, (approveErr == nil) != (cancelErr == nil), "approve=%v cancel=%v", approveErr, cancelErr)
	got, _ := f.store.GetOrder(ctx, o.ID)
	if approveErr == nil {
		assert.Equal(t, orders.StatusApproved, got.Status)
		assert.Equal(t, 6, f.stock(t))
		assert.ErrorIs(t, cancelErr, orders.ErrAlreadyTerminal)
	} else {
		assert.Equal(t, orders.StatusCancelled, got.Status)
		assert.Equal(t, 10, f.stock(t))
		assert.ErrorIs(t, approveErr, orders.ErrAlreadyTerminal)
	}
}

func TestNotifyFailureIsSwallowed(t *testing.T) {
	f := newFixture(10)
	f.sink.err = errors.New("transport down")
	o := f.place(t, 1)

	_, err := f.wf.Approve(context.Background(), "admin", o.ID)
	assert.NoError(t, err)
}

func TestOrderCancelled_NotifiesOtherParty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(10)

	byOwner := f.place(t, 1)
	_, err := f.mgr.CancelOrder(ctx, "u1", byOwner.ID, false)
	require.NoError(t, err)
	admin := f.sink.to("admin-chat")
	assert.Contains(t, admin[len(admin)-1].Text, "dibatalkan oleh pemilik")

	byAdmin := f.place(t, 1)
	_, err = f.mgr.CancelOrder(ctx, "admin", byAdmin.ID, true)
	require.NoError(t, err)
	owner := f.sink.to("c1")
	assert.Contains(t, owner[len(owner)-1].Text, "dibatalkan oleh admin")
}

func TestNotify_PrefersEventOutbox(t *testing.T) {
	f := newFixture(10)
	box := &chat.Outbox{}
	ctx := chat.WithOutbox(context.Background(), box)

	n := 1
	o, err := f.mgr.PlaceOrder(ctx, orders.PlaceOrderRequest{UserID: "u1", OriginChat: "c1", ProductRef: "premium", Quantity: &n})
	require.NoError(t, err)
	_, err = f.wf.Approve(ctx, "admin", o.ID)
	require.NoError(t, err)

	assert.Empty(t, f.sink.to("admin-chat"))
	assert.Empty(t, f.sink.to("c1"))
	got := box.Replies()
	require.Len(t, got, 2)
	assert.Equal(t, "admin-chat", got[0].ChatID)
	assert.Equal(t, "c1", got[1].ChatID)
}

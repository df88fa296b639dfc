package convo

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-roti-bot/internal/catalog"
	"strconv"
	"strings"
)

var (
	// ErrNoPendingFlow: the action does not fit the current step (expired,
	// never started, or superseded). Callers answer with a start-over notice.
	ErrNoPendingFlow = errors.New("no pending order flow")
	// ErrNotAQuantity: input in AwaitingQuantity was not a positive integer.
	ErrNotAQuantity = errors.New("not a quantity")
)

// Flow drives Idle -> AwaitingInterest -> AwaitingQuantity -> AwaitingConfirmation -> Idle.
type Flow struct {
	States  *Tracker
	Catalog catalog.Store
}

// Select records the chosen product and waits for the user's interest.
func (f *Flow) Select(ctx context.Context, userID, productKey string) (State, error) {
	return f.States.Set(ctx, State{UserID: userID, Step: StepAwaitingInterest, ProductKey: productKey})
}

// Interest answers the "mau pesan?" question. A negative answer clears the flow.
func (f *Flow) Interest(ctx context.Context, userID, productKey string, yes bool) (State, error) {
	st, err := f.expect(ctx, userID, StepAwaitingInterest, productKey)
	if err != nil {
		return st, err
	}
	if !yes {
		return Idle(userID), f.States.Clear(ctx, userID)
	}
	st.Step = StepAwaitingQuantity
	return f.States.Set(ctx, st)
}

// Quantity handles the user's quantity input. On short stock the state stays
// in AwaitingQuantity and a *catalog.InsufficientStockError is returned.
func (f *Flow) Quantity(ctx context.Context, userID, input string) (State, error) {
	st, err := f.expect(ctx, userID, StepAwaitingQuantity, "")
	if err != nil {
		return st, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n <= 0 {
		return st, ErrNotAQuantity
	}

	p, err := f.Catalog.GetProduct(ctx, st.ProductKey)
	if errors.Is(err, catalog.ErrProductNotFound) {
		// produk dihapus admin di tengah percakapan
		_ = f.States.Clear(ctx, userID)
		return Idle(userID), err
	}
	if err != nil {
		return st, err
	}
	if p.Stock < n {
		st, err = f.States.Set(ctx, st)
		if err != nil {
			return st, err
		}
		return st, &catalog.InsufficientStockError{ProductKey: p.Key, Name: p.Name, Required: n, Available: p.Stock}
	}

	st.Quantity = n
	st.Step = StepAwaitingConfirmation
	return f.States.Set(ctx, st)
}

// Confirm checks that the user is really waiting to confirm exactly this
// product and quantity, runs place, then clears the state whatever place returned.
func (f *Flow) Confirm(ctx context.Context, userID, productKey string, qty int, place func(State) error) error {
	st, err := f.expect(ctx, userID, StepAwaitingConfirmation, productKey)
	if err != nil {
		return err
	}
	if st.Quantity != qty {
		return ErrNoPendingFlow
	}
	placeErr := place(st)
	if err := f.States.Clear(ctx, userID); err != nil && placeErr == nil {
		return err
	}
	return placeErr
}

// Cancel clears any flow in progress.
func (f *Flow) Cancel(ctx context.Context, userID string) error {
	st, err := f.States.Get(ctx, userID)
	if err != nil {
		return err
	}
	if st.Step == StepIdle {
		return ErrNoPendingFlow
	}
	return f.States.Clear(ctx, userID)
}

func (f *Flow) expect(ctx context.Context, userID string, step Step, productKey string) (State, error) {
	st, err := f.States.Get(ctx, userID)
	if err != nil {
		return st, err
	}
	if st.Step != step || (productKey != "" && st.ProductKey != productKey) {
		return st, ErrNoPendingFlow
	}
	return st, nil
}

package chat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	ActionSelectProduct = "select_product" // select_product|<key>
	ActionInterestYes   = "interest_yes"   // interest_yes|<key>
	ActionInterestNo    = "interest_no"    // interest_no|<key>
	ActionConfirmOrder  = "confirm_order"  // confirm_order|<key>|<qty>|<userId>
	ActionCancelFlow    = "cancel_flow"    // cancel_flow|<userId>
	ActionCancelOrder   = "cancel_order"   // cancel_order|<orderId>
	ActionAdminApprove  = "admin_approve"  // admin_approve|<orderId>
	ActionAdminReject   = "admin_reject"   // admin_reject|<orderId>
)

// MaxTokenLen is the callback payload limit of the chat transport.
const MaxTokenLen = 64

var arity = map[string]int{
	ActionSelectProduct: 1,
	ActionInterestYes:   1,
	ActionInterestNo:    1,
	ActionConfirmOrder:  3,
	ActionCancelFlow:    1,
	ActionCancelOrder:   1,
	ActionAdminApprove:  1,
	ActionAdminReject:   1,
}

var ErrMalformedAction = errors.New("malformed action")

type Action struct {
	Name string
	Args []string
}

func NewAction(name string, args ...string) Action {
	return Action{Name: name, Args: args}
}

func (a Action) Token() string {
	return strings.Join(append([]string{a.Name}, a.Args...), "|")
}

func (a Action) Button(label string) Button {
	return Button{Label: label, Action: a.Token()}
}

// ConfirmOrder builds confirm_order|<key>|<qty>|<userId>.
func ConfirmOrder(productKey string, qty int, userID string) Action {
	return NewAction(ActionConfirmOrder, productKey, strconv.Itoa(qty), userID)
}

// Quantity returns the quantity argument of a confirm_order action.
func (a Action) Quantity() int {
	if a.Name != ActionConfirmOrder || len(a.Args) != 3 {
		return 0
	}
	n, _ := strconv.Atoi(a.Args[1])
	return n
}

// ParseAction validates the token shape: known name, exact arity,
// no empty arguments, and a positive quantity for confirm_order.
func ParseAction(token string) (Action, error) {
	if token == "" || len(token) > MaxTokenLen {
		return Action{}, fmt.Errorf("%w: bad length", ErrMalformedAction)
	}
	parts := strings.Split(token, "|")
	want, ok := arity[parts[0]]
	if !ok {
		return Action{}, fmt.Errorf("%w: unknown action %q", ErrMalformedAction, parts[0])
	}
	if len(parts)-1 != want {
		return Action{}, fmt.Errorf("%w: %s wants %d args, got %d", ErrMalformedAction, parts[0], want, len(parts)-1)
	}
	for _, p := range parts[1:] {
		if strings.TrimSpace(p) == "" || p != strings.TrimSpace(p) {
			return Action{}, fmt.Errorf("%w: empty or padded argument", ErrMalformedAction)
		}
	}
	a := Action{Name: parts[0], Args: parts[1:]}
	if a.Name == ActionConfirmOrder {
		if n, err := strconv.Atoi(a.Args[1]); err != nil || n <= 0 {
			return Action{}, fmt.Errorf("%w: bad quantity %q", ErrMalformedAction, a.Args[1])
		}
	}
	return a, nil
}

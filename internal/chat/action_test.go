package chat

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

func TestParseAction(t *testing.T) {
	a, err := ParseAction("confirm_order|premium|2|42")
	require.NoError(t, err)
	assert.Equal(t, ActionConfirmOrder, a.Name)
	assert.Equal(t, []string{"premium", "2", "42"}, a.Args)
	assert.Equal(t, 2, a.Quantity())

	a, err = ParseAction("admin_approve|INV-261018-ABCDEFGHIJKLMNOP")
	require.NoError(t, err)
	assert.Equal(t, "INV-261018-ABCDEFGHIJKLMNOP", a.Args[0])
}

func TestParseAction_Malformed(t *testing.T) {
	bad := []string{
		"",
		"admin_approve",
		"admin_approve|",
		"admin_approve|a|b",
		"drop_tables|x",
		"confirm_order|premium|0|42",
		"confirm_order|premium|dua|42",
		"confirm_order|premium||42",
		"select_product| premium",
		"select_product|" + strings.Repeat("x", MaxTokenLen),
	}
	for _, token := range bad {
		_, err := ParseAction(token)
		assert.ErrorIs(t, err, ErrMalformedAction, token)
	}
}

func TestActionTokenRoundTrip(t *testing.T) {
	a := ConfirmOrder("premium", 3, "42")
	assert.Equal(t, "confirm_order|premium|3|42", a.Token())
	b := a.Button("Konfirmasi")
	assert.Equal(t, "confirm_order|premium|3|42", b.Action)

	parsed, err := ParseAction(a.Token())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
}

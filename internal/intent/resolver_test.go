package intent

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/ariefcatur/go-roti-bot/internal/catalog"
	"github.com/ariefcatur/go-roti-bot/internal/convo"
	"github.com/ariefcatur/go-roti-bot/internal/memory"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, text, summary string) (Classification, error) {
	args := m.Called(ctx, text, summary)
	return args.Get(0).(Classification), args.Error(1)
}

// blockingClassifier never answers before its context ends.
type blockingClassifier struct{}

func (blockingClassifier) Classify(ctx context.Context, _, _ string) (Classification, error) {
	<-ctx.Done()
	return Classification{}, ctx.Err()
}

func newCatalog() *memory.Store {
	return memory.NewStore(
		catalog.Product{Key: "premium", Name: "Roti Premium", UnitPrice: 12000, Stock: 10},
		catalog.Product{Key: "coklat", Name: "Roti Coklat", UnitPrice: 9000, Stock: 4},
	)
}

func TestResolve_KeywordTier(t *testing.T) {
	r := NewResolver(newCatalog(), nil, 0, nil)
	for _, text := range []string{"menu", "Roti", "lihat menu dong", "DAFTAR MENU?", "katalog"} {
		assert.Equal(t, ListProducts, r.Resolve(context.Background(), text, nil).Intent, text)
	}
}

func TestResolve_OrderPattern(t *testing.T) {
	r := NewResolver(newCatalog(), nil, 0, nil)

	res := r.Resolve(context.Background(), "pesan premium 2", nil)
	assert.Equal(t, Order, res.Intent)
	assert.Equal(t, "premium", res.Product)
	require.NotNil(t, res.Quantity)
	assert.Equal(t, 2, *res.Quantity)

	res = r.Resolve(context.Background(), "Beli roti coklat 12 ya", nil)
	assert.Equal(t, Order, res.Intent)
	assert.Equal(t, "roti coklat", res.Product)
	assert.Equal(t, 12, *res.Quantity)
}

func TestResolve_SlowClassifierFallsBackToCategory(t *testing.T) {
	r := NewResolver(newCatalog(), blockingClassifier{}, 20*time.Millisecond, nil)

	start := time.Now()
	res := r.Resolve(context.Background(), "ada roti gak", nil)
	assert.Equal(t, ListProducts, res.Intent)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResolve_ClassifierAnswer(t *testing.T) {
	c := new(MockClassifier)
	c.On("Classify", mock.Anything, "stok yang premium masih ada?", mock.MatchedBy(func(s string) bool {
		return strings.Contains(s, "premium (Roti Premium)")
	})).Return(Classification{Intent: "ask_stock", Product: "Roti Premium"}, nil)

	r := NewResolver(newCatalog(), c, time.Second, nil)
	res := r.Resolve(context.Background(), "stok yang premium masih ada?", nil)
	assert.Equal(t, AskStock, res.Intent)
	assert.Equal(t, "premium", res.Product)
	assert.Nil(t, res.Quantity)
	c.AssertExpectations(t)
}

func TestResolve_ClassifierErrorFallsThrough(t *testing.T) {
	c := new(MockClassifier)
	c.On("Classify", mock.Anything, mock.Anything, mock.Anything).
		Return(Classification{}, ErrClassifierUnavailable)

	r := NewResolver(newCatalog(), c, time.Second, nil)
	assert.Equal(t, Unknown, r.Resolve(context.Background(), "halo kak", nil).Intent)
	assert.Equal(t, ListProducts, r.Resolve(context.Background(), "kue apa aja", nil).Intent)
}

func TestResolve_FillsProductFromState(t *testing.T) {
	c := new(MockClassifier)
	c.On("Classify", mock.Anything, mock.Anything, mock.Anything).
		Return(Classification{Intent: "ask_stock"}, nil)

	r := NewResolver(newCatalog(), c, time.Second, nil)
	st := &convo.State{UserID: "u1", Step: convo.StepAwaitingInterest, ProductKey: "coklat"}
	res := r.Resolve(context.Background(), "masih ada berapa?", st)
	assert.Equal(t, AskStock, res.Intent)
	assert.Equal(t, "coklat", res.Product)
}

func TestResolve_EmptyText(t *testing.T) {
	r := NewResolver(newCatalog(), nil, 0, nil)
	assert.Equal(t, Unknown, r.Resolve(context.Background(), "   ", nil).Intent)
}

func TestValidate(t *testing.T) {
	products, err := newCatalog().ListProducts(context.Background())
	require.NoError(t, err)

	tests := []struct {
		name    string
		in      Classification
		intent  Kind
		product string
		qty     int // 0 means nil
	}{
		{"unknown intent", Classification{Intent: "buy_everything"}, Unknown, "", 0},
		{"unknown product dropped", Classification{Intent: "order", Product: "croissant", Quantity: json.RawMessage(`2`)}, Order, "", 2},
		{"string quantity", Classification{Intent: "order", Product: "premium", Quantity: json.RawMessage(`"3"`)}, Order, "premium", 3},
		{"qty alias", Classification{Intent: "order", Product: "coklat", Qty: json.RawMessage(`4`)}, Order, "coklat", 4},
		{"negative quantity dropped", Classification{Intent: "order", Product: "premium", Quantity: json.RawMessage(`-1`)}, Order, "premium", 0},
		{"fractional quantity dropped", Classification{Intent: "order", Quantity: json.RawMessage(`1.5`)}, Order, "", 0},
		{"garbage quantity dropped", Classification{Intent: "order", Quantity: json.RawMessage(`"dua"`)}, Order, "", 0},
		{"case insensitive intent", Classification{Intent: " LIST_PRODUCTS "}, ListProducts, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.in, products)
			assert.Equal(t, tt.intent, res.Intent)
			assert.Equal(t, tt.product, res.Product)
			if tt.qty == 0 {
				assert.Nil(t, res.Quantity)
			} else {
				require.NotNil(t, res.Quantity)
				assert.Equal(t, tt.qty, *res.Quantity)
			}
		})
	}
}

func TestParseClassification(t *testing.T) {
	cls, err := ParseClassification(`{"intent":"order","product":"premium","quantity":2}`)
	require.NoError(t, err)
	assert.Equal(t, "order", cls.Intent)

	cls, err = ParseClassification("Berikut hasilnya:\n```json\n{\"intent\":\"list_products\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "list_products", cls.Intent)

	_, err = ParseClassification("saya tidak tahu")
	assert.ErrorIs(t, err, ErrMalformedOutput)

	_, err = ParseClassification("{intent: order")
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestGroqClassifier(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"intent\":\"order\",\"product\":\"premium\",\"qty\":\"2\"}"}}]}`))
	}))
	defer srv.Close()

	g := &GroqClassifier{APIKey: "secret", BaseURL: srv.URL}
	cls, err := g.Classify(context.Background(), "pesen premium dua biji", "premium (Roti Premium)")
	require.NoError(t, err)
	assert.Equal(t, "order", cls.Intent)
	assert.Equal(t, "premium", cls.Product)
	assert.JSONEq(t, `"2"`, string(cls.Qty))

	assert.Equal(t, DefaultGroqModel, got.Model)
	assert.InDelta(t, 0.1, float64(got.Temperature), 1e-6)
	assert.Equal(t, 150, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Contains(t, got.Messages[0].Content, "premium (Roti Premium)")
	assert.Contains(t, got.Messages[0].Content, "pesen premium dua biji")
}

func TestGroqClassifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := &GroqClassifier{APIKey: "secret", BaseURL: srv.URL}
	_, err := g.Classify(context.Background(), "halo", "")
	assert.True(t, errors.Is(err, ErrClassifierUnavailable))
}

func TestGroqClassifier_MalformedContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"maaf saya bingung"}}]}`))
	}))
	defer srv.Close()

	g := &GroqClassifier{APIKey: "secret", BaseURL: srv.URL}
	_, err := g.Classify(context.Background(), "halo", "")
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

// Package intent classifies free text into one of four intents using an
// ordered chain of tiers. Each tier either answers confidently or passes.
package intent

import (
	"context"
	"github.com/ariefcatur/go-roti-bot/internal/catalog"
	"github.com/ariefcatur/go-roti-bot/internal/convo"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Kind string

const (
	ListProducts Kind = "list_products"
	Order        Kind = "order"
	AskStock     Kind = "ask_stock"
	Unknown      Kind = "unknown"
)

type Result struct {
	Intent   Kind
	Product  string // product key once validated, or the raw phrase from the order pattern
	Quantity *int   // nil when not given
}

// Tier returns ok=false to pass to the next tier.
type Tier func(ctx context.Context, text string) (res Result, ok bool)

type Resolver struct {
	Tiers []Tier
}

// NewResolver builds the standard chain: keywords, order pattern, classifier
// (skipped when c is nil), category fallback.
func NewResolver(cat catalog.Store, c Classifier, timeout time.Duration, log *slog.Logger) *Resolver {
	tiers := []Tier{KeywordTier(), OrderPatternTier()}
	if c != nil {
		tiers = append(tiers, ClassifierTier(c, cat, timeout, log))
	}
	tiers = append(tiers, CategoryTier())
	return &Resolver{Tiers: tiers}
}

// Resolve runs the tiers in order. An in-progress selection fills in the
// product when the text asks about stock or orders without naming one.
func (r *Resolver) Resolve(ctx context.Context, text string, st *convo.State) Result {
	text = strings.TrimSpace(text)
	res := Result{Intent: Unknown}
	if text == "" {
		return res
	}
	for _, tier := range r.Tiers {
		if got, ok := tier(ctx, text); ok {
			res = got
			break
		}
	}
	if st != nil && st.ProductKey != "" && res.Product == "" && (res.Intent == Order || res.Intent == AskStock) {
		res.Product = st.ProductKey
	}
	return res
}

var (
	listExact    = []string{"menu", "roti", "menu roti", "lihat menu", "daftar menu", "produk", "katalog"}
	listContains = []string{"lihat menu", "daftar menu", "lihat produk"}
)

// KeywordTier answers ListProducts for the fixed browse vocabulary.
func KeywordTier() Tier {
	return func(_ context.Context, text string) (Result, bool) {
		q := strings.Join(strings.Fields(strings.ToLower(text)), " ")
		q = strings.TrimRight(q, "?!. ")
		for _, w := range listExact {
			if q == w {
				return Result{Intent: ListProducts}, true
			}
		}
		for _, w := range listContains {
			if strings.Contains(q, w) {
				return Result{Intent: ListProducts}, true
			}
		}
		return Result{}, false
	}
}

var orderPattern = regexp.MustCompile(`^(?:pesan|beli|order)\s+([a-z0-9_\- ]+)\s+(\d+)\b`)

// OrderPatternTier parses "pesan <produk> <jumlah>".
func OrderPatternTier() Tier {
	return func(_ context.Context, text string) (Result, bool) {
		m := orderPattern.FindStringSubmatch(strings.ToLower(text))
		if m == nil {
			return Result{}, false
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return Result{}, false
		}
		return Result{Intent: Order, Product: strings.TrimSpace(m[1]), Quantity: &n}, true
	}
}

var categoryWords = []string{"ada roti", "roti", "menu", "lihat", "produk", "kue"}

// CategoryTier is the last resort: any category word means the user wants the list.
func CategoryTier() Tier {
	return func(_ context.Context, text string) (Result, bool) {
		q := strings.ToLower(text)
		for _, w := range categoryWords {
			if strings.Contains(q, w) {
				return Result{Intent: ListProducts}, true
			}
		}
		return Result{}, false
	}
}

package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-roti-bot/internal/catalog"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	ErrMalformedOutput       = errors.New("malformed classifier output")
)

// Classification is the raw, unvalidated answer of a classifier.
type Classification struct {
	Intent   string          `json:"intent"`
	Product  string          `json:"product,omitempty"`
	Quantity json.RawMessage `json:"quantity,omitempty"`
	Qty      json.RawMessage `json:"qty,omitempty"` // model kadang pakai "qty"
}

type Classifier interface {
	Classify(ctx context.Context, text, catalogSummary string) (Classification, error)
}

const DefaultClassifierTimeout = 4 * time.Second

// ClassifierTier asks the external classifier under a bounded timeout.
// Failures, timeouts and Unknown answers pass to the next tier.
func ClassifierTier(c Classifier, cat catalog.Store, timeout time.Duration, log *slog.Logger) Tier {
	if timeout <= 0 {
		timeout = DefaultClassifierTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return func(ctx context.Context, text string) (Result, bool) {
		products, err := cat.ListProducts(ctx)
		if err != nil {
			log.Warn("classifier tier: list products", "err", err)
			return Result{}, false
		}

		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		type answer struct {
			cls Classification
			err error
		}
		done := make(chan answer, 1)
		go func() {
			cls, err := c.Classify(cctx, text, catalog.Summary(products))
			done <- answer{cls, err}
		}()

		var a answer
		select {
		case a = <-done:
		case <-cctx.Done():
			a.err = fmt.Errorf("%w: %v", ErrClassifierUnavailable, cctx.Err())
		}
		if a.err != nil {
			log.Warn("classifier failed, falling back", "err", a.err)
			return Result{}, false
		}

		res := Validate(a.cls, products)
		if res.Intent == Unknown {
			return res, false
		}
		return res, true
	}
}

// Validate maps a raw classification onto a Result: unknown intents become
// Unknown, products the catalog does not know are dropped, and quantities
// other than positive integers are dropped.
func Validate(cls Classification, products []catalog.Product) Result {
	res := Result{Intent: Unknown}
	switch k := Kind(strings.ToLower(strings.TrimSpace(cls.Intent))); k {
	case ListProducts, Order, AskStock:
		res.Intent = k
	default:
		return res
	}
	if cls.Product != "" {
		if p, ok := catalog.Match(products, cls.Product); ok {
			res.Product = p.Key
		}
	}
	raw := cls.Quantity
	if len(raw) == 0 {
		raw = cls.Qty
	}
	if n, ok := positiveInt(raw); ok {
		res.Quantity = &n
	}
	return res
}

const maxQuantity = 10000

func positiveInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if f >= 1 && f <= maxQuantity && f == math.Trunc(f) {
			return int(f), true
		}
		return 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && n >= 1 && n <= maxQuantity {
			return n, true
		}
	}
	return 0, false
}

// ParseClassification reads a model reply: strict JSON first, then the
// first {...} block inside surrounding prose or code fences.
func ParseClassification(content string) (Classification, error) {
	var cls Classification
	content = strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(content), &cls); err == nil {
		return cls, nil
	}
	start, end := strings.Index(content, "{"), strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return Classification{}, fmt.Errorf("%w: no json object", ErrMalformedOutput)
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &cls); err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return cls, nil
}

package intent

import (
	"context"
	"errors"
	"fmt"
	"github.com/sashabaranov/go-openai"
	"net/http"
	"strings"
)

const (
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
	DefaultGroqModel   = "llama-3.1-8b-instant"
)

// GroqClassifier talks to Groq through its OpenAI-compatible API.
type GroqClassifier struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
}

const promptTemplate = `Kamu adalah AI untuk bot toko roti.
Tugas:
- Tentukan intent user salah satu dari: list_products, order, ask_stock, unknown
- Jika intent = order atau ask_stock, berikan product (key dari daftar produk) dan quantity (angka) bila disebut
Balas HANYA JSON tanpa teks lain.

Daftar produk: %s

Contoh:
User: apa ada roti
{"intent":"list_products"}

User: pesan roti premium 2
{"intent":"order","product":"premium","quantity":2}

User sekarang: %s
`

func (g *GroqClassifier) Classify(ctx context.Context, text, catalogSummary string) (Classification, error) {
	resp, err := g.client().CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model(),
		Temperature: 0.1,
		MaxTokens:   150,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: fmt.Sprintf(promptTemplate, catalogSummary, text),
		}},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return Classification{}, fmt.Errorf("%w: status %d: %s", ErrClassifierUnavailable, apiErr.HTTPStatusCode, apiErr.Message)
		}
		return Classification{}, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Classification{}, fmt.Errorf("%w: empty content", ErrMalformedOutput)
	}
	return ParseClassification(resp.Choices[0].Message.Content)
}

func (g *GroqClassifier) client() *openai.Client {
	cfg := openai.DefaultConfig(g.APIKey)
	cfg.BaseURL = DefaultGroqBaseURL
	if g.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(g.BaseURL, "/")
	}
	if g.HTTP != nil {
		cfg.HTTPClient = g.HTTP
	}
	return openai.NewClientWithConfig(cfg)
}

func (g *GroqClassifier) model() string {
	if g.Model != "" {
		return g.Model
	}
	return DefaultGroqModel
}

package catalog

import (
	"errors"
	"fmt"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"regexp"
	"strconv"
	"strings"
)

// Usage strings for the admin catalog commands.
const (
	UsageAddProduct    = "/addproduct key|nama|deskripsi|harga|stok[|gambar]"
	UsageSetStock      = "/setstock key|stok"
	UsageSetPrice      = "/setprice key|harga"
	UsageDeleteProduct = "/delproduct key"
)

// MaxKeyLen menjaga action token tombol tetap di bawah batas 64 byte transport.
const MaxKeyLen = 24

var ErrMalformedPayload = errors.New("malformed payload")

var keyPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ParseProduct parses key|name|description|price|stock[|imageRef].
// Nothing is returned unless every field is valid.
func ParseProduct(payload string) (Product, error) {
	parts := splitPayload(payload)
	if len(parts) != 5 && len(parts) != 6 {
		return Product{}, fmt.Errorf("%w: want 5 or 6 fields, got %d", ErrMalformedPayload, len(parts))
	}
	key, err := parseKey(parts[0])
	if err != nil {
		return Product{}, err
	}
	if parts[1] == "" {
		return Product{}, fmt.Errorf("%w: empty name", ErrMalformedPayload)
	}
	price, err := parseAmount("price", parts[3])
	if err != nil {
		return Product{}, err
	}
	stock, err := parseAmount("stock", parts[4])
	if err != nil {
		return Product{}, err
	}
	p := Product{Key: key, Name: parts[1], Description: parts[2], UnitPrice: price, Stock: stock}
	if len(parts) == 6 {
		p.ImageRef = parts[5]
	}
	return p, nil
}

// ParseStockUpdate parses key|stock.
func ParseStockUpdate(payload string) (string, int, error) {
	return parseKeyAmount("stock", payload)
}

// ParsePriceUpdate parses key|price.
func ParsePriceUpdate(payload string) (string, int, error) {
	return parseKeyAmount("price", payload)
}

func ParseKey(payload string) (string, error) {
	parts := splitPayload(payload)
	if len(parts) != 1 {
		return "", fmt.Errorf("%w: want a single key", ErrMalformedPayload)
	}
	return parseKey(parts[0])
}

func parseKeyAmount(field, payload string) (string, int, error) {
	parts := splitPayload(payload)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("%w: want key|%s", ErrMalformedPayload, field)
	}
	key, err := parseKey(parts[0])
	if err != nil {
		return "", 0, err
	}
	n, err := parseAmount(field, parts[1])
	if err != nil {
		return "", 0, err
	}
	return key, n, nil
}

func splitPayload(payload string) []string {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}
	parts := strings.Split(payload, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseKey(s string) (string, error) {
	key := strings.ToLower(s)
	if key == "" || len(key) > MaxKeyLen || !keyPattern.MatchString(key) {
		return "", fmt.Errorf("%w: invalid key %q", ErrMalformedPayload, s)
	}
	return key, nil
}

func parseAmount(field, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrMalformedPayload, field, s)
	}
	return n, nil
}

var idr = message.NewPrinter(language.Indonesian)

// FormatPrice renders an amount the Indonesian way, e.g. Rp12.000.
func FormatPrice(amount int) string {
	return idr.Sprintf("Rp%d", amount)
}

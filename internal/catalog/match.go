package catalog

import (
	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"strings"
	"unicode"
)

// Normalize lowercases s, strips diacritics and collapses every run of
// non-alphanumeric characters into a single space.
func Normalize(s string) string {
	// transformer punya state, jadi dibuat per panggilan
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, strings.ToLower(s)); err == nil {
		s = out
	} else {
		s = strings.ToLower(s)
	}

	var b strings.Builder
	gap := false
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			gap = true
			continue
		}
		if gap && b.Len() > 0 {
			b.WriteByte(' ')
		}
		gap = false
		b.WriteRune(r)
	}
	return b.String()
}

// Match resolves term against products in their given order:
// exact key, then substring of the product name, then the closest key or
// name by edit distance within max(2, 40% of the term length).
// Ties go to the earlier product.
func Match(products []Product, term string) (Product, bool) {
	q := Normalize(term)
	if q == "" {
		return Product{}, false
	}
	raw := strings.ToLower(strings.TrimSpace(term))

	for _, p := range products {
		if p.Key == raw || Normalize(p.Key) == q {
			return p, true
		}
	}
	for _, p := range products {
		if strings.Contains(Normalize(p.Name), q) {
			return p, true
		}
	}

	tolerance := max(2, len([]rune(q))*4/10)
	best, bestDist := -1, 0
	for i, p := range products {
		for _, cand := range [...]string{Normalize(p.Key), Normalize(p.Name)} {
			if d := levenshtein.ComputeDistance(q, cand); best < 0 || d < bestDist {
				best, bestDist = i, d
			}
		}
	}
	if best >= 0 && bestDist <= tolerance {
		return products[best], true
	}
	return Product{}, false
}

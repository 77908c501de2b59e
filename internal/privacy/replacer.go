package privacy

import (
	"crypto/md5" // #nosec G501 -- MD5 used for deterministic placeholders, not cryptographic security
	"fmt"
	"strings"
	"sync"
)

// placeholderPrefixes mark text that is already a placeholder and must not be
// matched again by a later rule.
var placeholderPrefixes = []string{"XX", "ANON_", "user", "ACCT", "WALLET", "TX", "REF", "ID"}

// IsPlaceholder reports whether s starts with a known placeholder prefix.
func IsPlaceholder(s string) bool {
	for _, p := range placeholderPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

type mappingKey struct {
	category Category
	original string
}

// Generator hands out deterministic placeholders. One generator spans one
// anonymization run; every value seen in the run maps to the same placeholder.
// It is safe for concurrent use.
type Generator struct {
	mu       sync.Mutex
	counters map[Category]int
	mapping  map[mappingKey]string
}

// NewGenerator returns a generator with empty counters and mappings.
func NewGenerator() *Generator {
	return &Generator{
		counters: make(map[Category]int),
		mapping:  make(map[mappingKey]string),
	}
}

// ReplacementFor returns the placeholder for original under category,
// creating it on first sight.
func (g *Generator) ReplacementFor(category Category, original string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := mappingKey{category: category, original: original}
	if existing, ok := g.mapping[key]; ok {
		return existing
	}

	g.counters[category]++
	placeholder := render(category, original, g.counters[category])
	g.mapping[key] = placeholder
	return placeholder
}

// Size returns the number of distinct values mapped so far.
func (g *Generator) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.mapping)
}

func render(category Category, original string, counter int) string {
	switch category {
	case CategoryPhone:
		return fmt.Sprintf("+XX-XXX-XXX-%04d", counter)
	case CategoryEmail:
		return fmt.Sprintf("user%04d@anonymized.com", counter)
	case CategoryOTP:
		return fmt.Sprintf("XX%04d", counter)
	case CategoryDateOfBirth:
		return fmt.Sprintf("XX/XX/%d", 1900+counter%50)
	case CategoryNationalID:
		return "ID" + shortHash(category, original)
	case CategoryBankAccount:
		return fmt.Sprintf("ACCT%012d", counter)
	case CategoryCreditCard:
		return fmt.Sprintf("XXXX-XXXX-XXXX-%04d", counter)
	case CategoryWalletAddress:
		return "WALLET" + shortHash(category, original)
	case CategoryTransactionID:
		return "TX" + shortHash(category, original)
	case CategoryReferenceNumber:
		return "REF" + shortHash(category, original)
	default:
		return fmt.Sprintf("ANON_%s_%d", strings.ToUpper(string(category)), counter)
	}
}

// shortHash is the first 8 hex characters of md5(category_original),
// uppercased.
func shortHash(category Category, original string) string {
	sum := md5.Sum([]byte(string(category) + "_" + original)) // #nosec G401 -- deterministic token, not crypto
	return strings.ToUpper(fmt.Sprintf("%x", sum)[:8])
}

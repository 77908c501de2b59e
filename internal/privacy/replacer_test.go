package privacy

import (
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplacementFor(t *testing.T) {
	g := NewGenerator()

	assert.Equal(t, "+XX-XXX-XXX-0001", g.ReplacementFor(CategoryPhone, "555-123-4567"))
	assert.Equal(t, "+XX-XXX-XXX-0002", g.ReplacementFor(CategoryPhone, "212-555-0188"))
	assert.Equal(t, "+XX-XXX-XXX-0001", g.ReplacementFor(CategoryPhone, "555-123-4567"))

	assert.Equal(t, "user0001@anonymized.com", g.ReplacementFor(CategoryEmail, "a@b.co"))
	assert.Equal(t, "XX0001", g.ReplacementFor(CategoryOTP, "123456"))
	assert.Equal(t, "XX/XX/1901", g.ReplacementFor(CategoryDateOfBirth, "01/01/1980"))
	assert.Equal(t, "ACCT000000000001", g.ReplacementFor(CategoryBankAccount, "12345678"))
	assert.Equal(t, "XXXX-XXXX-XXXX-0001", g.ReplacementFor(CategoryCreditCard, "4111111111111111"))
	assert.Equal(t, "ANON_PASSPORT_1", g.ReplacementFor(Category("passport"), "X1"))

	hashed := regexp.MustCompile(`^(ID|WALLET|TX|REF)[0-9A-F]{8}$`)
	for _, cat := range []Category{CategoryNationalID, CategoryWalletAddress, CategoryTransactionID, CategoryReferenceNumber} {
		assert.Regexp(t, hashed, g.ReplacementFor(cat, "value"))
	}

	assert.Equal(t, 12, g.Size())
}

func TestReplacementForHashIsPure(t *testing.T) {
	a := NewGenerator().ReplacementFor(CategoryNationalID, "B1234567")
	b := NewGenerator().ReplacementFor(CategoryNationalID, "B1234567")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, NewGenerator().ReplacementFor(CategoryNationalID, "B7654321"))
	assert.Equal(t, "ID"+shortHash(CategoryNationalID, "B1234567"), a)
}

func TestReplacementForDateWraps(t *testing.T) {
	g := NewGenerator()
	var last string
	for i := 0; i < 50; i++ {
		last = g.ReplacementFor(CategoryDateOfBirth, string(rune('a'+i)))
	}
	assert.Equal(t, "XX/XX/1900", last)
}

func TestReplacementForConcurrent(t *testing.T) {
	g := NewGenerator()
	results := make([]string, 32)

	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = g.ReplacementFor(CategoryEmail, "same@example.com")
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "user0001@anonymized.com", r)
	}
	assert.Equal(t, 1, g.Size())
}

func TestIsPlaceholder(t *testing.T) {
	for _, s := range []string{"XX0001", "ANON_X_1", "user0001@anonymized.com", "ACCT000000000001", "WALLETAB12CD34", "TX0A0B0C0D", "REF12345678", "ID12345678"} {
		assert.True(t, IsPlaceholder(s), s)
	}
	for _, s := range []string{"xx0001", "USER1", "4111111111111111", "jane@example.com"} {
		assert.False(t, IsPlaceholder(s), s)
	}
}

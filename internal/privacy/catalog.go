package privacy

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// AcceptFunc decides whether a raw pattern match at text[start:end] counts.
// Rules use it for the context checks a single RE2 expression cannot make,
// such as "not preceded by" or "followed later on the line by".
type AcceptFunc func(text string, start, end int) bool

// Rule is one detection pattern of the catalog.
type Rule struct {
	Category Category
	Name     string
	Pattern  *regexp.Regexp
	// ValueGroup is the capture group holding the sensitive payload. Zero
	// means the whole match. The whole match is always what gets replaced.
	ValueGroup int
	Accept     AcceptFunc
	Notes      string
}

// Catalog is the ordered set of detection rules per category.
type Catalog struct {
	rules map[Category][]Rule
}

// lookbehindSpan is how far back the "not preceded by" checks look.
const lookbehindSpan = 16

var (
	precededByPrefixDash = regexp.MustCompile(`(?i)[a-z]{2}-$`)
	precededByChat       = regexp.MustCompile(`(?i)chat[\s_#]$`)
	precededByCase       = regexp.MustCompile(`(?i)case[\s_#]$`)
	precededByIDLabel    = regexp.MustCompile(`(?i)id[\s:]$`)
	precededByHash       = regexp.MustCompile(`#$`)

	otpLabel = regexp.MustCompile(`(?i)otp|code|verification`)

	referenceLead = regexp.MustCompile(`(?i)^(?:ref(?:erence)?|confirmation|booking|receipt)`)
)

// notPrecededBy accepts a match unless the text right before it ends with one
// of the given suffix patterns.
func notPrecededBy(suffixes ...*regexp.Regexp) AcceptFunc {
	return func(text string, start, _ int) bool {
		lo := start - lookbehindSpan
		if lo < 0 {
			lo = 0
		}
		before := text[lo:start]
		for _, re := range suffixes {
			if re.MatchString(before) {
				return false
			}
		}
		return true
	}
}

// labelledLaterOnLine accepts a bare six digit number only when an OTP label
// follows it on the same line.
func labelledLaterOnLine(text string, _, end int) bool {
	rest := text[end:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	return otpLabel.MatchString(rest)
}

// valueHasDigit rejects label-shaped words such as "reference number". The
// label part of a match never holds digits, so the whole span is checked.
func valueHasDigit(text string, start, end int) bool {
	return strings.ContainsAny(text[start:end], "0123456789")
}

// referenceCode accepts a labelled code with at least one digit unless the
// word after the leading label is an earlier placeholder. The optional "id"
// label would otherwise absorb the prefix of an ID placeholder.
func referenceCode(text string, start, end int) bool {
	if !valueHasDigit(text, start, end) {
		return false
	}
	span := text[start:end]
	loc := referenceLead.FindStringIndex(span)
	if loc == nil {
		return true
	}
	word := strings.TrimLeft(span[loc[1]:], " \t:#")
	if i := strings.IndexAny(word, " \t:#"); i >= 0 {
		word = word[:i]
	}
	return !(IsPlaceholder(word) && strings.ContainsAny(word, "0123456789"))
}

type ruleSpec struct {
	category Category
	name     string
	expr     string
	group    int
	accept   AcceptFunc
	notes    string
}

// defaultRules is the catalog table. Every expression is compiled
// case-insensitively.
var defaultRules = []ruleSpec{
	{CategoryPhone, "phone_nanp", `\b(?:\+?1[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})\b`, 0, nil,
		"North American numbers with optional +1 and separators"},
	{CategoryPhone, "phone_international", `\b(?:\+?[1-9][0-9]{0,3}[-.\s]?)?[0-9]{7,15}\b`, 0, notPrecededBy(precededByPrefixDash),
		"international numbers, not after a PREFIX- identifier"},

	{CategoryEmail, "email", `\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`, 0, nil,
		"standard address shape"},

	{CategoryOTP, "otp_labelled", `\b(?:otp|code|verification)[\s:]*([0-9]{4,8})\b`, 1, nil,
		"4 to 8 digits after an OTP label"},
	{CategoryOTP, "otp_six_digit", `\b([0-9]{6})\b`, 1, labelledLaterOnLine,
		"six digits with an OTP label later on the same line"},

	{CategoryDateOfBirth, "dob_day_first", `\b([0-3]?[0-9])[-/.]([0-1]?[0-9])[-/.]([12][0-9]{3})\b`, 0, nil,
		"DD-MM-YYYY with - / or . separators"},
	{CategoryDateOfBirth, "dob_year_first", `\b([12][0-9]{3})[-/.]([0-1]?[0-9])[-/.]([0-3]?[0-9])\b`, 0, nil,
		"YYYY-MM-DD with - / or . separators"},

	{CategoryNationalID, "national_id_lettered", `\b[a-z]{1,2}[0-9]{6,9}\b`, 0, nil,
		"one or two letters followed by 6 to 9 digits"},
	{CategoryNationalID, "national_id_numeric", `\b[0-9]{9,12}\b`, 0, notPrecededBy(precededByPrefixDash, precededByChat, precededByCase),
		"9 to 12 digits, not after PREFIX-, Chat_ or Case_"},
	{CategoryNationalID, "national_id_letter_eight", `\b[a-z][0-9]{8}\b`, 0, nil,
		"one letter followed by 8 digits"},

	{CategoryBankAccount, "bank_account_numeric", `\b[0-9]{8,20}\b`, 0, notPrecededBy(precededByPrefixDash, precededByChat, precededByIDLabel, precededByHash),
		"8 to 20 digits, not after PREFIX-, Chat, ID or #"},
	{CategoryBankAccount, "iban", `\b[a-z]{2}[0-9]{2}[a-z0-9]{4}[0-9]{7}[a-z0-9]{0,16}\b`, 0, nil,
		"IBAN shape"},

	{CategoryCreditCard, "card_visa", `\b4[0-9]{12}(?:[0-9]{3})?\b`, 0, nil, "Visa"},
	{CategoryCreditCard, "card_mastercard", `\b5[1-5][0-9]{14}\b`, 0, nil, "Mastercard"},
	{CategoryCreditCard, "card_amex", `\b3[47][0-9]{13}\b`, 0, nil, "American Express"},
	{CategoryCreditCard, "card_grouped", `\b[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}\b`, 0, nil,
		"sixteen digits in groups of four"},

	{CategoryWalletAddress, "wallet_bitcoin", `\b[13][a-km-zA-HJ-NP-Z1-9]{25,34}\b`, 0, nil, "Bitcoin base58"},
	{CategoryWalletAddress, "wallet_ethereum", `\b0x[a-f0-9]{40}\b`, 0, nil, "Ethereum"},
	{CategoryWalletAddress, "wallet_tron", `\bT[a-z0-9]{33}\b`, 0, nil, "Tron"},

	{CategoryTransactionID, "tx_hash", `\b[a-f0-9]{64}\b`, 0, nil, "64 hex characters"},
	{CategoryTransactionID, "tx_hash_prefixed", `\b0x[a-f0-9]{64}\b`, 0, nil, "0x and 64 hex characters"},

	{CategoryReferenceNumber, "reference_labelled", `\b(?:ref(?:erence)?|confirmation|booking|receipt)(?:\s*(?:no\.?|number|code|id))?\s*[:#]?\s*([a-z0-9][a-z0-9-]{4,19})\b`, 1, referenceCode,
		"booking or reference codes after a label"},
}

// DefaultCatalog compiles the built-in rule table.
func DefaultCatalog() *Catalog {
	c := &Catalog{rules: make(map[Category][]Rule)}
	for _, rs := range defaultRules {
		c.rules[rs.category] = append(c.rules[rs.category], Rule{
			Category:   rs.category,
			Name:       rs.name,
			Pattern:    regexp.MustCompile(`(?i)` + rs.expr),
			ValueGroup: rs.group,
			Accept:     rs.accept,
			Notes:      rs.notes,
		})
	}
	return c
}

// RulesFor returns the rules of a category in scan order.
func (c *Catalog) RulesFor(cat Category) []Rule {
	return c.rules[cat]
}

// Rules returns every rule in category then rule order.
func (c *Catalog) Rules() []Rule {
	var all []Rule
	for _, cat := range CategoryOrder {
		all = append(all, c.rules[cat]...)
	}
	return all
}

// FindAll returns the submatch index slices of every accepted,
// non-overlapping match in text, leftmost first. A rejected match does not
// consume its span; scanning resumes one character after its start.
func (r Rule) FindAll(text string) [][]int {
	var out [][]int
	pos := 0
	for pos <= len(text) {
		loc := r.Pattern.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		for i := range loc {
			if loc[i] >= 0 {
				loc[i] += pos
			}
		}
		start, end := loc[0], loc[1]

		// Every pattern opens with \b, which the slice start satisfies
		// trivially; confirm it against the full text.
		ok := start > pos || pos == 0 || wordBoundary(text, start)
		if ok && r.Accept != nil {
			ok = r.Accept(text, start, end)
		}

		if !ok {
			pos = start + runeWidth(text, start)
			continue
		}

		out = append(out, loc)
		if end == start {
			end += runeWidth(text, start)
		}
		pos = end
	}
	return out
}

// Value returns the payload of a match located by FindAll.
func (r Rule) Value(text string, loc []int) string {
	g := r.ValueGroup
	if g <= 0 || 2*g+1 >= len(loc) || loc[2*g] < 0 {
		return text[loc[0]:loc[1]]
	}
	return text[loc[2*g]:loc[2*g+1]]
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func wordBoundary(text string, i int) bool {
	before := i > 0 && isWordByte(text[i-1])
	after := i < len(text) && isWordByte(text[i])
	return before != after
}

func runeWidth(text string, i int) int {
	if i >= len(text) {
		return 1
	}
	_, w := utf8.DecodeRuneInString(text[i:])
	return w
}

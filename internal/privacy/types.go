package privacy

// Category tags a class of sensitive personal data.
type Category string

// Sensitive categories, scanned in the order of CategoryOrder.
const (
	CategoryPhone           Category = "phone"
	CategoryEmail           Category = "email"
	CategoryOTP             Category = "otp"
	CategoryDateOfBirth     Category = "date_of_birth"
	CategoryNationalID      Category = "national_id"
	CategoryBankAccount     Category = "bank_account"
	CategoryCreditCard      Category = "credit_card"
	CategoryWalletAddress   Category = "wallet_address"
	CategoryTransactionID   Category = "transaction_id"
	CategoryReferenceNumber Category = "reference_number"
)

// CategoryOrder is the fixed scan priority. A span replaced under an earlier
// category is never re-examined by a later one.
var CategoryOrder = []Category{
	CategoryPhone,
	CategoryEmail,
	CategoryOTP,
	CategoryDateOfBirth,
	CategoryNationalID,
	CategoryBankAccount,
	CategoryCreditCard,
	CategoryWalletAddress,
	CategoryTransactionID,
	CategoryReferenceNumber,
}

// ParseCategory returns the category with the given tag.
func ParseCategory(name string) (Category, bool) {
	for _, c := range CategoryOrder {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// Replacement records a single redacted span.
type Replacement struct {
	Category    Category `json:"type" yaml:"type"`
	Original    string   `json:"original,omitempty" yaml:"original,omitempty"`
	Replacement string   `json:"replacement" yaml:"replacement"`
	// Position is the byte offset of the span in the buffer at the time it was
	// replaced.
	Position int `json:"position" yaml:"position"`
}

// Report describes what an anonymization pass changed.
// TotalReplacements always equals the sum of ReplacementsByType and the
// length of PatternsFound.
type Report struct {
	TotalReplacements  int              `json:"total_replacements" yaml:"total_replacements"`
	ReplacementsByType map[Category]int `json:"replacements_by_type" yaml:"replacements_by_type"`
	PatternsFound      []Replacement    `json:"patterns_found" yaml:"patterns_found"`
}

// NewReport returns an empty report.
func NewReport() Report {
	return Report{
		ReplacementsByType: make(map[Category]int),
		PatternsFound:      []Replacement{},
	}
}

// Merge appends other to r, summing category counts.
func (r *Report) Merge(other Report) {
	if r.ReplacementsByType == nil {
		r.ReplacementsByType = make(map[Category]int)
	}
	for cat, n := range other.ReplacementsByType {
		r.ReplacementsByType[cat] += n
	}
	r.PatternsFound = append(r.PatternsFound, other.PatternsFound...)
	r.TotalReplacements = 0
	for _, n := range r.ReplacementsByType {
		r.TotalReplacements += n
	}
}

// Consistent reports whether the report's three counts agree.
func (r Report) Consistent() bool {
	sum := 0
	for _, n := range r.ReplacementsByType {
		sum += n
	}
	return sum == r.TotalReplacements && len(r.PatternsFound) == r.TotalReplacements
}

// WithoutOriginals returns a copy of r with every original value removed, for
// anything that leaves the process boundary of the caller.
func (r Report) WithoutOriginals() Report {
	out := Report{
		TotalReplacements:  r.TotalReplacements,
		ReplacementsByType: make(map[Category]int, len(r.ReplacementsByType)),
		PatternsFound:      make([]Replacement, len(r.PatternsFound)),
	}
	for cat, n := range r.ReplacementsByType {
		out.ReplacementsByType[cat] = n
	}
	for i, p := range r.PatternsFound {
		p.Original = ""
		out.PatternsFound[i] = p
	}
	return out
}

// Finding summarises the redactions of one category
type Finding struct {
	EntityType string `json:"entityType"`
	Count      int    `json:"count"`
	Positions  []int  `json:"positions,omitempty"`
}

// Findings returns one finding per category present in the report, in
// catalog order.
func (r Report) Findings() []Finding {
	findings := make([]Finding, 0, len(r.ReplacementsByType))
	for _, cat := range CategoryOrder {
		n := r.ReplacementsByType[cat]
		if n == 0 {
			continue
		}
		f := Finding{EntityType: string(cat), Count: n}
		for _, p := range r.PatternsFound {
			if p.Category == cat {
				f.Positions = append(f.Positions, p.Position)
			}
		}
		findings = append(findings, f)
	}
	return findings
}

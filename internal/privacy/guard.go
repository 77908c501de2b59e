package privacy

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultContextWindow is the number of bytes inspected on each side of a
// candidate.
const DefaultContextWindow = 100

// Candidate is a matched value under consideration by the Guard.
type Candidate struct {
	Value string
	// Window is the text surrounding the candidate.
	Window string
	// Line is the trimmed line containing the candidate.
	Line string
}

// GuardRule is one named check of the guard chain. Check returns true when
// the candidate is a system identifier that must be preserved.
type GuardRule struct {
	Name  string
	Check func(c Candidate) bool
}

// Guard decides whether a matched value is a chat, case or session
// identifier rather than personal data.
type Guard struct {
	window int
	rules  []GuardRule
}

var (
	headerLinePattern = regexp.MustCompile(`(?i)^[a-z]{2,}-\d+$`)

	// Patterns applied to the window text immediately before an occurrence.
	chatCasePrefixes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:chat|case)[\s_#]*$`),
		regexp.MustCompile(`(?i)\b(?:chat|case)[\s_#]+id[\s:]*$`),
		regexp.MustCompile(`(?i)^[a-z]{2,}[\s:-]*(?:chat|case)[\s_#]*$`),
		regexp.MustCompile(`(?i)\b(?:chat|case)\b.*[a-z]{2,}-\s*$`),
	}
	systemLabelPrefixes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:session|ticket|order|conversation|transcript)[\s_#:]*$`),
		regexp.MustCompile(`#\s*$`),
	}

	lineKeywordPrefix = regexp.MustCompile(`(?i)^(?:chat|case|session|ticket|order|id|reference|transaction)[\s_#:]*`)
)

// NewGuard returns a guard with the default rule chain. A window of zero or
// less selects DefaultContextWindow.
func NewGuard(window int) *Guard {
	if window <= 0 {
		window = DefaultContextWindow
	}
	return &Guard{
		window: window,
		rules: []GuardRule{
			{Name: "header_line", Check: isHeaderLine},
			{Name: "chat_case_label", Check: labelledBy(chatCasePrefixes)},
			{Name: "system_label", Check: labelledBy(systemLabelPrefixes)},
			{Name: "line_keyword", Check: lineStartsWithKeyword},
		},
	}
}

// Rules returns the guard chain in evaluation order.
func (g *Guard) Rules() []GuardRule {
	return g.rules
}

// IsSystemIdentifier reports whether value, found at byte offset pos of text,
// must be preserved. The name of the first rule that fired is returned with
// it.
func (g *Guard) IsSystemIdentifier(text string, pos int, value string) (bool, string) {
	if value == "" {
		return false, ""
	}
	c := Candidate{
		Value:  value,
		Window: g.windowAround(text, pos),
		Line:   lineAt(text, pos),
	}
	for _, rule := range g.rules {
		if rule.Check(c) {
			return true, rule.Name
		}
	}
	return false, ""
}

func (g *Guard) windowAround(text string, pos int) string {
	lo := pos - g.window
	if lo < 0 {
		lo = 0
	}
	hi := pos + g.window
	if hi > len(text) {
		hi = len(text)
	}
	for lo < len(text) && lo > 0 && !utf8.RuneStart(text[lo]) {
		lo++
	}
	for hi < len(text) && hi > lo && !utf8.RuneStart(text[hi]) {
		hi--
	}
	return text[lo:hi]
}

func lineAt(text string, pos int) string {
	if pos > len(text) {
		pos = len(text)
	}
	start := strings.LastIndexByte(text[:pos], '\n') + 1
	end := len(text)
	if i := strings.IndexByte(text[pos:], '\n'); i >= 0 {
		end = pos + i
	}
	return strings.TrimSpace(text[start:end])
}

func isHeaderLine(c Candidate) bool {
	return headerLinePattern.MatchString(c.Line)
}

// labelledBy fires when some occurrence of the value in the window, not
// followed by another digit, is directly preceded by one of the prefixes.
func labelledBy(prefixes []*regexp.Regexp) func(Candidate) bool {
	return func(c Candidate) bool {
		for _, idx := range occurrences(c.Window, c.Value) {
			before := c.Window[:idx]
			for _, re := range prefixes {
				if re.MatchString(before) {
					return true
				}
			}
		}
		return false
	}
}

func lineStartsWithKeyword(c Candidate) bool {
	loc := lineKeywordPrefix.FindStringIndex(c.Line)
	if loc == nil {
		return false
	}
	return hasPrefixFold(c.Line[loc[1]:], c.Value)
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// occurrences returns the start offsets of non-overlapping case-insensitive
// occurrences of value in window that are not immediately followed by a
// digit.
func occurrences(window, value string) []int {
	if value == "" {
		return nil
	}
	var out []int
	for i := 0; i+len(value) <= len(window); {
		if !hasPrefixFold(window[i:], value) {
			i++
			continue
		}
		end := i + len(value)
		if end >= len(window) || window[end] < '0' || window[end] > '9' {
			out = append(out, i)
		}
		i = end
	}
	return out
}

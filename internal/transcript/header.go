package transcript

import (
	"crypto/md5" // #nosec G501 -- short content fingerprint for ids, not security
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Header shapes, in the order they are tried when naming a conversation.
var (
	chatHeaderExprs = []string{
		`(?:^|\s)chat\s+(?:id\s*:?\s*)?(\d+)`,
		`(?:^|\s)chat\s*#\s*(\d+)`,
		`^[a-z]{2,}\s*[:-]?\s*chat\s+(\d+)`,
		`^[a-z]{2,}\s*[:-]?\s*chat\s*#\s*(\d+)`,
	}
	caseHeaderExpr   = `^[ \t]*case\s*(?:id\s*:?\s*|#\s*)?(ct)?(\d+)`
	prefixHeaderExpr = `^[ \t]*[A-Z]{2,}-\d+[ \t]*$`

	// headerPattern finds every conversation start in a document.
	headerPattern = regexp.MustCompile(`(?m)(?i:` + strings.Join(chatHeaderExprs, "|") + `|` + caseHeaderExpr + `)|` + prefixHeaderExpr)

	chatHeaderPatterns = compileAll(`(?im)`, chatHeaderExprs)
	caseHeaderPattern  = regexp.MustCompile(`(?im)` + caseHeaderExpr)
	prefixHeaderLine   = regexp.MustCompile(`^[A-Z]{2,}-\d+$`)
	caseWord           = regexp.MustCompile(`(?i)\bcase\b`)
)

// caseLookahead is how far past a PREFIX-NUMBER header the word "case" is
// searched for.
const caseLookahead = 200

func compileAll(flags string, exprs []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(flags + e)
	}
	return out
}

// HeaderID names a conversation from its header text. context is the text
// that follows the header and is only consulted for PREFIX-NUMBER headers.
func HeaderID(header, context string) (string, Kind) {
	trimmed := strings.TrimSpace(header)

	if prefixHeaderLine.MatchString(trimmed) {
		near := context
		if len(near) > caseLookahead {
			near = near[:caseLookahead]
		}
		if caseWord.MatchString(near) {
			return trimmed, KindCase
		}
		return trimmed, KindChat
	}

	for _, re := range chatHeaderPatterns {
		if m := re.FindStringSubmatch(trimmed); m != nil {
			return "Chat_" + dedupeDigits(m[1]), KindChat
		}
	}

	if m := caseHeaderPattern.FindStringSubmatch(trimmed); m != nil {
		if m[1] != "" {
			return "Case_CT" + m[2], KindCase
		}
		return "Case_" + m[2], KindCase
	}

	return unknownID(trimmed), KindUnknown
}

// dedupeDigits undoes the doubled chat numbers some exports produce, such as
// 0127115301271153.
func dedupeDigits(id string) string {
	if len(id) < 16 {
		return id
	}
	half := len(id) / 2
	if id[:half] == id[half:2*half] {
		return id[:half]
	}
	if id[:6] == id[half:half+6] {
		return id[:half]
	}
	return id
}

// unknownID fingerprints the first 100 characters of text.
func unknownID(text string) string {
	sample := text
	if utf8.RuneCountInString(sample) > 100 {
		sample = string([]rune(sample)[:100])
	}
	sample = strings.TrimSpace(sample)
	sum := md5.Sum([]byte(sample)) // #nosec G401 -- id fingerprint
	return "Unknown_" + fmt.Sprintf("%x", sum)[:8]
}

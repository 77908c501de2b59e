package transcript

import (
	"regexp"
	"strings"
)

type role int

const (
	roleNone role = iota
	roleCustomer
	roleAgent
)

const (
	customerLabels = `customer|client|visitor|user|guest`
	agentLabels    = `agent|support|assistant|representative|chatbot|bot`
)

var (
	skipLines = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\{ChatWindowButton:`),
		regexp.MustCompile(`(?i)^page \d+ of \d+`),
		regexp.MustCompile(`(?i)^report generated`),
		regexp.MustCompile(`^[-=*_]{3,}$`),
		regexp.MustCompile(`^(?:[A-Z]{2,}\s*[:-]?\s*)?(?i:(?:chat|case)\s*(?:id\s*:?\s*|#\s*)?(?:ct)?)\d+$`),
		regexp.MustCompile(`^[A-Z]{2,}-\d+$`),
	}
	// System notices only apply to lines without a "label:" turn.
	systemNotices = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:has|have) (?:joined|left)(?: the (?:chat|conversation))?\.?$`),
		regexp.MustCompile(`(?i)\b(?:chat|conversation|session) (?:has been )?(?:ended|transferred|closed)\b`),
	}
	metadataLine   = regexp.MustCompile(`(?i)^(?:chat reason|category|issue type|topic)\s*:`)
	durationMarker = regexp.MustCompile(`^\(\s*(?:\d+\s*[hms]\s*)+\)\s*`)
)

// speakerMatcher recognises role labels in a transcript line.
type speakerMatcher struct {
	labelled *regexp.Regexp // earliest "label:" anywhere in the line
	leading  *regexp.Regexp // label at line start without a colon
}

func newSpeakerMatcher(personas []string) *speakerMatcher {
	agents := agentLabels
	for _, p := range personas {
		if p = strings.TrimSpace(p); p != "" {
			agents += "|" + regexp.QuoteMeta(p)
		}
	}
	return &speakerMatcher{
		labelled: regexp.MustCompile(`(?i)\b(?:(` + customerLabels + `)|(` + agents + `))\)?\s*:`),
		leading:  regexp.MustCompile(`(?i)^(?:(` + customerLabels + `)|(` + agents + `))\b`),
	}
}

// normalizeLine rewrites one trimmed, non-empty line. keep is false for
// boilerplate that must be dropped.
func (s *speakerMatcher) normalizeLine(line string) (out string, r role, keep bool) {
	for _, re := range skipLines {
		if re.MatchString(line) {
			return "", roleNone, false
		}
	}

	if metadataLine.MatchString(line) {
		return line, roleNone, true
	}

	stripped := durationMarker.ReplaceAllString(line, "")

	if m := s.labelled.FindStringSubmatchIndex(stripped); m != nil {
		rest := strings.TrimSpace(stripped[m[1]:])
		if m[2] >= 0 {
			return strings.TrimRight("Customer: "+rest, " "), roleCustomer, true
		}
		return strings.TrimRight("Agent: "+rest, " "), roleAgent, true
	}

	for _, re := range systemNotices {
		if re.MatchString(stripped) {
			return "", roleNone, false
		}
	}

	if m := s.leading.FindStringSubmatchIndex(stripped); m != nil {
		if m[2] >= 0 {
			return stripped, roleCustomer, true
		}
		return stripped, roleAgent, true
	}

	return line, roleNone, true
}

// Normalize rewrites a conversation span into canonical speaker turns. It
// returns the processed text and the number of recognised turns.
func (s *speakerMatcher) Normalize(span string) (string, int) {
	var lines []string
	turns := 0
	for _, raw := range strings.Split(span, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		out, r, keep := s.normalizeLine(line)
		if !keep {
			continue
		}
		if r != roleNone {
			turns++
		}
		lines = append(lines, out)
	}
	return strings.Join(lines, "\n"), turns
}

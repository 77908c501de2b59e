package privacy

import (
	"fmt"

	"github.com/raaihank/transcript-sentinel/internal/config"
	"github.com/raaihank/transcript-sentinel/internal/logger"
	"go.uber.org/zap"
)

// Anonymizer redacts sensitive values from free text. It holds no per-run
// state; callers pass a Generator to share placeholders across texts.
type Anonymizer struct {
	catalog *Catalog
	guard   *Guard
	enabled map[Category]bool
	logger  *logger.Logger
	config  config.PrivacyConfig
}

// New creates a new anonymizer instance
func New(cfg config.PrivacyConfig, log *logger.Logger) (*Anonymizer, error) {
	if log == nil {
		log = logger.NewNop()
	}
	a := &Anonymizer{
		catalog: DefaultCatalog(),
		guard:   NewGuard(cfg.ContextWindow),
		enabled: make(map[Category]bool),
		logger:  log.WithComponent("privacy"),
		config:  cfg,
	}

	if err := a.configureCategories(cfg.Categories); err != nil {
		return nil, fmt.Errorf("failed to configure categories: %w", err)
	}

	a.logger.Info("Anonymizer initialized",
		zap.Int("total_rules", len(a.catalog.Rules())),
		zap.Int("enabled_categories", len(a.EnabledCategories())),
	)

	return a, nil
}

// configureCategories enables categories based on configuration. An empty
// list enables everything.
func (a *Anonymizer) configureCategories(categories []string) error {
	if len(categories) == 0 {
		categories = []string{"all"}
	}

	for _, name := range categories {
		if name == "all" {
			for _, cat := range CategoryOrder {
				a.enabled[cat] = true
			}
			continue
		}

		cat, ok := ParseCategory(name)
		if !ok {
			return fmt.Errorf("unknown category: %s", name)
		}
		a.enabled[cat] = true
	}

	return nil
}

// EnabledCategories returns the enabled categories in scan order.
func (a *Anonymizer) EnabledCategories() []Category {
	var out []Category
	for _, cat := range CategoryOrder {
		if a.enabled[cat] {
			out = append(out, cat)
		}
	}
	return out
}

// Catalog returns the rule catalog in use.
func (a *Anonymizer) Catalog() *Catalog {
	return a.catalog
}

// Anonymize redacts text with a fresh generator, so the call is independent
// of every other call.
func (a *Anonymizer) Anonymize(text string) (string, Report) {
	return a.AnonymizeWith(NewGenerator(), text)
}

type acceptedMatch struct {
	start, end int
	original   string
}

// AnonymizeWith redacts text using gen for placeholders. Values already
// mapped by gen keep their placeholder.
func (a *Anonymizer) AnonymizeWith(gen *Generator, text string) (string, Report) {
	report := NewReport()
	if !a.config.Enabled || text == "" {
		return text, report
	}

	buf := text
	for _, cat := range CategoryOrder {
		if !a.enabled[cat] {
			continue
		}

		count := 0
		for _, rule := range a.catalog.RulesFor(cat) {
			accepted := a.collect(rule, buf)
			if len(accepted) == 0 {
				continue
			}

			// Placeholders are drawn highest offset first so each splice
			// leaves the offsets of the remaining matches intact.
			replaced := make([]string, len(accepted))
			for i := len(accepted) - 1; i >= 0; i-- {
				m := accepted[i]
				replaced[i] = gen.ReplacementFor(cat, m.original)
				report.PatternsFound = append(report.PatternsFound, Replacement{
					Category:    cat,
					Original:    m.original,
					Replacement: replaced[i],
					Position:    m.start,
				})
			}
			buf = splice(buf, accepted, replaced)
			count += len(accepted)

			a.logger.Debug("Sensitive values redacted",
				zap.String("category", string(cat)),
				zap.String("rule", rule.Name),
				zap.Int("count", len(accepted)),
			)
		}

		if count > 0 {
			report.ReplacementsByType[cat] = count
			report.TotalReplacements += count
		}
	}

	return buf, report
}

// collect returns the matches of rule in buf that survive the placeholder and
// identifier checks, in ascending offset order. Every guard decision is made
// against the same snapshot of buf.
func (a *Anonymizer) collect(rule Rule, buf string) []acceptedMatch {
	var out []acceptedMatch
	for _, loc := range rule.FindAll(buf) {
		original := buf[loc[0]:loc[1]]
		if IsPlaceholder(original) || IsPlaceholder(rule.Value(buf, loc)) {
			continue
		}
		if keep, reason := a.guard.IsSystemIdentifier(buf, loc[0], original); keep {
			a.logger.Debug("System identifier preserved",
				zap.String("rule", rule.Name),
				zap.String("guard", reason),
			)
			continue
		}
		out = append(out, acceptedMatch{start: loc[0], end: loc[1], original: original})
	}
	return out
}

// splice rebuilds buf with each accepted span swapped for its placeholder.
func splice(buf string, spans []acceptedMatch, replaced []string) string {
	var b []byte
	last := 0
	for i, m := range spans {
		b = append(b, buf[last:m.start]...)
		b = append(b, replaced[i]...)
		last = m.end
	}
	b = append(b, buf[last:]...)
	return string(b)
}

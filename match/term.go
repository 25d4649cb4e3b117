package match

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ihtsdo/drugmatch/registry/entities"
	"github.com/ihtsdo/drugmatch/snomed"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TermOutcome is the final classification for one pharmaceutical: the
// best-precedence unambiguous rule and, when one exists, the single winning
// description.
type TermOutcome struct {
	DrugID      string
	Rule        TermRule
	ConceptID   string
	Description *snomed.Description
}

// scoredDescription ties a classified description back to its concept.
type scoredDescription struct {
	conceptID   string
	description snomed.Description
}

// TermMatcher classifies candidate concept descriptions against the expected
// national and English canonical product names.
type TermMatcher struct {
	client         TerminologyClient
	nationalLocale string
	nationalTag    language.Tag
	workers        int
}

// NewTermMatcher creates the term-match stage. nationalLocale is the
// language code national descriptions carry.
func NewTermMatcher(client TerminologyClient, nationalLocale string, workers int) *TermMatcher {
	if workers < 1 {
		workers = 1
	}
	tag, err := language.Parse(nationalLocale)
	if err != nil {
		tag = language.Und
	}
	return &TermMatcher{
		client:         client,
		nationalLocale: nationalLocale,
		nationalTag:    tag,
		workers:        workers,
	}
}

// CanonicalName builds the expected product name for a locale: per
// component "substance strength unit" joined by " + ", followed by the dose
// form. Components after the first, and the dose form, are lower-cased at
// the leading character only.
func (m *TermMatcher) CanonicalName(p entities.Pharmaceutical, locale Locale) string {
	var b strings.Builder
	for i, component := range p.Components {
		part := localeSubstance(component.Substance, locale) + " " + localeStrength(component, locale) + " " + component.Unit
		if i > 0 {
			b.WriteString(" + ")
			part = m.lowerLeading(part, locale)
		}
		b.WriteString(part)
	}
	if doseForm := localeDoseForm(p.DoseForm, locale); doseForm != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(m.lowerLeading(doseForm, locale))
	}
	return b.String()
}

// lowerLeading lowercases only the first rune, folding case per the
// description locale.
func (m *TermMatcher) lowerLeading(s string, locale Locale) string {
	if s == "" {
		return s
	}
	caser := cases.Lower(language.English)
	if locale == LocaleNational {
		caser = cases.Lower(m.nationalTag)
	}
	for i, r := range s {
		if i > 0 {
			return caser.String(s[:i]) + s[i:]
		}
		_ = r
	}
	return caser.String(s)
}

func (m *TermMatcher) fold(s string, locale Locale) string {
	if locale == LocaleNational {
		return cases.Lower(m.nationalTag).String(s)
	}
	return strings.ToLower(s)
}

// Run classifies every pharmaceutical with at least one attribute-match
// candidate. Pharmaceuticals are independent and processed concurrently; a
// description fetch error aborts the stage.
func (m *TermMatcher) Run(ctx context.Context, pharmaceuticals []entities.Pharmaceutical, attributes map[string]AttributeOutcome) (map[string]TermOutcome, error) {
	var (
		mu       sync.Mutex
		outcomes = make(map[string]TermOutcome, len(pharmaceuticals))
		firstErr error
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobCh := make(chan entities.Pharmaceutical)
	var wg sync.WaitGroup
	wg.Add(m.workers)
	for i := 0; i < m.workers; i++ {
		go func() {
			defer wg.Done()
			for p := range jobCh {
				outcome, err := m.matchOne(ctx, p, attributes[p.DrugID])
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
						cancel()
					}
				} else {
					outcomes[p.DrugID] = outcome
				}
				mu.Unlock()
			}
		}()
	}

dispatch:
	for _, p := range pharmaceuticals {
		select {
		case jobCh <- p:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobCh)
	wg.Wait()

	if firstErr != nil {
		return nil, fmt.Errorf("term match stage failed: %w", firstErr)
	}
	return outcomes, nil
}

func (m *TermMatcher) matchOne(ctx context.Context, p entities.Pharmaceutical, attribute AttributeOutcome) (TermOutcome, error) {
	outcome := TermOutcome{DrugID: p.DrugID}

	if len(attribute.Candidates) == 0 {
		outcome.Rule = TermZeroAttributeMatch
		return outcome, nil
	}

	conceptDescriptions, err := m.client.DescriptionsByConceptIDs(ctx, attribute.Candidates)
	if err != nil {
		return outcome, err
	}

	nationalCanonical := m.CanonicalName(p, LocaleNational)
	englishCanonical := m.CanonicalName(p, LocaleEnglish)

	grouped := make(map[TermRule][]scoredDescription)
	for _, concept := range conceptDescriptions {
		for _, description := range concept.Descriptions {
			rule := m.classifyDescription(description, p, nationalCanonical, englishCanonical)
			grouped[rule] = append(grouped[rule], scoredDescription{conceptID: concept.ConceptID, description: description})
		}
	}

	// Walk the taxonomy weight-descending; the first populated rule wins.
	// More than one member downgrades to ambiguous, except zero matches:
	// "no match" cannot be "ambiguous".
	for _, rule := range TermRulesByWeight() {
		members := grouped[rule]
		if len(members) == 0 {
			continue
		}
		if len(members) == 1 {
			outcome.Rule = rule
			outcome.ConceptID = members[0].conceptID
			description := members[0].description
			outcome.Description = &description
			return outcome, nil
		}
		if rule == TermZeroTermMatch {
			outcome.Rule = TermZeroTermMatch
			return outcome, nil
		}
		outcome.Rule = TermAmbiguousMatch
		return outcome, nil
	}

	outcome.Rule = TermZeroTermMatch
	return outcome, nil
}

// classifyDescription classifies one description. National classification
// applies only to descriptions carrying the national language code; the
// identical English procedure applies to locale codes starting with "en",
// only when no national rule was found. Everything else is a zero match.
func (m *TermMatcher) classifyDescription(description snomed.Description, p entities.Pharmaceutical, nationalCanonical, englishCanonical string) TermRule {
	term := description.Term
	if description.Type == snomed.TypeFullySpecifiedName {
		term = TruncateFSN(term)
	}

	if description.LanguageCode == m.nationalLocale {
		return m.classifyLocale(term, p, nationalCanonical, LocaleNational)
	}
	if strings.HasPrefix(description.LanguageCode, "en") {
		return m.classifyLocale(term, p, englishCanonical, LocaleEnglish)
	}
	return TermZeroTermMatch
}

// classifyLocale runs the per-locale procedure: exact, case-insensitive,
// then piecewise decomposition where the first absent piece (substances,
// then dose form, then per-component unit and strength) determines the rule.
// All pieces present means the ordering or casing differs.
func (m *TermMatcher) classifyLocale(term string, p entities.Pharmaceutical, canonical string, locale Locale) TermRule {
	if term == canonical {
		if locale == LocaleNational {
			return TermExactNationalMatch
		}
		return TermExactEnglishMatch
	}
	if m.fold(term, locale) == m.fold(canonical, locale) {
		if locale == LocaleNational {
			return TermCaseInsensitiveNationalMatch
		}
		return TermCaseInsensitiveEnglishMatch
	}

	low := m.fold(term, locale)

	for _, component := range p.Components {
		substance := localeSubstance(component.Substance, locale)
		if substance == "" || !strings.Contains(low, m.fold(substance, locale)) {
			if locale == LocaleNational {
				return TermMissingNationalSubstance
			}
			return TermMissingEnglishSubstance
		}
	}

	if doseForm := localeDoseForm(p.DoseForm, locale); doseForm != "" {
		if !strings.Contains(low, m.fold(doseForm, locale)) {
			if locale == LocaleNational {
				return TermMissingNationalDoseForm
			}
			return TermMissingEnglishDoseForm
		}
	}

	for _, component := range p.Components {
		strength := m.fold(localeStrength(component, locale), locale)
		unit := m.fold(component.Unit, locale)
		if strengthUnitPresent(low, strength, unit) {
			continue
		}
		if !strings.Contains(low, unit) {
			if locale == LocaleNational {
				return TermMissingNationalUnit
			}
			return TermMissingEnglishUnit
		}
		if locale == LocaleNational {
			return TermMissingNationalStrength
		}
		return TermMissingEnglishStrength
	}

	if locale == LocaleNational {
		return TermIncorrectComponentOrderNational
	}
	return TermIncorrectComponentOrderEnglish
}

// TruncateFSN drops the trailing parenthetical qualifier of a fully
// specified name: "Product 10 mg tablet (medicinal product)" becomes
// "Product 10 mg tablet".
func TruncateFSN(term string) string {
	if !strings.HasSuffix(term, ")") {
		return term
	}
	if idx := strings.LastIndex(term, " ("); idx != -1 {
		return term[:idx]
	}
	return term
}

package match

import (
	"strings"

	"github.com/ihtsdo/drugmatch/snomed"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CheckValidator classifies a single-candidate check result and supplies the
// report message for a rule. National editions substitute their own
// implementation; the strategy is selected once at startup by the national
// namespace id.
type CheckValidator interface {
	Classify(name string, candidate snomed.ConceptMatch) CheckRule
	Message(rule CheckRule) string
}

var checkMessages = map[CheckRule]string{
	CheckExact:              "Term matches the preferred term exactly",
	CheckCaseInsensitive:    "Term matches the preferred term except for case",
	CheckConcatenation:      "Term matches the preferred term when compound words are joined",
	CheckInflection:         "Term matches the preferred term except for an inflected ending",
	CheckTranslationMissing: "No national translation, matched against the English term",
	CheckAmbiguous:          "Term matches more than one concept",
	CheckZeroMatch:          "Term does not match any concept",
	CheckUnchecked:          "Term was never checked",
}

// DefaultValidator classifies by plain string equality: an exact match of the
// candidate term yields EXACT, anything else CASE_INSENSITIVE.
type DefaultValidator struct{}

func (DefaultValidator) Classify(name string, candidate snomed.ConceptMatch) CheckRule {
	if candidate.Term == name {
		return CheckExact
	}
	return CheckCaseInsensitive
}

func (DefaultValidator) Message(rule CheckRule) string {
	return checkMessages[rule]
}

// NationalValidator substitutes a lower-case-invariant comparison for the
// exact check and additionally recognizes compound concatenation and simple
// inflected endings, which occur in national term stock but not in English.
type NationalValidator struct {
	locale   language.Tag
	messages map[CheckRule]string
}

// NewNationalValidator builds a validator folding case per the national
// locale. messages may override individual report messages; missing entries
// fall back to the defaults.
func NewNationalValidator(locale language.Tag, messages map[CheckRule]string) *NationalValidator {
	return &NationalValidator{
		locale:   locale,
		messages: messages,
	}
}

func (v *NationalValidator) Classify(name string, candidate snomed.ConceptMatch) CheckRule {
	if candidate.Term == name {
		return CheckExact
	}

	// Casers are stateful, so one is built per classification; Classify runs
	// on the checker's worker goroutines.
	caser := cases.Lower(v.locale)
	folded := caser.String(name)
	foldedTerm := caser.String(candidate.Term)
	if folded == foldedTerm {
		return CheckCaseInsensitive
	}

	// Compound concatenation: the names agree once inner spaces and hyphens
	// are removed ("beta blocker" vs "betablocker").
	if squash(folded) == squash(foldedTerm) {
		return CheckConcatenation
	}

	// Inflection: one term is the other plus a short inflected ending of at
	// most two characters ("tablett" vs "tabletter").
	if isInflection(folded, foldedTerm) || isInflection(foldedTerm, folded) {
		return CheckInflection
	}

	return CheckCaseInsensitive
}

func (v *NationalValidator) Message(rule CheckRule) string {
	if msg, ok := v.messages[rule]; ok {
		return msg
	}
	return checkMessages[rule]
}

func squash(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	return strings.ReplaceAll(s, "-", "")
}

func isInflection(stem, inflected string) bool {
	if !strings.HasPrefix(inflected, stem) {
		return false
	}
	suffix := len(inflected) - len(stem)
	return suffix > 0 && suffix <= 2
}

// ValidatorFor selects the check validator for a national namespace. Editions
// without an override use the default exact-equality validator.
func ValidatorFor(nationalNamespaceID, nationalLocale string) CheckValidator {
	if nationalNamespaceID == "" {
		return DefaultValidator{}
	}
	tag, err := language.Parse(nationalLocale)
	if err != nil {
		tag = language.Und
	}
	return NewNationalValidator(tag, nil)
}

// Package match implements the three-stage reconciliation pipeline: component
// check (dose form / substance / unit name resolution), attribute match
// (concept lookup by formal attribute set with a relaxation ladder) and term
// match (textual classification of candidate descriptions against the
// expected product names).
package match

import (
	"fmt"
	"sort"
)

// CheckRule classifies how a single dose form, substance or unit name
// resolved against the terminology.
type CheckRule string

const (
	CheckExact              CheckRule = "EXACT"
	CheckCaseInsensitive    CheckRule = "CASE_INSENSITIVE"
	CheckConcatenation      CheckRule = "CONCATENATION"
	CheckInflection         CheckRule = "INFLECTION"
	CheckTranslationMissing CheckRule = "TRANSLATION_MISSING"
	CheckAmbiguous          CheckRule = "AMBIGUOUS"
	CheckZeroMatch          CheckRule = "ZERO_MATCH"
	CheckUnchecked          CheckRule = "UNCHECKED"
)

// Resolved reports whether the rule represents an unambiguous resolution,
// i.e. whether a name with this rule contributes a concept id downstream.
// TRANSLATION_MISSING only resolves when the English fallback produced a
// single candidate, which the checker enforces before recording the mapping.
func (r CheckRule) Resolved() bool {
	switch r {
	case CheckExact, CheckCaseInsensitive, CheckConcatenation, CheckInflection, CheckTranslationMissing:
		return true
	}
	return false
}

// AttributeRule classifies the outcome of the attribute-match ladder for one
// pharmaceutical.
type AttributeRule string

const (
	AttributeExactMatch                         AttributeRule = "EXACT_MATCH"
	AttributeExactMatchExcludingUnit            AttributeRule = "EXACT_MATCH_EXCLUDING_UNIT"
	AttributeExactMatchExcludingDoseFormAndUnit AttributeRule = "EXACT_MATCH_EXCLUDING_DOSE_FORM_AND_UNIT"
	AttributeAmbiguousMatch                     AttributeRule = "AMBIGUOUS_MATCH"
	AttributeAmbiguousMatchExcludingUnit        AttributeRule = "AMBIGUOUS_MATCH_EXCLUDING_UNIT"
	AttributeAmbiguousExcludingDoseFormAndUnit  AttributeRule = "AMBIGUOUS_MATCH_EXCLUDING_DOSE_FORM_AND_UNIT"
	AttributeZeroMatch                          AttributeRule = "ZERO_MATCH"
	AttributeMissingDoseForm                    AttributeRule = "MISSING_DOSE_FORM"
	AttributeMissingSubstance                   AttributeRule = "MISSING_SUBSTANCE"
	AttributeMissingUnit                        AttributeRule = "MISSING_UNIT"
)

// TermRule classifies how well one candidate description matches the
// expected product name. Higher weight means higher confidence. National
// rules always outweigh their English counterpart at the same specificity.
type TermRule string

const (
	TermExactNationalMatch              TermRule = "EXACT_NATIONAL_MATCH"
	TermExactEnglishMatch               TermRule = "EXACT_ENGLISH_MATCH"
	TermCaseInsensitiveNationalMatch    TermRule = "CASE_INSENSITIVE_NATIONAL_MATCH"
	TermCaseInsensitiveEnglishMatch     TermRule = "CASE_INSENSITIVE_ENGLISH_MATCH"
	TermIncorrectComponentOrderNational TermRule = "INCORRECT_COMPONENT_ORDER_NATIONAL"
	TermIncorrectComponentOrderEnglish  TermRule = "INCORRECT_COMPONENT_ORDER_ENGLISH"
	TermMissingNationalStrength         TermRule = "MISSING_NATIONAL_STRENGTH"
	TermMissingEnglishStrength          TermRule = "MISSING_ENGLISH_STRENGTH"
	TermMissingNationalUnit             TermRule = "MISSING_NATIONAL_UNIT"
	TermMissingEnglishUnit              TermRule = "MISSING_ENGLISH_UNIT"
	TermMissingNationalDoseForm         TermRule = "MISSING_NATIONAL_DOSE_FORM"
	TermMissingEnglishDoseForm          TermRule = "MISSING_ENGLISH_DOSE_FORM"
	TermMissingNationalSubstance        TermRule = "MISSING_NATIONAL_SUBSTANCE"
	TermMissingEnglishSubstance         TermRule = "MISSING_ENGLISH_SUBSTANCE"
	TermAmbiguousMatch                  TermRule = "AMBIGUOUS_MATCH"
	TermZeroTermMatch                   TermRule = "ZERO_TERM_MATCH"
	TermZeroAttributeMatch              TermRule = "ZERO_ATTRIBUTE_MATCH"
)

// termRuleWeights fixes the precedence of every term rule. Weights are
// pairwise distinct; VerifyTermRuleWeights guards the invariant.
var termRuleWeights = map[TermRule]int{
	TermExactNationalMatch:              200,
	TermExactEnglishMatch:               190,
	TermCaseInsensitiveNationalMatch:    180,
	TermCaseInsensitiveEnglishMatch:     170,
	TermIncorrectComponentOrderNational: 160,
	TermIncorrectComponentOrderEnglish:  150,
	TermMissingNationalStrength:         140,
	TermMissingEnglishStrength:          130,
	TermMissingNationalUnit:             120,
	TermMissingEnglishUnit:              110,
	TermMissingNationalDoseForm:         100,
	TermMissingEnglishDoseForm:          90,
	TermMissingNationalSubstance:        80,
	TermMissingEnglishSubstance:         70,
	TermAmbiguousMatch:                  30,
	TermZeroTermMatch:                   20,
	TermZeroAttributeMatch:              10,
}

// Weight returns the rule's fixed precedence weight. Unknown rules weigh
// zero, below every member of the taxonomy.
func (r TermRule) Weight() int {
	return termRuleWeights[r]
}

// TermRulesByWeight returns every term rule ordered by descending weight.
func TermRulesByWeight() []TermRule {
	rules := make([]TermRule, 0, len(termRuleWeights))
	for rule := range termRuleWeights {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Weight() > rules[j].Weight()
	})
	return rules
}

// VerifyTermRuleWeights checks that every term rule carries a distinct
// weight. The selection walk in the term matcher depends on it.
func VerifyTermRuleWeights() error {
	seen := make(map[int]TermRule, len(termRuleWeights))
	for rule, weight := range termRuleWeights {
		if other, dup := seen[weight]; dup {
			return fmt.Errorf("term rules %s and %s share weight %d", rule, other, weight)
		}
		seen[weight] = rule
	}
	return nil
}

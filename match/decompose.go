package match

import (
	"strings"

	"github.com/ihtsdo/drugmatch/registry/entities"
)

// This file holds the pure decomposition helpers the term matcher uses to
// split a free-text term back into dose form and "substance strength unit"
// component groups, so a near-miss can be pinpointed to the exact differing
// piece.

// ExtractDoseForm extracts the dose-form part of a term. It tries, in order:
// an exact trailing match of the full expected dose form (case-insensitive),
// a backward token-by-token match requiring at least two matched tokens, and
// finally everything after the last occurrence of any expected unit string.
func ExtractDoseForm(term, expected string, units []string) (string, bool) {
	if expected != "" && len(term) >= len(expected) {
		tail := term[len(term)-len(expected):]
		if strings.EqualFold(tail, expected) {
			return tail, true
		}
	}

	expectedTokens := strings.Fields(expected)
	termTokens := strings.Fields(term)
	matched := 0
	for matched < len(expectedTokens) && matched < len(termTokens) {
		e := expectedTokens[len(expectedTokens)-1-matched]
		t := termTokens[len(termTokens)-1-matched]
		if !strings.EqualFold(e, t) {
			break
		}
		matched++
	}
	if matched >= 2 {
		return strings.Join(termTokens[len(termTokens)-matched:], " "), true
	}

	// Fallback: everything after the last unit occurrence.
	lowTerm := strings.ToLower(term)
	last := -1
	afterUnit := ""
	for _, unit := range units {
		if unit == "" {
			continue
		}
		if idx := strings.LastIndex(lowTerm, strings.ToLower(unit)); idx > last {
			last = idx
			afterUnit = strings.TrimSpace(term[idx+len(unit):])
		}
	}
	if last != -1 && afterUnit != "" {
		return afterUnit, true
	}

	return "", false
}

// TokenizeComponents splits a term body into component groups. Terms using
// the slash notation for strengths ("a + b + c 1mg/2%/3mg") carry all
// strengths at the end; when the plus-token count minus one equals the slash
// count, each plus token is paired with its slash strength. Any other shape
// falls back to the plain "+"-split tokens.
func TokenizeComponents(s string) []string {
	plusTokens := strings.Split(s, "+")
	slashCount := strings.Count(s, "/")

	if slashCount == 0 || len(plusTokens)-1 != slashCount {
		out := make([]string, len(plusTokens))
		for i, token := range plusTokens {
			out[i] = strings.TrimSpace(token)
		}
		return out
	}

	slashParts := strings.Split(s, "/")
	firstStrength := trailingStrengthToken(slashParts[0])
	if firstStrength == "" {
		out := make([]string, len(plusTokens))
		for i, token := range plusTokens {
			out[i] = strings.TrimSpace(token)
		}
		return out
	}

	strengths := make([]string, 0, len(plusTokens))
	strengths = append(strengths, firstStrength)
	strengths = append(strengths, slashParts[1:]...)

	groups := make([]string, len(plusTokens))
	for i, token := range plusTokens {
		name := strings.TrimLeft(token, " ")
		if i == len(plusTokens)-1 {
			if idx := strings.Index(name, "/"); idx != -1 {
				name = name[:idx]
			}
			name = strings.TrimSuffix(name, firstStrength)
		}
		groups[i] = name + " " + strengths[i]
	}
	return groups
}

// trailingStrengthToken returns the last whitespace-separated token when it
// starts with a digit, which in slash notation is the first strength.
func trailingStrengthToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	last := fields[len(fields)-1]
	if last[0] >= '0' && last[0] <= '9' {
		return last
	}
	return ""
}

// ReconstructedProduct is the best-effort decomposition of a free-text term
// against an expected pharmaceutical shape. It is used only for order and
// completeness comparison, never surfaced directly.
type ReconstructedProduct struct {
	// Components holds the expected components that were located in the
	// term, in expected order; GroupOrder holds the index of the term group
	// each was found in.
	Components []entities.Component
	GroupOrder []int
	DoseForm   string
}

// Complete reports whether every expected component and the dose form were
// located.
func (r ReconstructedProduct) Complete(expected entities.Pharmaceutical) bool {
	return len(r.Components) == len(expected.Components) && r.DoseForm != ""
}

// InOrder reports whether the located components appear in the term in the
// expected order.
func (r ReconstructedProduct) InOrder() bool {
	for i := 1; i < len(r.GroupOrder); i++ {
		if r.GroupOrder[i] <= r.GroupOrder[i-1] {
			return false
		}
	}
	return true
}

// Reconstruct locates each expected component inside the term: a
// case-insensitive substance-name substring plus a strength token and unit
// token, either separate or concatenated. Matching is greedy first-match
// with no backtracking; a group matched once is excluded from subsequent
// scans. Overlapping substance names can therefore mis-tokenize, and the
// term-match rules depend on that exact behavior.
func Reconstruct(term string, expected entities.Pharmaceutical, locale Locale) ReconstructedProduct {
	var out ReconstructedProduct

	units := make([]string, 0, len(expected.Components))
	for _, component := range expected.Components {
		units = append(units, component.Unit)
	}

	body := term
	doseFormName := localeDoseForm(expected.DoseForm, locale)
	if df, ok := ExtractDoseForm(term, doseFormName, units); ok {
		out.DoseForm = df
		if idx := strings.LastIndex(strings.ToLower(body), strings.ToLower(df)); idx != -1 {
			body = strings.TrimSpace(body[:idx])
		}
	}

	groups := TokenizeComponents(body)
	consumed := make([]bool, len(groups))

	for _, component := range expected.Components {
		substance := localeSubstance(component.Substance, locale)
		strength := localeStrength(component, locale)
		for i, group := range groups {
			if consumed[i] {
				continue
			}
			if !componentInGroup(group, substance, strength, component.Unit) {
				continue
			}
			consumed[i] = true
			out.Components = append(out.Components, component)
			out.GroupOrder = append(out.GroupOrder, i)
			break
		}
	}
	return out
}

// componentInGroup reports whether a group contains the substance name plus a
// separately matched strength and unit, accepting both "strength unit" and
// the "strengthunit" concatenation.
func componentInGroup(group, substance, strength, unit string) bool {
	low := strings.ToLower(group)
	if substance == "" || !strings.Contains(low, strings.ToLower(substance)) {
		return false
	}
	return strengthUnitPresent(low, strings.ToLower(strength), strings.ToLower(unit))
}

func strengthUnitPresent(low, strength, unit string) bool {
	if strength == "" || unit == "" {
		return false
	}
	return strings.Contains(low, strength+" "+unit) || strings.Contains(low, strength+unit)
}

func localeSubstance(s entities.Substance, locale Locale) string {
	if locale == LocaleNational {
		return s.National
	}
	return s.English
}

func localeDoseForm(d entities.DoseForm, locale Locale) string {
	if locale == LocaleNational {
		return d.National
	}
	return d.English
}

// localeStrength returns the strength in the notation of the locale: raw
// national notation for national comparisons, separator-normalized for
// English ones.
func localeStrength(c entities.Component, locale Locale) string {
	if locale == LocaleNational {
		return c.Strength
	}
	return NormalizeStrength(c.Strength)
}

package match

import "strings"

// MatchDescriptors returns the national name when present, otherwise the
// English one. This is the locale-preference rule applied everywhere a single
// display or comparison name is needed.
func MatchDescriptors(english, national string) string {
	if national != "" {
		return national
	}
	return english
}

// resolveLocale looks up the national key first and falls back to the English
// key. It reports which key won so callers can keep the locale distinction in
// their outcomes. The bool result is false when neither key is present.
func resolveLocale(national, english string, lookup map[string]string) (value string, locale Locale, ok bool) {
	if national != "" {
		if v, found := lookup[national]; found {
			return v, LocaleNational, true
		}
	}
	if english != "" {
		if v, found := lookup[english]; found {
			return v, LocaleEnglish, true
		}
	}
	return "", "", false
}

// Locale distinguishes the two parallel naming locales every entity carries.
type Locale string

const (
	LocaleNational Locale = "national"
	LocaleEnglish  Locale = "english"
)

// NormalizeStrength converts a national decimal notation strength to English
// notation for comparison. Only targeted separator substitutions are applied;
// when the notation is ambiguous (a comma that could be a thousands
// separator) the original string is returned unchanged. Strengths are never
// parsed as numbers.
func NormalizeStrength(strength string) string {
	if !strings.Contains(strength, ",") {
		return strength
	}

	lastComma := strings.LastIndex(strength, ",")
	lastPeriod := strings.LastIndex(strength, ".")

	if lastPeriod != -1 {
		// Mixed separators: period thousands + comma decimal is national
		// notation, swap both. Comma before period is already English.
		if lastPeriod < lastComma {
			swapped := strings.Map(func(r rune) rune {
				switch r {
				case ',':
					return '.'
				case '.':
					return ','
				}
				return r
			}, strength)
			return swapped
		}
		return strength
	}

	if strings.Count(strength, ",") > 1 {
		// Multiple commas with no period: thousands separators, leave alone.
		return strength
	}

	// A single comma followed by exactly three trailing digits could be a
	// thousands separator; that case is ambiguous and stays unchanged.
	tail := strength[lastComma+1:]
	if len(tail) == 3 && isDigits(tail) {
		return strength
	}

	return strength[:lastComma] + "." + tail
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

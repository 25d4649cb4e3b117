package entities

import "strings"

// Substance is an English/national name pair for one active substance.
type Substance struct {
	English  string `json:"english"`
	National string `json:"national"`
}

// DoseForm is an English/national name pair for a pharmaceutical dose form.
// At least one of the two names is expected to be present.
type DoseForm struct {
	English  string `json:"english"`
	National string `json:"national"`
}

// NormalizeWhitespace collapses runs of whitespace into single spaces and
// trims the ends. All names are normalized this way before display or
// comparison.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NewSubstance returns a substance with both names whitespace-normalized.
func NewSubstance(english, national string) Substance {
	return Substance{
		English:  NormalizeWhitespace(english),
		National: NormalizeWhitespace(national),
	}
}

// NewDoseForm returns a dose form with both names whitespace-normalized.
func NewDoseForm(english, national string) DoseForm {
	return DoseForm{
		English:  NormalizeWhitespace(english),
		National: NormalizeWhitespace(national),
	}
}

// Less orders substances by English name, then national name, for
// deterministic report ordering.
func (s Substance) Less(o Substance) bool {
	if s.English != o.English {
		return s.English < o.English
	}
	return s.National < o.National
}

// Less orders dose forms by English name, then national name.
func (d DoseForm) Less(o DoseForm) bool {
	if d.English != o.English {
		return d.English < o.English
	}
	return d.National < o.National
}

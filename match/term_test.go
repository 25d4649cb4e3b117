package match

import (
	"context"
	"errors"
	"testing"

	"github.com/ihtsdo/drugmatch/registry/entities"
	"github.com/ihtsdo/drugmatch/snomed"
)

func termInput() entities.Pharmaceutical {
	return checkInput()[0]
}

func termAttribute(candidates ...string) map[string]AttributeOutcome {
	return map[string]AttributeOutcome{
		"100": {DrugID: "100", Rule: AttributeExactMatch, Candidates: candidates},
	}
}

func TestCanonicalName(t *testing.T) {
	matcher := NewTermMatcher(newFakeTerminology(), "sv", 1)

	combination := entities.Pharmaceutical{
		DoseForm: entities.DoseForm{English: "Oral tablet", National: "tablett"},
		Components: []entities.Component{
			{
				Substance: entities.Substance{English: "Paracetamol", National: "paracetamol"},
				Strength:  "500",
				Unit:      "mg",
			},
			{
				Substance: entities.Substance{English: "Codeine", National: "kodein"},
				Strength:  "10",
				Unit:      "mg",
			},
		},
	}

	if got, want := matcher.CanonicalName(combination, LocaleEnglish), "Paracetamol 500 mg + codeine 10 mg oral tablet"; got != want {
		t.Errorf("english canonical = %q, want %q", got, want)
	}
	if got, want := matcher.CanonicalName(combination, LocaleNational), "paracetamol 500 mg + kodein 10 mg tablett"; got != want {
		t.Errorf("national canonical = %q, want %q", got, want)
	}

	// English strengths use period notation even when the registry carries a
	// national comma.
	decimal := termInput()
	decimal.Components[0].Strength = "12,5"
	if got, want := matcher.CanonicalName(decimal, LocaleEnglish), "Paracetamol 12.5 mg oral tablet"; got != want {
		t.Errorf("normalized english canonical = %q, want %q", got, want)
	}
	if got, want := matcher.CanonicalName(decimal, LocaleNational), "paracetamol 12,5 mg tablett"; got != want {
		t.Errorf("national canonical = %q, want %q", got, want)
	}
}

func TestTruncateFSN(t *testing.T) {
	tests := []struct {
		term string
		want string
	}{
		{"Paracetamol 500 mg oral tablet (medicinal product)", "Paracetamol 500 mg oral tablet"},
		{"Paracetamol 500 mg oral tablet", "Paracetamol 500 mg oral tablet"},
		{"Oddly shaped)", "Oddly shaped)"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := TruncateFSN(tt.term); got != tt.want {
			t.Errorf("TruncateFSN(%q) = %q, want %q", tt.term, got, tt.want)
		}
	}
}

func TestTermMatcherZeroAttributeCandidates(t *testing.T) {
	matcher := NewTermMatcher(newFakeTerminology(), "sv", 1)
	outcomes, err := matcher.Run(context.Background(), checkInput(), termAttribute())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	outcome := outcomes["100"]
	if outcome.Rule != TermZeroAttributeMatch {
		t.Errorf("rule = %s, want %s", outcome.Rule, TermZeroAttributeMatch)
	}
	if outcome.ConceptID != "" || outcome.Description != nil {
		t.Errorf("empty candidate set must not produce a winner: %+v", outcome)
	}
}

func TestTermMatcherExactNationalWinsOverEnglish(t *testing.T) {
	client := newFakeTerminology()
	client.addDescriptions("111",
		snomed.Description{DescriptionID: "d1", Term: "Paracetamol 500 mg oral tablet", Type: snomed.TypeSynonym, LanguageCode: "en"},
		snomed.Description{DescriptionID: "d2", Term: "paracetamol 500 mg tablett", Type: snomed.TypeSynonym, LanguageCode: "sv"},
	)

	matcher := NewTermMatcher(client, "sv", 1)
	outcomes, err := matcher.Run(context.Background(), checkInput(), termAttribute("111"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	outcome := outcomes["100"]
	if outcome.Rule != TermExactNationalMatch {
		t.Errorf("rule = %s, want %s", outcome.Rule, TermExactNationalMatch)
	}
	if outcome.ConceptID != "111" {
		t.Errorf("concept id = %q, want 111", outcome.ConceptID)
	}
	if outcome.Description == nil || outcome.Description.DescriptionID != "d2" {
		t.Errorf("winning description = %+v, want the national synonym", outcome.Description)
	}
}

func TestTermMatcherTruncatesFSNBeforeComparing(t *testing.T) {
	client := newFakeTerminology()
	client.addDescriptions("111",
		snomed.Description{DescriptionID: "d1", Term: "Paracetamol 500 mg oral tablet (medicinal product)", Type: snomed.TypeFullySpecifiedName, LanguageCode: "en"},
	)

	matcher := NewTermMatcher(client, "sv", 1)
	outcomes, err := matcher.Run(context.Background(), checkInput(), termAttribute("111"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome := outcomes["100"]; outcome.Rule != TermExactEnglishMatch {
		t.Errorf("rule = %s, want %s", outcome.Rule, TermExactEnglishMatch)
	}
}

func TestTermMatcherClassification(t *testing.T) {
	tests := []struct {
		name        string
		description snomed.Description
		want        TermRule
	}{
		{
			name:        "case insensitive english",
			description: snomed.Description{Term: "PARACETAMOL 500 MG ORAL TABLET", Type: snomed.TypeSynonym, LanguageCode: "en"},
			want:        TermCaseInsensitiveEnglishMatch,
		},
		{
			name:        "case insensitive national",
			description: snomed.Description{Term: "Paracetamol 500 mg Tablett", Type: snomed.TypeSynonym, LanguageCode: "sv"},
			want:        TermCaseInsensitiveNationalMatch,
		},
		{
			name:        "reordered english pieces",
			description: snomed.Description{Term: "Oral tablet Paracetamol 500 mg", Type: snomed.TypeSynonym, LanguageCode: "en"},
			want:        TermIncorrectComponentOrderEnglish,
		},
		{
			name:        "concatenated strength and unit",
			description: snomed.Description{Term: "Paracetamol 500mg oral tablet", Type: snomed.TypeSynonym, LanguageCode: "en"},
			want:        TermIncorrectComponentOrderEnglish,
		},
		{
			name:        "missing strength",
			description: snomed.Description{Term: "Paracetamol mg oral tablet", Type: snomed.TypeSynonym, LanguageCode: "en"},
			want:        TermMissingEnglishStrength,
		},
		{
			name:        "missing unit",
			description: snomed.Description{Term: "Paracetamol 500 oral tablet", Type: snomed.TypeSynonym, LanguageCode: "en"},
			want:        TermMissingEnglishUnit,
		},
		{
			name:        "missing dose form",
			description: snomed.Description{Term: "Paracetamol 500 mg", Type: snomed.TypeSynonym, LanguageCode: "en"},
			want:        TermMissingEnglishDoseForm,
		},
		{
			name:        "missing substance",
			description: snomed.Description{Term: "Ibuprofen 500 mg oral tablet", Type: snomed.TypeSynonym, LanguageCode: "en"},
			want:        TermMissingEnglishSubstance,
		},
		{
			name:        "reordered national pieces",
			description: snomed.Description{Term: "tablett paracetamol 500 mg", Type: snomed.TypeSynonym, LanguageCode: "sv"},
			want:        TermIncorrectComponentOrderNational,
		},
		{
			name:        "unrelated language",
			description: snomed.Description{Term: "paracetamol 500 mg tablett", Type: snomed.TypeSynonym, LanguageCode: "fr"},
			want:        TermZeroTermMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeTerminology()
			client.addDescriptions("111", tt.description)

			matcher := NewTermMatcher(client, "sv", 1)
			outcomes, err := matcher.Run(context.Background(), checkInput(), termAttribute("111"))
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if outcome := outcomes["100"]; outcome.Rule != tt.want {
				t.Errorf("rule = %s, want %s", outcome.Rule, tt.want)
			}
		})
	}
}

func TestTermMatcherAmbiguousDowngrade(t *testing.T) {
	client := newFakeTerminology()
	client.addDescriptions("111",
		snomed.Description{DescriptionID: "d1", Term: "paracetamol 500 mg tablett", Type: snomed.TypeSynonym, LanguageCode: "sv"},
	)
	client.addDescriptions("222",
		snomed.Description{DescriptionID: "d2", Term: "paracetamol 500 mg tablett", Type: snomed.TypeSynonym, LanguageCode: "sv"},
	)

	matcher := NewTermMatcher(client, "sv", 1)
	outcomes, err := matcher.Run(context.Background(), checkInput(), termAttribute("111", "222"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	outcome := outcomes["100"]
	if outcome.Rule != TermAmbiguousMatch {
		t.Errorf("rule = %s, want %s", outcome.Rule, TermAmbiguousMatch)
	}
	if outcome.ConceptID != "" || outcome.Description != nil {
		t.Errorf("ambiguous outcome must not name a winner: %+v", outcome)
	}
}

func TestTermMatcherRepeatedZeroStaysZero(t *testing.T) {
	client := newFakeTerminology()
	client.addDescriptions("111",
		snomed.Description{Term: "något helt annat", Type: snomed.TypeSynonym, LanguageCode: "fr"},
		snomed.Description{Term: "quelque chose", Type: snomed.TypeSynonym, LanguageCode: "fr"},
	)

	matcher := NewTermMatcher(client, "sv", 1)
	outcomes, err := matcher.Run(context.Background(), checkInput(), termAttribute("111"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome := outcomes["100"]; outcome.Rule != TermZeroTermMatch {
		t.Errorf("rule = %s, want %s: no match cannot be ambiguous", outcome.Rule, TermZeroTermMatch)
	}
}

func TestTermMatcherBestRuleWinsAcrossDescriptions(t *testing.T) {
	client := newFakeTerminology()
	client.addDescriptions("111",
		snomed.Description{DescriptionID: "d1", Term: "Paracetamol 500 mg", Type: snomed.TypeSynonym, LanguageCode: "en"},
		snomed.Description{DescriptionID: "d2", Term: "Paracetamol mg oral tablet", Type: snomed.TypeSynonym, LanguageCode: "en"},
	)

	matcher := NewTermMatcher(client, "sv", 1)
	outcomes, err := matcher.Run(context.Background(), checkInput(), termAttribute("111"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// A missing strength outweighs a missing dose form.
	outcome := outcomes["100"]
	if outcome.Rule != TermMissingEnglishStrength {
		t.Errorf("rule = %s, want %s", outcome.Rule, TermMissingEnglishStrength)
	}
	if outcome.Description == nil || outcome.Description.DescriptionID != "d2" {
		t.Errorf("winning description = %+v, want d2", outcome.Description)
	}
}

func TestTermMatcherDescriptionFetchErrorAborts(t *testing.T) {
	client := newFakeTerminology()
	client.descriptionsErr = errors.New("server unavailable")

	matcher := NewTermMatcher(client, "sv", 1)
	if _, err := matcher.Run(context.Background(), checkInput(), termAttribute("111")); err == nil {
		t.Fatal("expected a description fetch error to abort the stage")
	}
}

package match

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/ihtsdo/drugmatch/registry/entities"
	"github.com/ihtsdo/drugmatch/snomed"
)

func checkInput() []entities.Pharmaceutical {
	return []entities.Pharmaceutical{
		{
			DrugID:    "100",
			TradeName: "Dolorex",
			DoseForm:  entities.DoseForm{English: "Oral tablet", National: "tablett"},
			Components: []entities.Component{
				{
					Substance: entities.Substance{English: "Paracetamol", National: "paracetamol"},
					Strength:  "500",
					Unit:      "mg",
				},
			},
		},
	}
}

func TestCheckerResolvesNationalFirst(t *testing.T) {
	client := newFakeTerminology()
	client.addSearch("sv", "tablett", snomed.ConceptMatch{ConceptID: "421026006", Term: "tablett"})
	client.addSearch("sv", "paracetamol", snomed.ConceptMatch{ConceptID: "387517004", Term: "paracetamol"})
	client.addSearch("en", "Paracetamol", snomed.ConceptMatch{ConceptID: "387517004", Term: "Paracetamol"})
	client.addSearch("sv", "mg", snomed.ConceptMatch{ConceptID: "258684004", Term: "mg"})

	checker := NewChecker(client, DefaultValidator{}, "sv", 2)
	result, err := checker.Run(context.Background(), checkInput())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	doseForm := result.Outcome(CategoryDoseForm, "tablett")
	if doseForm.Rule != CheckExact || doseForm.Locale != LocaleNational {
		t.Errorf("dose form outcome = %s/%s, want EXACT/national", doseForm.Rule, doseForm.Locale)
	}
	if id := result.ConceptIDs(CategoryDoseForm)["tablett"]; id != "421026006" {
		t.Errorf("dose form concept id = %q", id)
	}
	if id := result.ConceptIDs(CategorySubstanceEnglish)["Paracetamol"]; id != "387517004" {
		t.Errorf("english substance concept id = %q", id)
	}
	if id := result.ConceptIDs(CategoryUnit)["mg"]; id != "258684004" {
		t.Errorf("unit concept id = %q", id)
	}
}

func TestCheckerEnglishFallback(t *testing.T) {
	client := newFakeTerminology()
	// No national hit for the unit, a single English one.
	client.addSearch("en", "mg", snomed.ConceptMatch{ConceptID: "258684004", Term: "mg"})

	checker := NewChecker(client, DefaultValidator{}, "sv", 1)
	result, err := checker.Run(context.Background(), checkInput())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	unit := result.Outcome(CategoryUnit, "mg")
	if unit.Rule != CheckTranslationMissing {
		t.Errorf("unit rule = %s, want TRANSLATION_MISSING", unit.Rule)
	}
	if unit.Locale != LocaleEnglish {
		t.Errorf("unit locale = %s, want english", unit.Locale)
	}
	// A single English fallback hit still resolves into the mapping.
	if id := result.ConceptIDs(CategoryUnit)["mg"]; id != "258684004" {
		t.Errorf("unit concept id = %q, want resolved fallback", id)
	}
}

func TestCheckerAmbiguousFallbackDoesNotResolve(t *testing.T) {
	client := newFakeTerminology()
	client.addSearch("en", "mg",
		snomed.ConceptMatch{ConceptID: "258684004", Term: "mg"},
		snomed.ConceptMatch{ConceptID: "258685003", Term: "mg(s)"})

	checker := NewChecker(client, DefaultValidator{}, "sv", 1)
	result, err := checker.Run(context.Background(), checkInput())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	unit := result.Outcome(CategoryUnit, "mg")
	if unit.Rule != CheckTranslationMissing {
		t.Errorf("unit rule = %s, want TRANSLATION_MISSING", unit.Rule)
	}
	if unit.Candidate != nil {
		t.Error("ambiguous fallback should not carry a candidate")
	}
	if _, ok := result.ConceptIDs(CategoryUnit)["mg"]; ok {
		t.Error("ambiguous fallback must stay out of the concept-id mapping")
	}
}

func TestCheckerZeroAndAmbiguous(t *testing.T) {
	client := newFakeTerminology()
	client.addSearch("sv", "tablett",
		snomed.ConceptMatch{ConceptID: "421026006", Term: "tablett"},
		snomed.ConceptMatch{ConceptID: "385055001", Term: "tablett, oral"})

	checker := NewChecker(client, DefaultValidator{}, "sv", 1)
	result, err := checker.Run(context.Background(), checkInput())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if rule := result.Outcome(CategoryDoseForm, "tablett").Rule; rule != CheckAmbiguous {
		t.Errorf("dose form rule = %s, want AMBIGUOUS", rule)
	}
	if rule := result.Outcome(CategoryUnit, "mg").Rule; rule != CheckZeroMatch {
		t.Errorf("unit rule = %s, want ZERO_MATCH", rule)
	}
	if len(result.ConceptIDs(CategoryDoseForm)) != 0 {
		t.Error("ambiguous names must not resolve")
	}
}

func TestCheckerUncheckedDefault(t *testing.T) {
	checker := NewChecker(newFakeTerminology(), DefaultValidator{}, "sv", 1)
	result, err := checker.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	outcome := result.Outcome(CategoryDoseForm, "never searched")
	if outcome.Rule != CheckUnchecked {
		t.Errorf("rule = %s, want UNCHECKED", outcome.Rule)
	}
}

func TestCheckerIdempotent(t *testing.T) {
	client := newFakeTerminology()
	client.addSearch("sv", "tablett", snomed.ConceptMatch{ConceptID: "421026006", Term: "tablett"})
	client.addSearch("sv", "paracetamol", snomed.ConceptMatch{ConceptID: "387517004", Term: "paracetamol"})
	client.addSearch("en", "Paracetamol", snomed.ConceptMatch{ConceptID: "387517004", Term: "Paracetamol"})
	client.addSearch("sv", "mg", snomed.ConceptMatch{ConceptID: "258684004", Term: "mg"})

	checker := NewChecker(client, DefaultValidator{}, "sv", 3)
	first, err := checker.Run(context.Background(), checkInput())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := checker.Run(context.Background(), checkInput())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	for _, category := range Categories() {
		if !reflect.DeepEqual(first.Outcomes(category), second.Outcomes(category)) {
			t.Errorf("outcomes of %s differ between identical runs", category)
		}
	}
}

func TestCheckerSearchErrorAborts(t *testing.T) {
	client := newFakeTerminology()
	client.searchErr = errors.New("server unavailable")

	checker := NewChecker(client, DefaultValidator{}, "sv", 2)
	if _, err := checker.Run(context.Background(), checkInput()); err == nil {
		t.Fatal("expected a search error to abort the stage")
	}
}

package match

import (
	"reflect"
	"testing"

	"github.com/ihtsdo/drugmatch/registry/entities"
)

func TestExtractDoseForm(t *testing.T) {
	tests := []struct {
		name     string
		term     string
		expected string
		units    []string
		want     string
		found    bool
	}{
		{
			name:     "exact trailing match",
			term:     "Paracetamol 500 mg oral tablet",
			expected: "Oral tablet",
			units:    []string{"mg"},
			want:     "oral tablet",
			found:    true,
		},
		{
			name:     "backward token match needs two tokens",
			term:     "Paracetamol 500 mg chewable oral tablet",
			expected: "Big oral tablet",
			units:    []string{"mg"},
			want:     "oral tablet",
			found:    true,
		},
		{
			name:     "after last unit fallback",
			term:     "Lamivudine 150mg + zidovudine 300mg + abacavir (as sulfate) 200mg tablet",
			expected: "Oral tablet",
			units:    []string{"mg"},
			want:     "tablet",
			found:    true,
		},
		{
			name:     "nothing extractable",
			term:     "Paracetamol",
			expected: "Oral tablet",
			units:    []string{"mg"},
			want:     "",
			found:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ExtractDoseForm(tt.term, tt.expected, tt.units)
			if found != tt.found || got != tt.want {
				t.Errorf("ExtractDoseForm(%q, %q) = (%q, %v), want (%q, %v)",
					tt.term, tt.expected, got, found, tt.want, tt.found)
			}
		})
	}
}

func TestTokenizeComponents(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "single component",
			in:   "Paracetamol 500 mg",
			want: []string{"Paracetamol 500 mg"},
		},
		{
			name: "plain plus split",
			in:   "Acetaminophen 120mg + codeine phosphate 12mg",
			want: []string{"Acetaminophen 120mg", "codeine phosphate 12mg"},
		},
		{
			name: "trailing slash strengths",
			in:   "Acetaminophen + alcohol + codeine phosphate 120mg/7%vv/12mg",
			want: []string{"Acetaminophen  120mg", "alcohol  7%vv", "codeine phosphate  12mg"},
		},
		{
			name: "slash count mismatch falls back to plain split",
			in:   "Acetaminophen 120mg/7%vv/12mg + codeine",
			want: []string{"Acetaminophen 120mg/7%vv/12mg", "codeine"},
		},
		{
			name: "no trailing strength token falls back to plain split",
			in:   "Alpha/beta + gamma 5mg",
			want: []string{"Alpha/beta", "gamma 5mg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TokenizeComponents(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TokenizeComponents(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestReconstruct(t *testing.T) {
	expected := entities.Pharmaceutical{
		DrugID: "100",
		DoseForm: entities.DoseForm{
			English:  "Oral tablet",
			National: "tablett",
		},
		Components: []entities.Component{
			{Substance: entities.Substance{English: "Alpha", National: "alfa"}, Strength: "20", Unit: "mg"},
			{Substance: entities.Substance{English: "Beta", National: "beta"}, Strength: "10", Unit: "mg"},
		},
	}

	t.Run("complete in order", func(t *testing.T) {
		got := Reconstruct("Alpha 20 mg + beta 10 mg oral tablet", expected, LocaleEnglish)
		if !got.Complete(expected) {
			t.Fatalf("expected complete reconstruction, got %+v", got)
		}
		if !got.InOrder() {
			t.Errorf("expected in-order reconstruction, got order %v", got.GroupOrder)
		}
	})

	t.Run("complete out of order", func(t *testing.T) {
		got := Reconstruct("Beta 10 mg + alpha 20 mg oral tablet", expected, LocaleEnglish)
		if !got.Complete(expected) {
			t.Fatalf("expected complete reconstruction, got %+v", got)
		}
		if got.InOrder() {
			t.Errorf("expected out-of-order reconstruction, got order %v", got.GroupOrder)
		}
	})

	t.Run("missing component is incomplete", func(t *testing.T) {
		got := Reconstruct("Alpha 20 mg oral tablet", expected, LocaleEnglish)
		if got.Complete(expected) {
			t.Errorf("expected incomplete reconstruction, got %+v", got)
		}
	})

	t.Run("concatenated strength unit still matches", func(t *testing.T) {
		got := Reconstruct("Alpha 20mg + beta 10mg oral tablet", expected, LocaleEnglish)
		if !got.Complete(expected) {
			t.Errorf("expected complete reconstruction with concatenated units, got %+v", got)
		}
	})
}

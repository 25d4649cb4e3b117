// Package validation provides input validation for registry records and
// user-supplied request parameters.
package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ihtsdo/drugmatch/interfaces"
	"github.com/ihtsdo/drugmatch/registry/entities"
)

// Pre-compiled patterns, compiled once at package initialization.
var (
	// Input validation: alphanumeric + accented letters + safe punctuation
	// as found in trade names, substance names and rule identifiers.
	inputRegex = regexp.MustCompile(`^[\p{L}\p{N}\s\-\._\+%/,']+$`)

	// Drug ids are numeric registry identifiers, up to 18 digits.
	drugIDRegex = regexp.MustCompile(`^\d{1,18}$`)

	// Dangerous substrings rejected outright in user input.
	// strings.Contains is considerably faster than a regex here.
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "onload=", "onerror=",
		"eval(", "expression(", "union select", "drop table", "--", "/*",
		"../", "..\\", "${", "`",
	}
)

const (
	maxNameLength     = 512
	maxStrengthLength = 64
	maxUnitLength     = 32
)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct{}

// NewDataValidator creates a new data validator
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{}
}

// ValidatePharmaceutical checks if a pharmaceutical record is valid.
func (v *DataValidatorImpl) ValidatePharmaceutical(p *entities.Pharmaceutical) error {
	if p == nil {
		return fmt.Errorf("pharmaceutical is nil")
	}

	if p.DrugID == "" {
		return fmt.Errorf("missing drug id")
	}
	if !drugIDRegex.MatchString(p.DrugID) {
		return fmt.Errorf("invalid drug id: %s", p.DrugID)
	}

	if p.TradeName == "" {
		return fmt.Errorf("missing trade name")
	}
	if len(p.TradeName) > maxNameLength {
		return fmt.Errorf("trade name too long: %d characters", len(p.TradeName))
	}

	// Both dose form names are individually optional, but at least one is
	// expected.
	if p.DoseForm.English == "" && p.DoseForm.National == "" {
		return fmt.Errorf("missing dose form")
	}
	if len(p.DoseForm.English) > maxNameLength || len(p.DoseForm.National) > maxNameLength {
		return fmt.Errorf("dose form name too long")
	}

	if len(p.Components) == 0 {
		return fmt.Errorf("no components")
	}
	for i, component := range p.Components {
		if component.Substance.English == "" && component.Substance.National == "" {
			return fmt.Errorf("component %d has no substance name", i)
		}
		if component.Strength == "" {
			return fmt.Errorf("component %d has no strength", i)
		}
		if len(component.Strength) > maxStrengthLength {
			return fmt.Errorf("component %d strength too long", i)
		}
		if component.Unit == "" {
			return fmt.Errorf("component %d has no unit", i)
		}
		if len(component.Unit) > maxUnitLength {
			return fmt.Errorf("component %d unit too long", i)
		}
	}

	return nil
}

// ReportDataQuality generates a data quality report over a full extract.
func (v *DataValidatorImpl) ReportDataQuality(pharmaceuticals []entities.Pharmaceutical) *interfaces.DataQualityReport {
	report := &interfaces.DataQualityReport{}

	seen := make(map[string]int, len(pharmaceuticals))
	for _, p := range pharmaceuticals {
		seen[p.DrugID]++
	}
	for drugID, count := range seen {
		if count > 1 {
			report.DuplicateDrugIDs = append(report.DuplicateDrugIDs, drugID)
		}
	}
	sort.Strings(report.DuplicateDrugIDs)

	for _, p := range pharmaceuticals {
		if len(p.Components) == 0 {
			report.RecordsWithoutComponents++
		}
		if p.DoseForm.English == "" && p.DoseForm.National == "" {
			report.RecordsWithoutDoseForm++
		}

		national := p.DoseForm.National != ""
		for _, component := range p.Components {
			if component.Substance.National == "" {
				national = false
			}
		}
		if !national {
			report.RecordsWithoutNationalNames++
		}
	}

	return report
}

// ValidateInput validates a user-supplied search string.
func (v *DataValidatorImpl) ValidateInput(input string) error {
	if input == "" {
		return fmt.Errorf("input cannot be empty")
	}
	if len(input) > maxNameLength {
		return fmt.Errorf("input too long: %d characters", len(input))
	}

	lower := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("input contains forbidden sequence")
		}
	}

	if !inputRegex.MatchString(input) {
		return fmt.Errorf("input contains invalid characters")
	}
	return nil
}

// ValidateDrugID validates a user-supplied drug id and returns its canonical
// form.
func (v *DataValidatorImpl) ValidateDrugID(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if !drugIDRegex.MatchString(trimmed) {
		return "", fmt.Errorf("invalid drug id: %s", input)
	}
	return trimmed, nil
}

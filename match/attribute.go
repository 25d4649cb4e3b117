package match

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ihtsdo/drugmatch/registry/entities"
)

// AttributeConfig carries the concept ids of the formal attribute types used
// in attribute-match searches. All three ids are required configuration; the
// service refuses to start without them.
type AttributeConfig struct {
	HasDoseFormID         string
	HasActiveIngredientID string
	HasUnitID             string
}

// Validate reports the first absent attribute id.
func (c AttributeConfig) Validate() error {
	switch {
	case c.HasDoseFormID == "":
		return fmt.Errorf("has-dose-form attribute id is not configured")
	case c.HasActiveIngredientID == "":
		return fmt.Errorf("has-active-ingredient attribute id is not configured")
	case c.HasUnitID == "":
		return fmt.Errorf("has-unit attribute id is not configured")
	}
	return nil
}

// AttributeOutcome is the result of the attribute-match ladder for one
// pharmaceutical: the rule reflecting which rung produced the result and the
// candidate concept ids of that rung.
type AttributeOutcome struct {
	DrugID     string
	Rule       AttributeRule
	Candidates []string
}

// AttributeMatcher finds, for each pharmaceutical, the concepts whose formal
// attribute relationships match the pharmaceutical's resolved attribute set.
type AttributeMatcher struct {
	client  TerminologyClient
	attrs   AttributeConfig
	workers int
}

// NewAttributeMatcher creates the attribute-match stage.
func NewAttributeMatcher(client TerminologyClient, attrs AttributeConfig, workers int) *AttributeMatcher {
	if workers < 1 {
		workers = 1
	}
	return &AttributeMatcher{client: client, attrs: attrs, workers: workers}
}

// Run matches every pharmaceutical independently and concurrently. The first
// search error cancels the remaining work and aborts the stage.
func (m *AttributeMatcher) Run(ctx context.Context, pharmaceuticals []entities.Pharmaceutical, check *CheckResult) (map[string]AttributeOutcome, error) {
	var (
		mu       sync.Mutex
		outcomes = make(map[string]AttributeOutcome, len(pharmaceuticals))
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
				outcome, err := m.matchOne(ctx, p, check)
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
		return nil, fmt.Errorf("attribute match stage failed: %w", firstErr)
	}
	return outcomes, nil
}

// matchOne resolves the pharmaceutical's attribute value set and walks the
// relaxation ladder. An unresolved attribute short-circuits with the
// corresponding MISSING rule and an empty candidate list; the ladder is never
// entered.
func (m *AttributeMatcher) matchOne(ctx context.Context, p entities.Pharmaceutical, check *CheckResult) (AttributeOutcome, error) {
	outcome := AttributeOutcome{DrugID: p.DrugID}

	doseFormID, _, ok := resolveLocale(p.DoseForm.National, p.DoseForm.English, check.ConceptIDs(CategoryDoseForm))
	if !ok {
		outcome.Rule = AttributeMissingDoseForm
		return outcome, nil
	}

	substanceIDs := make([]string, 0, len(p.Components))
	unitIDs := make([]string, 0, len(p.Components))
	unitMap := check.ConceptIDs(CategoryUnit)
	for _, component := range p.Components {
		substanceID, ok := lookupSubstance(component.Substance, check)
		if !ok {
			outcome.Rule = AttributeMissingSubstance
			return outcome, nil
		}
		substanceIDs = append(substanceIDs, substanceID)

		unitID, ok := unitMap[component.Unit]
		if !ok {
			outcome.Rule = AttributeMissingUnit
			return outcome, nil
		}
		unitIDs = append(unitIDs, unitID)
	}

	// Rung 1: dose form + substances + units.
	candidates, err := m.search(ctx,
		[]string{m.attrs.HasDoseFormID, m.attrs.HasActiveIngredientID, m.attrs.HasUnitID},
		append(append([]string{doseFormID}, substanceIDs...), unitIDs...))
	if err != nil {
		return outcome, err
	}
	if len(candidates) > 0 {
		outcome.Candidates = candidates
		outcome.Rule = AttributeExactMatch
		if len(candidates) > 1 {
			outcome.Rule = AttributeAmbiguousMatch
		}
		return outcome, nil
	}

	// Rung 2: units relaxed first. The asymmetry (units dropped before dose
	// form) is deliberate business policy.
	candidates, err = m.search(ctx,
		[]string{m.attrs.HasDoseFormID, m.attrs.HasActiveIngredientID},
		append([]string{doseFormID}, substanceIDs...))
	if err != nil {
		return outcome, err
	}
	if len(candidates) > 0 {
		outcome.Candidates = candidates
		outcome.Rule = AttributeExactMatchExcludingUnit
		if len(candidates) > 1 {
			outcome.Rule = AttributeAmbiguousMatchExcludingUnit
		}
		return outcome, nil
	}

	// Rung 3: substances only.
	candidates, err = m.search(ctx, []string{m.attrs.HasActiveIngredientID}, substanceIDs)
	if err != nil {
		return outcome, err
	}
	if len(candidates) > 0 {
		outcome.Candidates = candidates
		outcome.Rule = AttributeExactMatchExcludingDoseFormAndUnit
		if len(candidates) > 1 {
			outcome.Rule = AttributeAmbiguousExcludingDoseFormAndUnit
		}
		return outcome, nil
	}

	outcome.Rule = AttributeZeroMatch
	return outcome, nil
}

// search deduplicates and orders the value set before querying, so identical
// attribute sets always produce byte-identical requests.
func (m *AttributeMatcher) search(ctx context.Context, attributeIDs, valueIDs []string) ([]string, error) {
	return m.client.AttributeExactMatch(ctx, attributeIDs, dedupeSorted(valueIDs))
}

func dedupeSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// lookupSubstance resolves a substance id national name first, then English,
// each against its own checked category.
func lookupSubstance(s entities.Substance, check *CheckResult) (string, bool) {
	if s.National != "" {
		if id, ok := check.ConceptIDs(CategorySubstanceNational)[s.National]; ok {
			return id, true
		}
	}
	if s.English != "" {
		if id, ok := check.ConceptIDs(CategorySubstanceEnglish)[s.English]; ok {
			return id, true
		}
	}
	return "", false
}

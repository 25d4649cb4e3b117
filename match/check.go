package match

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ihtsdo/drugmatch/logging"
	"github.com/ihtsdo/drugmatch/registry/entities"
	"github.com/ihtsdo/drugmatch/snomed"
)

// TerminologyClient is the external search contract the pipeline depends on.
// A call failure aborts the run; callers needing retries must wrap the
// client.
type TerminologyClient interface {
	Search(ctx context.Context, query string, constraintIDs, namespaceIDs, localeCodes []string) ([]snomed.ConceptMatch, error)
	AttributeExactMatch(ctx context.Context, attributeIDs, valueIDs []string) ([]string, error)
	DescriptionsByConceptIDs(ctx context.Context, conceptIDs []string) ([]snomed.ConceptDescriptions, error)
}

// CheckCategory names the four checked name categories, one tabular report
// each.
type CheckCategory string

const (
	CategoryDoseForm          CheckCategory = "dose_form"
	CategorySubstanceEnglish  CheckCategory = "substance_english"
	CategorySubstanceNational CheckCategory = "substance_national"
	CategoryUnit              CheckCategory = "unit"
)

// Categories lists all check categories in report order.
func Categories() []CheckCategory {
	return []CheckCategory{CategoryDoseForm, CategorySubstanceEnglish, CategorySubstanceNational, CategoryUnit}
}

// CheckOutcome records how one distinct name resolved: the rule, the locale
// of the winning result set, and the winning candidate if the resolution was
// unambiguous.
type CheckOutcome struct {
	Name      string
	Category  CheckCategory
	Rule      CheckRule
	Locale    Locale
	Candidate *snomed.ConceptMatch
	Message   string
}

// CheckResult is the immutable output of the check stage: the per-name
// outcomes and the name-to-concept-id mapping of unambiguous resolutions.
// Ambiguous and unmatched names are absent from the mapping, not errors.
type CheckResult struct {
	outcomes   map[CheckCategory]map[string]CheckOutcome
	conceptIDs map[CheckCategory]map[string]string
}

// Outcome returns the recorded outcome for a name, or an UNCHECKED outcome
// when the name was never searched.
func (r *CheckResult) Outcome(category CheckCategory, name string) CheckOutcome {
	if byName, ok := r.outcomes[category]; ok {
		if outcome, ok := byName[name]; ok {
			return outcome
		}
	}
	return CheckOutcome{Name: name, Category: category, Rule: CheckUnchecked, Message: checkMessages[CheckUnchecked]}
}

// Outcomes returns every outcome of a category sorted by name, for
// deterministic report ordering.
func (r *CheckResult) Outcomes(category CheckCategory) []CheckOutcome {
	byName := r.outcomes[category]
	outcomes := make([]CheckOutcome, 0, len(byName))
	for _, outcome := range byName {
		outcomes = append(outcomes, outcome)
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Name < outcomes[j].Name })
	return outcomes
}

// ConceptIDs returns the name-to-concept-id mapping of a category. The map
// contains only unambiguously resolved names. Callers must not mutate it.
func (r *CheckResult) ConceptIDs(category CheckCategory) map[string]string {
	return r.conceptIDs[category]
}

// Checker resolves every distinct dose form, substance and unit name of an
// input set to at most one terminology concept.
type Checker struct {
	client         TerminologyClient
	validator      CheckValidator
	nationalLocale string
	workers        int
}

// NewChecker creates a check stage. workers bounds the number of concurrent
// name lookups; values below one resolve sequentially.
func NewChecker(client TerminologyClient, validator CheckValidator, nationalLocale string, workers int) *Checker {
	if workers < 1 {
		workers = 1
	}
	return &Checker{
		client:         client,
		validator:      validator,
		nationalLocale: nationalLocale,
		workers:        workers,
	}
}

type checkJob struct {
	category CheckCategory
	name     string
}

// Run resolves the full distinct name set of the given pharmaceuticals.
// Names are resolved independently and concurrently; the first search error
// cancels the remaining lookups and aborts the stage.
func (c *Checker) Run(ctx context.Context, pharmaceuticals []entities.Pharmaceutical) (*CheckResult, error) {
	jobs := distinctNames(pharmaceuticals)

	// Builder state local to the stage, discarded once the immutable result
	// is assembled.
	var (
		mu       sync.Mutex
		outcomes = make(map[CheckCategory]map[string]CheckOutcome)
		firstErr error
	)
	for _, category := range Categories() {
		outcomes[category] = make(map[string]CheckOutcome)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobCh := make(chan checkJob)
	var wg sync.WaitGroup
	wg.Add(c.workers)
	for i := 0; i < c.workers; i++ {
		go func() {
			defer wg.Done()
			for job := range jobCh {
				outcome, err := c.checkName(ctx, job)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
						cancel()
					}
				} else {
					outcomes[job.category][job.name] = outcome
				}
				mu.Unlock()
			}
		}()
	}

dispatch:
	for _, job := range jobs {
		select {
		case jobCh <- job:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobCh)
	wg.Wait()

	if firstErr != nil {
		return nil, fmt.Errorf("check stage failed: %w", firstErr)
	}

	result := &CheckResult{
		outcomes:   outcomes,
		conceptIDs: make(map[CheckCategory]map[string]string),
	}
	for category, byName := range outcomes {
		ids := make(map[string]string)
		for name, outcome := range byName {
			if outcome.Rule.Resolved() && outcome.Candidate != nil {
				ids[name] = outcome.Candidate.ConceptID
			}
		}
		result.conceptIDs[category] = ids
	}

	logging.Info("Check stage completed",
		"dose_forms", len(outcomes[CategoryDoseForm]),
		"substances_national", len(outcomes[CategorySubstanceNational]),
		"substances_english", len(outcomes[CategorySubstanceEnglish]),
		"units", len(outcomes[CategoryUnit]))

	return result, nil
}

// checkName performs the national-first exact search with English fallback
// and derives the check rule.
func (c *Checker) checkName(ctx context.Context, job checkJob) (CheckOutcome, error) {
	national, err := c.client.Search(ctx, job.name, nil, nil, []string{c.nationalLocale})
	if err != nil {
		return CheckOutcome{}, err
	}

	winning := national
	locale := LocaleNational
	var fallback []snomed.ConceptMatch
	if len(national) == 0 {
		fallback, err = c.client.Search(ctx, job.name, nil, nil, []string{"en"})
		if err != nil {
			return CheckOutcome{}, err
		}
		winning = fallback
		locale = LocaleEnglish
	}

	outcome := CheckOutcome{Name: job.name, Category: job.category, Locale: locale}
	switch {
	case len(national) == 0 && len(fallback) > 0:
		outcome.Rule = CheckTranslationMissing
		// A single English match still resolves; more than one stays out of
		// the concept-id mapping.
		if len(fallback) == 1 {
			outcome.Candidate = &fallback[0]
		}
	case len(winning) == 0:
		outcome.Rule = CheckZeroMatch
	case len(winning) == 1:
		outcome.Rule = c.validator.Classify(job.name, winning[0])
		outcome.Candidate = &winning[0]
	default:
		outcome.Rule = CheckAmbiguous
	}
	outcome.Message = c.validator.Message(outcome.Rule)

	return outcome, nil
}

// distinctNames collects the distinct checkable names of an input set. Dose
// forms are checked under their preferred name (national when present),
// substances under both names separately, units under their shared SI
// notation.
func distinctNames(pharmaceuticals []entities.Pharmaceutical) []checkJob {
	seen := make(map[checkJob]struct{})
	var jobs []checkJob
	add := func(category CheckCategory, name string) {
		if name == "" {
			return
		}
		job := checkJob{category: category, name: name}
		if _, dup := seen[job]; dup {
			return
		}
		seen[job] = struct{}{}
		jobs = append(jobs, job)
	}

	for _, p := range pharmaceuticals {
		add(CategoryDoseForm, MatchDescriptors(p.DoseForm.English, p.DoseForm.National))
		for _, component := range p.Components {
			add(CategorySubstanceNational, component.Substance.National)
			add(CategorySubstanceEnglish, component.Substance.English)
			add(CategoryUnit, component.Unit)
		}
	}
	return jobs
}

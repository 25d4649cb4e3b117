package match

import (
	"context"
	"fmt"
	"time"

	"github.com/ihtsdo/drugmatch/logging"
	"github.com/ihtsdo/drugmatch/metrics"
	"github.com/ihtsdo/drugmatch/registry/entities"
	"github.com/ihtsdo/drugmatch/snomed"
)

// PharmaceuticalMatch is the complete per-record outcome of a run: the
// attribute-match rule with its candidate list, and the term-match rule with
// the winning description when one exists.
type PharmaceuticalMatch struct {
	Pharmaceutical entities.Pharmaceutical `json:"pharmaceutical"`
	AttributeRule  AttributeRule           `json:"attributeRule"`
	Candidates     []string                `json:"candidates,omitempty"`
	TermRule       TermRule                `json:"termRule"`
	ConceptID      string                  `json:"conceptId,omitempty"`
	Description    *snomed.Description     `json:"description,omitempty"`
}

// ReconciliationResult is the immutable output of one full pipeline run.
type ReconciliationResult struct {
	Pharmaceuticals []entities.Pharmaceutical
	Matches         map[string]PharmaceuticalMatch
	Check           *CheckResult
	StartedAt       time.Time
	Duration        time.Duration
}

// Reconciler runs the three pipeline stages strictly in sequence: each stage
// consumes the previous stage's full immutable output. Any external-service
// error aborts the whole run; there is no partial-result continuation.
type Reconciler struct {
	checker   *Checker
	attribute *AttributeMatcher
	term      *TermMatcher
}

// NewReconciler wires the pipeline. The term-rule weight invariant is
// verified here so a broken taxonomy is caught before any run starts.
func NewReconciler(client TerminologyClient, validator CheckValidator, attrs AttributeConfig, nationalLocale string, workers int) (*Reconciler, error) {
	if err := VerifyTermRuleWeights(); err != nil {
		return nil, fmt.Errorf("term rule taxonomy is invalid: %w", err)
	}
	if err := attrs.Validate(); err != nil {
		return nil, fmt.Errorf("attribute configuration is invalid: %w", err)
	}
	return &Reconciler{
		checker:   NewChecker(client, validator, nationalLocale, workers),
		attribute: NewAttributeMatcher(client, attrs, workers),
		term:      NewTermMatcher(client, nationalLocale, workers),
	}, nil
}

// Run executes Check, Attribute Match and Term Match over the given records.
func (r *Reconciler) Run(ctx context.Context, pharmaceuticals []entities.Pharmaceutical) (*ReconciliationResult, error) {
	start := time.Now()

	check, err := r.checker.Run(ctx, pharmaceuticals)
	if err != nil {
		return nil, err
	}

	attributes, err := r.attribute.Run(ctx, pharmaceuticals, check)
	if err != nil {
		return nil, err
	}

	terms, err := r.term.Run(ctx, pharmaceuticals, attributes)
	if err != nil {
		return nil, err
	}

	matches := make(map[string]PharmaceuticalMatch, len(pharmaceuticals))
	for _, p := range pharmaceuticals {
		attribute := attributes[p.DrugID]
		term := terms[p.DrugID]
		matches[p.DrugID] = PharmaceuticalMatch{
			Pharmaceutical: p,
			AttributeRule:  attribute.Rule,
			Candidates:     attribute.Candidates,
			TermRule:       term.Rule,
			ConceptID:      term.ConceptID,
			Description:    term.Description,
		}
		metrics.AttributeRuleTotals.WithLabelValues(string(attribute.Rule)).Inc()
		metrics.TermRuleTotals.WithLabelValues(string(term.Rule)).Inc()
	}

	elapsed := time.Since(start)
	metrics.ReconcileDuration.Observe(elapsed.Seconds())
	logging.Info("Reconciliation completed",
		"pharmaceuticals", len(pharmaceuticals),
		"duration", elapsed.String())

	return &ReconciliationResult{
		Pharmaceuticals: pharmaceuticals,
		Matches:         matches,
		Check:           check,
		StartedAt:       start,
		Duration:        elapsed,
	}, nil
}

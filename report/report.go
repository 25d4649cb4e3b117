// Package report writes the tabular outputs of a reconciliation run: one
// check report per name category and one match report covering every
// pharmaceutical.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ihtsdo/drugmatch/logging"
	"github.com/ihtsdo/drugmatch/match"
)

// Writer writes run reports as CSV files into a target directory.
type Writer struct {
	dir string
}

// NewWriter creates a report writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// WriteAll writes the four check reports and the match report for one run.
func (w *Writer) WriteAll(result *match.ReconciliationResult) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	for _, category := range match.Categories() {
		name := fmt.Sprintf("check_%s.csv", category)
		if err := w.writeCheckReport(name, result.Check, category); err != nil {
			return err
		}
	}

	if err := w.writeMatchReport("matches.csv", result); err != nil {
		return err
	}

	logging.Info("Run reports written", "dir", w.dir)
	return nil
}

// writeCheckReport writes one category of check outcomes, sorted by name.
func (w *Writer) writeCheckReport(name string, check *match.CheckResult, category match.CheckCategory) error {
	rows := [][]string{{"name", "rule", "locale", "conceptId", "term", "message"}}
	if check != nil {
		for _, outcome := range check.Outcomes(category) {
			conceptID, term := "", ""
			if outcome.Candidate != nil {
				conceptID = outcome.Candidate.ConceptID
				term = outcome.Candidate.Term
			}
			rows = append(rows, []string{
				outcome.Name,
				string(outcome.Rule),
				string(outcome.Locale),
				conceptID,
				term,
				outcome.Message,
			})
		}
	}
	return w.writeCSV(name, rows)
}

// writeMatchReport writes the per-pharmaceutical outcome of the run, sorted
// by drug id. The pinpoint column flags winning descriptions whose component
// groups appear out of registry order, a signal worth manual review even on
// a match.
func (w *Writer) writeMatchReport(name string, result *match.ReconciliationResult) error {
	drugIDs := make([]string, 0, len(result.Matches))
	for drugID := range result.Matches {
		drugIDs = append(drugIDs, drugID)
	}
	sort.Strings(drugIDs)

	rows := [][]string{{"drugId", "tradeName", "attributeRule", "candidates", "termRule", "conceptId", "term", "pinpoint"}}
	for _, drugID := range drugIDs {
		m := result.Matches[drugID]
		conceptID, term := m.ConceptID, ""
		if m.Description != nil {
			term = m.Description.Term
		}
		rows = append(rows, []string{
			m.Pharmaceutical.DrugID,
			m.Pharmaceutical.TradeName,
			string(m.AttributeRule),
			strings.Join(m.Candidates, " "),
			string(m.TermRule),
			conceptID,
			term,
			pinpoint(m),
		})
	}
	return w.writeCSV(name, rows)
}

// pinpoint reconstructs the winning term against the expected record and
// names the defect when the reconstruction is incomplete or reordered.
func pinpoint(m match.PharmaceuticalMatch) string {
	if m.Description == nil {
		return ""
	}
	locale := match.LocaleNational
	if strings.HasPrefix(m.Description.LanguageCode, "en") {
		locale = match.LocaleEnglish
	}
	reconstructed := match.Reconstruct(m.Description.Term, m.Pharmaceutical, locale)
	switch {
	case !reconstructed.Complete(m.Pharmaceutical):
		return "incomplete"
	case !reconstructed.InOrder():
		return "reordered"
	default:
		return ""
	}
}

func (w *Writer) writeCSV(name string, rows [][]string) error {
	path := filepath.Join(w.dir, name)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	cw := csv.NewWriter(file)
	if err := cw.WriteAll(rows); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return file.Close()
}

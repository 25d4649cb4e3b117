package registry

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ihtsdo/drugmatch/interfaces"
	"github.com/ihtsdo/drugmatch/logging"
	"github.com/ihtsdo/drugmatch/registry/entities"
)

// Compile-time check to ensure Parser implements RegistryParser
var _ interfaces.RegistryParser = (*Parser)(nil)

// componentColumns is the expected column count of one registry extract row:
// drug id, trade name, dose form (English, national), substance (English,
// national), strength, unit. One row per component; component order within a
// drug follows row order.
const componentColumns = 8

// Parser loads the registry extract. Source may be a local path or a URL;
// remote sources are downloaded to CachePath before parsing.
type Parser struct {
	Source    string
	CachePath string
}

// NewParser creates a registry parser.
func NewParser(source, cachePath string) *Parser {
	return &Parser{Source: source, CachePath: cachePath}
}

// ParseAll loads the registry extract and assembles the pharmaceutical
// records. Malformed rows are skipped and counted, never fatal; a record's
// identity rows are grouped by drug id preserving row order.
func (p *Parser) ParseAll(ctx context.Context) ([]entities.Pharmaceutical, error) {
	path := p.Source
	if isRemote(p.Source) {
		if p.CachePath == "" {
			return nil, fmt.Errorf("remote registry source needs a cache path")
		}
		if err := downloadExtract(ctx, p.Source, p.CachePath); err != nil {
			return nil, err
		}
		path = p.CachePath
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry extract %s: %w", path, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("Failed to close registry extract", "error", err)
		}
	}()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0), 1*1024*1024)

	byDrugID := make(map[string]*entities.Pharmaceutical)
	var order []string

	lineCount := 0
	skippedEmptyLines := 0
	skippedMissingColumns := 0
	skippedMissingID := 0

	for scanner.Scan() {
		lineCount++
		line := scanner.Text()

		if len(line) == 0 {
			skippedEmptyLines++
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < componentColumns {
			skippedMissingColumns++
			continue
		}

		drugID := strings.TrimSpace(fields[0])
		if drugID == "" {
			skippedMissingID++
			continue
		}

		component := entities.Component{
			Substance: entities.NewSubstance(fields[4], fields[5]),
			Strength:  strings.TrimSpace(fields[6]),
			Unit:      strings.TrimSpace(fields[7]),
		}

		record, exists := byDrugID[drugID]
		if !exists {
			record = &entities.Pharmaceutical{
				DrugID:    drugID,
				TradeName: entities.NormalizeWhitespace(fields[1]),
				DoseForm:  entities.NewDoseForm(fields[2], fields[3]),
			}
			byDrugID[drugID] = record
			order = append(order, drugID)
		}
		record.Components = append(record.Components, component)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan registry extract: %w", err)
	}

	if skippedEmptyLines > 0 || skippedMissingColumns > 0 || skippedMissingID > 0 {
		logging.Warn("Skipped registry rows",
			"empty_lines", skippedEmptyLines,
			"missing_columns", skippedMissingColumns,
			"missing_drug_id", skippedMissingID,
			"total_lines", lineCount)
	}

	pharmaceuticals := make([]entities.Pharmaceutical, 0, len(order))
	for _, drugID := range order {
		pharmaceuticals = append(pharmaceuticals, *byDrugID[drugID])
	}

	logging.Info("Registry extract parsed", "pharmaceuticals", len(pharmaceuticals), "rows", lineCount)
	return pharmaceuticals, nil
}

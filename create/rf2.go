package create

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// RF2 delta file names, keyed by content type.
const (
	conceptFile      = "sct2_Concept_Delta.txt"
	descriptionFile  = "sct2_Description_Delta.txt"
	relationshipFile = "sct2_StatedRelationship_Delta.txt"
	languageFile     = "der2_cRefset_LanguageDelta.txt"
)

// WriteFiles writes the authored content as tab-separated RF2 delta files
// under dir. effectiveTime is stamped on every row as yyyyMMdd.
func (c *ExtensionContent) WriteFiles(dir string, effectiveTime time.Time) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	stamp := effectiveTime.Format("20060102")

	files := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{
			name:   conceptFile,
			header: []string{"id", "effectiveTime", "active", "moduleId", "definitionStatusId"},
			rows:   conceptRows(c.Concepts, stamp),
		},
		{
			name:   descriptionFile,
			header: []string{"id", "effectiveTime", "active", "moduleId", "conceptId", "languageCode", "typeId", "term", "caseSignificanceId"},
			rows:   descriptionRows(c.Descriptions, stamp),
		},
		{
			name:   relationshipFile,
			header: []string{"id", "effectiveTime", "active", "moduleId", "sourceId", "destinationId", "relationshipGroup", "typeId", "characteristicTypeId", "modifierId"},
			rows:   relationshipRows(c.Relationships, stamp),
		},
		{
			name:   languageFile,
			header: []string{"id", "effectiveTime", "active", "moduleId", "refsetId", "referencedComponentId", "acceptabilityId"},
			rows:   languageRows(c.Language, stamp),
		},
	}

	for _, f := range files {
		if err := writeTabFile(filepath.Join(dir, f.name), f.header, f.rows); err != nil {
			return err
		}
	}
	return nil
}

func conceptRows(rows []ConceptRow, stamp string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.ID, stamp, activeFlag(r.Active), r.ModuleID, r.DefinitionStatusID})
	}
	return out
}

func descriptionRows(rows []DescriptionRow, stamp string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.ID, stamp, activeFlag(r.Active), r.ModuleID, r.ConceptID, r.LanguageCode, r.TypeID, r.Term, r.CaseSignificanceID})
	}
	return out
}

func relationshipRows(rows []RelationshipRow, stamp string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.ID, stamp, activeFlag(r.Active), r.ModuleID, r.SourceID, r.DestinationID, strconv.Itoa(r.RelationshipGroup), r.TypeID, r.CharacteristicTypeID, r.ModifierID})
	}
	return out
}

func languageRows(rows []LanguageRefsetRow, stamp string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.ID, stamp, activeFlag(r.Active), r.ModuleID, r.RefsetID, r.ReferencedComponentID, r.AcceptabilityID})
	}
	return out
}

func activeFlag(active bool) string {
	if active {
		return "1"
	}
	return "0"
}

// writeTabFile writes one header row plus data rows, tab separated with \r\n
// line endings per the release file convention.
func writeTabFile(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	w := bufio.NewWriter(file)
	writeRow := func(fields []string) {
		for i, field := range fields {
			if i > 0 {
				w.WriteByte('\t')
			}
			w.WriteString(field)
		}
		w.WriteString("\r\n")
	}

	writeRow(header)
	for _, row := range rows {
		writeRow(row)
	}

	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return file.Close()
}

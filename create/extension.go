// Package create builds terminology extension content for registry records
// that finished a run without a confident match. The output is a set of
// RF2-style rows (concept, descriptions, relationships, language refset
// members) ready for import into the national extension.
package create

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ihtsdo/drugmatch/logging"
	"github.com/ihtsdo/drugmatch/match"
	"github.com/ihtsdo/drugmatch/registry/entities"
)

// SNOMED CT metadata concepts used on authored rows.
const (
	isAConceptID             = "116680003"
	medicinalProductID       = "763158003"
	primitiveDefinitionID    = "900000000000074008"
	fsnTypeID                = "900000000000003001"
	synonymTypeID            = "900000000000013009"
	caseInsensitiveID        = "900000000000448009"
	statedRelationshipID     = "900000000000010007"
	existentialModifierID    = "900000000000451002"
	preferredAcceptabilityID = "900000000000548007"
	usLanguageRefsetID       = "900000000000509007"
)

// IDReserver allocates SCTIDs from the national namespace.
type IDReserver interface {
	ReserveIDs(ctx context.Context, namespaceID string, count int) ([]string, error)
}

// ConceptRow is one RF2 concept file row.
type ConceptRow struct {
	ID                 string
	Active             bool
	ModuleID           string
	DefinitionStatusID string
}

// DescriptionRow is one RF2 description file row.
type DescriptionRow struct {
	ID                 string
	Active             bool
	ModuleID           string
	ConceptID          string
	LanguageCode       string
	TypeID             string
	Term               string
	CaseSignificanceID string
}

// RelationshipRow is one RF2 stated relationship file row.
type RelationshipRow struct {
	ID                   string
	Active               bool
	ModuleID             string
	SourceID             string
	DestinationID        string
	RelationshipGroup    int
	TypeID               string
	CharacteristicTypeID string
	ModifierID           string
}

// LanguageRefsetRow is one RF2 language reference set member row.
type LanguageRefsetRow struct {
	ID                    string
	Active                bool
	ModuleID              string
	RefsetID              string
	ReferencedComponentID string
	AcceptabilityID       string
}

// ExtensionContent is the full authored output of one build.
type ExtensionContent struct {
	Concepts      []ConceptRow
	Descriptions  []DescriptionRow
	Relationships []RelationshipRow
	Language      []LanguageRefsetRow
}

// ExtensionBuilder authors extension concepts for pharmaceuticals the
// pipeline could not resolve to an existing description.
type ExtensionBuilder struct {
	reserver       IDReserver
	namer          *match.TermMatcher
	namespaceID    string
	moduleID       string
	nationalLocale string
	nationalRefset string
	hasDoseForm    string
	hasIngredient  string
	hasUnit        string
}

// NewExtensionBuilder wires the builder. namer supplies the canonical product
// names the new descriptions carry; nationalRefsetID is the language refset
// national preferred terms are registered in.
func NewExtensionBuilder(reserver IDReserver, namer *match.TermMatcher, namespaceID, moduleID, nationalLocale, nationalRefsetID string, attrs match.AttributeConfig) *ExtensionBuilder {
	return &ExtensionBuilder{
		reserver:       reserver,
		namer:          namer,
		namespaceID:    namespaceID,
		moduleID:       moduleID,
		nationalLocale: nationalLocale,
		nationalRefset: nationalRefsetID,
		hasDoseForm:    attrs.HasDoseFormID,
		hasIngredient:  attrs.HasActiveIngredientID,
		hasUnit:        attrs.HasUnitID,
	}
}

// NeedsAuthoring reports whether a match outcome leaves a record without any
// usable terminology binding. Records with a winning description, or with an
// unambiguous single attribute candidate, are considered bound.
func NeedsAuthoring(m match.PharmaceuticalMatch) bool {
	if m.ConceptID != "" {
		return false
	}
	return len(m.Candidates) != 1
}

// Build authors one new concept per unresolved record. Attribute
// relationships are only authored for names the check stage resolved; a
// record whose dose form never resolved still gets its ISA row.
func (b *ExtensionBuilder) Build(ctx context.Context, result *match.ReconciliationResult) (*ExtensionContent, error) {
	var pending []match.PharmaceuticalMatch
	for _, p := range result.Pharmaceuticals {
		if m, ok := result.Matches[p.DrugID]; ok && NeedsAuthoring(m) {
			pending = append(pending, m)
		}
	}
	if len(pending) == 0 {
		return &ExtensionContent{}, nil
	}

	content := &ExtensionContent{}
	for _, m := range pending {
		if err := b.author(ctx, m.Pharmaceutical, result.Check, content); err != nil {
			return nil, fmt.Errorf("authoring drug %s: %w", m.Pharmaceutical.DrugID, err)
		}
	}

	logging.Info("Extension content authored",
		"concepts", len(content.Concepts),
		"descriptions", len(content.Descriptions),
		"relationships", len(content.Relationships))

	return content, nil
}

// author reserves ids and appends the rows of one new concept.
func (b *ExtensionBuilder) author(ctx context.Context, p entities.Pharmaceutical, check *match.CheckResult, content *ExtensionContent) error {
	nationalName := b.namer.CanonicalName(p, match.LocaleNational)
	englishName := b.namer.CanonicalName(p, match.LocaleEnglish)

	descriptions := descriptionTerms(nationalName, englishName, b.nationalLocale)
	relationships := b.relationshipTargets(p, check)

	// One reservation covers the concept, its descriptions and its
	// relationships.
	ids, err := b.reserver.ReserveIDs(ctx, b.namespaceID, 1+len(descriptions)+len(relationships))
	if err != nil {
		return err
	}

	conceptID := ids[0]
	content.Concepts = append(content.Concepts, ConceptRow{
		ID:                 conceptID,
		Active:             true,
		ModuleID:           b.moduleID,
		DefinitionStatusID: primitiveDefinitionID,
	})

	next := 1
	for _, d := range descriptions {
		descriptionID := ids[next]
		next++
		content.Descriptions = append(content.Descriptions, DescriptionRow{
			ID:                 descriptionID,
			Active:             true,
			ModuleID:           b.moduleID,
			ConceptID:          conceptID,
			LanguageCode:       d.languageCode,
			TypeID:             d.typeID,
			Term:               d.term,
			CaseSignificanceID: caseInsensitiveID,
		})
		content.Language = append(content.Language, LanguageRefsetRow{
			ID:                    uuid.NewString(),
			Active:                true,
			ModuleID:              b.moduleID,
			RefsetID:              d.refsetID(b.nationalRefset),
			ReferencedComponentID: descriptionID,
			AcceptabilityID:       preferredAcceptabilityID,
		})
	}

	for _, r := range relationships {
		content.Relationships = append(content.Relationships, RelationshipRow{
			ID:                   ids[next],
			Active:               true,
			ModuleID:             b.moduleID,
			SourceID:             conceptID,
			DestinationID:        r.destinationID,
			RelationshipGroup:    r.group,
			TypeID:               r.typeID,
			CharacteristicTypeID: statedRelationshipID,
			ModifierID:           existentialModifierID,
		})
		next++
	}

	return nil
}

type descriptionTerm struct {
	term         string
	languageCode string
	typeID       string
}

func (d descriptionTerm) refsetID(nationalRefset string) string {
	if d.languageCode == "en" {
		return usLanguageRefsetID
	}
	return nationalRefset
}

// descriptionTerms builds the description set of a new concept: an English
// FSN tagged as a product, plus a preferred synonym per available locale.
func descriptionTerms(nationalName, englishName, nationalLocale string) []descriptionTerm {
	var terms []descriptionTerm
	if englishName != "" {
		terms = append(terms,
			descriptionTerm{term: englishName + " (medicinal product)", languageCode: "en", typeID: fsnTypeID},
			descriptionTerm{term: englishName, languageCode: "en", typeID: synonymTypeID},
		)
	}
	if nationalName != "" && !strings.EqualFold(nationalName, englishName) {
		terms = append(terms, descriptionTerm{term: nationalName, languageCode: nationalLocale, typeID: synonymTypeID})
	}
	return terms
}

type relationshipTarget struct {
	typeID        string
	destinationID string
	group         int
}

// relationshipTargets derives the stated view of a new concept from the
// check stage's resolved names. Components are grouped starting at role
// group one; the ungrouped ISA to medicinal product always comes first.
func (b *ExtensionBuilder) relationshipTargets(p entities.Pharmaceutical, check *match.CheckResult) []relationshipTarget {
	targets := []relationshipTarget{{typeID: isAConceptID, destinationID: medicinalProductID}}
	if check == nil {
		return targets
	}

	doseForms := check.ConceptIDs(match.CategoryDoseForm)
	name := match.MatchDescriptors(p.DoseForm.English, p.DoseForm.National)
	if id, ok := doseForms[name]; ok {
		targets = append(targets, relationshipTarget{typeID: b.hasDoseForm, destinationID: id})
	}

	national := check.ConceptIDs(match.CategorySubstanceNational)
	english := check.ConceptIDs(match.CategorySubstanceEnglish)
	units := check.ConceptIDs(match.CategoryUnit)
	for i, component := range p.Components {
		group := i + 1
		if id, ok := national[component.Substance.National]; ok {
			targets = append(targets, relationshipTarget{typeID: b.hasIngredient, destinationID: id, group: group})
		} else if id, ok := english[component.Substance.English]; ok {
			targets = append(targets, relationshipTarget{typeID: b.hasIngredient, destinationID: id, group: group})
		}
		if id, ok := units[component.Unit]; ok {
			targets = append(targets, relationshipTarget{typeID: b.hasUnit, destinationID: id, group: group})
		}
	}
	return targets
}

package snomed

// Description types as they appear in the terminology.
const (
	TypeFullySpecifiedName = "FSN"
	TypeSynonym            = "SYNONYM"
)

// ConceptMatch is one row of a description search result: the concept the
// matched description belongs to, plus the matched term itself.
type ConceptMatch struct {
	ConceptID     string `json:"conceptId"`
	DescriptionID string `json:"descriptionId"`
	Term          string `json:"term"`
	NamespaceID   string `json:"namespaceId"`
}

// Description is one textual description of a concept.
type Description struct {
	DescriptionID string `json:"descriptionId"`
	Term          string `json:"term"`
	Type          string `json:"type"`
	LanguageCode  string `json:"lang"`
}

// ConceptDescriptions groups all descriptions belonging to one concept.
type ConceptDescriptions struct {
	ConceptID    string        `json:"conceptId"`
	Descriptions []Description `json:"descriptions"`
}

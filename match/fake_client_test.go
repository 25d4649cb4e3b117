package match

import (
	"context"
	"sync"

	"github.com/ihtsdo/drugmatch/snomed"
)

// fakeTerminology is an in-memory TerminologyClient for pipeline tests.
// Search results are keyed by locale code and query; attribute matches by the
// joined value-id set.
type fakeTerminology struct {
	mu sync.Mutex

	// locale -> query -> results
	searchResults map[string]map[string][]snomed.ConceptMatch
	// joined sorted value ids -> concept ids
	attributeResults map[string][]string
	descriptions     map[string][]snomed.Description

	searchErr       error
	attributeErr    error
	descriptionsErr error

	searchCalls    []searchCall
	attributeCalls []attributeCall
}

type searchCall struct {
	query  string
	locale string
}

type attributeCall struct {
	attributeIDs []string
	valueIDs     []string
}

func newFakeTerminology() *fakeTerminology {
	return &fakeTerminology{
		searchResults:    make(map[string]map[string][]snomed.ConceptMatch),
		attributeResults: make(map[string][]string),
		descriptions:     make(map[string][]snomed.Description),
	}
}

func (f *fakeTerminology) addSearch(locale, query string, matches ...snomed.ConceptMatch) {
	if f.searchResults[locale] == nil {
		f.searchResults[locale] = make(map[string][]snomed.ConceptMatch)
	}
	f.searchResults[locale][query] = matches
}

func valueKey(valueIDs []string) string {
	key := ""
	for _, id := range valueIDs {
		key += id + "|"
	}
	return key
}

func (f *fakeTerminology) addAttributeMatch(valueIDs []string, conceptIDs ...string) {
	f.attributeResults[valueKey(valueIDs)] = conceptIDs
}

func (f *fakeTerminology) addDescriptions(conceptID string, descriptions ...snomed.Description) {
	f.descriptions[conceptID] = descriptions
}

func (f *fakeTerminology) Search(ctx context.Context, query string, constraintIDs, namespaceIDs, localeCodes []string) ([]snomed.ConceptMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	locale := ""
	if len(localeCodes) > 0 {
		locale = localeCodes[0]
	}
	f.searchCalls = append(f.searchCalls, searchCall{query: query, locale: locale})
	return f.searchResults[locale][query], nil
}

func (f *fakeTerminology) AttributeExactMatch(ctx context.Context, attributeIDs, valueIDs []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attributeErr != nil {
		return nil, f.attributeErr
	}
	f.attributeCalls = append(f.attributeCalls, attributeCall{attributeIDs: attributeIDs, valueIDs: valueIDs})
	return f.attributeResults[valueKey(valueIDs)], nil
}

func (f *fakeTerminology) DescriptionsByConceptIDs(ctx context.Context, conceptIDs []string) ([]snomed.ConceptDescriptions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.descriptionsErr != nil {
		return nil, f.descriptionsErr
	}
	out := make([]snomed.ConceptDescriptions, 0, len(conceptIDs))
	for _, id := range conceptIDs {
		out = append(out, snomed.ConceptDescriptions{ConceptID: id, Descriptions: f.descriptions[id]})
	}
	return out, nil
}

package snomed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestSearchDecodesItems(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/MAIN/descriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"items":[
			{"conceptId":"421026006","descriptionId":"d1","term":"tablett"},
			{"conceptId":"385055001","descriptionId":"d2","term":"tablett"}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "MAIN", 0)
	matches, err := client.Search(context.Background(), "tablett",
		[]string{"736542009"}, []string{"1000052"}, []string{"sv"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
	if matches[0].ConceptID != "421026006" || matches[0].Term != "tablett" {
		t.Errorf("first match = %+v", matches[0])
	}

	if got := gotQuery.Get("term"); got != "tablett" {
		t.Errorf("term param = %q", got)
	}
	if got := gotQuery.Get("mode"); got != "exact" {
		t.Errorf("mode param = %q", got)
	}
	if got := gotQuery.Get("constraintId"); got != "736542009" {
		t.Errorf("constraintId param = %q", got)
	}
	if got := gotQuery.Get("language"); got != "sv" {
		t.Errorf("language param = %q", got)
	}
}

func TestSearchServerErrorIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "branch not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "MAIN", 0)
	_, err := client.Search(context.Background(), "tablett", nil, nil, nil)
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "branch not found") {
		t.Errorf("error = %v, want status and body snippet", err)
	}
}

func TestAttributeExactMatchPayload(t *testing.T) {
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/MAIN/concepts/attribute-match" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		_, _ = w.Write([]byte(`{"items":[{"conceptId":"111"},{"conceptId":"222"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "MAIN", 0)
	ids, err := client.AttributeExactMatch(context.Background(),
		[]string{"411116001", "127489000"}, []string{"387517004", "421026006"})
	if err != nil {
		t.Fatalf("AttributeExactMatch failed: %v", err)
	}

	if len(ids) != 2 || ids[0] != "111" || ids[1] != "222" {
		t.Errorf("concept ids = %v", ids)
	}
	if exact, _ := gotPayload["exact"].(bool); !exact {
		t.Errorf("exact flag = %v", gotPayload["exact"])
	}
	if values, _ := gotPayload["valueIds"].([]any); len(values) != 2 || values[0] != "387517004" {
		t.Errorf("valueIds = %v", gotPayload["valueIds"])
	}
}

func TestDescriptionsByConceptIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/MAIN/descriptions/by-concept" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query()["conceptId"]; len(got) != 2 {
			t.Errorf("conceptId params = %v", got)
		}
		_, _ = w.Write([]byte(`{"items":[
			{"conceptId":"111","descriptions":[{"descriptionId":"d1","term":"tablett","type":"SYNONYM","lang":"sv"}]},
			{"conceptId":"222","descriptions":[]}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "MAIN", 0)
	descriptions, err := client.DescriptionsByConceptIDs(context.Background(), []string{"111", "222"})
	if err != nil {
		t.Fatalf("DescriptionsByConceptIDs failed: %v", err)
	}

	if len(descriptions) != 2 {
		t.Fatalf("concepts = %d, want 2", len(descriptions))
	}
	first := descriptions[0]
	if first.ConceptID != "111" || len(first.Descriptions) != 1 {
		t.Fatalf("first concept = %+v", first)
	}
	if d := first.Descriptions[0]; d.Term != "tablett" || d.Type != TypeSynonym || d.LanguageCode != "sv" {
		t.Errorf("description = %+v", d)
	}
}

func TestDescriptionsByConceptIDsEmptyInput(t *testing.T) {
	// No request must be issued for an empty id set.
	client := NewClient("http://terminology.invalid", "MAIN", 0)
	descriptions, err := client.DescriptionsByConceptIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty input produced error: %v", err)
	}
	if descriptions != nil {
		t.Errorf("descriptions = %v, want nil", descriptions)
	}
}

func TestReserveIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sct/bulk-reserve" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		if ns, _ := payload["namespaceId"].(string); ns != "1000052" {
			t.Errorf("namespaceId = %v", payload["namespaceId"])
		}
		if qty, _ := payload["quantity"].(float64); qty != 3 {
			t.Errorf("quantity = %v", payload["quantity"])
		}
		_, _ = w.Write([]byte(`{"sctids":["100011000052107","100021000052104","100031000052101"]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "MAIN", 0)
	ids, err := client.ReserveIDs(context.Background(), "1000052", 3)
	if err != nil {
		t.Fatalf("ReserveIDs failed: %v", err)
	}
	if len(ids) != 3 || ids[0] != "100011000052107" {
		t.Errorf("ids = %v", ids)
	}
}

func TestReserveIDsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sctids":["100011000052107"]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "MAIN", 0)
	if _, err := client.ReserveIDs(context.Background(), "1000052", 3); err == nil {
		t.Fatal("expected a short reservation to be rejected")
	}
}

func TestReserveIDsZeroCount(t *testing.T) {
	client := NewClient("http://terminology.invalid", "MAIN", 0)
	ids, err := client.ReserveIDs(context.Background(), "1000052", 0)
	if err != nil || ids != nil {
		t.Fatalf("zero count = (%v, %v), want (nil, nil)", ids, err)
	}
}

// Package snomed provides the HTTP client for the terminology server. It
// implements the three lookup contracts the matching pipeline depends on
// (description search, attribute exact match, descriptions by concept) plus
// identifier reservation for the extension create stage.
package snomed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ihtsdo/drugmatch/logging"
	"github.com/ihtsdo/drugmatch/metrics"
	"github.com/juju/ratelimit"
)

// Client talks to a Snowstorm-style terminology server. All calls are paced
// through a shared token bucket so a full reconciliation run stays inside the
// server's rate limits. Calls do not retry: a failed call aborts the run and
// callers needing resilience must wrap the client.
type Client struct {
	baseURL    string
	branch     string
	httpClient *http.Client
	bucket     *ratelimit.Bucket
}

// NewClient creates a terminology client. requestsPerSecond bounds the
// outbound request rate; zero or negative disables pacing.
func NewClient(baseURL, branch string, requestsPerSecond float64) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		branch:  branch,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
	if requestsPerSecond > 0 {
		c.bucket = ratelimit.NewBucketWithRate(requestsPerSecond, int64(requestsPerSecond)+1)
	}
	return c
}

// Search performs an exact preferred-term description search, restricted to
// the given constraint concepts, namespaces and locale codes. The result
// order is the server's relevance order and is preserved.
func (c *Client) Search(ctx context.Context, query string, constraintIDs, namespaceIDs, localeCodes []string) ([]ConceptMatch, error) {
	params := url.Values{}
	params.Set("term", query)
	params.Set("mode", "exact")
	for _, id := range constraintIDs {
		params.Add("constraintId", id)
	}
	for _, ns := range namespaceIDs {
		params.Add("namespaceId", ns)
	}
	for _, lc := range localeCodes {
		params.Add("language", lc)
	}

	var body struct {
		Items []ConceptMatch `json:"items"`
	}
	endpoint := fmt.Sprintf("/%s/descriptions", url.PathEscape(c.branch))
	if err := c.get(ctx, "search", endpoint+"?"+params.Encode(), &body); err != nil {
		return nil, fmt.Errorf("description search for %q failed: %w", query, err)
	}
	return body.Items, nil
}

// AttributeExactMatch returns the ids of concepts whose attribute-value set
// equals exactly the given attribute ids and value ids.
func (c *Client) AttributeExactMatch(ctx context.Context, attributeIDs, valueIDs []string) ([]string, error) {
	payload := map[string]any{
		"attributeIds": attributeIDs,
		"valueIds":     valueIDs,
		"exact":        true,
	}

	var body struct {
		Items []struct {
			ConceptID string `json:"conceptId"`
		} `json:"items"`
	}
	endpoint := fmt.Sprintf("/%s/concepts/attribute-match", url.PathEscape(c.branch))
	if err := c.post(ctx, "attribute-match", endpoint, payload, &body); err != nil {
		return nil, fmt.Errorf("attribute exact match failed: %w", err)
	}

	ids := make([]string, 0, len(body.Items))
	for _, item := range body.Items {
		ids = append(ids, item.ConceptID)
	}
	return ids, nil
}

// DescriptionsByConceptIDs fetches the full description set of each given
// concept.
func (c *Client) DescriptionsByConceptIDs(ctx context.Context, conceptIDs []string) ([]ConceptDescriptions, error) {
	if len(conceptIDs) == 0 {
		return nil, nil
	}
	params := url.Values{}
	for _, id := range conceptIDs {
		params.Add("conceptId", id)
	}

	var body struct {
		Items []ConceptDescriptions `json:"items"`
	}
	endpoint := fmt.Sprintf("/%s/descriptions/by-concept", url.PathEscape(c.branch))
	if err := c.get(ctx, "descriptions", endpoint+"?"+params.Encode(), &body); err != nil {
		return nil, fmt.Errorf("descriptions fetch failed: %w", err)
	}
	return body.Items, nil
}

// ReserveIDs reserves count new SCTIDs in the given namespace for extension
// content.
func (c *Client) ReserveIDs(ctx context.Context, namespaceID string, count int) ([]string, error) {
	if count <= 0 {
		return nil, nil
	}
	payload := map[string]any{
		"namespaceId": namespaceID,
		"quantity":    count,
	}

	var body struct {
		SctIDs []string `json:"sctids"`
	}
	if err := c.post(ctx, "reserve-ids", "/sct/bulk-reserve", payload, &body); err != nil {
		return nil, fmt.Errorf("id reservation failed: %w", err)
	}
	if len(body.SctIDs) != count {
		return nil, fmt.Errorf("id reservation returned %d ids, wanted %d", len(body.SctIDs), count)
	}
	return body.SctIDs, nil
}

func (c *Client) get(ctx context.Context, operation, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(operation, req, out)
}

func (c *Client) post(ctx context.Context, operation, path string, payload, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(operation, req, out)
}

func (c *Client) do(operation string, req *http.Request, out any) error {
	if c.bucket != nil {
		c.bucket.Wait(1)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.TerminologyRequestTotals.WithLabelValues(operation, "error").Inc()
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn("Failed to close terminology response body", "error", err)
		}
	}()

	metrics.TerminologyRequestTotals.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()
	metrics.TerminologyRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("terminology server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode terminology response: %w", err)
	}
	return nil
}

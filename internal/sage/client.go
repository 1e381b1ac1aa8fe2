// Package sage implements the client for the remote Sage backend. The
// backend owns generation quality, persistence, and any network retry
// policy; this package only speaks the request/response contracts the
// workflow depends on. Application-level error payloads are surfaced as
// ordinary errors so callers treat them identically to transport failures.
package sage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sageops/internal/logging"
)

// Client is the interface to the Sage backend.
type Client interface {
	// ResearchCheck asks whether supporting material exists for a topic.
	ResearchCheck(ctx context.Context, topic string) (ResearchCheckResult, error)
	// ResearchRun triggers a best-effort research pass. Failures are
	// non-fatal to the workflow; callers proceed regardless.
	ResearchRun(ctx context.Context, topic string) error
	// Plan produces an opaque product plan for the topic.
	Plan(ctx context.Context, topic, market, price string) (string, error)
	// Execute turns a plan into a decomposed product.
	Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error)
	// Rewrite applies an instruction to one unit's content.
	Rewrite(ctx context.Context, content, instruction, lang string) (string, error)
	// Finalize persists the reviewed product and returns its location.
	Finalize(ctx context.Context, req FinalizeRequest) (string, error)
	// Load fetches a previously finalized product by location.
	Load(ctx context.Context, location string) (*SavedProduct, error)
}

// HTTPConfig holds configuration for the HTTP client.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultHTTPConfig returns sensible defaults for a local Sage backend.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		BaseURL: "http://localhost:5000",
		Timeout: 120 * time.Second,
	}
}

// HTTPClient implements Client against the Sage JSON API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a client with default config.
func NewHTTPClient(baseURL string) *HTTPClient {
	config := DefaultHTTPConfig()
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return NewHTTPClientWithConfig(config)
}

// NewHTTPClientWithConfig creates a client with custom config.
func NewHTTPClientWithConfig(config HTTPConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// errorEnvelope matches the backend's application-level failure payload.
type errorEnvelope struct {
	Error string `json:"error,omitempty"`
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, reqBody, out interface{}) error {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.API("POST %s failed after %v: %v", path, time.Since(start), err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	logging.API("POST %s -> %d in %v", path, resp.StatusCode, time.Since(start))

	// The backend reports application failures as {"error": ...}, with or
	// without a non-200 status. Both are the same failure to callers.
	var envelope errorEnvelope
	if jsonErr := json.Unmarshal(body, &envelope); jsonErr == nil && envelope.Error != "" {
		return fmt.Errorf("backend error: %s", envelope.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// ResearchCheck implements Client.
func (c *HTTPClient) ResearchCheck(ctx context.Context, topic string) (ResearchCheckResult, error) {
	var result ResearchCheckResult
	req := struct {
		Topic string `json:"topic"`
	}{Topic: topic}
	if err := c.postJSON(ctx, "/api/research/check", req, &result); err != nil {
		return ResearchCheckResult{}, err
	}
	return result, nil
}

// ResearchRun implements Client.
func (c *HTTPClient) ResearchRun(ctx context.Context, topic string) error {
	req := struct {
		Topic string `json:"topic"`
	}{Topic: topic}
	return c.postJSON(ctx, "/api/research/run", req, nil)
}

// Plan implements Client.
func (c *HTTPClient) Plan(ctx context.Context, topic, market, price string) (string, error) {
	req := struct {
		Topic  string `json:"topic"`
		Market string `json:"market"`
		Price  string `json:"price"`
	}{Topic: topic, Market: market, Price: price}
	var resp struct {
		Plan string `json:"plan"`
	}
	if err := c.postJSON(ctx, "/api/productize", req, &resp); err != nil {
		return "", err
	}
	if resp.Plan == "" {
		return "", fmt.Errorf("no plan returned")
	}
	return resp.Plan, nil
}

// Execute implements Client.
func (c *HTTPClient) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	var result ExecuteResult
	if err := c.postJSON(ctx, "/api/productize/execute", req, &result); err != nil {
		return nil, err
	}
	if len(result.Sections) == 0 {
		return nil, fmt.Errorf("execute returned no sections")
	}
	return &result, nil
}

// Rewrite implements Client.
func (c *HTTPClient) Rewrite(ctx context.Context, content, instruction, lang string) (string, error) {
	req := struct {
		Content     string `json:"content"`
		Instruction string `json:"instruction"`
		Language    string `json:"language"`
	}{Content: content, Instruction: instruction, Language: lang}
	var resp struct {
		Rewritten string `json:"rewritten"`
	}
	if err := c.postJSON(ctx, "/api/rewrite", req, &resp); err != nil {
		return "", err
	}
	if resp.Rewritten == "" {
		return "", fmt.Errorf("no rewritten content returned")
	}
	return resp.Rewritten, nil
}

// Finalize implements Client.
func (c *HTTPClient) Finalize(ctx context.Context, req FinalizeRequest) (string, error) {
	var resp struct {
		SavedLocation string `json:"savedLocation"`
	}
	if err := c.postJSON(ctx, "/api/content/save", req, &resp); err != nil {
		return "", err
	}
	if resp.SavedLocation == "" {
		return "", fmt.Errorf("no saved location returned")
	}
	return resp.SavedLocation, nil
}

// Load implements Client.
func (c *HTTPClient) Load(ctx context.Context, location string) (*SavedProduct, error) {
	u := c.baseURL + "/api/content/get?location=" + url.QueryEscape(location)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var envelope errorEnvelope
	if jsonErr := json.Unmarshal(body, &envelope); jsonErr == nil && envelope.Error != "" {
		return nil, fmt.Errorf("backend error: %s", envelope.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var product SavedProduct
	if err := json.Unmarshal(body, &product); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &product, nil
}

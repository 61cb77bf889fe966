// Package grid provides the client and poller for the AI Power Grid
// asynchronous job API (submit, status, models).
package grid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"gridgate/internal/core"
	"gridgate/internal/httpclient"
)

// Client talks to the grid API. It is shared across requests and holds
// read-only configuration only; it must never be mutated per-request.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Config holds grid client configuration.
type Config struct {
	// BaseURL is the grid API root, e.g. https://api.aipowergrid.io/api/v2
	BaseURL string
	// TLSServerName overrides the SNI server name on outbound connections
	TLSServerName string
}

// NewClient creates a grid client with its own pooled transport.
func NewClient(cfg Config) *Client {
	hc := httpclient.DefaultConfig()
	hc.TLSServerName = cfg.TLSServerName
	return &Client{
		httpClient: httpclient.NewHTTPClient(&hc),
		baseURL:    cfg.BaseURL,
	}
}

// NewClientWithHTTPClient creates a grid client using the given HTTP client.
// If c is nil, a default pooled client is used.
func NewClientWithHTTPClient(baseURL string, c *http.Client) *Client {
	if c == nil {
		c = httpclient.NewDefaultHTTPClient()
	}
	return &Client{httpClient: c, baseURL: baseURL}
}

// Submit posts a job to the async text-generation endpoint and returns the
// opaque job id. Upstream failure detail is logged, never returned verbatim.
func (c *Client) Submit(ctx context.Context, apiKey string, payload *JobPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", core.NewInternalError(fmt.Errorf("marshal job payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate/text/async", bytes.NewReader(body))
	if err != nil {
		return "", core.NewInternalError(fmt.Errorf("build submit request: %w", err))
	}
	c.setHeaders(req, apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("grid submit failed", "error", err)
		return "", core.NewSubmitFailedError(fmt.Errorf("submit request: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("grid submit response unreadable", "error", err)
		return "", core.NewSubmitFailedError(fmt.Errorf("read submit response: %w", err))
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		// The upstream body may include key or prompt fragments; log only.
		slog.Error("grid rejected job submission", "status", resp.StatusCode, "body", string(respBody))
		return "", core.NewSubmitFailedError(fmt.Errorf("grid returned status %d", resp.StatusCode))
	}

	var submit submitResponse
	if err := json.Unmarshal(respBody, &submit); err != nil || submit.ID == "" {
		slog.Error("grid submit response missing job id", "body", string(respBody))
		return "", core.NewSubmitFailedError(fmt.Errorf("submit response missing id"))
	}

	return submit.ID, nil
}

// Status fetches the current state of a job.
//
// Transport failures are returned as plain wrapped errors so the poller can
// retry them; a non-2xx grid status is returned as a terminal GatewayError.
func (c *Client) Status(ctx context.Context, apiKey, jobID string) (*JobStatus, error) {
	endpoint := c.baseURL + "/generate/text/status/" + url.PathEscape(jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, core.NewInternalError(fmt.Errorf("build status request: %w", err))
	}
	c.setHeaders(req, apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read status response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("grid status call failed", "job_id", jobID, "status", resp.StatusCode, "body", string(respBody))
		return nil, core.NewUpstreamError(fmt.Errorf("grid returned status %d", resp.StatusCode))
	}

	var status JobStatus
	if err := json.Unmarshal(respBody, &status); err != nil {
		slog.Error("grid status response malformed", "job_id", jobID, "error", err)
		return nil, core.NewUpstreamError(fmt.Errorf("unmarshal status response: %w", err))
	}

	return &status, nil
}

// Models fetches the raw model list for the given type ("text" or "image").
// The payload shape varies across grid versions, so the raw bytes are
// returned for tolerant extraction by the registry.
func (c *Client) Models(ctx context.Context, modelType string) ([]byte, error) {
	endpoint := c.baseURL + "/status/models"
	if modelType != "" {
		endpoint += "?type=" + url.QueryEscape(modelType)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, core.NewInternalError(fmt.Errorf("build models request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("models request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read models response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("grid models call failed", "status", resp.StatusCode, "body", string(respBody))
		return nil, core.NewUpstreamError(fmt.Errorf("grid returned status %d", resp.StatusCode))
	}

	return respBody, nil
}

// setHeaders sets the headers the grid expects on authenticated calls.
func (c *Client) setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("apikey", apiKey)
	req.Header.Set("Content-Type", "application/json")
}

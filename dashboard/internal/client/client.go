// Package client provides the control plane API client for the dashboard.
//
// # Operations
//
// - Analyze: Run an impact analysis for a free-text question
// - FetchKPIs: Batch KPI lookup for a set of towers
// - GetTowers, GetAllTowers: Load the tower reference set
// - Ping: Health check
//
// # Errors
//
// Transport failures are reported as ErrBackendUnreachable so the caller can
// show a distinct message; non-success responses are *APIError.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// ErrBackendUnreachable is returned when the control plane cannot be reached.
var ErrBackendUnreachable = errors.New("backend unreachable")

// APIError is a non-success response from the control plane.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// Client communicates with the control plane.
type Client struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
}

// Config for the client.
type Config struct {
	BaseURL            string
	AuthToken          string
	HTTPClient         *http.Client
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// NewClient creates a new control plane client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HTTPClient == nil {
		transport := &http.Transport{}
		if cfg.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		cfg.HTTPClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		}
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: cfg.HTTPClient,
		authToken:  cfg.AuthToken,
	}
}

// Analyze runs an impact analysis and returns the raw response body. The
// body is returned undecoded so the normalizer can apply its own tolerance.
func (c *Client) Analyze(ctx context.Context, req types.AnalysisRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, "POST", "/api/analyze-network-impact", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.readError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

// FetchKPIs returns the latest snapshot for each requested tower.
func (c *Client) FetchKPIs(ctx context.Context, towerIDs []string, opts types.KpiOptions) (map[string]types.KpiSnapshot, error) {
	req := types.KpiBatchRequest{TowerIDs: towerIDs, Options: opts}
	resp, err := c.doRequest(ctx, "POST", "/api/kpis", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.readError(resp)
	}

	var result types.KpiBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return result.KPIs, nil
}

// TowerPageSize is the page size GetAllTowers asks for. The server may cap
// it lower; the limit it reports back is what paging honours.
const TowerPageSize = 50000

// TowerQuery filters the tower reference set. Zero values mean no filter.
type TowerQuery struct {
	Bounds *types.Bounds
	Radio  string
	Limit  int
	After  string // last id of the previous page
}

// GetTowers fetches one page of the tower reference set.
func (c *Client) GetTowers(ctx context.Context, q TowerQuery) ([]types.Tower, error) {
	towers, _, err := c.getTowerPage(ctx, q)
	return towers, err
}

// GetAllTowers pages through the tower reference set by id until the server
// returns a short page.
func (c *Client) GetAllTowers(ctx context.Context, q TowerQuery) ([]types.Tower, error) {
	if q.Limit <= 0 {
		q.Limit = TowerPageSize
	}
	var all []types.Tower
	for {
		page, limit, err := c.getTowerPage(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("fetching towers after %q: %w", q.After, err)
		}
		all = append(all, page...)
		if len(page) == 0 || limit <= 0 || len(page) < limit {
			return all, nil
		}
		last := page[len(page)-1].ID
		if last <= q.After {
			return nil, fmt.Errorf("tower paging did not advance past %q", q.After)
		}
		q.After = last
	}
}

func (c *Client) getTowerPage(ctx context.Context, q TowerQuery) ([]types.Tower, int, error) {
	params := url.Values{}
	if q.Bounds != nil {
		q.Bounds.Viewport().SetQuery(params)
	}
	if q.Radio != "" {
		params.Set("radio", q.Radio)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.After != "" {
		params.Set("after", q.After)
	}

	path := "/api/towers"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, c.readError(resp)
	}

	var result struct {
		Towers []types.Tower `json:"towers"`
		Limit  int           `json:"limit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, 0, fmt.Errorf("decoding response: %w", err)
	}
	return result.Towers, result.Limit, nil
}

// Ping tests connectivity to the control plane.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.doRequest(ctx, "GET", "/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.readError(resp)
	}

	return nil
}

// doRequest performs an HTTP request with standard headers.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "netimpact-dashboard/1.0")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}
	return resp, nil
}

// readError extracts an error message from a failed response. JSON bodies
// of the form {"error": "..."} are unwrapped.
func (c *Client) readError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	msg := string(bytes.TrimSpace(body))

	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
		msg = envelope.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/florykhan/TelusGuardAI/control-plane/internal/config"
	"github.com/florykhan/TelusGuardAI/pkg/impact"
	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// TokenSource resolves the bearer token for the intelligence service.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// IntelConfig holds configuration for the intelligence service client.
type IntelConfig struct {
	BaseURL    string        // Base URL (e.g., "http://intel:8000")
	Tokens     TokenSource   // Optional bearer token source
	Timeout    time.Duration // HTTP timeout (default: config.AnalysisTimeout)
	RateLimit  int           // Requests per minute (default: config.IntelligenceRatePerMinute)
	HTTPClient *http.Client  // Optional
}

// UpstreamError is a non-success response from the intelligence service.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("intelligence service error: status %d: %s", e.StatusCode, e.Message)
}

// IntelClient calls the external intelligence service that turns a question
// into events with affected areas.
type IntelClient struct {
	baseURL     string
	httpClient  *http.Client
	tokens      TokenSource
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewIntelClient creates a new intelligence service client.
func NewIntelClient(cfg IntelConfig, logger *slog.Logger) (*IntelClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("intelligence service URL is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = config.AnalysisTimeout
	}

	rateLimit := cfg.RateLimit
	if rateLimit == 0 {
		rateLimit = config.IntelligenceRatePerMinute
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &IntelClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  httpClient,
		tokens:      cfg.Tokens,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(rateLimit)/60.0), 1),
		logger:      logger.With("component", "intel_client"),
	}, nil
}

type investigateRequest struct {
	Question string `json:"question"`
}

// Investigate asks the intelligence service about a question. Calls are rate
// limited; a caller whose context ends while waiting gets the context error.
func (c *IntelClient) Investigate(ctx context.Context, question string) (*types.IntelligenceReport, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(investigateRequest{Question: question})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/investigate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving intelligence token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: msg}
	}

	report, rep, err := impact.DecodeReport(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if rep.Dropped > 0 {
		c.logger.Warn("dropped malformed areas from intelligence response", "dropped", rep.Dropped)
	}

	c.logger.Debug("intelligence response",
		"events", rep.Events,
		"areas", rep.Areas,
		"duration", time.Since(start))
	return report, nil
}

package labs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Client pulls raw lab panels from an upstream lab provider by accession
// id. Calls are rate limited and guarded by a circuit breaker so a
// degraded provider cannot stall protocol generation.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// Config represents lab provider client configuration.
type Config struct {
	BaseURL   string        `json:"base_url"`
	APIKey    string        `json:"api_key"`
	Timeout   time.Duration `json:"timeout"`
	RateLimit int           `json:"rate_limit"` // requests per second
}

// PanelDocument is the provider's report shape: one accession with its
// raw test results, values kept as strings because providers emit
// qualified results like "<0.5".
type PanelDocument struct {
	AccessionID string      `json:"accession_id"`
	Provider    string      `json:"provider"`
	CollectedAt time.Time   `json:"collected_at"`
	ReportedAt  time.Time   `json:"reported_at"`
	Results     []RawResult `json:"results"`
}

// RawResult is one test result as reported by the provider.
type RawResult struct {
	TestCode string `json:"test_code"`
	TestName string `json:"test_name"`
	Value    string `json:"value"`
	Unit     string `json:"unit"`
	Flag     string `json:"flag,omitempty"`
}

// NewClient creates a lab provider client.
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "LabProvider",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	})

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		breaker:   breaker,
	}
}

// FetchPanel retrieves the panel for an accession id.
func (c *Client) FetchPanel(ctx context.Context, accessionID string) (*PanelDocument, error) {
	accessionID = strings.TrimSpace(accessionID)
	if accessionID == "" {
		return nil, fmt.Errorf("accession id cannot be empty")
	}

	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchPanel(ctx, accessionID)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("lab provider unavailable (circuit breaker open)")
		}
		return nil, fmt.Errorf("lab provider query failed: %w", err)
	}

	return result.(*PanelDocument), nil
}

func (c *Client) fetchPanel(ctx context.Context, accessionID string) (*PanelDocument, error) {
	fetchURL := fmt.Sprintf("%s/v1/accessions/%s/panel", c.baseURL, url.PathEscape(accessionID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("accession %s not found", accessionID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("lab provider returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var doc PanelDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	if doc.AccessionID == "" {
		doc.AccessionID = accessionID
	}

	return &doc, nil
}

// BreakerCounts exposes circuit breaker statistics for health reporting.
func (c *Client) BreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}

// BreakerState exposes the current circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

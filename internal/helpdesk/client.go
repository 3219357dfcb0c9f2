package helpdesk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/desksync/backend/internal/models"
)

// Client is the authenticated, rate-limited transport shared by all resource
// fetchers. At most Concurrency paginations run in flight at once, and every
// page request waits for the limiter before going out.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Logger  zerolog.Logger

	sem     chan struct{}
	limiter *rate.Limiter
}

const (
	defaultConcurrency = 2
	defaultPageDelay   = 400 * time.Millisecond
)

func NewClient(baseURL, apiKey string, concurrency int, pageDelay time.Duration, logger zerolog.Logger) *Client {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if pageDelay <= 0 {
		pageDelay = defaultPageDelay
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Logger:  logger,
		sem:     make(chan struct{}, concurrency),
		limiter: rate.NewLimiter(rate.Every(pageDelay), 1),
	}
}

func (c *Client) headers(req *http.Request) {
	req.Header.Set("accept", "application/json")
	req.Header.Set("apikey", c.APIKey)
}

// Ping checks the remote service, returning whether it answered 200 plus
// whatever body it sent back.
func (c *Client) Ping(ctx context.Context) (bool, map[string]any) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/ping", nil)
	if err != nil {
		return false, map[string]any{"error": err.Error()}
	}
	c.headers(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Logger.Error().Err(err).Msg("ping failed")
		return false, map[string]any{"error": err.Error()}
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		body = map[string]any{"message": "non-JSON response"}
	}
	return resp.StatusCode == http.StatusOK, body
}

// FetchAllPages walks a paginated endpoint starting at page 1 until an empty
// page, a transport error, or maxPages. Partial results accumulated before a
// terminating error are still returned; failed pages are logged, not retried.
// Callers decide whether a short or empty result is an error.
func (c *Client) FetchAllPages(ctx context.Context, endpoint string, query url.Values, pageParam string, maxPages int) []models.Record {
	if pageParam == "" {
		pageParam = "_page"
	}

	var all []models.Record
	for page := 1; page <= maxPages; page++ {
		records, err := c.fetchPage(ctx, endpoint, query, pageParam, page)
		if err != nil {
			c.Logger.Error().Err(err).Int("page", page).Str("endpoint", endpoint).Msg("pagination ended early")
			break
		}
		if len(records) == 0 {
			break
		}
		all = append(all, records...)
	}
	return all
}

func (c *Client) fetchPage(ctx context.Context, endpoint string, query url.Values, pageParam string, page int) ([]models.Record, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.sem }()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}
	q.Set(pageParam, strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	c.headers(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("helpdesk http error: %s", resp.Status)
	}

	return decodePage(resp.Body)
}

// Get fetches a single, non-paginated resource.
func (c *Client) Get(ctx context.Context, endpoint string) (models.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.headers(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("helpdesk http error: %s", resp.Status)
	}

	var record models.Record
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, err
	}
	return record, nil
}

// decodePage accepts either a bare JSON array or an object wrapping one
// under "data". Anything else is treated as an empty page.
func decodePage(r io.Reader) ([]models.Record, error) {
	var raw any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		items, _ = v["data"].([]any)
	}

	records := make([]models.Record, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			records = append(records, m)
		}
	}
	return records, nil
}

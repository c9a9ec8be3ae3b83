package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"
)

// Client talks to the external catalog's paginated playlist-items
// endpoint. All requests go through a shared rate limiter so batch
// refreshes never burst past the catalog's quota etiquette.
type Client struct {
	baseURL        string
	apiKey         string
	userAgent      string
	httpClient     *http.Client
	limiter        *rate.Limiter
	pageSize       int
	maxRetries     int
	initialBackoff time.Duration
}

type Options struct {
	BaseURL           string
	APIKey            string
	UserAgent         string
	PageSize          int
	MaxRetries        int
	InitialBackoff    time.Duration
	RequestTimeout    time.Duration
	RequestsPerSecond float64
}

func NewClient(opts Options) *Client {
	if opts.PageSize == 0 {
		opts.PageSize = 50
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.InitialBackoff == 0 {
		opts.InitialBackoff = 2 * time.Second
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.RequestsPerSecond == 0 {
		opts.RequestsPerSecond = 2
	}

	return &Client{
		baseURL:        strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:         opts.APIKey,
		userAgent:      opts.UserAgent,
		httpClient:     &http.Client{Timeout: opts.RequestTimeout},
		limiter:        rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		pageSize:       opts.PageSize,
		maxRetries:     opts.MaxRetries,
		initialBackoff: opts.InitialBackoff,
	}
}

// FetchAll retrieves the complete item list for a playlist. The first page
// is conditional on the given validator: a cache hit surfaces as
// ErrUnchanged without further requests. Later pages are requested without
// the validator, since the first page already proved change. Pagination
// stops early once itemCap items are accumulated; the result is then
// marked truncated instead of failing.
func (c *Client) FetchAll(ctx context.Context, externalID string, etag string, itemCap int) (*Result, error) {
	result := &Result{}
	pageToken := ""

	for {
		validator := ""
		if result.Pages == 0 {
			validator = etag
		}

		page, err := c.FetchPage(ctx, externalID, pageToken, validator)
		if err == ErrUnchanged && result.Pages > 0 {
			// A 304 past the first page means pagination truncated at
			// a consistent boundary; what we have is complete enough.
			break
		}
		if err != nil {
			return nil, err
		}

		result.Pages++
		if result.Pages == 1 {
			result.Etag = page.Etag
			result.TotalResults = page.TotalResults
		}

		result.Items = append(result.Items, page.Items...)
		if len(result.Items) >= itemCap {
			result.Items = result.Items[:itemCap]
			if page.NextPageToken != "" || len(result.Items) < result.TotalResults {
				result.Truncated = true
			}
			break
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	return result, nil
}

// FetchPage requests one page, retrying rate-limited and transient
// failures with bounded exponential backoff.
func (c *Client) FetchPage(ctx context.Context, externalID, pageToken, etag string) (*Page, error) {
	backoff := c.initialBackoff

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying catalog request", "playlist", externalID, "attempt", attempt, "backoff", backoff.String())
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		page, retryable, err := c.doFetch(ctx, externalID, pageToken, etag)
		if err == nil {
			return page, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("catalog request failed after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) doFetch(ctx context.Context, externalID, pageToken, etag string) (*Page, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	query := url.Values{}
	query.Set("pageSize", strconv.Itoa(c.pageSize))
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}

	endpoint := fmt.Sprintf("%s/playlists/%s/items?%s", c.baseURL, url.PathEscape(externalID), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// parsed below
	case resp.StatusCode == http.StatusNotModified:
		return nil, false, ErrUnchanged
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, false, ErrGone
	case resp.StatusCode == http.StatusForbidden:
		return nil, false, ErrForbidden
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("catalog rate limited (HTTP 429)")
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("catalog server error (HTTP %d)", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("unexpected catalog status: %d %s", resp.StatusCode, resp.Status)
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, false, fmt.Errorf("failed to decode catalog response: %w", err)
	}

	page.Etag = resp.Header.Get("ETag")
	page.Items = sanitizeItems(page.Items)

	return &page, false, nil
}

// sanitizeItems drops placeholder entries the catalog keeps for removed or
// private media and normalizes titles to NFC.
func sanitizeItems(items []Item) []Item {
	sanitized := items[:0]
	for _, item := range items {
		if item.MediaID == "" || isUnavailableTitle(item.Title) {
			continue
		}
		item.Title = norm.NFC.String(item.Title)
		item.CreatorName = norm.NFC.String(item.CreatorName)
		sanitized = append(sanitized, item)
	}
	return sanitized
}

func isUnavailableTitle(title string) bool {
	switch strings.ToLower(strings.TrimSpace(title)) {
	case "deleted video", "private video", "[deleted]", "[private]":
		return true
	}
	return false
}

// Package clashroyale provides a minimal client for the Clash Royale public API v1.
package clashroyale

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pable/go-cr-metrics/internal/metrics"
	"github.com/pable/go-cr-metrics/internal/retry"
)

// DefaultBaseURL is the root endpoint for the public API.
const DefaultBaseURL = "https://api.clashroyale.com/v1"

// Client is a minimal Clash Royale API client.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithMinInterval paces requests so consecutive calls are at least d apart.
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// NewClient returns an API client authenticated with the given bearer token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// StatusError is a non-200 response from the API.
type StatusError struct {
	Code int
	Path string
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: HTTP %d", e.Path, e.Code)
	}
	return fmt.Sprintf("GET %s: HTTP %d: %s", e.Path, e.Code, e.Body)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// Classify maps a detail/battle-log call error to a retry outcome:
// 429 and 503 are transient, 404 is "no data", everything else is permanent.
func Classify(err error) retry.Outcome {
	if err == nil {
		return retry.OK
	}
	switch StatusCode(err) {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return retry.Transient
	case http.StatusNotFound:
		return retry.Empty
	case 0:
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return retry.Transient
		}
	}
	return retry.Permanent
}

// ClassifySearch is Classify for clan search, where 400 means the name
// matched nothing searchable (e.g. too short) rather than a broken request.
func ClassifySearch(err error) retry.Outcome {
	if StatusCode(err) == http.StatusBadRequest {
		return retry.Empty
	}
	return Classify(err)
}

// EscapeTag normalises a player or clan tag for use in a path segment.
func EscapeTag(tag string) string {
	return "%23" + strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}

// get performs an authenticated GET against the API and JSON-decodes the body into out.
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.APIRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	metrics.APIRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return &StatusError{Code: resp.StatusCode, Path: path, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil // empty body: leave out at its zero value
		}
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}

// Cards returns the full card catalog.
func (c *Client) Cards(ctx context.Context) ([]CardItem, error) {
	var resp struct {
		Items []CardItem `json:"items"`
	}
	if err := c.get(ctx, "cards", "/cards", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// SearchParams are the /clans query filters. Zero values are omitted.
type SearchParams struct {
	Name       string
	Limit      int
	After      string
	LocationID string
	MinMembers *int
	MaxMembers *int
}

func (p SearchParams) values() url.Values {
	q := url.Values{}
	q.Set("name", p.Name)
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.After != "" {
		q.Set("after", p.After)
	}
	if p.LocationID != "" {
		q.Set("locationId", p.LocationID)
	}
	if p.MinMembers != nil {
		q.Set("minMembers", strconv.Itoa(*p.MinMembers))
	}
	if p.MaxMembers != nil {
		q.Set("maxMembers", strconv.Itoa(*p.MaxMembers))
	}
	return q
}

// SearchClans returns one page of clans whose name contains p.Name.
func (c *Client) SearchClans(ctx context.Context, p SearchParams) (*ClanSearchPage, error) {
	var page ClanSearchPage
	if err := c.get(ctx, "clans_search", "/clans", p.values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Clan returns the clan detail, including its member roster.
func (c *Client) Clan(ctx context.Context, tag string) (*ClanDetail, error) {
	var d ClanDetail
	if err := c.get(ctx, "clan", "/clans/"+EscapeTag(tag), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// BattleLog returns the player's most recent battles, newest first.
func (c *Client) BattleLog(ctx context.Context, tag string) ([]Battle, error) {
	var log []Battle
	if err := c.get(ctx, "battlelog", "/players/"+EscapeTag(tag)+"/battlelog", nil, &log); err != nil {
		return nil, err
	}
	return log, nil
}

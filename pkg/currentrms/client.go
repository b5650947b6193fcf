// Package currentrms provides token-authenticated REST access to the
// Current RMS rental-management API.
package currentrms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.current-rms.com/api/v1"

// errNotFound marks a 404 from the API. GetOpportunity translates it to the
// nil, nil not-found convention; other callers see it as a plain error.
var errNotFound = eris.New("currentrms: not found")

// Client defines the Current RMS API operations used by the watcher.
// GetOpportunity returns nil, nil when the opportunity does not exist.
type Client interface {
	GetOpportunity(ctx context.Context, id int) (*Opportunity, error)
	ListOpportunities(ctx context.Context, opts ListOptions) (*OpportunityPage, error)
	UpdateCustomFields(ctx context.Context, opportunityID int, fields map[string]any) error
	CreateWebhook(ctx context.Context, hook Webhook) (*Webhook, error)
	ListWebhooks(ctx context.Context) ([]Webhook, error)
	DeleteWebhook(ctx context.Context, id int) error
}

// ListOptions controls opportunity pagination and date filtering.
type ListOptions struct {
	Page     int
	PerPage  int
	FromDate *time.Time // starts_at lower bound, inclusive
	ToDate   *time.Time // starts_at upper bound, inclusive
}

// OpportunityPage is one page of list results plus pagination metadata.
type OpportunityPage struct {
	Opportunities []Opportunity `json:"opportunities"`
	Meta          PageMeta      `json:"meta"`
}

// PageMeta is the API's pagination envelope.
type PageMeta struct {
	TotalRowCount int `json:"total_row_count"`
	RowCount      int `json:"row_count"`
	Page          int `json:"page"`
	PerPage       int `json:"per_page"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets a per-second rate limit for API calls. Current RMS
// allows roughly 60 requests per minute per subdomain.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	subdomain string
	token     string
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a Current RMS API client. Auth uses the X-SUBDOMAIN and
// X-AUTH-TOKEN headers on every request.
func NewClient(subdomain, token string, opts ...Option) Client {
	c := &httpClient{
		subdomain: subdomain,
		token:     token,
		baseURL:   defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// do performs one authenticated request and decodes the JSON response into
// out (when out is non-nil). Non-2xx responses become errors carrying the
// status and a truncated body.
func (c *httpClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "currentrms: rate limit")
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "currentrms: marshal request")
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return eris.Wrap(err, "currentrms: create request")
	}
	req.Header.Set("X-SUBDOMAIN", c.subdomain)
	req.Header.Set("X-AUTH-TOKEN", c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "currentrms: %s %s", method, path)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return eris.Errorf("currentrms: %s %s: status %d: %s", method, path, resp.StatusCode, snippet)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrapf(err, "currentrms: decode %s %s", method, path)
	}
	return nil
}

func (c *httpClient) GetOpportunity(ctx context.Context, id int) (*Opportunity, error) {
	var envelope struct {
		Opportunity Opportunity `json:"opportunity"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/opportunities/%d", id), nil, nil, &envelope); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &envelope.Opportunity, nil
}

func (c *httpClient) ListOpportunities(ctx context.Context, opts ListOptions) (*OpportunityPage, error) {
	q := url.Values{}
	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = 100
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	if opts.FromDate != nil {
		q.Set("q[starts_at_gteq]", opts.FromDate.UTC().Format(time.RFC3339))
	}
	if opts.ToDate != nil {
		q.Set("q[starts_at_lteq]", opts.ToDate.UTC().Format(time.RFC3339))
	}

	var result OpportunityPage
	if err := c.do(ctx, http.MethodGet, "/opportunities", q, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) UpdateCustomFields(ctx context.Context, opportunityID int, fields map[string]any) error {
	body := map[string]any{
		"opportunity": map[string]any{
			"custom_fields": fields,
		},
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/opportunities/%d", opportunityID), nil, body, nil)
}

func (c *httpClient) CreateWebhook(ctx context.Context, hook Webhook) (*Webhook, error) {
	body := map[string]any{"webhook": hook}
	var envelope struct {
		Webhook Webhook `json:"webhook"`
	}
	if err := c.do(ctx, http.MethodPost, "/webhooks", nil, body, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Webhook, nil
}

func (c *httpClient) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var envelope struct {
		Webhooks []Webhook `json:"webhooks"`
	}
	if err := c.do(ctx, http.MethodGet, "/webhooks", nil, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Webhooks, nil
}

func (c *httpClient) DeleteWebhook(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/webhooks/%d", id), nil, nil, nil)
}

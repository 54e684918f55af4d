// Package razorpay is a small client for the parts of the Razorpay API the
// billing service uses: plans, subscriptions and payment signatures.
package razorpay

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
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.razorpay.com/v1"

// maxPageSize is the largest count Razorpay accepts on list endpoints.
const maxPageSize = 100

// Config holds API credentials.
type Config struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   time.Duration
}

// Client talks to the Razorpay REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// KeyID returns the public key identifier the checkout widget needs.
func (c *Client) KeyID() string {
	return c.cfg.KeyID
}

// CreatePlan creates a recurring plan.
func (c *Client) CreatePlan(ctx context.Context, req PlanRequest) (*Plan, error) {
	var plan Plan
	if err := c.do(ctx, http.MethodPost, "/plans", req, &plan); err != nil {
		return nil, withDefaultMessage(err, "Failed to create plan")
	}
	return &plan, nil
}

// ListPlans returns one page of plans, newest first.
func (c *Client) ListPlans(ctx context.Context, opts ListOptions) (*PlanList, error) {
	q := url.Values{}
	if opts.Count > 0 {
		q.Set("count", strconv.Itoa(opts.Count))
	}
	if opts.Skip > 0 {
		q.Set("skip", strconv.Itoa(opts.Skip))
	}
	path := "/plans"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list PlanList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, withDefaultMessage(err, "Failed to list plans")
	}
	return &list, nil
}

// FindPlan walks every page of plans and returns the first plan for which
// match returns true, or nil if none does.
func (c *Client) FindPlan(ctx context.Context, match func(Plan) bool) (*Plan, error) {
	for skip := 0; ; skip += maxPageSize {
		list, err := c.ListPlans(ctx, ListOptions{Count: maxPageSize, Skip: skip})
		if err != nil {
			return nil, err
		}
		for i := range list.Items {
			if match(list.Items[i]) {
				return &list.Items[i], nil
			}
		}
		if len(list.Items) < maxPageSize {
			return nil, nil
		}
	}
}

// CreateSubscription subscribes a customer to a plan.
func (c *Client) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error) {
	var sub Subscription
	if err := c.do(ctx, http.MethodPost, "/subscriptions", req, &sub); err != nil {
		return nil, withDefaultMessage(err, "Failed to create subscription")
	}
	return &sub, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error != nil {
			apiErr = envelope.Error
			apiErr.StatusCode = resp.StatusCode
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

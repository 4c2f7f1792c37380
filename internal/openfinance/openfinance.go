// Package openfinance wraps the Pluggy Open Finance aggregation API.
//
// It covers API-key authentication, connect-token issuance for the widget,
// account and transaction retrieval, and the webhook event shapes Pluggy
// posts when an item updates.
package openfinance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultBaseURL is the Pluggy API endpoint.
const DefaultBaseURL = "https://api.pluggy.ai"

// apiKeyTTL is how long an issued API key is reused before re-authenticating.
// Pluggy keys live for two hours; renewing early avoids mid-request expiry.
const apiKeyTTL = 90 * time.Minute

// Opts holds configuration options for the Pluggy client.
type Opts struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
}

// Option defines a configuration option for the Pluggy client.
type Option func(*Opts)

// WithBaseURL overrides the Pluggy API base URL. Tests point this at a local
// server.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithCredentials sets the Pluggy client ID and secret.
func WithCredentials(clientID, clientSecret string) Option {
	return func(o *Opts) {
		o.ClientID = clientID
		o.ClientSecret = clientSecret
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client is a Pluggy API client. API keys are cached and refreshed
// transparently.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu           sync.Mutex
	apiKey       string
	apiKeyIssued time.Time
}

// NewClient creates a Pluggy client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{BaseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("pluggy client ID and secret are required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	slog.Debug("OpenFinance client created", "baseURL", cfg.BaseURL)
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   cfg.HTTPClient,
	}, nil
}

// Account is a bank account linked through an item.
type Account struct {
	ID       string  `json:"id"`
	ItemID   string  `json:"itemId"`
	Type     string  `json:"type"`
	Subtype  string  `json:"subtype"`
	Name     string  `json:"name"`
	Number   string  `json:"number"`
	Balance  float64 `json:"balance"`
	Currency string  `json:"currencyCode"`
}

// Transaction is a single account transaction.
type Transaction struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"accountId"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currencyCode"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
}

// WebhookEvent is the payload Pluggy posts when an item changes state.
type WebhookEvent struct {
	Event    string `json:"event"`
	ItemID   string `json:"itemId"`
	ClientID string `json:"clientId"`
	Error    *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type authRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type authResponse struct {
	APIKey string `json:"apiKey"`
}

type connectTokenRequest struct {
	ItemID string `json:"itemId,omitempty"`
}

type connectTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

type pageResponse[T any] struct {
	Results    []T `json:"results"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

// authenticate obtains a fresh API key when the cached one is missing or
// stale.
func (c *Client) authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.apiKey != "" && time.Since(c.apiKeyIssued) < apiKeyTTL {
		return c.apiKey, nil
	}

	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/auth", "", authRequest{ClientID: c.clientID, ClientSecret: c.clientSecret}, &resp)
	if err != nil {
		slog.Error("OpenFinance authentication failed", "error", err)
		return "", fmt.Errorf("pluggy authentication failed: %w", err)
	}
	if resp.APIKey == "" {
		return "", fmt.Errorf("pluggy authentication returned empty API key")
	}
	c.apiKey = resp.APIKey
	c.apiKeyIssued = time.Now()
	slog.Debug("OpenFinance authenticated")
	return c.apiKey, nil
}

// CreateConnectToken issues a connect token for the Pluggy widget. Pass an
// itemID to reconnect an existing item, or empty for a new connection.
func (c *Client) CreateConnectToken(ctx context.Context, itemID string) (string, error) {
	apiKey, err := c.authenticate(ctx)
	if err != nil {
		return "", err
	}
	var resp connectTokenResponse
	if err := c.do(ctx, http.MethodPost, "/connect_token", apiKey, connectTokenRequest{ItemID: itemID}, &resp); err != nil {
		slog.Error("OpenFinance connect token request failed", "error", err, "itemID", itemID)
		return "", fmt.Errorf("failed to create connect token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("pluggy returned empty connect token")
	}
	slog.Debug("OpenFinance connect token created", "itemID", itemID)
	return resp.AccessToken, nil
}

// ListAccounts returns the accounts linked under an item.
func (c *Client) ListAccounts(ctx context.Context, itemID string) ([]Account, error) {
	apiKey, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	var resp pageResponse[Account]
	path := "/accounts?" + url.Values{"itemId": {itemID}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, apiKey, nil, &resp); err != nil {
		slog.Error("OpenFinance account listing failed", "error", err, "itemID", itemID)
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	slog.Debug("OpenFinance accounts listed", "itemID", itemID, "count", len(resp.Results))
	return resp.Results, nil
}

// ListTransactions returns the transactions of an account between from and
// to, walking all result pages.
func (c *Client) ListTransactions(ctx context.Context, accountID string, from, to time.Time) ([]Transaction, error) {
	apiKey, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	var all []Transaction
	for page := 1; ; page++ {
		query := url.Values{
			"accountId": {accountID},
			"from":      {from.Format("2006-01-02")},
			"to":        {to.Format("2006-01-02")},
			"pageSize":  {"100"},
			"page":      {strconv.Itoa(page)},
		}
		var resp pageResponse[Transaction]
		if err := c.do(ctx, http.MethodGet, "/transactions?"+query.Encode(), apiKey, nil, &resp); err != nil {
			slog.Error("OpenFinance transaction listing failed", "error", err, "accountID", accountID, "page", page)
			return nil, fmt.Errorf("failed to list transactions: %w", err)
		}
		all = append(all, resp.Results...)
		if resp.TotalPages == 0 || page >= resp.TotalPages {
			break
		}
	}
	slog.Debug("OpenFinance transactions listed", "accountID", accountID, "count", len(all))
	return all, nil
}

func (c *Client) do(ctx context.Context, method, path, apiKey string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-KEY", apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pluggy returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

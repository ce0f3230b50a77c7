package quotation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Source loads quotation threads from the system of record.
type Source interface {
	Get(ctx context.Context, id string) (Quotation, error)
}

// TokenSource supplies the bearer token forwarded to the backend.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// APIClient reads quotations from the dashboard REST backend.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// NewAPIClient constructs a backend client.
func NewAPIClient(baseURL string, tokens TokenSource) *APIClient {
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
	}
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func (c *APIClient) WithHTTPClient(client *http.Client) *APIClient {
	if client != nil {
		c.httpClient = client
	}
	return c
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// Get fetches one quotation with its offers populated.
func (c *APIClient) Get(ctx context.Context, id string) (Quotation, error) {
	if c == nil || c.baseURL == "" {
		return Quotation{}, errors.New("quotation api: base url required")
	}
	endpoint := fmt.Sprintf("%s/api/quotations/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quotation{}, err
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return Quotation{}, fmt.Errorf("quotation api: token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Quotation{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quotation{}, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return Quotation{}, ErrNotFound
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if denied(resp.StatusCode) {
			return Quotation{}, fmt.Errorf("%w: status %d", ErrForbidden, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return Quotation{}, fmt.Errorf("quotation api: status %d", resp.StatusCode)
		}
		return Quotation{}, fmt.Errorf("quotation api: decode envelope: %w", err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		if denied(resp.StatusCode) {
			return Quotation{}, fmt.Errorf("%w: %s", ErrForbidden, msg)
		}
		return Quotation{}, fmt.Errorf("quotation api: status %d: %s", resp.StatusCode, msg)
	}
	return Decode(env.Data)
}

func denied(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

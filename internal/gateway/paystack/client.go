package paystack

import (
	"bytes"
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

// ErrGateway covers transport failures, non-2xx replies and payloads the
// gateway itself marks unsuccessful. Callers treat it as a generic retryable
// failure; the gateway's internals are not re-interpreted here.
var ErrGateway = errors.New("payment gateway error")

const statusSuccess = "success"

// Client talks to the hosted payment gateway's transaction API: initialize a
// transaction to obtain a hosted checkout URL, verify a transaction by
// reference. Amounts cross the wire in minor currency units.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

type Config struct {
	BaseURL   string
	SecretKey string
}

func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("gateway secret key is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		secretKey:  cfg.SecretKey,
	}, nil
}

type InitializeInput struct {
	AmountMinor int64
	Currency    string
	Email       string
	Reference   string
	CallbackURL string
	Metadata    map[string]any
}

type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

type VerifyResult struct {
	Status      string
	AmountMinor int64
	Currency    string
	Reference   string
	PaidAt      time.Time
}

func (v VerifyResult) Success() bool {
	return strings.EqualFold(v.Status, statusSuccess)
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
	PaidAt    string `json:"paid_at"`
}

func (c *Client) Initialize(ctx context.Context, in InitializeInput) (InitializeResult, error) {
	if in.AmountMinor <= 0 {
		return InitializeResult{}, fmt.Errorf("initialize amount must be positive")
	}
	if strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.Reference) == "" {
		return InitializeResult{}, fmt.Errorf("initialize email and reference are required")
	}

	body := map[string]any{
		"amount":    in.AmountMinor,
		"email":     in.Email,
		"reference": in.Reference,
	}
	if in.Currency != "" {
		body["currency"] = strings.ToUpper(in.Currency)
	}
	if in.CallbackURL != "" {
		body["callback_url"] = in.CallbackURL
	}
	if len(in.Metadata) > 0 {
		body["metadata"] = in.Metadata
	}

	var data initializeData
	if err := c.post(ctx, "/transaction/initialize", body, &data); err != nil {
		return InitializeResult{}, err
	}

	return InitializeResult{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

func (c *Client) Verify(ctx context.Context, reference string) (VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return VerifyResult{}, fmt.Errorf("verify reference is required")
	}

	var data verifyData
	if err := c.get(ctx, "/transaction/verify/"+url.PathEscape(reference), &data); err != nil {
		return VerifyResult{}, err
	}

	result := VerifyResult{
		Status:      data.Status,
		AmountMinor: data.Amount,
		Currency:    data.Currency,
		Reference:   data.Reference,
	}
	if data.PaidAt != "" {
		if paidAt, err := time.Parse(time.RFC3339, data.PaidAt); err == nil {
			result.PaidAt = paidAt
		}
	}

	return result, nil
}

func (c *Client) post(ctx context.Context, path string, body any, target any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, target)
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}

	return c.do(req, target)
}

func (c *Client) do(req *http.Request, target any) error {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrGateway, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrGateway, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Status {
		message := env.Message
		if message == "" {
			message = resp.Status
		}
		return fmt.Errorf("%w: %s", ErrGateway, message)
	}

	if target != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, target); err != nil {
			return fmt.Errorf("%w: decode response data: %v", ErrGateway, err)
		}
	}

	return nil
}

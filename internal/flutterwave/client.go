// Package flutterwave is a thin client for the Flutterwave v3 hosted-checkout
// API: create a payment link, verify a transaction by id. Card data never
// touches this system; donors pay on the gateway's hosted page.
package flutterwave

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the production Flutterwave API endpoint.
const DefaultBaseURL = "https://api.flutterwave.com/v3"

var (
	// ErrNotConfigured means no secret key is set; callers must check
	// Configured() and fail fast before any network call.
	ErrNotConfigured = errors.New("flutterwave: secret key not configured")
	// ErrUnauthorized means the gateway rejected our credentials. Handlers
	// remap this to 503, never 401, so browser clients don't mistake it for
	// an expired user session.
	ErrUnauthorized = errors.New("flutterwave: secret key rejected by gateway")
)

// Error is a gateway-side failure: a non-success envelope or HTTP error
// from Flutterwave.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return "flutterwave: " + e.Message
	}
	return fmt.Sprintf("flutterwave: request failed with status %d", e.StatusCode)
}

// Customer identifies the donor on the hosted checkout page.
type Customer struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phonenumber,omitempty"`
}

// Customizations control hosted page branding.
type Customizations struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PaymentRequest is the body for creating a hosted checkout session.
type PaymentRequest struct {
	TxRef          string            `json:"tx_ref"`
	Amount         float64           `json:"amount"`
	Currency       string            `json:"currency"`
	RedirectURL    string            `json:"redirect_url"`
	Customer       Customer          `json:"customer"`
	Customizations Customizations    `json:"customizations"`
	Meta           map[string]string `json:"meta,omitempty"`
}

// Transaction is the gateway's view of a payment, returned by verification.
// Status "successful" is the only passing value; "refunded" and "reversed"
// are failures.
type Transaction struct {
	ID       int64   `json:"id"`
	TxRef    string  `json:"tx_ref"`
	Status   string  `json:"status"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client calls the Flutterwave API with bounded timeouts.
type Client struct {
	secretKey    string
	baseURL      string
	createClient *http.Client
	verifyClient *http.Client
	logger       *zap.Logger
}

// NewClient creates a gateway client. An empty secretKey yields a client
// that reports not configured; an empty baseURL uses production.
func NewClient(secretKey, baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		secretKey:    secretKey,
		baseURL:      baseURL,
		createClient: &http.Client{Timeout: 15 * time.Second},
		verifyClient: &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
	}
}

// Configured reports whether a secret key is present.
func (c *Client) Configured() bool {
	return c.secretKey != ""
}

// CreatePayment creates a hosted checkout session and returns the payment
// link the donor should be redirected to.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal payment request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	env, status, err := c.do(c.createClient, httpReq)
	if err != nil {
		return "", err
	}

	var data struct {
		Link string `json:"link"`
	}
	if env.Data != nil {
		_ = json.Unmarshal(env.Data, &data)
	}
	if env.Status != "success" || data.Link == "" {
		msg := env.Message
		if msg == "" {
			msg = "could not create payment link"
		}
		return "", &Error{StatusCode: status, Message: msg}
	}
	return data.Link, nil
}

// VerifyTransaction fetches the gateway's authoritative record of a
// transaction by its gateway-assigned id.
func (c *Client) VerifyTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/transactions/%s/verify", c.baseURL, url.PathEscape(transactionID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

	env, status, err := c.do(c.verifyClient, httpReq)
	if err != nil {
		return nil, err
	}
	if env.Status != "success" || env.Data == nil {
		msg := env.Message
		if msg == "" {
			msg = "transaction not found"
		}
		return nil, &Error{StatusCode: status, Message: msg}
	}

	var tx Transaction
	if err := json.Unmarshal(env.Data, &tx); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return &tx, nil
}

func (c *Client) do(client *http.Client, req *http.Request) (*envelope, int, error) {
	resp, err := client.Do(req)
	if err != nil {
		// Transport failure (timeout, DNS, refused): not a gateway verdict,
		// so it is surfaced as a plain error rather than *Error.
		return nil, 0, fmt.Errorf("flutterwave: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn("flutterwave rejected credentials")
		return nil, resp.StatusCode, ErrUnauthorized
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, resp.StatusCode, &Error{StatusCode: resp.StatusCode, Message: "invalid gateway response"}
	}
	return &env, resp.StatusCode, nil
}

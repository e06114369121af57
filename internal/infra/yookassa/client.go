package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	EventPaymentSucceeded = "payment.succeeded"

	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusCanceled  = "canceled"
)

var ErrNotConfigured = errors.New("payment gateway credentials are not configured")

// GatewayError carries the remote status code and raw body so operators can
// diagnose rejected calls without replaying them.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway returned %d: %s", e.StatusCode, e.Body)
}

type Config struct {
	ShopID    string
	SecretKey string
	APIBase   string
}

type Client struct {
	cfg  Config
	http *http.Client

	// newIdempotenceKey is swappable in tests.
	newIdempotenceKey func() string
}

type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type Confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type receiptItem struct {
	Description    string `json:"description"`
	Quantity       string `json:"quantity"`
	Amount         Amount `json:"amount"`
	VATCode        int    `json:"vat_code"`
	PaymentSubject string `json:"payment_subject"`
	PaymentMode    string `json:"payment_mode"`
}

type receipt struct {
	Customer struct {
		Email string `json:"email"`
	} `json:"customer"`
	Items []receiptItem `json:"items"`
}

type Payment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Paid         bool              `json:"paid"`
	Amount       Amount            `json:"amount"`
	Confirmation Confirmation      `json:"confirmation"`
	Metadata     map[string]string `json:"metadata"`
}

// WebhookEvent is the gateway's asynchronous notification envelope.
type WebhookEvent struct {
	Event  string  `json:"event"`
	Object Payment `json:"object"`
}

type CreatePaymentInput struct {
	Amount        float64
	Currency      string
	Description   string
	ReturnURL     string
	CustomerEmail string
	Metadata      map[string]string
}

type createPaymentRequest struct {
	Amount       Amount            `json:"amount"`
	Confirmation Confirmation      `json:"confirmation"`
	Capture      bool              `json:"capture"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Receipt      *receipt          `json:"receipt,omitempty"`
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")

	return &Client{
		cfg:               cfg,
		http:              httpClient,
		newIdempotenceKey: uuid.NewString,
	}
}

// CreatePayment registers a new payment intent with the gateway. Every call
// carries a fresh Idempotence-Key, so retries at this level create new
// intents; dedup happens downstream on the returned payment id.
func (c *Client) CreatePayment(ctx context.Context, in CreatePaymentInput) (Payment, error) {
	if c.cfg.ShopID == "" || c.cfg.SecretKey == "" {
		return Payment{}, ErrNotConfigured
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "RUB"
	}
	amount := Amount{
		Value:    fmt.Sprintf("%.2f", in.Amount),
		Currency: currency,
	}

	payload := createPaymentRequest{
		Amount: amount,
		Confirmation: Confirmation{
			Type:      "redirect",
			ReturnURL: in.ReturnURL,
		},
		Capture:     true,
		Description: in.Description,
		Metadata:    in.Metadata,
	}
	if email := strings.TrimSpace(in.CustomerEmail); email != "" {
		rcpt := &receipt{}
		rcpt.Customer.Email = email
		rcpt.Items = []receiptItem{{
			Description:    in.Description,
			Quantity:       "1.00",
			Amount:         amount,
			VATCode:        1,
			PaymentSubject: "service",
			PaymentMode:    "full_payment",
		}}
		payload.Receipt = rcpt
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Payment{}, fmt.Errorf("marshal create payment payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBase+"/payments", bytes.NewReader(body))
	if err != nil {
		return Payment{}, fmt.Errorf("build create payment request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ShopID, c.cfg.SecretKey)
	req.Header.Set("Idempotence-Key", c.newIdempotenceKey())
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// GetPayment polls the current state of a payment intent.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (Payment, error) {
	if c.cfg.ShopID == "" || c.cfg.SecretKey == "" {
		return Payment{}, ErrNotConfigured
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return Payment{}, fmt.Errorf("payment id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBase+"/payments/"+paymentID, nil)
	if err != nil {
		return Payment{}, fmt.Errorf("build get payment request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ShopID, c.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (Payment, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return Payment{}, fmt.Errorf("call payment gateway: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Payment{}, fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Payment{}, &GatewayError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
		}
	}

	var payment Payment
	if err := json.Unmarshal(raw, &payment); err != nil {
		return Payment{}, fmt.Errorf("decode gateway response: %w", err)
	}

	return payment, nil
}

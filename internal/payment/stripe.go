package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

const defaultAPIBase = "https://api.stripe.com"

// StripeClient creates hosted checkout sessions via the Stripe HTTP API.
// Requests run through a circuit breaker so a degraded processor fails fast
// instead of tying up checkout workers.
type StripeClient struct {
	apiBase    string
	secretKey  string
	successURL string
	cancelURL  string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*Session]
}

type StripeConfig struct {
	APIBase    string // empty means the public Stripe endpoint
	SecretKey  string
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
}

func NewStripeClient(cfg StripeConfig) *StripeClient {
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[*Session](gobreaker.Settings{
		Name:    "stripe-checkout",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &StripeClient{
		apiBase:    strings.TrimRight(apiBase, "/"),
		secretKey:  cfg.SecretKey,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
	}
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, items []LineItem) (*Session, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("success_url", c.successURL)
	form.Set("cancel_url", c.cancelURL)
	for i, item := range items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", "usd")
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(toCents(item.UnitPrice), 10))
		form.Set(prefix+"[quantity]", strconv.FormatInt(item.Quantity, 10))
	}

	return c.breaker.Execute(func() (*Session, error) {
		return c.postForm(ctx, "/v1/checkout/sessions", form)
	})
}

func (c *StripeClient) postForm(ctx context.Context, path string, form url.Values) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stripe request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read stripe response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stripe returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var session Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("unmarshal stripe session: %w", err)
	}
	if session.ID == "" {
		return nil, fmt.Errorf("stripe session response missing id")
	}
	return &session, nil
}

// toCents converts a decimal price to the smallest currency unit.
func toCents(price decimal.Decimal) int64 {
	return price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

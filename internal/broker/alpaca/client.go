package alpaca

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"tradingmodels/internal/broker"
	"tradingmodels/internal/ratelimit"
)

// DefaultBaseURL is the paper trading endpoint
const DefaultBaseURL = "https://paper-api.alpaca.markets"

// Credentials for the Alpaca REST API
type Credentials struct {
	APIKey    string
	APISecret string
	BaseURL   string
}

// Client Alpaca REST client
type Client struct {
	creds   Credentials
	http    *resty.Client
	limiter *ratelimit.Limiter
}

// NewClient creates a client; missing credentials are an error
func NewClient(creds Credentials) (*Client, error) {
	if creds.APIKey == "" || creds.APISecret == "" {
		return nil, broker.ErrMissingCredentials
	}
	if creds.BaseURL == "" {
		creds.BaseURL = DefaultBaseURL
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(creds.BaseURL, "/")).
		SetTimeout(10*time.Second).
		SetHeader("APCA-API-KEY-ID", creds.APIKey).
		SetHeader("APCA-API-SECRET-KEY", creds.APISecret).
		SetHeader("Content-Type", "application/json")

	return &Client{
		creds:   creds,
		http:    client,
		limiter: ratelimit.NewLimiter("alpaca", 200),
	}, nil
}

// Name returns the broker name
func (c *Client) Name() string {
	return "alpaca"
}

// IsReady reports whether credentials are configured
func (c *Client) IsReady() bool {
	return c.creds.APIKey != "" && c.creds.APISecret != ""
}

// accountResponse mirrors /v2/account; amounts are decimal strings
type accountResponse struct {
	ID             string `json:"id"`
	AccountNumber  string `json:"account_number"`
	Status         string `json:"status"`
	Currency       string `json:"currency"`
	Cash           string `json:"cash"`
	BuyingPower    string `json:"buying_power"`
	Equity         string `json:"equity"`
	PortfolioValue string `json:"portfolio_value"`
}

// orderResponse mirrors an Alpaca order object
type orderResponse struct {
	ID             string     `json:"id"`
	Symbol         string     `json:"symbol"`
	Side           string     `json:"side"`
	Type           string     `json:"type"`
	TimeInForce    string     `json:"time_in_force"`
	Qty            string     `json:"qty"`
	FilledQty      string     `json:"filled_qty"`
	FilledAvgPrice string     `json:"filled_avg_price"`
	Status         string     `json:"status"`
	SubmittedAt    *time.Time `json:"submitted_at"`
	FilledAt       *time.Time `json:"filled_at"`
}

type orderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Account fetches the account summary
func (c *Client) Account(ctx context.Context) (*broker.Account, error) {
	var out accountResponse
	if err := c.do(ctx, resty.MethodGet, "/v2/account", nil, &out); err != nil {
		return nil, err
	}
	return &broker.Account{
		ID:             out.ID,
		AccountNumber:  out.AccountNumber,
		Status:         out.Status,
		Currency:       out.Currency,
		Cash:           parseDecimal(out.Cash),
		BuyingPower:    parseDecimal(out.BuyingPower),
		Equity:         parseDecimal(out.Equity),
		PortfolioValue: parseDecimal(out.PortfolioValue),
	}, nil
}

// SubmitMarketOrder places a market order
func (c *Client) SubmitMarketOrder(ctx context.Context, symbol string, qty int, side broker.OrderSide, tif broker.TimeInForce) (*broker.OrderResult, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", qty)
	}
	req := orderRequest{
		Symbol:      strings.ToUpper(symbol),
		Qty:         strconv.Itoa(qty),
		Side:        string(side),
		Type:        "market",
		TimeInForce: string(tif),
	}

	var out orderResponse
	if err := c.do(ctx, resty.MethodPost, "/v2/orders", req, &out); err != nil {
		return nil, err
	}
	return out.toResult(), nil
}

// ClosePosition liquidates the whole position in symbol
func (c *Client) ClosePosition(ctx context.Context, symbol string) (*broker.OrderResult, error) {
	var out orderResponse
	path := "/v2/positions/" + url.PathEscape(strings.ToUpper(symbol))
	if err := c.do(ctx, resty.MethodDelete, path, nil, &out); err != nil {
		return nil, err
	}
	return out.toResult(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	var apiErr apiError
	req := c.http.R().
		SetContext(ctx).
		SetResult(out).
		SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode() == 429 {
		c.limiter.SignalRateLimited()
	}
	if resp.IsError() {
		if apiErr.Message != "" {
			return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode(), apiErr.Message)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode())
	}

	c.limiter.ResetBackoff()
	return nil
}

func (o orderResponse) toResult() *broker.OrderResult {
	r := &broker.OrderResult{
		OrderID:     o.ID,
		Symbol:      o.Symbol,
		Side:        broker.OrderSide(o.Side),
		Type:        o.Type,
		TimeInForce: broker.TimeInForce(o.TimeInForce),
		Quantity:    parseDecimal(o.Qty),
		FilledQty:   parseDecimal(o.FilledQty),
		AvgPrice:    parseDecimal(o.FilledAvgPrice),
		Status:      o.Status,
	}
	if o.SubmittedAt != nil {
		r.SubmittedAt = *o.SubmittedAt
	}
	if o.FilledAt != nil {
		r.FilledAt = *o.FilledAt
	}
	return r
}

func parseDecimal(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// Package stripe aggregates successful charges from the Stripe API.
package stripe

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marketing-dashboard/backend/internal/provider"
)

const (
	defaultBaseURL = "https://api.stripe.com"
	pageSize       = 100
	maxPages       = 200
)

type charge struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Paid     bool   `json:"paid"`
	Refunded bool   `json:"refunded"`
}

type chargeList struct {
	Data    []charge `json:"data"`
	HasMore bool     `json:"has_more"`
}

// succeeded is the success predicate of a charge.
func (c charge) succeeded() bool {
	return c.Status == "succeeded" && c.Paid && !c.Refunded
}

// Client fetches charges.
type Client struct {
	baseURL string
	http    *provider.HTTPClient
	now     func() time.Time
}

// New returns a Stripe client. baseURL may be empty for the public API.
func New(baseURL string, hc *provider.HTTPClient) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc, now: time.Now}
}

// Name returns "stripe".
func (c *Client) Name() string { return provider.Stripe }

// Zero returns empty payment metrics.
func (c *Client) Zero(w provider.Window) *provider.Metrics {
	return &provider.Metrics{Provider: provider.Stripe, Window: w, Payments: &provider.PaymentMetrics{Currency: "usd"}}
}

// Fetch pages through /v1/charges created inside w. Credentials: secret_key.
func (c *Client) Fetch(ctx context.Context, creds provider.Credentials, w provider.Window) (*provider.Metrics, error) {
	key := creds["secret_key"]
	if key == "" {
		return nil, provider.MissingCredential(provider.Stripe, "secret_key")
	}

	var (
		total, ok  int
		revenueMin int64
		currency   string
		after      string
	)
	for page := 0; ; page++ {
		if page == maxPages {
			return nil, provider.PaginationLimit(provider.Stripe, maxPages)
		}
		q := url.Values{}
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("created[gte]", strconv.FormatInt(w.Start.Unix(), 10))
		q.Set("created[lt]", strconv.FormatInt(w.End.Unix(), 10))
		if after != "" {
			q.Set("starting_after", after)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/charges?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+key)

		var list chargeList
		if err := c.http.DoJSON(ctx, req, &list); err != nil {
			return nil, err
		}
		for _, ch := range list.Data {
			total++
			if !ch.succeeded() {
				continue
			}
			ok++
			revenueMin += ch.Amount
			if currency == "" {
				currency = ch.Currency
			}
		}
		if !list.HasMore || len(list.Data) == 0 {
			break
		}
		after = list.Data[len(list.Data)-1].ID
	}

	if currency == "" {
		currency = "usd"
	}
	revenue := float64(revenueMin) / 100
	return &provider.Metrics{
		Provider: provider.Stripe,
		Window:   w,
		Payments: &provider.PaymentMetrics{
			TotalRevenue:      provider.Round2(revenue),
			TotalCharges:      total,
			SuccessfulCharges: ok,
			AverageOrderValue: provider.Ratio(revenue, float64(ok)),
			SuccessRate:       provider.Percent(float64(ok), float64(total)),
			Currency:          currency,
		},
		FetchedAt: c.now().UTC(),
	}, nil
}

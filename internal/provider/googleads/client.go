// Package googleads aggregates campaign metrics from the Google Ads API.
package googleads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"marketing-dashboard/backend/internal/provider"
)

const (
	defaultBaseURL  = "https://googleads.googleapis.com"
	defaultVersion  = "v17"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	maxPages        = 200
	statusEnabled   = "ENABLED"
	microsPerUnit   = 1_000_000
)

const campaignQuery = `SELECT campaign.id, campaign.status, metrics.cost_micros, metrics.impressions, ` +
	`metrics.clicks, metrics.conversions, metrics.conversions_value FROM campaign ` +
	`WHERE segments.date BETWEEN '%s' AND '%s'`

type row struct {
	Campaign struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"campaign"`
	Metrics struct {
		CostMicros       provider.Number `json:"costMicros"`
		Impressions      provider.Number `json:"impressions"`
		Clicks           provider.Number `json:"clicks"`
		Conversions      provider.Number `json:"conversions"`
		ConversionsValue provider.Number `json:"conversionsValue"`
	} `json:"metrics"`
}

// enabled is the success predicate of a campaign row.
func (r row) enabled() bool { return r.Campaign.Status == statusEnabled }

type searchRequest struct {
	Query     string `json:"query"`
	PageToken string `json:"pageToken,omitempty"`
}

type searchResponse struct {
	Results       []row  `json:"results"`
	NextPageToken string `json:"nextPageToken"`
}

// Client runs GAQL searches with an access token minted from the tenant's refresh token.
type Client struct {
	baseURL  string
	version  string
	tokenURL string
	http     *provider.HTTPClient
	now      func() time.Time
}

// New returns a Google Ads client. Empty arguments select the public API defaults.
func New(baseURL, version, tokenURL string, hc *provider.HTTPClient) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if version == "" {
		version = defaultVersion
	}
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		version:  version,
		tokenURL: tokenURL,
		http:     hc,
		now:      time.Now,
	}
}

// Name returns "google_ads".
func (c *Client) Name() string { return provider.GoogleAds }

// Zero returns empty ad metrics.
func (c *Client) Zero(w provider.Window) *provider.Metrics {
	return &provider.Metrics{Provider: provider.GoogleAds, Window: w, Ads: &provider.AdMetrics{}}
}

// Fetch refreshes an access token, then pages through googleAds:search following nextPageToken.
// Credentials: developer_token, client_id, client_secret, refresh_token, customer_id and optionally
// login_customer_id.
func (c *Client) Fetch(ctx context.Context, creds provider.Credentials, w provider.Window) (*provider.Metrics, error) {
	for _, f := range []string{"developer_token", "client_id", "client_secret", "refresh_token", "customer_id"} {
		if creds[f] == "" {
			return nil, provider.MissingCredential(provider.GoogleAds, f)
		}
	}
	token, err := c.accessToken(ctx, creds)
	if err != nil {
		return nil, err
	}

	customer := strings.ReplaceAll(creds["customer_id"], "-", "")
	endpoint := fmt.Sprintf("%s/%s/customers/%s/googleAds:search", c.baseURL, c.version, customer)
	query := fmt.Sprintf(campaignQuery, w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))

	agg := &provider.AdMetrics{}
	pageToken := ""
	for page := 0; ; page++ {
		if page == maxPages {
			return nil, provider.PaginationLimit(provider.GoogleAds, maxPages)
		}
		body, _ := json.Marshal(searchRequest{Query: query, PageToken: pageToken})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("developer-token", creds["developer_token"])
		if login := strings.ReplaceAll(creds["login_customer_id"], "-", ""); login != "" {
			req.Header.Set("login-customer-id", login)
		}
		token.SetAuthHeader(req)

		var resp searchResponse
		if err := c.http.DoJSON(ctx, req, &resp); err != nil {
			return nil, err
		}
		for _, r := range resp.Results {
			if !r.enabled() {
				continue
			}
			agg.Campaigns++
			agg.Spend += float64(r.Metrics.CostMicros) / microsPerUnit
			agg.Impressions += int64(r.Metrics.Impressions)
			agg.Clicks += int64(r.Metrics.Clicks)
			agg.Conversions += float64(r.Metrics.Conversions)
			agg.ConversionValue += float64(r.Metrics.ConversionsValue)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	provider.FinalizeAds(agg)

	return &provider.Metrics{Provider: provider.GoogleAds, Window: w, Ads: agg, FetchedAt: c.now().UTC()}, nil
}

// accessToken exchanges the refresh token through the OAuth2 token endpoint.
func (c *Client) accessToken(ctx context.Context, creds provider.Credentials) (*oauth2.Token, error) {
	cfg := &oauth2.Config{
		ClientID:     creds["client_id"],
		ClientSecret: creds["client_secret"],
		Endpoint:     oauth2.Endpoint{TokenURL: c.tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
	if c.http != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http.HTTP())
	}
	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: creds["refresh_token"]}).Token()
	if err != nil {
		return nil, provider.Classify(ctx, "google_ads.token", err)
	}
	return tok, nil
}

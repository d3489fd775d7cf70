// Package metaads aggregates campaign insights from the Meta Graph API.
package metaads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marketing-dashboard/backend/internal/platform/apperr"
	"marketing-dashboard/backend/internal/provider"
)

const (
	defaultGraphURL = "https://graph.facebook.com"
	defaultVersion  = "v19.0"
	maxPages        = 200
	insightFields   = "campaign_id,campaign_name,spend,impressions,clicks,actions,action_values"
)

// purchaseActions lists the action types counted as purchases, most specific first. Only the first
// present type is used so a purchase is not counted twice.
var purchaseActions = []string{"purchase", "omni_purchase", "offsite_conversion.fb_pixel_purchase"}

type action struct {
	ActionType string          `json:"action_type"`
	Value      provider.Number `json:"value"`
}

type insight struct {
	CampaignID   string          `json:"campaign_id"`
	Spend        provider.Number `json:"spend"`
	Impressions  provider.Number `json:"impressions"`
	Clicks       provider.Number `json:"clicks"`
	Actions      []action        `json:"actions"`
	ActionValues []action        `json:"action_values"`
}

// active is the success predicate of an insight row.
func (i insight) active() bool { return i.Impressions > 0 }

type insightPage struct {
	Data   []insight `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

func purchases(actions []action) float64 {
	for _, t := range purchaseActions {
		for _, a := range actions {
			if a.ActionType == t {
				return float64(a.Value)
			}
		}
	}
	return 0
}

// stripToken removes access_token from a paging.next URL; the token travels in the Authorization header.
func stripToken(next string) (string, error) {
	if next == "" {
		return "", nil
	}
	u, err := url.Parse(next)
	if err != nil {
		return "", apperr.E(apperr.ProviderError, "meta_ads.paginate", "malformed paging.next", nil)
	}
	q := u.Query()
	q.Del("access_token")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Client fetches ad account insights.
type Client struct {
	graphURL string
	version  string
	http     *provider.HTTPClient
	now      func() time.Time
}

// New returns a Meta Ads client. Empty graphURL and version select the public Graph API defaults.
func New(graphURL, version string, hc *provider.HTTPClient) *Client {
	if graphURL == "" {
		graphURL = defaultGraphURL
	}
	if version == "" {
		version = defaultVersion
	}
	return &Client{graphURL: strings.TrimRight(graphURL, "/"), version: version, http: hc, now: time.Now}
}

// Name returns "meta_ads".
func (c *Client) Name() string { return provider.MetaAds }

// Zero returns empty ad metrics.
func (c *Client) Zero(w provider.Window) *provider.Metrics {
	return &provider.Metrics{Provider: provider.MetaAds, Window: w, Ads: &provider.AdMetrics{}}
}

// Fetch pages through campaign-level insights of the ad account inside w following paging.next.
// Credentials: access_token, ad_account_id.
func (c *Client) Fetch(ctx context.Context, creds provider.Credentials, w provider.Window) (*provider.Metrics, error) {
	token := creds["access_token"]
	if token == "" {
		return nil, provider.MissingCredential(provider.MetaAds, "access_token")
	}
	account := strings.TrimPrefix(creds["ad_account_id"], "act_")
	if account == "" {
		return nil, provider.MissingCredential(provider.MetaAds, "ad_account_id")
	}

	timeRange, _ := json.Marshal(map[string]string{
		"since": w.Start.Format(time.DateOnly),
		"until": w.End.Format(time.DateOnly),
	})
	q := url.Values{}
	q.Set("level", "campaign")
	q.Set("fields", insightFields)
	q.Set("time_range", string(timeRange))
	q.Set("limit", "100")
	next := fmt.Sprintf("%s/%s/act_%s/insights?%s", c.graphURL, c.version, account, q.Encode())

	agg := &provider.AdMetrics{}
	for page := 0; next != ""; page++ {
		if page == maxPages {
			return nil, provider.PaginationLimit(provider.MetaAds, maxPages)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		var p insightPage
		if err := c.http.DoJSON(ctx, req, &p); err != nil {
			return nil, err
		}
		for _, row := range p.Data {
			if !row.active() {
				continue
			}
			agg.Campaigns++
			agg.Spend += float64(row.Spend)
			agg.Impressions += int64(row.Impressions)
			agg.Clicks += int64(row.Clicks)
			agg.Conversions += purchases(row.Actions)
			agg.ConversionValue += purchases(row.ActionValues)
		}
		if next, err = stripToken(p.Paging.Next); err != nil {
			return nil, err
		}
	}
	provider.FinalizeAds(agg)

	return &provider.Metrics{Provider: provider.MetaAds, Window: w, Ads: agg, FetchedAt: c.now().UTC()}, nil
}

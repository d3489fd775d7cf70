// Package provider defines the metrics returned by third-party providers and the contract each provider
// client implements.
package provider

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Provider names. They are also the keys of a tenant's credential map.
const (
	Stripe    = "stripe"
	MetaAds   = "meta_ads"
	GoogleAds = "google_ads"
)

// Window is the half-open reporting interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// LastDays returns the window of the given number of days ending at now.
func LastDays(now time.Time, days int) Window {
	if days <= 0 {
		days = 30
	}
	end := now.UTC()
	return Window{Start: end.AddDate(0, 0, -days), End: end}
}

// PaymentMetrics aggregates successful charges.
type PaymentMetrics struct {
	TotalRevenue      float64 `json:"totalRevenue"`
	TotalCharges      int     `json:"totalCharges"`
	SuccessfulCharges int     `json:"successfulCharges"`
	AverageOrderValue float64 `json:"averageOrderValue"`
	SuccessRate       float64 `json:"successRate"`
	Currency          string  `json:"currency"`
}

// AdMetrics aggregates active campaigns of an ad platform.
type AdMetrics struct {
	Spend           float64 `json:"spend"`
	Impressions     int64   `json:"impressions"`
	Clicks          int64   `json:"clicks"`
	Conversions     float64 `json:"conversions"`
	ConversionValue float64 `json:"conversionValue"`
	CTR             float64 `json:"ctr"`
	CPC             float64 `json:"cpc"`
	CPA             float64 `json:"cpa"`
	ROAS            float64 `json:"roas"`
	Campaigns       int     `json:"campaigns"`
}

// Metrics is the aggregate of one provider over a window. Exactly one of Payments and Ads is set.
type Metrics struct {
	Provider  string          `json:"provider"`
	Window    Window          `json:"window"`
	Payments  *PaymentMetrics `json:"payments,omitempty"`
	Ads       *AdMetrics      `json:"ads,omitempty"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// Credentials is a decrypted credential bundle. It must never be logged.
type Credentials map[string]string

// Fetcher is a provider client.
type Fetcher interface {
	Name() string
	// Fetch paginates the provider API until exhausted and aggregates the records that meet the
	// provider's success predicate. Errors are apperr Timeout or ProviderError.
	Fetch(ctx context.Context, creds Credentials, w Window) (*Metrics, error)
	// Zero returns the all-zero metrics of this provider.
	Zero(w Window) *Metrics
}

// Round2 rounds to 2 decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Ratio returns num/den rounded to 2 decimals, or 0 when den is 0.
func Ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return Round2(num / den)
}

// Percent returns num/den*100 rounded to 2 decimals, or 0 when den is 0.
func Percent(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return Round2(num / den * 100)
}

// FinalizeAds derives the ratio fields of m from its sums and rounds the monetary sums.
func FinalizeAds(m *AdMetrics) {
	m.CTR = Percent(float64(m.Clicks), float64(m.Impressions))
	m.CPC = Ratio(m.Spend, float64(m.Clicks))
	m.CPA = Ratio(m.Spend, m.Conversions)
	m.ROAS = Ratio(m.ConversionValue, m.Spend)
	m.Spend = Round2(m.Spend)
	m.ConversionValue = Round2(m.ConversionValue)
	m.Conversions = Round2(m.Conversions)
}

// BlendAds sums several ad platforms into one aggregate and recomputes the ratios. Nil inputs are
// skipped; the result is nil when every input is nil.
func BlendAds(all ...*AdMetrics) *AdMetrics {
	var out *AdMetrics
	for _, m := range all {
		if m == nil {
			continue
		}
		if out == nil {
			out = &AdMetrics{}
		}
		out.Spend += m.Spend
		out.Impressions += m.Impressions
		out.Clicks += m.Clicks
		out.Conversions += m.Conversions
		out.ConversionValue += m.ConversionValue
		out.Campaigns += m.Campaigns
	}
	if out != nil {
		FinalizeAds(out)
	}
	return out
}

// Number decodes JSON numbers that providers encode either as numbers or as numeric strings.
type Number float64

// UnmarshalJSON accepts 12, 12.5, "12" and "12.5"; empty and null decode to 0.
func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", s, err)
	}
	*n = Number(v)
	return nil
}

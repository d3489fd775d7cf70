package metaads

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketing-dashboard/backend/internal/platform/apperr"
	"marketing-dashboard/backend/internal/provider"
)

var window = provider.Window{
	Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
}

func TestFetch_PaginatesAndAggregates(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Has("access_token") {
			t.Errorf("access token sent in query: %s", r.URL)
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("after") == "" {
			if r.URL.Path != "/v19.0/act_42/insights" || r.URL.Query().Get("level") != "campaign" {
				t.Errorf("unexpected request %s", r.URL)
			}
			fmt.Fprintf(w, `{"data":[
				{"campaign_id":"1","spend":"100.50","impressions":"10000","clicks":"200",
				 "actions":[{"action_type":"purchase","value":"4"},{"action_type":"omni_purchase","value":"4"}],
				 "action_values":[{"action_type":"purchase","value":"400"}]},
				{"campaign_id":"2","spend":"0","impressions":"0","clicks":"0"}
			],"paging":{"next":"%s/v19.0/act_42/insights?after=c1&access_token=tok"}}`, srv.URL)
			return
		}
		fmt.Fprint(w, `{"data":[
			{"campaign_id":"3","spend":"99.50","impressions":"10000","clicks":"200",
			 "actions":[{"action_type":"omni_purchase","value":"6"}],
			 "action_values":[{"action_type":"omni_purchase","value":"400"}]}
		],"paging":{}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "", provider.NewHTTPClient("meta_ads", srv.Client(), 0))
	m, err := c.Fetch(context.Background(), provider.Credentials{"access_token": "tok", "ad_account_id": "act_42"}, window)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	a := m.Ads
	if a.Campaigns != 2 {
		t.Errorf("campaigns = %d, want 2 (zero-impression row excluded)", a.Campaigns)
	}
	if a.Spend != 200 || a.Impressions != 20000 || a.Clicks != 400 {
		t.Errorf("sums = %+v", a)
	}
	if a.Conversions != 10 || a.ConversionValue != 800 {
		t.Errorf("conversions = %v value = %v, want 10 / 800", a.Conversions, a.ConversionValue)
	}
	if a.CTR != 2 || a.CPC != 0.5 || a.CPA != 20 || a.ROAS != 4 {
		t.Errorf("ratios ctr=%v cpc=%v cpa=%v roas=%v", a.CTR, a.CPC, a.CPA, a.ROAS)
	}
}

func TestFetch_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Invalid OAuth access token"}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "v19.0", provider.NewHTTPClient("meta_ads", srv.Client(), 0))
	_, err := c.Fetch(context.Background(), provider.Credentials{"access_token": "bad", "ad_account_id": "42"}, window)
	if !apperr.Is(err, apperr.ProviderError) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
}

func TestFetch_PaginationLimitIsProviderError(t *testing.T) {
	var requests int
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":[{"campaign_id":"1","spend":"1","impressions":"10","clicks":"1"}],
			"paging":{"next":"%s/v19.0/act_42/insights?after=c%d"}}`, srv.URL, requests)
	}))
	defer srv.Close()

	c := New(srv.URL, "", provider.NewHTTPClient("meta_ads", srv.Client(), 0))
	m, err := c.Fetch(context.Background(), provider.Credentials{"access_token": "tok", "ad_account_id": "42"}, window)
	if !apperr.Is(err, apperr.ProviderError) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if m != nil {
		t.Errorf("partial aggregate returned: %+v", m)
	}
	if requests != maxPages {
		t.Errorf("requests = %d, want %d", requests, maxPages)
	}
}

func TestFetch_TimeoutErrorOmitsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := New(srv.URL, "", provider.NewHTTPClient("meta_ads", srv.Client(), 0))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Fetch(ctx, provider.Credentials{"access_token": "SECRET-TOKEN", "ad_account_id": "42"}, window)
	if !apperr.Is(err, apperr.Timeout) {
		t.Fatalf("err = %v, want Timeout", err)
	}
	if strings.Contains(err.Error(), "SECRET-TOKEN") {
		t.Errorf("error carries the access token: %q", err)
	}
}

func TestStripToken(t *testing.T) {
	got, err := stripToken("https://graph.example.com/v19.0/act_1/insights?after=x&access_token=tok")
	if err != nil {
		t.Fatalf("stripToken: %v", err)
	}
	if got != "https://graph.example.com/v19.0/act_1/insights?after=x" {
		t.Errorf("stripToken = %q", got)
	}
	if got, _ := stripToken(""); got != "" {
		t.Errorf("empty next = %q", got)
	}
}

func TestFetch_MissingAccount(t *testing.T) {
	c := New("", "", provider.NewHTTPClient("meta_ads", nil, 0))
	_, err := c.Fetch(context.Background(), provider.Credentials{"access_token": "tok"}, window)
	if !apperr.Is(err, apperr.Configuration) {
		t.Fatalf("err = %v, want Configuration", err)
	}
}

func TestZero(t *testing.T) {
	m := New("", "", nil).Zero(window)
	if m.Ads == nil || m.Ads.Spend != 0 || m.Payments != nil {
		t.Errorf("zero = %+v", m)
	}
}

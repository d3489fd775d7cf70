package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"marketing-dashboard/backend/internal/platform/apperr"
)

func TestClassify_DropsQueryFromURLError(t *testing.T) {
	cause := &url.Error{
		Op:  "Get",
		URL: "https://graph.example.com/v19.0/act_1/insights?access_token=SECRET&limit=100",
		Err: context.DeadlineExceeded,
	}
	err := Classify(context.Background(), "meta_ads.request", fmt.Errorf("wrapped: %w", cause))

	if !apperr.Is(err, apperr.Timeout) {
		t.Fatalf("err = %v, want Timeout", err)
	}
	if strings.Contains(err.Error(), "SECRET") {
		t.Errorf("error leaks query: %q", err)
	}
	if !strings.Contains(err.Error(), "graph.example.com/v19.0/act_1/insights") {
		t.Errorf("error lost the request path: %q", err)
	}
}

func TestDoJSON_TimeoutDoesNotLeakQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewHTTPClient("meta_ads", srv.Client(), 0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/insights?access_token=SECRET", nil)

	var out map[string]any
	err := c.DoJSON(ctx, req, &out)
	if !apperr.Is(err, apperr.Timeout) {
		t.Fatalf("err = %v, want Timeout", err)
	}
	if strings.Contains(err.Error(), "SECRET") {
		t.Errorf("error leaks query: %q", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("cause lost: %v", err)
	}
}

func TestDoJSON_RateLimitWaitPastDeadlineIsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c := NewHTTPClient("stripe", srv.Client(), 0.5)
	var out map[string]any

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err := c.DoJSON(context.Background(), req, &out); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req, _ = http.NewRequest(http.MethodGet, srv.URL, nil)
	err := c.DoJSON(ctx, req, &out)
	if got := apperr.KindOf(err); got != apperr.Timeout {
		t.Fatalf("kind = %v (err %v), want Timeout", got, err)
	}
}

func TestPaginationLimit(t *testing.T) {
	err := PaginationLimit(Stripe, 200)
	if !apperr.Is(err, apperr.ProviderError) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
}

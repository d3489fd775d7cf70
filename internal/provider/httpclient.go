package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"marketing-dashboard/backend/internal/platform/apperr"
)

// maxErrorBody bounds how much of a failed response is kept for the error message.
const maxErrorBody = 512

// HTTPClient issues provider API calls through a shared rate limiter and classifies failures.
type HTTPClient struct {
	name    string
	http    *http.Client
	limiter *rate.Limiter
}

// NewHTTPClient returns an HTTPClient for the named provider. rps <= 0 disables rate limiting.
func NewHTTPClient(name string, hc *http.Client, rps float64) *HTTPClient {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = max(1, int(rps))
	}
	return &HTTPClient{name: name, http: hc, limiter: rate.NewLimiter(limit, burst)}
}

// HTTP returns the underlying client.
func (c *HTTPClient) HTTP() *http.Client { return c.http }

// DoJSON sends req and decodes a 2xx JSON body into v. A context deadline yields a Timeout error; a
// transport failure, a non-2xx status or an undecodable body yields a ProviderError.
func (c *HTTPClient) DoJSON(ctx context.Context, req *http.Request, v any) error {
	op := c.name + ".request"
	if err := c.limiter.Wait(ctx); err != nil {
		// Wait fails early when the next token lands past the deadline, before ctx itself expires.
		if _, ok := ctx.Deadline(); ok {
			return apperr.E(apperr.Timeout, op, "rate limit wait exceeds deadline", err)
		}
		return Classify(ctx, op, err)
	}
	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return Classify(ctx, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apperr.E(apperr.ProviderError, op, fmt.Sprintf("status %d: %s", resp.StatusCode, body), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return Classify(ctx, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// Classify maps a failed call to a Timeout error when ctx expired or was canceled, else to a ProviderError.
// The query string of a request URL carried by err is dropped.
func Classify(ctx context.Context, op string, err error) error {
	err = redactURL(err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.E(apperr.Timeout, op, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return apperr.E(apperr.Timeout, op, "request canceled", err)
	}
	return apperr.E(apperr.ProviderError, op, "request failed", err)
}

// redactURL returns the *url.Error inside err with the query and userinfo removed from its URL, or err
// unchanged when it carries none.
func redactURL(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	clean := "[redacted]"
	if u, perr := url.Parse(ue.URL); perr == nil {
		u.User = nil
		u.RawQuery = ""
		u.Fragment = ""
		clean = u.String()
	}
	return &url.Error{Op: ue.Op, URL: clean, Err: ue.Err}
}

// PaginationLimit returns the ProviderError for a listing that still had pages after maxPages requests.
func PaginationLimit(provider string, maxPages int) error {
	return apperr.E(apperr.ProviderError, provider+".paginate",
		fmt.Sprintf("pagination limit reached after %d pages", maxPages), nil)
}

// MissingCredential returns the Configuration error for an absent credential field.
func MissingCredential(provider, field string) error {
	return apperr.E(apperr.Configuration, provider+".credentials", "missing "+field, nil)
}

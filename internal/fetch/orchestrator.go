// Package fetch orchestrates live provider fetches per tenant with cache and zero-state fallback.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"marketing-dashboard/backend/internal/cache"
	"marketing-dashboard/backend/internal/platform/apperr"
	"marketing-dashboard/backend/internal/provider"
	"marketing-dashboard/backend/internal/security"
	tenantdomain "marketing-dashboard/backend/internal/tenant/domain"
)

// Fetch outcomes reported to the Recorder.
const (
	OutcomeLive   = "live"
	OutcomeCached = "cached"
	OutcomeZero   = "zero"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultWindowDays = 30
)

// Result is the answer for one provider. A degraded answer (cached or zero-state) carries Error and is
// still a success for the caller.
type Result struct {
	Provider string            `json:"provider"`
	Data     *provider.Metrics `json:"data"`
	Cached   bool              `json:"cached"`
	CachedAt *time.Time        `json:"cachedAt,omitempty"`
	Stale    bool              `json:"stale,omitempty"`
	Error    string            `json:"error,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// Decrypter opens credential ciphertexts.
type Decrypter interface {
	Decrypt(ciphertext string, aad []byte) ([]byte, error)
}

// Recorder records fetch outcomes.
type Recorder interface {
	ProviderFetch(provider, outcome string, live time.Duration)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout bounds each live fetch.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithCacheTTL sets the TTL of cached results. Zero uses the store default.
func WithCacheTTL(d time.Duration) Option {
	return func(o *Orchestrator) { o.ttl = d }
}

// WithWindowDays sets the reporting window.
func WithWindowDays(days int) Option {
	return func(o *Orchestrator) {
		if days > 0 {
			o.windowDays = days
		}
	}
}

// WithRecorder records outcomes.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator fetches provider metrics for tenants.
type Orchestrator struct {
	fetchers   map[string]provider.Fetcher
	order      []string
	cache      *cache.Store[*provider.Metrics]
	cipher     Decrypter
	timeout    time.Duration
	ttl        time.Duration
	windowDays int
	recorder   Recorder
	logger     *zap.Logger
	now        func() time.Time
}

// New returns an Orchestrator over the given provider clients. Results are cached in store.
func New(store *cache.Store[*provider.Metrics], cipher Decrypter, fetchers []provider.Fetcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetchers:   make(map[string]provider.Fetcher, len(fetchers)),
		cache:      store,
		cipher:     cipher,
		timeout:    defaultTimeout,
		windowDays: defaultWindowDays,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, f := range fetchers {
		o.fetchers[f.Name()] = f
		o.order = append(o.order, f.Name())
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Key is the cache key of a provider result for a tenant.
func Key(providerName, tenantID string) string {
	return providerName + ":" + tenantID
}

// ownedBy reports whether key was built by Key for tenantID.
func ownedBy(key, tenantID string) bool {
	_, tenant, ok := strings.Cut(key, ":")
	return ok && tenant == tenantID
}

// Providers returns the configured provider names in registration order.
func (o *Orchestrator) Providers() []string {
	return append([]string(nil), o.order...)
}

// Window returns the current reporting window.
func (o *Orchestrator) Window() provider.Window {
	return provider.LastDays(o.now(), o.windowDays)
}

// Fetch performs a live fetch and falls back to the cache, then to zero-state metrics. The only
// error is NotFound for an unknown provider.
func (o *Orchestrator) Fetch(ctx context.Context, t *tenantdomain.Tenant, name string) (*Result, error) {
	f, err := o.fetcher(name)
	if err != nil {
		return nil, err
	}
	w := o.Window()
	start := o.now()
	m, err := o.live(ctx, t, f, w)
	if err != nil {
		return o.fallback(t, f, w, err), nil
	}
	o.cache.Set(Key(name, t.ID), m, o.ttl)
	o.record(name, OutcomeLive, o.now().Sub(start))
	return &Result{Provider: name, Data: m}, nil
}

// FetchFast serves a cached result immediately and refreshes it in the background. Without a cached
// result it fetches synchronously with the same fallback as Fetch.
func (o *Orchestrator) FetchFast(ctx context.Context, t *tenantdomain.Tenant, name string) (*Result, error) {
	f, err := o.fetcher(name)
	if err != nil {
		return nil, err
	}
	w := o.Window()
	key := Key(name, t.ID)
	prev, hadPrev := o.cache.GetEntry(key)
	start := o.now()
	res, err := o.cache.StaleWhileRevalidate(ctx, key, func(ctx context.Context) (*provider.Metrics, error) {
		return o.live(ctx, t, f, w)
	}, o.ttl)
	if err != nil {
		return o.fallback(t, f, w, err), nil
	}
	if res.IsStale {
		out := &Result{Provider: name, Data: res.Data, Cached: true, Stale: true}
		if hadPrev {
			at := prev.CreatedAt
			out.CachedAt = &at
		}
		o.record(name, OutcomeCached, 0)
		return out, nil
	}
	o.record(name, OutcomeLive, o.now().Sub(start))
	return &Result{Provider: name, Data: res.Data}, nil
}

// FetchAll runs Fetch for every provider concurrently. Results follow Providers order.
func (o *Orchestrator) FetchAll(ctx context.Context, t *tenantdomain.Tenant) ([]*Result, error) {
	return o.fanOut(ctx, t, o.Fetch)
}

// FetchAllFast runs FetchFast for every provider concurrently.
func (o *Orchestrator) FetchAllFast(ctx context.Context, t *tenantdomain.Tenant) ([]*Result, error) {
	return o.fanOut(ctx, t, o.FetchFast)
}

func (o *Orchestrator) fanOut(ctx context.Context, t *tenantdomain.Tenant,
	one func(context.Context, *tenantdomain.Tenant, string) (*Result, error)) ([]*Result, error) {
	results := make([]*Result, len(o.order))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range o.order {
		g.Go(func() error {
			r, err := one(gctx, t, name)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// PurgeTenant drops every cached result of the tenant and returns how many were removed.
func (o *Orchestrator) PurgeTenant(tenantID string) int {
	return o.cache.DeleteMatching(func(key string) bool { return ownedBy(key, tenantID) })
}

func (o *Orchestrator) fetcher(name string) (provider.Fetcher, error) {
	f, ok := o.fetchers[name]
	if !ok {
		return nil, apperr.E(apperr.NotFound, "fetch.Fetch", fmt.Sprintf("unknown provider %q", name), nil)
	}
	return f, nil
}

// live decrypts the tenant's credentials and calls the provider under the fetch timeout. Decrypted
// credentials never leave this function.
func (o *Orchestrator) live(ctx context.Context, t *tenantdomain.Tenant, f provider.Fetcher, w provider.Window) (*provider.Metrics, error) {
	const op = "fetch.live"
	ct, ok := t.Credential(f.Name())
	if !ok {
		return nil, apperr.E(apperr.Configuration, op, "credentials not configured", nil)
	}
	plain, err := o.cipher.Decrypt(ct, security.CredentialAAD(t.ID, f.Name()))
	if err != nil {
		return nil, apperr.E(apperr.Configuration, op, "credentials unreadable", err)
	}
	var creds provider.Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, apperr.E(apperr.Configuration, op, "credentials malformed", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return f.Fetch(ctx, creds, w)
}

func (o *Orchestrator) fallback(t *tenantdomain.Tenant, f provider.Fetcher, w provider.Window, cause error) *Result {
	name := f.Name()
	reason := failureReason(cause)
	o.logger.Warn("provider fetch failed, falling back",
		zap.String("tenant_id", t.ID),
		zap.String("provider", name),
		zap.String("kind", apperr.KindOf(cause).String()),
		zap.Error(cause),
	)
	if e, ok := o.cache.GetEntry(Key(name, t.ID)); ok {
		at := e.CreatedAt
		o.record(name, OutcomeCached, 0)
		return &Result{Provider: name, Data: e.Data, Cached: true, CachedAt: &at, Error: reason}
	}
	o.record(name, OutcomeZero, 0)
	return &Result{
		Provider: name,
		Data:     f.Zero(w),
		Error:    reason,
		Message:  zeroStateMessage(name, cause),
	}
}

func (o *Orchestrator) record(name, outcome string, d time.Duration) {
	if o.recorder != nil {
		o.recorder.ProviderFetch(name, outcome, d)
	}
}

func failureReason(err error) string {
	switch apperr.KindOf(err) {
	case apperr.Configuration:
		return "credentials not configured"
	case apperr.Timeout:
		return "provider request timed out"
	case apperr.ProviderError:
		return "provider request failed"
	default:
		return "provider unavailable"
	}
}

func zeroStateMessage(name string, err error) string {
	if apperr.Is(err, apperr.Configuration) {
		return fmt.Sprintf("No %s account is connected for this workspace. Connect it to see live metrics.", name)
	}
	return fmt.Sprintf("Live %s data is unavailable right now and no cached data exists. Showing empty metrics.", name)
}

// Package capture runs the periodic metrics capture: fetch every provider for a tenant, store a
// snapshot, then detect and publish anomalies against the tenant's alert thresholds.
package capture

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	settings "marketing-dashboard/backend/internal/alertsettings/domain"
	"marketing-dashboard/backend/internal/anomaly"
	"marketing-dashboard/backend/internal/fetch"
	"marketing-dashboard/backend/internal/platform/apperr"
	"marketing-dashboard/backend/internal/provider"
	"marketing-dashboard/backend/internal/snapshot"
	tenantdomain "marketing-dashboard/backend/internal/tenant/domain"
)

// Fetcher fetches every configured provider for a tenant.
type Fetcher interface {
	FetchAll(ctx context.Context, t *tenantdomain.Tenant) ([]*fetch.Result, error)
}

// ThresholdSource returns a tenant's alert thresholds.
type ThresholdSource interface {
	Thresholds(ctx context.Context, tenantID string) ([]settings.Threshold, error)
}

// Detector evaluates thresholds against stored history.
type Detector interface {
	Detect(ctx context.Context, current snapshot.Snapshot, thresholds []settings.Threshold) []anomaly.Anomaly
}

// Publisher ships detected anomalies.
type Publisher interface {
	Publish(ctx context.Context, anomalies []anomaly.Anomaly)
}

// TenantLister lists every tenant.
type TenantLister interface {
	List(ctx context.Context) ([]*tenantdomain.Tenant, error)
}

// Result is the outcome of one tenant capture.
type Result struct {
	Snapshot  snapshot.Snapshot `json:"snapshot"`
	Anomalies []anomaly.Anomaly `json:"anomalies"`
}

// Service runs captures.
type Service struct {
	fetcher    Fetcher
	history    snapshot.History
	thresholds ThresholdSource
	detector   Detector
	publisher  Publisher
	tenants    TenantLister
	logger     *zap.Logger
	now        func() time.Time
}

// NewService returns a capture Service. publisher may be nil.
func NewService(f Fetcher, history snapshot.History, thresholds ThresholdSource, detector Detector,
	publisher Publisher, tenants TenantLister, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		fetcher:    f,
		history:    history,
		thresholds: thresholds,
		detector:   detector,
		publisher:  publisher,
		tenants:    tenants,
		logger:     logger,
		now:        time.Now,
	}
}

// CaptureTenant fetches, stores, and evaluates one snapshot for t. Provider failures do not fail the
// capture; they are recorded in the snapshot's sources. Unreadable thresholds fall back to defaults.
func (s *Service) CaptureTenant(ctx context.Context, t *tenantdomain.Tenant) (*Result, error) {
	const op = "capture.CaptureTenant"
	results, err := s.fetcher.FetchAll(ctx, t)
	if err != nil {
		return nil, err
	}
	snap := Build(t.ID, results, s.now().UTC())
	if err := s.history.Append(ctx, snap); err != nil {
		return nil, apperr.E(apperr.Internal, op, "store snapshot", err)
	}

	thresholds, err := s.thresholds.Thresholds(ctx, t.ID)
	if err != nil {
		s.logger.Warn("capture: thresholds unavailable, using defaults", zap.String("tenant_id", t.ID), zap.Error(err))
		thresholds = settings.DefaultThresholds()
	}
	found := s.detector.Detect(ctx, snap, thresholds)
	if len(found) > 0 && s.publisher != nil {
		s.publisher.Publish(ctx, found)
	}
	s.logger.Info("capture: tenant captured",
		zap.String("tenant_id", t.ID),
		zap.String("snapshot_id", snap.ID),
		zap.Int("anomalies", len(found)),
	)
	return &Result{Snapshot: snap, Anomalies: found}, nil
}

// CaptureAll captures every active tenant and returns how many succeeded. A failing tenant is logged
// and skipped.
func (s *Service) CaptureAll(ctx context.Context) (int, error) {
	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return 0, apperr.E(apperr.Internal, "capture.CaptureAll", "list tenants", err)
	}
	ok := 0
	for _, t := range tenants {
		if ctx.Err() != nil {
			return ok, ctx.Err()
		}
		if !t.Active() {
			continue
		}
		if _, err := s.CaptureTenant(ctx, t); err != nil {
			s.logger.Error("capture: tenant failed", zap.String("tenant_id", t.ID), zap.Error(err))
			continue
		}
		ok++
	}
	return ok, nil
}

// Build assembles a snapshot from fetch results. Payments come from stripe; ad metrics are blended
// across every ad platform that returned data.
func Build(tenantID string, results []*fetch.Result, at time.Time) snapshot.Snapshot {
	snap := snapshot.Snapshot{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		Sources:    make(map[string]snapshot.SourceStatus, len(results)),
		CapturedAt: at,
	}
	var ads []*provider.AdMetrics
	for _, r := range results {
		if r == nil {
			continue
		}
		snap.Sources[r.Provider] = snapshot.SourceStatus{Cached: r.Cached, Error: r.Error}
		if r.Data == nil {
			continue
		}
		if r.Provider == provider.Stripe && r.Data.Payments != nil {
			snap.Payments = r.Data.Payments
		}
		if r.Data.Ads != nil {
			ads = append(ads, r.Data.Ads)
		}
	}
	snap.Ads = provider.BlendAds(ads...)
	return snap
}

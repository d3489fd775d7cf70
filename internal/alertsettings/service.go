// Package alertsettings stores per-tenant alert thresholds and notification channels.
package alertsettings

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"marketing-dashboard/backend/internal/alertsettings/domain"
	"marketing-dashboard/backend/internal/alertsettings/repository"
	"marketing-dashboard/backend/internal/platform/apperr"
)

// Service reads and mutates alert settings. Mutations are read-modify-write under a per-tenant lock.
type Service struct {
	repo         repository.Repository
	dashboardURL func(tenantID string) string
	logger       *zap.Logger
	now          func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService returns a Service. dashboardURL computes the default dashboard link of a tenant and may
// be nil.
func NewService(repo repository.Repository, dashboardURL func(tenantID string) string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dashboardURL == nil {
		dashboardURL = func(string) string { return "" }
	}
	return &Service{
		repo:         repo,
		dashboardURL: dashboardURL,
		logger:       logger,
		now:          time.Now,
		locks:        make(map[string]*sync.Mutex),
	}
}

func (s *Service) lock(tenantID string) func() {
	s.mu.Lock()
	l, ok := s.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tenantID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Get returns the tenant's settings. The first read seeds and persists the defaults; later reads add
// newly introduced default thresholds without touching existing ones.
func (s *Service) Get(ctx context.Context, tenantID string) (*domain.AlertSettings, error) {
	unlock := s.lock(tenantID)
	defer unlock()
	return s.load(ctx, tenantID)
}

// Thresholds returns the tenant's thresholds.
func (s *Service) Thresholds(ctx context.Context, tenantID string) ([]domain.Threshold, error) {
	settings, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return settings.Thresholds, nil
}

// UpdateThreshold applies patch to the threshold with id. Unknown id is NotFound; an invalid patch is
// Invalid.
func (s *Service) UpdateThreshold(ctx context.Context, tenantID, id string, patch domain.ThresholdPatch) (*domain.AlertSettings, error) {
	const op = "alertsettings.UpdateThreshold"
	unlock := s.lock(tenantID)
	defer unlock()

	settings, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	i := settings.Find(id)
	if i < 0 {
		return nil, apperr.E(apperr.NotFound, op, "threshold not found", nil)
	}
	if err := patch.Apply(&settings.Thresholds[i]); err != nil {
		return nil, apperr.E(apperr.Invalid, op, err.Error(), nil)
	}
	if err := s.save(ctx, op, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// ReplaceChannels replaces the notification channels and, when non-empty, the dashboard URL.
func (s *Service) ReplaceChannels(ctx context.Context, tenantID string, channels domain.Channels, dashboardURL string) (*domain.AlertSettings, error) {
	const op = "alertsettings.ReplaceChannels"
	if err := channels.Validate(); err != nil {
		return nil, apperr.E(apperr.Invalid, op, err.Error(), nil)
	}
	if channels.Email.Recipients == nil {
		channels.Email.Recipients = []string{}
	}
	unlock := s.lock(tenantID)
	defer unlock()

	settings, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	settings.Channels = channels
	if dashboardURL != "" {
		settings.DashboardURL = dashboardURL
	}
	if err := s.save(ctx, op, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// load must be called with the tenant lock held.
func (s *Service) load(ctx context.Context, tenantID string) (*domain.AlertSettings, error) {
	const op = "alertsettings.load"
	settings, err := s.repo.Load(ctx, tenantID)
	if err != nil {
		return nil, apperr.E(apperr.Internal, op, "load settings", err)
	}
	if settings == nil {
		settings = domain.Defaults(tenantID, s.dashboardURL(tenantID), s.now())
		if err := s.save(ctx, op, settings); err != nil {
			return nil, err
		}
		s.logger.Info("alert settings seeded with defaults", zap.String("tenant_id", tenantID))
		return settings, nil
	}
	if domain.MergeWithDefaults(settings) {
		if err := s.save(ctx, op, settings); err != nil {
			return nil, err
		}
		s.logger.Info("alert settings merged with new defaults", zap.String("tenant_id", tenantID))
	}
	return settings, nil
}

func (s *Service) save(ctx context.Context, op string, settings *domain.AlertSettings) error {
	settings.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(ctx, settings); err != nil {
		return apperr.E(apperr.Internal, op, "save settings", err)
	}
	return nil
}

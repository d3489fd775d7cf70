package alertsettings

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketing-dashboard/backend/internal/alertsettings/domain"
	"marketing-dashboard/backend/internal/alertsettings/repository"
	"marketing-dashboard/backend/internal/platform/apperr"
)

type countingRepo struct {
	*repository.MemoryRepository
	mu    sync.Mutex
	saves int
	err   error
}

func (c *countingRepo) Save(ctx context.Context, s *domain.AlertSettings) error {
	c.mu.Lock()
	c.saves++
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.MemoryRepository.Save(ctx, s)
}

func newService() (*Service, *countingRepo) {
	repo := &countingRepo{MemoryRepository: repository.NewMemoryRepository()}
	svc := NewService(repo, func(id string) string { return "https://dash.example.com/" + id }, nil)
	return svc, repo
}

func TestGet_SeedsAndPersistsDefaults(t *testing.T) {
	svc, repo := newService()
	ctx := context.Background()

	s, err := svc.Get(ctx, "t-1")
	require.NoError(t, err)
	assert.Len(t, s.Thresholds, len(domain.DefaultThresholds()))
	assert.Equal(t, "https://dash.example.com/t-1", s.DashboardURL)
	assert.Equal(t, 1, repo.saves)

	_, err = svc.Get(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.saves, "second read must not write")
}

func TestGet_MergesNewDefaultWithoutResettingCustom(t *testing.T) {
	svc, repo := newService()
	ctx := context.Background()
	// Stored before ctr_drop existed, with a customized revenue threshold.
	require.NoError(t, repo.MemoryRepository.Save(ctx, &domain.AlertSettings{
		TenantID: "t-1",
		Thresholds: []domain.Threshold{
			{ID: domain.TypeRevenueDrop, Type: domain.TypeRevenueDrop, Threshold: 12, Enabled: true},
		},
	}))

	s, err := svc.Get(ctx, "t-1")
	require.NoError(t, err)
	assert.Len(t, s.Thresholds, len(domain.DefaultThresholds()))
	assert.Equal(t, 12.0, s.Thresholds[s.Find(domain.TypeRevenueDrop)].Threshold)
	assert.GreaterOrEqual(t, s.Find(domain.TypeCTRDrop), 0)
	assert.Equal(t, 1, repo.saves)

	reloaded, err := repo.Load(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, 12.0, reloaded.Thresholds[reloaded.Find(domain.TypeRevenueDrop)].Threshold)
}

func TestUpdateThreshold(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	v := 45.0
	off := false

	s, err := svc.UpdateThreshold(ctx, "t-1", domain.TypeCPAIncrease, domain.ThresholdPatch{Threshold: &v, Enabled: &off})
	require.NoError(t, err)
	got := s.Thresholds[s.Find(domain.TypeCPAIncrease)]
	assert.Equal(t, 45.0, got.Threshold)
	assert.False(t, got.Enabled)

	again, err := svc.Get(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, 45.0, again.Thresholds[again.Find(domain.TypeCPAIncrease)].Threshold)
}

func TestUpdateThreshold_Errors(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	v := 5000.0

	_, err := svc.UpdateThreshold(ctx, "t-1", "nope", domain.ThresholdPatch{Threshold: &v})
	assert.True(t, apperr.Is(err, apperr.NotFound))

	_, err = svc.UpdateThreshold(ctx, "t-1", domain.TypeRevenueDrop, domain.ThresholdPatch{Threshold: &v})
	assert.True(t, apperr.Is(err, apperr.Invalid))
}

func TestReplaceChannels(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	s, err := svc.ReplaceChannels(ctx, "t-1", domain.Channels{
		Email: domain.EmailChannel{Enabled: true, Recipients: []string{"ops@acme.test"}},
	}, "")
	require.NoError(t, err)
	assert.True(t, s.Channels.Email.Enabled)
	assert.Equal(t, "https://dash.example.com/t-1", s.DashboardURL)

	_, err = svc.ReplaceChannels(ctx, "t-1", domain.Channels{
		Chat: domain.ChatChannel{Enabled: true, WebhookURL: "http://insecure.example.com"},
	}, "")
	assert.True(t, apperr.Is(err, apperr.Invalid))
}

func TestConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	ids := []string{domain.TypeRevenueDrop, domain.TypeSpendIncrease, domain.TypeConversionDrop, domain.TypeCPAIncrease}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := float64(60 + i)
			_, _ = svc.UpdateThreshold(ctx, "t-1", id, domain.ThresholdPatch{Threshold: &v})
		}()
	}
	wg.Wait()

	s, err := svc.Get(ctx, "t-1")
	require.NoError(t, err)
	for i, id := range ids {
		assert.Equal(t, float64(60+i), s.Thresholds[s.Find(id)].Threshold, id)
	}
}

func TestSaveFailureIsInternal(t *testing.T) {
	svc, repo := newService()
	repo.err = errors.New("disk full")

	_, err := svc.Get(context.Background(), "t-1")
	assert.True(t, apperr.Is(err, apperr.Internal))
}

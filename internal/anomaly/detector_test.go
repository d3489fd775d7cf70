package anomaly

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	settings "marketing-dashboard/backend/internal/alertsettings/domain"
	"marketing-dashboard/backend/internal/provider"
	"marketing-dashboard/backend/internal/snapshot"
)

var t0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func snap(tenantID string, i int, revenue float64, ads *provider.AdMetrics) snapshot.Snapshot {
	return snapshot.Snapshot{
		ID:         tenantID + "-" + string(rune('a'+i)),
		TenantID:   tenantID,
		Payments:   &provider.PaymentMetrics{TotalRevenue: revenue},
		Ads:        ads,
		CapturedAt: t0.Add(time.Duration(i) * 6 * time.Hour),
	}
}

func threshold(kind string, v float64) settings.Threshold {
	return settings.Threshold{ID: kind, Type: kind, Label: kind, Threshold: v, Enabled: true}
}

func seed(t *testing.T, h snapshot.History, snaps ...snapshot.Snapshot) snapshot.Snapshot {
	t.Helper()
	for _, s := range snaps {
		require.NoError(t, h.Append(context.Background(), s))
	}
	return snaps[len(snaps)-1]
}

func TestPercentChange(t *testing.T) {
	assert.Equal(t, 50.0, PercentChange(150, 100))
	assert.Equal(t, -30.0, PercentChange(70, 100))
	assert.Equal(t, 100.0, PercentChange(5, 0))
	assert.Equal(t, 0.0, PercentChange(0, 0))
	assert.Equal(t, 33.33, PercentChange(4, 3))
}

func TestSeverityOf(t *testing.T) {
	assert.Equal(t, SeverityHigh, SeverityOf(-50))
	assert.Equal(t, SeverityHigh, SeverityOf(75))
	assert.Equal(t, SeverityMedium, SeverityOf(49.99))
}

func TestDetect_NeedsTwoSnapshots(t *testing.T) {
	h := snapshot.NewMemoryHistory(0)
	cur := seed(t, h, snap("t1", 0, 100, nil))
	d := NewDetector(h, 0, nil)

	got := d.Detect(context.Background(), cur, []settings.Threshold{threshold(settings.TypeRevenueDrop, 1)})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDetect_RevenueDrop(t *testing.T) {
	h := snapshot.NewMemoryHistory(0)
	cur := seed(t, h, snap("t1", 0, 1000, nil), snap("t1", 1, 700, nil))
	d := NewDetector(h, 4, nil)

	got := d.Detect(context.Background(), cur, []settings.Threshold{threshold(settings.TypeRevenueDrop, 20)})
	require.Len(t, got, 1)
	a := got[0]
	assert.Equal(t, settings.TypeRevenueDrop, a.Type)
	assert.Equal(t, provider.Stripe, a.Provider)
	assert.Equal(t, "totalRevenue", a.Metric)
	assert.Equal(t, SeverityMedium, a.Severity)
	assert.Equal(t, 700.0, a.CurrentValue)
	assert.Equal(t, 1000.0, a.PreviousValue)
	assert.Equal(t, -30.0, a.PercentChange)
	assert.Equal(t, "t1", a.TenantID)
	assert.Equal(t, t0, a.BaselineAt)
	assert.NotEmpty(t, a.ID)
}

func TestDetect_BelowThresholdOrDisabled(t *testing.T) {
	h := snapshot.NewMemoryHistory(0)
	cur := seed(t, h, snap("t1", 0, 1000, nil), snap("t1", 1, 900, nil))
	d := NewDetector(h, 4, nil)

	assert.Empty(t, d.Detect(context.Background(), cur, []settings.Threshold{threshold(settings.TypeRevenueDrop, 20)}))

	cur = seed(t, h, snap("t1", 2, 100, nil))
	disabled := threshold(settings.TypeRevenueDrop, 20)
	disabled.Enabled = false
	assert.Empty(t, d.Detect(context.Background(), cur, []settings.Threshold{disabled}))
}

func TestDetect_BaselineOffset(t *testing.T) {
	h := snapshot.NewMemoryHistory(0)
	// Revenue: 100, 1000, 1000, 1000, 1000, 600. With offset 4 the baseline is index 1 (1000).
	cur := seed(t, h,
		snap("t1", 0, 100, nil),
		snap("t1", 1, 1000, nil),
		snap("t1", 2, 1000, nil),
		snap("t1", 3, 1000, nil),
		snap("t1", 4, 1000, nil),
		snap("t1", 5, 600, nil),
	)
	d := NewDetector(h, 4, nil)

	got := d.Detect(context.Background(), cur, []settings.Threshold{threshold(settings.TypeRevenueDrop, 20)})
	require.Len(t, got, 1)
	assert.Equal(t, -40.0, got[0].PercentChange)
	assert.Equal(t, t0.Add(6*time.Hour), got[0].BaselineAt)

	// Offset 1 compares with the previous capture, which also held 1000.
	got = NewDetector(h, 1, nil).Detect(context.Background(), cur, []settings.Threshold{threshold(settings.TypeRevenueDrop, 20)})
	require.Len(t, got, 1)
	assert.Equal(t, t0.Add(24*time.Hour), got[0].BaselineAt)
}

func TestDetect_SpendIncreaseRequiresFlatConversions(t *testing.T) {
	base := &provider.AdMetrics{Spend: 100, Conversions: 10}
	flat := &provider.AdMetrics{Spend: 150, Conversions: 10}
	scaled := &provider.AdMetrics{Spend: 150, Conversions: 20}
	thresholds := []settings.Threshold{threshold(settings.TypeSpendIncrease, 30)}

	h := snapshot.NewMemoryHistory(0)
	cur := seed(t, h, snap("t1", 0, 0, base), snap("t1", 1, 0, flat))
	got := NewDetector(h, 4, nil).Detect(context.Background(), cur, thresholds)
	require.Len(t, got, 1)
	assert.Equal(t, "ads", got[0].Provider)
	assert.Equal(t, 50.0, got[0].PercentChange)
	assert.Equal(t, SeverityHigh, got[0].Severity)

	h = snapshot.NewMemoryHistory(0)
	cur = seed(t, h, snap("t2", 0, 0, base), snap("t2", 1, 0, scaled))
	assert.Empty(t, NewDetector(h, 4, nil).Detect(context.Background(), cur, thresholds))
}

func TestDetect_AdRules(t *testing.T) {
	prev := &provider.AdMetrics{Conversions: 100, CPA: 10, CTR: 2, ROAS: 4}
	cur := &provider.AdMetrics{Conversions: 60, CPA: 14, CTR: 1.9, ROAS: 1}

	h := snapshot.NewMemoryHistory(0)
	current := seed(t, h, snap("t1", 0, 0, prev), snap("t1", 1, 0, cur))
	got := NewDetector(h, 4, nil).Detect(context.Background(), current, []settings.Threshold{
		threshold(settings.TypeConversionDrop, 25),
		threshold(settings.TypeCPAIncrease, 30),
		threshold(settings.TypeCTRDrop, 25),
		threshold(settings.TypeROASDrop, 25),
	})

	byType := map[string]Anomaly{}
	for _, a := range got {
		byType[a.Type] = a
	}
	require.Len(t, byType, 3)
	assert.Equal(t, -40.0, byType[settings.TypeConversionDrop].PercentChange)
	assert.Equal(t, 40.0, byType[settings.TypeCPAIncrease].PercentChange)
	assert.Equal(t, -75.0, byType[settings.TypeROASDrop].PercentChange)
	assert.Equal(t, SeverityHigh, byType[settings.TypeROASDrop].Severity)
	assert.NotContains(t, byType, settings.TypeCTRDrop)
}

func TestDetect_OnePerRule(t *testing.T) {
	h := snapshot.NewMemoryHistory(0)
	cur := seed(t, h, snap("t1", 0, 1000, nil), snap("t1", 1, 100, nil))

	got := NewDetector(h, 4, nil).Detect(context.Background(), cur, []settings.Threshold{
		threshold(settings.TypeRevenueDrop, 20),
		threshold(settings.TypeRevenueDrop, 10),
	})
	assert.Len(t, got, 1)
}

func TestDetect_MissingMetricsSkipRule(t *testing.T) {
	h := snapshot.NewMemoryHistory(0)
	cur := seed(t, h, snap("t1", 0, 1000, nil), snap("t1", 1, 100, &provider.AdMetrics{Spend: 1000}))

	got := NewDetector(h, 4, nil).Detect(context.Background(), cur, []settings.Threshold{threshold(settings.TypeSpendIncrease, 10)})
	assert.Empty(t, got)
}

type brokenHistory struct{}

func (brokenHistory) Append(context.Context, snapshot.Snapshot) error { return nil }

func (brokenHistory) List(context.Context, string) ([]snapshot.Snapshot, error) {
	return nil, errors.New("unavailable")
}

func TestDetect_HistoryErrorYieldsNothing(t *testing.T) {
	got := NewDetector(brokenHistory{}, 4, nil).Detect(context.Background(), snap("t1", 0, 1, nil), []settings.Threshold{threshold(settings.TypeRevenueDrop, 1)})
	assert.Empty(t, got)
}

// Package anomaly compares a tenant's newest metrics snapshot with a baseline snapshot and reports the
// threshold rules that fired.
package anomaly

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	settings "marketing-dashboard/backend/internal/alertsettings/domain"
	"marketing-dashboard/backend/internal/provider"
	"marketing-dashboard/backend/internal/snapshot"
)

// Severity of an anomaly.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// DefaultBaselineOffset selects the snapshot four captures back, about 24 hours at a 6 hour cadence.
const DefaultBaselineOffset = 4

// highSeverityChange is the absolute percent change at and above which an anomaly is high severity.
const highSeverityChange = 50

// Anomaly is one fired rule.
type Anomaly struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenantId"`
	Type          string    `json:"type"`
	Metric        string    `json:"metric"`
	Provider      string    `json:"provider"`
	Severity      Severity  `json:"severity"`
	CurrentValue  float64   `json:"currentValue"`
	PreviousValue float64   `json:"previousValue"`
	PercentChange float64   `json:"percentChange"`
	Threshold     float64   `json:"threshold"`
	Message       string    `json:"message"`
	BaselineAt    time.Time `json:"baselineAt"`
	DetectedAt    time.Time `json:"detectedAt"`
}

// direction of a change that fires a rule.
type direction int

const (
	down direction = iota
	up
)

type rule struct {
	metric   string
	provider string
	dir      direction
	value    func(s snapshot.Snapshot) (float64, bool)
	// paired, when set, must change by less than half the primary change for the rule to fire.
	paired func(s snapshot.Snapshot) (float64, bool)
}

func payments(f func(*provider.PaymentMetrics) float64) func(snapshot.Snapshot) (float64, bool) {
	return func(s snapshot.Snapshot) (float64, bool) {
		if s.Payments == nil {
			return 0, false
		}
		return f(s.Payments), true
	}
}

func ads(f func(*provider.AdMetrics) float64) func(snapshot.Snapshot) (float64, bool) {
	return func(s snapshot.Snapshot) (float64, bool) {
		if s.Ads == nil {
			return 0, false
		}
		return f(s.Ads), true
	}
}

var rules = map[string]rule{
	settings.TypeRevenueDrop: {
		metric: "totalRevenue", provider: provider.Stripe, dir: down,
		value: payments(func(m *provider.PaymentMetrics) float64 { return m.TotalRevenue }),
	},
	settings.TypeSpendIncrease: {
		metric: "spend", provider: "ads", dir: up,
		value:  ads(func(m *provider.AdMetrics) float64 { return m.Spend }),
		paired: ads(func(m *provider.AdMetrics) float64 { return m.Conversions }),
	},
	settings.TypeConversionDrop: {
		metric: "conversions", provider: "ads", dir: down,
		value: ads(func(m *provider.AdMetrics) float64 { return m.Conversions }),
	},
	settings.TypeCPAIncrease: {
		metric: "cpa", provider: "ads", dir: up,
		value: ads(func(m *provider.AdMetrics) float64 { return m.CPA }),
	},
	settings.TypeCTRDrop: {
		metric: "ctr", provider: "ads", dir: down,
		value: ads(func(m *provider.AdMetrics) float64 { return m.CTR }),
	},
	settings.TypeROASDrop: {
		metric: "roas", provider: "ads", dir: down,
		value: ads(func(m *provider.AdMetrics) float64 { return m.ROAS }),
	},
}

// PercentChange returns (current-previous)/previous*100 rounded to 2 decimals. A zero previous value
// yields 100 when current is positive, else 0.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return provider.Round2((current - previous) / previous * 100)
}

// SeverityOf returns high when |change| >= 50, else medium.
func SeverityOf(change float64) Severity {
	if math.Abs(change) >= highSeverityChange {
		return SeverityHigh
	}
	return SeverityMedium
}

// Detector evaluates threshold rules over a tenant's snapshot history.
type Detector struct {
	history snapshot.History
	offset  int
	logger  *zap.Logger
	now     func() time.Time
}

// NewDetector returns a Detector reading history. offset < 1 uses DefaultBaselineOffset.
func NewDetector(history snapshot.History, offset int, logger *zap.Logger) *Detector {
	if offset < 1 {
		offset = DefaultBaselineOffset
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{history: history, offset: offset, logger: logger, now: time.Now}
}

// Detect compares current with the baseline snapshot of its tenant. current must already be the newest
// stored snapshot. With fewer than two stored snapshots, or when history cannot be read, no anomalies
// are reported. Disabled thresholds and unknown types are skipped; each rule fires at most once.
func (d *Detector) Detect(ctx context.Context, current snapshot.Snapshot, thresholds []settings.Threshold) []Anomaly {
	hist, err := d.history.List(ctx, current.TenantID)
	if err != nil {
		d.logger.Warn("anomaly: history unavailable", zap.String("tenant_id", current.TenantID), zap.Error(err))
		return []Anomaly{}
	}
	n := len(hist)
	if n < 2 {
		return []Anomaly{}
	}
	baseline := hist[max(0, n-1-d.offset)]

	out := []Anomaly{}
	fired := make(map[string]bool, len(thresholds))
	for _, th := range thresholds {
		if !th.Enabled || fired[th.Type] {
			continue
		}
		r, ok := rules[th.Type]
		if !ok {
			continue
		}
		a, ok := d.evaluate(r, th, current, baseline)
		if !ok {
			continue
		}
		fired[th.Type] = true
		out = append(out, a)
	}
	return out
}

func (d *Detector) evaluate(r rule, th settings.Threshold, current, baseline snapshot.Snapshot) (Anomaly, bool) {
	cur, ok1 := r.value(current)
	prev, ok2 := r.value(baseline)
	if !ok1 || !ok2 {
		return Anomaly{}, false
	}
	change := PercentChange(cur, prev)
	switch r.dir {
	case down:
		if change > -th.Threshold {
			return Anomaly{}, false
		}
	case up:
		if change < th.Threshold {
			return Anomaly{}, false
		}
	}
	if r.paired != nil {
		pc, ok1 := r.paired(current)
		pp, ok2 := r.paired(baseline)
		if !ok1 || !ok2 || PercentChange(pc, pp) >= change/2 {
			return Anomaly{}, false
		}
	}
	return Anomaly{
		ID:            uuid.New().String(),
		TenantID:      current.TenantID,
		Type:          th.Type,
		Metric:        r.metric,
		Provider:      r.provider,
		Severity:      SeverityOf(change),
		CurrentValue:  cur,
		PreviousValue: prev,
		PercentChange: change,
		Threshold:     th.Threshold,
		Message:       message(th, r, change),
		BaselineAt:    baseline.CapturedAt,
		DetectedAt:    d.now().UTC(),
	}, true
}

func message(th settings.Threshold, r rule, change float64) string {
	label := th.Label
	if label == "" {
		label = th.Type
	}
	verb := "fell"
	if r.dir == up {
		verb = "rose"
	}
	return fmt.Sprintf("%s: %s %s %.2f%% (threshold %.2f%%)", label, r.metric, verb, math.Abs(change), th.Threshold)
}

// Package domain defines per-tenant alert thresholds and notification channels.
package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Threshold types. Each type is evaluated by one anomaly rule.
const (
	TypeRevenueDrop    = "revenue_drop"
	TypeSpendIncrease  = "spend_increase"
	TypeConversionDrop = "conversion_drop"
	TypeCPAIncrease    = "cpa_increase"
	TypeCTRDrop        = "ctr_drop"
	TypeROASDrop       = "roas_drop"
)

// MaxThreshold bounds a threshold percentage.
const MaxThreshold = 1000

// Threshold is a percentage-change rule. ID equals Type for default thresholds.
type Threshold struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Threshold   float64 `json:"threshold"`
	Enabled     bool    `json:"enabled"`
}

// EmailChannel delivers alerts by email.
type EmailChannel struct {
	Enabled    bool     `json:"enabled"`
	Recipients []string `json:"recipients"`
}

// ChatChannel delivers alerts to a chat webhook.
type ChatChannel struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhookUrl"`
}

// Channels are the notification targets of a tenant.
type Channels struct {
	Email EmailChannel `json:"email"`
	Chat  ChatChannel  `json:"chat"`
}

// AlertSettings is one tenant's alert configuration.
type AlertSettings struct {
	TenantID     string      `json:"tenantId"`
	Thresholds   []Threshold `json:"thresholds"`
	Channels     Channels    `json:"channels"`
	DashboardURL string      `json:"dashboardUrl"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// ThresholdPatch updates a threshold. Nil fields are left unchanged.
type ThresholdPatch struct {
	Enabled   *bool    `json:"enabled,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// DefaultThresholds returns the thresholds every tenant starts with.
func DefaultThresholds() []Threshold {
	return []Threshold{
		{ID: TypeRevenueDrop, Type: TypeRevenueDrop, Label: "Revenue drop", Description: "Payments revenue fell compared to the previous day", Threshold: 20, Enabled: true},
		{ID: TypeSpendIncrease, Type: TypeSpendIncrease, Label: "Spend spike", Description: "Ad spend rose without a matching rise in conversions", Threshold: 30, Enabled: true},
		{ID: TypeConversionDrop, Type: TypeConversionDrop, Label: "Conversion drop", Description: "Ad conversions fell compared to the previous day", Threshold: 25, Enabled: true},
		{ID: TypeCPAIncrease, Type: TypeCPAIncrease, Label: "CPA increase", Description: "Cost per acquisition rose compared to the previous day", Threshold: 30, Enabled: true},
		{ID: TypeCTRDrop, Type: TypeCTRDrop, Label: "CTR drop", Description: "Click-through rate fell compared to the previous day", Threshold: 25, Enabled: false},
		{ID: TypeROASDrop, Type: TypeROASDrop, Label: "ROAS drop", Description: "Return on ad spend fell compared to the previous day", Threshold: 25, Enabled: true},
	}
}

// Defaults returns a tenant's initial settings with every channel disabled.
func Defaults(tenantID, dashboardURL string, now time.Time) *AlertSettings {
	return &AlertSettings{
		TenantID:     tenantID,
		Thresholds:   DefaultThresholds(),
		Channels:     Channels{Email: EmailChannel{Recipients: []string{}}},
		DashboardURL: dashboardURL,
		UpdatedAt:    now.UTC(),
	}
}

// MergeWithDefaults appends default thresholds whose type s does not have yet. Existing thresholds are
// never modified. Reports whether anything was added.
func MergeWithDefaults(s *AlertSettings) bool {
	have := make(map[string]bool, len(s.Thresholds))
	for _, t := range s.Thresholds {
		have[t.Type] = true
	}
	added := false
	for _, d := range DefaultThresholds() {
		if !have[d.Type] {
			s.Thresholds = append(s.Thresholds, d)
			added = true
		}
	}
	return added
}

// Find returns the index of the threshold with id, or -1.
func (s *AlertSettings) Find(id string) int {
	for i, t := range s.Thresholds {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Apply validates p and applies it to t.
func (p ThresholdPatch) Apply(t *Threshold) error {
	if p.Enabled == nil && p.Threshold == nil {
		return errors.New("patch must set enabled or threshold")
	}
	if p.Threshold != nil {
		if err := ValidateThreshold(*p.Threshold); err != nil {
			return err
		}
		t.Threshold = *p.Threshold
	}
	if p.Enabled != nil {
		t.Enabled = *p.Enabled
	}
	return nil
}

// ValidateThreshold requires 0 < v <= MaxThreshold.
func ValidateThreshold(v float64) error {
	if v <= 0 || v > MaxThreshold {
		return fmt.Errorf("threshold must be greater than 0 and at most %d", MaxThreshold)
	}
	return nil
}

// Validate checks recipients and the webhook URL. An enabled channel must have a target.
func (c Channels) Validate() error {
	for _, r := range c.Email.Recipients {
		if !strings.Contains(r, "@") {
			return fmt.Errorf("invalid email recipient %q", r)
		}
	}
	if c.Email.Enabled && len(c.Email.Recipients) == 0 {
		return errors.New("email channel enabled without recipients")
	}
	if c.Chat.WebhookURL != "" {
		u, err := url.Parse(c.Chat.WebhookURL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return errors.New("chat webhook URL must be an https URL")
		}
	}
	if c.Chat.Enabled && c.Chat.WebhookURL == "" {
		return errors.New("chat channel enabled without webhook URL")
	}
	return nil
}

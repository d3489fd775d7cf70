package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Tenant is an isolated customer organization. Credentials maps a provider name to its encrypted
// credential bundle; plaintext never lives on this type.
type Tenant struct {
	ID          string
	Subdomain   string
	Name        string
	Status      Status
	Credentials map[string]string
	CreatedAt   time.Time
}

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// Validate validates the tenant for persistence. Returns an error describing the first validation failure.
func (t *Tenant) Validate() error {
	if t.ID == "" {
		return errors.New("id is required")
	}
	if strings.ContainsAny(t.ID, ": \t\n") {
		return errors.New("id must not contain colons or whitespace")
	}
	if !subdomainPattern.MatchString(t.Subdomain) {
		return errors.New("subdomain must be a lowercase DNS label")
	}
	if t.Name == "" {
		return errors.New("name is required")
	}
	switch t.Status {
	case "":
		t.Status = StatusActive
	case StatusActive, StatusSuspended:
	default:
		return errors.New("status must be active or suspended")
	}
	return nil
}

// Active reports whether the tenant may be served.
func (t *Tenant) Active() bool {
	return t.Status == "" || t.Status == StatusActive
}

// Credential returns the encrypted credential bundle for provider.
func (t *Tenant) Credential(provider string) (string, bool) {
	c, ok := t.Credentials[provider]
	return c, ok && c != ""
}

package tenant

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"marketing-dashboard/backend/internal/security"
	"marketing-dashboard/backend/internal/tenant/domain"
)

// SeedFile is the YAML document read by LoadYAML.
type SeedFile struct {
	Tenants []Seed `yaml:"tenants"`
}

// Seed is one tenant with plaintext provider credentials, as written by an operator.
type Seed struct {
	ID          string                       `yaml:"id"`
	Subdomain   string                       `yaml:"subdomain"`
	Name        string                       `yaml:"name"`
	Status      string                       `yaml:"status"`
	Credentials map[string]map[string]string `yaml:"credentials"`
}

// Encrypter seals a credential bundle for storage.
type Encrypter interface {
	Encrypt(plaintext, aad []byte) (string, error)
}

// LoadYAML reads and validates a seed file.
func LoadYAML(path string) ([]Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f SeedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("tenant seed %s: %w", path, err)
	}
	seen := make(map[string]bool, len(f.Tenants))
	for i, s := range f.Tenants {
		if seen[s.Subdomain] {
			return nil, fmt.Errorf("tenant seed %s: duplicate subdomain %q", path, s.Subdomain)
		}
		seen[s.Subdomain] = true
		candidate := domain.Tenant{ID: s.ID, Subdomain: s.Subdomain, Name: s.Name, Status: domain.Status(s.Status)}
		if err := candidate.Validate(); err != nil {
			return nil, fmt.Errorf("tenant seed %s: entry %d: %w", path, i, err)
		}
	}
	return f.Tenants, nil
}

// Tenant encrypts each provider bundle (as JSON, bound to tenant and provider) and returns the storable tenant.
func (s Seed) Tenant(enc Encrypter) (*domain.Tenant, error) {
	t := &domain.Tenant{
		ID:          s.ID,
		Subdomain:   s.Subdomain,
		Name:        s.Name,
		Status:      domain.Status(s.Status),
		Credentials: make(map[string]string, len(s.Credentials)),
	}
	providers := make([]string, 0, len(s.Credentials))
	for p := range s.Credentials {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	for _, p := range providers {
		bundle, err := json.Marshal(s.Credentials[p])
		if err != nil {
			return nil, err
		}
		ct, err := enc.Encrypt(bundle, security.CredentialAAD(s.ID, p))
		if err != nil {
			return nil, fmt.Errorf("encrypt %s credentials for %s: %w", p, s.ID, err)
		}
		t.Credentials[p] = ct
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

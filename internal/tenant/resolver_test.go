package tenant

import (
	"context"
	"errors"
	"testing"

	"marketing-dashboard/backend/internal/platform/apperr"
	"marketing-dashboard/backend/internal/routing"
	"marketing-dashboard/backend/internal/tenant/domain"
	"marketing-dashboard/backend/internal/tenant/repository"
)

type failingRepo struct{}

func (failingRepo) GetByID(context.Context, string) (*domain.Tenant, error) {
	return nil, errors.New("connection reset")
}

func (failingRepo) GetBySubdomain(context.Context, string) (*domain.Tenant, error) {
	return nil, errors.New("connection reset")
}

func acmeRepo() *repository.MemoryRepository {
	return repository.NewMemoryRepository(&domain.Tenant{
		ID: "t-acme", Subdomain: "acme", Name: "Acme Corp", Status: domain.StatusActive,
		Credentials: map[string]string{"stripe": "ciphertext"},
	})
}

func TestResolve_Success(t *testing.T) {
	r := NewResolver(acmeRepo())
	tc, err := r.Resolve(context.Background(), &routing.Metadata{TenantID: "t-acme", Subdomain: "acme", DisplayName: "Acme"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if tc.TenantID != "t-acme" || tc.Subdomain != "acme" || tc.DisplayName != "Acme" {
		t.Errorf("context = %+v", tc)
	}
	if _, ok := tc.Tenant.Credential("stripe"); !ok {
		t.Error("tenant record should carry credentials")
	}
}

func TestResolve_DisplayNameFallsBackToTenantName(t *testing.T) {
	tc, err := NewResolver(acmeRepo()).Resolve(context.Background(), &routing.Metadata{TenantID: "t-acme"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if tc.DisplayName != "Acme Corp" {
		t.Errorf("DisplayName = %q, want %q", tc.DisplayName, "Acme Corp")
	}
}

func TestResolve_MissingMetadata(t *testing.T) {
	r := NewResolver(acmeRepo())
	for _, md := range []*routing.Metadata{nil, {}} {
		_, err := r.Resolve(context.Background(), md)
		if !apperr.Is(err, apperr.Configuration) {
			t.Errorf("Resolve(%v) err = %v, want Configuration", md, err)
		}
	}
}

func TestResolve_DeletedTenant(t *testing.T) {
	repo := acmeRepo()
	repo.Delete("t-acme")
	_, err := NewResolver(repo).Resolve(context.Background(), &routing.Metadata{TenantID: "t-acme"})
	if !apperr.Is(err, apperr.NotFound) {
		t.Errorf("err = %v, want NotFound", err)
	}
}

func TestResolve_RepositoryFailure(t *testing.T) {
	_, err := NewResolver(failingRepo{}).Resolve(context.Background(), &routing.Metadata{TenantID: "t-acme"})
	if !apperr.Is(err, apperr.Internal) {
		t.Errorf("err = %v, want Internal", err)
	}
}

func TestRoutingLookup(t *testing.T) {
	lookup := RoutingLookup(acmeRepo())
	md, err := lookup.LookupSubdomain(context.Background(), "acme")
	if err != nil {
		t.Fatalf("LookupSubdomain: %v", err)
	}
	if md.TenantID != "t-acme" || md.DisplayName != "Acme Corp" {
		t.Errorf("metadata = %+v", md)
	}
	if _, err := lookup.LookupSubdomain(context.Background(), "ghost"); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("unknown subdomain err = %v, want NotFound", err)
	}
	if _, err := RoutingLookup(failingRepo{}).LookupSubdomain(context.Background(), "acme"); !apperr.Is(err, apperr.Internal) {
		t.Errorf("failing repo err = %v, want Internal", err)
	}
}

package domain

import "testing"

func TestTenant_Validate(t *testing.T) {
	cases := []struct {
		name   string
		tenant Tenant
		ok     bool
	}{
		{"valid", Tenant{ID: "t1", Subdomain: "acme", Name: "Acme"}, true},
		{"dash inside", Tenant{ID: "t1", Subdomain: "acme-eu", Name: "Acme"}, true},
		{"missing id", Tenant{Subdomain: "acme", Name: "Acme"}, false},
		{"colon in id", Tenant{ID: "a:b", Subdomain: "acme", Name: "Acme"}, false},
		{"uppercase", Tenant{ID: "t1", Subdomain: "Acme", Name: "Acme"}, false},
		{"dotted", Tenant{ID: "t1", Subdomain: "a.b", Name: "Acme"}, false},
		{"trailing dash", Tenant{ID: "t1", Subdomain: "acme-", Name: "Acme"}, false},
		{"missing name", Tenant{ID: "t1", Subdomain: "acme"}, false},
		{"bad status", Tenant{ID: "t1", Subdomain: "acme", Name: "Acme", Status: "deleted"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.tenant.Validate()
			if tc.ok && err != nil {
				t.Errorf("Validate: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("Validate should fail")
			}
		})
	}
}

func TestTenant_ValidateDefaultsStatus(t *testing.T) {
	tn := Tenant{ID: "t1", Subdomain: "acme", Name: "Acme"}
	if err := tn.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if tn.Status != StatusActive {
		t.Errorf("Status = %q, want active", tn.Status)
	}
}

func TestTenant_Credential(t *testing.T) {
	tn := Tenant{Credentials: map[string]string{"stripe": "ct", "meta_ads": ""}}
	if _, ok := tn.Credential("stripe"); !ok {
		t.Error("stripe credential should be present")
	}
	if _, ok := tn.Credential("meta_ads"); ok {
		t.Error("empty credential should count as missing")
	}
	if _, ok := tn.Credential("google_ads"); ok {
		t.Error("absent credential should be missing")
	}
}

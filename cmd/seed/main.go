// seed loads tenants from a YAML file, encrypts their provider credentials and upserts them into
// Postgres. With -token-user it also prints a development session token. Idempotent.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"marketing-dashboard/backend/internal/config"
	"marketing-dashboard/backend/internal/db"
	"marketing-dashboard/backend/internal/security"
	"marketing-dashboard/backend/internal/tenant"
	tenantrepo "marketing-dashboard/backend/internal/tenant/repository"
)

func main() {
	file := flag.String("file", "tenants.yaml", "Tenant seed file (YAML)")
	tokenUser := flag.String("token-user", "", "Print a session token for this user id")
	tokenEmail := flag.String("token-email", "", "Email claim of the printed token")
	tokenTenant := flag.String("token-tenant", "", "Tenant id claim of the printed token")
	tokenRole := flag.String("token-role", "admin", "Role claim of the printed token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	key, err := cfg.CredentialsKeyBytes()
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	cipher, err := security.NewCipher(key)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	seeds, err := tenant.LoadYAML(*file)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()
	repo := tenantrepo.NewPostgresRepository(conn)

	for _, s := range seeds {
		t, err := s.Tenant(cipher)
		if err != nil {
			log.Fatalf("seed %s: %v", s.ID, err)
		}
		if err := repo.Upsert(ctx, t); err != nil {
			log.Fatalf("seed %s: upsert: %v", s.ID, err)
		}
		log.Printf("seed: tenant %s (%s) with %d provider(s)", t.ID, t.Subdomain, len(t.Credentials))
	}

	if *tokenUser == "" {
		return
	}
	if *tokenTenant == "" {
		log.Fatal("seed: -token-tenant is required with -token-user")
	}
	signer, err := security.ParsePrivateKey(cfg.SessionPrivateKey)
	if err != nil {
		log.Fatalf("seed: SESSION_PRIVATE_KEY: %v", err)
	}
	tokens := security.NewSessionTokens(signer, signer.Public(), cfg.SessionIssuer, cfg.SessionAudience, cfg.SessionLifetime())
	token, exp, err := tokens.Issue(*tokenUser, *tokenEmail, *tokenRole, *tokenTenant)
	if err != nil {
		log.Fatalf("seed: issue token: %v", err)
	}
	fmt.Printf("session token (expires %s):\n%s\n", exp.Format(time.RFC3339), token)
}

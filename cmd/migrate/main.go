// migrate applies the embedded SQL migrations: go run ./cmd/migrate -direction up.
package main

import (
	"flag"
	"fmt"
	"os"

	"marketing-dashboard/backend/internal/config"
	"marketing-dashboard/backend/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}

	st, err := migrate.Run(cfg.DatabaseURL, *direction)
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	if !st.Changed {
		fmt.Printf("migrate: already at version %d\n", st.Version)
		return
	}
	fmt.Printf("migrate: %s to version %d (dirty=%t)\n", *direction, st.Version, st.Dirty)
}

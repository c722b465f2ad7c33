// migrate applies the auth schema (users, refresh_tokens) from embedded
// SQL; use with ./scripts/migrate.sh or go run ./cmd/migrate. Down wipes
// every issued refresh token, forcing all sessions through login again.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"tokengate/internal/config"
	"tokengate/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down (down drops the auth tables)")
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

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			// Already at target version; success.
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

// seed inserts development sample users for local testing. Run via ./scripts/seed.sh.
// Idempotent: skips inserts if the admin user (admin@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"tokengate/internal/config"
	"tokengate/internal/db"
	"tokengate/internal/security"
	userdomain "tokengate/internal/user/domain"
	userrepo "tokengate/internal/user/repository"
)

const (
	adminEmail  = "admin@example.com"
	memberEmail = "dev@example.com"
	devPassword = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	users := userrepo.NewPostgresRepository(conn)
	ctx := context.Background()

	existing, err := users.GetByEmail(ctx, adminEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (admin@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	seedUsers := []*userdomain.User{
		{
			ID:           uuid.NewString(),
			Email:        adminEmail,
			PasswordHash: passwordHash,
			FirstName:    "Admin",
			LastName:     "User",
			Role:         userdomain.RoleAdmin,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           uuid.NewString(),
			Email:        memberEmail,
			PasswordHash: passwordHash,
			FirstName:    "Dev",
			LastName:     "User",
			Role:         userdomain.RoleUser,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	for _, u := range seedUsers {
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("create %s: %v", u.Email, err)
		}
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Admin login: %s / %s\n", adminEmail, devPassword)
	fmt.Printf("Dev login: %s / %s\n", memberEmail, devPassword)
}

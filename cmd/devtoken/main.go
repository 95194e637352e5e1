// Command devtoken mints a bearer token for local development.
//
//	devtoken -user alice -name Alice -room 4B
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/mmynk/grouporder/internal/auth"
	"github.com/mmynk/grouporder/internal/config"
)

func main() {
	userID := flag.String("user", "", "user id (required)")
	name := flag.String("name", "", "display name")
	room := flag.String("room", "", "room or location tag")
	admin := flag.Bool("admin", false, "grant admin")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to GROUPORDER_JWT_TTL)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *userID == "" {
		slog.Error("-user is required")
		os.Exit(2)
	}

	lifetime := cfg.JWT.TTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, err := mint(cfg.JWT.Secret, cfg.JWT.Issuer, lifetime, auth.Identity{
		UserID:  *userID,
		Name:    *name,
		Room:    *room,
		IsAdmin: *admin,
	})
	if err != nil {
		slog.Error("Failed to mint token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func mint(secret, issuer string, ttl time.Duration, id auth.Identity) (string, error) {
	if id.Name == "" {
		id.Name = id.UserID
	}
	return auth.NewJWTManager(secret, issuer, ttl).Generate(id)
}

// Command seed creates a community member for local testing and prints a
// session token for it, so the checkout and admin routes can be exercised
// without the site's login flow.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"

	"rust-vip-platform/internal/config"
	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/infra/api"
	pg "rust-vip-platform/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	email := flag.String("email", "player@example.com", "member email")
	discordID := flag.String("discord", "", "discord user id to link")
	steamID := flag.String("steam", "", "steam id64 to link")
	admin := flag.Bool("admin", false, "grant the admin role")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	u, err := model.NewUser(id, *email)
	if err != nil {
		log.Fatalf("user: %v", err)
	}
	if *discordID != "" {
		u.DiscordID = discordID
	}
	if *steamID != "" {
		u.SteamID = steamID
	}
	if *admin {
		u.Role = model.RoleAdmin
	}

	users := pg.NewPostgresUserRepo(pool)
	if err := users.Save(ctx, nil, u); err != nil {
		log.Fatalf("save user: %v", err)
	}

	tok, err := api.NewAuthManager(cfg.Auth, 24*time.Hour).Mint(nil, u.ID, u.Role)
	if err != nil {
		log.Fatalf("mint session: %v", err)
	}
	fmt.Printf("user %s (%s, role=%s)\n", u.ID, u.Email, u.Role)
	fmt.Printf("Authorization: Bearer %s\n", tok)
}

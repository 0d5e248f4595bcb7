package main

import (
	"context"
	"log"
	"os"

	"github.com/nablus1/TurfArena-booking/internal/config"
	"github.com/nablus1/TurfArena-booking/internal/database"
	"github.com/nablus1/TurfArena-booking/internal/domain"
	"github.com/nablus1/TurfArena-booking/internal/modules/slot"
	"github.com/nablus1/TurfArena-booking/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

const (
	seedDays     = 7
	openingHour  = 6
	closingHour  = 22
	defaultPrice = 2500
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.IsProduction() && os.Getenv("SEED_ADMIN_PASSWORD") == "" {
		log.Fatal("SEED_ADMIN_PASSWORD is required in production")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running AutoMigrate...")
	if err := repository.AutoMigrate(db); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	ctx := context.Background()

	email := envOr("SEED_ADMIN_EMAIL", "admin@jujaturfarena.co.ke")
	password := envOr("SEED_ADMIN_PASSWORD", "admin123")
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal(err)
	}
	admin := &domain.User{
		Name:         "Arena Admin",
		Email:        email,
		Phone:        envOr("SEED_ADMIN_PHONE", "254700000000"),
		PasswordHash: string(hash),
		Role:         domain.RoleSuperAdmin,
	}
	if err := repository.NewUserRepository(db).EnsureAdmin(ctx, admin); err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	log.Printf("Admin ready: %s", email)

	created, err := slot.NewService(repository.NewSlotRepository(db)).GenerateSchedule(ctx, slot.GenerateRequest{
		Days:     seedDays,
		FromHour: openingHour,
		ToHour:   closingHour,
		Price:    defaultPrice,
		Capacity: 1,
	})
	if err != nil {
		log.Fatalf("seed slots: %v", err)
	}
	log.Printf("Slots created: %d (%d days, %02d:00-%02d:00 @ KES %d)", created, seedDays, openingHour, closingHour, defaultPrice)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

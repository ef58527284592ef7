package config

import (
	"fmt"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// InitDB opens the Postgres connection from DATABASE_URL, or from the
// individual PG* variables when the URL is not set.
func InitDB() (*gorm.DB, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			envOr("PGHOST", "localhost"),
			envOr("PGUSER", "postgres"),
			os.Getenv("PGPASSWORD"),
			envOr("PGDATABASE", "reconciliation"),
			envOr("PGPORT", "5432"),
		)
	}

	// TranslateError turns unique violations into gorm.ErrDuplicatedKey, which
	// the match repository maps onto the exclusivity invariant.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

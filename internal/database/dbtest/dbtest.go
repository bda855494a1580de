// Package dbtest starts a throwaway PostgreSQL container for integration
// tests and opens a migrated gorm connection to it.
package dbtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/emilythestrangee/stackit/backend/internal/database"
)

// ErrNoProvider means no container runtime is reachable.
var ErrNoProvider = errors.New("no container provider")

// Start runs a postgres container, migrates it and returns the connection
// and a teardown func. A missing container runtime is reported as an error.
func Start(ctx context.Context) (*gorm.DB, func(context.Context) error, error) {
	container, err := runPostgres(ctx)
	if err != nil {
		return nil, nil, err
	}
	teardown := func(context.Context) error {
		return testcontainers.TerminateContainer(container)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = teardown(ctx)
		return nil, nil, fmt.Errorf("connection string: %w", err)
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		_ = teardown(ctx)
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = teardown(ctx)
		return nil, nil, err
	}
	return db, teardown, nil
}

func runPostgres(ctx context.Context) (container *postgres.PostgresContainer, err error) {
	defer recoverProvider(&err)

	container, err = postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("stackit"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}
	return container, nil
}

// recoverProvider turns the panic testcontainers raises when it cannot find
// a Docker host into ErrNoProvider. It must be deferred directly.
func recoverProvider(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrNoProvider, r)
	}
}

// Truncate empties every application table and resets identities.
func Truncate(db *gorm.DB) error {
	return db.Exec(`TRUNCATE users, reputation_logs, tags, questions, question_tags,
		answers, answer_edits, votes, notifications RESTART IDENTITY CASCADE`).Error
}

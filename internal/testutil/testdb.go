package testutil

import (
	"context"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BhargavRaval15/url-shortner/internal/infra"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB holds test database resources
type TestDB struct {
	Pool      *pgxpool.Pool
	container *postgres.PostgresContainer
}

// SetupTestDB creates a new test database with migrations applied
func SetupTestDB(ctx context.Context) (*TestDB, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		if terr := container.Terminate(ctx); terr != nil {
			err = terr
		}
		return nil, err
	}

	if err := infra.RunMigrations(MigrationsPath(), connString); err != nil {
		if terr := container.Terminate(ctx); terr != nil {
			err = terr
		}
		return nil, err
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		if terr := container.Terminate(ctx); terr != nil {
			err = terr
		}
		return nil, err
	}

	return &TestDB{Pool: pool, container: container}, nil
}

// MigrationsPath locates migrations/schema relative to this file.
func MigrationsPath() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "../../migrations/schema")
}

// Container returns the underlying postgres container for direct access.
func (t *TestDB) Container() *postgres.PostgresContainer {
	return t.container
}

// Cleanup truncates all tables
func (t *TestDB) Cleanup(ctx context.Context) {
	if t == nil || t.Pool == nil {
		return
	}
	if _, err := t.Pool.Exec(ctx, "TRUNCATE TABLE click_events, links, users RESTART IDENTITY CASCADE"); err != nil {
		return
	}
}

// CreateUser inserts an owner row and returns its id. Links reference
// users, so most tests need one.
func (t *TestDB) CreateUser(ctx context.Context, email string) (uuid.UUID, error) {
	var id uuid.UUID
	err := t.Pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id`,
		email, "not-a-real-hash",
	).Scan(&id)
	return id, err
}

// Teardown closes connections and terminates container
func (t *TestDB) Teardown(ctx context.Context) {
	if t.Pool != nil {
		t.Pool.Close()
	}
	if t.container != nil {
		if err := t.container.Terminate(ctx); err != nil {
			return
		}
	}
}

package repository_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const integrationSchema = `
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";
CREATE TABLE IF NOT EXISTS recall_tasks (
  id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
  owner_email VARCHAR(320) NOT NULL,
  domain VARCHAR(255) NOT NULL,
  message_criteria VARCHAR(100) NOT NULL,
  task_state TEXT NOT NULL DEFAULT 'Started',
  is_aborted BOOLEAN NOT NULL DEFAULT TRUE,
  attempts INT NOT NULL DEFAULT 0,
  max_attempts INT NOT NULL DEFAULT 3,
  error_message TEXT,
  heartbeat_at TIMESTAMPTZ,
  lease_expires_at TIMESTAMPTZ,
  started_at TIMESTAMPTZ NOT NULL,
  ended_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS task_users (
  id BIGSERIAL PRIMARY KEY,
  task_id UUID NOT NULL,
  user_email VARCHAR(320) NOT NULL,
  user_state TEXT NOT NULL DEFAULT 'Started',
  message_state TEXT NOT NULL DEFAULT 'Unknown',
  started_at TIMESTAMPTZ,
  ended_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CONSTRAINT uq_task_users_task_email UNIQUE (task_id, user_email)
);
CREATE TABLE IF NOT EXISTS stg_task_users (
  task_id UUID NOT NULL,
  user_email VARCHAR(320) NOT NULL,
  suspended BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS error_reasons (
  id BIGSERIAL PRIMARY KEY,
  task_id UUID NOT NULL,
  user_email VARCHAR(320),
  reason VARCHAR(500) NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS task_counters (
  task_id UUID NOT NULL,
  name VARCHAR(64) NOT NULL,
  count BIGINT NOT NULL DEFAULT 0,
  PRIMARY KEY (task_id, name)
);
`

// setupIntegrationDB connects to TEST_DATABASE_URL, creates the schema
// and empties every table. Tests are skipped when the variable is unset.
func setupIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect db: %v", err)
	}
	if err := db.Exec(integrationSchema).Error; err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	for _, table := range []string{"stg_task_users", "task_counters", "error_reasons", "task_users", "recall_tasks"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("failed to cleanup %s: %v", table, err)
		}
	}
	return db
}

func setupIntegrationPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

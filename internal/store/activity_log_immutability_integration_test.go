package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

// TestActivityLogImmutabilityBlocksUpdate verifies that UPDATE operations
// on activity_log are blocked by the database trigger with a hard failure.
func TestActivityLogImmutabilityBlocksUpdate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	databaseURL := getTestDatabaseURL(t)
	db, err := Open(ctx, databaseURL)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	var triggerCount int
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.triggers
		WHERE trigger_name = 'trg_activity_log_immutable'
	`).Scan(&triggerCount)
	if err != nil {
		t.Fatalf("query triggers: %v", err)
	}
	if triggerCount == 0 {
		t.Fatal("immutability trigger not found; migrations may not be applied")
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO activity_log (actor_id, action, entity_kind, entity_id, detail)
		VALUES ('usr_test', 'task.advanced', 'task', 'tsk_test_update', 'assigned -> in_progress')
	`)
	if err != nil {
		t.Fatalf("insert test activity entry: %v", err)
	}

	_, err = db.ExecContext(ctx, `
		UPDATE activity_log
		SET detail = 'rewritten'
		WHERE entity_id = 'tsk_test_update'
	`)
	if err == nil {
		t.Fatal("expected UPDATE to be blocked, but it succeeded")
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatalf("expected PostgreSQL error, got: %v", err)
	}
	if pgErr.SQLState() != "P0001" {
		t.Fatalf("expected SQLSTATE P0001 (raise_exception), got: %s", pgErr.SQLState())
	}
	if pgErr.Message != "activity_log entries are immutable" {
		t.Fatalf("unexpected error message: %s", pgErr.Message)
	}

	// Row triggers do not fire on TRUNCATE, so cleanup still works.
	_, _ = db.ExecContext(ctx, `TRUNCATE activity_log`)
}

// TestActivityLogImmutabilityBlocksDelete verifies that DELETE operations
// on activity_log are blocked by the database trigger with a hard failure.
func TestActivityLogImmutabilityBlocksDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	databaseURL := getTestDatabaseURL(t)
	db, err := Open(ctx, databaseURL)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, `
		INSERT INTO activity_log (actor_id, action, entity_kind, entity_id, detail)
		VALUES ('usr_test', 'task.cancelled', 'task', 'tsk_test_delete', 'client pulled the project')
	`)
	if err != nil {
		t.Fatalf("insert test activity entry: %v", err)
	}

	_, err = db.ExecContext(ctx, `
		DELETE FROM activity_log
		WHERE entity_id = 'tsk_test_delete'
	`)
	if err == nil {
		t.Fatal("expected DELETE to be blocked, but it succeeded")
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatalf("expected PostgreSQL error, got: %v", err)
	}
	if pgErr.SQLState() != "P0001" {
		t.Fatalf("expected SQLSTATE P0001 (raise_exception), got: %s", pgErr.SQLState())
	}
	if pgErr.Message != "activity_log entries are immutable" {
		t.Fatalf("unexpected error message: %s", pgErr.Message)
	}

	_, _ = db.ExecContext(ctx, `TRUNCATE activity_log`)
}

// TestActivityLogInsertStillWorks verifies that INSERT operations
// on activity_log continue to work normally.
func TestActivityLogInsertStillWorks(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	databaseURL := getTestDatabaseURL(t)
	db, err := Open(ctx, databaseURL)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, `
		INSERT INTO activity_log (actor_id, action, entity_kind, entity_id, detail)
		VALUES ('usr_test', 'task.created', 'task', 'tsk_test_insert', '')
	`)
	if err != nil {
		t.Fatalf("insert activity entry should succeed: %v", err)
	}

	var count int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_log WHERE entity_id = 'tsk_test_insert'`).Scan(&count)
	if err != nil {
		t.Fatalf("query activity log: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 activity entry, got %d", count)
	}

	_, _ = db.ExecContext(ctx, `TRUNCATE activity_log`)
}

// getTestDatabaseURL returns the database URL for integration tests,
// preferring STUDIOFLOW_TEST_DATABASE_URL over individual POSTGRES_* vars.
func getTestDatabaseURL(t *testing.T) string {
	t.Helper()

	if url := getenv("STUDIOFLOW_TEST_DATABASE_URL", ""); url != "" {
		return url
	}

	host := getenv("POSTGRES_HOST", "localhost")
	port := getenv("POSTGRES_PORT", "5432")
	user := getenv("POSTGRES_USER", "studioflow")
	pass := getenv("POSTGRES_PASSWORD", "studioflow")
	dbname := getenv("POSTGRES_DB", "studioflow_test")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + dbname + "?sslmode=disable"
}

func getenv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Package dbtest runs repository tests against a real PostgreSQL database.
//
// Tests are skipped unless INVITATIONS_TEST_DATABASE_URL points at a disposable database.
// Every pool gets its own freshly migrated schema, dropped when the test ends.
package dbtest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wiktoriasw/Invitations/pkg/database"
)

// EnvDSN names the environment variable holding the test database URL.
const EnvDSN = "INVITATIONS_TEST_DATABASE_URL"

var triggerSeq atomic.Int64

// NewPool returns a pool whose search_path is a new migrated schema.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skipf("%s not set, skipping PostgreSQL test", EnvDSN)
	}
	ctx := context.Background()
	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	admin, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		_ = admin.Close(context.Background())
	})

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(ctx, pool, zap.NewNop()))
	return pool
}

// FailWhen installs a row trigger on table that raises an error for rows matching cond.
// timing is e.g. "BEFORE DELETE"; cond uses NEW/OLD, e.g. "OLD.id = 7".
func FailWhen(t *testing.T, pool *pgxpool.Pool, table, timing, cond string) {
	t.Helper()
	name := fmt.Sprintf("fail_%s_%d", table, triggerSeq.Add(1))
	sql := fmt.Sprintf(`
CREATE OR REPLACE FUNCTION raise_injected() RETURNS trigger LANGUAGE plpgsql AS $$
BEGIN
    RAISE EXCEPTION 'injected failure on %%', TG_TABLE_NAME;
END
$$;
CREATE TRIGGER %s %s ON %s FOR EACH ROW WHEN (%s) EXECUTE FUNCTION raise_injected();`,
		name, timing, table, cond)
	_, err := pool.Exec(context.Background(), sql)
	require.NoError(t, err)
}

// InsertUser stores a user with a dummy hash and returns its id.
func InsertUser(t *testing.T, pool *pgxpool.Pool, email string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (email, password_hash) VALUES ($1, 'x') RETURNING id`, email).Scan(&id)
	require.NoError(t, err)
	return id
}

// InsertEvent stores an event organized by organizerID and returns its id.
func InsertEvent(t *testing.T, pool *pgxpool.Pool, organizerID int64, photo *string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(), `INSERT INTO events
		(name, start_time, location, menu, decision_deadline, organizer_id, background_photo)
		VALUES ('Party', NOW() + INTERVAL '30 days', 'Gdansk', 'A;B', NOW() + INTERVAL '20 days', $1, $2)
		RETURNING id`, organizerID, photo).Scan(&id)
	require.NoError(t, err)
	return id
}

// InsertGuest stores a guest of eventID, optionally pointing at a companion, and returns its id.
func InsertGuest(t *testing.T, pool *pgxpool.Pool, eventID int64, companionID *int64) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO guests (event_id, companion_id) VALUES ($1, $2) RETURNING id`, eventID, companionID).Scan(&id)
	require.NoError(t, err)
	return id
}

// Count returns the number of rows of table matching where (with args).
func Count(t *testing.T, pool *pgxpool.Pool, table, where string, args ...interface{}) int {
	t.Helper()
	var n int
	err := pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table+" WHERE "+where, args...).Scan(&n)
	require.NoError(t, err)
	return n
}

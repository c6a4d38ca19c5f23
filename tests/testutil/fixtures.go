package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/iho/fintrack/internal/domain"
	"github.com/iho/fintrack/internal/infrastructure/postgres"
)

// TestDB provides isolated test database connections.
type TestDB struct {
	Pool *pgxpool.Pool
	t    *testing.T
}

// NewTestDB connects to TEST_DATABASE_URL and applies migrations. The test
// is skipped when the variable is not set.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	// Tests run from the package directory; walk up to find migrations.
	migrationsPath := "internal/infrastructure/postgres/migrations"
	for _, candidate := range []string{
		migrationsPath,
		"../../internal/infrastructure/postgres/migrations",
		"../../../internal/infrastructure/postgres/migrations",
	} {
		if _, err := os.Stat(candidate); err == nil {
			migrationsPath = candidate
			break
		}
	}

	if err := postgres.RunMigrations(dbURL, migrationsPath, zerolog.Nop()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{DatabaseURL: dbURL, MaxConns: 20})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	return &TestDB{
		Pool: pool,
		t:    t,
	}
}

// Cleanup closes the database connection.
func (db *TestDB) Cleanup() {
	db.Pool.Close()
}

// TruncateAll removes all data from tables.
func (db *TestDB) TruncateAll(ctx context.Context) {
	db.t.Helper()

	_, err := db.Pool.Exec(ctx, `TRUNCATE TABLE settlement_runs, transactions`)
	if err != nil {
		db.t.Fatalf("failed to truncate tables: %v", err)
	}
}

// TransactionFixture describes a row to seed. Principal and Rate are
// inserted as given, so an empty string becomes NULL.
type TransactionFixture struct {
	Type      domain.TransactionType
	Principal string
	Rate      string
	Status    domain.TransactionStatus
	Remark    string
}

// InsertTransaction seeds one transaction row and returns its ID.
func (db *TestDB) InsertTransaction(ctx context.Context, f TransactionFixture) string {
	db.t.Helper()

	if f.Status == "" {
		f.Status = domain.TransactionStatusApproved
	}

	id := GenerateID()
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO transactions (id, type, client, principal, rate, status, remark, source, created_by, creator_id, created_at)
		VALUES ($1, $2, 'fixture', NULLIF($3, '')::numeric, NULLIF($4, '')::numeric, $5, $6, 'user', 'fixture', 'fixture', now())
	`, id, string(f.Type), f.Principal, f.Rate, string(f.Status), f.Remark)
	if err != nil {
		db.t.Fatalf("failed to insert transaction: %v", err)
	}

	return id
}

// CountSettlementRows returns the number of interest rows carrying key.
func (db *TestDB) CountSettlementRows(ctx context.Context, key string) int {
	db.t.Helper()

	var n int
	err := db.Pool.QueryRow(ctx, `
		SELECT count(*) FROM transactions
		WHERE type IN ('interest_income', 'interest_expense') AND settle_key = $1
	`, key).Scan(&n)
	if err != nil {
		db.t.Fatalf("failed to count settlement rows: %v", err)
	}

	return n
}

// GenerateID generates a new ULID.
func GenerateID() string {
	return ulid.Make().String()
}

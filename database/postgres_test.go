package database

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSQLStatements(t *testing.T) {
	content := `-- leading comment
CREATE TABLE a (
    id INT
);

-- between statements
CREATE INDEX idx_a ON a (id);
;
SELECT 1`

	statements := parseSQLStatements(content)

	assert.Equal(t, []string{
		"CREATE TABLE a ( id INT )",
		"CREATE INDEX idx_a ON a (id)",
		"SELECT 1",
	}, statements)
}

func TestParseSQLStatementsEmpty(t *testing.T) {
	assert.Empty(t, parseSQLStatements(""))
	assert.Empty(t, parseSQLStatements("-- only a comment\n\n"))
}

func TestEmbeddedSchemaCreatesIngestionLog(t *testing.T) {
	statements := parseSQLStatements(Schema())

	require.NotEmpty(t, statements)
	assert.Contains(t, statements[0], "CREATE TABLE IF NOT EXISTS ingestion_log")
	assert.Contains(t, statements[0], "ticker TEXT NOT NULL")
	assert.Contains(t, statements[1], "ALTER COLUMN ticker TYPE TEXT")
	assert.Len(t, statements, 5)
}

func TestMigrateDBWithoutConnection(t *testing.T) {
	assert.Error(t, MigrateDB(nil, Schema()))
}

func TestHealthCheckWithoutConnection(t *testing.T) {
	previous := DB
	DB = nil
	defer func() { DB = previous }()

	assert.Error(t, HealthCheck())
}

// openTestDB connects to TEST_DATABASE_URL and applies the schema
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("Skipping database tests - TEST_DATABASE_URL not set")
	}

	config := shared.NewDefaultUnifiedConfiguration().Database
	config.PingTimeout = 5 * time.Second
	db, err := Open(dbURL, &config)
	if err != nil {
		t.Skipf("Skipping database tests - database not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	require.NoError(t, MigrateDB(db, Schema()))
	require.NoError(t, ValidateSchema(context.Background(), db))
	return db
}

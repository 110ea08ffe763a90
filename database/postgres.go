package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/shared"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

//go:embed schema.sql
var embeddedSchema string

var DB *sql.DB

// Schema returns the schema compiled into the binary
func Schema() string {
	return embeddedSchema
}

// ConnectWithConfig establishes database connection with custom configuration
func ConnectWithConfig(dbURL string, config *shared.DatabaseConfig) error {
	db, err := Open(dbURL, config)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open returns a pinged connection pool without touching the package handle
func Open(dbURL string, config *shared.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), config.PingTimeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"max_open_conns":     config.MaxOpenConns,
		"max_idle_conns":     config.MaxIdleConns,
		"conn_max_lifetime":  config.ConnMaxLifetime,
		"conn_max_idle_time": config.ConnMaxIdleTime,
	}).Info("Connected to database")

	return db, nil
}

func Close() {
	if DB != nil {
		DB.Close()
		DB = nil
		logrus.Info("Database connection closed")
	}
}

// HealthCheck pings the database and logs pool usage
func HealthCheck() error {
	if DB == nil {
		return fmt.Errorf("database connection not established")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	stats := DB.Stats()
	logrus.WithFields(logrus.Fields{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration,
	}).Debug("Database connection pool health check")

	return nil
}

// Migrate applies the schema file at schemaPath. An empty path applies the
// schema compiled into the binary.
func Migrate(schemaPath string) error {
	content := embeddedSchema
	if schemaPath != "" {
		raw, err := os.ReadFile(schemaPath)
		if err != nil {
			return fmt.Errorf("failed to read schema file: %w", err)
		}
		content = string(raw)
	}
	return MigrateDB(DB, content)
}

// MigrateDB runs every statement of content against db. Failing statements
// are logged and skipped so reruns on an existing schema succeed.
func MigrateDB(db *sql.DB, content string) error {
	if db == nil {
		return fmt.Errorf("database connection not established")
	}

	failed := 0
	statements := parseSQLStatements(content)
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			failed++
			logrus.Warnf("Migration statement failed (continuing): %v", err)
		}
	}

	if len(statements) > 0 && failed == len(statements) {
		return fmt.Errorf("all %d migration statements failed", failed)
	}

	logrus.WithField("statements", len(statements)).Info("Database migration completed")
	return nil
}

// parseSQLStatements splits SQL content into statements, dropping comment lines
func parseSQLStatements(content string) []string {
	var statements []string
	var currentStatement strings.Builder

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}

		if currentStatement.Len() > 0 {
			currentStatement.WriteString(" ")
		}
		currentStatement.WriteString(line)

		if strings.HasSuffix(line, ";") {
			stmt := strings.TrimSpace(strings.TrimSuffix(currentStatement.String(), ";"))
			if stmt != "" {
				statements = append(statements, stmt)
			}
			currentStatement.Reset()
		}
	}

	if stmt := strings.TrimSpace(currentStatement.String()); stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}

// tableExists checks if a table exists in the public schema
func tableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`
	var exists bool
	err := db.QueryRowContext(ctx, query, tableName).Scan(&exists)
	return exists, err
}

// ValidateSchema verifies the audit table is in place
func ValidateSchema(ctx context.Context, db *sql.DB) error {
	exists, err := tableExists(ctx, db, ingestionLogTable)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if !exists {
		return fmt.Errorf("table %s is missing, run the migration first", ingestionLogTable)
	}
	return nil
}

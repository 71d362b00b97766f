package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver (registers "sqlite")

	"github.com/rongwang/checkin-server/internal/db"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	switch cfg.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	if cfg.Database.Driver == DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	conn, err := sqlx.Connect(cfg.Database.Driver, cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	ConfigurePool(conn)

	if err := PrepareSchema(context.Background(), conn, cfg.Simulation); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

// ConfigurePool sets connection pool limits for the driver in use.
func ConfigurePool(conn *sqlx.DB) {
	if conn.DriverName() == DriverSQLite {
		// SQLite allows a single writer; one connection serializes transactions.
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
		return
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
}

// PrepareSchema applies migrations and writes the initial simulation
// setting. Existing settings are left untouched.
func PrepareSchema(ctx context.Context, conn *sqlx.DB, sim SimulationConfig) error {
	if err := db.Migrate(ctx, conn); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	defaults := map[string]string{
		"simulation_enabled":     strconv.FormatBool(sim.Enabled),
		"simulation_date_offset": strconv.Itoa(sim.OffsetDays),
	}
	for key, value := range defaults {
		_, err := conn.ExecContext(ctx, conn.Rebind(
			`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT (key) DO NOTHING`),
			key, value)
		if err != nil {
			return fmt.Errorf("failed to seed setting %s: %w", key, err)
		}
	}

	return nil
}

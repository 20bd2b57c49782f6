// pkg/connector/sqlite.go
package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/David-Botos/country-ingress/pkg/config"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by default
	sqlx.BindDriver(config.DriverSQLite, sqlx.QUESTION)
}

// SQLiteConnector implements the DatabaseConnector interface for a local SQLite file
type SQLiteConnector struct {
	db     *sqlx.DB
	logger *zap.Logger
	cfg    *config.DatabaseConfig
}

// NewSQLiteConnector opens (creating if needed) the SQLite database at cfg.Path
func NewSQLiteConnector(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*SQLiteConnector, error) {
	logger = logger.Named("sqlite-connector")
	logger.Info("Opening SQLite database", zap.String("path", cfg.Path))

	db, err := sqlx.Open(config.DriverSQLite, cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite connection: %w", err)
	}

	// A single writer avoids SQLITE_BUSY between pooled connections
	ApplyConnectionSettings(db.DB, 1, 1, cfg.ConnMaxLifetime)

	if err := PingWithTimeout(ctx, db.DB, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	LogConnectionStats(logger, cfg.Path, db.DB)
	return &SQLiteConnector{db: db, logger: logger, cfg: cfg}, nil
}

// DB returns the underlying database connection
func (c *SQLiteConnector) DB() *sqlx.DB {
	return c.db
}

// Dialect reports SQLite
func (c *SQLiteConnector) Dialect() Dialect {
	return DialectSQLite
}

// Validate checks the engine is new enough for UPSERT ... RETURNING
func (c *SQLiteConnector) Validate(ctx context.Context) error {
	var version string
	if err := c.db.GetContext(ctx, &version, "SELECT sqlite_version()"); err != nil {
		return fmt.Errorf("failed to query SQLite version: %w", err)
	}

	var major, minor int
	if _, err := fmt.Sscanf(version, "%d.%d", &major, &minor); err != nil {
		return fmt.Errorf("unrecognized SQLite version %q: %w", version, err)
	}
	if major < 3 || (major == 3 && minor < 35) {
		return fmt.Errorf("SQLite %s does not support RETURNING (need 3.35+)", version)
	}

	c.logger.Info("SQLite connection validated",
		zap.String("version", version),
		zap.String("path", c.cfg.Path))
	return nil
}

// Close closes the database connection
func (c *SQLiteConnector) Close() error {
	c.logger.Info("Closing SQLite connection")
	LogConnectionStats(c.logger, c.cfg.Path, c.db.DB)
	return c.db.Close()
}

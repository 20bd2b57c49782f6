// Package schematest provides throwaway SQLite databases with the country tables.
package schematest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/country-ingress/pkg/config"
	"github.com/David-Botos/country-ingress/pkg/connector"
	"github.com/David-Botos/country-ingress/pkg/schema"
)

// Config returns a SQLite configuration pointing into a per-test directory
func Config(t testing.TB) *config.DatabaseConfig {
	t.Helper()
	return &config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "countries.db"),
	}
}

// NewSQLite opens a fresh SQLite database with the schema applied.
// The connector is closed when the test finishes.
func NewSQLite(t testing.TB) connector.DatabaseConnector {
	t.Helper()
	return NewSQLiteAt(t, Config(t))
}

// NewSQLiteAt is NewSQLite for a caller-chosen database file
func NewSQLiteAt(t testing.TB, cfg *config.DatabaseConfig) connector.DatabaseConnector {
	t.Helper()
	ctx := context.Background()

	conn, err := connector.NewSQLiteConnector(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, schema.Ensure(ctx, conn.DB(), conn.Dialect(), nil))
	return conn
}

package schema

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/David-Botos/country-ingress/pkg/config"
	"github.com/David-Botos/country-ingress/pkg/connector"
	"github.com/David-Botos/country-ingress/pkg/model"
)

func openSQLite(t *testing.T) connector.DatabaseConnector {
	t.Helper()
	cfg := &config.DatabaseConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "schema.db")}
	conn, err := connector.NewSQLiteConnector(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestDDL(t *testing.T) {
	for _, dialect := range []connector.Dialect{connector.DialectPostgres, connector.DialectSQLite} {
		t.Run(string(dialect), func(t *testing.T) {
			statements, err := DDL(dialect)
			require.NoError(t, err)
			require.Len(t, statements, len(model.Tables))
			for i, table := range model.Tables {
				assert.Contains(t, statements[i], "CREATE TABLE IF NOT EXISTS "+table.Table+" (")
			}
		})
	}

	_, err := DDL("oracle")
	assert.Error(t, err)
}

func TestEnsure_Idempotent(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)
	core, logs := observer.New(zapcore.InfoLevel)

	require.ErrorIs(t, Check(ctx, conn.DB()), ErrMissingTable)

	require.NoError(t, Ensure(ctx, conn.DB(), conn.Dialect(), zap.New(core)))
	require.NoError(t, Ensure(ctx, conn.DB(), conn.Dialect(), zap.New(core)))
	assert.Equal(t, 2, logs.FilterMessage("Database tables ensured").Len())

	require.NoError(t, Check(ctx, conn.DB()))
}

func TestCheck_MissingColumn(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)
	require.NoError(t, Ensure(ctx, conn.DB(), conn.Dialect(), nil))

	_, err := conn.DB().Exec("ALTER TABLE country DROP COLUMN area")
	require.NoError(t, err)

	err = Check(ctx, conn.DB())
	require.ErrorIs(t, err, ErrMissingTable)
	assert.Contains(t, err.Error(), "country")
}

func TestEnsure_ForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)
	require.NoError(t, Ensure(ctx, conn.DB(), conn.Dialect(), nil))

	_, err := conn.DB().Exec("INSERT INTO country_currency (country_id, currency_id) VALUES (42, 42)")
	assert.Error(t, err)
}

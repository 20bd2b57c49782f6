// Package schema creates and checks the normalized country tables.
package schema

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/country-ingress/pkg/connector"
	"github.com/David-Botos/country-ingress/pkg/model"
)

var (
	//go:embed postgres.sql
	postgresDDL string

	//go:embed sqlite.sql
	sqliteDDL string
)

// ErrMissingTable is wrapped by Check when a table or column is absent
var ErrMissingTable = errors.New("missing table or column")

// DDL returns the CREATE TABLE statements for a dialect, one per element
func DDL(dialect connector.Dialect) ([]string, error) {
	var script string
	switch dialect {
	case connector.DialectPostgres:
		script = postgresDDL
	case connector.DialectSQLite:
		script = sqliteDDL
	default:
		return nil, fmt.Errorf("no schema for dialect %q", dialect)
	}

	var statements []string
	for _, stmt := range strings.Split(script, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements, nil
}

// Ensure creates any missing tables inside one transaction. It is idempotent.
func Ensure(ctx context.Context, db *sqlx.DB, dialect connector.Dialect, logger *zap.Logger) error {
	statements, err := DDL(dialect)
	if err != nil {
		return err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}

	if logger != nil {
		logger.Info("Database tables ensured",
			zap.String("dialect", string(dialect)),
			zap.Int("statements", len(statements)))
	}
	return nil
}

// Check verifies every table of the model exists with the expected columns
func Check(ctx context.Context, db *sqlx.DB) error {
	for _, table := range model.Tables {
		probe := fmt.Sprintf("SELECT %s FROM %s WHERE 1 = 0",
			strings.Join(table.ColumnNames(), ", "), table.Table)

		rows, err := db.QueryContext(ctx, probe)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMissingTable, table.Table, err)
		}
		rows.Close()
	}
	return nil
}

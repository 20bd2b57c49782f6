// pkg/connector/factory.go
package connector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/David-Botos/country-ingress/pkg/config"
)

// ConnectorFactory creates database connectors
type ConnectorFactory struct {
	cfg    *config.DatabaseConfig
	logger *zap.Logger
}

// NewConnectorFactory creates a new connector factory
func NewConnectorFactory(cfg *config.DatabaseConfig, logger *zap.Logger) *ConnectorFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// Create opens the connector matching the configured driver and validates it
func (f *ConnectorFactory) Create(ctx context.Context) (DatabaseConnector, error) {
	f.logger.Info("Creating database connector", zap.String("driver", f.cfg.Driver))

	var (
		conn DatabaseConnector
		err  error
	)
	switch f.cfg.Driver {
	case config.DriverPgx, config.DriverPq:
		conn, err = NewPostgresConnector(ctx, f.cfg, f.logger)
	case config.DriverSQLite:
		conn, err = NewSQLiteConnector(ctx, f.cfg, f.logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", f.cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s connector: %w", f.cfg.Driver, err)
	}

	if err := conn.Validate(ctx); err != nil {
		conn.Close() // Clean up the connection if validation fails
		return nil, fmt.Errorf("failed to validate %s connection: %w", f.cfg.Driver, err)
	}

	return conn, nil
}

// Package pipeline runs the country ETL once: fetch, transform, connect, load.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/country-ingress/pkg/config"
	"github.com/David-Botos/country-ingress/pkg/connector"
	"github.com/David-Botos/country-ingress/pkg/extract"
	"github.com/David-Botos/country-ingress/pkg/load"
	"github.com/David-Botos/country-ingress/pkg/model"
	"github.com/David-Botos/country-ingress/pkg/schema"
	"github.com/David-Botos/country-ingress/pkg/transform"
)

// Fetcher retrieves the raw country records
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]model.RawCountry, error)
}

// ConnectorFactory opens the target database
type ConnectorFactory interface {
	Create(ctx context.Context) (connector.DatabaseConnector, error)
}

// Pipeline orchestrates one ETL run
type Pipeline struct {
	cfg         *config.Config
	fetcher     Fetcher
	factory     ConnectorFactory
	transformer *transform.Transformer
	logger      *zap.Logger
	initSchema  bool
}

// New creates a pipeline wired to the HTTP fetcher and the configured database
func New(cfg *config.Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:         cfg,
		fetcher:     extract.NewFetcher(cfg.HTTPTimeout, logger),
		factory:     connector.NewConnectorFactory(cfg.Database, logger),
		transformer: transform.NewTransformer(logger),
		logger:      logger.Named("pipeline"),
	}
}

// WithFetcher replaces the source
func (p *Pipeline) WithFetcher(f Fetcher) *Pipeline {
	p.fetcher = f
	return p
}

// WithConnectorFactory replaces the target database
func (p *Pipeline) WithConnectorFactory(f ConnectorFactory) *Pipeline {
	p.factory = f
	return p
}

// WithInitSchema makes Run create missing tables before loading
func (p *Pipeline) WithInitSchema(enabled bool) *Pipeline {
	p.initSchema = enabled
	return p
}

// Run executes every stage in order and stops at the first failure, which is
// returned as a *StageError. The database connection is always closed.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	result := NewRunResult()
	logger := p.logger.With(zap.String("run_id", result.RunID))

	err := p.run(ctx, logger, result)
	result.Complete(err)
	result.LogSummary(logger)

	return result, err
}

func (p *Pipeline) run(ctx context.Context, logger *zap.Logger, result *RunResult) error {
	logger.Info("Starting ETL process", zap.String("url", p.cfg.APIURL))

	// Fetch
	started := time.Now()
	raw, err := p.fetcher.Fetch(ctx, p.cfg.APIURL)
	if err == nil && len(raw) == 0 {
		err = ErrNoData
	}
	result.recordStage(ErrorCategoryFetch, started)
	if err != nil {
		logger.Error("Could not fetch raw country data. ETL process aborted.", zap.Error(err))
		return stageError(ErrorCategoryFetch, err)
	}
	result.RawRecords = len(raw)

	// Transform
	started = time.Now()
	batch := p.transformer.Transform(raw)
	result.recordStage(ErrorCategoryTransform, started)
	result.Countries = len(batch.Countries)
	result.Currencies = len(batch.Currencies)
	result.Languages = len(batch.Languages)
	result.CountryCurrency = len(batch.CountryCurrencies)
	result.CountryLanguage = len(batch.CountryLanguages)
	result.SkippedCountries = countSkipped(raw)

	// Connect
	started = time.Now()
	conn, err := p.factory.Create(ctx)
	result.recordStage(ErrorCategoryConnect, started)
	if err != nil {
		logger.Error("Could not connect to the database. Data loading aborted.", zap.Error(err))
		return stageError(ErrorCategoryConnect, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Warn("Failed to close database connection", zap.Error(err))
			return
		}
		logger.Info("Database connection closed")
	}()

	// Schema
	started = time.Now()
	if p.initSchema {
		if err := schema.Ensure(ctx, conn.DB(), conn.Dialect(), logger); err != nil {
			return stageError(ErrorCategorySchema, err)
		}
	}
	if err := schema.Check(ctx, conn.DB()); err != nil {
		logger.Error("Target tables are missing; run with -init-schema to create them", zap.Error(err))
		return stageError(ErrorCategorySchema, err)
	}
	result.recordStage(ErrorCategorySchema, started)

	// Load
	started = time.Now()
	loader := load.NewLoader(conn.DB(), logger).WithTimeout(p.statementTimeout())
	result.Load, err = loader.Load(ctx, batch)
	result.recordStage(ErrorCategoryLoad, started)
	if err != nil {
		return stageError(ErrorCategoryLoad, err)
	}

	// Verify
	if !p.cfg.VerifyAfterLoad {
		return nil
	}
	started = time.Now()
	verifier := load.NewVerifier(conn.DB(), logger)
	if timeout := p.statementTimeout(); timeout > 0 {
		verifier.WithTimeout(timeout)
	}
	result.Verification, err = verifier.Verify(ctx, batch)
	result.recordStage(ErrorCategoryVerify, started)
	if err != nil {
		return stageError(ErrorCategoryVerify, err)
	}
	if !result.Verification.OK() {
		return stageError(ErrorCategoryVerify, ErrVerificationFailed)
	}

	return nil
}

func (p *Pipeline) statementTimeout() time.Duration {
	if p.cfg.Database == nil {
		return 0
	}
	return p.cfg.Database.StatementTimeout
}

// countSkipped counts raw records the transformer drops for a missing cca2
func countSkipped(raw []model.RawCountry) int {
	skipped := 0
	for i := range raw {
		if raw[i].Code() == "" {
			skipped++
		}
	}
	return skipped
}

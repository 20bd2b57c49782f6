package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/David-Botos/country-ingress/pkg/config"
	"github.com/David-Botos/country-ingress/pkg/extract"
	"github.com/David-Botos/country-ingress/pkg/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("country-ingress", flag.ContinueOnError)
	fs.SetOutput(stderr)
	initSchema := fs.Bool("init-schema", false, "create missing tables before loading")
	sample := fs.Bool("sample", false, "fetch once, print the record count and the first record, and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "create logger: %v\n", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	if *sample {
		if err := printSample(ctx, cfg, logger, stdout); err != nil {
			logger.Error("Failed to fetch sample data", zap.Error(err))
			return 1
		}
		return 0
	}

	logger.Info("Target database", zap.String("dsn", cfg.Database.Redacted()))

	result, err := pipeline.New(cfg, logger).WithInitSchema(*initSchema).Run(ctx)
	if err != nil {
		var se *pipeline.StageError
		if errors.As(err, &se) && se.Retryable() {
			logger.Warn("Failure looks transient; rerunning the job may succeed",
				zap.String("stage", se.Stage.String()))
		}
		return 1
	}

	logger.Info("ETL process finished", zap.String("run_id", result.RunID))
	return 0
}

// printSample writes the record count and the first raw record as indented JSON
func printSample(ctx context.Context, cfg *config.Config, logger *zap.Logger, out io.Writer) error {
	records, err := extract.NewFetcher(cfg.HTTPTimeout, logger).FetchRaw(ctx, cfg.APIURL)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "length of data: %d\n", len(records))
	if len(records) == 0 {
		fmt.Fprintln(out, "fetched data is empty")
		return nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, records[0], "", "    "); err != nil {
		return fmt.Errorf("format first record: %w", err)
	}
	fmt.Fprintln(out, "--- structure of first country object ---")
	fmt.Fprintln(out, pretty.String())
	fmt.Fprintln(out, "--- end of structure of first country object ---")
	return nil
}

package pipeline

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/David-Botos/country-ingress/pkg/load"
)

// StageTiming records how long one stage took
type StageTiming struct {
	Stage    ErrorCategory
	Duration time.Duration
}

// RunResult represents the outcome of one pipeline run
type RunResult struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Success   bool

	RawRecords int // records decoded from the source

	// Transform output sizes
	Countries        int
	Currencies       int
	Languages        int
	CountryCurrency  int
	CountryLanguage  int
	SkippedCountries int

	Load         *load.LoadResult
	Verification *load.VerificationReport

	Stages []StageTiming
	Err    error
}

// NewRunResult starts a result with a fresh run id
func NewRunResult() *RunResult {
	return &RunResult{
		RunID:     uuid.New().String(),
		StartTime: time.Now(),
		Stages:    make([]StageTiming, 0, 6),
	}
}

// recordStage appends the timing of a finished stage
func (r *RunResult) recordStage(stage ErrorCategory, started time.Time) {
	r.Stages = append(r.Stages, StageTiming{Stage: stage, Duration: time.Since(started)})
}

// Complete marks the run as finished and calculates duration
func (r *RunResult) Complete(err error) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Err = err
	r.Success = err == nil
}

// StageDuration returns the recorded duration of a stage, zero if it never ran
func (r *RunResult) StageDuration(stage ErrorCategory) time.Duration {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s.Duration
		}
	}
	return 0
}

// LogSummary prints a summary of the run
func (r *RunResult) LogSummary(logger *zap.Logger) {
	fields := []zap.Field{
		zap.Bool("success", r.Success),
		zap.Duration("duration", r.Duration),
		zap.Int("raw_records", r.RawRecords),
		zap.Int("countries", r.Countries),
		zap.Int("currencies", r.Currencies),
		zap.Int("languages", r.Languages),
		zap.Int("skipped_countries", r.SkippedCountries),
	}
	for _, s := range r.Stages {
		fields = append(fields, zap.Duration(s.Stage.String()+"_duration", s.Duration))
	}
	if r.Load != nil {
		fields = append(fields,
			zap.Int("new_country_currency", r.Load.CountryCurrencies),
			zap.Int("new_country_language", r.Load.CountryLanguages),
			zap.Int("dropped_links", r.Load.DroppedLinks))
	}

	if r.Success {
		logger.Info("ETL run summary", fields...)
		return
	}
	fields = append(fields,
		zap.String("failed_stage", StageOf(r.Err).String()),
		zap.Error(r.Err))
	logger.Error("ETL run summary", fields...)
}

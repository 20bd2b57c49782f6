package load

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/country-ingress/pkg/model"
)

const (
	selectCountryCodesSQL  = `SELECT cca2 FROM country WHERE cca2 IN (?)`
	selectCurrencyCodesSQL = `SELECT code FROM currency WHERE code IN (?)`
	selectLanguageCodesSQL = `SELECT code FROM language WHERE code IN (?)`

	selectCountryCurrencyPairsSQL = `
		SELECT c.cca2 AS country_cca2, cur.code AS other_code
		FROM country_currency cc
		JOIN country c ON cc.country_id = c.id
		JOIN currency cur ON cc.currency_id = cur.id
		WHERE c.cca2 IN (?)
		ORDER BY c.cca2, cur.code`

	selectCountryLanguagePairsSQL = `
		SELECT c.cca2 AS country_cca2, l.code AS other_code
		FROM country_language cl
		JOIN country c ON cl.country_id = c.id
		JOIN language l ON cl.language_id = l.id
		WHERE c.cca2 IN (?)
		ORDER BY c.cca2, l.code`
)

// VerificationReport compares a batch against what the store holds after a load
type VerificationReport struct {
	VerificationTime time.Time

	CountriesExpected  int
	CurrenciesExpected int
	LanguagesExpected  int
	MissingCountries   []string
	MissingCurrencies  []string
	MissingLanguages   []string

	CountryCurrencyExpected int
	CountryLanguageExpected int
	MissingCountryCurrency  []model.CountryCurrency
	MissingCountryLanguage  []model.CountryLanguage

	Duration time.Duration
}

// OK reports whether every row and link of the batch is present
func (r *VerificationReport) OK() bool {
	return len(r.MissingCountries) == 0 &&
		len(r.MissingCurrencies) == 0 &&
		len(r.MissingLanguages) == 0 &&
		len(r.MissingCountryCurrency) == 0 &&
		len(r.MissingCountryLanguage) == 0
}

// Verifier checks a committed batch is visible in the store. It only reads.
type Verifier struct {
	db      *sqlx.DB
	logger  *zap.Logger
	timeout time.Duration
}

// NewVerifier creates a new verifier
func NewVerifier(db *sqlx.DB, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		db:      db,
		logger:  logger.Named("verifier"),
		timeout: time.Minute,
	}
}

// WithTimeout sets a custom timeout for verification queries
func (v *Verifier) WithTimeout(timeout time.Duration) *Verifier {
	v.timeout = timeout
	return v
}

// Verify looks up every natural key and junction pair of the batch
func (v *Verifier) Verify(ctx context.Context, batch *model.NormalizedBatch) (*VerificationReport, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	start := time.Now()
	report := &VerificationReport{
		VerificationTime:   start,
		CountriesExpected:  len(distinct(batch.CountryCodes())),
		CurrenciesExpected: len(batch.Currencies),
		LanguagesExpected:  len(batch.Languages),
	}

	var err error
	if report.MissingCountries, err = v.missingCodes(ctx, selectCountryCodesSQL, batch.CountryCodes()); err != nil {
		return nil, fmt.Errorf("verify countries: %w", err)
	}
	if report.MissingCurrencies, err = v.missingCodes(ctx, selectCurrencyCodesSQL, batch.CurrencyCodes()); err != nil {
		return nil, fmt.Errorf("verify currencies: %w", err)
	}
	if report.MissingLanguages, err = v.missingCodes(ctx, selectLanguageCodesSQL, batch.LanguageCodes()); err != nil {
		return nil, fmt.Errorf("verify languages: %w", err)
	}

	cca2s := batch.CountryCodes()

	wantCurrency := make([]link, 0, len(batch.CountryCurrencies))
	for _, cc := range batch.CountryCurrencies {
		wantCurrency = append(wantCurrency, link{cc.CountryCCA2, cc.CurrencyCode})
	}
	missing, expected, err := v.missingLinks(ctx, selectCountryCurrencyPairsSQL, cca2s, wantCurrency)
	if err != nil {
		return nil, fmt.Errorf("verify country_currency: %w", err)
	}
	report.CountryCurrencyExpected = expected
	for _, m := range missing {
		report.MissingCountryCurrency = append(report.MissingCountryCurrency,
			model.CountryCurrency{CountryCCA2: m.countryCCA2, CurrencyCode: m.otherCode})
	}

	wantLanguage := make([]link, 0, len(batch.CountryLanguages))
	for _, cl := range batch.CountryLanguages {
		wantLanguage = append(wantLanguage, link{cl.CountryCCA2, cl.LanguageCode})
	}
	missing, expected, err = v.missingLinks(ctx, selectCountryLanguagePairsSQL, cca2s, wantLanguage)
	if err != nil {
		return nil, fmt.Errorf("verify country_language: %w", err)
	}
	report.CountryLanguageExpected = expected
	for _, m := range missing {
		report.MissingCountryLanguage = append(report.MissingCountryLanguage,
			model.CountryLanguage{CountryCCA2: m.countryCCA2, LanguageCode: m.otherCode})
	}

	report.Duration = time.Since(start)

	if report.OK() {
		v.logger.Info("Load verified",
			zap.Int("countries", report.CountriesExpected),
			zap.Int("currencies", report.CurrenciesExpected),
			zap.Int("languages", report.LanguagesExpected),
			zap.Int("country_currency", report.CountryCurrencyExpected),
			zap.Int("country_language", report.CountryLanguageExpected),
			zap.Duration("duration", report.Duration))
	} else {
		v.logger.Warn("Load verification found missing rows",
			zap.Strings("missing_countries", report.MissingCountries),
			zap.Strings("missing_currencies", report.MissingCurrencies),
			zap.Strings("missing_languages", report.MissingLanguages),
			zap.Int("missing_country_currency", len(report.MissingCountryCurrency)),
			zap.Int("missing_country_language", len(report.MissingCountryLanguage)))
	}

	return report, nil
}

// missingCodes returns the codes absent from the store, sorted
func (v *Verifier) missingCodes(ctx context.Context, query string, codes []string) ([]string, error) {
	codes = distinct(codes)
	if len(codes) == 0 {
		return nil, nil
	}

	q, args, err := sqlx.In(query, codes)
	if err != nil {
		return nil, err
	}
	var found []string
	if err := v.db.SelectContext(ctx, &found, v.db.Rebind(q), args...); err != nil {
		return nil, err
	}

	present := make(map[string]struct{}, len(found))
	for _, code := range found {
		present[code] = struct{}{}
	}

	var missing []string
	for _, code := range codes {
		if _, ok := present[code]; !ok {
			missing = append(missing, code)
		}
	}
	sort.Strings(missing)
	return missing, nil
}

// missingLinks returns the distinct wanted pairs absent from the store and how many distinct pairs were wanted
func (v *Verifier) missingLinks(ctx context.Context, query string, cca2s []string, want []link) ([]link, int, error) {
	wanted := make([]link, 0, len(want))
	seen := make(map[link]struct{}, len(want))
	for _, lk := range want {
		if _, ok := seen[lk]; ok {
			continue
		}
		seen[lk] = struct{}{}
		wanted = append(wanted, lk)
	}
	if len(wanted) == 0 {
		return nil, 0, nil
	}

	q, args, err := sqlx.In(query, distinct(cca2s))
	if err != nil {
		return nil, 0, err
	}
	var rows []struct {
		CountryCCA2 string `db:"country_cca2"`
		OtherCode   string `db:"other_code"`
	}
	if err := v.db.SelectContext(ctx, &rows, v.db.Rebind(q), args...); err != nil {
		return nil, 0, err
	}

	present := make(map[link]struct{}, len(rows))
	for _, r := range rows {
		present[link{r.CountryCCA2, r.OtherCode}] = struct{}{}
	}

	var missing []link
	for _, lk := range wanted {
		if _, ok := present[lk]; !ok {
			missing = append(missing, lk)
		}
	}
	return missing, len(wanted), nil
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

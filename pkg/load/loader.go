// Package load writes a normalized batch into the relational store.
package load

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/country-ingress/pkg/connector"
	"github.com/David-Botos/country-ingress/pkg/model"
)

// Statements are written with ? placeholders and rebound per driver.
const (
	upsertCurrencySQL = `
		INSERT INTO currency (code, name, symbol)
		VALUES (?, ?, ?)
		ON CONFLICT (code) DO UPDATE
		SET name = EXCLUDED.name, symbol = EXCLUDED.symbol`

	upsertLanguageSQL = `
		INSERT INTO language (code, name)
		VALUES (?, ?)
		ON CONFLICT (code) DO UPDATE
		SET name = EXCLUDED.name`

	upsertCountrySQL = `
		INSERT INTO country (cca2, name, capital, region, subregion, population, area)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (cca2) DO UPDATE
		SET
			name = EXCLUDED.name,
			capital = EXCLUDED.capital,
			region = EXCLUDED.region,
			subregion = EXCLUDED.subregion,
			population = EXCLUDED.population,
			area = EXCLUDED.area
		RETURNING id, cca2`

	selectCurrencyIDsSQL = `SELECT id, code FROM currency WHERE code IN (?)`
	selectLanguageIDsSQL = `SELECT id, code FROM language WHERE code IN (?)`

	insertCountryCurrencySQL = `
		INSERT INTO country_currency (country_id, currency_id)
		VALUES (?, ?)
		ON CONFLICT (country_id, currency_id) DO NOTHING`

	insertCountryLanguageSQL = `
		INSERT INTO country_language (country_id, language_id)
		VALUES (?, ?)
		ON CONFLICT (country_id, language_id) DO NOTHING`
)

// LoadResult summarizes one committed load
type LoadResult struct {
	Currencies        int // currency rows upserted
	Languages         int // language rows upserted
	Countries         int // country rows upserted
	CountryCurrencies int // new country_currency links
	CountryLanguages  int // new country_language links
	DroppedLinks      int // links whose country or parent id could not be resolved
	Duration          time.Duration
}

// Loader performs the transactional upsert of a NormalizedBatch
type Loader struct {
	db      *sqlx.DB
	logger  *zap.Logger
	timeout time.Duration
}

// NewLoader creates a Loader bound to an open database handle
func NewLoader(db *sqlx.DB, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		db:     db,
		logger: logger.Named("loader"),
	}
}

// WithTimeout bounds the whole load transaction; zero disables the bound
func (l *Loader) WithTimeout(timeout time.Duration) *Loader {
	l.timeout = timeout
	return l
}

// idRow is one (surrogate id, natural key) pair read back from the store
type idRow struct {
	ID   int64  `db:"id"`
	Code string `db:"code"`
}

// Load upserts currencies, languages and countries, resolves their surrogate
// ids and inserts the junction rows, all in one transaction. Any error rolls
// the whole transaction back and is returned; nothing is partially committed.
func (l *Loader) Load(ctx context.Context, batch *model.NormalizedBatch) (*LoadResult, error) {
	if batch == nil {
		return nil, errors.New("load: nil batch")
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	l.logger.Info("Inserting data into the database")

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, l.fail("begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				l.logger.Error("Rollback failed", zap.Error(rbErr))
			} else {
				l.logger.Warn("Load transaction rolled back")
			}
		}
	}()

	result := &LoadResult{}

	if result.Currencies, err = l.upsertCurrencies(ctx, tx, batch.Currencies); err != nil {
		return nil, l.fail("upsert currencies", err)
	}
	if result.Languages, err = l.upsertLanguages(ctx, tx, batch.Languages); err != nil {
		return nil, l.fail("upsert languages", err)
	}

	countryIDs, err := l.upsertCountries(ctx, tx, batch.Countries)
	if err != nil {
		return nil, l.fail("upsert countries", err)
	}
	result.Countries = len(batch.Countries)

	currencyIDs, err := lookupIDs(ctx, tx, selectCurrencyIDsSQL, batch.CurrencyCodes())
	if err != nil {
		return nil, l.fail("fetch currency ids", err)
	}
	languageIDs, err := lookupIDs(ctx, tx, selectLanguageIDsSQL, batch.LanguageCodes())
	if err != nil {
		return nil, l.fail("fetch language ids", err)
	}
	l.logger.Debug("Fetched currency and language IDs",
		zap.Int("currencies", len(currencyIDs)),
		zap.Int("languages", len(languageIDs)))

	currencyLinks := make([]link, 0, len(batch.CountryCurrencies))
	for _, cc := range batch.CountryCurrencies {
		currencyLinks = append(currencyLinks, link{cc.CountryCCA2, cc.CurrencyCode})
	}
	inserted, dropped, err := l.insertLinks(ctx, tx, insertCountryCurrencySQL, currencyLinks, countryIDs, currencyIDs)
	if err != nil {
		return nil, l.fail("insert country_currency", err)
	}
	result.CountryCurrencies = inserted
	result.DroppedLinks += dropped

	languageLinks := make([]link, 0, len(batch.CountryLanguages))
	for _, cl := range batch.CountryLanguages {
		languageLinks = append(languageLinks, link{cl.CountryCCA2, cl.LanguageCode})
	}
	inserted, dropped, err = l.insertLinks(ctx, tx, insertCountryLanguageSQL, languageLinks, countryIDs, languageIDs)
	if err != nil {
		return nil, l.fail("insert country_language", err)
	}
	result.CountryLanguages = inserted
	result.DroppedLinks += dropped

	if err := tx.Commit(); err != nil {
		return nil, l.fail("commit", err)
	}
	committed = true
	result.Duration = time.Since(start)

	l.logger.Info("All data successfully loaded and transaction committed",
		zap.Int("currencies", result.Currencies),
		zap.Int("languages", result.Languages),
		zap.Int("countries", result.Countries),
		zap.Int("country_currency_new", result.CountryCurrencies),
		zap.Int("country_language_new", result.CountryLanguages),
		zap.Int("dropped_links", result.DroppedLinks),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// fail logs a database error with its SQLSTATE and wraps it with the step name
func (l *Loader) fail(step string, err error) error {
	l.logger.Error("Database error during loading",
		zap.String("step", step),
		zap.String("sqlstate", connector.SQLState(err)),
		zap.Error(err))
	return fmt.Errorf("%s: %w", step, err)
}

func (l *Loader) upsertCurrencies(ctx context.Context, tx *sqlx.Tx, currencies []model.Currency) (int, error) {
	if len(currencies) == 0 {
		return 0, nil
	}
	l.logger.Info("Inserting currencies", zap.Int("count", len(currencies)))

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(upsertCurrencySQL))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, c := range currencies {
		if _, err := stmt.ExecContext(ctx, c.Code, c.Name, nullString(c.Symbol)); err != nil {
			return 0, fmt.Errorf("currency %s: %w", c.Code, err)
		}
	}
	return len(currencies), nil
}

func (l *Loader) upsertLanguages(ctx context.Context, tx *sqlx.Tx, languages []model.Language) (int, error) {
	if len(languages) == 0 {
		return 0, nil
	}
	l.logger.Info("Inserting languages", zap.Int("count", len(languages)))

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(upsertLanguageSQL))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, lang := range languages {
		if _, err := stmt.ExecContext(ctx, lang.Code, lang.Name); err != nil {
			return 0, fmt.Errorf("language %s: %w", lang.Code, err)
		}
	}
	return len(languages), nil
}

// upsertCountries runs one upsert per row so each returns its surrogate id
func (l *Loader) upsertCountries(ctx context.Context, tx *sqlx.Tx, countries []model.Country) (map[string]int64, error) {
	ids := make(map[string]int64, len(countries))
	if len(countries) == 0 {
		return ids, nil
	}
	l.logger.Info("Inserting countries", zap.Int("count", len(countries)))

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(upsertCountrySQL))
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for _, c := range countries {
		var row idRow
		err := stmt.QueryRowxContext(ctx,
			c.CCA2,
			nullString(c.Name),
			nullString(c.Capital),
			nullString(c.Region),
			nullString(c.Subregion),
			nullInt64(c.Population),
			nullFloat64(c.Area),
		).Scan(&row.ID, &row.Code)
		if err != nil {
			return nil, fmt.Errorf("country %s: %w", c.CCA2, err)
		}
		ids[row.Code] = row.ID
	}
	return ids, nil
}

// lookupIDs maps natural codes to surrogate ids with a single IN query
func lookupIDs(ctx context.Context, tx *sqlx.Tx, query string, codes []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(codes))
	if len(codes) == 0 {
		return ids, nil
	}

	q, args, err := sqlx.In(query, codes)
	if err != nil {
		return nil, err
	}

	var rows []idRow
	if err := tx.SelectContext(ctx, &rows, tx.Rebind(q), args...); err != nil {
		return nil, err
	}
	for _, r := range rows {
		ids[r.Code] = r.ID
	}
	return ids, nil
}

// link is a junction pair expressed in natural keys
type link struct {
	countryCCA2 string
	otherCode   string
}

// insertLinks resolves natural-key pairs to ids and inserts them; pairs that
// cannot be resolved are dropped. Returns rows inserted and pairs dropped.
func (l *Loader) insertLinks(
	ctx context.Context,
	tx *sqlx.Tx,
	query string,
	links []link,
	countryIDs, otherIDs map[string]int64,
) (int, int, error) {
	type idPair struct{ country, other int64 }
	pairs := make([]idPair, 0, len(links))
	dropped := 0
	for _, lk := range links {
		countryID, okCountry := countryIDs[lk.countryCCA2]
		otherID, okOther := otherIDs[lk.otherCode]
		if !okCountry || !okOther {
			dropped++
			l.logger.Debug("Dropping unresolved link",
				zap.String("cca2", lk.countryCCA2),
				zap.String("code", lk.otherCode))
			continue
		}
		pairs = append(pairs, idPair{countryID, otherID})
	}

	if len(pairs) == 0 {
		return 0, dropped, nil
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(query))
	if err != nil {
		return 0, dropped, err
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range pairs {
		res, err := stmt.ExecContext(ctx, p.country, p.other)
		if err != nil {
			return 0, dropped, err
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, dropped, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

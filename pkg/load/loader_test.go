package load

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/David-Botos/country-ingress/pkg/model"
	"github.com/David-Botos/country-ingress/pkg/schema/schematest"
)

func strPtr(s string) *string   { return &s }
func i64Ptr(v int64) *int64     { return &v }
func f64Ptr(v float64) *float64 { return &v }

func sampleBatch() *model.NormalizedBatch {
	return &model.NormalizedBatch{
		Currencies: []model.Currency{
			{Code: "USD", Name: "US Dollar", Symbol: strPtr("$")},
			{Code: "EUR", Name: "Euro", Symbol: strPtr("€")},
		},
		Languages: []model.Language{
			{Code: "en", Name: "English"},
			{Code: "es", Name: "Spanish"},
		},
		Countries: []model.Country{
			{
				CCA2:       "US",
				Name:       strPtr("United States"),
				Capital:    strPtr("Washington, D.C."),
				Region:     strPtr("Americas"),
				Subregion:  strPtr("North America"),
				Population: i64Ptr(331000000),
				Area:       f64Ptr(9833517.0),
			},
			{
				CCA2:       "ES",
				Name:       strPtr("Spain"),
				Capital:    strPtr("Madrid"),
				Region:     strPtr("Europe"),
				Subregion:  strPtr("Southern Europe"),
				Population: i64Ptr(47350000),
				Area:       f64Ptr(505990.0),
			},
		},
		CountryCurrencies: []model.CountryCurrency{
			{CountryCCA2: "US", CurrencyCode: "USD"},
			{CountryCCA2: "ES", CurrencyCode: "EUR"},
		},
		CountryLanguages: []model.CountryLanguage{
			{CountryCCA2: "US", LanguageCode: "en"},
			{CountryCCA2: "ES", LanguageCode: "es"},
		},
	}
}

type pair struct {
	CCA2 string `db:"cca2"`
	Code string `db:"code"`
}

type tableState struct {
	Currencies []struct {
		Code   string  `db:"code"`
		Name   string  `db:"name"`
		Symbol *string `db:"symbol"`
	}
	Languages []struct {
		Code string `db:"code"`
		Name string `db:"name"`
	}
	Countries []struct {
		CCA2       string   `db:"cca2"`
		Name       *string  `db:"name"`
		Capital    *string  `db:"capital"`
		Population *int64   `db:"population"`
		Area       *float64 `db:"area"`
	}
	CountryCurrency []pair
	CountryLanguage []pair
}

func snapshot(t *testing.T, db *sqlx.DB) tableState {
	t.Helper()
	var s tableState
	require.NoError(t, db.Select(&s.Currencies, "SELECT code, name, symbol FROM currency ORDER BY code"))
	require.NoError(t, db.Select(&s.Languages, "SELECT code, name FROM language ORDER BY code"))
	require.NoError(t, db.Select(&s.Countries, "SELECT cca2, name, capital, population, area FROM country ORDER BY cca2"))
	require.NoError(t, db.Select(&s.CountryCurrency, `
		SELECT c.cca2, cur.code
		FROM country_currency cc
		JOIN country c ON cc.country_id = c.id
		JOIN currency cur ON cc.currency_id = cur.id
		ORDER BY c.cca2, cur.code`))
	require.NoError(t, db.Select(&s.CountryLanguage, `
		SELECT c.cca2, l.code
		FROM country_language cl
		JOIN country c ON cl.country_id = c.id
		JOIN language l ON cl.language_id = l.id
		ORDER BY c.cca2, l.code`))
	return s
}

func TestLoad_RoundTrip(t *testing.T) {
	conn := schematest.NewSQLite(t)
	db := conn.DB()

	result, err := NewLoader(db, zap.NewNop()).Load(context.Background(), sampleBatch())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Currencies)
	assert.Equal(t, 2, result.Languages)
	assert.Equal(t, 2, result.Countries)
	assert.Equal(t, 2, result.CountryCurrencies)
	assert.Equal(t, 2, result.CountryLanguages)
	assert.Zero(t, result.DroppedLinks)

	state := snapshot(t, db)

	require.Len(t, state.Currencies, 2)
	assert.Equal(t, "EUR", state.Currencies[0].Code)
	assert.Equal(t, "Euro", state.Currencies[0].Name)
	assert.Equal(t, "€", *state.Currencies[0].Symbol)
	assert.Equal(t, "USD", state.Currencies[1].Code)

	require.Len(t, state.Languages, 2)
	assert.Equal(t, "en", state.Languages[0].Code)
	assert.Equal(t, "Spanish", state.Languages[1].Name)

	require.Len(t, state.Countries, 2)
	assert.Equal(t, "ES", state.Countries[0].CCA2)
	assert.Equal(t, "Madrid", *state.Countries[0].Capital)
	assert.Equal(t, "US", state.Countries[1].CCA2)
	assert.Equal(t, "Washington, D.C.", *state.Countries[1].Capital)
	assert.Equal(t, int64(331000000), *state.Countries[1].Population)
	assert.InDelta(t, 9833517.0, *state.Countries[1].Area, 0.001)

	assert.Equal(t, []pair{{"ES", "EUR"}, {"US", "USD"}}, state.CountryCurrency)
	assert.Equal(t, []pair{{"ES", "es"}, {"US", "en"}}, state.CountryLanguage)
}

func TestLoad_Idempotent(t *testing.T) {
	conn := schematest.NewSQLite(t)
	db := conn.DB()
	loader := NewLoader(db, zap.NewNop())

	_, err := loader.Load(context.Background(), sampleBatch())
	require.NoError(t, err)
	first := snapshot(t, db)

	var firstIDs []int64
	require.NoError(t, db.Select(&firstIDs, "SELECT id FROM country ORDER BY cca2"))

	second, err := loader.Load(context.Background(), sampleBatch())
	require.NoError(t, err)
	assert.Zero(t, second.CountryCurrencies, "links already exist")
	assert.Zero(t, second.CountryLanguages, "links already exist")

	assert.Equal(t, first, snapshot(t, db))

	var secondIDs []int64
	require.NoError(t, db.Select(&secondIDs, "SELECT id FROM country ORDER BY cca2"))
	assert.Equal(t, firstIDs, secondIDs, "surrogate ids are stable across upserts")
}

func TestLoad_UpdatesOnConflict(t *testing.T) {
	conn := schematest.NewSQLite(t)
	db := conn.DB()
	loader := NewLoader(db, zap.NewNop())

	_, err := loader.Load(context.Background(), sampleBatch())
	require.NoError(t, err)

	changed := sampleBatch()
	changed.Currencies[0].Symbol = nil
	changed.Languages[1].Name = "Castilian"
	changed.Countries[0].Population = i64Ptr(335000000)
	changed.Countries[1].Capital = nil

	_, err = loader.Load(context.Background(), changed)
	require.NoError(t, err)

	state := snapshot(t, db)
	assert.Nil(t, state.Currencies[1].Symbol, "USD symbol cleared")
	assert.Equal(t, "Castilian", state.Languages[1].Name)
	assert.Nil(t, state.Countries[0].Capital, "ES capital cleared")
	assert.Equal(t, int64(335000000), *state.Countries[1].Population)
	assert.Len(t, state.CountryCurrency, 2)
}

func TestLoad_DropsUnresolvedLinks(t *testing.T) {
	conn := schematest.NewSQLite(t)
	db := conn.DB()

	batch := sampleBatch()
	batch.CountryCurrencies = append(batch.CountryCurrencies,
		model.CountryCurrency{CountryCCA2: "ZZ", CurrencyCode: "USD"},
		model.CountryCurrency{CountryCCA2: "US", CurrencyCode: "XXX"},
	)
	batch.CountryLanguages = append(batch.CountryLanguages,
		model.CountryLanguage{CountryCCA2: "ES", LanguageCode: "xx"},
	)

	result, err := NewLoader(db, zap.NewNop()).Load(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 3, result.DroppedLinks)

	state := snapshot(t, db)
	assert.Equal(t, []pair{{"ES", "EUR"}, {"US", "USD"}}, state.CountryCurrency)
	assert.Equal(t, []pair{{"ES", "es"}, {"US", "en"}}, state.CountryLanguage)
}

func TestLoad_DuplicateLinksInBatch(t *testing.T) {
	conn := schematest.NewSQLite(t)
	db := conn.DB()

	batch := sampleBatch()
	batch.CountryCurrencies = append(batch.CountryCurrencies, batch.CountryCurrencies[0])

	result, err := NewLoader(db, zap.NewNop()).Load(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 2, result.CountryCurrencies)
	assert.Len(t, snapshot(t, db).CountryCurrency, 2)
}

func TestLoad_EmptyBatch(t *testing.T) {
	conn := schematest.NewSQLite(t)

	result, err := NewLoader(conn.DB(), nil).Load(context.Background(), model.NewNormalizedBatch())
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Duration: result.Duration}, *result)
}

func TestLoad_NilBatch(t *testing.T) {
	conn := schematest.NewSQLite(t)

	_, err := NewLoader(conn.DB(), nil).Load(context.Background(), nil)
	assert.Error(t, err)
}

func TestLoad_RollsBackOnError(t *testing.T) {
	conn := schematest.NewSQLite(t)
	db := conn.DB()
	_, err := db.Exec("DROP TABLE country_language")
	require.NoError(t, err)

	core, logs := observer.New(zapcore.WarnLevel)
	_, err = NewLoader(db, zap.New(core)).Load(context.Background(), sampleBatch())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert country_language")

	assert.Equal(t, 1, logs.FilterMessage("Database error during loading").Len())
	assert.Equal(t, 1, logs.FilterMessage("Load transaction rolled back").Len())

	var count int
	for _, table := range []string{"currency", "language", "country", "country_currency"} {
		require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM "+table))
		assert.Zero(t, count, "%s must be empty after rollback", table)
	}
}

func TestLoad_CancelledContext(t *testing.T) {
	conn := schematest.NewSQLite(t)
	db := conn.DB()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(db, zap.NewNop()).Load(ctx, sampleBatch())
	require.Error(t, err)

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM country"))
	assert.Zero(t, count)
}

func TestLoad_NullableCountryColumns(t *testing.T) {
	conn := schematest.NewSQLite(t)
	db := conn.DB()

	batch := model.NewNormalizedBatch()
	batch.Countries = append(batch.Countries, model.Country{CCA2: "AQ"})

	_, err := NewLoader(db, zap.NewNop()).Load(context.Background(), batch)
	require.NoError(t, err)

	state := snapshot(t, db)
	require.Len(t, state.Countries, 1)
	assert.Nil(t, state.Countries[0].Name)
	assert.Nil(t, state.Countries[0].Population)
	assert.Nil(t, state.Countries[0].Area)
}

// Package transform reshapes raw country records into the normalized
// relational batch consumed by the loader.
package transform

import (
	"go.uber.org/zap"

	"github.com/David-Botos/country-ingress/pkg/model"
)

// Transformer maps raw country records to a NormalizedBatch.
// It performs no I/O besides logging and is safe for concurrent use.
type Transformer struct {
	logger *zap.Logger
}

// NewTransformer creates a Transformer; a nil logger disables logging
func NewTransformer(logger *zap.Logger) *Transformer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{logger: logger.Named("transformer")}
}

// Transform normalizes raw records into countries, deduplicated currencies and
// languages, and the country links to both. Records without a cca2 are skipped
// whole; currency and language entries without a code or name are skipped.
// The returned batch is never nil.
func (t *Transformer) Transform(raw []model.RawCountry) *model.NormalizedBatch {
	t.logger.Info("Starting data transformation", zap.Int("records", len(raw)))

	batch := model.NewNormalizedBatch()
	countrySeen := make(map[string]struct{})
	currencySeen := make(map[string]int)
	languageSeen := make(map[string]int)

	for i := range raw {
		rc := &raw[i]

		cca2 := rc.Code()
		if cca2 == "" {
			t.logger.Warn("Skipping country with missing cca2: "+rc.DisplayName(),
				zap.Int("index", i))
			continue
		}
		if _, dup := countrySeen[cca2]; dup {
			t.logger.Warn("Duplicate cca2 in input, the store keeps the last row",
				zap.String("cca2", cca2),
				zap.Int("index", i))
		}
		countrySeen[cca2] = struct{}{}

		batch.Countries = append(batch.Countries, model.Country{
			CCA2:       cca2,
			Name:       rc.CommonName(),
			Capital:    rc.FirstCapital(),
			Region:     rc.Region,
			Subregion:  rc.Subregion,
			Population: rc.Population,
			Area:       rc.Area,
		})

		if rc.Currencies != nil {
			for pair := rc.Currencies.Oldest(); pair != nil; pair = pair.Next() {
				code, details := pair.Key, pair.Value
				if details == nil || code == "" || details.Name == nil || *details.Name == "" {
					t.logger.Debug("Skipping currency without code or name",
						zap.String("cca2", cca2),
						zap.String("code", code))
					continue
				}

				if idx, ok := currencySeen[code]; !ok {
					currencySeen[code] = len(batch.Currencies)
					batch.Currencies = append(batch.Currencies, model.Currency{
						Code:   code,
						Name:   *details.Name,
						Symbol: details.Symbol,
					})
				} else if kept := batch.Currencies[idx].Name; kept != *details.Name {
					t.logger.Debug("Currency name differs from first occurrence, keeping first",
						zap.String("code", code),
						zap.String("kept", kept),
						zap.String("ignored", *details.Name))
				}

				batch.CountryCurrencies = append(batch.CountryCurrencies, model.CountryCurrency{
					CountryCCA2:  cca2,
					CurrencyCode: code,
				})
			}
		}

		if rc.Languages != nil {
			for pair := rc.Languages.Oldest(); pair != nil; pair = pair.Next() {
				code, name := pair.Key, pair.Value
				if code == "" || name == nil || *name == "" {
					t.logger.Debug("Skipping language without code or name",
						zap.String("cca2", cca2),
						zap.String("code", code))
					continue
				}

				if idx, ok := languageSeen[code]; !ok {
					languageSeen[code] = len(batch.Languages)
					batch.Languages = append(batch.Languages, model.Language{
						Code: code,
						Name: *name,
					})
				} else if kept := batch.Languages[idx].Name; kept != *name {
					t.logger.Debug("Language name differs from first occurrence, keeping first",
						zap.String("code", code),
						zap.String("kept", kept),
						zap.String("ignored", *name))
				}

				batch.CountryLanguages = append(batch.CountryLanguages, model.CountryLanguage{
					CountryCCA2:  cca2,
					LanguageCode: code,
				})
			}
		}
	}

	t.logger.Info("Transformation complete",
		zap.Int("countries", len(batch.Countries)),
		zap.Int("currencies", len(batch.Currencies)),
		zap.Int("languages", len(batch.Languages)),
		zap.Int("country_currency", len(batch.CountryCurrencies)),
		zap.Int("country_language", len(batch.CountryLanguages)))

	return batch
}

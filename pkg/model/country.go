// pkg/model/country.go
package model

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// CountryName is the nested name object of a raw country record
type CountryName struct {
	Common   *string `json:"common"`
	Official *string `json:"official,omitempty"`
}

// CurrencyDetails is the value side of a raw currencies entry
type CurrencyDetails struct {
	Name   *string `json:"name"`
	Symbol *string `json:"symbol"`
}

// CurrencyMap keeps currency entries in the order they appear in the source document
type CurrencyMap = orderedmap.OrderedMap[string, *CurrencyDetails]

// LanguageMap keeps language entries in the order they appear in the source document
type LanguageMap = orderedmap.OrderedMap[string, *string]

// RawCountry is one record as returned by the countries endpoint.
// Every field is optional; absent and null both decode to nil.
type RawCountry struct {
	CCA2       *string      `json:"cca2"`
	Name       *CountryName `json:"name"`
	Capital    []*string    `json:"capital"`
	Region     *string      `json:"region"`
	Subregion  *string      `json:"subregion"`
	Population *int64       `json:"population"`
	Area       *float64     `json:"area"`
	Currencies *CurrencyMap `json:"currencies"`
	Languages  *LanguageMap `json:"languages"`
}

// Code returns the cca2 value, or "" when absent
func (r *RawCountry) Code() string {
	if r.CCA2 == nil {
		return ""
	}
	return *r.CCA2
}

// CommonName returns name.common, or nil when either level is missing
func (r *RawCountry) CommonName() *string {
	if r.Name == nil {
		return nil
	}
	return r.Name.Common
}

// DisplayName is used in log lines about the record
func (r *RawCountry) DisplayName() string {
	if name := r.CommonName(); name != nil {
		return *name
	}
	return "Unknown"
}

// FirstCapital returns the first listed capital, or nil when there is none
func (r *RawCountry) FirstCapital() *string {
	if len(r.Capital) == 0 {
		return nil
	}
	return r.Capital[0]
}

// Country is a normalized country row keyed by cca2
type Country struct {
	CCA2       string   `json:"cca2" db:"cca2"`
	Name       *string  `json:"name" db:"name"`
	Capital    *string  `json:"capital" db:"capital"`
	Region     *string  `json:"region" db:"region"`
	Subregion  *string  `json:"subregion" db:"subregion"`
	Population *int64   `json:"population" db:"population"`
	Area       *float64 `json:"area" db:"area"`
}

// Currency is a deduplicated currency row keyed by code
type Currency struct {
	Code   string  `json:"code" db:"code"`
	Name   string  `json:"name" db:"name"`
	Symbol *string `json:"symbol" db:"symbol"`
}

// Language is a deduplicated language row keyed by code
type Language struct {
	Code string `json:"code" db:"code"`
	Name string `json:"name" db:"name"`
}

// CountryCurrency links a country to a currency by natural keys
type CountryCurrency struct {
	CountryCCA2  string `json:"country_cca2"`
	CurrencyCode string `json:"currency_code"`
}

// CountryLanguage links a country to a language by natural keys
type CountryLanguage struct {
	CountryCCA2  string `json:"country_cca2"`
	LanguageCode string `json:"language_code"`
}

// NormalizedBatch is the full output of one transformation
type NormalizedBatch struct {
	Countries         []Country         `json:"countries"`
	Currencies        []Currency        `json:"currencies"`
	Languages         []Language        `json:"languages"`
	CountryCurrencies []CountryCurrency `json:"country_currency"`
	CountryLanguages  []CountryLanguage `json:"country_language"`
}

// NewNormalizedBatch returns a batch with all collections empty but non-nil
func NewNormalizedBatch() *NormalizedBatch {
	return &NormalizedBatch{
		Countries:         make([]Country, 0),
		Currencies:        make([]Currency, 0),
		Languages:         make([]Language, 0),
		CountryCurrencies: make([]CountryCurrency, 0),
		CountryLanguages:  make([]CountryLanguage, 0),
	}
}

// IsEmpty reports whether the batch has no rows at all
func (b *NormalizedBatch) IsEmpty() bool {
	return len(b.Countries) == 0 &&
		len(b.Currencies) == 0 &&
		len(b.Languages) == 0 &&
		len(b.CountryCurrencies) == 0 &&
		len(b.CountryLanguages) == 0
}

// CurrencyCodes returns the currency natural keys in batch order
func (b *NormalizedBatch) CurrencyCodes() []string {
	codes := make([]string, len(b.Currencies))
	for i, c := range b.Currencies {
		codes[i] = c.Code
	}
	return codes
}

// LanguageCodes returns the language natural keys in batch order
func (b *NormalizedBatch) LanguageCodes() []string {
	codes := make([]string, len(b.Languages))
	for i, l := range b.Languages {
		codes[i] = l.Code
	}
	return codes
}

// CountryCodes returns the country natural keys in batch order
func (b *NormalizedBatch) CountryCodes() []string {
	codes := make([]string, len(b.Countries))
	for i, c := range b.Countries {
		codes[i] = c.CCA2
	}
	return codes
}

// pkg/model/metadata.go
package model

import "strings"

// TableMetadata contains the structure information for a target table
type TableMetadata struct {
	Table       string   // Table name
	Columns     []Column // Column definitions, in DDL order
	PrimaryKeys []string // Primary key column names
	NaturalKey  string   // Business key column, empty for junction tables
}

// Column represents metadata about a table column
type Column struct {
	Name     string // Column name
	Nullable bool   // Whether column allows NULL values
}

// Table names of the normalized model
const (
	TableCurrency        = "currency"
	TableLanguage        = "language"
	TableCountry         = "country"
	TableCountryCurrency = "country_currency"
	TableCountryLanguage = "country_language"
)

// Tables lists the normalized model in dependency order: parents before junctions
var Tables = []TableMetadata{
	{
		Table: TableCurrency,
		Columns: []Column{
			{Name: "id"}, {Name: "code"}, {Name: "name", Nullable: true}, {Name: "symbol", Nullable: true},
		},
		PrimaryKeys: []string{"id"},
		NaturalKey:  "code",
	},
	{
		Table: TableLanguage,
		Columns: []Column{
			{Name: "id"}, {Name: "code"}, {Name: "name", Nullable: true},
		},
		PrimaryKeys: []string{"id"},
		NaturalKey:  "code",
	},
	{
		Table: TableCountry,
		Columns: []Column{
			{Name: "id"}, {Name: "cca2"},
			{Name: "name", Nullable: true}, {Name: "capital", Nullable: true},
			{Name: "region", Nullable: true}, {Name: "subregion", Nullable: true},
			{Name: "population", Nullable: true}, {Name: "area", Nullable: true},
		},
		PrimaryKeys: []string{"id"},
		NaturalKey:  "cca2",
	},
	{
		Table:       TableCountryCurrency,
		Columns:     []Column{{Name: "country_id"}, {Name: "currency_id"}},
		PrimaryKeys: []string{"country_id", "currency_id"},
	},
	{
		Table:       TableCountryLanguage,
		Columns:     []Column{{Name: "country_id"}, {Name: "language_id"}},
		PrimaryKeys: []string{"country_id", "language_id"},
	},
}

// LookupTable returns the metadata for a table name (case-insensitive)
// Returns nil if the table is not part of the model
func LookupTable(name string) *TableMetadata {
	for i := range Tables {
		if strings.EqualFold(Tables[i].Table, name) {
			return &Tables[i]
		}
	}
	return nil
}

// ColumnNames returns the column names in DDL order
func (tm *TableMetadata) ColumnNames() []string {
	names := make([]string, len(tm.Columns))
	for i, col := range tm.Columns {
		names[i] = col.Name
	}
	return names
}

// IsJunction reports whether the table only links two parents
func (tm *TableMetadata) IsJunction() bool {
	return tm.NaturalKey == ""
}

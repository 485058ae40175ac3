package store

import "travelingest/internal/profile"

// Logical column types. Backends map these to their own dialect; keeping the
// vocabulary small keeps every backend's mapping total.
const (
	TypeText      = "text"
	TypeInteger   = "integer"
	TypeReal      = "real"
	TypeTimestamp = "timestamp"
	TypeJSON      = "json"
)

// TableSpec describes one table for EnsureTables. Every table gets an
// implicit auto-incrementing id primary key; Unique lists columns that carry
// a unique constraint (the upsert conflict target).
type TableSpec struct {
	Name    string
	Columns []ColumnSpec
	Unique  []string
}

type ColumnSpec struct {
	Name     string
	Type     string
	Nullable bool
}

// BaseTables returns the bookkeeping tables every deployment needs.
func BaseTables() []TableSpec {
	return []TableSpec{
		{
			Name: "staging_raw",
			Columns: []ColumnSpec{
				{Name: "batch_id", Type: TypeText},
				{Name: "entity", Type: TypeText},
				{Name: "rawjson", Type: TypeJSON},
				{Name: "created_at", Type: TypeTimestamp},
			},
		},
		{
			Name: "import_errors",
			Columns: []ColumnSpec{
				{Name: "batch_id", Type: TypeText},
				{Name: "entity", Type: TypeText},
				{Name: "line", Type: TypeInteger, Nullable: true},
				{Name: "reason", Type: TypeText},
				{Name: "rawjson", Type: TypeJSON, Nullable: true},
				{Name: "created_at", Type: TypeTimestamp},
			},
		},
		{
			Name: "etl_runs",
			Columns: []ColumnSpec{
				{Name: "batch_id", Type: TypeText},
				{Name: "filename", Type: TypeText},
				{Name: "entity", Type: TypeText},
				{Name: "status", Type: TypeText},
				{Name: "rows_total", Type: TypeInteger},
				{Name: "rows_cleaned", Type: TypeInteger},
				{Name: "rows_promoted", Type: TypeInteger},
				{Name: "error", Type: TypeText, Nullable: true},
				{Name: "started_at", Type: TypeTimestamp},
				{Name: "finished_at", Type: TypeTimestamp, Nullable: true},
			},
			Unique: []string{"batch_id"},
		},
	}
}

// TableFor builds the cleaned-table spec for an entity. Numeric canonical
// fields get numeric columns; everything else is text. All value columns are
// nullable because cleaning preserves rows with partial data.
func TableFor(p *profile.Profile) TableSpec {
	spec := TableSpec{
		Name:   p.Table,
		Unique: []string{p.KeyField},
	}
	for _, f := range p.CanonicalFields {
		spec.Columns = append(spec.Columns, ColumnSpec{
			Name:     f,
			Type:     columnType(p.Entity, f),
			Nullable: f != p.KeyField,
		})
	}
	spec.Columns = append(spec.Columns,
		ColumnSpec{Name: "batch_id", Type: TypeText},
		ColumnSpec{Name: "rawjson", Type: TypeJSON, Nullable: true},
	)
	return spec
}

func columnType(entity profile.Entity, field string) string {
	switch {
	case entity == profile.Passenger && field == "age":
		return TypeInteger
	case entity == profile.CorporateSales && field == "qty":
		return TypeInteger
	case field == "sale_amount" || field == "unit_price" || field == "total":
		return TypeReal
	}
	return TypeText
}

// AllTables is the full schema: bookkeeping plus one cleaned table per
// entity.
func AllTables() []TableSpec {
	tables := BaseTables()
	for _, p := range profile.All() {
		tables = append(tables, TableFor(p))
	}
	return tables
}

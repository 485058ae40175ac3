package mssql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelingest/internal/store"
)

func TestBuildMergeSQL(t *testing.T) {
	t.Parallel()

	sqlText, args := buildMergeSQL("cleaned_airlines", "airline_key",
		[]string{"airline_key", "airline_name"},
		[][]any{{"BA", "British Airways"}, {"LH", "Lufthansa"}})

	assert.Equal(t,
		`MERGE INTO [cleaned_airlines] AS t USING (VALUES (@p1, @p2), (@p3, @p4)) AS s ([airline_key], [airline_name])`+
			` ON t.[airline_key] = s.[airline_key]`+
			` WHEN MATCHED THEN UPDATE SET t.[airline_name] = s.[airline_name]`+
			` WHEN NOT MATCHED THEN INSERT ([airline_key], [airline_name]) VALUES (s.[airline_key], s.[airline_name]);`,
		sqlText)
	assert.Equal(t, []any{"BA", "British Airways", "LH", "Lufthansa"}, args)
}

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	sqlText, args := buildInsertSQL("import_errors",
		[]string{"batch_id", "reason"},
		[][]any{{"b1", "bad row"}})

	assert.Equal(t,
		`INSERT INTO [import_errors] ([batch_id], [reason]) VALUES (@p1, @p2)`,
		sqlText)
	assert.Len(t, args, 2)
}

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	sqlText, err := buildCreateSQL(store.TableSpec{
		Name: "cleaned_airlines",
		Columns: []store.ColumnSpec{
			{Name: "airline_key", Type: store.TypeText},
			{Name: "rawjson", Type: store.TypeJSON, Nullable: true},
			{Name: "created_at", Type: store.TypeTimestamp},
		},
		Unique: []string{"airline_key"},
	})
	require.NoError(t, err)

	assert.Contains(t, sqlText, "IF OBJECT_ID(N'cleaned_airlines', N'U') IS NULL CREATE TABLE [cleaned_airlines]")
	assert.Contains(t, sqlText, "id BIGINT IDENTITY(1,1) PRIMARY KEY")
	assert.Contains(t, sqlText, "[airline_key] NVARCHAR(400) NOT NULL")
	assert.Contains(t, sqlText, "[rawjson] NVARCHAR(MAX)")
	assert.Contains(t, sqlText, "[created_at] DATETIME2 NOT NULL")
	assert.Contains(t, sqlText, "UNIQUE ([airline_key])")
}

func TestIdentQuoting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "[plain]", ident("plain"))
	assert.Equal(t, "[we]]ird]", ident("we]ird"))
}

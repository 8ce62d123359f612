package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"prodledger/internal/core/types"
	"prodledger/internal/domain/catalogs/line"
)

func TestExtractDBColumns_EmbeddedCatalog(t *testing.T) {
	cols := ExtractDBColumns[line.Line]()

	assert.Equal(t, []string{"id", "created_at", "code", "name", "is_active", "floor", "operators"}, cols)
}

func TestExtractDBColumns_PointerType(t *testing.T) {
	assert.Equal(t, ExtractDBColumns[line.Line](), ExtractDBColumns[*line.Line]())
}

func TestStructToMap_EmbeddedFields(t *testing.T) {
	l := line.NewLine(" l01 ", "Line one")
	l.Floor = "2"
	l.Operators = 34

	m := StructToMap(l)

	assert.Equal(t, l.ID, m["id"])
	assert.Equal(t, "L01", m["code"])
	assert.Equal(t, "Line one", m["name"])
	assert.Equal(t, true, m["is_active"])
	assert.Equal(t, "2", m["floor"])
	assert.Equal(t, 34, m["operators"])
	assert.Len(t, m, 7)
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
}

func TestDayHelpers(t *testing.T) {
	sql, args, err := Builder().
		Select(DayColumn("target_date")).
		From("evt_targets").
		Where(DayCompare("target_date", ">=", types.MustDay("2024-03-01"))).
		ToSql()

	assert.NoError(t, err)
	assert.Equal(t, "SELECT to_char(target_date, 'YYYY-MM-DD') AS target_date FROM evt_targets WHERE target_date >= $1::text::date", sql)
	assert.Equal(t, []any{"2024-03-01"}, args)

	sql, args, err = Builder().
		Insert("evt_targets").
		Columns("id", "target_date").
		Values(1, DayValue(types.MustDay("2024-03-02"))).
		ToSql()

	assert.NoError(t, err)
	assert.Equal(t, "INSERT INTO evt_targets (id,target_date) VALUES ($1,$2::text::date)", sql)
	assert.Equal(t, []any{1, "2024-03-02"}, args)
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "uq_targets_slot"})

	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "uq_targets_slot"))
	assert.False(t, IsUniqueViolation(err, "uq_entries_slot"))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
	assert.False(t, IsForeignKeyViolation(err))
}

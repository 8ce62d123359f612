package event_repo

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodledger/internal/core/entity"
	"prodledger/internal/core/id"
	"prodledger/internal/core/types"
	"prodledger/internal/domain/production"
	"prodledger/internal/domain/targets"
	"prodledger/internal/infrastructure/storage/postgres"
)

func base(table string) squirrel.SelectBuilder {
	return postgres.Builder().Select("id").From(table)
}

func TestApplyTargetFilter(t *testing.T) {
	tests := []struct {
		name     string
		filter   targets.ListFilter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "Empty",
			wantSQL: "SELECT id FROM evt_targets",
		},
		{
			name: "DateRange",
			filter: targets.ListFilter{
				From: types.MustDay("2024-03-01"),
				To:   types.MustDay("2024-03-31"),
			},
			wantSQL:  "SELECT id FROM evt_targets WHERE target_date >= $1::text::date AND target_date <= $2::text::date",
			wantArgs: []any{"2024-03-01", "2024-03-31"},
		},
		{
			name:     "LineAndStyle",
			filter:   targets.ListFilter{LineCode: "L01", StyleCode: "ST001"},
			wantSQL:  "SELECT id FROM evt_targets WHERE line_code = $1 AND style_code = $2",
			wantArgs: []any{"L01", "ST001"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := applyTargetFilter(base(targetsTable), tt.filter).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestApplyEntryFilter(t *testing.T) {
	lineID := id.New()

	sql, args, err := applyEntryFilter(base(entriesTable), production.ListFilter{
		From:   types.MustDay("2024-03-01"),
		LineID: &lineID,
		Stage:  entity.StageSewing,
	}).ToSql()

	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM evt_production_entries WHERE entry_date >= $1::text::date AND line_id = $2 AND stage = $3", sql)
	require.Len(t, args, 3)
	assert.Equal(t, "2024-03-01", args[0])
	assert.Equal(t, "SEWING", args[2])
}

func TestTargetColumnsReadDayAsText(t *testing.T) {
	sql, _, err := (&TargetRepo{}).baseSelect().ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "to_char(target_date, 'YYYY-MM-DD') AS target_date")
}

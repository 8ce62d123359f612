package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDay(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2024-03-01", false},
		{"2024-02-29", false},
		{"2023-02-29", true},
		{"2024-3-1", true},
		{"2024-03-01T00:00:00Z", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.in, d.String())
		})
	}
}

func TestDaysBetween(t *testing.T) {
	n, err := DaysBetween("2024-03-01", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = DaysBetween("2024-02-28", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// DST change in many zones; days carry no zone so it must not matter.
	n, err = DaysBetween("2024-03-30", "2024-04-01")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.True(t, Day("2024-03-01").Before("2024-03-10"))
	assert.False(t, Day("2024-03-10").Before("2024-03-10"))
}

func TestPercent(t *testing.T) {
	tests := []struct {
		num, den int64
		want     string
	}{
		{0, 0, "0"},
		{5, 0, "0"},
		{90, 100, "90"},
		{1, 3, "33.33"},
		{2, 3, "66.67"},
		{150, 100, "150"},
	}

	for _, tt := range tests {
		got := Percent(tt.num, tt.den)
		assert.True(t, decimal.RequireFromString(tt.want).Equal(got),
			"Percent(%d, %d) = %s, want %s", tt.num, tt.den, got, tt.want)
	}
}

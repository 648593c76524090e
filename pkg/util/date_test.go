package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	require.True(t, ok)
	assert.Equal(t, s, got.UTC().Format(time.RFC3339))
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	require.True(t, ok)
	assert.Equal(t, ts, got.Unix())
}

func TestParseTimeDateOnly(t *testing.T) {
	got, ok := ParseTime("2024-02-29")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	assert.True(t, ParseTimeDefault("", def).Equal(def))
	assert.True(t, ParseTimeDefault("not a time", def).Equal(def))
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		in     time.Time
		months int
		want   time.Time
	}{
		{time.Date(2020, 1, 15, 9, 0, 0, 0, time.UTC), 36, time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)},
		{time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC), 1, time.Date(2020, 2, 28, 0, 0, 0, 0, time.UTC)},
		{time.Date(2020, 11, 5, 0, 0, 0, 0, time.UTC), 6, time.Date(2021, 5, 5, 0, 0, 0, 0, time.UTC)},
		{time.Date(2020, 3, 5, 0, 0, 0, 0, time.UTC), -3, time.Date(2019, 12, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AddMonths(tt.in, tt.months))
	}
}

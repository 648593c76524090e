package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBarsCSV(t *testing.T) {
	in := `date,open,high,low,close,volume
2024-01-03,10,11,9,10.5,1200
2024-01-02,9,10,8,9.5,1000
`
	bars, err := ReadBarsCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, day(1), bars[0].Date)
	assert.Equal(t, 10.5, bars[1].Close)
	assert.Equal(t, 1200.0, bars[1].Volume)
}

func TestReadBarsCSVWithoutHeader(t *testing.T) {
	bars, err := ReadBarsCSV(strings.NewReader("2024-01-02,1,2,0.5,1.5,10\n"))
	require.NoError(t, err)
	require.Len(t, bars, 1)
}

func TestReadBarsCSVReportsLine(t *testing.T) {
	_, err := ReadBarsCSV(strings.NewReader("date,open,high,low,close,volume\n2024-01-02,x,2,0.5,1.5,10\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "open")
}

func TestCSVBarStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewCSVBarStore(dir)

	require.NoError(t, s.StoreBars(ctx, "2330", seqBars(0, 10)))
	require.NoError(t, s.StoreBars(ctx, "2330", seqBars(8, 4)))
	_, err := os.Stat(filepath.Join(dir, "2330.csv"))
	require.NoError(t, err)

	all, err := s.GetLatestNBars(ctx, "2330", 100)
	require.NoError(t, err)
	require.Len(t, all, 12)
	assert.Equal(t, day(11), all[11].Date)
	assert.Equal(t, seqBars(0, 1)[0], all[0])

	sub, err := s.GetBars(ctx, "2330", day(2), day(4))
	require.NoError(t, err)
	assert.Len(t, sub, 3)
}

func TestCSVBarStoreMissingTicker(t *testing.T) {
	s := NewCSVBarStore(t.TempDir())
	bars, err := s.GetLatestNBars(context.Background(), "NOPE", 10)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

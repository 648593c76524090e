package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileUniverseReadsAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickers.json")
	require.NoError(t, os.WriteFile(path, []byte(`[" bbca ","BBRI","bbca","tlkm"]`), 0o644))

	got, err := NewFileUniverse(path, nil).Tickers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BBCA", "BBRI", "TLKM"}, got)
}

func TestFileUniverseFallback(t *testing.T) {
	u := NewFileUniverse(filepath.Join(t.TempDir(), "missing.json"), []string{"b", "a", "b"})
	got, err := u.Tickers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, got)
}

func TestFileUniverseBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"x":1}`), 0o644))
	_, err := NewFileUniverse(path, nil).Tickers(context.Background())
	assert.Error(t, err)
}

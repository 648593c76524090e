package di

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/service/cache"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/config"
)

type readOnlyStore struct{}

func (readOnlyStore) GetBars(context.Context, string, time.Time, time.Time) (models.Bars, error) {
	return nil, nil
}

func (readOnlyStore) GetLatestNBars(context.Context, string, int) (models.Bars, error) {
	return nil, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.Bars.CSVDir = filepath.Join(dir, "bars")
	cfg.Model.Dir = filepath.Join(dir, "models")
	cfg.Universe.File = filepath.Join(dir, "tickers.json")
	return cfg
}

func TestInitializeAppWithoutExternalServices(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule.Scan = "30 14 * * 1-5"

	app, cleanup, err := InitializeApp(cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, app.Engine)
	assert.NotNil(t, app.Scanner)
	assert.NotNil(t, app.Training)
	assert.NotNil(t, app.Writer, "csv store accepts imports")
	assert.Nil(t, app.Results)
	assert.False(t, app.Engine.Status().ModelLoaded)
}

func TestProvideBarCache(t *testing.T) {
	cfg := testConfig(t)

	cfg.Cache.Backend = cache.BackendNone
	bc, cleanup, err := ProvideBarCache(cfg, nil)
	require.NoError(t, err)
	cleanup()
	assert.Equal(t, cache.BackendNone, bc.Backend())

	cfg.Cache.Backend = cache.BackendBadger
	cfg.Cache.BadgerDir = t.TempDir()
	bc, cleanup, err = ProvideBarCache(cfg, nil)
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, cache.BackendBadger, bc.Backend())
}

func TestOptionalProvidersStayNil(t *testing.T) {
	cfg := testConfig(t)

	assert.Nil(t, ProvideResultPublisher(cfg, nil))
	assert.Nil(t, ProvideBarWriter(readOnlyStore{}))

	s, err := ProvideScheduler(cfg, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, s)

	c, err := ProvideKafkaConsumer(cfg, nil, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	cfg.Model.Watch = false
	assert.Nil(t, ProvideModelWatcher(cfg, nil, nil))
}

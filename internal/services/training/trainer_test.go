package training

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

func trainCfg() models.TrainingConfig {
	return models.TrainingConfig{
		MinSamples: 100, MinTickers: 10, TestSize: 0.2, Seed: 42,
		TrainMonths: 36, TestMonths: 6, MinFoldTrain: 50, MinFoldTest: 10,
		NumTrees: 20, MaxDepth: 2, LearningRate: 0.3, MinChildWeight: 1, L2: 1,
	}
}

// monthlySamples emits one sample per ticker on the first of each month. The label is
// x > 0.5, inverted for dates at or after flipFrom.
func monthlySamples(months, tickers int, flipFrom time.Time) []models.LabeledSample {
	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	var out []models.LabeledSample
	k := 0
	for m := 0; m < months; m++ {
		d := start.AddDate(0, m, 0)
		for tk := 0; tk < tickers; tk++ {
			x := math.Mod(float64(k)*0.37+0.013, 1)
			k++
			label := 0
			if x > 0.5 {
				label = 1
			}
			if !flipFrom.IsZero() && !d.Before(flipFrom) {
				label = 1 - label
			}
			out = append(out, models.LabeledSample{
				Ticker:   fmt.Sprintf("T%02d", tk),
				Date:     d,
				Features: map[string]float64{"x": x},
				Label:    label,
			})
		}
	}
	return out
}

func newTestTrainer(store *memStore) *Trainer {
	return NewTrainer(trainCfg(), models.TargetDefinition{GainPct: 10, Days: 20}, store,
		WithClock(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }))
}

func TestTrainRefusesShortageWithoutTouchingArtifacts(t *testing.T) {
	store := &memStore{}
	samples := monthlySamples(10, 5, time.Time{})

	_, err := newTestTrainer(store).Train(context.Background(), samples, models.TrainModeSimple)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrTrainingDataShortage)

	var shortage *models.TrainingShortageError
	require.ErrorAs(t, err, &shortage)
	assert.Equal(t, 50, shortage.Samples)
	assert.Equal(t, 5, shortage.Tickers)
	assert.Empty(t, store.writes)
}

func TestTrainSimpleMode(t *testing.T) {
	store := &memStore{}
	samples := monthlySamples(20, 10, time.Time{})

	res, err := newTestTrainer(store).Train(context.Background(), samples, models.TrainModeSimple)
	require.NoError(t, err)

	assert.Equal(t, []string{"model", "feature_names", "thresholds", "report"}, store.writes)
	assert.Equal(t, []string{"x"}, store.names)
	assert.Greater(t, res.Metrics.Accuracy, 0.9)
	assert.Greater(t, res.Metrics.AUCROC, 0.9)
	assert.NoError(t, res.Thresholds.Validate())

	r := res.Report
	require.NotNil(t, r)
	assert.Equal(t, models.TrainModeSimple, r.Mode)
	assert.Equal(t, 200, r.TrainingSamples+r.ValidationSamples)
	assert.InDelta(t, 40, r.ValidationSamples, 1)
	assert.Len(t, r.TickersUsed, 10)
	assert.NotEmpty(t, r.RunID)
	assert.Equal(t, "mem/training_report.json", r.Files["report"])
	require.Len(t, r.TopFeatures, 1)
	assert.Equal(t, "x", r.TopFeatures[0].Name)
}

func TestTrainWalkForwardUsesOnlyOutOfSamplePredictions(t *testing.T) {
	store := &memStore{}
	flip := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := monthlySamples(48, 10, flip)

	res, err := newTestTrainer(store).Train(context.Background(), samples, models.TrainModeWalkForward)
	require.NoError(t, err)

	r := res.Report
	assert.Equal(t, models.TrainModeWalkForward, r.Mode)
	require.Len(t, r.Folds, 2)

	f1, f2 := r.Folds[0], r.Folds[1]
	assert.Equal(t, flip, f1.TrainEnd)
	assert.Equal(t, time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC), f1.TestEnd)
	assert.Equal(t, f1.TestEnd, f2.TrainEnd)
	assert.Equal(t, time.Date(2019, 7, 1, 0, 0, 0, 0, time.UTC), f2.TrainStart)
	assert.Equal(t, 360, f1.TrainSamples)
	assert.Equal(t, 60, f1.TestSamples)
	assert.Equal(t, 60, f2.TestSamples)

	assert.Equal(t, f1.TestSamples+f2.TestSamples, r.ValidationSamples)
	assert.Equal(t, 480, r.TrainingSamples)

	// every tested month has the inverted relationship, so held-out accuracy
	// collapses while an in-sample fit would stay above 0.7
	assert.Less(t, res.Metrics.Accuracy, 0.3)
	assert.Less(t, f1.Metrics.Accuracy, 0.3)
}

func TestTrainWalkForwardFallsBackWithoutFolds(t *testing.T) {
	store := &memStore{}
	samples := monthlySamples(12, 10, time.Time{})

	res, err := newTestTrainer(store).Train(context.Background(), samples, models.TrainModeWalkForward)
	require.NoError(t, err)
	assert.Equal(t, models.TrainModeSimple, res.Report.Mode)
	assert.Empty(t, res.Report.Folds)
}

func TestTrainRejectsUnknownMode(t *testing.T) {
	store := &memStore{}
	_, err := newTestTrainer(store).Train(context.Background(), monthlySamples(12, 10, time.Time{}), "nested")
	assert.Error(t, err)
	assert.Empty(t, store.writes)
}

func TestLoadModel(t *testing.T) {
	store := &memStore{}
	_, err := LoadModel(store)
	assert.ErrorIs(t, err, models.ErrModelUnavailable)

	_, err = newTestTrainer(store).Train(context.Background(), monthlySamples(12, 10, time.Time{}), models.TrainModeSimple)
	require.NoError(t, err)

	m, err := LoadModel(store)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, m.FeatureNames())
	assert.Greater(t, m.Proba([]float64{0.9}), 0.5)

	store.names = []string{"x", "y"}
	_, err = LoadModel(store)
	assert.ErrorIs(t, err, models.ErrFeatureDrift)
}

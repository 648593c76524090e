package repository

import (
	"context"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

// UniverseProvider returns the ordered, deduplicated list of tickers to scan.
type UniverseProvider interface {
	Tickers(ctx context.Context) ([]string, error)
}

// ResultPublisher fans analysis results out to downstream consumers.
type ResultPublisher interface {
	Publish(ctx context.Context, r *models.AggregateResult) error
	PublishBatch(ctx context.Context, results []*models.AggregateResult) error
	Close() error
}

// ResultStore persists scan results for later querying.
type ResultStore interface {
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, results []*models.AggregateResult) error
	Latest(ctx context.Context, ticker string, limit int) ([]*models.AggregateResult, error)
	Close() error
}

// ArtifactStore reads and atomically replaces trained model artifacts.
type ArtifactStore interface {
	Dir() string
	LoadModel() ([]byte, error)
	LoadFeatureNames() ([]string, error)
	LoadThresholds() (*models.Thresholds, error)
	LoadReport() (*models.TrainingReport, error)
	SaveModel(blob []byte) (string, error)
	SaveFeatureNames(names []string) (string, error)
	SaveThresholds(t models.Thresholds) (string, error)
	SaveReport(r *models.TrainingReport) (string, error)
}

type Metrics interface {
	RecordAnalysis(status models.Status, seconds float64)
	RecordModuleFailure(module string)
	RecordScan(tickers, matched int, seconds float64)
	RecordFetchError(source string)
	RecordCacheResult(backend string, hit bool)
	RecordTraining(mode string, samples int, m models.ClassificationMetrics)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

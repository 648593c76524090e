package service

import (
	"context"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

// Scorer evaluates one aspect of a bar history. Implementations are pure and hold only immutable parameters.
type Scorer interface {
	Name() string
	MaxScore() float64
	Analyze(bars models.Bars) (models.ModuleScore, error)
}

// Predictor maps an ordered feature vector to a probability in [0, 1].
type Predictor interface {
	// FeatureNames is the ordered feature list the predictor was trained on.
	FeatureNames() []string
	PredictProbability(ctx context.Context, vector []float64) (float64, error)
}

// BarFetcher is the price-history collaborator used by the engine and scanner.
type BarFetcher interface {
	FetchBars(ctx context.Context, ticker string, periodDays int) (models.Bars, error)
}

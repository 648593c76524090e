package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInsufficientData means a history is too short to be evaluated.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrModelUnavailable means no trained artifact exists in the model directory.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrTrainingDataShortage means a training run was refused before any artifact was touched.
	ErrTrainingDataShortage = errors.New("training data shortage")
	// ErrFeatureDrift means the live feature set differs from the one the model was trained on.
	ErrFeatureDrift = errors.New("feature drift")
	// ErrProviderUnavailable means the bar provider circuit is open.
	ErrProviderUnavailable = errors.New("bar provider unavailable")
)

// TrainingShortageError carries the counts that failed the minimums.
type TrainingShortageError struct {
	Samples    int
	Tickers    int
	MinSamples int
	MinTickers int
}

func (e *TrainingShortageError) Error() string {
	return fmt.Sprintf("training data shortage: %d samples from %d tickers (need %d samples, %d tickers)",
		e.Samples, e.Tickers, e.MinSamples, e.MinTickers)
}

func (e *TrainingShortageError) Is(target error) bool { return target == ErrTrainingDataShortage }

// FeatureDriftError lists the names that differ between training and inference.
type FeatureDriftError struct {
	Missing    []string
	Unexpected []string
}

func (e *FeatureDriftError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ","))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Unexpected, ","))
	}
	return "feature drift: " + strings.Join(parts, "; ")
}

func (e *FeatureDriftError) Is(target error) bool { return target == ErrFeatureDrift }

// ErrTrainingInProgress means another training run holds the model directory.
var ErrTrainingInProgress = errors.New("training already in progress")

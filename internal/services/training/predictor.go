package training

import (
	"errors"
	"fmt"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/services/features"
)

// LoadModel reads the stored model and checks it against the stored feature list.
// Missing artifacts yield models.ErrModelUnavailable; disagreeing columns yield a
// FeatureDriftError.
func LoadModel(store repository.ArtifactStore) (*GBTModel, error) {
	blob, err := store.LoadModel()
	if err != nil {
		if errors.Is(err, models.ErrModelUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("load model: %w", err)
	}
	m, err := DecodeGBT(blob)
	if err != nil {
		return nil, err
	}
	names, err := store.LoadFeatureNames()
	switch {
	case errors.Is(err, models.ErrModelUnavailable):
		return m, nil
	case err != nil:
		return nil, fmt.Errorf("load feature names: %w", err)
	}
	if err := features.CheckDrift(names, m.Features); err != nil {
		return nil, err
	}
	for i := range names {
		if names[i] != m.Features[i] {
			return nil, fmt.Errorf("feature order differs at %d: %s vs %s", i, names[i], m.Features[i])
		}
	}
	return m, nil
}

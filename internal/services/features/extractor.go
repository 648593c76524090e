package features

import (
	"sort"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

// Aggregate feature names appended after the per-module features.
const (
	FeatTotalScore    = "total_score"
	FeatWeightedScore = "weighted_score"
	FeatModulesActive = "modules_active"
	FeatPenaltyScore  = "penalty_score"
)

// Schema declares the numeric raw features each module emits.
type Schema map[string][]string

// Extractor flattens module scores into a fixed, sorted feature vector.
// The key set depends only on the schema, so a failed module contributes zeros
// instead of changing the vector layout.
type Extractor struct {
	schema Schema
	names  []string
}

// NewExtractor builds an extractor for the given module schema.
func NewExtractor(schema Schema) *Extractor {
	names := []string{FeatTotalScore, FeatWeightedScore, FeatModulesActive, FeatPenaltyScore}
	for module, keys := range schema {
		names = append(names, module+"_score", module+"_score_pct")
		for _, k := range keys {
			names = append(names, module+"_"+k)
		}
	}
	sort.Strings(names)
	names = dedupe(names)
	return &Extractor{schema: schema, names: names}
}

// Names is the sorted feature order shared by training and inference.
func (e *Extractor) Names() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// Aggregates are the engine-level values folded into the feature map.
type Aggregates struct {
	TotalScore    float64
	WeightedScore float64
	PenaltyScore  float64
}

// FromScores extracts the feature map from module scores. Every schema key is present.
func (e *Extractor) FromScores(scores []models.ModuleScore, agg Aggregates) map[string]float64 {
	out := make(map[string]float64, len(e.names))
	for _, n := range e.names {
		out[n] = 0
	}
	active := 0
	for _, s := range scores {
		keys, known := e.schema[s.Module]
		if !known {
			continue
		}
		out[s.Module+"_score"] = s.Score
		out[s.Module+"_score_pct"] = s.ScorePct()
		if s.Status {
			active++
		}
		for _, k := range keys {
			if v, ok := s.Features.Float(k); ok {
				out[s.Module+"_"+k] = v
			}
		}
	}
	out[FeatTotalScore] = agg.TotalScore
	out[FeatWeightedScore] = agg.WeightedScore
	out[FeatModulesActive] = float64(active)
	out[FeatPenaltyScore] = agg.PenaltyScore
	return out
}

// FromResult extracts the feature map from a finished aggregate result.
func (e *Extractor) FromResult(r *models.AggregateResult) map[string]float64 {
	return e.FromScores(r.Modules, Aggregates{
		TotalScore:    r.TotalScore,
		WeightedScore: r.WeightedScore,
		PenaltyScore:  r.PenaltyScore,
	})
}

// Vector orders a feature map by names. Missing keys become 0.
func Vector(features map[string]float64, names []string) []float64 {
	out := make([]float64, len(names))
	for i, n := range names {
		out[i] = features[n]
	}
	return out
}

// SortedNames returns the keys of a feature map in sorted order.
func SortedNames(features map[string]float64) []string {
	names := make([]string, 0, len(features))
	for k := range features {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// UnionNames returns the sorted union of keys across feature maps.
func UnionNames(maps ...map[string]float64) []string {
	set := make(map[string]struct{})
	for _, m := range maps {
		for k := range m {
			set[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for k := range set {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// CheckDrift compares the live feature names with the trained list.
func CheckDrift(live, trained []string) error {
	liveSet := make(map[string]struct{}, len(live))
	for _, n := range live {
		liveSet[n] = struct{}{}
	}
	trainedSet := make(map[string]struct{}, len(trained))
	for _, n := range trained {
		trainedSet[n] = struct{}{}
	}
	drift := &models.FeatureDriftError{}
	for _, n := range trained {
		if _, ok := liveSet[n]; !ok {
			drift.Missing = append(drift.Missing, n)
		}
	}
	for _, n := range live {
		if _, ok := trainedSet[n]; !ok {
			drift.Unexpected = append(drift.Unexpected, n)
		}
	}
	if len(drift.Missing) == 0 && len(drift.Unexpected) == 0 {
		return nil
	}
	sort.Strings(drift.Missing)
	sort.Strings(drift.Unexpected)
	return drift
}

func dedupe(sorted []string) []string {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, s := range sorted[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}

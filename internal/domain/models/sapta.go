package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Module names in evaluation order.
const (
	ModuleAbsorption       = "absorption"
	ModuleCompression      = "compression"
	ModuleBBSqueeze        = "bb_squeeze"
	ModuleElliott          = "elliott"
	ModuleTimeProjection   = "time_projection"
	ModuleAntiDistribution = "anti_distribution"
)

// ModuleNames lists every scorer in its canonical order.
var ModuleNames = []string{
	ModuleAbsorption,
	ModuleCompression,
	ModuleBBSqueeze,
	ModuleElliott,
	ModuleTimeProjection,
	ModuleAntiDistribution,
}

// Status is the readiness classification of an instrument.
type Status string

const (
	StatusPreMarkup Status = "PRE-MARKUP"
	StatusSiap      Status = "SIAP"
	StatusWatchlist Status = "WATCHLIST"
	StatusSkip      Status = "ABAIKAN"
)

// Rank orders statuses from SKIP (0) to PRE-MARKUP (3).
func (s Status) Rank() int {
	switch s {
	case StatusPreMarkup:
		return 3
	case StatusSiap:
		return 2
	case StatusWatchlist:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s ranks at or above min.
func (s Status) AtLeast(min Status) bool { return s.Rank() >= min.Rank() }

// ParseStatus accepts both the display form and the enum-style form ("PRE_MARKUP", "SKIP").
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PRE-MARKUP", "PRE_MARKUP", "PREMARKUP":
		return StatusPreMarkup, nil
	case "SIAP", "READY":
		return StatusSiap, nil
	case "WATCHLIST":
		return StatusWatchlist, nil
	case "ABAIKAN", "SKIP", "":
		return StatusSkip, nil
	default:
		return StatusSkip, fmt.Errorf("unknown status %q", s)
	}
}

// Confidence is the trust level attached to a status.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// WavePhase is the Elliott wave position estimated by the elliott scorer.
type WavePhase string

const (
	Wave1       WavePhase = "wave1"
	Wave2       WavePhase = "wave2"
	Wave3       WavePhase = "wave3"
	Wave4       WavePhase = "wave4"
	Wave5       WavePhase = "wave5"
	WaveA       WavePhase = "wave_a"
	WaveB       WavePhase = "wave_b"
	WaveC       WavePhase = "wave_c"
	WaveUnknown WavePhase = "unknown"
)

// RawFeatures holds per-module measurements. Values are float64, int, bool or string.
type RawFeatures map[string]any

// Float returns a numeric feature. Booleans map to 1 and 0; strings are not numeric.
func (f RawFeatures) Float(key string) (float64, bool) {
	v, ok := f[key]
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// Bool returns a boolean feature, treating non-zero numbers as true.
func (f RawFeatures) Bool(key string) bool {
	switch v := f[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}

// String returns a string feature or "".
func (f RawFeatures) String(key string) string {
	if s, ok := f[key].(string); ok {
		return s
	}
	return ""
}

// ToFloat converts a numeric or boolean feature value.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// ModuleScore is the output of one scorer.
type ModuleScore struct {
	Module   string      `json:"module"`
	Score    float64     `json:"score"`
	MaxScore float64     `json:"max_score"`
	Status   bool        `json:"status"`
	Details  string      `json:"details"`
	Signals  []string    `json:"signals"`
	Features RawFeatures `json:"raw_features"`
}

// NewModuleScore builds a score clamped to [0, max].
func NewModuleScore(module string, score, max float64, status bool, details string, signals []string, features RawFeatures) ModuleScore {
	if math.IsNaN(score) {
		score = 0
	}
	score = math.Max(0, math.Min(score, max))
	if signals == nil {
		signals = []string{}
	}
	if features == nil {
		features = RawFeatures{}
	}
	return ModuleScore{
		Module:   module,
		Score:    score,
		MaxScore: max,
		Status:   status,
		Details:  details,
		Signals:  signals,
		Features: features,
	}
}

// FailedModuleScore is substituted for a scorer that returned an error or panicked.
func FailedModuleScore(module string, max float64, cause string) ModuleScore {
	if r := []rune(cause); len(r) > 50 {
		cause = string(r[:50])
	}
	return NewModuleScore(module, 0, max, false, "Analysis failed: "+cause, nil, nil)
}

// ScorePct is the score as a percentage of the module maximum.
func (m ModuleScore) ScorePct() float64 {
	if m.MaxScore <= 0 {
		return 0
	}
	return m.Score / m.MaxScore * 100
}

// Snapshot is the presentation form of a ModuleScore.
type Snapshot struct {
	Score    float64  `json:"score"`
	MaxScore float64  `json:"max_score"`
	Status   bool     `json:"status"`
	Details  string   `json:"details"`
	Signals  []string `json:"signals"`
}

func (m ModuleScore) Snapshot() Snapshot {
	return Snapshot{
		Score:    math.Round(m.Score*100) / 100,
		MaxScore: m.MaxScore,
		Status:   m.Status,
		Details:  m.Details,
		Signals:  m.Signals,
	}
}

// AggregateResult is the complete, immutable outcome of analyzing one ticker.
type AggregateResult struct {
	Ticker    string    `json:"ticker"`
	Timestamp time.Time `json:"timestamp"`
	AsOf      time.Time `json:"as_of"`

	Modules []ModuleScore `json:"modules"`

	TotalScore       float64 `json:"total_score"`
	WeightedScore    float64 `json:"weighted_score"`
	PenaltyScore     float64 `json:"penalty_score"`
	FinalScore       float64 `json:"final_score"`
	MaxPossibleScore float64 `json:"max_possible_score"`
	ModulesActive    int     `json:"modules_active"`

	Status        Status     `json:"status"`
	Confidence    Confidence `json:"confidence"`
	MLProbability *float64   `json:"ml_probability,omitempty"`

	WavePhase       WavePhase `json:"wave_phase"`
	FibRetracement  *float64  `json:"fib_retracement,omitempty"`
	ProjectedWindow string    `json:"projected_breakout_window,omitempty"`
	DaysToWindow    *int      `json:"days_to_window,omitempty"`

	Notes     []string `json:"notes"`
	Warnings  []string `json:"warnings"`
	Reasons   []string `json:"reasons"`
	Penalties []string `json:"penalties"`

	Features map[string]any `json:"features"`
}

// Module returns the score of the named module.
func (r *AggregateResult) Module(name string) (ModuleScore, bool) {
	for _, m := range r.Modules {
		if m.Module == name {
			return m, true
		}
	}
	return ModuleScore{}, false
}

// ScorePct is the final score relative to MaxPossibleScore.
func (r *AggregateResult) ScorePct() float64 {
	if r.MaxPossibleScore <= 0 {
		return 0
	}
	return r.FinalScore / r.MaxPossibleScore * 100
}

// Snapshots returns the per-module presentation map.
func (r *AggregateResult) Snapshots() map[string]Snapshot {
	out := make(map[string]Snapshot, len(r.Modules))
	for _, m := range r.Modules {
		out[m.Module] = m.Snapshot()
	}
	return out
}

// ScanProgress is reported while a scan runs.
type ScanProgress struct {
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	Ticker  string `json:"ticker"`
	Matched int    `json:"matched"`
}

package analytics

import (
	"fmt"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	domsvc "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/service"
)

const detailsInsufficient = "Insufficient data"

// baseScorer carries the identity and parameters shared by every scorer.
type baseScorer struct {
	name   string
	max    float64
	params models.ScorerParams
}

func newBase(name string, cfg *models.SaptaConfig) baseScorer {
	return baseScorer{name: name, max: cfg.MaxScore(name), params: cfg.Params}
}

func (b baseScorer) Name() string      { return b.name }
func (b baseScorer) MaxScore() float64 { return b.max }

func (b baseScorer) result(score float64, status bool, details string, signals []string, f models.RawFeatures) models.ModuleScore {
	return models.NewModuleScore(b.name, score, b.max, status, details, signals, f)
}

func (b baseScorer) insufficient() models.ModuleScore {
	return b.result(0, false, detailsInsufficient, nil, nil)
}

// Registry holds scorers in explicit registration order.
type Registry struct {
	order   []string
	scorers map[string]domsvc.Scorer
}

func NewRegistry() *Registry {
	return &Registry{scorers: make(map[string]domsvc.Scorer)}
}

// Register appends a scorer. Names must be unique.
func (r *Registry) Register(s domsvc.Scorer) error {
	if _, exists := r.scorers[s.Name()]; exists {
		return fmt.Errorf("scorer %q already registered", s.Name())
	}
	r.order = append(r.order, s.Name())
	r.scorers[s.Name()] = s
	return nil
}

// MustRegister panics on duplicate names; used for the built-in set.
func (r *Registry) MustRegister(s domsvc.Scorer) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Get looks up a scorer by name.
func (r *Registry) Get(name string) (domsvc.Scorer, bool) {
	s, ok := r.scorers[name]
	return s, ok
}

// Scorers returns the scorers in registration order.
func (r *Registry) Scorers() []domsvc.Scorer {
	out := make([]domsvc.Scorer, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.scorers[n])
	}
	return out
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len is the number of registered scorers.
func (r *Registry) Len() int { return len(r.order) }

// FeatureSchema returns the numeric raw feature keys each registered scorer emits.
func (r *Registry) FeatureSchema() map[string][]string {
	out := make(map[string][]string, len(r.order))
	for _, n := range r.order {
		if fs, ok := r.scorers[n].(interface{ FeatureKeys() []string }); ok {
			out[n] = fs.FeatureKeys()
		} else {
			out[n] = nil
		}
	}
	return out
}

// DefaultRegistry registers the six built-in scorers in canonical order.
func DefaultRegistry(cfg *models.SaptaConfig, opts ...TimeProjectionOption) *Registry {
	r := NewRegistry()
	r.MustRegister(NewAbsorptionScorer(cfg))
	r.MustRegister(NewCompressionScorer(cfg))
	r.MustRegister(NewBBSqueezeScorer(cfg))
	r.MustRegister(NewElliottScorer(cfg))
	r.MustRegister(NewTimeProjectionScorer(cfg, opts...))
	r.MustRegister(NewAntiDistributionScorer(cfg))
	return r
}

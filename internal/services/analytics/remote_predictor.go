package analytics

import (
	"context"
	"fmt"

	domsvc "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/service"
)

// HTTPPredictor delegates scoring to an external model service exposing
// GET /model/features and POST /model/predict.
type HTTPPredictor struct {
	base     *HTTPServiceBase
	names    []string
	attempts int
}

type predictReq struct {
	Features []float64 `json:"features"`
	Names    []string  `json:"names"`
}

type predictResp struct {
	Probability float64 `json:"probability"`
}

type featuresResp struct {
	Names []string `json:"names"`
}

// NewHTTPPredictor fetches the trained feature layout from the service.
func NewHTTPPredictor(ctx context.Context, base *HTTPServiceBase, attempts int) (*HTTPPredictor, error) {
	var fr featuresResp
	if err := base.GetJSON(ctx, "/model/features", &fr); err != nil {
		return nil, fmt.Errorf("fetch feature names: %w", err)
	}
	if len(fr.Names) == 0 {
		return nil, fmt.Errorf("model service reported no features")
	}
	return &HTTPPredictor{base: base, names: fr.Names, attempts: attempts}, nil
}

func (p *HTTPPredictor) FeatureNames() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

func (p *HTTPPredictor) PredictProbability(ctx context.Context, vector []float64) (float64, error) {
	if len(vector) != len(p.names) {
		return 0, fmt.Errorf("vector has %d values, model expects %d", len(vector), len(p.names))
	}
	var pr predictResp
	if err := p.base.PostJSONWithRetry(ctx, "/model/predict", predictReq{Features: vector, Names: p.names}, &pr, p.attempts); err != nil {
		return 0, fmt.Errorf("remote predict: %w", err)
	}
	if pr.Probability < 0 || pr.Probability > 1 {
		return 0, fmt.Errorf("remote probability %.4f outside [0,1]", pr.Probability)
	}
	return pr.Probability, nil
}

var _ domsvc.Predictor = (*HTTPPredictor)(nil)

// Package training fits the readiness classifier and derives score thresholds.
package training

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	domsvc "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/service"
)

const modelFormat = "gbt-logloss/v1"

// GBTParams configures the boosted-tree learner.
type GBTParams struct {
	NumTrees       int
	MaxDepth       int
	LearningRate   float64
	MinChildWeight float64
	L2             float64
}

// ParamsFrom extracts learner settings from the training config.
func ParamsFrom(c models.TrainingConfig) GBTParams {
	return GBTParams{
		NumTrees:       c.NumTrees,
		MaxDepth:       c.MaxDepth,
		LearningRate:   c.LearningRate,
		MinChildWeight: c.MinChildWeight,
		L2:             c.L2,
	}
}

type treeNode struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
}

// Tree is a regression tree stored as a flat node array rooted at index 0.
type Tree struct {
	Nodes []treeNode `json:"nodes"`
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for !t.Nodes[i].Leaf {
		n := t.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

// GBTModel is a binary classifier boosted on log-loss. It serializes to JSON.
type GBTModel struct {
	Format     string             `json:"format"`
	Features   []string           `json:"feature_names"`
	BaseScore  float64            `json:"base_score"`
	Trees      []Tree             `json:"trees"`
	Importance map[string]float64 `json:"feature_importance"`
}

// FitGBT trains on rows X (ordered like names) with 0/1 labels y.
func FitGBT(X [][]float64, y []int, names []string, p GBTParams) (*GBTModel, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("fit gbt: %d rows, %d labels", len(X), len(y))
	}
	for i, row := range X {
		if len(row) != len(names) {
			return nil, fmt.Errorf("fit gbt: row %d has %d values, want %d", i, len(row), len(names))
		}
	}

	pos := 0
	for _, v := range y {
		pos += v
	}
	prior := math.Min(math.Max(float64(pos)/float64(len(y)), 1e-6), 1-1e-6)

	m := &GBTModel{
		Format:    modelFormat,
		Features:  append([]string(nil), names...),
		BaseScore: math.Log(prior / (1 - prior)),
	}

	n := len(X)
	margin := make([]float64, n)
	for i := range margin {
		margin[i] = m.BaseScore
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	gain := make([]float64, len(names))
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	for t := 0; t < p.NumTrees; t++ {
		for i := range margin {
			pr := sigmoid(margin[i])
			grad[i] = pr - float64(y[i])
			hess[i] = math.Max(pr*(1-pr), 1e-12)
		}
		b := treeBuilder{X: X, grad: grad, hess: hess, p: p, gain: gain}
		b.build(all, 0)
		tree := Tree{Nodes: b.nodes}
		m.Trees = append(m.Trees, tree)
		for i := range margin {
			margin[i] += tree.predict(X[i])
		}
	}

	m.Importance = normalizeImportance(names, gain)
	return m, nil
}

type treeBuilder struct {
	X     [][]float64
	grad  []float64
	hess  []float64
	p     GBTParams
	gain  []float64
	nodes []treeNode
}

func (b *treeBuilder) build(idx []int, depth int) int {
	var G, H float64
	for _, i := range idx {
		G += b.grad[i]
		H += b.hess[i]
	}
	self := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{})

	if depth < b.p.MaxDepth && len(idx) >= 2 {
		if f, thr, g, ok := b.bestSplit(idx, G, H); ok {
			var left, right []int
			for _, i := range idx {
				if b.X[i][f] <= thr {
					left = append(left, i)
				} else {
					right = append(right, i)
				}
			}
			b.gain[f] += g
			l := b.build(left, depth+1)
			r := b.build(right, depth+1)
			b.nodes[self] = treeNode{Feature: f, Threshold: thr, Left: l, Right: r}
			return self
		}
	}
	b.nodes[self] = treeNode{Leaf: true, Value: -G / (H + b.p.L2) * b.p.LearningRate}
	return self
}

func (b *treeBuilder) bestSplit(idx []int, G, H float64) (feature int, threshold, gain float64, ok bool) {
	parent := G * G / (H + b.p.L2)
	order := make([]int, len(idx))
	for f := range b.X[idx[0]] {
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool { return b.X[order[a]][f] < b.X[order[c]][f] })

		var gl, hl float64
		for k := 0; k < len(order)-1; k++ {
			i := order[k]
			gl += b.grad[i]
			hl += b.hess[i]
			cur, next := b.X[i][f], b.X[order[k+1]][f]
			if cur == next {
				continue
			}
			hr := H - hl
			if hl < b.p.MinChildWeight || hr < b.p.MinChildWeight {
				continue
			}
			gr := G - gl
			g := gl*gl/(hl+b.p.L2) + gr*gr/(hr+b.p.L2) - parent
			if g > gain+1e-12 {
				feature, threshold, gain, ok = f, (cur+next)/2, g, true
			}
		}
	}
	return feature, threshold, gain, ok
}

func normalizeImportance(names []string, gain []float64) map[string]float64 {
	total := 0.0
	for _, g := range gain {
		total += g
	}
	out := make(map[string]float64, len(names))
	for i, n := range names {
		if total > 0 {
			out[n] = gain[i] / total
		} else {
			out[n] = 0
		}
	}
	return out
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// Proba returns P(label = 1) for one row.
func (m *GBTModel) Proba(x []float64) float64 {
	s := m.BaseScore
	for i := range m.Trees {
		s += m.Trees[i].predict(x)
	}
	return sigmoid(s)
}

// ProbaBatch scores every row.
func (m *GBTModel) ProbaBatch(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = m.Proba(x)
	}
	return out
}

// FeatureNames is the column order the model was trained on.
func (m *GBTModel) FeatureNames() []string {
	return append([]string(nil), m.Features...)
}

func (m *GBTModel) PredictProbability(_ context.Context, vector []float64) (float64, error) {
	if len(vector) != len(m.Features) {
		return 0, fmt.Errorf("vector has %d values, model expects %d", len(vector), len(m.Features))
	}
	return m.Proba(vector), nil
}

// TopFeatures returns the k most important features, heaviest first.
func (m *GBTModel) TopFeatures(k int) []models.FeatureWeight {
	out := make([]models.FeatureWeight, 0, len(m.Importance))
	for n, w := range m.Importance {
		out = append(out, models.FeatureWeight{Name: n, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Name < out[j].Name
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// Encode serializes the model to its JSON blob.
func (m *GBTModel) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeGBT parses a model blob and checks its structure.
func DecodeGBT(blob []byte) (*GBTModel, error) {
	var m GBTModel
	if err := json.Unmarshal(blob, &m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if m.Format != modelFormat {
		return nil, fmt.Errorf("decode model: unsupported format %q", m.Format)
	}
	for ti, t := range m.Trees {
		if len(t.Nodes) == 0 {
			return nil, fmt.Errorf("decode model: tree %d is empty", ti)
		}
		for _, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= len(m.Features) || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return nil, fmt.Errorf("decode model: tree %d has an invalid node", ti)
			}
		}
	}
	return &m, nil
}

var _ domsvc.Predictor = (*GBTModel)(nil)

package models

import (
	"fmt"
	"time"
)

// Label is the forward-looking outcome computed at one index of a close series.
type Label struct {
	Index            int       `json:"index"`
	Date             time.Time `json:"date"`
	ForwardReturn    float64   `json:"forward_return"`
	MaxForwardReturn float64   `json:"max_forward_return"`
	HitTarget        int       `json:"hit_target"`
	DaysToTarget     *int      `json:"days_to_target,omitempty"`
}

// LabelStats summarizes a set of labels.
type LabelStats struct {
	TotalSamples       int      `json:"total_samples"`
	PositiveSamples    int      `json:"positive_samples"`
	NegativeSamples    int      `json:"negative_samples"`
	HitRate            float64  `json:"hit_rate"`
	AvgForwardReturn   float64  `json:"avg_forward_return"`
	AvgMaxReturn       float64  `json:"avg_max_return"`
	AvgDaysToTarget    *float64 `json:"avg_days_to_target,omitempty"`
	MedianDaysToTarget *float64 `json:"median_days_to_target,omitempty"`
}

// LabeledSample pairs a feature map with its label. It lives only for the duration of a training run.
type LabeledSample struct {
	Ticker        string             `json:"ticker"`
	Date          time.Time          `json:"date"`
	Features      map[string]float64 `json:"features"`
	Label         int                `json:"label"`
	ForwardReturn float64            `json:"forward_return"`
	MaxReturn     float64            `json:"max_return"`
	DaysToTarget  *int               `json:"days_to_target,omitempty"`
}

// TrainMode selects the validation scheme.
type TrainMode string

const (
	TrainModeSimple      TrainMode = "simple"
	TrainModeWalkForward TrainMode = "walk_forward"
)

// ClassificationMetrics are computed on held-out predictions only.
type ClassificationMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	AUCROC    float64 `json:"auc_roc"`
}

// FeatureWeight is one entry of a feature-importance ranking.
type FeatureWeight struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// FoldResult describes one walk-forward fold.
type FoldResult struct {
	Fold         int                   `json:"fold"`
	TrainStart   time.Time             `json:"train_start"`
	TrainEnd     time.Time             `json:"train_end"`
	TestEnd      time.Time             `json:"test_end"`
	TrainSamples int                   `json:"train_samples"`
	TestSamples  int                   `json:"test_samples"`
	Metrics      ClassificationMetrics `json:"metrics"`
}

// LabelDistribution counts classes in the training set.
type LabelDistribution struct {
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
	Ratio    float64 `json:"positive_ratio"`
}

// ModelInfo is the metadata persisted with a model.
type ModelInfo struct {
	Version           string                `json:"version"`
	RunID             string                `json:"run_id"`
	TrainedAt         time.Time             `json:"trained_at"`
	Mode              TrainMode             `json:"mode"`
	TrainingSamples   int                   `json:"training_samples"`
	ValidationSamples int                   `json:"validation_samples"`
	Metrics           ClassificationMetrics `json:"metrics"`
	Thresholds        Thresholds            `json:"thresholds"`
	FeatureImportance map[string]float64    `json:"feature_importance"`
	Target            TargetDefinition      `json:"target"`
	TickersUsed       []string              `json:"tickers_used"`
}

// TrainingReport is written next to the model after every successful run.
type TrainingReport struct {
	ModelInfo
	Config            map[string]any    `json:"config"`
	DataStats         map[string]any    `json:"data_stats"`
	LabelDistribution LabelDistribution `json:"label_distribution"`
	TopFeatures       []FeatureWeight   `json:"top_features"`
	Folds             []FoldResult      `json:"folds,omitempty"`
	Files             map[string]string `json:"files"`
}

// TrainResult is returned to callers of a training run.
type TrainResult struct {
	ModelPath         string                `json:"model_path"`
	ThresholdsPath    string                `json:"thresholds_path"`
	FeatureNamesPath  string                `json:"feature_names_path"`
	ReportPath        string                `json:"report_path"`
	Metrics           ClassificationMetrics `json:"metrics"`
	FeatureImportance map[string]float64    `json:"feature_importance"`
	Thresholds        Thresholds            `json:"thresholds"`
	Report            *TrainingReport       `json:"report,omitempty"`
}

// TrainingConfig controls sample generation, validation and the boosted-tree learner.
type TrainingConfig struct {
	MinSamples int     `yaml:"min_samples" json:"min_samples" default:"100"`
	MinTickers int     `yaml:"min_tickers" json:"min_tickers" default:"10"`
	TestSize   float64 `yaml:"test_size" json:"test_size" default:"0.2"`
	Seed       int64   `yaml:"seed" json:"seed" default:"42"`

	TrainMonths  int `yaml:"train_months" json:"train_months" default:"36"`
	TestMonths   int `yaml:"test_months" json:"test_months" default:"6"`
	MinFoldTrain int `yaml:"min_fold_train" json:"min_fold_train" default:"50"`
	MinFoldTest  int `yaml:"min_fold_test" json:"min_fold_test" default:"10"`

	WindowBars  int `yaml:"window_bars" json:"window_bars" default:"120"`
	Step        int `yaml:"step" json:"step" default:"5"`
	Concurrency int `yaml:"concurrency" json:"concurrency" default:"4"`

	NumTrees       int     `yaml:"num_trees" json:"num_trees" default:"100"`
	MaxDepth       int     `yaml:"max_depth" json:"max_depth" default:"6"`
	LearningRate   float64 `yaml:"learning_rate" json:"learning_rate" default:"0.1"`
	MinChildWeight float64 `yaml:"min_child_weight" json:"min_child_weight" default:"1"`
	L2             float64 `yaml:"l2" json:"l2" default:"1"`
}

// Validate reports the first invalid training setting.
func (c TrainingConfig) Validate() error {
	switch {
	case c.TestSize <= 0 || c.TestSize >= 1:
		return fmt.Errorf("test_size must be within (0,1), got %.2f", c.TestSize)
	case c.TrainMonths <= 0 || c.TestMonths <= 0:
		return fmt.Errorf("train_months and test_months must be > 0")
	case c.WindowBars <= 0 || c.Step <= 0:
		return fmt.Errorf("window_bars and step must be > 0")
	case c.NumTrees <= 0 || c.MaxDepth <= 0 || c.LearningRate <= 0:
		return fmt.Errorf("num_trees, max_depth and learning_rate must be > 0")
	}
	return nil
}

package training

import (
	"sort"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

// Evaluate scores probabilities against labels with a 0.5 decision cut.
// Undefined ratios are 0; AUC is 0 when only one class is present.
func Evaluate(y []int, proba []float64) models.ClassificationMetrics {
	var m models.ClassificationMetrics
	if len(y) == 0 {
		return m
	}
	var tp, fp, tn, fn int
	for i, p := range proba {
		pred := 0
		if p >= 0.5 {
			pred = 1
		}
		switch {
		case pred == 1 && y[i] == 1:
			tp++
		case pred == 1 && y[i] == 0:
			fp++
		case pred == 0 && y[i] == 0:
			tn++
		default:
			fn++
		}
	}
	m.Accuracy = float64(tp+tn) / float64(len(y))
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	m.AUCROC = AUC(y, proba)
	return m
}

// AUC is the Mann-Whitney estimate of ROC area with tied scores sharing ranks.
func AUC(y []int, proba []float64) float64 {
	idx := make([]int, len(proba))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return proba[idx[a]] < proba[idx[b]] })

	ranks := make([]float64, len(proba))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && proba[idx[j+1]] == proba[idx[i]] {
			j++
		}
		r := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = r
		}
		i = j + 1
	}

	var pos, neg int
	var rankSum float64
	for i, v := range y {
		if v == 1 {
			pos++
			rankSum += ranks[i]
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0
	}
	return (rankSum - float64(pos*(pos+1))/2) / float64(pos*neg)
}

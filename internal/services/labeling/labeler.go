// Package labeling turns price histories into forward-looking training labels.
package labeling

import (
	"sort"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

// Labeler marks an index positive when the close reaches entry*(1+GainPct/100)
// within Days bars.
type Labeler struct {
	target models.TargetDefinition
}

func NewLabeler(target models.TargetDefinition) *Labeler {
	return &Labeler{target: target}
}

// Target is the label definition in use.
func (l *Labeler) Target() models.TargetDefinition { return l.target }

// LabelAt labels bar i. ok is false when no later bar exists or the entry price is not positive.
// Windows running past the end of the series are truncated to the last bar.
func (l *Labeler) LabelAt(bars models.Bars, i int) (models.Label, bool) {
	n := len(bars)
	if i < 0 || i >= n-1 {
		return models.Label{}, false
	}
	entry := bars[i].Close
	if entry <= 0 {
		return models.Label{}, false
	}
	end := min(i+l.target.Days, n-1)
	targetPrice := entry * (1 + l.target.GainPct/100)

	lbl := models.Label{
		Index:         i,
		Date:          bars[i].Date,
		ForwardReturn: (bars[end].Close - entry) / entry * 100,
	}
	best := bars[i+1].Close
	for j := i + 1; j <= end; j++ {
		c := bars[j].Close
		if c > best {
			best = c
		}
		if lbl.DaysToTarget == nil && c >= targetPrice {
			d := j - i
			lbl.DaysToTarget = &d
		}
	}
	lbl.MaxForwardReturn = (best - entry) / entry * 100
	if lbl.MaxForwardReturn >= l.target.GainPct {
		lbl.HitTarget = 1
	}
	return lbl, true
}

// LabelSeries labels every index that has at least one later bar.
func (l *Labeler) LabelSeries(bars models.Bars) []models.Label {
	out := make([]models.Label, 0, len(bars))
	for i := range bars {
		if lbl, ok := l.LabelAt(bars, i); ok {
			out = append(out, lbl)
		}
	}
	return out
}

// Stats summarizes labels. Day statistics cover only labels that hit the target.
func Stats(labels []models.Label) models.LabelStats {
	var st models.LabelStats
	st.TotalSamples = len(labels)
	if len(labels) == 0 {
		return st
	}
	var fwd, mx float64
	var days []int
	for _, l := range labels {
		if l.HitTarget == 1 {
			st.PositiveSamples++
		}
		fwd += l.ForwardReturn
		mx += l.MaxForwardReturn
		if l.DaysToTarget != nil {
			days = append(days, *l.DaysToTarget)
		}
	}
	st.NegativeSamples = st.TotalSamples - st.PositiveSamples
	st.HitRate = float64(st.PositiveSamples) / float64(st.TotalSamples) * 100
	st.AvgForwardReturn = fwd / float64(st.TotalSamples)
	st.AvgMaxReturn = mx / float64(st.TotalSamples)

	if len(days) > 0 {
		sort.Ints(days)
		sum := 0
		for _, d := range days {
			sum += d
		}
		avg := float64(sum) / float64(len(days))
		var med float64
		if k := len(days); k%2 == 1 {
			med = float64(days[k/2])
		} else {
			med = float64(days[k/2-1]+days[k/2]) / 2
		}
		st.AvgDaysToTarget = &avg
		st.MedianDaysToTarget = &med
	}
	return st
}

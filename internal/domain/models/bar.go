package models

import "time"

// Bar is one daily OHLCV record. Slices of bars are always ordered by Date ascending.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Bars is an ordered price history.
type Bars []Bar

func (b Bars) Opens() []float64 {
	out := make([]float64, len(b))
	for i := range b {
		out[i] = b[i].Open
	}
	return out
}

func (b Bars) Highs() []float64 {
	out := make([]float64, len(b))
	for i := range b {
		out[i] = b[i].High
	}
	return out
}

func (b Bars) Lows() []float64 {
	out := make([]float64, len(b))
	for i := range b {
		out[i] = b[i].Low
	}
	return out
}

func (b Bars) Closes() []float64 {
	out := make([]float64, len(b))
	for i := range b {
		out[i] = b[i].Close
	}
	return out
}

func (b Bars) Volumes() []float64 {
	out := make([]float64, len(b))
	for i := range b {
		out[i] = b[i].Volume
	}
	return out
}

// Tail returns the last n bars (or all of them when n exceeds the length).
func (b Bars) Tail(n int) Bars {
	if n >= len(b) {
		return b
	}
	if n <= 0 {
		return Bars{}
	}
	return b[len(b)-n:]
}

// Last returns the most recent bar. Callers must check the length first.
func (b Bars) Last() Bar { return b[len(b)-1] }

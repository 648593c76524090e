package analytics

import (
	"fmt"
	"time"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	domsvc "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/service"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/services/features"
)

// TimeProjectionScorer scores Fibonacci day counts from the significant low, plus
// planetary aspects and the lunar phase when those sources are available.
type TimeProjectionScorer struct {
	baseScorer
	fibWindows   []int
	fibTolerance int
	planetary    bool
	lunar        bool
	ephemeris    Ephemeris
	moon         LunarCalendar
}

// TimeProjectionOption customizes a TimeProjectionScorer.
type TimeProjectionOption func(*TimeProjectionScorer)

// WithEphemeris sets the planetary source. nil disables planetary scoring.
func WithEphemeris(e Ephemeris) TimeProjectionOption {
	return func(s *TimeProjectionScorer) { s.ephemeris = e }
}

// WithLunar sets the lunar source. nil disables lunar scoring.
func WithLunar(l LunarCalendar) TimeProjectionOption {
	return func(s *TimeProjectionScorer) { s.moon = l }
}

func NewTimeProjectionScorer(cfg *models.SaptaConfig, opts ...TimeProjectionOption) *TimeProjectionScorer {
	windows := cfg.FibWindows
	if len(windows) == 0 {
		windows = []int{21, 34, 55, 89, 144}
	}
	s := &TimeProjectionScorer{
		baseScorer:   newBase(models.ModuleTimeProjection, cfg),
		fibWindows:   windows,
		fibTolerance: cfg.FibTolerance,
		planetary:    cfg.IncludePlanetary,
		lunar:        cfg.IncludeLunar,
		ephemeris:    KeplerEphemeris{},
		moon:         MeanLunation{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TimeProjectionScorer) FeatureKeys() []string {
	return []string{
		"days_since_significant_low", "in_fib_window", "nearest_fib", "days_to_next_window", "next_fib_day",
		"jupiter_saturn_angle", "mercury_longitude", "lunar_phase", "days_to_new_moon",
	}
}

func (s *TimeProjectionScorer) Analyze(bars models.Bars) (models.ModuleScore, error) {
	p := s.params
	if len(bars) < p.TimeMinBars {
		return s.insufficient(), nil
	}

	var (
		score   float64
		signals []string
		f       = models.RawFeatures{}
	)
	current := dateOnly(bars.Last().Date)

	pts, sigs, window := s.fibTime(bars, current, f)
	score += pts
	signals = append(signals, sigs...)

	if s.planetary && !current.IsZero() {
		pts, sigs, err := s.planetaryAspects(current, f)
		if err != nil {
			f["planetary_error"] = err.Error()
		} else {
			score += pts
			signals = append(signals, sigs...)
		}
	}
	if s.lunar && !current.IsZero() {
		pts, sigs, err := s.lunarPhase(current, f)
		if err != nil {
			f["lunar_error"] = err.Error()
		} else {
			score += pts
			signals = append(signals, sigs...)
		}
	}

	days, _ := f["days_since_significant_low"].(int)
	var details string
	switch {
	case f.Bool("in_fib_window"):
		details = fmt.Sprintf("In Fib window: Day %d from low", days)
	case window != "":
		dtw, _ := f["days_to_next_window"].(int)
		details = fmt.Sprintf("Next window: %s (%d days)", window, dtw)
	default:
		details = fmt.Sprintf("Day %d from low", days)
	}
	if window != "" {
		f["projected_window"] = window
	}

	return s.result(score, score >= 6, details, signals, f), nil
}

// fibTime measures calendar days from the lowest low of the lookback and projects
// the next Fibonacci window.
func (s *TimeProjectionScorer) fibTime(bars models.Bars, current time.Time, f models.RawFeatures) (float64, []string, string) {
	var (
		score   float64
		signals []string
	)
	hist := bars.Tail(min(s.params.TimeLookback, len(bars)))
	idx := features.ArgMin(hist.Lows())
	low := hist[idx]
	// undated bars are counted instead of measured in calendar days
	dated := !low.Date.IsZero() && !current.IsZero()
	days := len(hist) - 1 - idx
	if dated {
		lowDate := dateOnly(low.Date)
		days = int(current.Sub(lowDate).Hours() / 24)
		f["significant_low_date"] = lowDate.Format("2006-01-02")
	}
	f["days_since_significant_low"] = days

	inWindow := false
	for _, fib := range s.fibWindows {
		if abs(days-fib) <= s.fibTolerance {
			score += 8
			signals = append(signals, fmt.Sprintf("Day %d from low (Fib %d window)", days, fib))
			inWindow = true
			f["nearest_fib"] = fib
			break
		}
	}
	f["in_fib_window"] = inWindow

	var window string
	for _, fib := range s.fibWindows {
		if fib <= days {
			continue
		}
		dtw := fib - days
		if dated {
			start := current.AddDate(0, 0, dtw-s.fibTolerance)
			end := current.AddDate(0, 0, dtw+s.fibTolerance)
			window = start.Format("02 Jan") + " - " + end.Format("02 Jan 2006")
		}
		f["days_to_next_window"] = dtw
		f["next_fib_day"] = fib
		switch {
		case dtw <= 10:
			score += 4
			signals = append(signals, fmt.Sprintf("Next Fib window in %d days (Fib %d)", dtw, fib))
		case dtw <= 20:
			score += 2
			signals = append(signals, fmt.Sprintf("Approaching Fib %d window", fib))
		}
		break
	}
	return score, signals, window
}

func (s *TimeProjectionScorer) planetaryAspects(t time.Time, f models.RawFeatures) (float64, []string, error) {
	if s.ephemeris == nil {
		f["planetary_available"] = false
		return 0, []string{"Planetary analysis unavailable (no ephemeris)"}, nil
	}
	lon := make(map[Planet]float64, 4)
	for _, p := range []Planet{Mercury, Venus, Jupiter, Saturn} {
		v, err := s.ephemeris.HeliocentricLongitude(p, t)
		if err != nil {
			return 0, nil, fmt.Errorf("longitude %s: %w", p, err)
		}
		lon[p] = v
	}

	var (
		score   float64
		aspects []string
	)
	js := aspectAngle(lon[Jupiter], lon[Saturn])
	f["jupiter_saturn_angle"] = js
	switch {
	case js < 10:
		score += 3
		aspects = append(aspects, "Jupiter-Saturn conjunction (major cycle)")
	case js > 85 && js < 95:
		score += 1
		aspects = append(aspects, "Jupiter-Saturn square (tension)")
	case js > 175 && js < 185:
		score += 2
		aspects = append(aspects, "Jupiter-Saturn opposition (turning point)")
	}
	if vj := aspectAngle(lon[Venus], lon[Jupiter]); vj > 115 && vj < 125 {
		score += 2
		aspects = append(aspects, "Venus-Jupiter trine (positive sentiment)")
	}
	f["mercury_longitude"] = lon[Mercury]

	if len(aspects) == 0 {
		aspects = append(aspects, "No major planetary aspects")
	}
	return score, aspects, nil
}

func (s *TimeProjectionScorer) lunarPhase(t time.Time, f models.RawFeatures) (float64, []string, error) {
	if s.moon == nil {
		f["lunar_available"] = false
		return 0, []string{"Lunar analysis unavailable (no lunar calendar)"}, nil
	}
	phase, err := s.moon.Phase(t)
	if err != nil {
		return 0, nil, fmt.Errorf("lunar phase: %w", err)
	}
	f["lunar_phase"] = phase

	var (
		score   float64
		signals []string
		name    string
	)
	switch {
	case phase < 0.05 || phase > 0.95:
		name = "new_moon"
		score += 2
		signals = append(signals, "New Moon (potential reversal point)")
	case phase > 0.2 && phase < 0.3:
		name = "first_quarter"
		score += 1
		signals = append(signals, "First Quarter (momentum building)")
	case phase > 0.45 && phase < 0.55:
		name = "full_moon"
		score += 2
		signals = append(signals, "Full Moon (high emotion, potential peak)")
	case phase > 0.7 && phase < 0.8:
		name = "last_quarter"
		score += 1
		signals = append(signals, "Last Quarter (momentum declining)")
	default:
		name = "intermediate"
		trend := "Waxing"
		if phase > 0.5 {
			trend = "Waning"
		}
		signals = append(signals, fmt.Sprintf("Lunar: %s phase (%.0f%%)", trend, phase*100))
	}
	f["lunar_phase_name"] = name

	next, err := s.moon.NextNewMoon(t)
	if err != nil {
		return 0, nil, fmt.Errorf("next new moon: %w", err)
	}
	daysToNew := int(dateOnly(next).Sub(t).Hours() / 24)
	f["days_to_new_moon"] = daysToNew
	if daysToNew <= 3 {
		score += 1
		signals = append(signals, fmt.Sprintf("New Moon in %d days", daysToNew))
	}
	return score, signals, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

var _ domsvc.Scorer = (*TimeProjectionScorer)(nil)

package analytics

import (
	"fmt"
	"math"
	"time"
)

// Planet identifies a body known to an Ephemeris.
type Planet string

const (
	Mercury Planet = "mercury"
	Venus   Planet = "venus"
	Jupiter Planet = "jupiter"
	Saturn  Planet = "saturn"
)

// Ephemeris reports heliocentric ecliptic longitudes in degrees [0, 360).
type Ephemeris interface {
	HeliocentricLongitude(p Planet, t time.Time) (float64, error)
}

// LunarCalendar reports the lunar phase (0 = new, 0.5 = full) and the next new moon.
type LunarCalendar interface {
	Phase(t time.Time) (float64, error)
	NextNewMoon(t time.Time) (time.Time, error)
}

// orbitalElements are J2000 mean elements and their rates per Julian century:
// semi-major axis (au), eccentricity, inclination, mean longitude,
// longitude of perihelion and longitude of the ascending node (degrees).
type orbitalElements struct {
	a, e, i, l, peri, node                   float64
	aDot, eDot, iDot, lDot, periDot, nodeDot float64
}

// Approximate Keplerian elements valid 1800-2050 (Standish, JPL).
var meanElements = map[Planet]orbitalElements{
	Mercury: {0.38709927, 0.20563593, 7.00497902, 252.25032350, 77.45779628, 48.33076593,
		0.00000037, 0.00001906, -0.00594749, 149472.67411175, 0.16047689, -0.12534081},
	Venus: {0.72333566, 0.00677672, 3.39467605, 181.97909950, 131.60246718, 76.67984255,
		0.00000390, -0.00004107, -0.00078890, 58517.81538729, 0.00268329, -0.27769418},
	Jupiter: {5.20288700, 0.04838624, 1.30439695, 34.39644051, 14.72847983, 100.47390909,
		-0.00011607, -0.00013253, -0.00183714, 3034.74612775, 0.21252668, 0.20469106},
	Saturn: {9.53667594, 0.05386179, 2.48599187, 49.95424423, 92.59887831, 113.66242448,
		-0.00125060, -0.00050991, 0.00193609, 1222.49362201, -0.41897216, -0.28867794},
}

const (
	julianUnixEpoch = 2440587.5
	julianJ2000     = 2451545.0
	daysPerCentury  = 36525.0
	deg             = math.Pi / 180
)

func julianDay(t time.Time) float64 {
	return float64(t.UTC().UnixMilli())/86400000.0 + julianUnixEpoch
}

// KeplerEphemeris solves Kepler's equation on mean orbital elements. Accuracy is
// within a degree or so for the supported bodies, enough for aspect windows of +-5 degrees.
type KeplerEphemeris struct{}

func (KeplerEphemeris) HeliocentricLongitude(p Planet, t time.Time) (float64, error) {
	el, ok := meanElements[p]
	if !ok {
		return 0, fmt.Errorf("no orbital elements for %q", p)
	}
	T := (julianDay(t) - julianJ2000) / daysPerCentury

	a := el.a + el.aDot*T
	e := el.e + el.eDot*T
	inc := (el.i + el.iDot*T) * deg
	L := el.l + el.lDot*T
	peri := el.peri + el.periDot*T
	node := (el.node + el.nodeDot*T) * deg
	argPeri := peri*deg - node

	M := math.Mod(L-peri, 360)
	if M > 180 {
		M -= 360
	} else if M < -180 {
		M += 360
	}
	M *= deg

	E := M + e*math.Sin(M)
	for k := 0; k < 30; k++ {
		dE := (E - e*math.Sin(E) - M) / (1 - e*math.Cos(E))
		E -= dE
		if math.Abs(dE) < 1e-12 {
			break
		}
	}

	xp := a * (math.Cos(E) - e)
	yp := a * math.Sqrt(1-e*e) * math.Sin(E)

	cw, sw := math.Cos(argPeri), math.Sin(argPeri)
	cn, sn := math.Cos(node), math.Sin(node)
	ci := math.Cos(inc)
	x := (cw*cn-sw*sn*ci)*xp + (-sw*cn-cw*sn*ci)*yp
	y := (cw*sn+sw*cn*ci)*xp + (-sw*sn+cw*cn*ci)*yp

	return normalizeDegrees(math.Atan2(y, x) / deg), nil
}

// MeanLunation derives the lunar phase from the mean synodic month.
type MeanLunation struct{}

const synodicMonth = 29.530588853

// reference new moon, 2000-01-06 18:14 UTC
var referenceNewMoon = time.Date(2000, 1, 6, 18, 14, 0, 0, time.UTC)

func (MeanLunation) Phase(t time.Time) (float64, error) {
	days := julianDay(t) - julianDay(referenceNewMoon)
	ph := math.Mod(days/synodicMonth, 1)
	if ph < 0 {
		ph++
	}
	return ph, nil
}

func (m MeanLunation) NextNewMoon(t time.Time) (time.Time, error) {
	ph, err := m.Phase(t)
	if err != nil {
		return time.Time{}, err
	}
	days := (1 - ph) * synodicMonth
	return t.Add(time.Duration(days * float64(24*time.Hour))), nil
}

func normalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// aspectAngle is the separation between two longitudes folded to [0, 180].
func aspectAngle(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

var (
	_ Ephemeris     = KeplerEphemeris{}
	_ LunarCalendar = MeanLunation{}
)

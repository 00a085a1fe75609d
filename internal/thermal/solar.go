package thermal

import (
	"math"
	"time"
)

// cosSolarZenith returns the cosine of the solar zenith angle at the given
// coordinate and instant, clamped to zero below the horizon. Declination
// uses the Cooper (1969) approximation; solar time is derived from the
// east-longitude hour angle.
func cosSolarZenith(lat, lonEast float64, t time.Time) float64 {
	t = t.UTC()
	doy := float64(t.YearDay())

	decl := deg2rad(23.45 * math.Sin(2*math.Pi*(284+doy)/365))

	utcHours := float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
	solarHours := utcHours + lonEast/15
	hourAngle := deg2rad(15 * (solarHours - 12))

	latRad := deg2rad(lat)
	cosz := math.Sin(latRad)*math.Sin(decl) + math.Cos(latRad)*math.Cos(decl)*math.Cos(hourAngle)
	return clamp01(cosz)
}

// erbsSplit separates global horizontal irradiance into direct normal and
// diffuse horizontal components with the Erbs (1982) correlation. Both
// components are zero at night or when ghi is non-positive.
func erbsSplit(ghi, cosz float64, dayOfYear int) (dni, dhi float64) {
	if ghi <= 0 || cosz <= 0.01 {
		return 0, 0
	}

	// Extraterrestrial irradiance on a horizontal plane.
	e0 := 1367 * (1 + 0.033*math.Cos(2*math.Pi*float64(dayOfYear)/365))
	kt := ghi / (e0 * cosz)
	if kt < 0 {
		kt = 0
	}

	var diffuseFraction float64
	switch {
	case kt <= 0.22:
		diffuseFraction = 1 - 0.09*kt
	case kt <= 0.80:
		diffuseFraction = 0.9511 - 0.1604*kt + 4.388*kt*kt -
			16.638*kt*kt*kt + 12.336*kt*kt*kt*kt
	default:
		diffuseFraction = 0.165
	}

	dhi = diffuseFraction * ghi
	dni = (ghi - dhi) / cosz
	if dni < 0 {
		dni = 0
	}
	return dni, dhi
}

// Package thermal provides the default formula set for the staged
// calculator: UTCI and WBGT derived from GFS surface fields.
//
// The pipeline treats index formulas as a pluggable capability, so these
// implementations favor compact, well-known closed forms over the full
// reference regressions: mean radiant temperature follows the thermofeel
// flux formulation, solar geometry uses the standard declination/hour-angle
// model, the direct/diffuse split is the Erbs correlation, wet-bulb uses
// Stull (2011), globe temperature inverts the ISO 7726 forced-convection
// relation, and the UTCI value is a Steadman-style apparent temperature
// with a radiant-load term. Swap in a different Formula per parameter for
// higher-fidelity indices.
//
// All temperatures from the model arrive in Kelvin; indices are returned
// in °C.
package thermal

import (
	"fmt"
	"math"
	"time"

	"github.com/weatherforhumans/thermal-etl/internal/domain"
)

// GFS surface field names consumed by the formulas.
const (
	FieldTemp2m     = "tmp2m"    // 2 m air temperature, K
	FieldDewpoint2m = "dpt2m"    // 2 m dewpoint, K
	FieldWindU10m   = "ugrd10m"  // 10 m wind u-component, m/s
	FieldWindV10m   = "vgrd10m"  // 10 m wind v-component, m/s
	FieldShortDown  = "dswrfsfc" // downward shortwave at surface, W/m²
	FieldShortUp    = "uswrfsfc" // upward shortwave at surface, W/m²
	FieldLongDown   = "dlwrfsfc" // downward longwave at surface, W/m²
	FieldLongUp     = "ulwrfsfc" // upward longwave at surface, W/m²
)

var allInputs = []string{
	FieldTemp2m, FieldDewpoint2m,
	FieldWindU10m, FieldWindV10m,
	FieldShortDown, FieldShortUp, FieldLongDown, FieldLongUp,
}

const (
	kelvinOffset    = 273.15
	stefanBoltzmann = 5.67e-8
)

// UTCI computes the Universal Thermal Climate Index approximation.
type UTCI struct{}

func (UTCI) Inputs() []string { return allInputs }

func (UTCI) Compute(c domain.Coordinate, t time.Time, in map[string]float64) (float64, error) {
	cond, err := deriveConditions(c, t, in)
	if err != nil {
		return 0, err
	}
	// Steadman apparent temperature with the radiant load expressed through
	// a radiative heat transfer coefficient of ~4.7 W/m²K.
	e := vaporPressureHPa(cond.dewC)
	q := 4.7 * (cond.mrtC - cond.airC)
	utci := cond.airC + 0.348*e - 0.70*cond.wind + 0.70*q/(cond.wind+10) - 4.25
	if math.IsNaN(utci) || math.IsInf(utci, 0) {
		return 0, fmt.Errorf("utci not finite at %s", c.ID())
	}
	return utci, nil
}

// WBGT computes the Wet Bulb Globe Temperature estimate for outdoor
// conditions: 0.7·Tnwb + 0.2·Tg + 0.1·Ta.
type WBGT struct{}

func (WBGT) Inputs() []string { return allInputs }

func (WBGT) Compute(c domain.Coordinate, t time.Time, in map[string]float64) (float64, error) {
	cond, err := deriveConditions(c, t, in)
	if err != nil {
		return 0, err
	}
	rh := relativeHumidity(cond.airC, cond.dewC)
	tw := wetBulbStull(cond.airC, rh)
	tg := globeTemp(cond.mrtC, cond.airC, cond.wind)
	wbgt := 0.7*tw + 0.2*tg + 0.1*cond.airC
	if math.IsNaN(wbgt) || math.IsInf(wbgt, 0) {
		return 0, fmt.Errorf("wbgt not finite at %s", c.ID())
	}
	return wbgt, nil
}

// conditions carries the intermediate quantities both indices share.
type conditions struct {
	airC, dewC float64
	wind       float64
	mrtC       float64
}

func deriveConditions(c domain.Coordinate, t time.Time, in map[string]float64) (conditions, error) {
	for _, field := range allInputs {
		v, ok := in[field]
		if !ok {
			return conditions{}, fmt.Errorf("missing input field %s", field)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return conditions{}, fmt.Errorf("input field %s not finite", field)
		}
	}

	airC := in[FieldTemp2m] - kelvinOffset
	dewC := in[FieldDewpoint2m] - kelvinOffset
	wind := math.Hypot(in[FieldWindU10m], in[FieldWindV10m])

	// Use the midpoint of the preceding hour to approximate the
	// hour-averaged solar position the fluxes represent.
	cosz := cosSolarZenith(c.Lat, c.Lon, t.Add(-30*time.Minute))
	dni, dhi := erbsSplit(in[FieldShortDown], cosz, t.YearDay())

	mrtK := meanRadiantTemp(
		in[FieldShortUp], in[FieldLongDown], in[FieldLongUp],
		dni, dhi, cosz,
	)
	return conditions{
		airC: airC,
		dewC: dewC,
		wind: wind,
		mrtC: mrtK - kelvinOffset,
	}, nil
}

// meanRadiantTemp combines the four surface radiation fluxes and the Erbs
// direct-beam estimate into a mean radiant temperature (K), following the
// thermofeel formulation: half-weighted diffuse fields plus a projected
// direct beam scaled by the body's absorption/emissivity ratio.
func meanRadiantTemp(shortUp, longDown, longUp, dni, dhi, cosz float64) float64 {
	const (
		absorpShort = 0.7
		emisBody    = 0.97
		angleFactor = 0.5
	)

	gammaDeg := math.Asin(clamp01(cosz)) * 180 / math.Pi
	fp := 0.308 * math.Cos(deg2rad(gammaDeg*0.998-gammaDeg*gammaDeg/50000))

	direct := 0.0
	if cosz > 0.01 {
		direct = dni
	}

	mrt4 := (1 / stefanBoltzmann) * (angleFactor*longDown + angleFactor*longUp +
		(absorpShort/emisBody)*(angleFactor*dhi+angleFactor*shortUp+fp*direct))
	if mrt4 <= 0 {
		return 0
	}
	return math.Pow(mrt4, 0.25)
}

// globeTemp inverts the ISO 7726 forced-convection relation for a standard
// 150 mm globe, mrt⁴ = tg⁴ + 2.5e8·v^0.6·(tg−ta) (temperatures in K for the
// quartic terms), solving for tg with a few Newton steps.
func globeTemp(mrtC, airC, wind float64) float64 {
	if wind < 0.1 {
		wind = 0.1
	}
	h := 2.5e8 * math.Pow(wind, 0.6)
	mrt4 := math.Pow(mrtC+kelvinOffset, 4)

	tg := (mrtC + airC) / 2
	for i := 0; i < 6; i++ {
		tgK := tg + kelvinOffset
		f := math.Pow(tgK, 4) + h*(tg-airC) - mrt4
		fp := 4*math.Pow(tgK, 3) + h
		tg -= f / fp
	}
	return tg
}

// wetBulbStull estimates the psychrometric wet-bulb temperature (°C) from
// air temperature and relative humidity, per Stull (2011). The fit is valid
// for roughly 5–99 % humidity; rh is clamped into that range.
func wetBulbStull(airC, rh float64) float64 {
	if rh < 5 {
		rh = 5
	}
	if rh > 99 {
		rh = 99
	}
	return airC*math.Atan(0.151977*math.Sqrt(rh+8.313659)) +
		math.Atan(airC+rh) - math.Atan(rh-1.676331) +
		0.00391838*math.Pow(rh, 1.5)*math.Atan(0.023101*rh) -
		4.686035
}

// vaporPressureHPa returns the water vapor partial pressure (hPa) at the
// given dewpoint using the Magnus formula.
func vaporPressureHPa(dewC float64) float64 {
	return 6.1094 * math.Exp(17.625*dewC/(243.04+dewC))
}

// relativeHumidity derives RH (%) from air and dewpoint temperatures.
func relativeHumidity(airC, dewC float64) float64 {
	return 100 * vaporPressureHPa(dewC) / vaporPressureHPa(airC)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func deg2rad(d float64) float64 {
	return d * math.Pi / 180
}

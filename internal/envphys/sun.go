package envphys

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"

	"github.com/shepherdmeng/smrf/internal/domain"
)

// SolarConstant in W/m^2.
const SolarConstant = 1367.0

// Sun is the sun position for one instant at one site.
type Sun struct {
	CosZ    float64 // cosine of the solar zenith angle
	Azimuth float64 // degrees clockwise from north
}

// Up reports whether the sun is above the horizon.
func (s Sun) Up() bool { return s.CosZ > 0 }

// SunAngles computes the sun position with the NOAA low precision
// algorithm. lat and lon are in decimal degrees, east positive.
func SunAngles(t time.Time, lat, lon float64) Sun {
	t = t.UTC()
	jd := julian.TimeToJD(t)
	T := (jd - 2451545.0) / 36525.0

	l0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))
	m := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)
	c := math.Sin(rad(m))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(rad(2*m))*(0.019993-T*0.000101) +
		math.Sin(rad(3*m))*0.000289
	omega := 125.04 - 1934.136*T
	lambda := l0 + c - 0.00569 - 0.00478*math.Sin(rad(omega))
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	decl := math.Asin(math.Sin(rad(eps0)) * math.Sin(rad(lambda)))

	y := math.Tan(rad(eps0)/2) * math.Tan(rad(eps0)/2)
	eqTime := deg(y*math.Sin(rad(2*l0))-
		2*e*math.Sin(rad(m))+
		4*e*y*math.Sin(rad(m))*math.Cos(rad(2*l0))-
		0.5*y*y*math.Sin(rad(4*l0))-
		1.25*e*e*math.Sin(rad(2*m))) * 4

	utcMin := float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60
	ha := (utcMin+4*lon+eqTime)/4 - 180
	switch {
	case ha < -180:
		ha += 360
	case ha > 180:
		ha -= 360
	}

	phi := rad(lat)
	cosz := math.Sin(phi)*math.Sin(decl) + math.Cos(phi)*math.Cos(decl)*math.Cos(rad(ha))
	cosz = clamp(cosz, -1, 1)
	sinz := math.Sqrt(1 - cosz*cosz)

	var az float64
	if den := math.Cos(phi) * sinz; den != 0 {
		az = deg(math.Acos(clamp((math.Sin(decl)-math.Sin(phi)*cosz)/den, -1, 1)))
		if ha > 0 {
			az = 360 - az
		}
	}
	return Sun{CosZ: cosz, Azimuth: az}
}

// Illumination returns the cosine of the local illumination angle for
// every pixel given slope and aspect grids in degrees. Self-shaded pixels
// and every pixel while the sun is down are zero. Flat pixels (aspect -1)
// see the horizontal value.
func Illumination(sun Sun, slope, aspect domain.Grid) domain.Grid {
	out := domain.NewGrid(slope.Ny, slope.Nx)
	if !sun.Up() {
		return out
	}
	sinz := math.Sqrt(1 - sun.CosZ*sun.CosZ)
	for k := range out.Data {
		s := rad(slope.Data[k])
		var mu float64
		if aspect.Data[k] < 0 {
			mu = sun.CosZ * math.Cos(s)
		} else {
			mu = sun.CosZ*math.Cos(s) + sinz*math.Sin(s)*math.Cos(rad(sun.Azimuth-aspect.Data[k]))
		}
		out.Data[k] = math.Max(mu, 0)
	}
	return out
}

// ClearSkyBeam returns clear sky irradiance (W/m^2) on a surface with
// illumination cosine mu, using a single broadband transmissivity tau
// along the zenith path.
func ClearSkyBeam(sun Sun, mu, tau float64) float64 {
	if !sun.Up() || mu <= 0 {
		return 0
	}
	return SolarConstant * mu * math.Pow(tau, 1/sun.CosZ)
}

func rad(d float64) float64      { return d * math.Pi / 180 }
func deg(r float64) float64      { return r * 180 / math.Pi }
func fixAngle(a float64) float64 { return a - 360*math.Floor(a/360) }

func clamp(v, lo, hi float64) float64 { return math.Min(math.Max(v, lo), hi) }

package service

import "math"

// Position is a device-reported location. Known is false when the device
// sent none.
type Position struct {
	Lat, Lng float64
	Known    bool
}

// LocationGate is a yes/no check made before the session guard.
type LocationGate interface {
	Allow(p Position) bool
}

type AllowAll struct{}

func (AllowAll) Allow(Position) bool { return true }

// Geofence allows positions within RadiusM meters of the venue. A zero
// radius disables the check.
type Geofence struct {
	Lat, Lng float64
	RadiusM  float64
}

const earthRadiusM = 6371000

func (g Geofence) Allow(p Position) bool {
	if g.RadiusM <= 0 {
		return true
	}
	if !p.Known {
		return false
	}
	return distanceM(g.Lat, g.Lng, p.Lat, p.Lng) <= g.RadiusM
}

// distanceM is the haversine distance in meters.
func distanceM(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(a))
}

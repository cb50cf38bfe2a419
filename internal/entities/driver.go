package entities

import "time"

// GeoPoint is a raw coordinate pair as reported by a driver device.
type GeoPoint struct {
	Lat float64
	Lng float64
}

type Driver struct {
	ID        string
	Name      string
	Phone     string
	Rating    float64   // bounded [0, 5]
	Location  *GeoPoint // nil until the first position report
	IsActive  bool
	CreatedAt time.Time
}

package domain

import "math"

const (
	milesPerDegLat = 69.0
	milesPerDegLon = 69.172
)

type Polygon []Coords

// octagon vertex angles from east, walking clockwise from due north
var polygonBearings = []float64{90, 45, 0, 315, 270, 225, 180, 135}

// MakePolygon approximates a circle of radius miles around center with an octagon.
func MakePolygon(center Coords, miles float64) Polygon {
	lonScale := milesPerDegLon * math.Cos(center.Lat*math.Pi/180)
	out := make(Polygon, 0, len(polygonBearings))
	for _, deg := range polygonBearings {
		rad := deg * math.Pi / 180
		out = append(out, Coords{
			Lat: center.Lat + miles*math.Sin(rad)/milesPerDegLat,
			Lon: center.Lon + miles*math.Cos(rad)/lonScale,
		})
	}
	return out
}

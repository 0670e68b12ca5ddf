package domain

type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Resort is one row of the static resort catalog. Stats are nil when the source has no value.
type Resort struct {
	Name           string
	Region         string
	State          *string
	Coords         *Coords
	SkiableAcres   *float64
	VerticalDrop   *float64
	AnnualSnowfall *float64
}

package domain

import "time"

const DateLayout = "2006-01-02"

// Availability is an inclusive window of calendar days.
type Availability struct {
	Start time.Time
	End   time.Time
}

// Nights between two calendar days, counting the overlap of a and b.
// Negative when the windows do not touch.
func (a Availability) OverlapNights(b DateRange) int {
	start, end := a.Start, a.End
	if b.Start.After(start) {
		start = b.Start
	}
	if b.End.Before(end) {
		end = b.End
	}
	return int(end.Sub(start).Hours() / 24)
}

func (a Availability) Contains(b DateRange) bool {
	return !a.Start.After(b.Start) && !a.End.Before(b.End)
}

// ResortTime links a listing to a resort it was found near.
// DrivingMinutes is nil when the routing provider could not answer.
type ResortTime struct {
	Resort         string
	State          *string
	Region         string
	DrivingMinutes *float64
}

type Listing struct {
	ID                string
	Name              string
	Coords            *Coords
	Geohash           string
	Bedrooms          int
	Bathrooms         float64
	MaxGuests         int
	ImageURL          string
	PetPreference     string
	PetHostingDetails string
	Availabilities    []Availability
	Resorts           []ResortTime
}

// MinDrivingMinutes is the shortest known driving time across linked resorts.
func (l Listing) MinDrivingMinutes() *float64 {
	var best *float64
	for _, rt := range l.Resorts {
		if rt.DrivingMinutes == nil {
			continue
		}
		if best == nil || *rt.DrivingMinutes < *best {
			v := *rt.DrivingMinutes
			best = &v
		}
	}
	return best
}

// HomesPage is one page of a polygon query. Next is nil on the last page.
type HomesPage struct {
	Homes []Listing
	Next  *int
}

type TokenPair struct {
	Access  string
	Refresh string
}

type OTPChallenge struct {
	Mode   string
	Length int
}

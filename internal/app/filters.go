package app

import (
	"ski_homes/internal/domain"
)

// resortPasses applies the resort-level minimums. A missing stat never passes a set minimum.
func resortPasses(r domain.Resort, c domain.SearchCriteria) bool {
	return atLeast(r.SkiableAcres, c.MinSkiableAcres) &&
		atLeast(r.VerticalDrop, c.MinVerticalDrop) &&
		atLeast(r.AnnualSnowfall, c.MinAnnualSnowfall)
}

func atLeast(v, min *float64) bool {
	if min == nil || *min <= 0 {
		return true
	}
	return v != nil && *v >= *min
}

// listingPasses applies occupancy, pets and availability. On success the listing's
// windows are narrowed to those overlapping the requested dates.
func listingPasses(l *domain.Listing, c domain.SearchCriteria) bool {
	if c.MinOccupancy > 0 && l.MaxGuests > 0 && l.MaxGuests < c.MinOccupancy {
		return false
	}
	if c.PetsAllowed && (l.PetPreference == "NO" || l.PetHostingDetails == "NO") {
		return false
	}
	if !availabilityMatches(l.Availabilities, c) {
		return false
	}
	l.Availabilities = overlapping(l.Availabilities, c.Dates)
	return true
}

// exact wants one window covering the whole range; flexible wants minNights of overlap.
func availabilityMatches(ws []domain.Availability, c domain.SearchCriteria) bool {
	need := c.MinNights
	if need < 0 {
		need = 0
	}
	for _, w := range ws {
		switch c.Mode {
		case domain.DateModeExact:
			if w.Contains(c.Dates) {
				return true
			}
		default:
			if w.OverlapNights(c.Dates) >= need {
				return true
			}
		}
	}
	return false
}

func overlapping(ws []domain.Availability, r domain.DateRange) []domain.Availability {
	out := make([]domain.Availability, 0, len(ws))
	for _, w := range ws {
		if w.OverlapNights(r) >= 0 {
			out = append(out, w)
		}
	}
	return out
}

package kindred

import (
	"fmt"
	"time"

	"ski_homes/internal/domain"
)

const isoLayout = "2006-01-02T15:04:05.000Z"

type tokenDTO struct {
	AccessToken  string  `json:"accessToken"`
	RefreshToken *string `json:"refreshToken"`
}

func (t tokenDTO) pair() domain.TokenPair {
	p := domain.TokenPair{Access: t.AccessToken}
	if t.RefreshToken != nil {
		p.Refresh = *t.RefreshToken
	}
	return p
}

type exploreDTO struct {
	Result struct {
		Page     *int `json:"page"`
		HasMore  bool `json:"hasMore"`
		HomeRecs []struct {
			Home homeDTO `json:"home"`
		} `json:"homeRecs"`
	} `json:"getHomesWithSearchCriteria"`
}

type homeDTO struct {
	ID                string   `json:"id"`
	Title             *string  `json:"title"`
	Lat               *float64 `json:"lat"`
	Lon               *float64 `json:"lon"`
	MaxGuestsLimit    *int     `json:"maxGuestsLimit"`
	Bathrooms         *float64 `json:"bathrooms"`
	BedroomsCount     *int     `json:"bedroomsCount"`
	PetPreference     *string  `json:"petPreference"`
	PetHostingDetails *string  `json:"petHostingDetails"`
	Media             []struct {
		URL          *string `json:"url"`
		ThumbnailURL *string `json:"thumbnailUrl"`
	} `json:"media"`
	Availabilities []struct {
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	} `json:"availabilitiesWithoutBookedDates"`
}

func (h homeDTO) listing() (domain.Listing, error) {
	l := domain.Listing{
		ID:                h.ID,
		Name:              deref(h.Title),
		PetPreference:     deref(h.PetPreference),
		PetHostingDetails: deref(h.PetHostingDetails),
	}
	if h.Lat != nil && h.Lon != nil {
		l.Coords = &domain.Coords{Lat: *h.Lat, Lon: *h.Lon}
	}
	if h.BedroomsCount != nil {
		l.Bedrooms = *h.BedroomsCount
	}
	if h.Bathrooms != nil {
		l.Bathrooms = *h.Bathrooms
	}
	if h.MaxGuestsLimit != nil {
		l.MaxGuests = *h.MaxGuestsLimit
	}
	if len(h.Media) > 0 {
		l.ImageURL = deref(h.Media[0].ThumbnailURL)
		if l.ImageURL == "" {
			l.ImageURL = deref(h.Media[0].URL)
		}
	}
	for _, a := range h.Availabilities {
		start, err := parseDay(a.StartDate)
		if err != nil {
			return domain.Listing{}, err
		}
		end, err := parseDay(a.EndDate)
		if err != nil {
			return domain.Listing{}, err
		}
		if end.Before(start) {
			return domain.Listing{}, fmt.Errorf("availability ends before it starts: %s..%s", a.StartDate, a.EndDate)
		}
		l.Availabilities = append(l.Availabilities, domain.Availability{Start: start, End: end})
	}
	return l, nil
}

// parseDay accepts a date or a timestamp and keeps the calendar day.
func parseDay(s string) (time.Time, error) {
	if len(s) < len(domain.DateLayout) {
		return time.Time{}, fmt.Errorf("bad date %q", s)
	}
	return time.Parse(domain.DateLayout, s[:len(domain.DateLayout)])
}

// exploreVariables builds the exploreList variables. Flexible searches send the range as
// consecutive one-month slices, exact searches as a single pair.
func exploreVariables(q domain.HomesQuery, page int) map[string]any {
	var ranges [][]string
	if q.Mode == domain.DateModeFlexible {
		for _, r := range q.Dates.MonthlySlices() {
			ranges = append(ranges, isoPair(r))
		}
	} else {
		ranges = [][]string{isoPair(q.Dates)}
	}

	tripLength := "EXACT_DATES"
	if q.Mode == domain.DateModeFlexible {
		tripLength = "MINIMUM_NIGHTS"
	}
	pets := []string{}
	if q.PetsAllowed {
		pets = []string{"YES", "MAYBE"}
	}
	polygon := make([]map[string]float64, 0, len(q.Polygon))
	for _, p := range q.Polygon {
		polygon = append(polygon, map[string]float64{"lat": p.Lat, "lon": p.Lon})
	}

	filter := map[string]any{
		"tripLengthsV2":       []string{tripLength},
		"dateRanges":          ranges,
		"includeCloseDates":   false,
		"isFavoriteHomesOnly": false,
		"onboardingSort":      false,
		"polygon":             polygon,
		"matchTypes":          []string{"SWAP", "AVAILABILITY"},
		"minBedrooms":         0,
		"minBathrooms":        0,
		"minBeds":             0,
		"totalGuests":         q.TotalGuests,
		"filterInput": map[string]any{
			"amenityFilters":   []string{},
			"bedTypeFilters":   []string{},
			"compositeFilters": []string{},
			"petPreferences":   pets,
		},
	}
	if q.Mode == domain.DateModeFlexible {
		filter["minimumNights"] = q.MinNights
	}

	return map[string]any{
		"filter":     filter,
		"pagination": map[string]int{"page": page, "pageSize": q.PageSize},
		"sortedAt":   q.SortedAt.UTC().Format(isoLayout),
		"width":      thumbWidth,
	}
}

func isoPair(r domain.DateRange) []string {
	return []string{r.Start.UTC().Format(isoLayout), r.End.UTC().Format(isoLayout)}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

package domain

import (
	"fmt"
	"time"
)

type DateMode string

const (
	DateModeExact    DateMode = "exact"
	DateModeFlexible DateMode = "flexible"
)

// DateRange holds calendar days (UTC midnight), both ends inclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func ParseDateRange(start, end string) (DateRange, error) {
	if start == "" || end == "" {
		return DateRange{}, fmt.Errorf("%w: start date and end date are required", ErrInvalidCriteria)
	}
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: bad start date %q", ErrInvalidCriteria, start)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: bad end date %q", ErrInvalidCriteria, end)
	}
	return DateRange{Start: s, End: e}, nil
}

// MonthlySlices splits the range into consecutive one-month pieces.
// A single-day range yields one zero-length slice.
func (r DateRange) MonthlySlices() []DateRange {
	if !r.Start.Before(r.End) {
		return []DateRange{r}
	}
	var out []DateRange
	for cur := r.Start; cur.Before(r.End); {
		next := cur.AddDate(0, 1, 0)
		if next.After(r.End) {
			next = r.End
		}
		out = append(out, DateRange{Start: cur, End: next})
		cur = next
	}
	return out
}

type SearchCriteria struct {
	Dates       DateRange
	Mode        DateMode
	MinNights   int
	Regions     []string
	Resorts     []string
	RadiusMiles float64

	MinSkiableAcres   *float64
	MinVerticalDrop   *float64
	MinAnnualSnowfall *float64

	MinOccupancy int
	PetsAllowed  bool
}

func (c SearchCriteria) Validate() error {
	if c.Dates.Start.IsZero() || c.Dates.End.IsZero() {
		return fmt.Errorf("%w: start date and end date are required", ErrInvalidCriteria)
	}
	if c.Dates.End.Before(c.Dates.Start) {
		return fmt.Errorf("%w: end date is before start date", ErrInvalidCriteria)
	}
	switch c.Mode {
	case DateModeExact, DateModeFlexible:
	default:
		return fmt.Errorf("%w: unknown date type %q", ErrInvalidCriteria, c.Mode)
	}
	if c.MinNights < 0 {
		return fmt.Errorf("%w: minNights must not be negative", ErrInvalidCriteria)
	}
	if c.RadiusMiles <= 0 {
		return fmt.Errorf("%w: mileRange must be positive", ErrInvalidCriteria)
	}
	if c.MinOccupancy < 0 {
		return fmt.Errorf("%w: numberOfPeople must not be negative", ErrInvalidCriteria)
	}
	return nil
}

// HomesQuery is what the marketplace needs for one polygon query.
type HomesQuery struct {
	Polygon     Polygon
	Dates       DateRange
	Mode        DateMode
	MinNights   int
	TotalGuests int
	PetsAllowed bool
	PageSize    int
	SortedAt    time.Time
}

// ResortFailure records a resort skipped during a search.
type ResortFailure struct {
	Resort string
	Reason string
}

type SearchResult struct {
	ID       string
	Listings []Listing
	Skipped  []ResortFailure
}

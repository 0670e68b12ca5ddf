package httpserver

import (
	"fmt"
	"strings"

	"ski_homes/internal/domain"
)

const (
	defaultMileRange = 35
	placeholderImage = "https://images.unsplash.com/photo-1518780664697-55e3ad937233?w=800&q=80"
	homeURLPrefix    = "https://livekindred.com/home/"
)

type searchRequest struct {
	StartDate         string   `json:"startDate"`
	EndDate           string   `json:"endDate"`
	Regions           []string `json:"regions"`
	Resorts           []string `json:"resorts"`
	MileRange         *float64 `json:"mileRange"`
	DateType          string   `json:"dateType"`
	MinNights         *int     `json:"minNights"`
	MinSkiableAcres   *float64 `json:"minSkiableAcres"`
	MinVerticalDrop   *float64 `json:"minVerticalDrop"`
	MinAnnualSnowfall *float64 `json:"minAnnualSnowfall"`
	NumberOfPeople    *int     `json:"numberOfPeople"`
	PetsAllowed       bool     `json:"petsAllowed"`
}

func (in searchRequest) criteria() (domain.SearchCriteria, error) {
	dates, err := domain.ParseDateRange(strings.TrimSpace(in.StartDate), strings.TrimSpace(in.EndDate))
	if err != nil {
		return domain.SearchCriteria{}, err
	}
	c := domain.SearchCriteria{
		Dates:             dates,
		Mode:              domain.DateModeFlexible,
		Regions:           in.Regions,
		Resorts:           in.Resorts,
		RadiusMiles:       defaultMileRange,
		MinSkiableAcres:   in.MinSkiableAcres,
		MinVerticalDrop:   in.MinVerticalDrop,
		MinAnnualSnowfall: in.MinAnnualSnowfall,
		PetsAllowed:       in.PetsAllowed,
	}
	if dt := strings.ToLower(strings.TrimSpace(in.DateType)); dt != "" {
		c.Mode = domain.DateMode(dt)
	}
	if in.MileRange != nil {
		c.RadiusMiles = *in.MileRange
	}
	if in.MinNights != nil {
		c.MinNights = *in.MinNights
	}
	if in.NumberOfPeople != nil {
		c.MinOccupancy = *in.NumberOfPeople
	}
	return c, c.Validate()
}

// ---- resort views ----

type resortsResponse struct {
	Regions []string       `json:"regions"`
	Resorts []resortRecord `json:"resorts"`
}

type resortRecord struct {
	Resort    string   `json:"resort"`
	Region    *string  `json:"region"`
	State     *string  `json:"state"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type statsResponse struct {
	Resorts []resortStatsRecord `json:"resorts"`
	Regions []string            `json:"regions"`
}

type resortStatsRecord struct {
	Resort         string   `json:"resort"`
	Region         *string  `json:"region"`
	State          *string  `json:"state"`
	SkiableAcres   *float64 `json:"skiable_acres"`
	VerticalDrop   *float64 `json:"vertical_drop"`
	AnnualSnowfall *float64 `json:"annual_snowfall"`
}

func toResortRecord(r domain.Resort) resortRecord {
	rec := resortRecord{Resort: r.Name, Region: nilIfEmpty(r.Region), State: r.State}
	if r.Coords != nil {
		lat, lon := r.Coords.Lat, r.Coords.Lon
		rec.Latitude, rec.Longitude = &lat, &lon
	}
	return rec
}

func toStatsRecord(r domain.Resort) resortStatsRecord {
	return resortStatsRecord{
		Resort:         r.Name,
		Region:         nilIfEmpty(r.Region),
		State:          r.State,
		SkiableAcres:   r.SkiableAcres,
		VerticalDrop:   r.VerticalDrop,
		AnnualSnowfall: r.AnnualSnowfall,
	}
}

// ---- search view ----

type searchResponse struct {
	SearchID string          `json:"searchId"`
	Results  []listingRecord `json:"results"`
	Skipped  []skippedRecord `json:"skipped"`
}

type skippedRecord struct {
	Resort string `json:"resort"`
	Reason string `json:"reason"`
}

type listingResortRecord struct {
	Resort             string   `json:"resort"`
	State              *string  `json:"state"`
	Region             *string  `json:"region"`
	DrivingTimeMinutes *float64 `json:"drivingTimeMinutes"`
}

type availabilityRecord struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type listingRecord struct {
	ID                string                `json:"id"`
	Name              string                `json:"name"`
	Resort            string                `json:"resort"`
	Resorts           []listingResortRecord `json:"resorts"`
	Distance          string                `json:"distance"`
	DriveTime         *float64              `json:"driveTime"`
	Bedrooms          int                   `json:"bedrooms"`
	Bathrooms         float64               `json:"bathrooms"`
	MaxGuests         int                   `json:"maxGuests"`
	ImageURL          string                `json:"imageUrl"`
	Lat               *float64              `json:"lat"`
	Lng               *float64              `json:"lng"`
	Geohash           string                `json:"geohash,omitempty"`
	Availabilities    []availabilityRecord  `json:"availabilities"`
	PetPreference     *string               `json:"petPreference"`
	PetHostingDetails *string               `json:"petHostingDetails"`
	HomeURL           string                `json:"homeUrl"`
}

func toSearchResponse(res domain.SearchResult) searchResponse {
	out := searchResponse{
		SearchID: res.ID,
		Results:  make([]listingRecord, 0, len(res.Listings)),
		Skipped:  make([]skippedRecord, 0, len(res.Skipped)),
	}
	for _, l := range res.Listings {
		out.Results = append(out.Results, toListingRecord(l))
	}
	for _, s := range res.Skipped {
		out.Skipped = append(out.Skipped, skippedRecord{Resort: s.Resort, Reason: s.Reason})
	}
	return out
}

func toListingRecord(l domain.Listing) listingRecord {
	rec := listingRecord{
		ID:                l.ID,
		Name:              l.Name,
		Resorts:           make([]listingResortRecord, 0, len(l.Resorts)),
		Distance:          "N/A",
		DriveTime:         l.MinDrivingMinutes(),
		Bedrooms:          l.Bedrooms,
		Bathrooms:         l.Bathrooms,
		MaxGuests:         l.MaxGuests,
		ImageURL:          l.ImageURL,
		Geohash:           l.Geohash,
		Availabilities:    make([]availabilityRecord, 0, len(l.Availabilities)),
		PetPreference:     nilIfEmpty(l.PetPreference),
		PetHostingDetails: nilIfEmpty(l.PetHostingDetails),
		HomeURL:           homeURLPrefix + l.ID,
	}
	if rec.ImageURL == "" {
		rec.ImageURL = placeholderImage
	}
	if rec.DriveTime != nil {
		rec.Distance = fmt.Sprintf("%.1f min", *rec.DriveTime)
	}
	if l.Coords != nil {
		lat, lon := l.Coords.Lat, l.Coords.Lon
		rec.Lat, rec.Lng = &lat, &lon
	}
	// resorts arrive sorted nearest first
	if len(l.Resorts) > 0 {
		rec.Resort = l.Resorts[0].Resort
	}
	for _, rt := range l.Resorts {
		rec.Resorts = append(rec.Resorts, listingResortRecord{
			Resort:             rt.Resort,
			State:              rt.State,
			Region:             nilIfEmpty(rt.Region),
			DrivingTimeMinutes: rt.DrivingMinutes,
		})
	}
	for _, a := range l.Availabilities {
		rec.Availabilities = append(rec.Availabilities, availabilityRecord{
			StartDate: a.Start.Format(domain.DateLayout),
			EndDate:   a.End.Format(domain.DateLayout),
		})
	}
	return rec
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package app

import (
	"context"
	"sort"

	"github.com/mmcloughlin/geohash"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"ski_homes/internal/adapters/observability"
	"ski_homes/internal/domain"
)

const geohashChars = 7

// mergeOutcomes folds per-resort listings into one listing per id. The first resort (in
// catalog order) to report a listing owns its data; later resorts add a resort entry.
func mergeOutcomes(outcomes []resortOutcome) []domain.Listing {
	index := map[string]int{}
	var out []domain.Listing
	for _, o := range outcomes {
		if o.err != nil {
			continue
		}
		entry := domain.ResortTime{Resort: o.resort.Name, State: o.resort.State, Region: o.resort.Region}
		for _, l := range o.listings {
			i, ok := index[l.ID]
			if !ok {
				l.Resorts = []domain.ResortTime{entry}
				if l.Coords != nil {
					l.Geohash = geohash.EncodeWithPrecision(l.Coords.Lat, l.Coords.Lon, geohashChars)
				}
				index[l.ID] = len(out)
				out = append(out, l)
				continue
			}
			m := &out[i]
			m.Availabilities = mergeWindows(m.Availabilities, l.Availabilities)
			if !hasResort(m.Resorts, entry.Resort) {
				m.Resorts = append(m.Resorts, entry)
			}
		}
	}
	if out == nil {
		out = []domain.Listing{}
	}
	return out
}

func hasResort(rts []domain.ResortTime, name string) bool {
	for _, rt := range rts {
		if rt.Resort == name {
			return true
		}
	}
	return false
}

// mergeWindows unions two window lists, dropping exact repeats, ordered by start.
func mergeWindows(a, b []domain.Availability) []domain.Availability {
	out := make([]domain.Availability, 0, len(a)+len(b))
	seen := map[[2]int64]struct{}{}
	for _, w := range append(append([]domain.Availability{}, a...), b...) {
		k := [2]int64{w.Start.Unix(), w.End.Unix()}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].End.Before(out[j].End)
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// enrich fills the driving time of every (listing, resort) pair. Lookup failures leave
// the time unknown; only cancellation is returned.
func (s *SearchService) enrich(ctx context.Context, ls []domain.Listing, resorts []domain.Resort) error {
	coords := make(map[string]*domain.Coords, len(resorts))
	for _, r := range resorts {
		coords[r.Name] = r.Coords
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.GeoWorkers)
	for i := range ls {
		for j := range ls[i].Resorts {
			from := ls[i].Coords
			to := coords[ls[i].Resorts[j].Resort]
			slot := &ls[i].Resorts[j].DrivingMinutes
			if from == nil || to == nil || s.geo == nil {
				observability.ObserveDriving(false)
				continue
			}
			i, j := i, j
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				mins, err := s.geo.DrivingMinutes(gctx, *from, *to)
				if err != nil {
					observability.ObserveDriving(false)
					log.Debug().Err(err).Str("resort", ls[i].Resorts[j].Resort).Str("listing", ls[i].ID).Msg("driving time unknown")
					return nil
				}
				observability.ObserveDriving(true)
				*slot = &mins
				return nil
			})
		}
	}
	_ = g.Wait()
	return ctx.Err()
}

// sortListings orders resorts inside each listing and then the listings themselves by
// shortest known driving time; unknown times sort last, ties break by name / id.
func sortListings(ls []domain.Listing) {
	for i := range ls {
		rts := ls[i].Resorts
		sort.SliceStable(rts, func(a, b int) bool {
			return lessMinutes(rts[a].DrivingMinutes, rts[b].DrivingMinutes, rts[a].Resort < rts[b].Resort)
		})
	}
	sort.SliceStable(ls, func(a, b int) bool {
		return lessMinutes(ls[a].MinDrivingMinutes(), ls[b].MinDrivingMinutes(), ls[a].ID < ls[b].ID)
	})
}

func lessMinutes(a, b *float64, tie bool) bool {
	switch {
	case a == nil && b == nil:
		return tie
	case a == nil:
		return false
	case b == nil:
		return true
	case *a != *b:
		return *a < *b
	default:
		return tie
	}
}

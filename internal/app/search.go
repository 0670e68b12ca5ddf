package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"ski_homes/internal/adapters/observability"
	"ski_homes/internal/domain"
)

// HomeSearcher is the paginated polygon query of the marketplace.
type HomeSearcher interface {
	SearchHomes(ctx context.Context, q domain.HomesQuery, accessToken string, page int) (domain.HomesPage, error)
}

type SearchConfig struct {
	PageSize   int
	MaxPages   int
	PageDelay  time.Duration
	RetryDelay time.Duration
	Workers    int // resorts queried at once
	GeoWorkers int // driving-time lookups at once
}

// SearchService fans one search out over the selected resorts and merges the results.
type SearchService struct {
	catalog  *Catalog
	homes    HomeSearcher
	geo      domain.DrivingTimer
	cfg      SearchConfig
	newPacer func() Pacer
	now      func() time.Time
}

func NewSearchService(c *Catalog, h HomeSearcher, g domain.DrivingTimer, cfg SearchConfig) *SearchService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.GeoWorkers <= 0 {
		cfg.GeoWorkers = 1
	}
	s := &SearchService{catalog: c, homes: h, geo: g, cfg: cfg, now: time.Now}
	s.newPacer = func() Pacer { return NewPagePacer(cfg.PageDelay) }
	return s
}

// WithPacer replaces the per-query pacer factory.
func (s *SearchService) WithPacer(f func() Pacer) *SearchService {
	s.newPacer = f
	return s
}

type resortOutcome struct {
	resort   domain.Resort
	listings []domain.Listing
	pages    int
	err      error
}

// Search runs criteria against every selected resort. Resort-scoped upstream failures are
// reported in SearchResult.Skipped; only authentication failures abort the whole search.
func (s *SearchService) Search(ctx context.Context, c domain.SearchCriteria, tokens domain.TokenSource) (domain.SearchResult, error) {
	if err := c.Validate(); err != nil {
		return domain.SearchResult{}, err
	}
	res := domain.SearchResult{ID: uuid.NewString(), Listings: []domain.Listing{}}
	logger := log.With().Str("search_id", res.ID).Logger()
	start := time.Now()

	for _, n := range c.Resorts {
		if n = strings.TrimSpace(n); n == "" {
			continue
		}
		if _, ok := s.catalog.Lookup(n); !ok {
			logger.Warn().Str("resort", n).Msg("unknown resort requested")
		}
	}

	var resorts []domain.Resort
	for _, r := range s.catalog.Matching(c.Regions, c.Resorts) {
		if resortPasses(r, c) {
			resorts = append(resorts, r)
		}
	}
	if len(resorts) == 0 {
		logger.Info().Msg("no resorts match the criteria")
		return res, nil
	}

	outcomes, err := s.queryResorts(ctx, resorts, c, tokens)
	if err != nil {
		logger.Warn().Err(err).Msg("search aborted")
		return domain.SearchResult{}, err
	}

	for _, o := range outcomes {
		if o.err != nil {
			res.Skipped = append(res.Skipped, domain.ResortFailure{Resort: o.resort.Name, Reason: o.err.Error()})
		}
	}
	sort.Slice(res.Skipped, func(i, j int) bool { return res.Skipped[i].Resort < res.Skipped[j].Resort })

	merged := mergeOutcomes(outcomes)
	if err := s.enrich(ctx, merged, resorts); err != nil {
		return domain.SearchResult{}, err
	}
	sortListings(merged)
	res.Listings = merged

	logger.Info().
		Int("resorts", len(resorts)).
		Int("skipped", len(res.Skipped)).
		Int("listings", len(merged)).
		Dur("duration", time.Since(start)).
		Msg("search completed")
	return res, nil
}

// queryResorts drives the per-resort queries through a bounded pool. Outcomes keep the
// catalog order regardless of completion order.
func (s *SearchService) queryResorts(ctx context.Context, resorts []domain.Resort, c domain.SearchCriteria, tokens domain.TokenSource) ([]resortOutcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([]resortOutcome, len(resorts))
	sem := semaphore.NewWeighted(int64(s.cfg.Workers))
	var wg sync.WaitGroup

	var authOnce sync.Once
	var authErr error

	for i, r := range resorts {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, r domain.Resort) {
			defer wg.Done()
			defer sem.Release(1)

			o := s.searchResort(ctx, r, c, tokens)
			out[i] = o
			if errors.Is(o.err, domain.ErrAuthenticationRequired) {
				authOnce.Do(func() {
					authErr = o.err
					cancel()
				})
			}
		}(i, r)
	}
	wg.Wait()

	if authErr != nil {
		return nil, authErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SearchService) searchResort(ctx context.Context, r domain.Resort, c domain.SearchCriteria, tokens domain.TokenSource) resortOutcome {
	o := resortOutcome{resort: r}
	if r.Coords == nil {
		observability.ObserveResort("skipped_no_coords")
		o.err = errors.New("resort has no coordinates")
		return o
	}
	logger := log.With().Str("resort", r.Name).Logger()
	start := time.Now()

	q := domain.HomesQuery{
		Polygon:     domain.MakePolygon(*r.Coords, c.RadiusMiles),
		Dates:       c.Dates,
		Mode:        c.Mode,
		MinNights:   c.MinNights,
		TotalGuests: c.MinOccupancy,
		PetsAllowed: c.PetsAllowed,
		PageSize:    s.cfg.PageSize,
		SortedAt:    s.now().UTC(),
	}

	homes, pages, err := s.collect(ctx, q, tokens)
	if errors.Is(err, domain.ErrUpstreamUnavailable) && ctx.Err() == nil {
		logger.Warn().Err(err).Msg("resort query failed, retrying once")
		if sleepCtx(ctx, s.cfg.RetryDelay) {
			q.SortedAt = s.now().UTC()
			homes, pages, err = s.collect(ctx, q, tokens)
		}
	}
	o.pages = pages

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAuthenticationRequired):
		o.err = err
		return o
	case ctx.Err() != nil:
		o.err = ctx.Err()
		return o
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		observability.ObserveResort("skipped_upstream")
		logger.Warn().Err(err).Msg("resort skipped")
		o.err = err
		return o
	case errors.Is(err, domain.ErrMalformedResponse):
		observability.ObserveResort("skipped_malformed")
		logger.Warn().Err(err).Msg("resort skipped")
		o.err = err
		return o
	default:
		observability.ObserveResort("skipped_other")
		logger.Error().Err(err).Msg("resort skipped")
		o.err = err
		return o
	}

	kept := homes[:0]
	for _, h := range homes {
		if listingPasses(&h, c) {
			kept = append(kept, h)
		}
	}
	o.listings = kept
	observability.ObserveResort("ok")
	logger.Info().
		Int("pages", pages).
		Int("fetched", len(homes)).
		Int("kept", len(kept)).
		Dur("duration", time.Since(start)).
		Msg("resort searched")
	return o
}

// collect pages through one polygon query. Repeats of an id inside the stream keep the
// first occurrence and fold in its availability windows.
func (s *SearchService) collect(ctx context.Context, q domain.HomesQuery, tokens domain.TokenSource) ([]domain.Listing, int, error) {
	pacer := s.newPacer()
	seen := map[string]int{}
	var homes []domain.Listing
	pages := 0

	for page := 0; ; {
		if err := pacer.Wait(ctx); err != nil {
			return nil, pages, err
		}
		p, err := s.fetchPage(ctx, q, tokens, page)
		if err != nil {
			return nil, pages, err
		}
		pages++
		for _, h := range p.Homes {
			if h.ID == "" {
				continue
			}
			if i, ok := seen[h.ID]; ok {
				homes[i].Availabilities = mergeWindows(homes[i].Availabilities, h.Availabilities)
				continue
			}
			seen[h.ID] = len(homes)
			homes = append(homes, h)
		}
		if p.Next == nil {
			return homes, pages, nil
		}
		if pages >= s.cfg.MaxPages {
			log.Warn().Int("pages", pages).Msg("page limit reached, truncating resort results")
			return homes, pages, nil
		}
		page = *p.Next
	}
}

// fetchPage issues one page request, refreshing the token once if it is rejected.
func (s *SearchService) fetchPage(ctx context.Context, q domain.HomesQuery, tokens domain.TokenSource, page int) (domain.HomesPage, error) {
	tok, err := tokens.AccessToken(ctx)
	if err != nil {
		return domain.HomesPage{}, err
	}
	p, err := s.homes.SearchHomes(ctx, q, tok, page)
	if !errors.Is(err, domain.ErrAuthRejected) {
		return p, err
	}

	tok, rerr := tokens.Refresh(ctx, tok)
	if rerr != nil {
		if ctx.Err() != nil || errors.Is(rerr, context.Canceled) || errors.Is(rerr, context.DeadlineExceeded) {
			return domain.HomesPage{}, rerr
		}
		if !errors.Is(rerr, domain.ErrAuthenticationRequired) {
			rerr = fmt.Errorf("%w: %v", domain.ErrAuthenticationRequired, rerr)
		}
		return domain.HomesPage{}, rerr
	}
	p, err = s.homes.SearchHomes(ctx, q, tok, page)
	if errors.Is(err, domain.ErrAuthRejected) {
		return domain.HomesPage{}, fmt.Errorf("%w: %v", domain.ErrAuthenticationRequired, err)
	}
	return p, err
}

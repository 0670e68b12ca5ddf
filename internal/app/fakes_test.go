package app_test

import (
	"bytes"
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ski_homes/internal/domain"
)

// ---- fakes ----

func pstr(s string) *string     { return &s }
func pfloat(f float64) *float64 { return &f }

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func window(start, end string) domain.Availability {
	return domain.Availability{Start: day(start), End: day(end)}
}

func home(id string, lat, lon float64, ws ...domain.Availability) domain.Listing {
	return domain.Listing{ID: id, Name: "Home " + id, Coords: &domain.Coords{Lat: lat, Lon: lon}, MaxGuests: 6, Availabilities: ws}
}

// pageFunc scripts one resort's answers. attempt counts full-query attempts from 0.
type pageFunc func(attempt, page int, token string) (domain.HomesPage, error)

// singlePage answers every attempt with one final page.
func singlePage(ls ...domain.Listing) pageFunc {
	return func(int, int, string) (domain.HomesPage, error) { return domain.HomesPage{Homes: ls}, nil }
}

func failing(err error) pageFunc {
	return func(int, int, string) (domain.HomesPage, error) { return domain.HomesPage{}, err }
}

type pageCall struct {
	resort string
	page   int
	token  string
	at     time.Time
}

// fakeHomes identifies the resort behind a query by the polygon centre.
type fakeHomes struct {
	resorts []domain.Resort
	scripts map[string]pageFunc
	onCall  func(resort string, page int)

	mu       sync.Mutex
	calls    []pageCall
	attempts map[string]int
}

func newFakeHomes(resorts []domain.Resort, scripts map[string]pageFunc) *fakeHomes {
	return &fakeHomes{resorts: resorts, scripts: scripts, attempts: map[string]int{}}
}

func (f *fakeHomes) SearchHomes(ctx context.Context, q domain.HomesQuery, token string, page int) (domain.HomesPage, error) {
	name := f.resortFor(q.Polygon)
	f.mu.Lock()
	if page == 0 {
		f.attempts[name]++
	}
	attempt := f.attempts[name] - 1
	f.calls = append(f.calls, pageCall{resort: name, page: page, token: token, at: time.Now()})
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall(name, page)
	}
	if err := ctx.Err(); err != nil {
		return domain.HomesPage{}, err
	}
	script, ok := f.scripts[name]
	if !ok {
		return domain.HomesPage{}, nil
	}
	return script(attempt, page, token)
}

func (f *fakeHomes) resortFor(p domain.Polygon) string {
	var lat, lon float64
	for _, c := range p {
		lat += c.Lat
		lon += c.Lon
	}
	lat /= float64(len(p))
	lon /= float64(len(p))
	best, bestD := "", math.MaxFloat64
	for _, r := range f.resorts {
		if r.Coords == nil {
			continue
		}
		d := math.Hypot(r.Coords.Lat-lat, r.Coords.Lon-lon)
		if d < bestD {
			best, bestD = r.Name, d
		}
	}
	return best
}

func (f *fakeHomes) callsFor(resort string) []pageCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []pageCall
	for _, c := range f.calls {
		if c.resort == resort {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeHomes) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeGeo answers by destination resort; missing entries fail.
type fakeGeo struct {
	resorts []domain.Resort
	minutes map[string]float64

	mu    sync.Mutex
	calls int
}

func (g *fakeGeo) DrivingMinutes(ctx context.Context, from, to domain.Coords) (float64, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	for _, r := range g.resorts {
		if r.Coords != nil && *r.Coords == to {
			if m, ok := g.minutes[r.Name]; ok {
				return m, nil
			}
		}
	}
	return 0, domain.ErrRateLimited
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	pair  domain.TokenPair
	err   error
}

func (f *fakeRefresher) RefreshAccessToken(ctx context.Context, refresh string) (domain.TokenPair, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.pair, f.err
}

func (f *fakeRefresher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// countingPacer never blocks and counts waits.
type countingPacer struct {
	mu    sync.Mutex
	waits int
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	p.waits++
	p.mu.Unlock()
	return ctx.Err()
}

type mapCache struct {
	mu     sync.Mutex
	store  map[string]bool
	sets   int
	getErr error
}

func (c *mapCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, c.getErr
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	*(dst.(*bool)) = v
	return true, nil
}

func (c *mapCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string]bool{}
	}
	c.store[key] = v.(bool)
	c.sets++
	return nil
}

func (c *mapCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

// logBuffer collects global log output for the duration of a test.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLog(t *testing.T) *logBuffer {
	t.Helper()
	out := &logBuffer{}
	prev := log.Logger
	log.Logger = zerolog.New(out)
	t.Cleanup(func() { log.Logger = prev })
	return out
}

// internal/adapters/routing/client.go
package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ski_homes/internal/adapters/observability"
	"ski_homes/internal/domain"
)

const (
	service     = "ors"
	endpoint    = "directions"
	DefaultBase = "https://api.openrouteservice.org"
)

// Client asks OpenRouteService for car driving durations. One lookup is one attempt.
type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

func New(base, key string, rps int, timeout time.Duration) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if base == "" {
		base = DefaultBase
	}
	if rps <= 0 {
		rps = 5
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: timeout},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

type directionsRequest struct {
	Coordinates [][2]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Routes []struct {
		Summary struct {
			Duration *float64 `json:"duration"`
		} `json:"summary"`
	} `json:"routes"`
}

// DrivingMinutes returns the estimated driving time in minutes between two points.
func (c *Client) DrivingMinutes(ctx context.Context, from, to domain.Coords) (float64, error) {
	// client-side quota pacing
	if err := c.rl.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
	}

	// ORS wants lon,lat order
	body, err := json.Marshal(directionsRequest{Coordinates: [][2]float64{{from.Lon, from.Lat}, {to.Lon, to.Lat}}})
	if err != nil {
		return 0, err
	}
	url := fmt.Sprintf("%s/v2/directions/driving-car?api_key=%s", c.base, c.key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ski-homes/1.0")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal(service, endpoint, 0, time.Since(start))
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal(service, endpoint, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("%w: quota exhausted", domain.ErrRateLimited)
	case resp.StatusCode == http.StatusNotFound:
		// ORS answers 404 when either point cannot be snapped to the road network
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, domain.ErrNoRoute
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("%w: status %d: %s", domain.ErrUpstreamUnavailable, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out directionsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if len(out.Routes) == 0 || out.Routes[0].Summary.Duration == nil {
		return 0, domain.ErrNoRoute
	}
	return *out.Routes[0].Summary.Duration / 60, nil
}

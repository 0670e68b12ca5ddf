package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"ski_homes/internal/domain"
)

type TokenState int

const (
	Unauthenticated TokenState = iota
	Authenticated
	Refreshing
)

func (s TokenState) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	default:
		return "unauthenticated"
	}
}

// TokenManager owns the current marketplace token pair.
// Refreshes are reactive and at most one is in flight; concurrent callers share its outcome.
type TokenManager struct {
	refresher domain.TokenRefresher

	mu         sync.RWMutex
	state      TokenState
	access     string
	refresh    string
	obtainedAt time.Time

	flight singleflight.Group
	now    func() time.Time
}

func NewTokenManager(r domain.TokenRefresher) *TokenManager {
	return &TokenManager{refresher: r, now: time.Now}
}

// SetTokens installs a pair obtained from the OTP exchange.
func (m *TokenManager) SetTokens(access, refresh string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if access == "" {
		m.state, m.access, m.refresh = Unauthenticated, "", ""
		return
	}
	m.state = Authenticated
	m.access = access
	m.refresh = refresh
	m.obtainedAt = m.now()
}

func (m *TokenManager) State() TokenState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Current returns the access token without waiting on a refresh.
func (m *TokenManager) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == Unauthenticated {
		return ""
	}
	return m.access
}

// AccessToken returns a usable access token, waiting on a refresh that is in flight.
func (m *TokenManager) AccessToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	state, access := m.state, m.access
	m.mu.RUnlock()

	switch state {
	case Authenticated:
		return access, nil
	case Refreshing:
		return m.Refresh(ctx, access)
	default:
		return "", domain.ErrAuthenticationRequired
	}
}

// Refresh replaces rejected with a fresh access token. If another caller already
// replaced it, the newer token is returned without another upstream call.
func (m *TokenManager) Refresh(ctx context.Context, rejected string) (string, error) {
	v, err, _ := m.flight.Do("refresh", func() (any, error) {
		m.mu.Lock()
		switch {
		case m.state == Unauthenticated:
			m.mu.Unlock()
			return "", domain.ErrAuthenticationRequired
		case m.access != rejected:
			cur := m.access
			m.mu.Unlock()
			return cur, nil
		case m.refresh == "":
			m.state, m.access = Unauthenticated, ""
			m.mu.Unlock()
			return "", fmt.Errorf("%w: no refresh token", domain.ErrAuthenticationRequired)
		}
		refresh := m.refresh
		m.state = Refreshing
		m.mu.Unlock()

		pair, err := m.refresher.RefreshAccessToken(ctx, refresh)

		m.mu.Lock()
		defer m.mu.Unlock()
		if err != nil && ctx.Err() != nil {
			// the caller gave up; the pair was not proven bad
			m.state = Authenticated
			return "", ctx.Err()
		}
		if err != nil || pair.Access == "" {
			m.state, m.access, m.refresh = Unauthenticated, "", ""
			if err == nil {
				err = domain.ErrRefreshRejected
			}
			return "", fmt.Errorf("%w: %v", domain.ErrAuthenticationRequired, err)
		}
		now := m.now()
		log.Info().
			Dur("token_age", now.Sub(m.obtainedAt)).
			Bool("rotated", pair.Refresh != "").
			Msg("marketplace token refreshed")
		m.state = Authenticated
		m.access = pair.Access
		if pair.Refresh != "" {
			m.refresh = pair.Refresh
		}
		m.obtainedAt = now
		return pair.Access, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

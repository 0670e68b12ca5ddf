package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ski_homes/internal/adapters/observability"
	"ski_homes/internal/domain"
)

// AuthService runs the OTP handshake and token validation against the marketplace.
type AuthService struct {
	client domain.MarketplaceClient
	tokens *TokenManager
	cache  domain.Cache
	ttl    time.Duration
}

// NewAuthService wires the process token slot. cache may be nil, in which case every
// validation goes upstream.
func NewAuthService(c domain.MarketplaceClient, tm *TokenManager, cache domain.Cache, ttl time.Duration) *AuthService {
	return &AuthService{client: c, tokens: tm, cache: cache, ttl: ttl}
}

func (s *AuthService) SendOTP(ctx context.Context, email string) (domain.OTPChallenge, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.OTPChallenge{}, fmt.Errorf("%w: email is required", domain.ErrInvalidCriteria)
	}
	ch, err := s.client.SendOTP(ctx, email)
	if err != nil {
		log.Warn().Err(err).Str("email", observability.Redact(email)).Msg("send otp failed")
		return domain.OTPChallenge{}, err
	}
	return ch, nil
}

// VerifyOTP exchanges the code for a token pair and installs it in the process slot.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (domain.TokenPair, error) {
	email, code = strings.TrimSpace(email), strings.TrimSpace(code)
	if email == "" || code == "" {
		return domain.TokenPair{}, fmt.Errorf("%w: email and otp are required", domain.ErrInvalidCriteria)
	}
	pair, err := s.client.VerifyOTP(ctx, email, code)
	if err != nil {
		return domain.TokenPair{}, err
	}
	prev := s.tokens.Current()
	s.tokens.SetTokens(pair.Access, pair.Refresh)
	if prev != "" && prev != pair.Access {
		s.forget(ctx, prev)
	}
	s.remember(ctx, pair.Access)
	log.Info().Str("token", observability.Redact(pair.Access)).Msg("marketplace session established")
	return pair, nil
}

// Validate reports whether the marketplace accepts token. Accepted tokens are
// remembered for the cache TTL.
func (s *AuthService) Validate(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrAuthenticationRequired
	}
	key := validationKey(token)
	if s.cache != nil {
		var ok bool
		hit, err := s.cache.Get(ctx, key, &ok)
		if err != nil {
			log.Debug().Err(err).Msg("validation cache get failed")
		} else if hit && ok {
			return nil
		}
	}
	if err := s.client.ValidateToken(ctx, token); err != nil {
		return err
	}
	s.remember(ctx, token)
	return nil
}

// SessionFor picks the token manager for one request. A bearer matching the process
// slot shares it; any other bearer gets a manager scoped to the request, seeded with
// the optional refresh token.
func (s *AuthService) SessionFor(bearer, refresh string) *TokenManager {
	if bearer != "" && bearer == s.tokens.Current() {
		return s.tokens
	}
	tm := NewTokenManager(s.client)
	tm.SetTokens(bearer, refresh)
	return tm
}

func (s *AuthService) remember(ctx context.Context, token string) {
	if s.cache == nil || token == "" || s.ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, validationKey(token), true, int(s.ttl.Seconds())); err != nil {
		log.Debug().Err(err).Msg("validation cache set failed")
	}
}

// forget drops a superseded token so it is checked upstream again.
func (s *AuthService) forget(ctx context.Context, token string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, validationKey(token)); err != nil {
		log.Debug().Err(err).Msg("validation cache del failed")
	}
}

// validationKey never stores the raw token.
func validationKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "validate:" + hex.EncodeToString(sum[:])
}

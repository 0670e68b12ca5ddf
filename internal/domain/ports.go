package domain

import "context"

// ResortSource yields the catalog rows in their stable order.
type ResortSource interface {
	ListResorts(ctx context.Context) ([]Resort, error)
}

type ResortRepository interface {
	ResortSource
	UpsertResorts(ctx context.Context, rs []Resort) error
}

// MarketplaceClient talks to the rental marketplace.
type MarketplaceClient interface {
	SendOTP(ctx context.Context, email string) (OTPChallenge, error)
	VerifyOTP(ctx context.Context, email, code string) (TokenPair, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (TokenPair, error)
	ValidateToken(ctx context.Context, accessToken string) error
	SearchHomes(ctx context.Context, q HomesQuery, accessToken string, page int) (HomesPage, error)
}

// TokenRefresher is the part of the marketplace the token manager needs.
type TokenRefresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (TokenPair, error)
}

// TokenSource hands out access tokens and refreshes them after a rejection.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context, rejected string) (string, error)
}

// DrivingTimer estimates driving minutes between two points.
type DrivingTimer interface {
	DrivingMinutes(ctx context.Context, from, to Coords) (float64, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

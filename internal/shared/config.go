package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const DefaultKindredURL = "https://app.livekindred.com/api/graphql"

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	KindredURL     string
	BearerToken    string
	RefreshToken   string
	ORSKey         string
	ORSBase        string
	ORSRPS         int
	AllowedOrigins []string

	ResortsCSV string
	MySQLDSN   string

	RedisAddr   string
	RedisDB     int
	RedisPass   string
	ValidateTTL time.Duration

	PageDelay       time.Duration
	PageSize        int
	MaxPages        int
	SearchWorkers   int
	GeoWorkers      int
	UpstreamTimeout time.Duration
	RetryDelay      time.Duration
	RequestTimeout  time.Duration
}

// Load reads the environment, after a .env file in the working directory if one exists.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg(".env could not be parsed")
	}

	httpAddr := env("HTTP_ADDR", "")
	if httpAddr == "" {
		httpAddr = ":" + env("PORT", "5001")
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    httpAddr,
		MetricsAddr: env("METRICS_ADDR", ""),

		KindredURL:     env("KINDRED_URL", DefaultKindredURL),
		BearerToken:    env("KINDRED_BEARER_TOKEN", ""),
		RefreshToken:   env("KINDRED_REFRESH_TOKEN", ""),
		ORSKey:         env("OPEN_ROUTE_SERVICE_KEY", ""),
		ORSBase:        env("ORS_BASE_URL", "https://api.openrouteservice.org"),
		ORSRPS:         atoi("ORS_RPS", 5),
		AllowedOrigins: list(env("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),

		ResortsCSV: env("RESORTS_CSV", "data/resorts.csv"),
		MySQLDSN:   env("MYSQL_DSN", ""),

		RedisAddr:   env("REDIS_ADDR", ""),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		ValidateTTL: dur("VALIDATE_TTL_SECONDS", 1800, time.Second),

		PageDelay:       dur("PAGE_DELAY_MS", 400, time.Millisecond),
		PageSize:        atoi("PAGE_SIZE", 50),
		MaxPages:        atoi("MAX_PAGES", 100),
		SearchWorkers:   atoi("SEARCH_WORKERS", 1),
		GeoWorkers:      atoi("GEO_WORKERS", 4),
		UpstreamTimeout: dur("UPSTREAM_TIMEOUT_SECONDS", 20, time.Second),
		RetryDelay:      dur("RETRY_DELAY_MS", 500, time.Millisecond),
		RequestTimeout:  dur("REQUEST_TIMEOUT_SECONDS", 180, time.Second),
	}
	if c.ORSKey == "" {
		log.Warn().Msg("OPEN_ROUTE_SERVICE_KEY is empty; driving times will be unknown")
	}
	if c.BearerToken == "" {
		log.Info().Msg("KINDRED_BEARER_TOKEN is empty; searches need a session from /api/auth/verify-otp")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
	}
	return def
}

func dur(k string, def int, unit time.Duration) time.Duration {
	return time.Duration(atoi(k, def)) * unit
}

func list(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

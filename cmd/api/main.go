package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"ski_homes/internal/adapters/csvsource"
	server "ski_homes/internal/adapters/http_server"
	"ski_homes/internal/adapters/kindred"
	"ski_homes/internal/adapters/observability"
	redisad "ski_homes/internal/adapters/redis"
	"ski_homes/internal/adapters/routing"
	"ski_homes/internal/app"
	"ski_homes/internal/domain"
	"ski_homes/internal/shared"
	mysqlrepo "ski_homes/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// resort catalog: MySQL when configured, otherwise the bundled CSV
	var src domain.ResortSource = csvsource.Loader{Path: cfg.ResortsCSV}
	if cfg.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("database connection ok")
		src = mysqlrepo.New(db)
	}
	catalog, err := app.LoadCatalog(ctx, src)
	if err != nil {
		log.Fatal().Err(err).Msg("resort catalog failed to load")
	}
	log.Info().Int("resorts", catalog.Len()).Int("regions", len(catalog.Regions())).Msg("resort catalog loaded")

	// marketplace + process token slot
	market, err := kindred.New(cfg.KindredURL, cfg.UpstreamTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize marketplace client")
	}
	tokens := app.NewTokenManager(market)
	tokens.SetTokens(cfg.BearerToken, cfg.RefreshToken)

	// driving times degrade to unknown without a key
	var geo domain.DrivingTimer
	if ors, err := routing.New(cfg.ORSBase, cfg.ORSKey, cfg.ORSRPS, cfg.UpstreamTimeout); err != nil {
		log.Warn().Err(err).Msg("routing disabled")
	} else {
		geo = ors
	}

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, "skihomes:")
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unreachable; validation cache disabled")
		} else {
			cache = rc
		}
	}

	auth := app.NewAuthService(market, tokens, cache, cfg.ValidateTTL)
	search := app.NewSearchService(catalog, market, geo, app.SearchConfig{
		PageSize:   cfg.PageSize,
		MaxPages:   cfg.MaxPages,
		PageDelay:  cfg.PageDelay,
		RetryDelay: cfg.RetryDelay,
		Workers:    cfg.SearchWorkers,
		GeoWorkers: cfg.GeoWorkers,
	})

	// http
	srv := server.New(server.Options{AllowedOrigins: cfg.AllowedOrigins, RequestTimeout: cfg.RequestTimeout})
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Auth: auth, Search: search, Catalog: catalog})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

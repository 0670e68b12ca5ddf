package main

import (
	"context"
	"database/sql"
	"flag"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"ski_homes/internal/adapters/csvsource"
	"ski_homes/internal/adapters/observability"
	"ski_homes/internal/app"
	"ski_homes/internal/domain"
	"ski_homes/internal/shared"
	mysqlrepo "ski_homes/internal/storage/mysql"
)

// ingestor loads the resort CSV into the MySQL catalog table.
func main() {
	cfg := shared.Load()
	path := flag.String("csv", cfg.ResortsCSV, "resort CSV to load")
	flag.Parse()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	if cfg.MySQLDSN == "" {
		log.Fatal().Msg("MYSQL_DSN is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	log.Info().Str("csv", *path).Msg("ingestor starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	// validate through the catalog so the table never holds what the API would refuse
	catalog, err := app.LoadCatalog(ctx, csvsource.Loader{Path: *path})
	if err != nil {
		log.Fatal().Err(err).Msg("resort csv rejected")
	}

	var repo domain.ResortRepository = mysqlrepo.New(db)
	if err := repo.UpsertResorts(ctx, catalog.All()); err != nil {
		log.Fatal().Err(err).Msg("upsert resorts failed")
	}
	log.Info().Int("resorts", catalog.Len()).Int("regions", len(catalog.Regions())).Msg("ingestion completed")
}

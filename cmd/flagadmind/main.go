// flagadmind serves the permission admin API over the tenant flag documents.
// Identity comes from gateway-set headers; the upstream proxy is responsible
// for authenticating requests before they reach this service.
package main

import (
	"context"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fieldline/fieldline/pkg/auditlog"
	"github.com/fieldline/fieldline/pkg/config"
	"github.com/fieldline/fieldline/pkg/docstore"
	"github.com/fieldline/fieldline/pkg/httpserver"
	"github.com/fieldline/fieldline/pkg/logger"
	fieldmongo "github.com/fieldline/fieldline/pkg/mongo"
	fieldredis "github.com/fieldline/fieldline/pkg/redis"
	"github.com/fieldline/fieldline/svc/flagadmin"
)

type appConfig struct {
	Log      logger.Config
	HTTP     httpserver.Config
	Mongo    fieldmongo.Config
	Redis    fieldredis.Config
	Database string `env:"MONGODB_DATABASE" envDefault:"fieldline"`
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(cfg.Log, os.Stderr)
	ctx := context.Background()

	db, err := fieldmongo.ConnectDatabase(ctx, cfg.Mongo, cfg.Database)
	if err != nil {
		log.Error("connecting to mongodb", logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = db.Client().Disconnect(context.Background()) }()

	rdb, err := fieldredis.Connect(ctx, cfg.Redis)
	if err != nil {
		log.Error("connecting to redis", logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = rdb.Close() }()

	audit := auditlog.NewMongoStorage(db, auditlog.DefaultCollection)
	if err := audit.EnsureIndexes(ctx); err != nil {
		log.Error("ensuring audit indexes", logger.Error(err))
		os.Exit(1)
	}

	pool := newStorePool(docstore.NewMongoStore(db, log), audit, rdb, log)
	defer pool.close()

	handler := flagadmin.NewHandler(flagadmin.ResolveFromContext,
		flagadmin.WithAuditReader(audit),
		flagadmin.WithLogger(log),
	)

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.Recoverer)
	r.Get("/healthz", httpserver.HealthCheckHandler(ctx, log))
	r.Get("/readyz", httpserver.HealthCheckHandler(ctx, log,
		fieldmongo.Healthcheck(db.Client()),
		fieldredis.Healthcheck(rdb),
	))
	r.Route("/v1", func(r chi.Router) {
		r.Use(pool.middleware)
		r.Mount("/", handler.Router())
	})

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	if err := srv.Run(ctx, r); err != nil {
		log.Error("http server exited", logger.Error(err))
		os.Exit(1)
	}
}
